// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs statically partitioned loops on a team of goroutines.
package workerspool

import (
	"runtime"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Pool holds the parallelism ceiling used to size worker teams.
//
// A Pool is safe for concurrent use once configured: several teams can run at the same
// time, each one sized independently.
type Pool struct {
	// maxParallelism is the largest team size. It is always >= 1.
	maxParallelism int
}

// New returns a new Pool with the default parallelism (runtime.GOMAXPROCS(0)).
func New() *Pool {
	return &Pool{maxParallelism: max(runtime.GOMAXPROCS(0), 1)}
}

// MaxParallelism is the largest number of workers a team will have.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the ceiling of workers per team. Values < 1 reset it to the
// default (runtime.GOMAXPROCS(0)).
//
// You should only change the parallelism before any team starts running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	if maxParallelism < 1 {
		maxParallelism = max(runtime.GOMAXPROCS(0), 1)
	}
	w.maxParallelism = maxParallelism
}

// TeamSize returns the number of workers used for a request of `requested` workers over
// `numItems` items: 0 means "use MaxParallelism", larger requests are clamped to it, and a
// team never has more workers than items (but always at least 1).
func (w *Pool) TeamSize(requested int, numItems int64) int {
	n := w.maxParallelism
	if requested > 0 && requested < n {
		n = requested
	}
	if numItems < int64(n) {
		n = int(max(numItems, 1))
	}
	return n
}

// StaticRange returns the contiguous block [begin, end) of the items [0, numItems) assigned to
// worker `workerID` of a team of `numWorkers`. Blocks differ in size by at most one item, the
// first numItems % numWorkers workers taking the larger blocks.
func StaticRange(numItems int64, numWorkers, workerID int) (begin, end int64) {
	n, id := int64(numWorkers), int64(workerID)
	chunk, extra := numItems/n, numItems%n
	begin = id*chunk + min(id, extra)
	end = begin + chunk
	if id < extra {
		end++
	}
	return
}

// RunTeam runs task(workerID, begin, end) on `numWorkers` goroutines, each with its static block of
// [0, numItems), and returns when all of them are finished.
//
// The calling goroutine runs worker 0. If any worker panics, the first panic is re-raised in the
// calling goroutine after all workers finished: non-error panics are wrapped into an error.
func RunTeam(numWorkers int, numItems int64, task func(workerID int, begin, end int64)) {
	if numWorkers < 1 {
		exceptions.Panicf("workerspool.RunTeam requires at least 1 worker, got %d", numWorkers)
	}
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		firstPanic  any
		recordPanic = func(exception any) {
			if exception == nil {
				return
			}
			mu.Lock()
			if firstPanic == nil {
				firstPanic = exception
			}
			mu.Unlock()
		}
	)
	runWorker := func(workerID int) {
		begin, end := StaticRange(numItems, numWorkers, workerID)
		recordPanic(exceptions.Try(func() { task(workerID, begin, end) }))
	}

	for workerID := 1; workerID < numWorkers; workerID++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(workerID)
		}(workerID)
	}
	runWorker(0)
	wg.Wait()

	if firstPanic != nil {
		if err, ok := firstPanic.(error); ok {
			panic(err)
		}
		panic(errors.Errorf("worker panicked: %v", firstPanic))
	}
}
