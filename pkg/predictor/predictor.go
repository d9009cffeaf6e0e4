// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package predictor runs a compiled tree-ensemble computation unit over batches of rows.
//
// A Predictor owns one bound unit (see package unit) and evaluates it over dense or CSR
// batches with a team of worker goroutines:
//
//	p := predictor.New()
//	if err := p.Load("/path/to/model.so"); err != nil { ... }
//	defer p.Free()
//	out := make([]float32, p.QueryResultSize(b))
//	n, err := p.PredictBatch(b, 0, 0, false, out)
//	// out[:n] holds the predictions.
//
// Load and Free wait for in-flight predictions to finish, and block new ones while they run,
// so they can be called from any goroutine.
package predictor

import (
	"os"
	"strconv"
	"sync"

	"github.com/gomlx/treerun/internal/workerspool"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxThreadsEnv is the environment variable that, if set, overrides the default ceiling
// of worker goroutines per prediction (runtime.GOMAXPROCS(0)).
const MaxThreadsEnv = "TREERUN_MAX_THREADS"

var (
	// ErrPrecondition is wrapped by errors caused by invalid arguments to the predictor.
	ErrPrecondition = errors.New("precondition violated")

	// ErrInconsistentOutput is wrapped when the computation unit produced outputs that don't
	// fit its declared number of output groups. It indicates a misbehaving unit.
	ErrInconsistentOutput = errors.New("inconsistent computation unit output")
)

// Predictor evaluates a computation unit over batches.
type Predictor struct {
	// mu guards u: predictions hold it for reading, Load and Free for writing.
	mu sync.RWMutex
	u  *unit.Unit

	loader  unit.Loader
	pool    *workerspool.Pool
	scratch scratchPool
}

// Option configures a Predictor.
type Option func(p *Predictor)

// WithMaxThreads sets the ceiling of worker goroutines per prediction. Values < 1 use
// runtime.GOMAXPROCS(0).
func WithMaxThreads(maxThreads int) Option {
	return func(p *Predictor) {
		p.pool.SetMaxParallelism(maxThreads)
	}
}

// WithLoader makes Load open paths with loader, instead of resolving them with the registered
// loaders (see unit.Resolve).
func WithLoader(loader unit.Loader) Option {
	return func(p *Predictor) {
		p.loader = loader
	}
}

// New creates an unloaded Predictor.
func New(options ...Option) *Predictor {
	p := &Predictor{pool: workerspool.New()}
	if v, found := os.LookupEnv(MaxThreadsEnv); found {
		maxThreads, err := strconv.Atoi(v)
		if err != nil {
			klog.Warningf("ignoring $%s=%q: %v", MaxThreadsEnv, v, err)
		} else {
			p.pool.SetMaxParallelism(maxThreads)
		}
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// MaxThreads returns the ceiling of worker goroutines per prediction.
func (p *Predictor) MaxThreads() int { return p.pool.MaxParallelism() }

// Load binds the computation unit at path.
//
// The path is either opened with the loader given by WithLoader or resolved with unit.Resolve
// (so "inproc:<name>" or plain shared library paths work). If the Predictor already had a unit
// loaded, it is released once the new one is bound. If binding fails, the Predictor is left
// unloaded.
func (p *Predictor) Load(path string) error {
	var (
		u   *unit.Unit
		err error
	)
	if p.loader != nil {
		u, err = unit.BindWith(p.loader, path)
	} else {
		u, err = unit.Bind(path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lockedFree()
	if err != nil {
		return err
	}
	p.u = u
	klog.V(1).Infof("predictor loaded %s", u)
	return nil
}

// Free releases the computation unit. Further predictions fail until a new Load.
// It is a no-op if nothing is loaded.
func (p *Predictor) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lockedFree()
}

// lockedFree must be called with p.mu held for writing.
func (p *Predictor) lockedFree() {
	if p.u == nil {
		return
	}
	if err := p.u.Close(); err != nil {
		klog.Errorf("predictor: %+v", err)
	}
	p.u = nil
}

// IsLoaded returns whether a computation unit is loaded.
func (p *Predictor) IsLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.u.IsBound()
}

// Path returns the path of the loaded computation unit, or "" if none is loaded.
func (p *Predictor) Path() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.u.IsBound() {
		return ""
	}
	return p.u.Path()
}

// NumOutputGroup returns the number of output groups of the loaded unit, or 0 if none is loaded.
func (p *Predictor) NumOutputGroup() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.u.IsBound() {
		return 0
	}
	return p.u.NumOutputGroup()
}
