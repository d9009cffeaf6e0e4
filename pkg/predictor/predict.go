// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package predictor

import (
	"math"
	"math/bits"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/treerun/internal/workerspool"
	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// QueryResultSize returns the number of output slots PredictBatch needs for b: NumRow times
// max(1, NumOutputGroup). It saturates at math.MaxUint64.
//
// This is the capacity before reshaping: PredictBatch may write fewer values.
func (p *Predictor) QueryResultSize(b batch.Batch) uint64 {
	return resultSize(b.NumRow(), max(p.NumOutputGroup(), 1))
}

func resultSize(numRow, outputsPerRow uint64) uint64 {
	hi, lo := bits.Mul64(numRow, outputsPerRow)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// PredictBatch evaluates the loaded computation unit for every row of b, and returns the number of
// values written in out.
//
// Parameters:
//   - b: the batch. It's validated before any work is done: malformed batches return an error
//     wrapping batch.ErrInvalidInput or batch.ErrTooManyRows, and out is left untouched.
//   - nthread: number of worker goroutines. 0 means MaxThreads, larger values are clamped to it.
//   - verbose: if > 0, the start and duration of the prediction are logged.
//   - predMargin: request raw margin scores instead of transformed ones.
//   - out: output buffer, with at least QueryResultSize(b) elements.
//
// Row r's outputs are written at out[r*k : (r+1)*k] where k = written/NumRow: for single output
// units k is 1; for multi-output units it is normally NumOutputGroup, but units that produce
// fewer values per row (e.g. the index of the most likely class) yield a compact k < NumOutputGroup.
//
// If the computation unit misbehaves, the error wraps ErrInconsistentOutput and the contents of out
// are unspecified.
func (p *Predictor) PredictBatch(b batch.Batch, nthread int, verbose int, predMargin bool, out []float32) (written uint64, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lockedPredictBatch(b, nthread, verbose, predMargin, out)
}

// lockedPredictBatch implements PredictBatch. It must be called with p.mu held for reading.
func (p *Predictor) lockedPredictBatch(b batch.Batch, nthread int, verbose int, predMargin bool, out []float32) (written uint64, err error) {
	rowFn, err := p.u.RowFunc()
	if err != nil {
		return 0, errors.WithMessagef(err, "PredictBatch")
	}
	if nthread < 0 {
		return 0, errors.Wrapf(ErrPrecondition, "nthread must be >= 0, got %d", nthread)
	}
	if err = batch.CheckNumRow(b.NumRow()); err != nil {
		return 0, err
	}
	if err = b.Validate(); err != nil {
		return 0, err
	}
	outputsPerRow := p.u.OutputsPerRow()
	expected := resultSize(b.NumRow(), outputsPerRow)
	if uint64(len(out)) < expected {
		return 0, errors.Wrapf(ErrPrecondition, "output buffer has %d elements, but %s requires %d (%d rows x %d output groups)",
			len(out), b, expected, b.NumRow(), outputsPerRow)
	}

	numRow := int64(b.NumRow())
	numWorkers := p.pool.TeamSize(nthread, numRow)
	if verbose > 0 {
		klog.Infof("Begin prediction of %d rows with %d workers", numRow, numWorkers)
	}
	start := time.Now()
	err = exceptions.TryCatch[error](func() {
		written = p.predictLoop(b, rowFn, numWorkers, predMargin, outputsPerRow, out)
		if written < expected {
			reshapeOutput(out, b.NumRow(), outputsPerRow, written)
		}
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "PredictBatch(%s) with %q", b, p.u.Path())
	}
	if verbose > 0 {
		klog.Infof("Finished prediction in %s", time.Since(start))
	}
	return written, nil
}

// workerResult is the reduction state of one worker.
type workerResult struct {
	total              uint64
	minWidth, maxWidth uint64
	numRows            int64
}

// combine merges the results of two workers. It is associative and commutative.
func (r workerResult) combine(other workerResult) workerResult {
	if other.numRows == 0 {
		return r
	}
	if r.numRows == 0 {
		return other
	}
	return workerResult{
		total:    r.total + other.total,
		minWidth: min(r.minWidth, other.minWidth),
		maxWidth: max(r.maxWidth, other.maxWidth),
		numRows:  r.numRows + other.numRows,
	}
}

// predictLoop runs rowFn over every row of b, in a team of numWorkers, and returns the total number
// of values produced. It panics with an error wrapping ErrInconsistentOutput if the unit produced
// an invalid number of values.
func (p *Predictor) predictLoop(b batch.Batch, rowFn unit.RowFunc, numWorkers int, predMargin bool,
	outputsPerRow uint64, out []float32) uint64 {
	numRow := int64(b.NumRow())
	numCol := b.NumCol()
	stride := scratchStride(numCol)
	arena := p.scratch.get(uint64(numWorkers) * stride)
	results := make([]workerResult, numWorkers)

	workerspool.RunTeam(numWorkers, numRow, func(workerID int, begin, end int64) {
		inst := arena.workerSlice(workerID, stride, numCol)
		result := workerResult{minWidth: math.MaxUint64}
		for row := begin; row < end; row++ {
			b.FillRow(row, inst)
			rowStart := uint64(row) * outputsPerRow
			produced := rowFn(inst, predMargin, out[rowStart:rowStart+outputsPerRow])
			b.ClearRow(row, inst)
			if produced == 0 || produced > outputsPerRow {
				panic(errors.Wrapf(ErrInconsistentOutput, "row %d: computation unit produced %d values, it must produce between 1 and %d",
					row, produced, outputsPerRow))
			}
			result.total += produced
			result.minWidth = min(result.minWidth, produced)
			result.maxWidth = max(result.maxWidth, produced)
			result.numRows++
		}
		results[workerID] = result
	})

	// Only clean arenas get here: a panic above skips returning it to the pool.
	p.scratch.put(arena)

	var combined workerResult
	for _, result := range results {
		combined = combined.combine(result)
	}
	if combined.numRows > 0 && combined.minWidth != combined.maxWidth {
		panic(errors.Wrapf(ErrInconsistentOutput, "rows produced between %d and %d values each, they must all produce the same number",
			combined.minWidth, combined.maxWidth))
	}
	return combined.total
}

// Options for Predict.
type Options struct {
	// NumThreads is the number of worker goroutines: 0 means Predictor.MaxThreads.
	NumThreads int

	// Verbose > 0 logs the prediction timing.
	Verbose int

	// PredMargin requests raw margin scores.
	PredMargin bool
}

// Predict allocates the output buffer, calls PredictBatch and returns the written predictions.
// The buffer is sized and filled under the same unit, even if Load is called concurrently.
func (p *Predictor) Predict(b batch.Batch, opts Options) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.u.IsBound() {
		return nil, errors.Wrapf(unit.ErrNotLoaded, "Predict: a computation unit needs to be loaded first")
	}
	size := resultSize(b.NumRow(), p.u.OutputsPerRow())
	if size > uint64(math.MaxInt)/4 {
		return nil, errors.Wrapf(ErrPrecondition, "%s requires %d outputs, too many to allocate", b, size)
	}
	out := make([]float32, size)
	written, err := p.lockedPredictBatch(b, opts.NumThreads, opts.Verbose, opts.PredMargin, out)
	if err != nil {
		return nil, err
	}
	return out[:written], nil
}
