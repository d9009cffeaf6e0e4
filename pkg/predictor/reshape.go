package predictor

import (
	"github.com/pkg/errors"
)

// reshapeOutput compacts the outputs of units that wrote k < outputsPerRow values per row.
//
// On entry row r's values are at out[r*outputsPerRow : r*outputsPerRow+k], on exit at out[r*k : r*k+k].
// Rows are moved in order, and since k < outputsPerRow the destination of row r never reaches the
// (still unmoved) values of row r+1.
//
// It panics with an error wrapping ErrInconsistentOutput if total isn't a valid compact size.
func reshapeOutput(out []float32, numRow, outputsPerRow, total uint64) {
	if outputsPerRow <= 1 {
		panic(errors.Wrapf(ErrInconsistentOutput, "got %d outputs for %d rows, but a single output group can't be reshaped",
			total, numRow))
	}
	if numRow == 0 || total%numRow != 0 {
		panic(errors.Wrapf(ErrInconsistentOutput, "got %d outputs, not a multiple of the number of rows %d",
			total, numRow))
	}
	k := total / numRow
	if k == 0 || k >= outputsPerRow {
		panic(errors.Wrapf(ErrInconsistentOutput, "got %d outputs per row, it must be between 1 and %d",
			k, outputsPerRow-1))
	}
	for row := uint64(0); row < numRow; row++ {
		copy(out[row*k:row*k+k], out[row*outputsPerRow:row*outputsPerRow+k])
	}
}
