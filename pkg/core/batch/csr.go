package batch

import (
	"fmt"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/pkg/errors"
)

// CSR is a compressed-sparse-row view.
//
// Row r holds the pairs (ColInd[i], Data[i]) for i in [RowPtr[r], RowPtr[r+1]). Columns
// not listed for a row are missing. RowPtr has NumRows+1 offsets.
type CSR struct {
	Data    []float32
	ColInd  []uint32
	RowPtr  []uint64
	NumRows uint64
	NumCols uint64
}

var _ Batch = (*CSR)(nil)

// NewCSR creates a CSR view and validates it. The number of rows is len(rowPtr)-1.
func NewCSR(data []float32, colInd []uint32, rowPtr []uint64, numCol uint64) (*CSR, error) {
	if len(rowPtr) == 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "CSR batch requires at least one row offset")
	}
	c := &CSR{Data: data, ColInd: colInd, RowPtr: rowPtr, NumRows: uint64(len(rowPtr) - 1), NumCols: numCol}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Kind implements Batch.
func (c *CSR) Kind() Kind { return KindCSR }

// NumRow implements Batch.
func (c *CSR) NumRow() uint64 { return c.NumRows }

// NumCol implements Batch.
func (c *CSR) NumCol() uint64 { return c.NumCols }

// NumNonMissing returns the number of stored values across all rows.
func (c *CSR) NumNonMissing() uint64 {
	if len(c.RowPtr) == 0 {
		return 0
	}
	return c.RowPtr[c.NumRows] - c.RowPtr[0]
}

// String implements fmt.Stringer.
func (c *CSR) String() string {
	return fmt.Sprintf("CSR[%d x %d, nnz=%d]", c.NumRows, c.NumCols, c.NumNonMissing())
}

// Validate implements Batch.
func (c *CSR) Validate() error {
	if err := CheckNumRow(c.NumRows); err != nil {
		return err
	}
	if uint64(len(c.RowPtr)) != c.NumRows+1 {
		return errors.Wrapf(ErrInvalidInput, "CSR batch with %d rows requires %d row offsets, got %d",
			c.NumRows, c.NumRows+1, len(c.RowPtr))
	}
	if len(c.Data) != len(c.ColInd) {
		return errors.Wrapf(ErrInvalidInput, "CSR batch has %d values but %d column indices",
			len(c.Data), len(c.ColInd))
	}
	for row := uint64(0); row < c.NumRows; row++ {
		if c.RowPtr[row] > c.RowPtr[row+1] {
			return errors.Wrapf(ErrInvalidInput, "CSR row offsets must be non-decreasing: row_ptr[%d]=%d > row_ptr[%d]=%d",
				row, c.RowPtr[row], row+1, c.RowPtr[row+1])
		}
	}
	if last := c.RowPtr[c.NumRows]; last > uint64(len(c.Data)) {
		return errors.Wrapf(ErrInvalidInput, "CSR row offsets point past the data: row_ptr[%d]=%d, only %d values",
			c.NumRows, last, len(c.Data))
	}
	for i := c.RowPtr[0]; i < c.RowPtr[c.NumRows]; i++ {
		if uint64(c.ColInd[i]) >= c.NumCols {
			return errors.Wrapf(ErrInvalidInput, "CSR column index %d at position %d out of range for %d columns",
				c.ColInd[i], i, c.NumCols)
		}
	}
	return nil
}

// FillRow implements Batch.
func (c *CSR) FillRow(row int64, inst []entry.Entry) {
	begin, end := c.RowPtr[row], c.RowPtr[row+1]
	for i := begin; i < end; i++ {
		inst[c.ColInd[i]].SetValue(c.Data[i])
	}
}

// ClearRow implements Batch: only the slots listed for row are reset.
func (c *CSR) ClearRow(row int64, inst []entry.Entry) {
	begin, end := c.RowPtr[row], c.RowPtr[row+1]
	for i := begin; i < end; i++ {
		inst[c.ColInd[i]].SetMissing()
	}
}

// Rows returns a view of rows [begin, end) sharing the same storage.
//
// The returned RowPtr is a sub-slice of the original, so offsets are still absolute
// positions into Data and ColInd.
func (c *CSR) Rows(begin, end uint64) *CSR {
	if begin > end || end > c.NumRows {
		panic(errors.Errorf("CSR.Rows(%d, %d) out of range for %d rows", begin, end, c.NumRows))
	}
	return &CSR{
		Data:    c.Data,
		ColInd:  c.ColInd,
		RowPtr:  c.RowPtr[begin : end+1],
		NumRows: end - begin,
		NumCols: c.NumCols,
	}
}
