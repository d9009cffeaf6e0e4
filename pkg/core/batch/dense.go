/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package batch

import (
	"fmt"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/pkg/errors"
)

// Dense is a row-major view of NumRows x NumCols float32 values.
//
// Values equal to MissingValue are missing. If MissingValue is NaN, every NaN is missing;
// otherwise a NaN anywhere in Data is invalid input.
type Dense struct {
	Data         []float32
	NumRows      uint64
	NumCols      uint64
	MissingValue float32
}

var _ Batch = (*Dense)(nil)

// NewDense creates a Dense view and validates it.
func NewDense(data []float32, numRow, numCol uint64, missingValue float32) (*Dense, error) {
	d := &Dense{Data: data, NumRows: numRow, NumCols: numCol, MissingValue: missingValue}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Kind implements Batch.
func (d *Dense) Kind() Kind { return KindDense }

// NumRow implements Batch.
func (d *Dense) NumRow() uint64 { return d.NumRows }

// NumCol implements Batch.
func (d *Dense) NumCol() uint64 { return d.NumCols }

// NaNMissing returns whether NaN is the missing sentinel.
func (d *Dense) NaNMissing() bool { return isNaN(d.MissingValue) }

// String implements fmt.Stringer.
func (d *Dense) String() string {
	return fmt.Sprintf("Dense[%d x %d, missing=%g]", d.NumRows, d.NumCols, d.MissingValue)
}

// Validate implements Batch.
func (d *Dense) Validate() error {
	if err := CheckNumRow(d.NumRows); err != nil {
		return err
	}
	size, err := checkedMul(d.NumRows, d.NumCols)
	if err != nil {
		return errors.WithMessagef(err, "dense batch size")
	}
	if uint64(len(d.Data)) != size {
		return errors.Wrapf(ErrInvalidInput, "dense batch of %d x %d requires %d values, got %d",
			d.NumRows, d.NumCols, size, len(d.Data))
	}
	if d.NaNMissing() {
		return nil
	}
	for ii, v := range d.Data {
		if isNaN(v) {
			return errors.Wrapf(ErrInvalidInput,
				"NaN found at row %d, column %d: the missing value must be set to NaN if there is any NaN in the matrix (missing value is %g)",
				uint64(ii)/d.NumCols, uint64(ii)%d.NumCols, d.MissingValue)
		}
	}
	return nil
}

// Row returns the values of row.
func (d *Dense) Row(row int64) []float32 {
	start := uint64(row) * d.NumCols
	return d.Data[start : start+d.NumCols]
}

// FillRow implements Batch.
func (d *Dense) FillRow(row int64, inst []entry.Entry) {
	values := d.Row(row)
	nanMissing := d.NaNMissing()
	for col, v := range values {
		if isNaN(v) {
			// Only reachable with nanMissing, see Validate.
			continue
		}
		if nanMissing || v != d.MissingValue {
			inst[col].SetValue(v)
		}
	}
}

// ClearRow implements Batch.
func (d *Dense) ClearRow(_ int64, inst []entry.Entry) {
	entry.Reset(inst[:d.NumCols])
}

// Rows returns a view of rows [begin, end) sharing the same storage.
func (d *Dense) Rows(begin, end uint64) *Dense {
	if begin > end || end > d.NumRows {
		panic(errors.Errorf("Dense.Rows(%d, %d) out of range for %d rows", begin, end, d.NumRows))
	}
	return &Dense{
		Data:         d.Data[begin*d.NumCols : end*d.NumCols],
		NumRows:      end - begin,
		NumCols:      d.NumCols,
		MissingValue: d.MissingValue,
	}
}
