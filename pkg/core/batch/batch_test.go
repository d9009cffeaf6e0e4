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
	"math"
	"testing"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = float32(math.NaN())

// presentColumns returns the set of present columns and their values.
func presentColumns(inst []entry.Entry) map[int]float32 {
	present := make(map[int]float32)
	for col, e := range inst {
		if !e.IsMissing() {
			present[col] = e.Value()
		}
	}
	return present
}

func TestDenseNaNSentinel(t *testing.T) {
	d := must.M1(NewDense([]float32{
		1, nan, 3,
		nan, nan, 0,
	}, 2, 3, nan))
	assert.True(t, d.NaNMissing())

	inst := entry.NewSlice(3)
	d.FillRow(0, inst)
	assert.Equal(t, map[int]float32{0: 1, 2: 3}, presentColumns(inst))
	d.ClearRow(0, inst)
	assert.True(t, entry.AllMissing(inst))

	d.FillRow(1, inst)
	assert.Equal(t, map[int]float32{2: 0}, presentColumns(inst))
}

func TestDenseFiniteSentinel(t *testing.T) {
	d := must.M1(NewDense([]float32{
		-999, 2, 0,
		5, -999, -999,
	}, 2, 3, -999))
	assert.False(t, d.NaNMissing())

	inst := entry.NewSlice(3)
	d.FillRow(0, inst)
	assert.Equal(t, map[int]float32{1: 2, 2: 0}, presentColumns(inst))
	d.ClearRow(0, inst)
	d.FillRow(1, inst)
	assert.Equal(t, map[int]float32{0: 5}, presentColumns(inst))

	// NaN with a finite sentinel is rejected.
	_, err := NewDense([]float32{1, nan}, 1, 2, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "row 0, column 1")
}

func TestDenseSizeMismatch(t *testing.T) {
	_, err := NewDense([]float32{1, 2, 3}, 2, 2, nan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	// Overflowing shapes are rejected instead of wrapping around.
	d := &Dense{NumRows: 1 << 40, NumCols: 1 << 40, MissingValue: nan}
	require.ErrorIs(t, d.Validate(), ErrInvalidInput)
}

func TestDenseRows(t *testing.T) {
	d := must.M1(NewDense([]float32{1, 2, 3, 4, 5, 6}, 3, 2, nan))
	sub := d.Rows(1, 3)
	require.NoError(t, sub.Validate())
	assert.Equal(t, uint64(2), sub.NumRow())
	assert.Equal(t, []float32{3, 4}, sub.Row(0))
	assert.Equal(t, []float32{5, 6}, sub.Row(1))
	assert.Panics(t, func() { d.Rows(2, 4) })
}

func TestCSR(t *testing.T) {
	c := must.M1(NewCSR(
		[]float32{10, 20, 30, 40},
		[]uint32{0, 3, 2, 1},
		[]uint64{0, 2, 2, 4},
		5))
	assert.Equal(t, uint64(3), c.NumRow())
	assert.Equal(t, uint64(4), c.NumNonMissing())

	inst := entry.NewSlice(5)
	want := []map[int]float32{
		{0: 10, 3: 20},
		{},
		{2: 30, 1: 40},
	}
	for row, wantRow := range want {
		c.FillRow(int64(row), inst)
		assert.Equal(t, wantRow, presentColumns(inst), "row %d", row)
		c.ClearRow(int64(row), inst)
		assert.True(t, entry.AllMissing(inst), "row %d not cleared", row)
	}
}

func TestCSRValidation(t *testing.T) {
	testCases := []struct {
		name   string
		data   []float32
		colInd []uint32
		rowPtr []uint64
	}{
		{"decreasing", []float32{1, 2}, []uint32{0, 1}, []uint64{0, 2, 1}},
		{"past data", []float32{1}, []uint32{0}, []uint64{0, 2}},
		{"column out of range", []float32{1}, []uint32{4}, []uint64{0, 1}},
		{"mismatched arrays", []float32{1, 2}, []uint32{0}, []uint64{0, 1}},
		{"no offsets", nil, nil, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCSR(tc.data, tc.colInd, tc.rowPtr, 4)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCSRRows(t *testing.T) {
	c := must.M1(NewCSR([]float32{1, 2, 3}, []uint32{0, 1, 2}, []uint64{0, 1, 2, 3}, 3))
	sub := c.Rows(1, 3)
	require.NoError(t, sub.Validate())
	inst := entry.NewSlice(3)
	sub.FillRow(0, inst)
	assert.Equal(t, map[int]float32{1: 2}, presentColumns(inst))
	sub.ClearRow(0, inst)
	sub.FillRow(1, inst)
	assert.Equal(t, map[int]float32{2: 3}, presentColumns(inst))
}

func TestRowIsolation(t *testing.T) {
	// Materializing consecutive rows on the same slice never leaks values.
	d := must.M1(NewDense([]float32{
		1, 2, 3, 4,
		nan, nan, nan, nan,
		nan, 7, nan, nan,
	}, 3, 4, nan))
	inst := entry.NewSlice(4)
	var got []map[int]float32
	for row := int64(0); row < 3; row++ {
		d.FillRow(row, inst)
		got = append(got, presentColumns(inst))
		d.ClearRow(row, inst)
	}
	assert.Equal(t, []map[int]float32{{0: 1, 1: 2, 2: 3, 3: 4}, {}, {1: 7}}, got)
}

func TestCheckNumRow(t *testing.T) {
	require.NoError(t, CheckNumRow(math.MaxInt64-1))
	require.NoError(t, CheckNumRow(0))
	require.ErrorIs(t, CheckNumRow(math.MaxInt64), ErrTooManyRows)
	require.ErrorIs(t, CheckNumRow(math.MaxUint64), ErrTooManyRows)

	// A zero-column batch can declare that many rows without storage.
	d := &Dense{NumRows: math.MaxInt64 - 1, MissingValue: nan}
	require.NoError(t, d.Validate())
	d.NumRows++
	require.ErrorIs(t, d.Validate(), ErrTooManyRows)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "dense", KindDense.String())
	assert.Equal(t, "csr", KindCSR.String())
}
