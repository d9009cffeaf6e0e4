// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batch defines read-only views over caller-supplied feature matrices, and how one
// row of each view is materialized into entry.Entry slots for a compiled tree ensemble.
//
// Two views are provided:
//
//   - Dense: a row-major matrix with a missing-value sentinel (which may be NaN).
//   - CSR: a compressed-sparse-row matrix, where absent (row, col) pairs are missing.
//
// Neither view owns its backing storage: the caller must keep it alive, and unchanged,
// while predictions run.
package batch

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/pkg/errors"
)

// ErrInvalidInput is wrapped by every error reporting malformed batch data: inconsistent
// sizes, out-of-range column indices or NaN values with a finite missing sentinel.
var ErrInvalidInput = errors.New("invalid batch input")

// ErrTooManyRows is wrapped when a batch declares more rows than MaxNumRow.
var ErrTooManyRows = errors.New("number of rows exceeds the row index range")

// MaxNumRow is the largest number of rows accepted in one batch.
//
// Rows are indexed with int64, and CSR views hold NumRow+1 offsets, so NumRow+1 must
// still be representable.
const MaxNumRow = uint64(math.MaxInt64 - 1)

// Kind of batch view.
type Kind int

const (
	KindDense Kind = iota
	KindCSR
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindCSR:
		return "csr"
	}
	return "unknown"
}

// Batch is a read-only view over a collection of rows.
//
// FillRow and ClearRow form the row materializer: FillRow writes the observed columns of row
// into inst (which must have at least NumCol slots, all missing on entry), and ClearRow
// restores every slot FillRow touched back to missing. Both assume Validate succeeded.
type Batch interface {
	fmt.Stringer

	Kind() Kind
	NumRow() uint64
	NumCol() uint64

	// Validate checks the view is consistent and that all values are acceptable.
	// It returns an error wrapping ErrInvalidInput or ErrTooManyRows.
	Validate() error

	FillRow(row int64, inst []entry.Entry)
	ClearRow(row int64, inst []entry.Entry)
}

// CheckNumRow returns an error wrapping ErrTooManyRows if numRow cannot be indexed.
func CheckNumRow(numRow uint64) error {
	if numRow > MaxNumRow {
		return errors.Wrapf(ErrTooManyRows, "batch has %d rows, at most %d are supported", numRow, MaxNumRow)
	}
	return nil
}

// checkedMul returns a*b, or an error if it overflows.
func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "%d x %d overflows", a, b)
	}
	return lo, nil
}

func isNaN(v float32) bool { return v != v }
