// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unit

import (
	"fmt"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RowFunc predicts one row: it reads inst and writes the row's outputs to out, returning how
// many values were written.
//
// For single-output units out has 1 element and the return is always 1. For multi-output units out
// has NumOutputGroup elements and the return is whatever the unit produced.
type RowFunc func(inst []entry.Entry, predMargin bool, out []float32) uint64

// Unit is a bound computation unit: the open Library, its resolved prediction entry point and
// the number of output groups.
//
// A Unit is read-only after Bind and safe for concurrent predictions, but Close must not race
// with them.
type Unit struct {
	path           string
	lib            Library
	numOutputGroup uint64
	rowFn          RowFunc
}

// Bind opens the image at spec (see Resolve for the format) and binds it.
func Bind(spec string) (*Unit, error) {
	lib, err := Open(spec)
	if err != nil {
		return nil, err
	}
	return BindLibrary(lib)
}

// BindWith opens the image at path with the given loader and binds it.
func BindWith(loader Loader, path string) (*Unit, error) {
	lib, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	return BindLibrary(lib)
}

// BindLibrary queries the number of output groups of lib and resolves the matching prediction
// function. On error lib is closed.
func BindLibrary(lib Library) (u *Unit, err error) {
	defer func() {
		if err != nil {
			if closeErr := lib.Close(); closeErr != nil {
				klog.Warningf("failed to close %q after binding error: %v", lib.Path(), closeErr)
			}
		}
	}()

	path := lib.Path()
	queryFn, err := lib.QueryFunc(QuerySymbol)
	if err != nil {
		return nil, errors.WithMessagef(err, "computation unit %q does not contain a valid %s() function",
			path, QuerySymbol)
	}
	numOutputGroup := queryFn()
	if numOutputGroup == 0 {
		return nil, errors.Wrapf(ErrZeroOutputGroups, "computation unit %q", path)
	}

	u = &Unit{path: path, lib: lib, numOutputGroup: numOutputGroup}
	if numOutputGroup > 1 {
		multiFn, err := lib.MulticlassFunc(MulticlassSymbol)
		if err != nil {
			return nil, errors.WithMessagef(err, "computation unit %q with %d output groups does not contain a valid %s() function",
				path, numOutputGroup, MulticlassSymbol)
		}
		u.rowFn = func(inst []entry.Entry, predMargin bool, out []float32) uint64 {
			return multiFn(inst, predMargin, out)
		}
	} else {
		predictFn, err := lib.PredictFunc(PredictSymbol)
		if err != nil {
			return nil, errors.WithMessagef(err, "computation unit %q does not contain a valid %s() function",
				path, PredictSymbol)
		}
		u.rowFn = func(inst []entry.Entry, predMargin bool, out []float32) uint64 {
			out[0] = predictFn(inst, predMargin)
			return 1
		}
	}
	klog.V(1).Infof("bound computation unit %q: %d output group(s)", path, numOutputGroup)
	return u, nil
}

// Path of the bound image.
func (u *Unit) Path() string { return u.path }

// NumOutputGroup returns the number of output groups, or 0 if the unit was closed.
func (u *Unit) NumOutputGroup() uint64 { return u.numOutputGroup }

// OutputsPerRow returns the number of output slots reserved per row: max(1, NumOutputGroup).
func (u *Unit) OutputsPerRow() uint64 { return max(u.numOutputGroup, 1) }

// IsBound returns whether the unit can be used for predictions.
func (u *Unit) IsBound() bool { return u != nil && u.rowFn != nil }

// RowFunc returns the bound row prediction function, or an error wrapping ErrNotLoaded if the
// unit was closed.
func (u *Unit) RowFunc() (RowFunc, error) {
	if !u.IsBound() {
		return nil, errors.Wrapf(ErrNotLoaded, "a computation unit needs to be loaded first")
	}
	return u.rowFn, nil
}

// PredictRow predicts one row, see RowFunc.
func (u *Unit) PredictRow(inst []entry.Entry, predMargin bool, out []float32) (uint64, error) {
	rowFn, err := u.RowFunc()
	if err != nil {
		return 0, err
	}
	return rowFn(inst, predMargin, out), nil
}

// Close releases the image and invalidates the entry points: the number of output groups, the
// prediction function and the library are dropped together.
func (u *Unit) Close() error {
	if u == nil || u.lib == nil {
		return nil
	}
	lib := u.lib
	u.lib, u.rowFn, u.numOutputGroup = nil, nil, 0
	if err := lib.Close(); err != nil {
		return errors.WithMessagef(err, "closing computation unit %q", u.path)
	}
	klog.V(1).Infof("closed computation unit %q", u.path)
	return nil
}

// String implements fmt.Stringer.
func (u *Unit) String() string {
	if !u.IsBound() {
		return "Unit[not loaded]"
	}
	return fmt.Sprintf("Unit[%q, %d output groups]", u.path, u.numOutputGroup)
}
