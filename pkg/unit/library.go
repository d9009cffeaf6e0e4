// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package unit binds the entry points of a compiled tree-ensemble "computation unit".
//
// A computation unit is a binary image (usually a shared library) exporting:
//
//	size_t get_num_output_group(void);
//	float  predict(union Entry* inst, int pred_margin);                       // if num_output_group == 1
//	size_t predict_multiclass(union Entry* inst, int pred_margin, float* out); // if num_output_group > 1
//
// Images are opened by a Loader, which hands back a Library able to resolve those symbols
// into Go function values. Platform loaders register themselves by name (see Register),
// much like backends do, and the "dynamic" loader (package github.com/gomlx/treerun/pkg/unit/dynamic)
// is the default one.
package unit

import (
	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/pkg/errors"
)

// Symbol names exported by computation units.
const (
	QuerySymbol      = "get_num_output_group"
	PredictSymbol    = "predict"
	MulticlassSymbol = "predict_multiclass"
)

var (
	// ErrLoad is wrapped by errors opening an image.
	ErrLoad = errors.New("failed to load computation unit")

	// ErrSymbolNotFound is wrapped when an image doesn't export a required symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrZeroOutputGroups is returned when get_num_output_group() returns 0.
	ErrZeroOutputGroups = errors.New("num_output_group cannot be zero")

	// ErrNotLoaded is wrapped when using a unit that was closed, or never loaded.
	ErrNotLoaded = errors.New("computation unit not loaded")
)

// QueryFunc is the Go view of `size_t get_num_output_group(void)`.
type QueryFunc func() uint64

// PredictFunc is the Go view of `float predict(union Entry*, int)`.
type PredictFunc func(inst []entry.Entry, predMargin bool) float32

// MulticlassFunc is the Go view of `size_t predict_multiclass(union Entry*, int, float*)`.
// It returns the number of values written in out.
type MulticlassFunc func(inst []entry.Entry, predMargin bool, out []float32) uint64

// Library is an open binary image able to resolve the symbols of a computation unit.
//
// Each resolver returns an error wrapping ErrSymbolNotFound if the symbol is absent.
// The returned functions must be safe for concurrent use, and are invalid after Close.
type Library interface {
	// Path of the image, used in messages.
	Path() string

	QueryFunc(name string) (QueryFunc, error)
	PredictFunc(name string) (PredictFunc, error)
	MulticlassFunc(name string) (MulticlassFunc, error)

	// Close releases the image.
	Close() error
}

// Loader opens binary images.
type Loader interface {
	// Open returns the Library for the image at path, or an error wrapping ErrLoad.
	Open(path string) (Library, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(path string) (Library, error)

// Open implements Loader.
func (fn LoaderFunc) Open(path string) (Library, error) { return fn(path) }
