// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build cgo

package dynamic

/*
#include <stddef.h>

typedef union {
  int missing;
  float fvalue;
} TreeEntry;

typedef size_t (*query_fn_t)(void);
typedef float (*predict_fn_t)(TreeEntry*, int);
typedef size_t (*multiclass_fn_t)(TreeEntry*, int, float*);

static size_t call_query(void* fn) {
  return ((query_fn_t)fn)();
}

static float call_predict(void* fn, TreeEntry* inst, int pred_margin) {
  return ((predict_fn_t)fn)(inst, pred_margin);
}

static size_t call_multiclass(void* fn, TreeEntry* inst, int pred_margin, float* out_pred) {
  return ((multiclass_fn_t)fn)(inst, pred_margin, out_pred);
}
*/
import "C"

import (
	"unsafe"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
)

func init() {
	if int(C.sizeof_TreeEntry) != entry.Size {
		panic(errors.Errorf("entry.Entry has %d bytes, but the C union Entry has %d", entry.Size, int(C.sizeof_TreeEntry)))
	}
}

// symbolOpener is the platform specific part of a library: resolving and closing.
type symbolOpener interface {
	lookup(name string) (unsafe.Pointer, error)
	close() error
}

// library implements unit.Library over a platform image.
type library struct {
	path  string
	image symbolOpener
}

var _ unit.Library = (*library)(nil)

// Path implements unit.Library.
func (l *library) Path() string { return l.path }

func (l *library) resolve(name string) (unsafe.Pointer, error) {
	if l.image == nil {
		return nil, errors.Wrapf(unit.ErrNotLoaded, "shared library `%s' already closed", l.path)
	}
	fn, err := l.image.lookup(name)
	if err != nil {
		return nil, errors.Wrapf(unit.ErrSymbolNotFound, "shared library `%s' does not export %q: %v", l.path, name, err)
	}
	if fn == nil {
		return nil, errors.Wrapf(unit.ErrSymbolNotFound, "shared library `%s' exports a NULL %q", l.path, name)
	}
	return fn, nil
}

// QueryFunc implements unit.Library.
func (l *library) QueryFunc(name string) (unit.QueryFunc, error) {
	fn, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return func() uint64 {
		return uint64(C.call_query(fn))
	}, nil
}

// PredictFunc implements unit.Library.
func (l *library) PredictFunc(name string) (unit.PredictFunc, error) {
	fn, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return func(inst []entry.Entry, predMargin bool) float32 {
		return float32(C.call_predict(fn, entriesPtr(inst), cBool(predMargin)))
	}, nil
}

// MulticlassFunc implements unit.Library.
func (l *library) MulticlassFunc(name string) (unit.MulticlassFunc, error) {
	fn, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return func(inst []entry.Entry, predMargin bool, out []float32) uint64 {
		return uint64(C.call_multiclass(fn, entriesPtr(inst), cBool(predMargin), (*C.float)(unsafe.Pointer(&out[0]))))
	}, nil
}

// Close implements unit.Library.
func (l *library) Close() error {
	if l.image == nil {
		return nil
	}
	image := l.image
	l.image = nil
	return image.close()
}

// entriesPtr passes Go memory to C: it holds no Go pointers, so it's allowed by the cgo rules.
func entriesPtr(inst []entry.Entry) *C.TreeEntry {
	if len(inst) == 0 {
		return nil
	}
	return (*C.TreeEntry)(unsafe.Pointer(&inst[0]))
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
