// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dynamic loads computation units compiled as shared libraries (".so", ".dylib" or ".dll").
//
// Images are opened with `dlopen` (RTLD_LAZY | RTLD_LOCAL) on unix systems, and with
// `LoadLibrary` on windows, and entry points are called through small C trampolines, so the
// package requires cgo. Without cgo the loader is still registered, but every Open fails.
//
// To use it, import it:
//
//	import _ "github.com/gomlx/treerun/pkg/unit/dynamic"
//
// It registers itself as the default loader (unit.DefaultLoaderName), so plain paths are opened
// with it.
package dynamic

import (
	"github.com/gomlx/treerun/pkg/unit"
)

// LoaderName under which the loader is registered.
const LoaderName = unit.DefaultLoaderName

func init() {
	unit.Register(LoaderName, Loader)
}

// Loader opens shared libraries.
var Loader unit.Loader = unit.LoaderFunc(Open)
