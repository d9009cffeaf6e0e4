//go:build !cgo

package dynamic

import (
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
)

// Open always fails: calling into shared libraries requires cgo.
func Open(path string) (unit.Library, error) {
	return nil, errors.Wrapf(unit.ErrLoad, "failed to load dynamic shared library `%s': binary built without cgo", path)
}
