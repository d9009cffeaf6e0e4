//go:build cgo && windows

package dynamic

import (
	"unsafe"

	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
	"k8s.io/klog/v2"
)

// dllImage is an image opened with LoadLibrary.
type dllImage struct {
	dll *windows.DLL
}

// Open loads the DLL at path.
func Open(path string) (unit.Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, errors.Wrapf(unit.ErrLoad, "failed to load dynamic shared library `%s': %v", path, err)
	}
	klog.V(2).Infof("LoadLibrary(%q) = %#x", path, dll.Handle)
	return &library{path: path, image: &dllImage{dll: dll}}, nil
}

func (img *dllImage) lookup(name string) (unsafe.Pointer, error) {
	proc, err := img.dll.FindProc(name)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(proc.Addr()), nil
}

func (img *dllImage) close() error {
	return img.dll.Release()
}
