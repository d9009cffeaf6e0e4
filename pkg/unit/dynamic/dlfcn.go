//go:build cgo && !windows

package dynamic

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

static void* open_library(const char* name) {
  return dlopen(name, RTLD_LAZY | RTLD_LOCAL);
}
*/
import "C"

import (
	"unsafe"

	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// dlImage is an image opened with dlopen.
type dlImage struct {
	handle unsafe.Pointer
}

// lastError returns and clears the dl* error message.
func lastError() string {
	msg := C.dlerror()
	if msg == nil {
		return "unknown error"
	}
	return C.GoString(msg)
}

// Open loads the shared library at path.
func Open(path string) (unit.Library, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	handle := C.open_library(cPath)
	if handle == nil {
		return nil, errors.Wrapf(unit.ErrLoad, "failed to load dynamic shared library `%s': %s", path, lastError())
	}
	klog.V(2).Infof("dlopen(%q) = %p", path, handle)
	return &library{path: path, image: &dlImage{handle: handle}}, nil
}

func (img *dlImage) lookup(name string) (unsafe.Pointer, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	_ = C.dlerror() // Clear previous errors.
	fn := C.dlsym(img.handle, cName)
	if fn == nil {
		return nil, errors.New(lastError())
	}
	return fn, nil
}

func (img *dlImage) close() error {
	if C.dlclose(img.handle) != 0 {
		return errors.Errorf("dlclose failed: %s", lastError())
	}
	return nil
}
