// Package inproc implements a computation unit loader backed by Go functions registered in the
// running process.
//
// It is useful for tests, and to serve units written in Go with the same engine used for
// compiled shared libraries. Import it to register the "inproc" loader:
//
//	import _ "github.com/gomlx/treerun/pkg/unit/inproc"
//
// and open units with "inproc:<name>".
package inproc

import (
	"sync"

	"github.com/gomlx/treerun/pkg/core/entry"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/pkg/errors"
)

// LoaderName under which the loader is registered.
const LoaderName = "inproc"

func init() {
	unit.Register(LoaderName, Loader)
}

// Image is a set of symbols, keyed by name. Values must be of one of the types
// unit.QueryFunc, unit.PredictFunc or unit.MulticlassFunc (or the equivalent func literals).
type Image map[string]any

var (
	imagesMu sync.RWMutex
	images   = make(map[string]Image)
)

// Register makes image available under name. Registering a name twice replaces the image for
// future Open calls.
func Register(name string, image Image) {
	imagesMu.Lock()
	defer imagesMu.Unlock()
	images[name] = image
}

// Unregister removes the image registered under name.
func Unregister(name string) {
	imagesMu.Lock()
	defer imagesMu.Unlock()
	delete(images, name)
}

// Loader opens registered images by name.
var Loader unit.Loader = unit.LoaderFunc(Open)

// Open returns the library for the image registered under name.
func Open(name string) (unit.Library, error) {
	imagesMu.RLock()
	image, found := images[name]
	imagesMu.RUnlock()
	if !found {
		return nil, errors.Wrapf(unit.ErrLoad, "failed to load computation unit `%s': no in-process image registered with that name", name)
	}
	return &library{name: name, image: image}, nil
}

// library implements unit.Library.
type library struct {
	name   string
	image  Image
	closed bool
	mu     sync.Mutex
}

var _ unit.Library = (*library)(nil)

// Path implements unit.Library.
func (l *library) Path() string { return LoaderName + ":" + l.name }

func (l *library) lookup(name string) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.Wrapf(unit.ErrNotLoaded, "image %q already closed", l.Path())
	}
	sym, found := l.image[name]
	if !found || sym == nil {
		return nil, errors.Wrapf(unit.ErrSymbolNotFound, "symbol %q not found in %q", name, l.Path())
	}
	return sym, nil
}

// symbolAs converts the symbol to the requested function type.
func symbolAs[F any](l *library, name string) (F, error) {
	var zero F
	sym, err := l.lookup(name)
	if err != nil {
		return zero, err
	}
	if fn, ok := sym.(F); ok {
		return fn, nil
	}
	return zero, errors.Wrapf(unit.ErrSymbolNotFound, "symbol %q in %q has type %T, wanted %T", name, l.Path(), sym, zero)
}

// QueryFunc implements unit.Library.
func (l *library) QueryFunc(name string) (unit.QueryFunc, error) {
	if fn, err := symbolAs[func() uint64](l, name); err == nil {
		return fn, nil
	}
	return symbolAs[unit.QueryFunc](l, name)
}

// PredictFunc implements unit.Library.
func (l *library) PredictFunc(name string) (unit.PredictFunc, error) {
	if fn, err := symbolAs[func([]entry.Entry, bool) float32](l, name); err == nil {
		return fn, nil
	}
	return symbolAs[unit.PredictFunc](l, name)
}

// MulticlassFunc implements unit.Library.
func (l *library) MulticlassFunc(name string) (unit.MulticlassFunc, error) {
	if fn, err := symbolAs[func([]entry.Entry, bool, []float32) uint64](l, name); err == nil {
		return fn, nil
	}
	return symbolAs[unit.MulticlassFunc](l, name)
}

// Close implements unit.Library.
func (l *library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.Errorf("image %q closed twice", l.Path())
	}
	l.closed = true
	return nil
}
