package unit

import (
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DefaultLoaderName is the loader used for paths without a "<loader>:" prefix.
const DefaultLoaderName = "dynamic"

var (
	registryMu sync.RWMutex
	loaders    = make(map[string]Loader)
)

// Register a loader with the given name, so that paths of the form "<name>:<path>" are opened
// with it.
//
// To be safe, call Register during initialization of a package.
func Register(name string, loader Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	loaders[name] = loader
}

// List returns the names of the registered loaders, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve the loader for spec, and the path to pass it.
//
// The format of spec is "<loader>:<path>" where "<loader>" is a registered loader name,
// or just "<path>", opened with the DefaultLoaderName loader. A prefix that isn't the name of a
// registered loader is considered part of the path (e.g. "C:\models\unit.dll").
func Resolve(spec string) (Loader, string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if idx := strings.Index(spec, ":"); idx > 0 {
		if loader, found := loaders[spec[:idx]]; found {
			return loader, spec[idx+1:], nil
		}
	}
	loader, found := loaders[DefaultLoaderName]
	if !found {
		return nil, "", errors.Wrapf(ErrLoad, "no %q loader registered to open %q -- "+
			"maybe import it with import _ \"github.com/gomlx/treerun/pkg/unit/dynamic\"?", DefaultLoaderName, spec)
	}
	return loader, spec, nil
}

// Open resolves the loader for spec (see Resolve) and opens the image.
func Open(spec string) (Library, error) {
	loader, path, err := Resolve(spec)
	if err != nil {
		return nil, err
	}
	return loader.Open(path)
}
