package module

import (
	"slices"
	"sync"

	perr "recycle/internal/platform/errors"
)

// process wide record of registered components, filled during bootstrap in main
var (
	mu    sync.RWMutex
	order []string
	dirs  = map[string]string{}
)

// Register records a component and its root directory. Names are unique.
func Register(name, dir string) error {
	if name == "" {
		return perr.InvalidArgf("module: empty name")
	}
	if dir == "" {
		return perr.InvalidArgf("module: %s has no directory", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if prev, ok := dirs[name]; ok {
		return perr.Conflictf("module: %s already registered at %s", name, prev)
	}
	dirs[name] = dir
	order = append(order, name)
	return nil
}

// Dir returns the directory registered for name
func Dir(name string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dirs[name]
	return d, ok
}

// Names returns registered names in registration order
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(order)
}

// Dirs returns registered directories in registration order
func Dirs() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, len(order))
	for i, n := range order {
		out[i] = dirs[n]
	}
	return out
}

// Reset clears the registrar for tests
func Reset() {
	mu.Lock()
	order = nil
	dirs = map[string]string{}
	mu.Unlock()
}
