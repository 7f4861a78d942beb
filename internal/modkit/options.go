package modkit

import (
	"net/http"
	"reflect"

	"recycle/internal/container"
	phttp "recycle/internal/platform/net/http"
)

// Option mutates build configuration for a module
type Option func(*buildCfg)

// buildCfg is internal wiring state for options
type buildCfg struct {
	name    string
	dir     string
	prefix  string
	mw      []func(http.Handler) http.Handler
	provide []func(*container.Container) error
	routes  func(phttp.Router, Dispatch)
	classes map[string]reflect.Type
}

// WithName sets a module name used in logs and the module registrar
func WithName(name string) Option {
	return func(c *buildCfg) { c.name = name }
}

// WithDir sets the module root; rules are read from <dir>/etc/reset.json
func WithDir(dir string) Option {
	return func(c *buildCfg) { c.dir = dir }
}

// WithPrefix mounts a module under a path prefix
func WithPrefix(prefix string) Option {
	return func(c *buildCfg) { c.prefix = prefix }
}

// WithMiddlewares attaches per module middleware in order
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(c *buildCfg) { c.mw = append(c.mw, mw...) }
}

// WithProvide appends a provider registration run against each worker's container
func WithProvide(fn func(*container.Container) error) Option {
	return func(c *buildCfg) { c.provide = append(c.provide, fn) }
}

// WithRoutes sets the function that attaches endpoints to the module router
func WithRoutes(fn func(phttp.Router, Dispatch)) Option {
	return func(c *buildCfg) { c.routes = fn }
}

// WithClass names t for reset rules under class
func WithClass(class string, t reflect.Type) Option {
	return func(c *buildCfg) {
		if c.classes == nil {
			c.classes = map[string]reflect.Type{}
		}
		c.classes[class] = t
	}
}
