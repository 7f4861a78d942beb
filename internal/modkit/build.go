package modkit

import (
	"maps"
	"net/http"
	"reflect"
	"slices"

	"recycle/internal/container"
	phttp "recycle/internal/platform/net/http"
	pstrings "recycle/internal/platform/strings"
	"recycle/internal/reset"
)

// Built is a plain struct with the fields modules care about. It implements Module.
type Built struct {
	name   string
	dir    string
	Prefix string
	Mw     []func(http.Handler) http.Handler

	provide []func(*container.Container) error
	routes  func(phttp.Router, Dispatch)
	classes map[string]reflect.Type
}

// Build applies Option funcs and returns a ready Module
func Build(opts ...Option) *Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.routes == nil {
		c.routes = func(phttp.Router, Dispatch) {}
	}
	if c.prefix != "" {
		c.prefix = pstrings.MustPrefix(c.prefix)
	}
	return &Built{
		name:    c.name,
		dir:     c.dir,
		Prefix:  c.prefix,
		Mw:      append([]func(http.Handler) http.Handler(nil), c.mw...),
		provide: append([]func(*container.Container) error(nil), c.provide...),
		routes:  c.routes,
		classes: maps.Clone(c.classes),
	}
}

// Name implements Module
func (b *Built) Name() string { return b.name }

// Dir implements Module
func (b *Built) Dir() string { return b.dir }

// Provide implements Module
func (b *Built) Provide(c *container.Container) error {
	for _, fn := range b.provide {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// MountRoutes implements Module; routes land under Prefix with the module's middleware
func (b *Built) MountRoutes(r phttp.Router, d Dispatch) {
	mount := func(sub phttp.Router) {
		if len(b.Mw) > 0 {
			sub.Use(b.Mw...)
		}
		b.routes(sub, d)
	}
	if b.Prefix == "" {
		r.Group(mount)
		return
	}
	r.Route(b.Prefix, mount)
}

// Classes implements Classifier, registering names in sorted order
func (b *Built) Classes(cat *reset.Catalog) error {
	for _, name := range slices.Sorted(maps.Keys(b.classes)) {
		if err := cat.Register(name, b.classes[name]); err != nil {
			return err
		}
	}
	return nil
}
