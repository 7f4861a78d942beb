package reset

import (
	"path"
	"reflect"
	"slices"
	"strings"
	"sync"

	perr "recycle/internal/platform/errors"
	"recycle/internal/reset/rules"
)

// Catalog maps rule class names to Go types.
//
// A struct is named implicitly by "pkg.Type" (last import path element) or by
// its full "import/path.Type"; type parameters are dropped. Interfaces have no
// implicit name and must be registered.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type][]string
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{byName: map[string]reflect.Type{}, byType: map[reflect.Type][]string{}}
}

// Register names t explicitly. Pointer types are unwrapped. Registering the
// same pair twice is a no-op; reusing a name for another type is a conflict.
func (c *Catalog) Register(name string, t reflect.Type) error {
	if strings.TrimSpace(name) == "" || t == nil {
		return perr.InvalidArgf("reset: class name and type are required")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct && t.Kind() != reflect.Interface {
		return perr.InvalidArgf("reset: class %q must name a struct or interface, got %s", name, t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byName[name]; ok {
		if prev == t {
			return nil
		}
		return perr.Conflictf("reset: class %q already names %s", name, prev)
	}
	c.byName[name] = t
	c.byType[t] = append(c.byType[t], name)
	return nil
}

// RegisterType is Register for a type parameter
func RegisterType[T any](c *Catalog, name string) error {
	return c.Register(name, reflect.TypeFor[T]())
}

// Lookup returns the explicitly registered type for name
func (c *Catalog) Lookup(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[name]
	return t, ok
}

// Names returns every class name t answers to: explicit names first, then implicit ones
func (c *Catalog) Names(t reflect.Type) []string {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.RLock()
	out := slices.Clone(c.byType[t])
	c.mu.RUnlock()
	for _, n := range implicitNames(t) {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Match returns every class of set that applies to ptr, in rule-set order
func (c *Catalog) Match(ptr reflect.Type, set rules.Set) []Match {
	if !trackableType(ptr) || set.Len() == 0 {
		return nil
	}
	anc := ancestors(ptr.Elem())

	var out []Match
	for _, class := range set.Classes() {
		fields, _ := set.Fields(class)
		if k, ok := c.Lookup(class); ok {
			if k.Kind() == reflect.Interface {
				if ptr.Implements(k) {
					out = append(out, Match{Class: class, Target: ptr.Elem(), Fields: fields})
				}
				continue
			}
			for _, a := range anc {
				if a.t == k {
					out = append(out, Match{Class: class, Target: a.t, Index: a.index, Fields: fields})
					break
				}
			}
			continue
		}
		for _, a := range anc {
			if slices.Contains(implicitNames(a.t), class) {
				out = append(out, Match{Class: class, Target: a.t, Index: a.index, Fields: fields})
				break
			}
		}
	}
	return out
}

type ancestor struct {
	t     reflect.Type
	index []int
}

// ancestors lists t and every struct embedded by value beneath it, shallowest
// first. Pointer embeds are not followed.
func ancestors(t reflect.Type) []ancestor {
	out := []ancestor{{t: t}}
	seen := map[reflect.Type]bool{t: true}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		for j := 0; j < cur.t.NumField(); j++ {
			f := cur.t.Field(j)
			if !f.Anonymous || f.Type.Kind() != reflect.Struct || seen[f.Type] {
				continue
			}
			seen[f.Type] = true
			out = append(out, ancestor{t: f.Type, index: append(slices.Clone(cur.index), j)})
		}
	}
	return out
}

func implicitNames(t reflect.Type) []string {
	if t == nil || t.Name() == "" || t.PkgPath() == "" {
		return nil
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	short := path.Base(t.PkgPath()) + "." + name
	full := t.PkgPath() + "." + name
	if short == full {
		return []string{short}
	}
	return []string{short, full}
}
