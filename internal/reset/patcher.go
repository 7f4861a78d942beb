package reset

import (
	"encoding/json"
	"reflect"
	"sync"
	"unsafe"

	perr "recycle/internal/platform/errors"
	"recycle/internal/reset/rules"
)

// Descriptor is the cached field layout of one struct type, promoted fields included
type Descriptor struct {
	Type  reflect.Type
	names []string
	index map[string][]int
}

// Names lists the addressable field names in declaration order
func (d *Descriptor) Names() []string { return append([]string(nil), d.names...) }

// Lookup returns the index path of the named field
func (d *Descriptor) Lookup(name string) ([]int, bool) {
	idx, ok := d.index[name]
	return idx, ok
}

// Patcher writes rule baselines into struct fields
type Patcher struct {
	mu    sync.Mutex
	cache map[reflect.Type]*Descriptor
}

// NewPatcher returns a patcher with an empty metadata cache
func NewPatcher() *Patcher { return &Patcher{cache: map[reflect.Type]*Descriptor{}} }

// Describe returns the descriptor of struct type t, computing it at most once
func (p *Patcher) Describe(t reflect.Type) *Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.cache[t]; ok {
		return d
	}
	d := &Descriptor{Type: t, index: map[string][]int{}}
	for _, f := range reflect.VisibleFields(t) {
		d.names = append(d.names, f.Name)
		d.index[f.Name] = f.Index
	}
	p.cache[t] = d
	return d
}

// Cached returns how many struct types have a descriptor
func (p *Patcher) Cached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Apply overwrites each declared field of instance's m.Target with a freshly
// decoded copy of its baseline. Unexported fields are written through an
// accessor that exists only for the duration of the call. A field the type
// does not have, or a baseline it cannot hold, fails with ErrorCodeField.
func (p *Patcher) Apply(instance any, m Match, fields rules.Fields) error {
	v := reflect.ValueOf(instance)
	if !v.IsValid() || !trackableType(v.Type()) || v.IsNil() {
		return perr.InvalidArgf("reset: cannot patch %T", instance)
	}
	target := v.Elem()
	if len(m.Index) > 0 {
		target = target.FieldByIndex(m.Index)
	}
	d := p.Describe(target.Type())

	for _, f := range fields {
		idx, ok := d.Lookup(f.Name)
		if !ok {
			return perr.WithField(perr.Fieldf("reset: class %s: %s has no field %q", m.Class, target.Type(), f.Name), f.Name)
		}
		fv, err := target.FieldByIndexErr(idx)
		if err != nil {
			return perr.WithField(perr.Wrapf(err, perr.ErrorCodeField, "reset: class %s: field %q unreachable", m.Class, f.Name), f.Name)
		}
		baseline := reflect.New(fv.Type())
		if err := json.Unmarshal(f.Value, baseline.Interface()); err != nil {
			return perr.WithField(perr.Wrapf(err, perr.ErrorCodeField,
				"reset: class %s: field %q (%s) cannot hold %s", m.Class, f.Name, fv.Type(), f.Value), f.Name)
		}
		writable(fv).Set(baseline.Elem())
	}
	return nil
}

// writable returns fv itself when exported, otherwise an alias over its address
func writable(fv reflect.Value) reflect.Value {
	if fv.CanSet() {
		return fv
	}
	return reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
}
