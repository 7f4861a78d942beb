// Package rules loads reset baselines: per class, the value each listed field
// must hold once an instance is reset.
//
// A rule file is a JSON object of class name to an object of field name to
// baseline value:
//
//	{
//	  "rewrite.Counter": {"value": 0},
//	  "rewrite.Session": {"token": null}
//	}
//
// Key order is kept as written. When the same class appears in several
// sources the first source wins and later entries for it are dropped whole.
package rules

import (
	"encoding/json"
)

// Field is one declared baseline; Value is the undecoded JSON
type Field struct {
	Name  string
	Value json.RawMessage
}

// Fields is the ordered field list of one class
type Fields []Field

// Names returns the field names in declaration order
func (fs Fields) Names() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// Get returns the baseline of the named field
func (fs Fields) Get(name string) (json.RawMessage, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// set replaces an existing entry in place or appends
func (fs Fields) set(name string, v json.RawMessage) Fields {
	for i := range fs {
		if fs[i].Name == name {
			fs[i].Value = v
			return fs
		}
	}
	return append(fs, Field{Name: name, Value: v})
}

type class struct {
	name   string
	fields Fields
	origin string
}

// Set is an immutable, ordered rule set. The zero value is empty and usable.
type Set struct {
	classes []class
	index   map[string]int
}

// Len returns the number of classes
func (s Set) Len() int { return len(s.classes) }

// Classes returns class names in rule-set order
func (s Set) Classes() []string {
	out := make([]string, len(s.classes))
	for i, c := range s.classes {
		out[i] = c.name
	}
	return out
}

// Has reports whether class has rules
func (s Set) Has(class string) bool {
	_, ok := s.index[class]
	return ok
}

// Fields returns a copy of the baselines declared for class
func (s Set) Fields(class string) (Fields, bool) {
	i, ok := s.index[class]
	if !ok {
		return nil, false
	}
	return append(Fields(nil), s.classes[i].fields...), true
}

// Origin returns the source path that supplied class
func (s Set) Origin(class string) string {
	if i, ok := s.index[class]; ok {
		return s.classes[i].origin
	}
	return ""
}

// Map decodes the set into plain maps, for diagnostics and status output
func (s Set) Map() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.classes))
	for _, c := range s.classes {
		m := make(map[string]any, len(c.fields))
		for _, f := range c.fields {
			var v any
			_ = json.Unmarshal(f.Value, &v)
			m[f.Name] = v
		}
		out[c.name] = m
	}
	return out
}

// add appends class unless already present; reports whether it was kept
func (s *Set) add(c class) bool {
	if s.index == nil {
		s.index = map[string]int{}
	}
	if _, ok := s.index[c.name]; ok {
		return false
	}
	s.index[c.name] = len(s.classes)
	s.classes = append(s.classes, c)
	return true
}

// Merge combines sets in order; the first set declaring a class wins and later
// declarations of that class are discarded entirely
func Merge(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		for _, c := range s.classes {
			out.add(class{name: c.name, fields: append(Fields(nil), c.fields...), origin: c.origin})
		}
	}
	return out
}
