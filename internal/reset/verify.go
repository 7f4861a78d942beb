package reset

import (
	"encoding/json"
	"reflect"

	perr "recycle/internal/platform/errors"
	"recycle/internal/reset/rules"
)

// Report is the outcome of Verify
type Report struct {
	// Matched maps each class to the checked types it applies to
	Matched map[string][]reflect.Type
	// Unmatched lists classes no checked type answered to, in rule-set order
	Unmatched []string
	Errors    []error
}

// OK reports whether no errors were found
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Verify checks set against known pointer types without touching any instance:
// every declared field must exist and every baseline must decode into it.
// These are the failures a reset cycle would otherwise hit at runtime.
func Verify(set rules.Set, cat *Catalog, p *Patcher, types ...reflect.Type) Report {
	if cat == nil {
		cat = NewCatalog()
	}
	if p == nil {
		p = NewPatcher()
	}
	rep := Report{Matched: map[string][]reflect.Type{}}
	for _, t := range types {
		plan := planFor(t, cat, set)
		if plan.Kind != KindRules {
			continue
		}
		for _, m := range plan.Matches {
			rep.Matched[m.Class] = append(rep.Matched[m.Class], t)
			rep.Errors = append(rep.Errors, checkFields(p, t, m)...)
		}
	}
	for _, class := range set.Classes() {
		if _, ok := rep.Matched[class]; !ok {
			rep.Unmatched = append(rep.Unmatched, class)
		}
	}
	return rep
}

func checkFields(p *Patcher, t reflect.Type, m Match) []error {
	d := p.Describe(m.Target)
	var errs []error
	for _, f := range m.Fields {
		idx, ok := d.Lookup(f.Name)
		if !ok {
			errs = append(errs, perr.WithField(perr.Fieldf("reset: class %s: %s has no field %q (via %s)",
				m.Class, m.Target, f.Name, t), f.Name))
			continue
		}
		ft := m.Target.FieldByIndex(idx).Type
		if err := json.Unmarshal(f.Value, reflect.New(ft).Interface()); err != nil {
			errs = append(errs, perr.WithField(perr.Wrapf(err, perr.ErrorCodeField,
				"reset: class %s: field %q (%s) cannot hold %s", m.Class, f.Name, ft, f.Value), f.Name))
		}
	}
	return errs
}
