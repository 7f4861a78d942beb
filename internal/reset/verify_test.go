package reset

import (
	"reflect"
	"slices"
	"testing"

	perr "recycle/internal/platform/errors"
)

func TestVerify_ReportsBrokenRules(t *testing.T) {
	cat := NewCatalog()
	_ = RegisterType[Named](cat, "Named")
	set := mustSet(t, `{
		"reset.Counter": {"value": 0, "ghost": 1},
		"reset.Base":    {"x": "zero"},
		"Named":         {"hits": 0},
		"reset.Orphan":  {"n": 0}
	}`)

	rep := Verify(set, cat, nil,
		reflect.TypeFor[*Counter](), reflect.TypeFor[*Derived](), reflect.TypeFor[*Widget](),
		reflect.TypeFor[*selfReset](), reflect.TypeFor[*Plain]())

	if rep.OK() {
		t.Fatalf("expected errors")
	}
	if len(rep.Errors) != 2 {
		t.Fatalf("errors = %v", rep.Errors)
	}
	var fields []string
	for _, err := range rep.Errors {
		if perr.CodeOf(err) != perr.ErrorCodeField {
			t.Fatalf("code = %v", perr.CodeOf(err))
		}
		e, _ := perr.As(err)
		fields = append(fields, e.Field())
	}
	if !slices.Equal(fields, []string{"ghost", "x"}) {
		t.Fatalf("fields = %v", fields)
	}
	if !slices.Equal(rep.Unmatched, []string{"reset.Orphan"}) {
		t.Fatalf("unmatched = %v", rep.Unmatched)
	}
	if got := rep.Matched["reset.Base"]; len(got) != 1 || got[0] != reflect.TypeFor[*Derived]() {
		t.Fatalf("Base matched = %v", got)
	}
}

func TestVerify_CleanSet(t *testing.T) {
	rep := Verify(mustSet(t, `{"reset.Counter": {"value": 0}}`), nil, nil, reflect.TypeFor[*Counter]())
	if !rep.OK() || len(rep.Unmatched) != 0 {
		t.Fatalf("report = %+v", rep)
	}
}
