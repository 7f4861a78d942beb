package reset

import (
	"reflect"

	"recycle/internal/reset/rules"
)

// Resetter is implemented by instances that restore their own baseline
type Resetter interface {
	ResetState() error
}

// MethodName is the well-known self reset method name
const MethodName = "ResetState"

// Kind is the reset strategy of a tracked instance
type Kind uint8

const (
	// KindNone means the instance does not qualify
	KindNone Kind = iota
	// KindSelf calls Resetter.ResetState
	KindSelf
	// KindConvention calls a ResetState method with some other signature
	KindConvention
	// KindRules patches fields from every matching rule class
	KindRules
)

func (k Kind) String() string {
	switch k {
	case KindSelf:
		return "self"
	case KindConvention:
		return "convention"
	case KindRules:
		return "rules"
	default:
		return "none"
	}
}

// Match is one rule class applying to a pointer type
type Match struct {
	Class  string
	Target reflect.Type // struct whose fields are patched
	Index  []int        // path from the instance's struct to Target; nil for the struct itself
	Fields rules.Fields
}

// Plan is decided once per pointer type at registration
type Plan struct {
	Kind    Kind
	Matches []Match
}

var (
	resetterType = reflect.TypeFor[Resetter]()
	errorType    = reflect.TypeFor[error]()
)

// planFor resolves the strategy for ptr. Self wins over convention, which wins over rules.
func planFor(ptr reflect.Type, cat *Catalog, set rules.Set) Plan {
	if !trackableType(ptr) {
		return Plan{}
	}
	if ptr.Implements(resetterType) {
		return Plan{Kind: KindSelf}
	}
	if m, ok := ptr.MethodByName(MethodName); ok && m.Type.NumIn() == 1 {
		return Plan{Kind: KindConvention}
	}
	if ms := cat.Match(ptr, set); len(ms) > 0 {
		return Plan{Kind: KindRules, Matches: ms}
	}
	return Plan{}
}

// trackableType accepts pointers to non-zero-size structs only
func trackableType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer &&
		t.Elem().Kind() == reflect.Struct && t.Elem().Size() > 0
}

// tinySize mirrors the runtime's tiny allocator block size
const tinySize = 16

// sharesTinyBlock reports whether values of struct type t may be packed with
// other small allocations into one block. Such a block is freed, and its weak
// pointers cleared, only when every value in it is unreachable, so a dropped
// instance can stay tracked while a neighbour lives.
func sharesTinyBlock(t reflect.Type) bool {
	return t.Size() < tinySize && !hasPointers(t)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Interface, reflect.Chan, reflect.Func:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
