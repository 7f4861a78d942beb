package reset

import (
	"context"
	"errors"
	"reflect"
	"testing"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	"recycle/internal/reset/rules"
)

// Counter is patched by rules keyed "reset.Counter"
type Counter struct {
	value int
	Label string
}

// Base and Derived exercise ancestor matching through embedding
type Base struct {
	x   int
	tag string
}

type Middle struct {
	Base
	depth int
}

type Derived struct {
	Middle
	other string
}

// Named is matched only through an explicit catalog entry
type Named interface{ Name() string }

type Widget struct {
	name string
	hits int
}

func (w *Widget) Name() string { return w.name }

// selfReset implements Resetter
type selfReset struct {
	value   int
	calls   int
	fail    error
	boom    bool
	onReset func()
}

func (s *selfReset) ResetState() error {
	s.calls++
	if s.onReset != nil {
		s.onReset()
	}
	if s.boom {
		panic("boom")
	}
	s.value = -1
	return s.fail
}

// convention has ResetState with a signature other than Resetter's
type convention struct {
	value int
	calls int
}

func (c *convention) ResetState() { c.calls++; c.value = 0 }

type conventionErr struct{ note string }

func (c *conventionErr) ResetState() (bool, error) { return false, errors.New("not today") }

// Plain qualifies for nothing
type Plain struct {
	value int
	note  string
}

type empty struct{}

func mustSet(t *testing.T, doc string) rules.Set {
	t.Helper()
	s, err := rules.Parse("test.json", []byte(doc))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	return s
}

func quietEngine(set rules.Set, opts ...Option) *Engine {
	base := []Option{
		WithCollector(func() {}),
		WithOrderer(SequenceOrder),
		WithLogger(logger.Nop()),
	}
	return New(set, append(base, opts...)...)
}

type fakeContainer struct {
	calls int
	value any
	err   error
	asked reflect.Type
}

func (f *fakeContainer) Resolve(_ context.Context, t reflect.Type) (any, error) {
	f.calls++
	f.asked = t
	return f.value, f.err
}

func mustCode(t *testing.T, err error, code perr.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %v, got nil", code)
	}
	if got := perr.CodeOf(err); got != code {
		t.Fatalf("code = %v, want %v (%v)", got, code, err)
	}
}

// tinyCounter is small enough for the runtime's tiny allocator
type tinyCounter struct{ value int }
