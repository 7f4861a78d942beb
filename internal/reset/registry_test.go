package reset

import (
	"runtime"
	"testing"
	"time"

	kit "recycle/internal/platform/testkit"
)

func TestRegistry_AddOrderAndContains(t *testing.T) {
	r := NewRegistry()
	a, b, c := &Counter{value: 1}, &Base{x: 2}, &Counter{value: 3}
	for _, v := range []any{a, b, c, a, b} {
		r.Add(v, Plan{Kind: KindRules})
	}
	hs := r.Handles()
	if len(hs) != 3 || r.Len() != 3 {
		t.Fatalf("handles = %d len = %d", len(hs), r.Len())
	}
	for i, want := range []any{a, b, c} {
		got, ok := hs[i].Value()
		if !ok || got != want {
			t.Fatalf("handle %d = %v %v, want %p", i, got, ok, want)
		}
		if hs[i].Seq() != uint64(i+1) {
			t.Fatalf("seq %d = %d", i, hs[i].Seq())
		}
	}
	if hs[1].Type().String() != "*reset.Base" || hs[1].Plan().Kind != KindRules {
		t.Fatalf("handle metadata = %v %v", hs[1].Type(), hs[1].Plan())
	}
	if !r.Contains(b) || r.Contains(&Counter{}) || r.Contains(nil) || r.Contains(3) {
		t.Fatalf("Contains misreported")
	}
}

func TestRegistry_RefusesUntrackable(t *testing.T) {
	r := NewRegistry()
	cases := []any{nil, Counter{}, (*Counter)(nil), &empty{}, &globalCounter, new(string)}
	for _, v := range cases {
		if r.Add(v, Plan{Kind: KindSelf}) {
			t.Fatalf("Add(%T) accepted", v)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

//go:noinline
func addGarbage(r *Registry, n int) {
	for i := range n {
		r.Add(&Counter{value: i, Label: "garbage"}, Plan{Kind: KindRules})
	}
}

func TestRegistry_ForgetsCollectedEntries(t *testing.T) {
	kit.Serial(t)
	r := NewRegistry()
	keep := &Counter{value: 1}
	r.Add(keep, Plan{Kind: KindRules})
	addGarbage(r, 16)

	deadline := time.Now().Add(5 * time.Second)
	for r.Dropped() < 16 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	if r.Dropped() != 16 {
		t.Fatalf("dropped = %d, want 16", r.Dropped())
	}
	// a new instance after collection still gets a fresh entry
	if !r.Add(&Counter{value: 2}, Plan{Kind: KindRules}) {
		t.Fatalf("fresh instance refused")
	}
	runtime.KeepAlive(keep)
}
