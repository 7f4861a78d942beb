package reset

import (
	"cmp"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"unsafe"
	"weak"
)

// Handle is a weak reference to a tracked instance
type Handle struct {
	seq  uint64
	ptr  weak.Pointer[byte]
	typ  reflect.Type
	plan Plan
}

// Seq is the registration sequence number, starting at 1
func (h Handle) Seq() uint64 { return h.seq }

// Type is the instance's pointer type
func (h Handle) Type() reflect.Type { return h.typ }

// Plan is the reset strategy decided at registration
func (h Handle) Plan() Plan { return h.plan }

// Value returns a strong reference, or false once the instance is collected
func (h Handle) Value() (any, bool) {
	p := h.ptr.Value()
	if p == nil {
		return nil, false
	}
	return reflect.NewAt(h.typ.Elem(), unsafe.Pointer(p)).Interface(), true
}

func (h Handle) alive() bool { return h.ptr.Value() != nil }

// Registry tracks instances without keeping them alive. Entries disappear
// when their instance is collected; the engine never removes them itself.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	bySeq   map[uint64]Handle
	byPtr   map[weak.Pointer[byte]]uint64
	dropped uint64
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{bySeq: map[uint64]Handle{}, byPtr: map[weak.Pointer[byte]]uint64{}}
}

// Add tracks instance under plan and reports whether a new entry was made.
// Values that are not pointers to heap allocated, non-zero-size structs are
// refused, as is an instance already tracked.
func (r *Registry) Add(instance any, plan Plan) bool {
	v := reflect.ValueOf(instance)
	if !v.IsValid() || !trackableType(v.Type()) || v.IsNil() {
		return false
	}
	p := (*byte)(v.UnsafePointer())

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.next + 1
	// a zero Cleanup means p is not heap memory (package var, zerobase) and
	// cannot be weakly referenced
	c := runtime.AddCleanup(p, r.forget, seq)
	if c == (runtime.Cleanup{}) {
		return false
	}
	wp := weak.Make(p)
	if _, dup := r.byPtr[wp]; dup {
		c.Stop()
		return false
	}
	r.next = seq
	r.bySeq[seq] = Handle{seq: seq, ptr: wp, typ: v.Type(), plan: plan}
	r.byPtr[wp] = seq
	return true
}

// forget runs on the runtime's cleanup goroutine after collection
func (r *Registry) forget(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.bySeq[seq]; ok {
		delete(r.byPtr, h.ptr)
		delete(r.bySeq, seq)
		r.dropped++
	}
}

// Handles returns the live entries in registration order
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	out := make([]Handle, 0, len(r.bySeq))
	for _, h := range r.bySeq {
		if h.alive() {
			out = append(out, h)
		}
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b Handle) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Len returns the number of live entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.bySeq {
		if h.alive() {
			n++
		}
	}
	return n
}

// Contains reports whether instance is tracked
func (r *Registry) Contains(instance any) bool {
	v := reflect.ValueOf(instance)
	if !v.IsValid() || !trackableType(v.Type()) || v.IsNil() {
		return false
	}
	want := (*byte)(v.UnsafePointer())
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.bySeq {
		if h.ptr.Value() == want {
			return true
		}
	}
	return false
}

// Dropped counts entries forgotten after their instance was collected
func (r *Registry) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
