package reset

// Orderer turns the registry into the sequence a cycle walks. The result must
// be deterministic for the same registry content; dead handles in it are
// skipped by the engine.
type Orderer interface {
	Order(r *Registry) []Handle
}

// OrderFunc adapts a function to Orderer
type OrderFunc func(r *Registry) []Handle

// Order implements Orderer
func (f OrderFunc) Order(r *Registry) []Handle { return f(r) }

// SequenceOrder resets in registration order. Containers build dependencies
// before their dependents, so dependencies are reset first.
var SequenceOrder Orderer = OrderFunc(func(r *Registry) []Handle { return r.Handles() })
