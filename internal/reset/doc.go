// Package reset returns long-lived instances to their baseline state between
// units of work so a worker can keep its object graph instead of rebuilding it.
//
// The construction container reports every instance it creates through
// Engine.AddInstance. Instances that can be reset are tracked weakly: the
// engine never keeps an instance alive. At each boundary the host calls
// Engine.RunCycle, which resets every surviving instance in the order chosen
// by an Orderer resolved lazily from the container.
//
// An instance qualifies when it is a non-nil pointer to a heap allocated,
// non-zero-size struct and any of these hold:
//
//   - it implements Resetter;
//   - it has a method named ResetState taking no arguments;
//   - its type, a struct it embeds by value, or an interface it implements is
//     named by a class key of the rule set.
//
// The first two reset themselves and are never patched. The third has every
// matching class's baseline fields written back, unexported fields included.
//
// A struct embedded through a pointer is not an ancestor: an instance of
// struct{ *Base } does not pick up rules keyed by Base. Name the outer type,
// or an interface both implement, instead.
//
// Weak tracking follows the allocator. Structs under 16 bytes with no
// pointers (struct{ value int }) can share a tiny allocation block with other
// values, and the block is only freed once all of them are unreachable. Such
// an instance may stay tracked, and keep being reset, after the host drops
// it. The engine logs a warning the first time it plans such a type.
package reset
