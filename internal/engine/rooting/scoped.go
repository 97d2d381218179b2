package rooting

import "github.com/trynova/nova-sub004/internal/engine/value"

// Bound pairs a Value with the generation of the GcScope it was obtained
// under. It is the runtime stand-in for a Rust handle branded with 'gc:
// using it after the generation has moved (i.e. after any intervening
// allocation) panics instead of silently reading a possibly-moved index.
type Bound[T any] struct {
	v          value.Value
	generation uint64
	stack      *StackValues
}

// Bind wraps v with scope's current generation.
func Bind[T any](v value.Value, scope GcScope) Bound[T] {
	return Bound[T]{v: v, generation: scope.generation, stack: scope.stack}
}

// BindNoGc wraps v with a NoGcScope's generation.
func BindNoGc[T any](v value.Value, scope NoGcScope) Bound[T] {
	return Bound[T]{v: v, generation: scope.generation, stack: scope.stack}
}

// Get returns the wrapped Value, panicking if a collection has occurred
// since Bind (the handle's brand has expired).
func (b Bound[T]) Get() value.Value {
	if b.stack != nil && b.generation != b.stack.generation {
		panic("rooting: use of a Value handle across a GC safepoint without rebinding")
	}
	return b.v
}

// Unbind discards the generation check, the runtime analog of Rust's
// unsafe unbind() (§4.2: "Unsafe unbind() exists but is reviewed.").
// Callers must independently guarantee v is still valid, e.g. because it
// was just re-scoped.
func (b Bound[T]) Unbind() value.Value {
	return b.v
}

// Rebind re-brands b's value against a newer scope after confirming it is
// still the caller's responsibility to prove liveness (e.g. because the
// value was just re-read from a root). This is the "'a -> 'b" rebinding
// operation of DATA MODEL §3.2.
func Rebind[T any](v value.Value, scope GcScope) Bound[T] {
	return Bind[T](v, scope)
}

// Scoped is a runtime-rooted handle: its Value's index lives in the
// agent's StackValues vector at a fixed offset, which the GC traces as a
// root and rewrites during compaction (§4.3 item 2). Unlike Bound, a
// Scoped survives any number of safepoints.
type Scoped[T any] struct {
	stack  *StackValues
	offset int
}

// Scope copies v into the scope stack and returns a Scoped handle for it.
func Scope[T any](v value.Value, scope GcScope) Scoped[T] {
	return Scoped[T]{stack: scope.stack, offset: scope.stack.Push(v)}
}

// Get reads the current value, reflecting any index rewrite the GC
// performed during a compaction that happened after Scope was called.
func (s Scoped[T]) Get() value.Value {
	return s.stack.Get(s.offset)
}

// Rebind lifts a Scoped value back into the current GcScope generation as
// a Bound, for use at a call site that wants the ergonomic Bound API
// after having protected the value across a safepoint.
func (s Scoped[T]) Rebind(scope GcScope) Bound[T] {
	return Bind[T](s.Get(), scope)
}

// Local is the ergonomic smart-pointer wrapper the original Rust source's
// engine/local_value.rs carries alongside plain branded handles: a Bound
// value plus its own convenience accessors, ported per SPEC_FULL.md's
// "Supplemented features" section.
type Local[T any] struct {
	Bound[T]
}

// NewLocal constructs a Local from a Value under the given scope.
func NewLocal[T any](v value.Value, scope GcScope) Local[T] {
	return Local[T]{Bound: Bind[T](v, scope)}
}
