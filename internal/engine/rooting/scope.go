// Package rooting implements the lifetime/rooting discipline of
// COMPONENT DESIGN §4.3: a runtime scoped-value stack that lets mutator
// code survive GC across safepoints, plus the GcScope/NoGcScope tokens
// that gate which code may allocate.
//
// Rust's compile-time lifetime brands ('gc / 'scope) have no Go
// equivalent, so this package approximates them with a runtime
// generation counter: every GcScope carries the StackValues generation
// it was minted against, and Bound[T] checks that generation on use,
// panicking (an internal-consistency failure per ERROR HANDLING DESIGN
// §7) rather than silently reading a stale handle across a collection.
// This is a deliberate, recorded simplification -- see DESIGN.md.
package rooting

import "github.com/trynova/nova-sub004/internal/engine/value"

// StackValues is the agent's scoped-value stack (DATA MODEL §3.8:
// "a stack-value scope vector"). Scoped handles store their offset into
// this vector; the GC traces every live slot as a root and rewrites it in
// place, which is what lets a Scoped survive a collection.
type StackValues struct {
	slots []value.Value
	// generation increments on every collection; GcScope/NoGcScope tokens
	// and Bound[T] handles are stamped with the generation active when
	// they were minted, and become invalid (panic on use) once it moves.
	generation uint64
}

// NewStackValues returns an empty scope stack.
func NewStackValues() *StackValues {
	return &StackValues{}
}

// Len reports the current stack depth, used by ScopeHandle to restore on
// drop.
func (s *StackValues) Len() int { return len(s.slots) }

// Push appends v and returns its offset.
func (s *StackValues) Push(v value.Value) int {
	s.slots = append(s.slots, v)
	return len(s.slots) - 1
}

// Get reads the value at offset.
func (s *StackValues) Get(offset int) value.Value {
	return s.slots[offset]
}

// Set overwrites the value at offset; used by the GC sweep pass to
// rewrite a Scoped handle's index in place after compaction.
func (s *StackValues) Set(offset int, v value.Value) {
	s.slots[offset] = v
}

// Truncate drops every slot at or beyond n. ScopeHandle calls this on
// drop to implement the LIFO scope-frame discipline of §4.3.
func (s *StackValues) Truncate(n int) {
	s.slots = s.slots[:n]
}

// All returns every currently rooted slot, for the GC's root-enumeration
// pass (§4.4 step 1).
func (s *StackValues) All() []value.Value {
	return s.slots
}

// Generation reports the current collection generation.
func (s *StackValues) Generation() uint64 { return s.generation }

// Bump is called by the GC at the start of every collection cycle,
// invalidating every GcScope/NoGcScope/Bound[T] minted against the prior
// generation.
func (s *StackValues) Bump() { s.generation++ }

// GcScope proves its holder may allocate and that prior Bound[T] handles
// minted against an earlier generation are no longer trustworthy.
// COMPONENT DESIGN §4.3: "Functions that may allocate take a GcScope...
// The scope produces a fresh, strictly shorter 'gc on each call,
// invalidating prior handles." Only the VM dispatch loop's with_vm_gc
// helper and the public entry point construct one directly; everyone
// else receives it as a parameter and, when calling further into
// allocating code, calls Reborrow to mint the next generation's scope.
type GcScope struct {
	stack      *StackValues
	generation uint64
}

// NoGcScope proves its holder will not allocate; the fast paths of
// property access (§4.5's try_ variants) and VM dispatch run under one.
type NoGcScope struct {
	stack      *StackValues
	generation uint64
}

// NewRootScope mints the outermost GcScope, called once by the public
// entry point (run/call_function, §6.1).
func NewRootScope(stack *StackValues) GcScope {
	return GcScope{stack: stack, generation: stack.generation}
}

// AsNoGc narrows a GcScope to a NoGcScope for a non-allocating sub-call.
func (g GcScope) AsNoGc() NoGcScope {
	return NoGcScope{stack: g.stack, generation: g.generation}
}

// Reborrow mints the next-generation GcScope after an allocation may
// have occurred, the runtime analog of producing "a fresh, strictly
// shorter 'gc". Call this immediately after any operation that may have
// triggered a collection.
func (g GcScope) Reborrow() GcScope {
	return GcScope{stack: g.stack, generation: g.stack.generation}
}

// Stack exposes the scope stack for Scope()/ScopeHandle.
func (g GcScope) Stack() *StackValues { return g.stack }

// Stack exposes the scope stack for NoGcScope holders.
func (n NoGcScope) Stack() *StackValues { return n.stack }

// ScopeHandle is taken on entry to a scope frame and, on Drop, truncates
// the stack-values vector back to its entry length -- the "LIFO" rule of
// §4.3: "a ScopeHandle is taken on entry to each scope frame and restores
// the vector length on drop."
type ScopeHandle struct {
	stack *StackValues
	mark  int
}

// Enter records the current stack depth.
func Enter(stack *StackValues) ScopeHandle {
	return ScopeHandle{stack: stack, mark: stack.Len()}
}

// Drop restores the stack to its depth at Enter, releasing every Scoped
// value pushed since.
func (h ScopeHandle) Drop() {
	h.stack.Truncate(h.mark)
}
