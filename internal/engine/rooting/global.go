package rooting

import "github.com/trynova/nova-sub004/internal/engine/value"

// Global is an unbounded root kept outside the LIFO scope-value stack,
// used by host embedders and deferred jobs (§4.3: "A Global<T> is an
// unbounded root kept in a separate vector"). Unlike Scoped, a Global is
// not released when a ScopeHandle drops; the holder must call Release.
type Global[T any] struct {
	roots *Globals
	slot  int
}

// Globals owns every live Global root; the GC traces it during root
// enumeration (§4.4 step 1) exactly like StackValues.
type Globals struct {
	slots []value.Value
	free  []int
}

// NewGlobals returns an empty root set.
func NewGlobals() *Globals { return &Globals{} }

// New roots v, reusing a freed slot if one is available.
func (g *Globals) New(v value.Value) int {
	if n := len(g.free); n > 0 {
		slot := g.free[n-1]
		g.free = g.free[:n-1]
		g.slots[slot] = v
		return slot
	}
	g.slots = append(g.slots, v)
	return len(g.slots) - 1
}

// Get reads the value at slot.
func (g *Globals) Get(slot int) value.Value { return g.slots[slot] }

// Set overwrites slot's value; used by the GC sweep pass to rewrite a
// Global's index in place after compaction.
func (g *Globals) Set(slot int, v value.Value) { g.slots[slot] = v }

// Release frees slot so a future New can reuse it. The freed slot is set
// to Undefined until reused; the GC never traces a freed slot because
// Globals.Live (below) only reports occupied ones.
func (g *Globals) Release(slot int) {
	g.slots[slot] = value.Undefined
	g.free = append(g.free, slot)
}

// Rewrite overwrites every slot (including freed ones, harmlessly, since
// they already hold Undefined) with translate's result, used by the GC
// sweep pass to rewrite every Global in place after compaction without
// needing the caller to reconcile Live()'s filtered index space against
// raw slot offsets.
func (g *Globals) Rewrite(translate func(value.Value) value.Value) {
	for i, v := range g.slots {
		g.slots[i] = translate(v)
	}
}

// Live reports every currently rooted Global value, for root enumeration.
func (g *Globals) Live() []value.Value {
	out := make([]value.Value, 0, len(g.slots))
	freed := make(map[int]bool, len(g.free))
	for _, f := range g.free {
		freed[f] = true
	}
	for i, v := range g.slots {
		if !freed[i] {
			out = append(out, v)
		}
	}
	return out
}

// NewGlobal roots v in roots and returns a handle to it.
func NewGlobal[T any](roots *Globals, v value.Value) Global[T] {
	return Global[T]{roots: roots, slot: roots.New(v)}
}

// Get reads the rooted value.
func (h Global[T]) Get() value.Value { return h.roots.Get(h.slot) }

// Release unroots the value, making its slot available for reuse.
func (h Global[T]) Release() { h.roots.Release(h.slot) }
