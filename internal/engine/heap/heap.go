package heap

import "github.com/holiman/uint256"

// Heap owns the allocation bookkeeping shared by every arena kind
// (COMPONENT DESIGN §4.2): the string interner, size-classed element
// vectors, and the geometric-growth number/BigInt arenas. Concrete
// object-model arenas (objects, shapes, environments, ...) are composed
// alongside this in realm.Heap, since their element types live in
// packages that would otherwise import-cycle back into heap.
type Heap struct {
	Strings  *Strings
	Elements *ElementStore
	Numbers  *Arena[float64]
	BigInts  *Arena[*uint256.Int]

	// AllocCounter increments on every CreateNumber, CreateBigInt and
	// InternString call. NeedsCollection compares it against Threshold;
	// no code in the engine calls NeedsCollection, so a collection runs
	// only when the host calls realm.Agent.CollectGarbage.
	AllocCounter uint64
	Threshold    uint64
}

// New constructs an empty Heap with the given GC trigger threshold.
func New(threshold uint64) *Heap {
	return &Heap{
		Strings:   NewStrings(),
		Elements:  NewElementStore(),
		Numbers:   NewArena[float64](0),
		BigInts:   NewArena[*uint256.Int](0),
		Threshold: threshold,
	}
}

// NeedsCollection reports whether the allocation counter has crossed the
// configured threshold since the last collection.
func (h *Heap) NeedsCollection() bool {
	return h.AllocCounter >= h.Threshold
}

// Bump increments the allocation counter by n; called by the Heap's own
// Create helpers. Allocations made directly on Elements, Strings or the
// other arenas do not bump the counter.
func (h *Heap) Bump(n uint64) {
	h.AllocCounter += n
}

// ResetAllocCounter is called by realm.Agent.CollectGarbage at the end of
// a collection cycle.
func (h *Heap) ResetAllocCounter() {
	h.AllocCounter = 0
}

// CreateNumber allocates a HeapNumber slot for a float that cannot be
// represented as a SmallF64 (DATA MODEL §3.1 invariant 2).
func (h *Heap) CreateNumber(f float64) Index {
	h.Bump(1)
	return h.Numbers.Create(f)
}

// CreateBigInt allocates a HeapBigInt slot for an integer outside the
// SmallBigInt 56-bit range.
func (h *Heap) CreateBigInt(i *uint256.Int) Index {
	h.Bump(1)
	return h.BigInts.Create(i)
}

// InternString interns s, bumping the allocation counter only when a new
// slot is actually created is not observable from here; Strings.Intern
// is idempotent for already-interned content, so we conservatively bump
// once per call, matching how the teacher's LRU-backed caches account a
// lookup-or-insert as one unit of allocation pressure.
func (h *Heap) InternString(s string) Index {
	h.Bump(1)
	return h.Strings.Intern(s)
}
