package object

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Shape is the shared (prototype, ordered keys) descriptor factoring
// object layout (DATA MODEL §3.4, GLOSSARY "Shape").
type Shape struct {
	Prototype   value.Value // Undefined if null prototype
	HasProto    bool
	Keys        heap.ElementsID
	Len         uint32
	Transitions map[value.Value]heap.Index // PropertyKey.Value() -> ShapeId
	Parent      heap.Index                 // 0 = root shape
	ParentKey   value.Value                // key that produced this shape from Parent

	// InstanceCount is the number of live objects whose Object.ShapeID is
	// this shape. The GC uses it, together with live descendants, to
	// decide shape collectibility (TESTABLE PROPERTIES item 5).
	InstanceCount uint32
}

// ShapeStore owns every Shape in the heap, addressed by heap.Index
// ("ShapeId" in spec.md).
type ShapeStore struct {
	arena *heap.Arena[Shape]
	elems *heap.ElementStore
}

// NewShapeStore constructs an empty store backed by elems for key lists.
func NewShapeStore(elems *heap.ElementStore) *ShapeStore {
	s := &ShapeStore{arena: heap.NewArena[Shape](0), elems: elems}
	// slot 0 reserved by Arena; create the canonical empty root shape at
	// slot 1 so every fresh object without transitions shares it.
	s.arena.Create(Shape{
		Keys:        s.elems.Allocate(0),
		Transitions: make(map[value.Value]heap.Index),
	})
	return s
}

// RootShape returns the canonical empty-keys, null-prototype shape.
func (s *ShapeStore) RootShape() heap.Index { return heap.Index(1) }

// Get returns the shape at id.
func (s *ShapeStore) Get(id heap.Index) *Shape { return s.arena.Get(id) }

// WithPrototype returns (creating if needed) the shape identical to base
// except for its prototype. Distinct from key transitions: prototype
// changes do not share the transition table, since OBJECT MODEL §4.5
// scopes transitions to "Adding a property k".
func (s *ShapeStore) WithPrototype(base heap.Index, proto value.Value, hasProto bool) heap.Index {
	b := s.Get(base)
	if b.HasProto == hasProto && value.SameValueNonNumberOrEqualTag(b.Prototype, proto) {
		return base
	}
	for i := 1; i < s.arena.Len(); i++ {
		sh := s.Get(heap.Index(i))
		if sh.Parent == 0 && sh.Keys == b.Keys && sh.Len == b.Len && sh.HasProto == hasProto &&
			value.SameValueNonNumberOrEqualTag(sh.Prototype, proto) {
			return heap.Index(i)
		}
	}
	return s.arena.Create(Shape{
		Prototype:   proto,
		HasProto:    hasProto,
		Keys:        b.Keys,
		Len:         b.Len,
		Transitions: make(map[value.Value]heap.Index),
		Parent:      0,
	})
}

// Transition implements OBJECT MODEL §4.5's shape-transition algorithm:
// adding key to the shape at base either reuses an existing transition
// edge or creates shape S' with Keys = S.Keys ++ [key].
func (s *ShapeStore) Transition(base heap.Index, key PropertyKey) heap.Index {
	b := s.Get(base)
	if existing, ok := b.Transitions[key.Value()]; ok {
		return existing
	}
	newKeys := s.elems.Allocate(b.Len + 1)
	for _, k := range s.Keys(base) {
		newKeys = s.elems.Append(newKeys, k)
	}
	newKeys = s.elems.Append(newKeys, key.Value())
	child := s.arena.Create(Shape{
		Prototype:   b.Prototype,
		HasProto:    b.HasProto,
		Keys:        newKeys,
		Len:         b.Len + 1,
		Transitions: make(map[value.Value]heap.Index),
		Parent:      base,
		ParentKey:   key.Value(),
	})
	// Re-fetch b: Transitions map mutation below must land on the live
	// shape record, and Arena.Create may have been preceded by growth
	// that invalidated the earlier pointer under some Arena backings.
	s.Get(base).Transitions[key.Value()] = child
	return child
}

// KeyOffset returns the index into the shape's keys (and the paired
// values vector) for key, or -1 if key is not present.
func (s *ShapeStore) KeyOffset(id heap.Index, key value.Value) int {
	sh := s.Get(id)
	keys := s.elems.Get(sh.Keys)
	for i := uint32(0); i < sh.Len; i++ {
		if value.SameValueNonNumberOrEqualTag(keys[i], key) {
			return int(i)
		}
	}
	return -1
}

// Keys returns the ordered property keys of shape id.
func (s *ShapeStore) Keys(id heap.Index) []value.Value {
	sh := s.Get(id)
	return s.elems.Get(sh.Keys)[:sh.Len]
}

// Retain/Release adjust InstanceCount as objects adopt/drop a shape.
func (s *ShapeStore) Retain(id heap.Index) { s.Get(id).InstanceCount++ }
func (s *ShapeStore) Release(id heap.Index) {
	sh := s.Get(id)
	if sh.InstanceCount > 0 {
		sh.InstanceCount--
	}
}

// Len reports the number of shape slots, for GC iteration.
func (s *ShapeStore) Len() int { return s.arena.Len() }

// Arena exposes the backing arena for compaction.
func (s *ShapeStore) Arena() *heap.Arena[Shape] { return s.arena }

// RewriteLivePrototypes rewrites Shape.Prototype through translate for
// every shape still directly held by a live object (InstanceCount > 0),
// the shape counterpart of the sweep_values pass (§4.4 step 4). Shapes
// with no live instance are skipped even if still present in the arena:
// ShapeStore never compacts away a dead shape record, only reaps the
// transition edges pointing at it (ReapDeadTransitions), so a dead
// shape's Prototype may reference an object this cycle actually
// reclaimed -- an index no longer covered by the compaction plan, which
// would make heap.Translate panic if rewritten unconditionally.
func (s *ShapeStore) RewriteLivePrototypes(translate func(value.Value) value.Value) {
	for i := 1; i < s.arena.Len(); i++ {
		sh := s.Get(heap.Index(i))
		if sh.InstanceCount > 0 && sh.HasProto {
			sh.Prototype = translate(sh.Prototype)
		}
	}
}

// ReapDeadTransitions removes transition edges to shapes that have
// neither a live instance nor a live descendant, the weak-eviction rule
// of OBJECT MODEL §4.5 ("transition edges hold shapes weakly... This
// prevents shape leaks from polymorphic code paths") and TESTABLE
// PROPERTIES item 5. live[id] reports whether a shape was independently
// marked reachable this cycle (e.g. because some live object still
// points at a shape even with InstanceCount==0 due to a bug, which this
// treats conservatively as alive).
func (s *ShapeStore) ReapDeadTransitions(live []bool) {
	memo := make(map[heap.Index]bool)
	var alive func(id heap.Index) bool
	alive = func(id heap.Index) bool {
		if v, ok := memo[id]; ok {
			return v
		}
		memo[id] = false // break cycles conservatively; shapes form a tree so this should not recurse
		sh := s.Get(id)
		result := sh.InstanceCount > 0 || (int(id) < len(live) && live[id])
		if !result {
			for _, child := range sh.Transitions {
				if alive(child) {
					result = true
					break
				}
			}
		}
		memo[id] = result
		return result
	}
	for i := 1; i < s.arena.Len(); i++ {
		id := heap.Index(i)
		sh := s.Get(id)
		for k, child := range sh.Transitions {
			if !alive(child) {
				delete(sh.Transitions, k)
			}
		}
	}
}
