package object

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Object is ordinary-object heap data (DATA MODEL §3.4):
// { shape, values, extensible }.
type Object struct {
	Shape      heap.Index
	Values     heap.ElementsID
	Descs      heap.ElementsID
	Extensible bool
}

// Store owns every ordinary Object record plus the Shape and descriptor
// side tables they share.
type Store struct {
	arena  *heap.Arena[Object]
	shapes *ShapeStore
	values *heap.ElementStore
	descs  *heap.SideTable[DescriptorBits]
}

// NewStore constructs an empty object store.
func NewStore(shapes *ShapeStore, values *heap.ElementStore) *Store {
	return &Store{
		arena:  heap.NewArena[Object](0),
		shapes: shapes,
		values: values,
		descs:  heap.NewSideTable[DescriptorBits](),
	}
}

// Shapes exposes the shape store for callers building realms/prototypes.
func (s *Store) Shapes() *ShapeStore { return s.shapes }

// Create allocates a fresh ordinary object with the given prototype and
// no own properties, sharing the canonical root shape (OBJECT MODEL
// §3.4 invariant: objects with equal prototype and empty key lists share
// a shape).
func (s *Store) Create(proto value.Value, hasProto bool) heap.Index {
	shapeID := s.shapes.WithPrototype(s.shapes.RootShape(), proto, hasProto)
	s.shapes.Retain(shapeID)
	obj := Object{
		Shape:      shapeID,
		Values:     s.values.Allocate(0),
		Descs:      s.descs.Allocate(0),
		Extensible: true,
	}
	return s.arena.Create(obj)
}

// Get returns a pointer to the object record at idx.
func (s *Store) Get(idx heap.Index) *Object { return s.arena.Get(idx) }

// Len reports the number of object slots, for GC iteration.
func (s *Store) Len() int { return s.arena.Len() }

// Arena exposes the backing arena for compaction.
func (s *Store) Arena() *heap.Arena[Object] { return s.arena }

// DefineOwnDataProperty implements the data-property path of
// [[DefineOwnProperty]] (OBJECT MODEL §4.5's transition algorithm):
// adding key to obj's shape, appending its value, and setting descriptor
// bits. Accessor properties and exotic-object overrides are handled by
// higher layers (array length invariant, typed-array integer-index
// trapping, proxy dispatch) which call this for the ordinary case.
func (s *Store) DefineOwnDataProperty(idx heap.Index, key PropertyKey, v value.Value, bits DescriptorBits) {
	obj := s.Get(idx)
	if off := s.shapes.KeyOffset(obj.Shape, key.Value()); off >= 0 {
		s.values.Get(obj.Values)[off] = v
		s.descs.Get(obj.Descs)[off] = bits
		return
	}
	oldShape := obj.Shape
	newShape := s.shapes.Transition(oldShape, key)
	s.shapes.Release(oldShape)
	s.shapes.Retain(newShape)
	obj.Shape = newShape
	obj.Values = s.values.Append(obj.Values, v)
	obj.Descs = s.descs.Append(obj.Descs, bits)
}

// Get looks up key on obj only (no prototype walk), returning the value,
// its descriptor bits, and whether it was found. This is the [[Get]]
// fast path usable under a NoGcScope; callers walk the prototype chain
// themselves and fall back to a try_ accessor dispatch (handled by the
// vm package, which alone may allocate) when IsAccessor is set.
func (s *Store) GetOwn(idx heap.Index, key value.Value) (v value.Value, bits DescriptorBits, found bool) {
	obj := s.Get(idx)
	off := s.shapes.KeyOffset(obj.Shape, key)
	if off < 0 || !s.descs.Get(obj.Descs)[off].Present() {
		return value.Undefined, 0, false
	}
	return s.values.Get(obj.Values)[off], s.descs.Get(obj.Descs)[off], true
}

// HasOwn reports whether obj has an own property named key.
func (s *Store) HasOwn(idx heap.Index, key value.Value) bool {
	obj := s.Get(idx)
	off := s.shapes.KeyOffset(obj.Shape, key)
	return off >= 0 && s.descs.Get(obj.Descs)[off].Present()
}

// Delete removes an own property. Ordinary objects do not share the
// reverse shape transition (deletion does not retarget to a narrower
// shape in this implementation, matching the common "deletion is rare,
// dictionary-mode unnecessary for a reference engine" simplification);
// deletion instead tombstones the slot by writing Undefined and clearing
// the descriptor's configurable bit is the caller's job to check first.
func (s *Store) Delete(idx heap.Index, key value.Value) bool {
	obj := s.Get(idx)
	off := s.shapes.KeyOffset(obj.Shape, key)
	if off < 0 {
		return true
	}
	bits := s.descs.Get(obj.Descs)[off]
	if !bits.Present() {
		return true
	}
	if bits&Configurable == 0 {
		return false
	}
	s.values.Get(obj.Values)[off] = value.Undefined
	s.descs.Get(obj.Descs)[off] = 0
	return true
}

// OwnKeys returns obj's own property keys in insertion order
// ([[OwnPropertyKeys]]), skipping tombstoned deleted slots.
func (s *Store) OwnKeys(idx heap.Index) []value.Value {
	obj := s.Get(idx)
	keys := s.shapes.Keys(obj.Shape)
	descs := s.descs.Get(obj.Descs)
	out := make([]value.Value, 0, len(keys))
	for i, k := range keys {
		if descs[i] != 0 {
			out = append(out, k)
		}
	}
	return out
}

// GetPrototypeOf implements [[GetPrototypeOf]].
func (s *Store) GetPrototypeOf(idx heap.Index) (proto value.Value, hasProto bool) {
	sh := s.shapes.Get(s.Get(idx).Shape)
	return sh.Prototype, sh.HasProto
}

// SetPrototypeOf implements [[SetPrototypeOf]], rejecting cycles
// (OBJECT MODEL §4.5, TESTABLE PROPERTIES item 6): walks the proposed
// chain and fails without mutating obj if it would contain obj itself.
// resolve maps an Object Value handle back to its heap.Index so the walk
// can compare identity; it is supplied by the caller (realm) which owns
// the full object store wiring, keeping this package free of a direct
// value<->index translation policy.
func (s *Store) SetPrototypeOf(idx heap.Index, proto value.Value, hasProto bool, resolve func(value.Value) (heap.Index, bool)) bool {
	if hasProto && proto.Tag() == value.TagObject {
		cur := proto
		for {
			curIdx, ok := resolve(cur)
			if !ok {
				break
			}
			if curIdx == idx {
				return false // cycle
			}
			next, nextHas := s.GetPrototypeOf(curIdx)
			if !nextHas || next.Tag() != value.TagObject {
				break
			}
			cur = next
		}
	}
	oldShape := s.Get(idx).Shape
	newShape := s.shapes.WithPrototype(oldShape, proto, hasProto)
	s.shapes.Release(oldShape)
	s.shapes.Retain(newShape)
	s.Get(idx).Shape = newShape
	return true
}

// RewriteValues rewrites every live object's own property values through
// translate: the sweep_values pass COMPONENT DESIGN §4.4 step 4 requires
// once Arena.Compact has moved records verbatim. Compact already dropped
// dead slots, so a blanket pass over every remaining slot is safe here,
// unlike environment/function records which are never compacted.
func (s *Store) RewriteValues(translate func(value.Value) value.Value) {
	for i := 1; i < s.arena.Len(); i++ {
		obj := s.arena.Get(heap.Index(i))
		vals := s.values.Get(obj.Values)
		for j := range vals {
			vals[j] = translate(vals[j])
		}
	}
}

// IsExtensible implements [[IsExtensible]].
func (s *Store) IsExtensible(idx heap.Index) bool { return s.Get(idx).Extensible }

// PreventExtensions implements [[PreventExtensions]]; always succeeds for
// ordinary objects.
func (s *Store) PreventExtensions(idx heap.Index) bool {
	s.Get(idx).Extensible = false
	return true
}
