package heap

import "github.com/trynova/nova-sub004/internal/engine/value"

// SizeClasses are the element-vector capacities object values, array
// elements, and shape keys are bucketed into (DATA MODEL §3.4: "capacities
// 4,6,8,10,12,16,24,32,...").
var SizeClasses = [...]uint32{4, 6, 8, 10, 12, 16, 24, 32, 48, 64, 96, 128, 256, 512, 1024}

// ClassFor returns the index into SizeClasses of the smallest class that
// can hold n elements. Exported so parallel side tables keyed by the same
// ElementsID (e.g. object.DescriptorStore) can round-capacity the same
// way ElementStore does.
func ClassFor(n uint32) (class int, ok bool) {
	for i, cap := range SizeClasses {
		if cap >= n {
			return i, true
		}
	}
	return 0, false
}

// ElementsID encodes which size-classed vector backs an object's values,
// an array's elements, or a shape's keys, plus the slot within that
// vector's arena (DATA MODEL §3.4).
type ElementsID struct {
	Class uint8
	Slot  Index
}

// ElementStore owns one Arena[[]value.Value] per size class and is the
// backing store for object property values, array elements, and shape
// key lists (COMPONENT DESIGN §4.2: "element vectors in 8 size classes").
type ElementStore struct {
	classes [len(SizeClasses)]*Arena[[]value.Value]
}

// NewElementStore allocates an empty store with one arena per size class.
func NewElementStore() *ElementStore {
	s := &ElementStore{}
	for i := range s.classes {
		s.classes[i] = NewArena[[]value.Value](0)
	}
	return s
}

// Allocate reserves an empty vector able to hold length elements (its
// capacity rounded up to the next size class) and returns its ElementsID.
func (s *ElementStore) Allocate(length uint32) ElementsID {
	class, ok := ClassFor(length)
	if !ok {
		class = len(SizeClasses) - 1
	}
	slot := s.classes[class].Create(make([]value.Value, 0, SizeClasses[class]))
	return ElementsID{Class: uint8(class), Slot: slot}
}

// Get returns the backing slice for id.
func (s *ElementStore) Get(id ElementsID) []value.Value {
	return *s.classes[id.Class].Get(id.Slot)
}

// Append pushes v onto id's vector, reallocating into the next size
// class if the current class's capacity would be exceeded (OBJECT MODEL
// §4.5 step 2: "if the element-class would be exceeded, reallocate to
// the next class").
func (s *ElementStore) Append(id ElementsID, v value.Value) ElementsID {
	cur := s.classes[id.Class].Get(id.Slot)
	if len(*cur) < int(SizeClasses[id.Class]) {
		*cur = append(*cur, v)
		return id
	}
	newID := s.Allocate(uint32(len(*cur)) + 1)
	next := s.classes[newID.Class].Get(newID.Slot)
	*next = append(append(*next, *cur...), v)
	return newID
}

// Arenas exposes the underlying per-class arenas for GC traversal.
func (s *ElementStore) Arenas() []*Arena[[]value.Value] {
	out := make([]*Arena[[]value.Value], len(s.classes))
	copy(out, s.classes[:])
	return out
}

// SideTable is a generic element vector store parallel to ElementStore,
// for side tables indexed by the same ElementsID as an object's values
// (OBJECT MODEL §4.5: property descriptor bits "live in a side table
// indexed the same way as values").
type SideTable[T any] struct {
	classes [len(SizeClasses)]*Arena[[]T]
}

// NewSideTable allocates an empty generic side table.
func NewSideTable[T any]() *SideTable[T] {
	s := &SideTable[T]{}
	for i := range s.classes {
		s.classes[i] = NewArena[[]T](0)
	}
	return s
}

// Allocate reserves a same-shaped vector for id's size class and returns
// a fresh ElementsID sharing that class (the slot numbering is
// independent of the paired value ElementStore's, callers keep the two
// ElementsIDs together).
func (s *SideTable[T]) Allocate(length uint32) ElementsID {
	class, ok := ClassFor(length)
	if !ok {
		class = len(SizeClasses) - 1
	}
	slot := s.classes[class].Create(make([]T, length, SizeClasses[class]))
	return ElementsID{Class: uint8(class), Slot: slot}
}

// Get returns the backing slice for id.
func (s *SideTable[T]) Get(id ElementsID) []T {
	return *s.classes[id.Class].Get(id.Slot)
}

// Append mirrors ElementStore.Append's reallocation-on-overflow rule.
func (s *SideTable[T]) Append(id ElementsID, v T) ElementsID {
	cur := s.classes[id.Class].Get(id.Slot)
	if len(*cur) < int(SizeClasses[id.Class]) {
		*cur = append(*cur, v)
		return id
	}
	newLen := uint32(len(*cur)) + 1
	newID := s.Allocate(newLen)
	newSlice := s.Get(newID)
	copy(newSlice, *cur)
	newSlice[len(*cur)] = v
	return newID
}
