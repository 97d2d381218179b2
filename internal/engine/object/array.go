package object

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Array is exotic Array-object heap data (DATA MODEL §3.4): a dense
// element vector plus the length-invariant bookkeeping ArraySetLength
// enforces. Named properties beyond indices are out of this reference
// engine's scope (PURPOSE & SCOPE: array exotic behaviour is limited to
// the length invariant).
type Array struct {
	Elements   heap.ElementsID
	Length     uint32
	Prototype  value.Value
	HasProto   bool
	Extensible bool
}

// ArrayStore owns every Array record.
type ArrayStore struct {
	arena  *heap.Arena[Array]
	values *heap.ElementStore
}

// NewArrayStore constructs an empty array store backed by values.
func NewArrayStore(values *heap.ElementStore) *ArrayStore {
	return &ArrayStore{arena: heap.NewArena[Array](0), values: values}
}

// Create allocates a fresh empty array with the given prototype (normally
// %Array.prototype%).
func (s *ArrayStore) Create(capacityHint uint32, proto value.Value, hasProto bool) heap.Index {
	return s.arena.Create(Array{
		Elements:   s.values.Allocate(0),
		Prototype:  proto,
		HasProto:   hasProto,
		Extensible: true,
	})
}

// Get returns the array record at idx.
func (s *ArrayStore) Get(idx heap.Index) *Array { return s.arena.Get(idx) }

// Len reports the number of array slots, for GC iteration.
func (s *ArrayStore) Len() int { return s.arena.Len() }

// Arena exposes the backing arena for compaction.
func (s *ArrayStore) Arena() *heap.Arena[Array] { return s.arena }

// Push appends v, growing Length by one (ArrayPush opcode semantics).
func (s *ArrayStore) Push(idx heap.Index, v value.Value) {
	arr := s.Get(idx)
	arr.Elements = s.values.Append(arr.Elements, v)
	arr.Length++
}

// SetValue writes v at a known index, extending the backing vector with
// Undefined holes if index is beyond the current length (sparse-write
// path of ArraySetValue).
func (s *ArrayStore) SetValue(idx heap.Index, index uint32, v value.Value) {
	arr := s.Get(idx)
	for arr.Length <= index {
		arr.Elements = s.values.Append(arr.Elements, value.Undefined)
		arr.Length++
	}
	s.values.Get(arr.Elements)[index] = v
}

// Get returns the element at index, or Undefined if it is a hole or out
// of range.
func (s *ArrayStore) GetElement(idx heap.Index, index uint32) value.Value {
	arr := s.Get(idx)
	if index >= arr.Length {
		return value.Undefined
	}
	return s.values.Get(arr.Elements)[index]
}

// SetLength implements the [[ArraySetLength]] truncation/extension
// invariant: shrinking drops trailing elements, growing pads with holes.
func (s *ArrayStore) SetLength(idx heap.Index, newLen uint32) {
	arr := s.Get(idx)
	if newLen < arr.Length {
		slice := s.values.Get(arr.Elements)
		for i := newLen; i < arr.Length; i++ {
			slice[i] = value.Undefined
		}
		arr.Length = newLen
		return
	}
	for arr.Length < newLen {
		arr.Elements = s.values.Append(arr.Elements, value.Undefined)
		arr.Length++
	}
}

// Elements returns the live element slice [0:Length).
func (s *ArrayStore) Elements(idx heap.Index) []value.Value {
	arr := s.Get(idx)
	return s.values.Get(arr.Elements)[:arr.Length]
}

// RewriteValues rewrites every live array's elements and prototype
// through translate, the array counterpart of Store.RewriteValues for
// the sweep_values pass (§4.4 step 4).
func (s *ArrayStore) RewriteValues(translate func(value.Value) value.Value) {
	for i := 1; i < s.arena.Len(); i++ {
		arr := s.arena.Get(heap.Index(i))
		vals := s.values.Get(arr.Elements)[:arr.Length]
		for j := range vals {
			vals[j] = translate(vals[j])
		}
		if arr.HasProto {
			arr.Prototype = translate(arr.Prototype)
		}
	}
}
