package object

import (
	"testing"

	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

func newStore() *Store {
	elems := heap.NewElementStore()
	shapes := NewShapeStore(elems)
	return NewStore(shapes, elems)
}

func TestShapeSharing(t *testing.T) {
	s := newStore()
	a := s.Create(value.Null, true)
	b := s.Create(value.Null, true)

	strs := heap.NewStrings()
	intern := func(str string) heap.Index { return strs.Intern(str) }
	k1 := NewStringKey("x", intern)
	k2 := NewStringKey("y", intern)

	s.DefineOwnDataProperty(a, k1, value.Integer(1), NewDataDescriptor(true, true, true))
	s.DefineOwnDataProperty(a, k2, value.Integer(2), NewDataDescriptor(true, true, true))
	s.DefineOwnDataProperty(b, k1, value.Integer(10), NewDataDescriptor(true, true, true))
	s.DefineOwnDataProperty(b, k2, value.Integer(20), NewDataDescriptor(true, true, true))

	if s.Get(a).Shape != s.Get(b).Shape {
		t.Fatalf("objects with identical proto + keys should share a shape: %d != %d",
			s.Get(a).Shape, s.Get(b).Shape)
	}
}

func TestPropertyKeyCanonicalization(t *testing.T) {
	strs := heap.NewStrings()
	intern := func(s string) heap.Index { return strs.Intern(s) }

	seven := NewStringKey("7", intern)
	if !seven.IsArrayIndex() || seven.ArrayIndex() != 7 {
		t.Errorf(`"7" should canonicalize to Integer(7)`)
	}
	leadingZero := NewStringKey("07", intern)
	if leadingZero.IsArrayIndex() {
		t.Errorf(`"07" must remain a string key, not become an index`)
	}
}

func TestGetSetDeleteRoundTrip(t *testing.T) {
	s := newStore()
	obj := s.Create(value.Null, true)
	strs := heap.NewStrings()
	intern := func(str string) heap.Index { return strs.Intern(str) }
	k := NewStringKey("prop", intern)

	s.DefineOwnDataProperty(obj, k, value.Integer(5), NewDataDescriptor(true, true, true))
	v, _, found := s.GetOwn(obj, k.Value())
	if !found || v.AsInteger() != 5 {
		t.Fatalf("GetOwn = %v, %v, want 5, true", v, found)
	}
	if !s.Delete(obj, k.Value()) {
		t.Fatal("Delete should succeed on a configurable property")
	}
	if s.HasOwn(obj, k.Value()) {
		t.Fatal("property should be gone after Delete")
	}
}

func TestPrototypeCycleRejected(t *testing.T) {
	s := newStore()
	a := s.Create(value.Null, true)
	b := s.Create(value.Null, true)

	byIdx := map[value.Value]heap.Index{}
	resolve := func(v value.Value) (heap.Index, bool) {
		idx, ok := byIdx[v]
		return idx, ok
	}
	// Give a and b distinct Object-tagged Values the test can resolve.
	aVal := value.Object(uint32(a))
	bVal := value.Object(uint32(b))
	byIdx[aVal] = a
	byIdx[bVal] = b

	if !s.SetPrototypeOf(b, aVal, true, resolve) {
		t.Fatal("b's prototype should be settable to a")
	}
	if s.SetPrototypeOf(a, bVal, true, resolve) {
		t.Fatal("setting a's prototype to b should fail: b -> a -> b is a cycle")
	}
	proto, has := s.GetPrototypeOf(a)
	if has && proto == bVal {
		t.Fatal("failed SetPrototypeOf must not mutate a")
	}
}

func TestShapeTransitionWeaknessEviction(t *testing.T) {
	s := newStore()
	strs := heap.NewStrings()
	intern := func(str string) heap.Index { return strs.Intern(str) }
	k := NewStringKey("temp", intern)

	obj := s.Create(value.Null, true)
	oldShape := s.Get(obj).Shape
	s.DefineOwnDataProperty(obj, k, value.Integer(1), NewDataDescriptor(true, true, true))
	childShape := s.Get(obj).Shape
	if _, ok := s.shapes.Get(oldShape).Transitions[k.Value()]; !ok {
		t.Fatal("transition should be recorded on the parent shape")
	}

	// Simulate the object becoming unreachable: release its instance
	// count without anything else pointing at childShape.
	s.shapes.Release(childShape)

	live := make([]bool, s.shapes.Len())
	s.shapes.ReapDeadTransitions(live)

	if _, ok := s.shapes.Get(oldShape).Transitions[k.Value()]; ok {
		t.Fatal("dead child shape should be evicted from parent's transition table")
	}
}
