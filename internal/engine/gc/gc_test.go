package gc

import (
	"testing"

	"github.com/trynova/nova-sub004/internal/engine/environment"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/engine/weakref"
)

// noFunctions is a FunctionMarker with nothing to mark, for tests that
// only exercise the object/array/environment side of the collector.
type noFunctions struct{}

func (noFunctions) Values(heap.Index) []value.Value            { return nil }
func (noFunctions) ClosureEnvOf(heap.Index) (heap.Index, bool)  { return 0, false }
func (noFunctions) RewriteValues(heap.Index, func(value.Value) value.Value) {}

func newTestCollector(t *testing.T) (*Collector, *object.Store, *environment.Store) {
	t.Helper()
	values := heap.NewElementStore()
	shapes := object.NewShapeStore(values)
	objects := object.NewStore(shapes, values)
	arrays := object.NewArrayStore(values)
	strings := heap.NewStrings()
	envs := environment.NewStore(objects, strings)
	return &Collector{
		Objects:      objects,
		Arrays:       arrays,
		Shapes:       shapes,
		Environments: envs,
		Functions:    noFunctions{},
		Weak:         weakref.NewStore(),
	}, objects, envs
}

func key(t *testing.T, strings *heap.Strings, name string) object.PropertyKey {
	t.Helper()
	return object.NewStringKey(name, func(s string) heap.Index { return strings.Intern(s) })
}

func TestCollectReclaimsUnreachableObject(t *testing.T) {
	c, objects, _ := newTestCollector(t)
	strings := heap.NewStrings()

	garbage := objects.Create(value.Null, false)
	_ = garbage

	child := objects.Create(value.Null, false)
	root := objects.Create(value.Null, false)
	k := key(t, strings, "child")
	objects.DefineOwnDataProperty(root, k, value.Object(uint32(child)), object.NewDataDescriptor(true, true, true))

	before := objects.Len()
	if before != 4 { // slot 0 reserved + garbage + child + root
		t.Fatalf("expected 4 object slots before collection, got %d", before)
	}

	plan := c.Collect(Roots{StackValues: []value.Value{value.Object(uint32(root))}})

	if objects.Len() != 3 { // slot 0 + child + root, garbage reclaimed
		t.Fatalf("expected 3 object slots after collection, got %d", objects.Len())
	}

	newRoot := heap.Translate(plan.ObjectRuns, root)
	rootChild, _, found := objects.GetOwn(newRoot, k.Value())
	if !found {
		t.Fatalf("root's child property missing after compaction")
	}
	if rootChild.Tag() != value.TagObject {
		t.Fatalf("expected child property to remain an object, got tag %v", rootChild.Tag())
	}
}

func TestCollectMarksThroughEnvironmentChain(t *testing.T) {
	c, objects, envs := newTestCollector(t)

	reachableProto := objects.Create(value.Null, false)
	unreachable := objects.Create(value.Null, false)
	_ = unreachable

	outer := envs.NewDeclarative(value.Undefined, false)
	if err := envs.CreateMutableBinding(outer, "proto", false); err != nil {
		t.Fatalf("CreateMutableBinding: %v", err)
	}
	if err := envs.InitializeBinding(outer, "proto", value.Object(uint32(reachableProto))); err != nil {
		t.Fatalf("InitializeBinding: %v", err)
	}

	inner := envs.NewDeclarative(value.Object(uint32(outer)), true)

	plan := c.Collect(Roots{Environments: []heap.Index{inner}})

	newProto := heap.Translate(plan.ObjectRuns, reachableProto)
	if int(newProto) >= objects.Len() {
		t.Fatalf("reachable prototype should survive compaction, got translated index %d with %d live slots", newProto, objects.Len())
	}
}

func TestWeakRefClearedWhenTargetUnreachable(t *testing.T) {
	c, objects, _ := newTestCollector(t)
	weak := c.Weak

	target := objects.Create(value.Null, false)
	refIdx := weak.CreateRef(value.Object(uint32(target)))

	c.Collect(Roots{})

	if _, alive := weak.Deref(refIdx); alive {
		t.Fatalf("expected WeakRef target to be cleared once unreachable")
	}
}

func TestWeakRefSurvivesWhenTargetRooted(t *testing.T) {
	c, objects, _ := newTestCollector(t)
	weak := c.Weak

	target := objects.Create(value.Null, false)
	refIdx := weak.CreateRef(value.Object(uint32(target)))

	plan := c.Collect(Roots{StackValues: []value.Value{value.Object(uint32(target))}})

	got, alive := weak.Deref(refIdx)
	if !alive {
		t.Fatalf("expected WeakRef target to survive while rooted")
	}
	want := plan.Translate(value.Object(uint32(target)))
	if got != want {
		t.Fatalf("expected deref to observe the post-compaction index %v, got %v", want, got)
	}
}

func TestRootScopeGuardsAgainstStaleHandles(t *testing.T) {
	stack := rooting.NewStackValues()
	scope := rooting.NewRootScope(stack)
	bound := rooting.Bind[struct{}](value.Integer(1), scope)
	stack.Bump()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected Get to panic on a handle minted against a stale generation")
		}
	}()
	bound.Get()
}
