// Package gc implements the tracing mark-sweep-compact collector of
// COMPONENT DESIGN §4.4: root enumeration, a worklist-based mark phase,
// compaction-plan construction reusing heap.BuildCompactionRuns, and a
// sweep pass that rewrites every live handle through the resulting
// translation table.
package gc

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/engine/weakref"
)

// Roots is the full set of GC root sources enumerated at the start of a
// collection cycle (§4.4 step 1): the agent's rooted scope-value stack,
// any Global handles, the live VM call-frame environments, and anything
// else a frame holds directly (operand/iterator stacks). The vm/realm
// packages supply these by reading their own live frames; gc stays free
// of a dependency on vm to avoid a cycle (vm already depends on gc's
// sibling packages object/heap/rooting, and will depend on gc for the
// collect_garbage entry point).
type Roots struct {
	StackValues  []value.Value   // rooting.StackValues.All()
	Globals      []value.Value   // every live rooting.Global[T].Get()
	Extra        []value.Value   // VM operand/iterator stacks, result registers, etc.
	Environments []heap.Index    // every call frame's current environment
}

// Collector owns the object-model stores a collection cycle must mark,
// sweep, and compact. It holds no heap state of its own; Heap and the
// stores are the single source of truth, matching how heap.Heap and
// object.Store/ArrayStore/environment.Store are already structured as
// the collection's real owners.
type Collector struct {
	Heap         *heap.Heap
	Objects      *object.Store
	Arrays       *object.ArrayStore
	Shapes       *object.ShapeStore
	Environments EnvironmentMarker
	Functions    FunctionMarker
	Weak         *weakref.Store
}

// EnvironmentMarker is the narrow slice of environment.Store the
// collector needs to mark environment chains, expressed as an interface
// so this package does not import vm or environment concretely (vm
// depends on gc's sibling packages, and environment.Store already
// satisfies this shape without either package needing to know about the
// other).
type EnvironmentMarker interface {
	Values(idx heap.Index) []value.Value
	OuterIndex(idx heap.Index) (heap.Index, bool)
	RewriteValues(idx heap.Index, translate func(value.Value) value.Value)
	RewriteBindingObject(idx heap.Index, translateIdx func(heap.Index) heap.Index)
}

// FunctionMarker is the narrow slice of vm.FunctionTable the collector
// needs: a function's own directly-held values (an arrow's captured
// this) plus its closure environment, if any.
type FunctionMarker interface {
	Values(idx heap.Index) []value.Value
	ClosureEnvOf(idx heap.Index) (heap.Index, bool)
	RewriteValues(idx heap.Index, translate func(value.Value) value.Value)
}

// markSet is the mark worklist's dedup set, backed by golang-set for its
// Add-returns-whether-new semantics (DOMAIN STACK: deckarep/golang-set/v2
// fills the role the teacher's own de-duplicating worklists play in its
// trie/state-sync code). envSeen tracks the parallel environment-chain
// walk, which is keyed by raw heap.Index rather than a tagged Value since
// environments predate a dedicated Tag (see environment.Store.OuterIndex).
type markSet struct {
	seen    mapset.Set[markKey]
	envSeen map[heap.Index]bool
}

type markKey struct {
	tag   value.Tag
	index uint32
}

func newMarkSet() *markSet {
	return &markSet{seen: mapset.NewThreadUnsafeSet[markKey](), envSeen: make(map[heap.Index]bool)}
}

func (s *markSet) visit(v value.Value) bool {
	if !v.Tag().IsHeap() {
		return false
	}
	k := markKey{tag: v.Tag(), index: v.Index()}
	return s.seen.Add(k)
}

// liveEnvironmentIndices returns every environment the mark phase's
// chain walk actually reached this cycle, the safe scope for the
// sweep_values pass's environment rewrite: environment.Store's arena is
// never compacted, so an environment not reached this cycle may hold a
// stale reference to an object this cycle reclaimed, which
// heap.Translate would reject.
func (s *markSet) liveEnvironmentIndices() []heap.Index {
	out := make([]heap.Index, 0, len(s.envSeen))
	for idx := range s.envSeen {
		out = append(out, idx)
	}
	return out
}

// liveFunctionIndices returns every function handle the mark phase
// reached this cycle, the safe scope for the sweep_values pass's
// function rewrite, for the same reason liveEnvironmentIndices restricts
// itself to reached environments.
func (s *markSet) liveFunctionIndices() []heap.Index {
	var out []heap.Index
	for _, k := range s.seen.ToSlice() {
		switch k.tag {
		case value.TagECMAScriptFunction, value.TagBuiltinFunction, value.TagBoundFunction:
			out = append(out, heap.Index(k.index))
		}
	}
	return out
}

// Collect runs one full mark-sweep-compact cycle (COMPONENT DESIGN
// §4.4): mark every value reachable from roots, sweep weak references
// against the result, reap dead shape transitions, build a compaction
// plan per live arena, and rewrite every surviving handle. The caller
// (realm.Agent) is responsible for calling rooting.StackValues.Bump
// immediately before this so every GcScope/Bound[T] minted against the
// prior generation becomes invalid, matching §4.3's rooting discipline.
func (c *Collector) Collect(roots Roots) Plan {
	marked := c.mark(roots)
	objLive := c.liveObjectSlots(marked)
	arrLive := c.liveArraySlots(marked)
	shapeLive := c.liveShapeSlots(marked, objLive)
	c.Shapes.ReapDeadTransitions(shapeLive)

	if c.Weak != nil {
		c.Weak.Sweep(func(v value.Value) bool {
			if !v.Tag().IsHeap() {
				return true
			}
			return marked.seen.Contains(markKey{tag: v.Tag(), index: v.Index()})
		})
	}

	objRuns := heap.BuildCompactionRuns(objLive)
	arrRuns := heap.BuildCompactionRuns(arrLive)

	c.Objects.Arena().Compact(objRuns)
	c.Arrays.Arena().Compact(arrRuns)

	plan := Plan{ObjectRuns: objRuns, ArrayRuns: arrRuns}

	// sweep_values (§4.4 step 4): Compact moved surviving object/array
	// records verbatim, so any Object/Array index a record holds
	// internally -- an object's own property values, an array's elements
	// and prototype, a shape's prototype, an environment's bindings, a
	// function's captured this -- still needs rewriting through plan
	// before the mutator resumes. Environment and function records are
	// scoped to what the mark phase actually reached this cycle, since
	// neither arena is compacted and an unreached record may hold a
	// stale reference a naive blanket rewrite would trip heap.Translate's
	// "dead slot referenced" panic on.
	c.Objects.RewriteValues(plan.Translate)
	c.Arrays.RewriteValues(plan.Translate)
	c.Shapes.RewriteLivePrototypes(plan.Translate)
	for _, envIdx := range marked.liveEnvironmentIndices() {
		c.Environments.RewriteValues(envIdx, plan.Translate)
		c.Environments.RewriteBindingObject(envIdx, plan.TranslateObjectIndex)
	}
	for _, fnIdx := range marked.liveFunctionIndices() {
		c.Functions.RewriteValues(fnIdx, plan.Translate)
	}

	if c.Weak != nil {
		c.Weak.Rewrite(plan.Translate)
	}
	return plan
}

// Plan is the translation table a sweep pass applies to every surviving
// heap handle outside the arenas the collector itself compacted (the
// StackValues vector, Global slots, and any VM-owned caches of Object/
// Array indices).
type Plan struct {
	ObjectRuns []heap.CompactionRun
	ArrayRuns  []heap.CompactionRun
}

// Translate rewrites v's index in place if v is an Object or Array
// handle, per the compaction plan; other heap tags are left untouched
// since the object and array arenas are the only ones Collect compacts
// (the string, number and bigint arenas are not compacted).
func (p Plan) Translate(v value.Value) value.Value {
	switch v.Tag() {
	case value.TagObject:
		return v.WithIndex(uint32(heap.Translate(p.ObjectRuns, heap.Index(v.Index()))))
	case value.TagArray:
		return v.WithIndex(uint32(heap.Translate(p.ArrayRuns, heap.Index(v.Index()))))
	default:
		return v
	}
}

// TranslateObjectIndex rewrites a raw object-arena index through the
// plan, for callers holding a bare heap.Index rather than a tagged
// value.Value (environment.Environment.BindingObject is the only such
// field the sweep_values pass touches).
func (p Plan) TranslateObjectIndex(old heap.Index) heap.Index {
	return heap.Translate(p.ObjectRuns, old)
}

// ApplyTo rewrites every StackValues slot and Globals slot through the
// plan in place, the final step of a collection cycle (§4.4 step 4): by
// the time a mutator resumes, every Scoped/Global handle must already
// observe the post-compaction index. Call this only after
// stack.Bump() -- done by the caller before Collect runs -- so handles
// minted against the prior generation are already invalid and cannot
// race with this rewrite.
func (p Plan) ApplyTo(stack *rooting.StackValues, globals *rooting.Globals) {
	for i := 0; i < stack.Len(); i++ {
		stack.Set(i, p.Translate(stack.Get(i)))
	}
	if globals == nil {
		return
	}
	globals.Rewrite(p.Translate)
}

// mark performs the worklist traversal of §4.4 step 2: starting from
// every root value and root environment, follow every Object/Array/
// Function/Shape/environment reference reachable through the object
// model, returning the set of marked handles.
func (c *Collector) mark(roots Roots) *markSet {
	s := newMarkSet()
	var worklist []value.Value
	push := func(v value.Value) {
		if s.visit(v) {
			worklist = append(worklist, v)
		}
	}
	for _, v := range roots.StackValues {
		push(v)
	}
	for _, v := range roots.Globals {
		push(v)
	}
	for _, v := range roots.Extra {
		push(v)
	}
	for _, envIdx := range roots.Environments {
		c.markEnvironmentChain(envIdx, s, push)
	}
	for len(worklist) > 0 {
		n := len(worklist) - 1
		v := worklist[n]
		worklist = worklist[:n]
		c.markChildren(v, s, push)
	}
	return s
}

// markEnvironmentChain walks an environment and its Outer chain, pushing
// every Object/Array/Function value each frame directly holds into the
// main value worklist. Already-visited environments are skipped, since a
// closure chain and a lexical-scope chain commonly rejoin at a shared
// outer environment.
func (c *Collector) markEnvironmentChain(envIdx heap.Index, s *markSet, push func(value.Value)) {
	for {
		if s.envSeen[envIdx] {
			return
		}
		s.envSeen[envIdx] = true
		for _, v := range c.Environments.Values(envIdx) {
			push(v)
		}
		outer, has := c.Environments.OuterIndex(envIdx)
		if !has {
			return
		}
		envIdx = outer
	}
}

// markChildren pushes every Value directly reachable from v: an
// object's own property values plus its prototype, an array's elements
// plus its prototype, or a function's captured state plus its closure
// environment chain.
func (c *Collector) markChildren(v value.Value, s *markSet, push func(value.Value)) {
	switch v.Tag() {
	case value.TagObject:
		idx := heap.Index(v.Index())
		for _, key := range c.Objects.OwnKeys(idx) {
			push(key)
			if val, _, ok := c.Objects.GetOwn(idx, key); ok {
				push(val)
			}
		}
		if proto, has := c.Objects.GetPrototypeOf(idx); has {
			push(proto)
		}
	case value.TagArray:
		idx := heap.Index(v.Index())
		for _, elem := range c.Arrays.Elements(idx) {
			push(elem)
		}
		arr := c.Arrays.Get(idx)
		if arr.HasProto {
			push(arr.Prototype)
		}
	case value.TagECMAScriptFunction, value.TagBuiltinFunction, value.TagBoundFunction:
		idx := heap.Index(v.Index())
		for _, cv := range c.Functions.Values(idx) {
			push(cv)
		}
		if envIdx, has := c.Functions.ClosureEnvOf(idx); has {
			c.markEnvironmentChain(envIdx, s, push)
		}
	}
}

func (c *Collector) liveObjectSlots(marked *markSet) []bool {
	live := make([]bool, c.Objects.Len())
	for i := range live {
		live[i] = marked.seen.Contains(markKey{tag: value.TagObject, index: uint32(i)})
	}
	return live
}

func (c *Collector) liveArraySlots(marked *markSet) []bool {
	live := make([]bool, c.Arrays.Len())
	for i := range live {
		live[i] = marked.seen.Contains(markKey{tag: value.TagArray, index: uint32(i)})
	}
	return live
}

// liveShapeSlots derives shape liveness from the objects that reference
// them: a shape is directly live if some marked object's Object.Shape
// points at it (InstanceCount already tracks this via Retain/Release,
// but the GC verifies it independently rather than trusting refcounts
// alone, per ShapeStore.ReapDeadTransitions' own conservative-liveness
// contract).
func (c *Collector) liveShapeSlots(marked *markSet, objLive []bool) []bool {
	live := make([]bool, c.Shapes.Len())
	for i, isLive := range objLive {
		if !isLive {
			continue
		}
		obj := c.Objects.Get(heap.Index(i))
		if int(obj.Shape) < len(live) {
			live[obj.Shape] = true
		}
	}
	return live
}
