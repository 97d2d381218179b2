// Package weakref implements WeakRef, WeakMap/WeakSet key storage, and
// FinalizationRegistry (DATA MODEL §3.1's Weak* tags; COMPONENT DESIGN
// §4.4's "weak sweep" pass). A weakly-held target is cleared to
// Undefined by the collector's weak-sweep step whenever the target was
// not independently reached by the strong mark phase; this package only
// owns the bookkeeping tables, not the mark/sweep traversal itself
// (gc.Collector calls into Sweep after its strong pass completes).
package weakref

import (
	"golang.org/x/exp/maps"

	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Ref is one WeakRef's heap data: the target it weakly holds.
type Ref struct {
	Target value.Value
	Alive  bool
}

// Store owns every WeakRef, WeakMap, WeakSet, and FinalizationRegistry
// record.
type Store struct {
	refs       *heap.Arena[Ref]
	weakMaps   *heap.Arena[WeakMap]
	weakSets   *heap.Arena[WeakSet]
	registries *heap.Arena[FinalizationRegistry]
}

// NewStore constructs an empty weak-reference store.
func NewStore() *Store {
	return &Store{
		refs:       heap.NewArena[Ref](0),
		weakMaps:   heap.NewArena[WeakMap](0),
		weakSets:   heap.NewArena[WeakSet](0),
		registries: heap.NewArena[FinalizationRegistry](0),
	}
}

// CreateRef allocates a WeakRef targeting target.
func (s *Store) CreateRef(target value.Value) heap.Index {
	return s.refs.Create(Ref{Target: target, Alive: true})
}

// Deref returns the target if still alive, matching WeakRef.prototype.deref.
func (s *Store) Deref(idx heap.Index) (value.Value, bool) {
	r := s.refs.Get(idx)
	if !r.Alive {
		return value.Undefined, false
	}
	return r.Target, true
}

// RefsLen/RefsArena expose the WeakRef arena for GC traversal.
func (s *Store) RefsLen() int                    { return s.refs.Len() }
func (s *Store) RefsArena() *heap.Arena[Ref]     { return s.refs }

// WeakMap holds entries keyed by an Object/Symbol value weakly: a key
// not otherwise reachable is collected along with its value (DATA MODEL
// §3.1: TagWeakMap).
type WeakMap struct {
	Entries map[value.Value]value.Value
}

// NewWeakMap allocates an empty weak map.
func (s *Store) NewWeakMap() heap.Index {
	return s.weakMaps.Create(WeakMap{Entries: make(map[value.Value]value.Value)})
}

func (s *Store) WeakMapGet(idx heap.Index) *WeakMap { return s.weakMaps.Get(idx) }
func (s *Store) WeakMapsLen() int                   { return s.weakMaps.Len() }
func (s *Store) WeakMapsArena() *heap.Arena[WeakMap] { return s.weakMaps }

// WeakSet holds members weakly, mirroring WeakMap without values.
type WeakSet struct {
	Members map[value.Value]struct{}
}

func (s *Store) NewWeakSet() heap.Index {
	return s.weakSets.Create(WeakSet{Members: make(map[value.Value]struct{})})
}

func (s *Store) WeakSetGet(idx heap.Index) *WeakSet { return s.weakSets.Get(idx) }
func (s *Store) WeakSetsLen() int                   { return s.weakSets.Len() }
func (s *Store) WeakSetsArena() *heap.Arena[WeakSet] { return s.weakSets }

// CleanupJob is a queued FinalizationRegistry callback awaiting the next
// microtask checkpoint (EXTERNAL INTERFACES §6.1's microtask_checkpoint).
type CleanupJob struct {
	Callback   value.Value
	HeldValue  value.Value
}

// FinalizationRegistry tracks targets registered for cleanup plus the
// jobs the GC has queued once a target was collected.
type FinalizationRegistry struct {
	CleanupCallback value.Value
	Targets         map[value.Value]registration
	Jobs            []CleanupJob
}

type registration struct {
	HeldValue     value.Value
	UnregisterTok value.Value
	HasToken      bool
}

func (s *Store) NewFinalizationRegistry(cleanup value.Value) heap.Index {
	return s.registries.Create(FinalizationRegistry{
		CleanupCallback: cleanup,
		Targets:         make(map[value.Value]registration),
	})
}

// Register records target for cleanup-on-collection.
func (s *Store) Register(idx heap.Index, target, heldValue, unregisterToken value.Value, hasToken bool) {
	fr := s.registries.Get(idx)
	fr.Targets[target] = registration{HeldValue: heldValue, UnregisterTok: unregisterToken, HasToken: hasToken}
}

// Unregister removes every registration matching token, reporting
// whether any were removed.
func (s *Store) Unregister(idx heap.Index, token value.Value) bool {
	fr := s.registries.Get(idx)
	removed := false
	for k, reg := range fr.Targets {
		if reg.HasToken && value.SameValueNonNumberOrEqualTag(reg.UnregisterTok, token) {
			delete(fr.Targets, k)
			removed = true
		}
	}
	return removed
}

func (s *Store) RegistriesLen() int                                   { return s.registries.Len() }
func (s *Store) RegistriesArena() *heap.Arena[FinalizationRegistry]   { return s.registries }
func (s *Store) RegistryGet(idx heap.Index) *FinalizationRegistry     { return s.registries.Get(idx) }

// DrainJobs pops every queued cleanup job for idx, the
// microtask_checkpoint driver's per-registry unit of work.
func (s *Store) DrainJobs(idx heap.Index) []CleanupJob {
	fr := s.registries.Get(idx)
	jobs := fr.Jobs
	fr.Jobs = nil
	return jobs
}

// Rewrite rewrites every surviving weak target/key through translate,
// the weak-table analog of gc.Plan.ApplyTo for StackValues/Globals: call
// this once per collection cycle, after Sweep has cleared unreachable
// entries and the collector has compacted the Object/Array arenas,
// so a WeakRef/WeakMap/WeakSet/FinalizationRegistry never outlives a
// compaction holding a stale pre-compaction index.
func (s *Store) Rewrite(translate func(value.Value) value.Value) {
	for i := 1; i < s.refs.Len(); i++ {
		r := s.refs.Get(heap.Index(i))
		if r.Alive {
			r.Target = translate(r.Target)
		}
	}
	for i := 1; i < s.weakMaps.Len(); i++ {
		wm := s.weakMaps.Get(heap.Index(i))
		rewritten := make(map[value.Value]value.Value, len(wm.Entries))
		for k, v := range wm.Entries {
			rewritten[translate(k)] = translate(v)
		}
		wm.Entries = rewritten
	}
	for i := 1; i < s.weakSets.Len(); i++ {
		ws := s.weakSets.Get(heap.Index(i))
		rewritten := make(map[value.Value]struct{}, len(ws.Members))
		for k := range ws.Members {
			rewritten[translate(k)] = struct{}{}
		}
		ws.Members = rewritten
	}
	for i := 1; i < s.registries.Len(); i++ {
		fr := s.registries.Get(heap.Index(i))
		rewritten := make(map[value.Value]registration, len(fr.Targets))
		for k, reg := range fr.Targets {
			rewritten[translate(k)] = reg
		}
		fr.Targets = rewritten
	}
}

// Sweep implements the weak-sweep pass (COMPONENT DESIGN §4.4): isLive
// reports whether a heap handle survived the preceding strong mark
// phase. Every WeakRef/WeakMap-entry/WeakSet-member whose target did not
// survive is cleared; FinalizationRegistry targets that did not survive
// are moved into that registry's Jobs queue instead of being dropped,
// since ECMA-262 requires their cleanup callback to still run.
func (s *Store) Sweep(isLive func(value.Value) bool) {
	for i := 1; i < s.refs.Len(); i++ {
		r := s.refs.Get(heap.Index(i))
		if r.Alive && !isLive(r.Target) {
			r.Alive = false
			r.Target = value.Undefined
		}
	}
	for i := 1; i < s.weakMaps.Len(); i++ {
		wm := s.weakMaps.Get(heap.Index(i))
		for _, k := range maps.Keys(wm.Entries) {
			if !isLive(k) {
				delete(wm.Entries, k)
			}
		}
	}
	for i := 1; i < s.weakSets.Len(); i++ {
		ws := s.weakSets.Get(heap.Index(i))
		for _, k := range maps.Keys(ws.Members) {
			if !isLive(k) {
				delete(ws.Members, k)
			}
		}
	}
	for i := 1; i < s.registries.Len(); i++ {
		fr := s.registries.Get(heap.Index(i))
		for _, target := range maps.Keys(fr.Targets) {
			reg := fr.Targets[target]
			if isLive(target) {
				continue
			}
			delete(fr.Targets, target)
			fr.Jobs = append(fr.Jobs, CleanupJob{Callback: fr.CleanupCallback, HeldValue: reg.HeldValue})
		}
	}
}
