// Package environment implements lexical/variable/global/module
// environments and the ResolveBinding/GetValue/PutValue lookup protocol
// (COMPONENT DESIGN §4.6, DATA MODEL §3.6).
package environment

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Kind discriminates the environment flavours of DATA MODEL §3.6, with
// module environments as a fifth kind.
type Kind uint8

const (
	KindDeclarative Kind = iota
	KindObject
	KindFunction
	KindGlobal
	KindModule
)

// ThisBindingStatus models a FunctionEnvironment's this-binding state
// machine (DATA MODEL §3.6: "lexical|initialized|uninitialized").
type ThisBindingStatus uint8

const (
	ThisLexical ThisBindingStatus = iota
	ThisInitialized
	ThisUninitialized
)

// Binding is one declarative-environment slot (DATA MODEL §3.6).
type Binding struct {
	Value     value.Value
	HasValue  bool
	Mutable   bool
	Strict    bool
	Deletable bool
}

// Environment is one heap-resident environment record. Every flavour
// shares the Outer chain link; flavour-specific state is carried in the
// fields below rather than as separate Go types, following spec.md's own
// "composite" description of Global and the shared declarative core of
// Function and Module (DATA MODEL §3.6).
type Environment struct {
	Kind  Kind
	Outer value.Value // Undefined if this is the outermost environment
	HasOuter bool

	// Declarative (also embedded in Function, Global, Module):
	Bindings map[string]*Binding

	// Object (also embedded in Global): bindings ARE this object's own
	// properties.
	BindingObject heap.Index
	HasBindingObj bool
	IsWithEnv     bool // with-statement semantics: unscopables checked

	// Function:
	ThisStatus     ThisBindingStatus
	ThisValue      value.Value
	FunctionObject value.Value
	NewTarget      value.Value
	HomeObject     value.Value
	HasHomeObject  bool

	// Module: indirect bindings referencing another module's environment
	// and binding name (DATA MODEL §3.6).
	Indirect map[string]IndirectBinding
}

// IndirectBinding names a binding in a different module's environment.
type IndirectBinding struct {
	TargetEnv value.Value
	Name      string
}

// Store owns every environment record, addressed by heap.Index.
type Store struct {
	arena   *heap.Arena[Environment]
	objects *object.Store
	strings *heap.Strings
}

// NewStore constructs an empty environment store.
func NewStore(objects *object.Store, strings *heap.Strings) *Store {
	return &Store{arena: heap.NewArena[Environment](0), objects: objects, strings: strings}
}

// key builds the canonical PropertyKey for a binding name, used when an
// object/global environment delegates a binding operation to its backing
// object's [[Get]]/[[Set]]/[[HasProperty]] (COMPONENT DESIGN §4.6).
func (s *Store) key(name string) object.PropertyKey {
	return object.NewStringKey(name, func(str string) heap.Index { return s.strings.Intern(str) })
}

// Get returns the environment record at idx.
func (s *Store) Get(idx heap.Index) *Environment { return s.arena.Get(idx) }

// Len reports the number of environment slots, for GC iteration.
func (s *Store) Len() int { return s.arena.Len() }

// Arena exposes the backing arena for compaction.
func (s *Store) Arena() *heap.Arena[Environment] { return s.arena }

// NewDeclarative creates a declarative environment chained to outer.
func (s *Store) NewDeclarative(outer value.Value, hasOuter bool) heap.Index {
	return s.arena.Create(Environment{
		Kind:     KindDeclarative,
		Outer:    outer,
		HasOuter: hasOuter,
		Bindings: make(map[string]*Binding),
	})
}

// NewObject creates an object environment (with-statements, globals).
func (s *Store) NewObject(outer value.Value, hasOuter bool, bindingObject heap.Index, isWith bool) heap.Index {
	return s.arena.Create(Environment{
		Kind:          KindObject,
		Outer:         outer,
		HasOuter:      hasOuter,
		BindingObject: bindingObject,
		HasBindingObj: true,
		IsWithEnv:     isWith,
	})
}

// NewFunction creates a function environment: declarative plus
// this-binding state.
func (s *Store) NewFunction(outer value.Value, hasOuter bool, status ThisBindingStatus, fn value.Value) heap.Index {
	return s.arena.Create(Environment{
		Kind:           KindFunction,
		Outer:          outer,
		HasOuter:       hasOuter,
		Bindings:       make(map[string]*Binding),
		ThisStatus:     status,
		FunctionObject: fn,
	})
}

// NewGlobal creates the global environment: a composite object
// environment (the global object) plus a declarative environment for
// let/const/class (DATA MODEL §3.6).
func (s *Store) NewGlobal(globalObject heap.Index) heap.Index {
	return s.arena.Create(Environment{
		Kind:          KindGlobal,
		BindingObject: globalObject,
		HasBindingObj: true,
		Bindings:      make(map[string]*Binding),
	})
}

// NewModule creates a module environment: declarative plus indirect
// bindings.
func (s *Store) NewModule(outer value.Value, hasOuter bool) heap.Index {
	return s.arena.Create(Environment{
		Kind:     KindModule,
		Outer:    outer,
		HasOuter: hasOuter,
		Bindings: make(map[string]*Binding),
		Indirect: make(map[string]IndirectBinding),
	})
}

// Values returns every Object/Array/Function Value the environment at
// idx directly holds, for the gc package's mark phase
// (gc.EnvironmentMarker): bound values, the backing object for
// Object/Global environments, and Function-environment
// this/new.target/home-object state. The outer-environment link is
// walked separately through OuterIndex, since Outer is an environment
// handle rather than one of the tagged heap values this method returns.
func (s *Store) Values(idx heap.Index) []value.Value {
	env := s.arena.Get(idx)
	out := make([]value.Value, 0, len(env.Bindings)+5)
	for _, b := range env.Bindings {
		if b.HasValue {
			out = append(out, b.Value)
		}
	}
	if env.HasBindingObj {
		out = append(out, value.Object(uint32(env.BindingObject)))
	}
	switch env.Kind {
	case KindFunction:
		if env.ThisStatus != ThisLexical {
			out = append(out, env.ThisValue)
		}
		out = append(out, env.FunctionObject, env.NewTarget)
		if env.HasHomeObject {
			out = append(out, env.HomeObject)
		}
	}
	for _, ib := range env.Indirect {
		out = append(out, ib.TargetEnv)
	}
	return out
}

// RewriteValues rewrites the Object/Array/Function values the
// environment at idx directly holds through translate: bound values and
// (for function environments) this/function-object/new.target/
// home-object state, the sweep_values pass COMPONENT DESIGN §4.4 step 4
// requires. Outer and every Indirect binding's TargetEnv are
// deliberately left untouched -- both are environment-arena indices
// smuggled through value.Value's TagObject bit pattern for lack of a
// dedicated environment Tag (see OuterIndex), never real Object/Array
// references, so running them through an object/array compaction plan
// would corrupt them. Callers should only rewrite environments the mark
// phase actually reached this cycle, since Store's arena is never
// compacted and an unreached record may hold a stale reference to an
// object this cycle reclaimed.
func (s *Store) RewriteValues(idx heap.Index, translate func(value.Value) value.Value) {
	env := s.arena.Get(idx)
	for _, b := range env.Bindings {
		if b.HasValue {
			b.Value = translate(b.Value)
		}
	}
	if env.Kind == KindFunction {
		if env.ThisStatus != ThisLexical {
			env.ThisValue = translate(env.ThisValue)
		}
		env.FunctionObject = translate(env.FunctionObject)
		env.NewTarget = translate(env.NewTarget)
		if env.HasHomeObject {
			env.HomeObject = translate(env.HomeObject)
		}
	}
}

// RewriteBindingObject rewrites the environment's backing object index
// (Object and Global environments) through translateIdx, a raw
// heap.Index transform since BindingObject is stored as a plain
// heap.Index rather than a tagged value.Value.
func (s *Store) RewriteBindingObject(idx heap.Index, translateIdx func(heap.Index) heap.Index) {
	env := s.arena.Get(idx)
	if env.HasBindingObj {
		env.BindingObject = translateIdx(env.BindingObject)
	}
}

// OuterIndex returns the environment's Outer link as a raw arena index,
// for the gc package's environment-chain walk: Outer is stored as a
// Value only because Environment predates a dedicated environment Tag,
// not because it is an Object/Array/Function handle, so callers must use
// this accessor rather than Values to follow the chain.
func (s *Store) OuterIndex(idx heap.Index) (heap.Index, bool) {
	env := s.arena.Get(idx)
	if !env.HasOuter {
		return 0, false
	}
	return heap.Index(env.Outer.Index()), true
}
