package realm

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/engine/vm"
)

// Intrinsics is the fixed set of well-known objects a realm wires at
// creation time (DATA MODEL §3.8, COMPONENT DESIGN §4.6: "realm creation
// wires up the well-known intrinsic objects in a fixed topological
// order"). This reference engine stops at the prototype objects
// themselves plus their constructors' function identity -- the full
// ECMA-262 builtin method catalogue (Array.prototype.map and friends) is
// an explicit library Non-goal (see spec.md's Non-goals).
type Intrinsics struct {
	ObjectPrototype   value.Value
	FunctionPrototype value.Value
	ObjectConstructor value.Value
}

// ObjectBuilder is the Go analog of the original's
// OrdinaryObjectBuilder: a fluent constructor for an intrinsic object,
// ported from builders/ordinary_object_builder.rs. Every call mutates
// and returns the same *ObjectBuilder so call sites can chain
// `.Property(...).Property(...).Build()` the way the original chains
// `.property(...).property(...)`.
type ObjectBuilder struct {
	agent *Agent
	idx   heap.Index
}

// NewObjectBuilder allocates a fresh ordinary object with the given
// prototype and returns a builder over it.
func NewObjectBuilder(a *Agent, proto value.Value, hasProto bool) *ObjectBuilder {
	idx := a.Machine.Objects.Create(proto, hasProto)
	return &ObjectBuilder{agent: a, idx: idx}
}

// Property installs a data property with the default intrinsic
// attributes (writable, non-enumerable, configurable -- ECMA-262's
// usual attributes for builtin-installed properties).
func (b *ObjectBuilder) Property(name string, v value.Value) *ObjectBuilder {
	return b.PropertyWithAttrs(name, v, true, false, true)
}

// PropertyWithAttrs installs a data property with explicit attributes,
// the builder's escape hatch for non-default cases (e.g. `length` and
// `name` on function objects, writable: false).
func (b *ObjectBuilder) PropertyWithAttrs(name string, v value.Value, writable, enumerable, configurable bool) *ObjectBuilder {
	key := intrinsicKey(b.agent, name)
	bits := object.NewDataDescriptor(writable, enumerable, configurable)
	b.agent.Machine.Objects.DefineOwnDataProperty(b.idx, key, v, bits)
	return b
}

// Method installs a native function as a non-enumerable data property,
// the common "builtin method" shape (ported from builtin_function_builder.rs's
// with_method, folded into ObjectBuilder since this engine does not
// distinguish a separate builder type for the method case).
func (b *ObjectBuilder) Method(name string, paramCount int, fn vm.NativeFunc) *ObjectBuilder {
	fnValue := b.agent.Machine.Functions.CreateNative(name, paramCount, fn)
	return b.PropertyWithAttrs(name, fnValue, true, false, true)
}

// intrinsicKey interns name as a PropertyKey; builder.go's own copy of
// Machine.key, which is unexported and package-private to vm.
func intrinsicKey(a *Agent, name string) object.PropertyKey {
	return object.NewStringKey(name, func(s string) heap.Index { return a.Machine.Heap.Strings.Intern(s) })
}

// Build returns the finished object's heap index.
func (b *ObjectBuilder) Build() heap.Index { return b.idx }

// Value returns the finished object as a tagged Value.
func (b *ObjectBuilder) Value() value.Value { return value.Object(uint32(b.idx)) }

// BuiltinFunctionBuilder is the Go analog of
// builtin_function_builder.rs: wraps FunctionTable.CreateNative. The
// `name`/`length` values ECMA-262 requires every builtin function to
// carry are not installed as own properties. Nova's original stores these as dedicated FunctionRecord fields
// instead of object properties; this engine's FunctionRecord (vm
// package) does the same (Name/ParamCount), so this builder is a thin
// convenience over CreateNative rather than a second set of storage --
// kept as a distinct type to mirror the original's builder split and
// to leave room for a future exotic "bind" builder (see DESIGN.md's
// Function.prototype.bind Open Question).
type BuiltinFunctionBuilder struct {
	agent *Agent
	fn    value.Value
}

// NewBuiltinFunctionBuilder registers a native function under name.
func NewBuiltinFunctionBuilder(a *Agent, name string, paramCount int, impl vm.NativeFunc) *BuiltinFunctionBuilder {
	return &BuiltinFunctionBuilder{agent: a, fn: a.Machine.Functions.CreateNative(name, paramCount, impl)}
}

// Value returns the finished function as a tagged Value.
func (b *BuiltinFunctionBuilder) Value() value.Value { return b.fn }

// buildIntrinsics wires a fresh realm's well-known objects in the fixed
// topological order §4.6 requires: %Object.prototype% has no prototype
// of its own and must exist before anything else; %Function.prototype%
// chains to it; the global object itself (already created by
// CreateRealm before this runs) is then reparented onto
// %Object.prototype% so property lookups on global bindings fall back
// to it, matching ECMA-262's GlobalObject having [[Prototype]] ==
// %Object.prototype%.
func buildIntrinsics(a *Agent, r *Realm) Intrinsics {
	objectProto := NewObjectBuilder(a, value.Null, false).Build()
	functionProto := NewObjectBuilder(a, value.Object(uint32(objectProto)), true).Build()

	objectCtor := NewBuiltinFunctionBuilder(a, "Object", 1, func(m *vm.Machine, scope rooting.GcScope, thisArg value.Value, args []value.Value) (value.Value, error) {
		return value.Object(uint32(m.Objects.Create(value.Object(uint32(objectProto)), true))), nil
	}).Value()

	a.Machine.Objects.SetPrototypeOf(r.GlobalObject, value.Object(uint32(objectProto)), true,
		func(v value.Value) (heap.Index, bool) {
			if v.Tag() != value.TagObject {
				return 0, false
			}
			return heap.Index(v.Index()), true
		})

	return Intrinsics{
		ObjectPrototype:   value.Object(uint32(objectProto)),
		FunctionPrototype: value.Object(uint32(functionProto)),
		ObjectConstructor: objectCtor,
	}
}
