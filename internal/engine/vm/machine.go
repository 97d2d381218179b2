package vm

import (
	"fmt"
	"math"

	"github.com/trynova/nova-sub004/internal/engine/environment"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Machine is the agent-level state shared by every call frame: the heap,
// the object-model stores, the environment store, the function table,
// and the rooted scope-value stack (COMPONENT DESIGN §4.2-§4.6 composed
// together). realm.Agent builds one of these and wires its intrinsics on
// top; this package only needs the stores themselves to execute
// bytecode, so it does not import realm (avoiding the cycle realm's own
// intrinsics wiring would otherwise create).
type Machine struct {
	Heap         *heap.Heap
	Objects      *object.Store
	Arrays       *object.ArrayStore
	Environments *environment.Store
	Functions    *FunctionTable
	Stack        *rooting.StackValues

	GlobalEnv heap.Index
}

// NewMachine wires a fresh agent with empty stores, per EXTERNAL
// INTERFACES §6.1's create_agent.
func NewMachine(threshold uint64) *Machine {
	h := heap.New(threshold)
	shapes := object.NewShapeStore(h.Elements)
	objects := object.NewStore(shapes, h.Elements)
	arrays := object.NewArrayStore(h.Elements)
	envs := environment.NewStore(objects, h.Strings)
	globalObj := objects.Create(value.Null, false)
	globalEnv := envs.NewGlobal(globalObj)
	return &Machine{
		Heap: h, Objects: objects, Arrays: arrays, Environments: envs,
		Functions: NewFunctionTable(), Stack: rooting.NewStackValues(),
		GlobalEnv: globalEnv,
	}
}

// key interns name as a PropertyKey.
func (m *Machine) key(name string) object.PropertyKey {
	return object.NewStringKey(name, func(s string) heap.Index { return m.Heap.Strings.Intern(s) })
}

// resolveObjectIndex maps an Object-tagged Value to its heap.Index, the
// callback object.Store.SetPrototypeOf requires (OBJECT MODEL §4.5).
func resolveObjectIndex(v value.Value) (heap.Index, bool) {
	if v.Tag() != value.TagObject {
		return 0, false
	}
	return heap.Index(v.Index()), true
}

// GetProperty implements the ordinary [[Get]] walk: own property lookup
// across the prototype chain, following OBJECT MODEL §4.5. Accessor
// properties are not dispatched here; see DESIGN.md's recorded
// simplification (this reference engine limits accessor support to
// intrinsic getters registered as NativeFunc pairs outside the regular
// object model).
func (m *Machine) GetProperty(receiver value.Value, key object.PropertyKey) (value.Value, error) {
	cur := receiver
	for {
		if cur.Tag() != value.TagObject {
			return value.Undefined, nil
		}
		idx := heap.Index(cur.Index())
		if v, _, found := m.Objects.GetOwn(idx, key.Value()); found {
			return v, nil
		}
		proto, has := m.Objects.GetPrototypeOf(idx)
		if !has {
			return value.Undefined, nil
		}
		cur = proto
	}
}

// SetProperty implements the ordinary [[Set]] path used by
// ObjectSetProperty/PutValue's value-base dispatch: if receiver has the
// property as an own property it is overwritten when writable (and left
// alone otherwise), else a new own data property is added on receiver;
// the prototype chain is not consulted (OBJECT MODEL §4.5).
func (m *Machine) SetProperty(receiver value.Value, key object.PropertyKey, v value.Value) error {
	if receiver.Tag() != value.TagObject {
		return &TypeErrorValue{Msg: "Cannot create property on non-object"}
	}
	idx := heap.Index(receiver.Index())
	if _, bits, found := m.Objects.GetOwn(idx, key.Value()); found {
		if !bits.Writable() {
			return nil
		}
		m.Objects.DefineOwnDataProperty(idx, key, v, bits)
		return nil
	}
	m.Objects.DefineOwnDataProperty(idx, key, v, object.NewDataDescriptor(true, true, true))
	return nil
}

// ValueGetter/ValueSetter adapters for environment.Reference's value-base
// dispatch (property access on an arbitrary expression base).
func (m *Machine) valueGetter(base value.Value, name string) (value.Value, error) {
	return m.GetProperty(base, m.key(name))
}

func (m *Machine) valueSetter(base value.Value, name string, v value.Value, strict bool) error {
	return m.SetProperty(base, m.key(name), v)
}

// TypeErrorValue is the VM-raised TypeError; distinct from
// environment.TypeError only to keep the two packages decoupled.
type TypeErrorValue struct{ Msg string }

func (e *TypeErrorValue) Error() string { return e.Msg }

// ToNumber implements the relevant subset of ToNumber (ECMA-262 7.1.4)
// over the tags this reference engine actually produces: numbers pass
// through, booleans/undefined/null convert per spec, strings parse as
// float64, objects are rejected (ToPrimitive/valueOf are out of scope --
// see SPEC_FULL.md's Non-goals for exotic coercion).
func (m *Machine) ToNumber(v value.Value) (float64, error) {
	switch v.Tag() {
	case value.TagInteger:
		return float64(v.AsInteger()), nil
	case value.TagSmallF64:
		return v.AsSmallF64(), nil
	case value.TagBoolean:
		if v.AsBoolean() {
			return 1, nil
		}
		return 0, nil
	case value.TagUndefined:
		return math.NaN(), nil
	case value.TagNull:
		return 0, nil
	case value.TagHeapNumber:
		return *m.Heap.Numbers.Get(heap.Index(v.Index())), nil
	case value.TagSmallString:
		return parseNumericString(v.AsSmallString())
	case value.TagString:
		return parseNumericString(m.Heap.Strings.Get(heap.Index(v.Index())))
	default:
		return 0, &TypeErrorValue{Msg: "Cannot convert object to a primitive number"}
	}
}

func parseNumericString(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return math.NaN(), nil
	}
	return f, nil
}

// NumberValue boxes f as Integer/SmallF64/HeapNumber depending on
// representability (DATA MODEL §3.1 invariant 2).
func (m *Machine) NumberValue(f float64) value.Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		const limit = 1<<53 - 1
		if f >= -limit && f <= limit {
			return value.Integer(int64(f))
		}
	}
	if v, ok := value.SmallF64(f); ok {
		return v
	}
	return value.HeapNumber(uint32(m.Heap.CreateNumber(f)))
}

// ToJSString renders v as a JS string for `+` concatenation and Typeof's
// string-literal needs (a minimal subset of ToString, ECMA-262 7.1.17).
func (m *Machine) ToJSString(v value.Value) string {
	switch v.Tag() {
	case value.TagSmallString:
		return v.AsSmallString()
	case value.TagString:
		return m.Heap.Strings.Get(heap.Index(v.Index()))
	case value.TagUndefined:
		return "undefined"
	case value.TagNull:
		return "null"
	case value.TagBoolean:
		if v.AsBoolean() {
			return "true"
		}
		return "false"
	case value.TagInteger:
		return fmt.Sprintf("%d", v.AsInteger())
	case value.TagSmallF64:
		return formatFloat(v.AsSmallF64())
	case value.TagHeapNumber:
		return formatFloat(*m.Heap.Numbers.Get(heap.Index(v.Index())))
	case value.TagObject, value.TagArray:
		return "[object Object]"
	default:
		return fmt.Sprintf("[%v]", v.Tag())
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return fmt.Sprintf("%g", f)
}

// StringValue interns s as a SmallString or heap String Value, whichever
// fits (DATA MODEL §3.1).
func (m *Machine) StringValue(s string) value.Value {
	if v, ok := value.SmallString(s); ok {
		return v
	}
	return value.String(uint32(m.Heap.InternString(s)))
}

// TypeOf implements the `typeof` unary operator.
func (m *Machine) TypeOf(v value.Value) string {
	switch v.Tag() {
	case value.TagUndefined:
		return "undefined"
	case value.TagNull:
		return "object"
	case value.TagBoolean:
		return "boolean"
	case value.TagSmallString, value.TagString:
		return "string"
	case value.TagInteger, value.TagSmallF64, value.TagHeapNumber:
		return "number"
	case value.TagSmallBigInt, value.TagHeapBigInt:
		return "bigint"
	case value.TagSymbol:
		return "symbol"
	case value.TagBuiltinFunction, value.TagECMAScriptFunction, value.TagBoundFunction:
		return "function"
	default:
		return "object"
	}
}

// newErrorPrototype builds the minimal per-kind Error prototype object
// for name. The full Error-intrinsic hierarchy (Error.prototype's
// toString, captureStackTrace, per-kind subclassing, and a shared
// singleton prototype per kind) is out of scope (see SPEC_FULL.md's
// library Non-goals), but a thrown value must still satisfy
// `e.constructor.name` (spec scenario S3), so each prototype carries
// exactly one own property, `constructor`, pointing at a plain object
// whose own `name` is the kind string. Built fresh per call rather than
// cached on Machine: a cache field would need its own GC root, and
// nothing else in this engine holds heap handles outside the rooted
// stack/Globals/environment chains.
func (m *Machine) newErrorPrototype(name string) value.Value {
	ctorIdx := m.Objects.Create(value.Null, false)
	m.Objects.DefineOwnDataProperty(ctorIdx, m.key("name"), m.StringValue(name), object.NewDataDescriptor(true, false, true))
	protoIdx := m.Objects.Create(value.Null, false)
	m.Objects.DefineOwnDataProperty(protoIdx, m.key("constructor"), value.Object(uint32(ctorIdx)), object.NewDataDescriptor(true, false, true))
	return value.Object(uint32(protoIdx))
}

// ErrorToValue renders a Go error raised by a helper (TypeError,
// ReferenceError, RangeError, or an already-thrown JS value) as a
// catchable JS value. Errors surface as ordinary objects carrying
// `name`/`message` own properties plus a per-kind prototype (see
// newErrorPrototype) rather than true Error-intrinsic instances --
// try/catch, instanceof-free error inspection, and `e.constructor.name`
// all work against this shape. Exported (rather than kept as a
// Machine-private helper) so realm.Agent can render the same shape for
// an error that propagates all the way out of a Run/CallFunction call
// with no exception target left to catch it.
func (m *Machine) ErrorToValue(err error) value.Value {
	if te, ok := err.(*ThrownError); ok {
		return te.Value
	}
	name, msg := "Error", err.Error()
	switch err.(type) {
	case *environment.ReferenceError:
		name = "ReferenceError"
	case *environment.TypeError, *TypeErrorValue:
		name = "TypeError"
	case *RangeError, *StackOverflowError:
		name = "RangeError"
	}
	idx := m.Objects.Create(m.newErrorPrototype(name), true)
	m.Objects.DefineOwnDataProperty(idx, m.key("name"), m.StringValue(name), object.NewDataDescriptor(true, false, true))
	m.Objects.DefineOwnDataProperty(idx, m.key("message"), m.StringValue(msg), object.NewDataDescriptor(true, false, true))
	return value.Object(uint32(idx))
}
