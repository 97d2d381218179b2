package vm

import (
	"github.com/trynova/nova-sub004/internal/engine/environment"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/iterop"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// toPropertyKey implements ToPropertyKey (ECMA-262 7.1.19) over the
// value shapes this engine produces: strings canonicalise through
// NewStringKey (so "7" still becomes an integer index key), numbers
// stringify first, symbols pass through directly.
func (m *Machine) toPropertyKey(v value.Value) object.PropertyKey {
	switch v.Tag() {
	case value.TagSymbol:
		return object.NewSymbolKey(v)
	case value.TagSmallString, value.TagString:
		return object.NewStringKey(m.ToJSString(v), func(s string) heap.Index { return m.Heap.Strings.Intern(s) })
	default:
		return object.NewStringKey(m.ToJSString(v), func(s string) heap.Index { return m.Heap.Strings.Intern(s) })
	}
}

// isCallable reports whether v is one of the function tags.
func isCallable(v value.Value) bool {
	switch v.Tag() {
	case value.TagBuiltinFunction, value.TagECMAScriptFunction, value.TagBoundFunction:
		return true
	default:
		return false
	}
}

// CallFunction implements the EvaluateCall opcode's [[Call]] dispatch:
// native functions run directly, ECMAScript functions run as a nested
// Vm frame over a fresh function environment (COMPONENT DESIGN §4.8).
func (m *Machine) CallFunction(scope rooting.GcScope, fn, thisArg value.Value, args []value.Value, depth int) (value.Value, error) {
	if !isCallable(fn) {
		return value.Undefined, &TypeErrorValue{Msg: "value is not a function"}
	}
	rec := m.Functions.Get(fn)
	if rec.IsNative {
		return rec.Native(m, scope.Reborrow(), thisArg, args)
	}
	callThis := thisArg
	if rec.IsArrow {
		callThis = rec.CapturedThis
	}
	env := m.Environments.NewFunction(value.Object(uint32(rec.ClosureEnv)), true, environment.ThisInitialized, fn)
	m.Environments.Get(env).ThisValue = callThis
	for i, name := range rec.ParamNames {
		var a value.Value = value.Undefined
		if i < len(args) {
			a = args[i]
		}
		_ = m.Environments.CreateMutableBinding(env, name, false)
		_ = m.Environments.InitializeBinding(env, name, a)
	}
	frame := NewVm(m, rec.Body, env, callThis)
	return frame.run(scope.Reborrow(), depth)
}

// Construct implements EvaluateNew's [[Construct]] dispatch: allocates a
// fresh ordinary object and runs the constructor with it bound as this,
// returning the constructor's own return value only if it is itself an
// object (ECMA-262 OrdinaryCreateFromConstructor / [[Construct]]).
func (m *Machine) Construct(scope rooting.GcScope, fn value.Value, args []value.Value, depth int) (value.Value, error) {
	if !isCallable(fn) {
		return value.Undefined, &TypeErrorValue{Msg: "value is not a constructor"}
	}
	proto, hasProto := value.Value{}, false
	if rec, _, found := m.lookupNativeProtoProperty(fn); found {
		proto, hasProto = rec, true
	}
	objIdx := m.Objects.Create(proto, hasProto)
	thisObj := value.Object(uint32(objIdx))
	rv, err := m.CallFunction(scope, fn, thisObj, args, depth)
	if err != nil {
		return value.Undefined, err
	}
	if rv.Tag() == value.TagObject {
		return rv, nil
	}
	return thisObj, nil
}

// lookupNativeProtoProperty is Construct's source for a constructed
// instance's [[Prototype]]. It always reports not found: function values
// carry no own properties here, so fn.prototype is never read and
// constructed instances get a null [[Prototype]].
func (m *Machine) lookupNativeProtoProperty(fn value.Value) (value.Value, object.DescriptorBits, bool) {
	return value.Undefined, 0, false
}

// InstanceOf implements the `instanceof` operator's OrdinaryHasInstance
// subset: walks lhs's prototype chain comparing against rhs.prototype.
func (m *Machine) InstanceOf(lhs, rhs value.Value) (bool, error) {
	if !isCallable(rhs) {
		return false, &TypeErrorValue{Msg: "Right-hand side of 'instanceof' is not callable"}
	}
	if lhs.Tag() != value.TagObject {
		return false, nil
	}
	targetProto, _, found := m.GetOwnOrInherited(rhs, m.key("prototype"))
	if !found || targetProto.Tag() != value.TagObject {
		return false, nil
	}
	cur, has := m.Objects.GetPrototypeOf(heap.Index(lhs.Index()))
	for has && cur.Tag() == value.TagObject {
		if value.SameValueNonNumberOrEqualTag(cur, targetProto) {
			return true, nil
		}
		cur, has = m.Objects.GetPrototypeOf(heap.Index(cur.Index()))
	}
	return false, nil
}

// GetOwnOrInherited is GetProperty plus the descriptor bits of wherever
// the property was finally found, used by instanceof's prototype lookup.
func (m *Machine) GetOwnOrInherited(receiver value.Value, key object.PropertyKey) (value.Value, object.DescriptorBits, bool) {
	cur := receiver
	for cur.Tag() == value.TagObject {
		idx := heap.Index(cur.Index())
		if v, bits, found := m.Objects.GetOwn(idx, key.Value()); found {
			return v, bits, true
		}
		proto, has := m.Objects.GetPrototypeOf(idx)
		if !has {
			break
		}
		cur = proto
	}
	return value.Undefined, 0, false
}

// call adapts CallFunction into iterop.Caller, threading the current
// GcScope/depth.
func (m *Machine) call(scope rooting.GcScope, depth int) iterop.Caller {
	return func(fn, thisArg value.Value, args []value.Value) (value.Value, error) {
		return m.CallFunction(scope, fn, thisArg, args, depth)
	}
}

// arrayIterator builds an iterop.Record over an Array value's dense
// elements without going through the Symbol.iterator protocol (see
// OpGetIteratorSync's fast path).
func (m *Machine) arrayIterator(arrIdx heap.Index) iterop.Record {
	pos := 0
	next := m.Functions.CreateNative("array iterator next", 0, func(m *Machine, scope rooting.GcScope, thisArg value.Value, args []value.Value) (value.Value, error) {
		elems := m.Arrays.Elements(arrIdx)
		resultIdx := m.Objects.Create(value.Null, false)
		if pos >= len(elems) {
			m.Objects.DefineOwnDataProperty(resultIdx, m.key("done"), value.Boolean(true), object.NewDataDescriptor(true, true, true))
			m.Objects.DefineOwnDataProperty(resultIdx, m.key("value"), value.Undefined, object.NewDataDescriptor(true, true, true))
			return value.Object(uint32(resultIdx)), nil
		}
		v := elems[pos]
		pos++
		m.Objects.DefineOwnDataProperty(resultIdx, m.key("done"), value.Boolean(false), object.NewDataDescriptor(true, true, true))
		m.Objects.DefineOwnDataProperty(resultIdx, m.key("value"), v, object.NewDataDescriptor(true, true, true))
		return value.Object(uint32(resultIdx)), nil
	})
	return iterop.Record{Iterator: value.Undefined, NextMethod: next}
}

// getPropCallback adapts GetProperty into iterop.PropertyGetter.
func (m *Machine) getPropCallback() iterop.PropertyGetter {
	return func(receiver value.Value, key object.PropertyKey) (value.Value, error) {
		return m.GetProperty(receiver, key)
	}
}
