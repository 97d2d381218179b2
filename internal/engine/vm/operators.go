package vm

import (
	"math"

	"github.com/trynova/nova-sub004/internal/engine/bytecode"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// ApplyBinary implements OpApplyStringOrNumericBinaryOperator (COMPONENT
// DESIGN §4.8: "pop rhs then lhs; dispatch to ECMA-262 operator
// algorithms"). String concatenation is applied whenever `+` sees a
// string operand on either side; every other arithmetic/relational/
// equality operator follows ToNumber coercion.
func (m *Machine) ApplyBinary(op bytecode.BinaryOperator, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case bytecode.BinaryAdd:
		if lhs.IsString() || rhs.IsString() {
			return m.StringValue(m.ToJSString(lhs) + m.ToJSString(rhs)), nil
		}
		l, err := m.ToNumber(lhs)
		if err != nil {
			return value.Undefined, err
		}
		r, err := m.ToNumber(rhs)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(l + r), nil
	case bytecode.BinarySubtract, bytecode.BinaryMultiply, bytecode.BinaryDivide,
		bytecode.BinaryRemainder, bytecode.BinaryExponent:
		l, err := m.ToNumber(lhs)
		if err != nil {
			return value.Undefined, err
		}
		r, err := m.ToNumber(rhs)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(numericArith(op, l, r)), nil
	case bytecode.BinaryBitwiseAnd, bytecode.BinaryBitwiseOr, bytecode.BinaryBitwiseXor,
		bytecode.BinaryShiftLeft, bytecode.BinaryShiftRight, bytecode.BinaryShiftRightUnsigned:
		l, err := m.ToNumber(lhs)
		if err != nil {
			return value.Undefined, err
		}
		r, err := m.ToNumber(rhs)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(float64(bitwiseOp(op, toInt32(l), toInt32(r)))), nil
	case bytecode.BinaryLessThan, bytecode.BinaryLessThanEquals,
		bytecode.BinaryGreaterThan, bytecode.BinaryGreaterThanEquals:
		return m.relational(op, lhs, rhs)
	case bytecode.BinaryEquals:
		return value.Boolean(m.looseEquals(lhs, rhs)), nil
	case bytecode.BinaryNotEquals:
		return value.Boolean(!m.looseEquals(lhs, rhs)), nil
	case bytecode.BinaryStrictEquals:
		return value.Boolean(value.StrictEquals(lhs, rhs)), nil
	case bytecode.BinaryStrictNotEquals:
		return value.Boolean(!value.StrictEquals(lhs, rhs)), nil
	default:
		return value.Undefined, &TypeErrorValue{Msg: "unknown binary operator"}
	}
}

func numericArith(op bytecode.BinaryOperator, l, r float64) float64 {
	switch op {
	case bytecode.BinarySubtract:
		return l - r
	case bytecode.BinaryMultiply:
		return l * r
	case bytecode.BinaryDivide:
		return l / r
	case bytecode.BinaryRemainder:
		return math.Mod(l, r)
	case bytecode.BinaryExponent:
		return math.Pow(l, r)
	default:
		panic("vm: numericArith called with non-arithmetic operator")
	}
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

func bitwiseOp(op bytecode.BinaryOperator, l, r int32) int32 {
	switch op {
	case bytecode.BinaryBitwiseAnd:
		return l & r
	case bytecode.BinaryBitwiseOr:
		return l | r
	case bytecode.BinaryBitwiseXor:
		return l ^ r
	case bytecode.BinaryShiftLeft:
		return l << (uint32(r) & 31)
	case bytecode.BinaryShiftRight:
		return l >> (uint32(r) & 31)
	case bytecode.BinaryShiftRightUnsigned:
		return int32(uint32(l) >> (uint32(r) & 31))
	default:
		panic("vm: bitwiseOp called with non-bitwise operator")
	}
}

func (m *Machine) relational(op bytecode.BinaryOperator, lhs, rhs value.Value) (value.Value, error) {
	if lhs.IsString() && rhs.IsString() {
		l, r := m.ToJSString(lhs), m.ToJSString(rhs)
		switch op {
		case bytecode.BinaryLessThan:
			return value.Boolean(l < r), nil
		case bytecode.BinaryLessThanEquals:
			return value.Boolean(l <= r), nil
		case bytecode.BinaryGreaterThan:
			return value.Boolean(l > r), nil
		default:
			return value.Boolean(l >= r), nil
		}
	}
	l, err := m.ToNumber(lhs)
	if err != nil {
		return value.Undefined, err
	}
	r, err := m.ToNumber(rhs)
	if err != nil {
		return value.Undefined, err
	}
	if math.IsNaN(l) || math.IsNaN(r) {
		return value.Boolean(false), nil
	}
	switch op {
	case bytecode.BinaryLessThan:
		return value.Boolean(l < r), nil
	case bytecode.BinaryLessThanEquals:
		return value.Boolean(l <= r), nil
	case bytecode.BinaryGreaterThan:
		return value.Boolean(l > r), nil
	default:
		return value.Boolean(l >= r), nil
	}
}

// looseEquals implements a practical subset of the Abstract Equality
// Comparison (==): same-tag values defer to SameValueNonNumberOrEqualTag
// except for numeric cross-tag comparisons, null/undefined are mutually
// loose-equal, and string/number coerce via ToNumber. Object-to-primitive
// coercion (ToPrimitive) is out of scope, matching this engine's
// Non-goals around exotic coercion.
func (m *Machine) looseEquals(a, b value.Value) bool {
	if a.IsNullOrUndefined() && b.IsNullOrUndefined() {
		return true
	}
	if a.IsNumber() && b.IsNumber() {
		return value.SameValue(a, b) || numbersEqual(m, a, b)
	}
	if a.IsString() && b.IsString() {
		return m.ToJSString(a) == m.ToJSString(b)
	}
	if a.Tag() == value.TagBoolean {
		af, _ := m.ToNumber(a)
		return m.looseEqualsNumber(af, b)
	}
	if b.Tag() == value.TagBoolean {
		bf, _ := m.ToNumber(b)
		return m.looseEqualsNumber(bf, a)
	}
	if a.IsNumber() && b.IsString() {
		bf, _ := m.ToNumber(b)
		return m.looseEqualsNumber(bf, a)
	}
	if a.IsString() && b.IsNumber() {
		af, _ := m.ToNumber(a)
		return m.looseEqualsNumber(af, b)
	}
	return value.SameValueNonNumberOrEqualTag(a, b)
}

func numbersEqual(m *Machine, a, b value.Value) bool {
	af, _ := m.ToNumber(a)
	bf, _ := m.ToNumber(b)
	return af == bf
}

func (m *Machine) looseEqualsNumber(f float64, v value.Value) bool {
	vf, err := m.ToNumber(v)
	if err != nil {
		return false
	}
	return f == vf
}

// ApplyUnary implements OpApplyUnaryOperator for unary minus, unary
// plus, logical not, bitwise not and void. typeof has its own opcode
// (OpTypeof); any other operator is rejected with a TypeError.
func (m *Machine) ApplyUnary(op bytecode.UnaryOperator, v value.Value) (value.Value, error) {
	switch op {
	case bytecode.UnaryMinus:
		f, err := m.ToNumber(v)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(-f), nil
	case bytecode.UnaryPlus:
		f, err := m.ToNumber(v)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(f), nil
	case bytecode.UnaryNot:
		return value.Boolean(!m.ToBooleanValue(v)), nil
	case bytecode.UnaryBitwiseNot:
		f, err := m.ToNumber(v)
		if err != nil {
			return value.Undefined, err
		}
		return m.NumberValue(float64(^toInt32(f))), nil
	case bytecode.UnaryVoid:
		return value.Undefined, nil
	default:
		return value.Undefined, &TypeErrorValue{Msg: "unsupported unary operator in this context"}
	}
}

// ToBooleanValue resolves ToBoolean for heap strings/numbers, which
// value.Value.ToBoolean cannot do on its own (it has no heap access).
func (m *Machine) ToBooleanValue(v value.Value) bool {
	switch v.Tag() {
	case value.TagString:
		return m.Heap.Strings.Get(heap.Index(v.Index())) != ""
	case value.TagHeapNumber:
		f := *m.Heap.Numbers.Get(heap.Index(v.Index()))
		return f != 0 && !math.IsNaN(f)
	default:
		return v.ToBoolean()
	}
}
