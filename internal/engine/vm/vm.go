package vm

import (
	"fmt"

	"github.com/trynova/nova-sub004/internal/engine/bytecode"
	"github.com/trynova/nova-sub004/internal/engine/environment"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/iterop"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// excTarget is one entry of the exception-jump-target stack (DATA MODEL
// §3.8): the catch handler's byte offset plus the operand-stack depth to
// unwind back to.
type excTarget struct {
	ip        uint32
	stackLen  int
	refLen    int
}

// ThrownError wraps a JS value thrown by `throw` or an abrupt
// completion, the Go-level carrier for what ECMA-262 calls a Throw
// completion once it has propagated past the outermost exception target
// (ERROR HANDLING DESIGN §7).
type ThrownError struct {
	Value value.Value
}

func (e *ThrownError) Error() string { return "uncaught exception" }

// Vm is one call frame's interpreter state (COMPONENT DESIGN §4.8):
// result register, operand stack, reference stack, iterator stack,
// exception targets, and instruction pointer.
type Vm struct {
	m          *Machine
	exe        *bytecode.Executable
	ip         uint32
	result     value.Value
	operand    *Stack
	refStack   []environment.Reference
	iterStack  []iterop.Record
	excTargets []excTarget
	env        heap.Index
	thisValue  value.Value
}

// NewVm constructs a call frame executing exe under lexical environment
// env.
func NewVm(m *Machine, exe *bytecode.Executable, env heap.Index, thisValue value.Value) *Vm {
	return &Vm{m: m, exe: exe, operand: NewStack(), env: env, thisValue: thisValue}
}

// depthLimit bounds recursive ECMAScript-function calls the way a native
// stack would, surfaced as a RangeError/StackOverflowError at the next
// safepoint (ERROR HANDLING DESIGN §7).
const depthLimit = 2000

// Run executes the instruction stream to completion, returning the
// value an OpReturn produced (or Undefined if execution fell off the
// end of the stream).
func (vm *Vm) Run(scope rooting.GcScope) (value.Value, error) {
	return vm.run(scope, 0)
}

func (vm *Vm) run(scope rooting.GcScope, depth int) (value.Value, error) {
	if depth > depthLimit {
		return value.Undefined, &StackOverflowError{}
	}
	for vm.ip < vm.exe.Len() {
		op := vm.exe.OpcodeAt(vm.ip)
		if !op.Valid() {
			return value.Undefined, &CorruptBytecodeError{Detail: fmt.Sprintf("opcode %d at ip %d", op, vm.ip)}
		}
		vm.ip++
		v, abrupt, err := vm.step(op, scope, depth)
		if err != nil {
			if handled, hv, herr := vm.handleThrow(err); handled {
				if herr != nil {
					return value.Undefined, herr
				}
				_ = hv
				continue
			}
			return value.Undefined, err
		}
		if abrupt {
			return v, nil
		}
	}
	return value.Undefined, nil
}

// handleThrow converts err into a JS exception value and, if an
// exception target is active, unwinds the operand/reference stacks and
// resumes at the handler (ERROR HANDLING DESIGN §7). If no target is
// active the error propagates to the caller unchanged; only a `throw`
// already arrives as a ThrownError, and other Go errors are not wrapped.
func (vm *Vm) handleThrow(err error) (handled bool, v value.Value, propagate error) {
	if len(vm.excTargets) == 0 {
		return false, value.Undefined, nil
	}
	errVal := vm.errorToValue(err)
	target := vm.excTargets[len(vm.excTargets)-1]
	vm.excTargets = vm.excTargets[:len(vm.excTargets)-1]
	vm.operand.data = vm.operand.data[:target.stackLen]
	vm.refStack = vm.refStack[:target.refLen]
	vm.operand.Push(errVal)
	vm.ip = target.ip
	return true, errVal, nil
}

// errorToValue renders a Go error raised by a helper (TypeError,
// ReferenceError, RangeError, or an already-thrown JS value) as a
// catchable JS value. Errors surface as plain ordinary objects carrying
// `name`/`message` own properties rather than true Error-intrinsic
// instances, since the Error constructor hierarchy is out of scope (see
// SPEC_FULL.md's library Non-goals) -- try/catch and instanceof-free
// error inspection both still work against this shape.
func (vm *Vm) errorToValue(err error) value.Value {
	return vm.m.ErrorToValue(err)
}

// step executes one instruction. abrupt is true when the instruction is
// OpReturn, signalling Run to stop with v as the frame's result.
func (vm *Vm) step(op bytecode.Opcode, scope rooting.GcScope, depth int) (v value.Value, abrupt bool, err error) {
	switch op {
	case bytecode.OpLoadConstant:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		vm.result = vm.exe.Constants[idx]
	case bytecode.OpLoad:
		vm.operand.Push(vm.result)
	case bytecode.OpStore:
		r, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = r
	case bytecode.OpDup:
		if e := vm.operand.Dup(); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpSwap:
		if e := vm.operand.Swap(); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpPop:
		if _, e := vm.operand.Pop(); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpLoadCopy:
		vm.operand.Push(vm.result)

	case bytecode.OpResolveBinding:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		name := vm.constantString(idx)
		ref := vm.m.Environments.ResolveBinding(vm.env, name, false)
		vm.refStack = append(vm.refStack, ref)
	case bytecode.OpResolveThisBinding:
		vm.result = vm.thisValue
	case bytecode.OpGetValue:
		if len(vm.refStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "GetValue with empty reference stack"}
		}
		ref := vm.refStack[len(vm.refStack)-1]
		gv, e := vm.m.Environments.GetValue(ref, vm.m.valueGetter)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = gv
	case bytecode.OpPutValue:
		if len(vm.refStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "PutValue with empty reference stack"}
		}
		ref := vm.refStack[len(vm.refStack)-1]
		if e := vm.m.Environments.PutValue(ref, vm.result, vm.m.valueSetter); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpPushReference:
		// the reference currently referred to by ResolveBinding is already
		// on refStack; this opcode exists for the compiler to duplicate it
		// ahead of a compound-assignment GetValue/PutValue pair.
		if len(vm.refStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "PushReference with empty reference stack"}
		}
		vm.refStack = append(vm.refStack, vm.refStack[len(vm.refStack)-1])
	case bytecode.OpPopReference:
		if len(vm.refStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "PopReference with empty reference stack"}
		}
		vm.refStack = vm.refStack[:len(vm.refStack)-1]

	case bytecode.OpEvaluateCall:
		argc := int(vm.exe.ReadU16(vm.ip))
		vm.ip += 2
		args, e := vm.popArgs(argc)
		if e != nil {
			return value.Undefined, false, e
		}
		fn, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		thisArg, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		rv, e := vm.m.CallFunction(scope, fn, thisArg, args, depth+1)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = rv
	case bytecode.OpEvaluateNew:
		argc := int(vm.exe.ReadU16(vm.ip))
		vm.ip += 2
		args, e := vm.popArgs(argc)
		if e != nil {
			return value.Undefined, false, e
		}
		fn, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		rv, e := vm.m.Construct(scope, fn, args, depth+1)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = rv
	case bytecode.OpEvaluateSuperCall:
		return value.Undefined, false, &TypeErrorValue{Msg: "super calls are not supported"}

	case bytecode.OpJump:
		target := vm.exe.ReadU32(vm.ip)
		vm.ip = target
	case bytecode.OpJumpIfNot:
		target := vm.exe.ReadU32(vm.ip)
		vm.ip += 4
		if !vm.m.ToBooleanValue(vm.result) {
			vm.ip = target
		}
	case bytecode.OpJumpIfTrue:
		target := vm.exe.ReadU32(vm.ip)
		vm.ip += 4
		if vm.m.ToBooleanValue(vm.result) {
			vm.ip = target
		}
	case bytecode.OpJumpIfNullish:
		target := vm.exe.ReadU32(vm.ip)
		vm.ip += 4
		if vm.result.IsNullOrUndefined() {
			vm.ip = target
		}

	case bytecode.OpThrow:
		return value.Undefined, false, &ThrownError{Value: vm.result}
	case bytecode.OpPushExceptionJumpTarget:
		target := vm.exe.ReadU32(vm.ip)
		vm.ip += 4
		vm.excTargets = append(vm.excTargets, excTarget{ip: target, stackLen: vm.operand.Len(), refLen: len(vm.refStack)})
	case bytecode.OpPopExceptionJumpTarget:
		if len(vm.excTargets) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "PopExceptionJumpTarget with empty target stack"}
		}
		vm.excTargets = vm.excTargets[:len(vm.excTargets)-1]
	case bytecode.OpReThrow:
		return value.Undefined, false, &ThrownError{Value: vm.result}

	case bytecode.OpApplyStringOrNumericBinaryOperator:
		bop := bytecode.BinaryOperator(vm.exe.ReadU16(vm.ip))
		vm.ip += 2
		rhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		lhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		rv, e := vm.m.ApplyBinary(bop, lhs, rhs)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = rv
	case bytecode.OpApplyUnaryOperator:
		uop := bytecode.UnaryOperator(vm.exe.ReadU16(vm.ip))
		vm.ip += 2
		rv, e := vm.m.ApplyUnary(uop, vm.result)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = rv
	case bytecode.OpInstanceofOperator:
		rhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		lhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		rv, e := vm.m.InstanceOf(lhs, rhs)
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = value.Boolean(rv)
	case bytecode.OpInOperator:
		rhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		lhs, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		if rhs.Tag() != value.TagObject {
			return value.Undefined, false, &TypeErrorValue{Msg: "Cannot use 'in' operator on a non-object"}
		}
		key := vm.m.toPropertyKey(lhs)
		vm.result = value.Boolean(vm.m.Objects.HasOwn(heap.Index(rhs.Index()), key.Value()))
	case bytecode.OpTypeof:
		vm.result = vm.m.StringValue(vm.m.TypeOf(vm.result))

	case bytecode.OpArrayCreate:
		capHint := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		idx := vm.m.Arrays.Create(uint32(capHint), value.Null, false)
		vm.operand.Push(value.Handle(value.TagArray, uint32(idx)))
	case bytecode.OpArrayPush:
		arr, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		vm.m.Arrays.Push(heap.Index(arr.Index()), vm.result)
	case bytecode.OpArraySetValue:
		index := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		arr, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		vm.m.Arrays.SetValue(heap.Index(arr.Index()), uint32(index), vm.result)
	case bytecode.OpArraySetLength:
		newLen, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		arr, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		vm.m.Arrays.SetLength(heap.Index(arr.Index()), uint32(newLen.AsInteger()))

	case bytecode.OpObjectCreate:
		vm.ip += 2 // shape pool index currently unused: ordinary objects always start from the root shape
		idx := vm.m.Objects.Create(value.Null, false)
		vm.operand.Push(value.Object(uint32(idx)))
	case bytecode.OpObjectSetProperty:
		v2, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		k, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		obj, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		key := vm.m.toPropertyKey(k)
		if e := vm.m.SetProperty(obj, key, v2); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpObjectDefineMethod:
		fn, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		k, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		obj, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		key := vm.m.toPropertyKey(k)
		vm.m.Objects.DefineOwnDataProperty(heap.Index(obj.Index()), key, fn, object.NewDataDescriptor(true, true, true))
	case bytecode.OpObjectSetPrototype:
		proto, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		obj, e := vm.operand.Peek()
		if e != nil {
			return value.Undefined, false, e
		}
		if !vm.m.Objects.SetPrototypeOf(heap.Index(obj.Index()), proto, !proto.IsNull(), resolveObjectIndex) {
			return value.Undefined, false, &TypeErrorValue{Msg: "Cyclic object prototype value"}
		}

	case bytecode.OpGetIteratorSync:
		method, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		obj, e := vm.operand.Pop()
		if e != nil {
			return value.Undefined, false, e
		}
		var rec iterop.Record
		if obj.Tag() == value.TagArray {
			// Fast path: array values are exotic objects backed by
			// object.ArrayStore rather than the ordinary property model
			// GetIteratorFromMethod's Symbol.iterator dispatch assumes, so
			// this reference engine builds the iterator record directly
			// instead of resolving and calling a `[Symbol.iterator]`
			// method (full Symbol-keyed well-known method dispatch is out
			// of scope per SPEC_FULL.md's Non-goals).
			rec = vm.m.arrayIterator(heap.Index(obj.Index()))
		} else {
			rec, e = iterop.GetIteratorFromMethod(obj, method, vm.m.call(scope, depth+1), vm.m.getPropCallback(), vm.m.key("next"))
			if e != nil {
				return value.Undefined, false, e
			}
		}
		vm.iterStack = append(vm.iterStack, rec)
	case bytecode.OpIteratorStepValue:
		if len(vm.iterStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "IteratorStepValue with empty iterator stack"}
		}
		rec := &vm.iterStack[len(vm.iterStack)-1]
		iv, done, e := iterop.Step(rec, vm.m.call(scope, depth+1), vm.m.getPropCallback(), vm.m.key("value"), vm.m.key("done"))
		if e != nil {
			return value.Undefined, false, e
		}
		vm.result = iv
		vm.operand.Push(value.Boolean(done))
	case bytecode.OpIteratorClose:
		if len(vm.iterStack) == 0 {
			return value.Undefined, false, &CorruptBytecodeError{Detail: "IteratorClose with empty iterator stack"}
		}
		rec := vm.iterStack[len(vm.iterStack)-1]
		vm.iterStack = vm.iterStack[:len(vm.iterStack)-1]
		if e := iterop.Close(rec, vm.m.call(scope, depth+1), vm.m.getPropCallback(), vm.m.key("return"), nil); e != nil {
			return value.Undefined, false, e
		}

	case bytecode.OpBeginSimpleArrayBindingPattern, bytecode.OpBeginSimpleObjectBindingPattern:
		// the value to destructure is already in vm.result; nothing further
		// to stage since this reference engine destructures eagerly via
		// BindingPatternBind/BindRest against the iterator/object directly.
	case bytecode.OpBindingPatternBind:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		name := vm.constantString(idx)
		if e := vm.m.Environments.InitializeBinding(vm.env, name, vm.result); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpBindingPatternBindRest:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		name := vm.constantString(idx)
		if e := vm.m.Environments.InitializeBinding(vm.env, name, vm.result); e != nil {
			return value.Undefined, false, e
		}
	case bytecode.OpBindingPatternSkip:
		// no-op: the corresponding iterator step's value is simply dropped.
	case bytecode.OpFinishBindingPattern:
		// no-op in this reference engine: no additional iterator-closing
		// bookkeeping is staged beyond what OpIteratorClose already does.

	case bytecode.OpPushDeclarativeEnvironment:
		vm.env = vm.m.Environments.NewDeclarative(value.Object(uint32(vm.env)), true)
	case bytecode.OpPushFunctionEnvironment:
		vm.env = vm.m.Environments.NewFunction(value.Object(uint32(vm.env)), true, environment.ThisInitialized, value.Undefined)
	case bytecode.OpPopEnvironment:
		outer, has := vm.m.Environments.Get(vm.env).Outer, vm.m.Environments.Get(vm.env).HasOuter
		if has {
			vm.env = heap.Index(outer.Index())
		}
	case bytecode.OpCreateMutableBinding:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		name := vm.constantString(idx)
		// Matches `var` hoisting (GlobalDeclarationInstantiation /
		// FunctionDeclarationInstantiation): the binding is immediately
		// initialized to undefined rather than left in a TDZ, since this
		// instruction set has no separate InitializeBinding opcode for the
		// mutable case (only CreateImmutableBinding's let/const bindings
		// stay uninitialized until a later PutValue-equivalent write).
		_ = vm.m.Environments.CreateMutableBinding(vm.env, name, false)
		_ = vm.m.Environments.InitializeBinding(vm.env, name, value.Undefined)
	case bytecode.OpCreateImmutableBinding:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		name := vm.constantString(idx)
		_ = vm.m.Environments.CreateImmutableBinding(vm.env, name, false)

	case bytecode.OpYieldPoint, bytecode.OpAwait, bytecode.OpResumeGenerator:
		return value.Undefined, false, &TypeErrorValue{Msg: "generator/async functions are not supported"}

	case bytecode.OpInstantiateOrdinaryFunctionExpression:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		fe := vm.exe.FunctionExpressions[idx]
		fn := vm.m.Functions.CreateECMAScript(fe.Name, fe.ParamNames, fe.Body, vm.env, false, value.Undefined)
		vm.operand.Push(fn)
	case bytecode.OpInstantiateArrowFunctionExpression:
		idx := vm.exe.ReadU16(vm.ip)
		vm.ip += 2
		fe := vm.exe.ArrowFunctionExpressions[idx]
		fn := vm.m.Functions.CreateECMAScript("", fe.ParamNames, fe.Body, vm.env, true, vm.thisValue)
		vm.operand.Push(fn)

	case bytecode.OpNop:
	case bytecode.OpReturn:
		return vm.result, true, nil

	default:
		return value.Undefined, false, &CorruptBytecodeError{Detail: fmt.Sprintf("unimplemented opcode %d", op)}
	}
	return value.Undefined, false, nil
}

func (vm *Vm) constantString(idx uint16) string {
	c := vm.exe.Constants[idx]
	return vm.m.ToJSString(c)
}

func (vm *Vm) popArgs(argc int) ([]value.Value, error) {
	if vm.operand.Len() < argc {
		return nil, NewStackError("EvaluateCall", argc, vm.operand.Len())
	}
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := vm.operand.Pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}
