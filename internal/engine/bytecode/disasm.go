package bytecode

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/file"
)

// Disassemble renders e as human-readable text for `jsrun -dump-bytecode`.
// It reuses goja's file.Idx/file.Position source-mapping helper types
// (the same pair goja's own parser uses to report error locations) purely
// as a debug-tooling convenience for attaching a synthetic source
// position to each instruction offset -- goja itself never executes a
// single instruction here; see SPEC_FULL.md's DOMAIN STACK entry for
// dop251/goja.
func Disassemble(e *Executable) string {
	var sb strings.Builder
	f := file.NewFile(e.SourceName, e.SourceName, len(e.Instructions))

	ip := uint32(0)
	for ip < e.Len() {
		pos := f.Position(file.Idx(ip + 1))
		op := e.OpcodeAt(ip)
		start := ip
		ip++
		switch operandWidth(op) {
		case 2:
			operand := e.ReadU16(ip)
			fmt.Fprintf(&sb, "%04d  %-32s u16=%d", start, opName(op), operand)
			ip += 2
		case 4:
			operand := e.ReadU32(ip)
			fmt.Fprintf(&sb, "%04d  %-32s u32=%d", start, opName(op), operand)
			ip += 4
		default:
			fmt.Fprintf(&sb, "%04d  %-32s", start, opName(op))
		}
		if pos != nil {
			fmt.Fprintf(&sb, "  ; %s", pos.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// operandWidth returns an opcode's operand width in bytes: 2 for u16
// pool-index/count operands, 4 for u32 jump targets, 0 for none
// (EXTERNAL INTERFACES §6.3).
func operandWidth(op Opcode) int {
	switch op {
	case OpJump, OpJumpIfNot, OpJumpIfTrue, OpJumpIfNullish, OpPushExceptionJumpTarget:
		return 4
	case OpLoadConstant, OpResolveBinding, OpEvaluateCall, OpEvaluateNew,
		OpApplyStringOrNumericBinaryOperator, OpApplyUnaryOperator,
		OpArrayCreate, OpArraySetValue, OpObjectCreate,
		OpBindingPatternBind, OpBindingPatternBindRest,
		OpCreateMutableBinding, OpCreateImmutableBinding,
		OpInstantiateOrdinaryFunctionExpression, OpInstantiateArrowFunctionExpression:
		return 2
	default:
		return 0
	}
}

var opNames = map[Opcode]string{
	OpLoadConstant: "LoadConstant", OpLoad: "Load", OpStore: "Store",
	OpDup: "Dup", OpSwap: "Swap", OpPop: "Pop",
	OpResolveBinding: "ResolveBinding", OpResolveThisBinding: "ResolveThisBinding",
	OpGetValue: "GetValue", OpPutValue: "PutValue",
	OpPushReference: "PushReference", OpPopReference: "PopReference",
	OpEvaluateCall: "EvaluateCall", OpEvaluateNew: "EvaluateNew",
	OpEvaluateSuperCall: "EvaluateSuperCall",
	OpJump: "Jump", OpJumpIfNot: "JumpIfNot", OpJumpIfTrue: "JumpIfTrue",
	OpJumpIfNullish: "JumpIfNullish",
	OpThrow: "Throw", OpPushExceptionJumpTarget: "PushExceptionJumpTarget",
	OpPopExceptionJumpTarget: "PopExceptionJumpTarget", OpReThrow: "ReThrow",
	OpApplyStringOrNumericBinaryOperator: "ApplyStringOrNumericBinaryOperator",
	OpApplyUnaryOperator:                 "ApplyUnaryOperator",
	OpInstanceofOperator:                 "InstanceofOperator",
	OpInOperator:                         "InOperator", OpTypeof: "Typeof",
	OpArrayCreate: "ArrayCreate", OpArrayPush: "ArrayPush",
	OpArraySetValue: "ArraySetValue", OpArraySetLength: "ArraySetLength",
	OpObjectCreate: "ObjectCreate", OpObjectSetProperty: "ObjectSetProperty",
	OpObjectDefineMethod: "ObjectDefineMethod", OpObjectSetPrototype: "ObjectSetPrototype",
	OpGetIteratorSync: "GetIteratorSync", OpIteratorStepValue: "IteratorStepValue",
	OpIteratorClose:                    "IteratorClose",
	OpBeginSimpleArrayBindingPattern:   "BeginSimpleArrayBindingPattern",
	OpBeginSimpleObjectBindingPattern:  "BeginSimpleObjectBindingPattern",
	OpBindingPatternBind:               "BindingPatternBind",
	OpBindingPatternBindRest:           "BindingPatternBindRest",
	OpBindingPatternSkip:               "BindingPatternSkip",
	OpFinishBindingPattern:             "FinishBindingPattern",
	OpPushDeclarativeEnvironment:       "PushDeclarativeEnvironment",
	OpPushFunctionEnvironment:          "PushFunctionEnvironment",
	OpPopEnvironment:                   "PopEnvironment",
	OpCreateMutableBinding:             "CreateMutableBinding",
	OpCreateImmutableBinding:           "CreateImmutableBinding",
	OpYieldPoint:                       "YieldPoint",
	OpAwait:                            "Await",
	OpResumeGenerator:                  "ResumeGenerator",
	OpInstantiateOrdinaryFunctionExpression: "InstantiateOrdinaryFunctionExpression",
	OpInstantiateArrowFunctionExpression:    "InstantiateArrowFunctionExpression",
	OpLoadCopy: "LoadCopy", OpNop: "Nop", OpReturn: "Return",
}

func opName(op Opcode) string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", op)
}
