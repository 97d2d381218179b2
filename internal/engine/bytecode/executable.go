package bytecode

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// FnExpr is an opaque compiled function expression, referenced by index
// from OpInstantiateOrdinaryFunctionExpression. The bytecode compiler
// (out of scope per spec.md PURPOSE & SCOPE, "described only at the
// interface level") is the sole producer; the VM only reads these.
type FnExpr struct {
	Name       string
	ParamCount int
	// ParamNames binds each positional argument to the name
	// FunctionDeclarationInstantiation would have declared for it. The
	// AST-to-bytecode compiler that would normally emit the equivalent
	// CreateMutableBinding/InitializeBinding prologue is out of scope
	// (PURPOSE & SCOPE), so the VM performs this one fixed step itself
	// using ParamNames rather than an emitted instruction sequence.
	ParamNames []string
	Body       *Executable
	IsStrict   bool
}

// ArrowFnExpr is FnExpr's arrow-function counterpart: it additionally
// captures the lexical this/new.target/arguments of its defining scope
// rather than binding its own.
type ArrowFnExpr struct {
	ParamCount int
	ParamNames []string
	Body       *Executable
	IsStrict   bool
}

// ClassInitializer pairs a class's field-initializer Executable with
// whether it targets a static field (DATA MODEL §3.7).
type ClassInitializer struct {
	Body     *Executable
	IsStatic bool
}

// Executable is DATA MODEL §3.7's compiled unit: instructions plus the
// constant/shape/inner-function pools they index into. Executables are
// heap-allocated and GC-managed (§4.7: "their constant and shape pools
// are traced").
type Executable struct {
	Instructions []byte
	Constants    []value.Value
	Shapes       []heap.Index
	FunctionExpressions      []FnExpr
	ArrowFunctionExpressions []ArrowFnExpr
	ClassInitializerBytecodes []ClassInitializer

	SourceName string
}

// ReadU16 decodes a big-endian u16 operand at offset ip (EXTERNAL
// INTERFACES §6.3: "u16 for pool indices and stack counts").
func (e *Executable) ReadU16(ip uint32) uint16 {
	b := e.Instructions
	return uint16(b[ip])<<8 | uint16(b[ip+1])
}

// ReadU32 decodes a big-endian u32 jump target at offset ip.
func (e *Executable) ReadU32(ip uint32) uint32 {
	b := e.Instructions
	return uint32(b[ip])<<24 | uint32(b[ip+1])<<16 | uint32(b[ip+2])<<8 | uint32(b[ip+3])
}

// OpcodeAt returns the opcode at ip, which every dispatch step reads
// first.
func (e *Executable) OpcodeAt(ip uint32) Opcode {
	return Opcode(e.Instructions[ip])
}

// Len reports the instruction stream length in bytes.
func (e *Executable) Len() uint32 { return uint32(len(e.Instructions)) }
