package bytecode

import (
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Builder assembles an Executable's instruction stream. The stream is
// append-only during compilation; jumps are back-patched using reserved
// placeholder bytes (§4.7: "The stream is append-only during
// compilation; back-patching uses reserved placeholder bytes.").
//
// Builder is the minimal surface the out-of-scope AST-to-bytecode
// compiler (PURPOSE & SCOPE) is expected to drive; this module does not
// implement that compiler, only the format it targets.
type Builder struct {
	buf          []byte
	constants    []value.Value
	constIndex   map[value.Value]uint16
	shapes       []heap.Index
	fnExprs      []FnExpr
	arrowExprs   []ArrowFnExpr
	classInits   []ClassInitializer
}

// NewBuilder returns an empty instruction-stream builder.
func NewBuilder() *Builder {
	return &Builder{constIndex: make(map[value.Value]uint16)}
}

// Label is an unresolved jump target, returned by EmitJumpPlaceholder.
type Label struct {
	patchAt uint32
}

// Offset returns the current end-of-stream byte offset, used as a jump
// target by the caller once label resolution needs it.
func (b *Builder) Offset() uint32 { return uint32(len(b.buf)) }

// Emit appends an opcode with no operand.
func (b *Builder) Emit(op Opcode) {
	b.buf = append(b.buf, byte(op))
}

// EmitU16 appends an opcode with a u16 operand.
func (b *Builder) EmitU16(op Opcode, operand uint16) {
	b.buf = append(b.buf, byte(op), byte(operand>>8), byte(operand))
}

// EmitJumpPlaceholder appends a jump opcode with a zeroed u32 operand and
// returns a Label identifying the patch site.
func (b *Builder) EmitJumpPlaceholder(op Opcode) Label {
	b.buf = append(b.buf, byte(op), 0, 0, 0, 0)
	return Label{patchAt: uint32(len(b.buf)) - 4}
}

// EmitJump appends a jump opcode whose target is already known.
func (b *Builder) EmitJump(op Opcode, target uint32) {
	b.buf = append(b.buf, byte(op),
		byte(target>>24), byte(target>>16), byte(target>>8), byte(target))
}

// PatchJump backfills label's operand with the current offset (or an
// explicit target).
func (b *Builder) PatchJump(label Label) { b.PatchJumpTo(label, b.Offset()) }

// PatchJumpTo backfills label's operand with target.
func (b *Builder) PatchJumpTo(label Label, target uint32) {
	p := label.patchAt
	b.buf[p] = byte(target >> 24)
	b.buf[p+1] = byte(target >> 16)
	b.buf[p+2] = byte(target >> 8)
	b.buf[p+3] = byte(target)
}

// Constant interns v in the constant pool, deduping identical values the
// way LoadConstant operands are meant to be reused.
func (b *Builder) Constant(v value.Value) uint16 {
	if idx, ok := b.constIndex[v]; ok {
		return idx
	}
	idx := uint16(len(b.constants))
	b.constants = append(b.constants, v)
	b.constIndex[v] = idx
	return idx
}

// Shape appends a ShapeId to the shape pool and returns its u16 index.
func (b *Builder) Shape(id heap.Index) uint16 {
	b.shapes = append(b.shapes, id)
	return uint16(len(b.shapes) - 1)
}

// FunctionExpression appends a compiled function expression and returns
// its u16 index.
func (b *Builder) FunctionExpression(fn FnExpr) uint16 {
	b.fnExprs = append(b.fnExprs, fn)
	return uint16(len(b.fnExprs) - 1)
}

// ArrowFunctionExpression appends a compiled arrow function expression.
func (b *Builder) ArrowFunctionExpression(fn ArrowFnExpr) uint16 {
	b.arrowExprs = append(b.arrowExprs, fn)
	return uint16(len(b.arrowExprs) - 1)
}

// ClassInitializer appends a class field initializer bytecode.
func (b *Builder) ClassInitializer(c ClassInitializer) uint16 {
	b.classInits = append(b.classInits, c)
	return uint16(len(b.classInits) - 1)
}

// Finish produces the immutable Executable.
func (b *Builder) Finish(sourceName string) *Executable {
	return &Executable{
		Instructions:              b.buf,
		Constants:                 b.constants,
		Shapes:                    b.shapes,
		FunctionExpressions:       b.fnExprs,
		ArrowFunctionExpressions:  b.arrowExprs,
		ClassInitializerBytecodes: b.classInits,
		SourceName:                sourceName,
	}
}
