package vm

import (
	"github.com/trynova/nova-sub004/internal/engine/bytecode"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// NativeFunc is a host-implemented callable (DATA MODEL §3.4's
// BuiltinFunction). Implementations run under the Machine's GcScope and
// may allocate.
type NativeFunc func(m *Machine, scope rooting.GcScope, thisArg value.Value, args []value.Value) (value.Value, error)

// FunctionRecord is one callable's heap data, covering both the
// host-native and ECMAScript-function cases (DATA MODEL §3.4:
// BuiltinFunction / ECMAScriptFunction).
type FunctionRecord struct {
	Name       string
	ParamCount int
	ParamNames []string
	Native     NativeFunc
	IsNative   bool

	// ECMAScript function fields.
	Body          *bytecode.Executable
	ClosureEnv    heap.Index
	HasClosureEnv bool
	IsArrow       bool
	ThisMode      ThisMode
	// CapturedThis is the lexical this an arrow function closed over at
	// creation time (DATA MODEL §3.6: arrow functions have no this
	// binding of their own).
	CapturedThis value.Value
}

// ThisMode mirrors the function-environment this-binding kinds a
// compiled function body expects (DATA MODEL §3.6).
type ThisMode byte

const (
	ThisModeOrdinary ThisMode = iota
	ThisModeLexical           // arrow function: inherits enclosing this
	ThisModeStrict
)

// FunctionTable owns every callable's FunctionRecord, addressed by the
// same heap.Index carried in a TagBuiltinFunction/TagECMAScriptFunction
// Value.
type FunctionTable struct {
	arena *heap.Arena[FunctionRecord]
}

// NewFunctionTable constructs an empty function table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{arena: heap.NewArena[FunctionRecord](0)}
}

// CreateNative registers a host function and returns its heap handle.
func (t *FunctionTable) CreateNative(name string, paramCount int, fn NativeFunc) value.Value {
	idx := t.arena.Create(FunctionRecord{Name: name, ParamCount: paramCount, Native: fn, IsNative: true})
	return value.Handle(value.TagBuiltinFunction, uint32(idx))
}

// CreateECMAScript registers a compiled function closure and returns its
// heap handle. capturedThis is only meaningful for arrow functions
// (isArrow true); ordinary functions derive their this-binding from the
// call, not from creation time.
func (t *FunctionTable) CreateECMAScript(name string, paramNames []string, body *bytecode.Executable, closureEnv heap.Index, isArrow bool, capturedThis value.Value) value.Value {
	mode := ThisModeOrdinary
	if isArrow {
		mode = ThisModeLexical
	}
	idx := t.arena.Create(FunctionRecord{
		Name: name, ParamCount: len(paramNames), ParamNames: paramNames, Body: body,
		ClosureEnv: closureEnv, HasClosureEnv: true, IsArrow: isArrow, ThisMode: mode,
		CapturedThis: capturedThis,
	})
	return value.Handle(value.TagECMAScriptFunction, uint32(idx))
}

// Get returns the function record referenced by fn (a
// TagBuiltinFunction, TagECMAScriptFunction, or TagBoundFunction Value).
func (t *FunctionTable) Get(fn value.Value) *FunctionRecord {
	return t.arena.Get(heap.Index(fn.Index()))
}

// Len reports the number of function slots, for GC iteration.
func (t *FunctionTable) Len() int { return t.arena.Len() }

// Arena exposes the backing arena for compaction.
func (t *FunctionTable) Arena() *heap.Arena[FunctionRecord] { return t.arena }

// Values returns every Object/Array/Function Value the function record
// at idx directly holds, for the gc package's mark phase
// (gc.FunctionMarker): an arrow function's captured this. The closure
// environment is walked separately through ClosureEnvOf, since it is an
// environment handle rather than one of the tagged heap values this
// method returns.
func (t *FunctionTable) Values(idx heap.Index) []value.Value {
	rec := t.arena.Get(idx)
	if rec.IsNative || !rec.IsArrow {
		return nil
	}
	return []value.Value{rec.CapturedThis}
}

// RewriteValues rewrites an arrow function's captured this through
// translate, the function counterpart of the sweep_values pass (§4.4
// step 4). Native and non-arrow functions hold nothing to rewrite.
// Callers should only call this for functions the mark phase actually
// reached this cycle, since FunctionTable's arena is never compacted.
func (t *FunctionTable) RewriteValues(idx heap.Index, translate func(value.Value) value.Value) {
	rec := t.arena.Get(idx)
	if !rec.IsNative && rec.IsArrow {
		rec.CapturedThis = translate(rec.CapturedThis)
	}
}

// ClosureEnvOf returns the ECMAScript function record's closure
// environment index, for the gc package's environment-chain walk.
func (t *FunctionTable) ClosureEnvOf(idx heap.Index) (heap.Index, bool) {
	rec := t.arena.Get(idx)
	if rec.IsNative || !rec.HasClosureEnv {
		return 0, false
	}
	return rec.ClosureEnv, true
}
