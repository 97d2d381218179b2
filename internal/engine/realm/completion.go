package realm

import (
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/engine/vm"
)

// Completion is EXTERNAL INTERFACES §6.1's `Completion<Value>`:
// `Ok(Value) | Err(ThrownValue)`. Go has no sum type, so this mirrors the
// teacher's own typed-error-over-a-result-struct convention
// (_teacher_ref/core/vm/errors_test.go) rather than a tagged union: a
// zero Err means the Ok case.
type Completion struct {
	Value value.Value
	Err   *ThrowCompletion
}

// ThrowCompletion carries the thrown Value for an abrupt completion, per
// ERROR HANDLING DESIGN §7: "plus user-thrown values of any type".
type ThrowCompletion struct {
	Value value.Value
}

func (t *ThrowCompletion) Error() string {
	return "uncaught exception"
}

// Ok reports whether the completion is the normal (non-throw) case.
func (c Completion) Ok() bool { return c.Err == nil }

// completionFrom renders a Run/CallFunction result as a Completion: a
// propagated error (no exception target left to catch it, §4.8's
// "Failure semantics") is rendered through the same name/message object
// shape the VM's own catch handling uses, via Machine.ErrorToValue.
func completionFrom(m *vm.Machine, v value.Value, err error) Completion {
	if err == nil {
		return Completion{Value: v}
	}
	return Completion{Err: &ThrowCompletion{Value: m.ErrorToValue(err)}}
}
