// Package iterop implements the Iterator/IteratorRecord abstract
// operations shared by for-of and destructuring binding patterns
// (COMPONENT DESIGN §4.8.1, GLOSSARY "IteratorRecord"), ported from
// original_source's iterator-helpers module per SPEC_FULL.md's
// "Supplemented features" section. It depends only on value/object, not
// on vm, so both the VM dispatch loop and any future generator/async
// machinery can share it without an import cycle: callers supply the
// function-call and property-get primitives as plain function values.
package iterop

import (
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// Caller invokes a JS function value with a receiver and argument list.
type Caller func(fn value.Value, thisArg value.Value, args []value.Value) (value.Value, error)

// PropertyGetter resolves receiver[name] (used to fetch `next`/`return`).
type PropertyGetter func(receiver value.Value, key object.PropertyKey) (value.Value, error)

// Record is an IteratorRecord: the iterator object, its cached `next`
// method, and whether iteration has already completed (GLOSSARY).
type Record struct {
	Iterator   value.Value
	NextMethod value.Value
	Done       bool
}

// GetIteratorFromMethod implements GetIteratorFromMethod(obj, method):
// calling method with obj as receiver and caching the resulting
// iterator's `next`.
func GetIteratorFromMethod(obj, method value.Value, call Caller, getProp PropertyGetter, nextKey object.PropertyKey) (Record, error) {
	iter, err := call(method, obj, nil)
	if err != nil {
		return Record{}, err
	}
	if iter.Tag() != value.TagObject {
		return Record{}, errNotIterable{}
	}
	next, err := getProp(iter, nextKey)
	if err != nil {
		return Record{}, err
	}
	return Record{Iterator: iter, NextMethod: next}, nil
}

type errNotIterable struct{}

func (errNotIterable) Error() string { return "Result of the Symbol.iterator method is not an object" }

// Step implements IteratorStep: calls `next`, returning (result,
// done=true, nil) once the iterator reports done, or the yielded value
// otherwise.
func Step(rec *Record, call Caller, getProp PropertyGetter, valueKey, doneKey object.PropertyKey) (value.Value, bool, error) {
	if rec.Done {
		return value.Undefined, true, nil
	}
	result, err := call(rec.NextMethod, rec.Iterator, nil)
	if err != nil {
		rec.Done = true
		return value.Undefined, true, err
	}
	if result.Tag() != value.TagObject {
		rec.Done = true
		return value.Undefined, true, errIteratorResultNotObject{}
	}
	done, err := getProp(result, doneKey)
	if err != nil {
		rec.Done = true
		return value.Undefined, true, err
	}
	if done.ToBoolean() {
		rec.Done = true
		return value.Undefined, true, nil
	}
	v, err := getProp(result, valueKey)
	if err != nil {
		rec.Done = true
		return value.Undefined, true, err
	}
	return v, false, nil
}

type errIteratorResultNotObject struct{}

func (errIteratorResultNotObject) Error() string { return "Iterator result is not an object" }

// Close implements IteratorClose, including the double-error-suppression
// rule ported from original_source: if completionErr is already set
// (abrupt completion from the loop body), a failure calling `return` is
// swallowed in favour of the original error; only a clean completion
// surfaces the close-time error.
func Close(rec Record, call Caller, getProp PropertyGetter, returnKey object.PropertyKey, completionErr error) error {
	if rec.Done {
		return completionErr
	}
	returnMethod, err := getProp(rec.Iterator, returnKey)
	if err != nil {
		if completionErr != nil {
			return completionErr
		}
		return err
	}
	if returnMethod.IsUndefined() || returnMethod.IsNull() {
		return completionErr
	}
	_, closeErr := call(returnMethod, rec.Iterator, nil)
	if completionErr != nil {
		return completionErr
	}
	return closeErr
}
