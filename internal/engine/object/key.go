// Package object implements the ordinary-object property model: shapes,
// shape transitions, property descriptors, and prototype chains
// (COMPONENT DESIGN §4.5, DATA MODEL §3.4, §3.5).
package object

import (
	"strconv"

	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// PropertyKey is the subset of Value valid as an object property key
// (DATA MODEL §3.5): an Integer in [0, 2^32-2], a small or heap string
// that is never an array-index string, a symbol, or a private name.
type PropertyKey struct {
	v value.Value
}

// NewIndexKey constructs the canonical array-index key for idx.
func NewIndexKey(idx uint32) PropertyKey {
	if idx > 1<<32-2 {
		panic("object: array index out of range")
	}
	return PropertyKey{v: value.Integer(int64(idx))}
}

// NewStringKey canonicalises s per DATA MODEL §3.5: "Conversion is
// canonicalising: '7' becomes Integer(7); '07' remains a string." A
// string converts to an index key only if it is the canonical decimal
// rendering of that index (no leading zero, no sign, in range).
func NewStringKey(s string, intern func(string) heap.Index) PropertyKey {
	if n, ok := canonicalArrayIndex(s); ok {
		return NewIndexKey(n)
	}
	if v, ok := value.SmallString(s); ok {
		return PropertyKey{v: v}
	}
	return PropertyKey{v: value.String(uint32(intern(s)))}
}

func canonicalArrayIndex(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	if s[0] == '0' {
		return 0, false // "07" etc. is never an index string
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n > 1<<32-2 {
		return 0, false
	}
	return uint32(n), true
}

// NewSymbolKey wraps a Symbol heap handle as a property key.
func NewSymbolKey(symbol value.Value) PropertyKey {
	if symbol.Tag() != value.TagSymbol {
		panic("object: NewSymbolKey requires a Symbol value")
	}
	return PropertyKey{v: symbol}
}

// Value returns the key's underlying Value, for use as a map key and for
// GC tracing.
func (k PropertyKey) Value() value.Value { return k.v }

// IsArrayIndex reports whether k is a canonical array-index key.
func (k PropertyKey) IsArrayIndex() bool { return k.v.Tag() == value.TagInteger }

// ArrayIndex returns the numeric index; only valid if IsArrayIndex().
func (k PropertyKey) ArrayIndex() uint32 { return uint32(k.v.AsInteger()) }
