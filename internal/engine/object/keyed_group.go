package object

import "github.com/trynova/nova-sub004/internal/engine/value"

// KeyedGroup backs Object.groupBy/Map.groupBy, ported from
// original_source/nova_vm/.../abstract_operations/keyed_group.rs per
// SPEC_FULL.md's supplemented-features list. It groups values by a
// SameValueZero-compared key while preserving first-seen key order, the
// same guarantee a JS Map gives.
type KeyedGroup struct {
	order []value.Value
	index map[value.Value]int
	items [][]value.Value
}

// NewKeyedGroup returns an empty grouping.
func NewKeyedGroup() *KeyedGroup {
	return &KeyedGroup{index: make(map[value.Value]int)}
}

// Add appends elem to the group for key, creating the group if new.
//
// KeyedGroup uses the Value's (tag,data) pair directly as the Go map
// key, which matches SameValueZero for every inline primitive and for
// heap handles *while their arena index does not move*. A GC compaction
// that rewrites a heap-handle key's index must go through Rehash (the
// rule DATA MODEL §4.4 states abstractly: "object/symbol keys whose slot
// moved are removed from the table before the sweep and reinserted
// after").
func (g *KeyedGroup) Add(key, elem value.Value) {
	if i, ok := g.index[key]; ok {
		g.items[i] = append(g.items[i], elem)
		return
	}
	g.index[key] = len(g.order)
	g.order = append(g.order, key)
	g.items = append(g.items, []value.Value{elem})
}

// Keys returns the group keys in first-seen order.
func (g *KeyedGroup) Keys() []value.Value { return g.order }

// Group returns the elements grouped under key.
func (g *KeyedGroup) Group(key value.Value) ([]value.Value, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.items[i], true
}

// RehashableKeys returns the subset of group keys that are heap handles,
// i.e. the ones a GC compaction can invalidate and that must be run
// through Rehash.
func (g *KeyedGroup) RehashableKeys() []value.Value {
	out := make([]value.Value, 0)
	for _, k := range g.order {
		if k.Tag().IsHeap() {
			out = append(out, k)
		}
	}
	return out
}

// Rehash re-keys every heap-handle group entry using translate to map
// its old index to the post-compaction index, preserving group order and
// contents. Primitive keys are left untouched since they rehash
// identically regardless of any collection (§4.4: "primitive keys rehash
// with static hashes").
func (g *KeyedGroup) Rehash(translate func(old value.Value) value.Value) {
	newIndex := make(map[value.Value]int, len(g.index))
	for i, k := range g.order {
		nk := k
		if k.Tag().IsHeap() {
			nk = translate(k)
			g.order[i] = nk
		}
		newIndex[nk] = i
	}
	g.index = newIndex
}
