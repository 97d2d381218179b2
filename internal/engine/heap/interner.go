package heap

import (
	lru "github.com/hashicorp/golang-lru"
)

// internCacheSize bounds the string interner the way the teacher bounds
// its trie-node cache (common/lru): a fixed-size LRU rather than an
// unbounded map, trading a rare re-intern for a hard memory ceiling.
const internCacheSize = 8192

// Strings is the heap's canonicalising string interner (DATA MODEL §3.3:
// "a string interner (canonicalising all heap strings up to a size
// bound)"). Content equal strings longer than value.smallStringMaxLen
// share one heap.Index.
type Strings struct {
	arena *Arena[string]
	byVal *lru.Cache
}

// NewStrings constructs an empty interner.
func NewStrings() *Strings {
	cache, err := lru.New(internCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which is a
		// programmer error, not a runtime condition.
		panic(err)
	}
	return &Strings{arena: NewArena[string](0), byVal: cache}
}

// Intern returns the Index of s, allocating a new arena slot only if s is
// not already interned or was evicted from the bounded LRU.
func (st *Strings) Intern(s string) Index {
	if idx, ok := st.byVal.Get(s); ok {
		i := idx.(Index)
		if *st.arena.Get(i) == s {
			return i
		}
	}
	idx := st.arena.Create(s)
	st.byVal.Add(s, idx)
	return idx
}

// Get returns the string stored at idx.
func (st *Strings) Get(idx Index) string {
	return *st.arena.Get(idx)
}

// Arena exposes the backing arena for GC traversal and compaction.
func (st *Strings) Arena() *Arena[string] { return st.arena }

// Rebuild repopulates the LRU index after a compaction pass has moved
// slots around; the content->index cache cannot be rewritten in place
// because LRU eviction order must not change, so it is simplest to
// rebuild it from the post-compaction arena.
func (st *Strings) Rebuild() {
	st.byVal.Purge()
	for i := 1; i < st.arena.Len(); i++ {
		st.byVal.Add(*st.arena.Get(Index(i)), Index(i))
	}
}
