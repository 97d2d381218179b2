// Package params holds the engine's host-configurable tunables, loaded
// from TOML the way the teacher's cmd/geth layers a TOML config file
// over flag defaults (AMBIENT STACK: Configuration, SPEC_FULL.md).
package params

import "github.com/BurntSushi/toml"

// EngineConfig is the set of knobs spec.md leaves to "a host-configurable
// threshold" (§4.2) and similar language.
type EngineConfig struct {
	// GCAllocThreshold is the number of allocations after which the next
	// safepoint forces a collection (§4.2).
	GCAllocThreshold uint64 `toml:"gc_alloc_threshold"`
	// InterruptPollInstructions is loaded from the config file but read by
	// nothing: the VM dispatch loop has no host interrupt check.
	InterruptPollInstructions uint32 `toml:"interrupt_poll_instructions"`
	// StringInternCacheSize is loaded from the config file but not passed
	// to the heap; the string interner's LRU is sized by the fixed
	// internCacheSize constant in package heap.
	StringInternCacheSize int `toml:"string_intern_cache_size"`
}

// Default returns the engine's built-in tunables, used when no config
// file is supplied.
func Default() EngineConfig {
	return EngineConfig{
		GCAllocThreshold:          1 << 16,
		InterruptPollInstructions: 4096,
		StringInternCacheSize:     8192,
	}
}

// Load reads an EngineConfig from a TOML file at path, starting from
// Default() so an unset field keeps its default.
func Load(path string) (EngineConfig, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
