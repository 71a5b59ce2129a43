package engine

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownLanguage is returned by Resolve when no descriptor is
// registered under the requested key.
type ErrUnknownLanguage struct {
	Key string
}

func (e *ErrUnknownLanguage) Error() string {
	return fmt.Sprintf("engine: unknown language %q", e.Key)
}

// Registry holds the set of available language descriptors, keyed by
// RegistryKey(). Descriptors are built by DiscoverBuiltins and registered
// explicitly, rather than registering themselves as a side effect of
// package import.
type Registry struct {
	mu     sync.RWMutex
	langs  map[string]*LanguageDescriptor
	logger *zap.Logger
}

// NewRegistry returns an empty Registry. logger may be nil, in which case
// Register silently skips the replace warning (useful in tests that don't
// care about it).
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{langs: make(map[string]*LanguageDescriptor), logger: logger}
}

// Register adds d under its RegistryKey, reporting whether it was
// registered and whether an existing entry was replaced. A descriptor
// with any required binary unavailable is skipped (false, false).
// Replacing an entry logs exactly one warning.
func (r *Registry) Register(d *LanguageDescriptor) (registered bool, replaced bool) {
	for _, p := range d.RequiredBinaries() {
		if !p.IsAvailable() {
			if r.logger != nil {
				r.logger.Debug("engine: language skipped, required binary not found", zap.String("language", d.RegistryKey()), zap.String("binary", p.CmdName))
			}
			return false, false
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := d.RegistryKey()
	_, replaced = r.langs[key]
	r.langs[key] = d
	if replaced && r.logger != nil {
		r.logger.Warn("engine: language re-registered, replacing prior entry", zap.String("language", key))
	}
	return true, replaced
}

// Resolve looks up a descriptor by key (case-insensitive by construction,
// since RegistryKey lowercases).
func (r *Registry) Resolve(key string) (*LanguageDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.langs[normalizeKey(key)]
	if !ok {
		return nil, &ErrUnknownLanguage{Key: key}
	}
	return d, nil
}

// Keys returns every registered language key, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.langs))
	for k := range r.langs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Programs returns an introspection snapshot of the binaries a descriptor
// depends on, keyed by CmdName. Each Program's Version is probed lazily
// and memoized on first call.
func (r *Registry) Programs(key string) (map[string]ProgramInfo, error) {
	d, err := r.Resolve(key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ProgramInfo, 2)
	if d.Compiler != nil {
		out[d.Compiler.CmdName] = ProgramInfo{Version: d.Compiler.Version(), Opts: d.Compiler.Opts}
	}
	if d.Interpreter != nil {
		out[d.Interpreter.CmdName] = ProgramInfo{Version: d.Interpreter.Version(), Opts: d.Interpreter.Opts}
	}
	return out, nil
}

func normalizeKey(key string) string {
	d := &LanguageDescriptor{Name: key}
	return d.RegistryKey()
}
