package pluginhost

import (
	"sync"

	"github.com/solomatovs/gauss/internal/logging"
)

// BuiltinFactory constructs a plugin object from validated ConfigValues,
// mirroring a dynamic plugin's create_<kind> entry point. It returns the
// same CreateResult-shaped (object, error) pair a .so plugin's create
// function would, minus the pointer bookkeeping.
type BuiltinFactory func(config ConfigValues) (any, error)

// builtinEntry pairs a factory with its declared parameters, the in-process
// analogue of a .so's QsConfigParams/QsCreate<Kind> symbol pair.
type builtinEntry struct {
	params  []ConfigParam
	factory BuiltinFactory
}

// BuiltinRegistry is a global, thread-safe table of in-process plugins
// registered via init(), one per (kind, name). Reference plugins shipped
// with the engine (memory storage, lines framing, JSON codec, ...) register
// here instead of being built as separate .so files; the host loads them
// through the same Host.Load entry point a dynamic plugin goes through.
type BuiltinRegistry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]builtinEntry
}

var global = &BuiltinRegistry{entries: make(map[Kind]map[string]builtinEntry)}

// RegisterBuiltin registers a built-in plugin under (kind, name). Intended
// to be called from a plugin package's init(). Re-registering the same
// (kind, name) overwrites the previous entry and logs a warning — this is
// deliberate, it is what lets tests substitute fakes.
func RegisterBuiltin(kind Kind, name string, params []ConfigParam, factory BuiltinFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()

	byName, ok := global.entries[kind]
	if !ok {
		byName = make(map[string]builtinEntry)
		global.entries[kind] = byName
	}
	if _, exists := byName[name]; exists {
		logging.Component("pluginhost").Warn().
			Str("kind", string(kind)).Str("name", name).
			Msg("builtin plugin already registered, overwriting")
	}
	byName[name] = builtinEntry{params: params, factory: factory}
}

// lookupBuiltin returns the registered entry for (kind, name), if any.
func lookupBuiltin(kind Kind, name string) (builtinEntry, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	byName, ok := global.entries[kind]
	if !ok {
		return builtinEntry{}, false
	}
	e, ok := byName[name]
	return e, ok
}

// ListBuiltins returns the names registered for kind, for diagnostics and
// config validation error messages.
func ListBuiltins(kind Kind) []string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	byName := global.entries[kind]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	return names
}
