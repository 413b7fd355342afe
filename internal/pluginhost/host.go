package pluginhost

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/google/uuid"
	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
)

// Exact function types a dynamic plugin's exported symbols must match.
// plugin.Lookup performs an exact type assertion against these — a plugin
// built against a different pluginhost package version will fail to load,
// which is the Go analogue of the ABI-version check for everything this
// package's own type layout touches.
type (
	abiVersionFunc   func() uint32
	configParamsFunc func() []ConfigParam
	createFunc       func(ConfigValues) CreateResult[any]
	destroyFunc      func(any)
)

// Handle is a loaded plugin object: the live instance plus enough state to
// destroy it in the correct order (object before library) and, for
// reconfigurable kinds, to diff a future reload against.
type Handle struct {
	ID      string
	Kind    Kind
	Name    string
	Object  any
	Params  []ConfigParam
	Values  ConfigValues
	destroy func()
	lib     *plugin.Plugin
}

// Close runs the plugin's destroy function (if any) before releasing the
// library reference, matching the required "object before library" order.
// Go's plugin package has no unload primitive, so releasing the library
// here only drops our reference to the *plugin.Plugin value.
func (h *Handle) Close() error {
	if h.destroy != nil {
		h.destroy()
	}
	h.lib = nil
	return nil
}

// Host loads and tracks plugin objects, both built-in (in-process) and
// dynamic (.so via plugin.Open). Both paths converge on the same Handle
// shape so callers never need to know which one was used.
type Host struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{handles: make(map[string]*Handle)}
}

// Load resolves name against the built-in registry; any name not registered
// there is treated as the path of a shared library and loaded with
// plugin.Open. rawConfig is the plugin's config subtree as decoded from YAML/JSON
// (map[string]any, scalars already native Go types or json.Number).
func (h *Host) Load(kind Kind, name string, rawConfig map[string]any) (*Handle, error) {
	if entry, ok := lookupBuiltin(kind, name); ok {
		return h.loadBuiltin(kind, name, entry, rawConfig)
	}
	return h.loadDynamic(kind, name, rawConfig)
}

func (h *Host) loadBuiltin(kind Kind, name string, entry builtinEntry, rawConfig map[string]any) (*Handle, error) {
	parsed, err := ParseConfig(rawConfig, entry.params)
	if err != nil {
		return nil, err
	}
	values, err := ValidateAndBuild(parsed, entry.params)
	if err != nil {
		return nil, err
	}
	obj, err := entry.factory(values)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, string(kind)+":"+name, "builtin plugin create failed", err)
	}

	handle := &Handle{
		ID:     uuid.NewString(),
		Kind:   kind,
		Name:   name,
		Object: obj,
		Params: entry.params,
		Values: values,
	}
	if closer, ok := obj.(interface{ Close() error }); ok {
		handle.destroy = func() { _ = closer.Close() }
	}
	h.register(handle)
	return handle, nil
}

func (h *Host) loadDynamic(kind Kind, path string, rawConfig map[string]any) (*Handle, error) {
	log := logging.Component("pluginhost")

	lib, err := plugin.Open(path)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, "failed to load plugin", err)
	}

	abiSym, err := lib.Lookup(AbiVersionSymbol)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, fmt.Sprintf("plugin missing %s symbol", AbiVersionSymbol), err)
	}
	abiFn, ok := abiSym.(abiVersionFunc)
	if !ok {
		return nil, perr.Config(path, fmt.Sprintf("%s symbol has wrong type", AbiVersionSymbol))
	}
	pluginABI := abiFn()
	if pluginABI != ABIVersion {
		return nil, perr.Config(path, fmt.Sprintf(
			"plugin ABI version mismatch: plugin=%d, host=%d — rebuild the plugin", pluginABI, ABIVersion))
	}

	var params []ConfigParam
	if paramsSym, err := lib.Lookup(ConfigParamsSymbol); err == nil {
		if paramsFn, ok := paramsSym.(configParamsFunc); ok {
			params = paramsFn()
		}
	}

	createSymName := CreateSymbol(kind)
	createSym, err := lib.Lookup(createSymName)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, fmt.Sprintf("plugin missing %s symbol", createSymName), err)
	}
	createFn, ok := createSym.(createFunc)
	if !ok {
		return nil, perr.Config(path, fmt.Sprintf("%s symbol has wrong type", createSymName))
	}

	destroySymName := DestroySymbol(kind)
	destroySym, err := lib.Lookup(destroySymName)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, fmt.Sprintf("plugin missing %s symbol", destroySymName), err)
	}
	destroyFn, ok := destroySym.(destroyFunc)
	if !ok {
		return nil, perr.Config(path, fmt.Sprintf("%s symbol has wrong type", destroySymName))
	}

	parsed, err := ParseConfig(rawConfig, params)
	if err != nil {
		return nil, err
	}
	values, err := ValidateAndBuild(parsed, params)
	if err != nil {
		return nil, err
	}

	result := createFn(values)
	obj, err := result.Unwrap()
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, "plugin create failed", err)
	}

	handle := &Handle{
		ID:     uuid.NewString(),
		Kind:   kind,
		Name:   path,
		Object: obj,
		Params: params,
		Values: values,
		lib:    lib,
	}
	handle.destroy = func() { destroyFn(obj) }
	h.register(handle)

	log.Info().Str("kind", string(kind)).Str("path", path).Msg("loaded dynamic plugin")
	return handle, nil
}

func (h *Host) register(handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handles[handle.ID] = handle
}

// Unload destroys and forgets a handle previously returned by Load.
func (h *Host) Unload(handle *Handle) error {
	h.mu.Lock()
	delete(h.handles, handle.ID)
	h.mu.Unlock()
	return handle.Close()
}

// LoadTyped loads a plugin the same way Load does, then asserts the
// resulting object implements T — the Go analogue of the original's
// type-safe load_storage/load_processor wrapper functions, expressed with
// a generic instead of one hand-written wrapper per kind.
func LoadTyped[T any](h *Host, kind Kind, name string, rawConfig map[string]any) (T, *Handle, error) {
	var zero T
	handle, err := h.Load(kind, name, rawConfig)
	if err != nil {
		return zero, nil, err
	}
	typed, ok := handle.Object.(T)
	if !ok {
		_ = handle.Close()
		return zero, nil, perr.Config(name, fmt.Sprintf("plugin %q does not implement the expected %s interface", name, kind))
	}
	return typed, handle, nil
}
