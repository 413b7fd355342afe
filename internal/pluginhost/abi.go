// Package pluginhost implements the engine's plugin ABI: version
// negotiation, declared typed configuration, and the create/destroy
// lifecycle every dynamically loaded extension object goes through.
//
// Go has no direct equivalent of a hand-rolled C ABI with raw pointers, so
// the "CreateResult{object_ptr, error_ptr}, exactly one non-null" contract
// is expressed as a Go (object, error) pair with the same invariant enforced
// by construction (see CreateResult). Dynamic loading uses the stdlib
// "plugin" package (buildmode=plugin, plugin.Open/Lookup) in place of
// libloading; built-in extensions skip the shared-library step entirely and
// register themselves in-process, mirroring the host's dual discovery model.
package pluginhost

// Kind enumerates the plugin kinds the ABI recognizes. Exactly one
// create_<kind>/destroy_<kind> symbol pair exists per kind.
type Kind string

const (
	KindTopicStorage    Kind = "topic_storage"
	KindProcessor       Kind = "processor"
	KindSink            Kind = "sink"
	KindTopicSource     Kind = "topic_source"
	KindTransport       Kind = "transport"
	KindFraming         Kind = "framing"
	KindCodec           Kind = "codec"
	KindMiddleware      Kind = "middleware"
	KindFormatSerializer Kind = "format_serializer"
)

// ABIVersion is the compile-time constant every plugin must match. Bump it
// on any binary-incompatible change to the interfaces in this package.
const ABIVersion uint32 = 1

// symbolPrefix is the common export-name prefix required by §6 of the
// engine's external interfaces.
const symbolPrefix = "Qs"

// CreateSymbol returns the exported symbol name a dynamic plugin must
// export for its create function, e.g. "QsCreateTopicStorage".
func CreateSymbol(kind Kind) string {
	return symbolPrefix + "Create" + kindCamel(kind)
}

// DestroySymbol returns the exported destroy symbol name for kind.
func DestroySymbol(kind Kind) string {
	return symbolPrefix + "Destroy" + kindCamel(kind)
}

// ConfigParamsSymbol is the optional exported symbol returning a plugin's
// declared []ConfigParam.
const ConfigParamsSymbol = symbolPrefix + "ConfigParams"

// AbiVersionSymbol is the exported symbol returning a plugin's ABI version.
const AbiVersionSymbol = symbolPrefix + "AbiVersion"

func kindCamel(kind Kind) string {
	switch kind {
	case KindTopicStorage:
		return "TopicStorage"
	case KindProcessor:
		return "Processor"
	case KindSink:
		return "Sink"
	case KindTopicSource:
		return "TopicSource"
	case KindTransport:
		return "Transport"
	case KindFraming:
		return "Framing"
	case KindCodec:
		return "Codec"
	case KindMiddleware:
		return "Middleware"
	case KindFormatSerializer:
		return "FormatSerializer"
	default:
		return string(kind)
	}
}

// ParamType is the declared scalar type of one ConfigParam.
type ParamType string

const (
	ParamBool ParamType = "bool"
	ParamI64  ParamType = "i64"
	ParamU64  ParamType = "u64"
	ParamF64  ParamType = "f64"
	ParamStr  ParamType = "string"
)

// ParamContext classifies a declared parameter's mutability class: frozen
// at process start, or changeable at runtime via SIGHUP.
type ParamContext string

const (
	ContextPostmaster ParamContext = "postmaster"
	ContextSighup     ParamContext = "sighup"
)

// ConfigParam is one entry in a plugin's declared parameter list.
type ConfigParam struct {
	Name        string
	Type        ParamType
	Context     ParamContext
	Required    bool
	Default     *ParamValue
	Description string
}

// ParamValue is a typed configuration value, one of bool|i64|u64|f64|string.
type ParamValue struct {
	Type ParamType
	B    bool
	I    int64
	U    uint64
	F    float64
	S    string
}

// Equal reports whether two values of the same declared type are equal.
// Used by CheckFrozenParams to detect postmaster-context drift on reload.
func (v ParamValue) Equal(other ParamValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ParamBool:
		return v.B == other.B
	case ParamI64:
		return v.I == other.I
	case ParamU64:
		return v.U == other.U
	case ParamF64:
		return v.F == other.F
	case ParamStr:
		return v.S == other.S
	default:
		return false
	}
}

func BoolValue(b bool) ParamValue     { return ParamValue{Type: ParamBool, B: b} }
func I64Value(i int64) ParamValue     { return ParamValue{Type: ParamI64, I: i} }
func U64Value(u uint64) ParamValue    { return ParamValue{Type: ParamU64, U: u} }
func F64Value(f float64) ParamValue   { return ParamValue{Type: ParamF64, F: f} }
func StrValue(s string) ParamValue    { return ParamValue{Type: ParamStr, S: s} }

// ConfigValues is the flat, typed name→value mapping a plugin's create
// function receives, built from declared ConfigParams plus the raw
// configuration subtree.
type ConfigValues struct {
	values map[string]ParamValue
}

// NewConfigValues returns an empty ConfigValues ready for Set.
func NewConfigValues() ConfigValues {
	return ConfigValues{values: make(map[string]ParamValue)}
}

func (c *ConfigValues) Set(name string, v ParamValue) {
	if c.values == nil {
		c.values = make(map[string]ParamValue)
	}
	c.values[name] = v
}

func (c ConfigValues) Get(name string) (ParamValue, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c ConfigValues) Bool(name string, fallback bool) bool {
	if v, ok := c.values[name]; ok && v.Type == ParamBool {
		return v.B
	}
	return fallback
}

func (c ConfigValues) String(name, fallback string) string {
	if v, ok := c.values[name]; ok && v.Type == ParamStr {
		return v.S
	}
	return fallback
}

func (c ConfigValues) Int64(name string, fallback int64) int64 {
	if v, ok := c.values[name]; ok && v.Type == ParamI64 {
		return v.I
	}
	return fallback
}

func (c ConfigValues) Uint64(name string, fallback uint64) uint64 {
	if v, ok := c.values[name]; ok && v.Type == ParamU64 {
		return v.U
	}
	return fallback
}

func (c ConfigValues) Float64(name string, fallback float64) float64 {
	if v, ok := c.values[name]; ok && v.Type == ParamF64 {
		return v.F
	}
	return fallback
}

// CreateResult models the ABI's {object_ptr, error_ptr} pair with the
// "exactly one is non-null" invariant enforced at construction instead of at
// every call site.
type CreateResult[T any] struct {
	object T
	err    error
	ok     bool
}

// CreateOK builds a successful CreateResult.
func CreateOK[T any](object T) CreateResult[T] {
	return CreateResult[T]{object: object, ok: true}
}

// CreateErr builds a failed CreateResult. err must be non-nil.
func CreateErr[T any](err error) CreateResult[T] {
	return CreateResult[T]{err: err}
}

// Unwrap returns the object on success or the error on failure.
func (r CreateResult[T]) Unwrap() (T, error) {
	if r.ok {
		return r.object, nil
	}
	return r.object, r.err
}
