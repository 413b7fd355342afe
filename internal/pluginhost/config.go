package pluginhost

import (
	"encoding/json"
	"fmt"

	"github.com/solomatovs/gauss/internal/perr"
)

// CoerceParam converts one decoded JSON value to a ParamValue according to
// param's declared type. U64 accepts either an unsigned or a non-negative
// signed JSON number (JSON itself has no unsigned/signed distinction, but
// float64-backed decoding loses precision above 2^53, so integral values
// are expected to arrive as json.Number when possible). Non-scalar values
// passed to a string-typed param are flattened to their JSON encoding
// rather than rejected.
func CoerceParam(val any, param ConfigParam) (ParamValue, error) {
	switch param.Type {
	case ParamBool:
		b, ok := val.(bool)
		if !ok {
			return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: expected bool", param.Name))
		}
		return BoolValue(b), nil
	case ParamI64:
		i, ok := asInt64(val)
		if !ok {
			return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: expected integer", param.Name))
		}
		return I64Value(i), nil
	case ParamU64:
		i, ok := asInt64(val)
		if !ok {
			return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: expected integer", param.Name))
		}
		if i < 0 {
			return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: expected non-negative integer, got %d", param.Name, i))
		}
		return U64Value(uint64(i)), nil
	case ParamF64:
		f, ok := asFloat64(val)
		if !ok {
			return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: expected float", param.Name))
		}
		return F64Value(f), nil
	case ParamStr:
		return StrValue(flattenValue(val)), nil
	default:
		return ParamValue{}, perr.Config("pluginhost", fmt.Sprintf("parameter %q: unknown declared type %q", param.Name, param.Type))
	}
}

func asInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case json.Number:
		i, err := v.Int64()
		if err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func asFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// flattenValue stringifies a scalar directly and serializes arrays/objects
// as JSON strings, so a string-typed param never rejects structured config.
func flattenValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ParseConfig parses a raw decoded config object into the declared flat
// key-type space, rejecting any key the plugin did not declare via its
// ConfigParam list. Defaults and required-ness are applied separately by
// ValidateAndBuild.
func ParseConfig(config map[string]any, params []ConfigParam) (map[string]ParamValue, error) {
	known := make(map[string]ConfigParam, len(params))
	for _, p := range params {
		known[p.Name] = p
	}
	for key := range config {
		if _, ok := known[key]; !ok {
			return nil, perr.Config("pluginhost", fmt.Sprintf("unknown parameter %q", key))
		}
	}

	result := make(map[string]ParamValue, len(config))
	for _, p := range params {
		raw, present := config[p.Name]
		if !present {
			continue
		}
		pv, err := CoerceParam(raw, p)
		if err != nil {
			return nil, err
		}
		result[p.Name] = pv
	}
	return result, nil
}

// ValidateAndBuild fills in declared defaults and enforces required-ness,
// producing the ConfigValues a plugin's create function receives.
func ValidateAndBuild(parsed map[string]ParamValue, params []ConfigParam) (ConfigValues, error) {
	values := NewConfigValues()
	for _, p := range params {
		if v, ok := parsed[p.Name]; ok {
			values.Set(p.Name, v)
			continue
		}
		if p.Default != nil {
			values.Set(p.Name, *p.Default)
			continue
		}
		if p.Required {
			return ConfigValues{}, perr.Config("pluginhost", fmt.Sprintf("missing required parameter %q", p.Name))
		}
	}
	return values, nil
}

// SighupParams filters params to those with ContextSighup, the subset a
// running plugin may have reconfigured without a restart.
func SighupParams(params []ConfigParam) []ConfigParam {
	out := make([]ConfigParam, 0, len(params))
	for _, p := range params {
		if p.Context == ContextSighup {
			out = append(out, p)
		}
	}
	return out
}

// CheckFrozenParams requires every postmaster-context param to be unchanged
// between old and new ConfigValues, returning a config error naming the
// first offending parameter otherwise.
func CheckFrozenParams(old, updated ConfigValues, params []ConfigParam) error {
	for _, p := range params {
		if p.Context != ContextPostmaster {
			continue
		}
		oldV, oldOK := old.Get(p.Name)
		newV, newOK := updated.Get(p.Name)
		if oldOK != newOK || (oldOK && !oldV.Equal(newV)) {
			return perr.Config("pluginhost", fmt.Sprintf(
				"parameter %q has context 'postmaster' and cannot be changed at runtime (requires restart)", p.Name))
		}
	}
	return nil
}
