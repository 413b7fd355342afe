package pluginhost

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerceParamU64AcceptsSignedNonNegative(t *testing.T) {
	param := ConfigParam{Name: "limit", Type: ParamU64}
	v, err := CoerceParam(json.Number("42"), param)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.U)

	_, err = CoerceParam(json.Number("-1"), param)
	require.Error(t, err)
}

func TestCoerceParamStringFlattensObjects(t *testing.T) {
	param := ConfigParam{Name: "headers", Type: ParamStr}
	v, err := CoerceParam(map[string]any{"a": float64(1)}, param)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, v.S)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	params := []ConfigParam{{Name: "host", Type: ParamStr}}
	_, err := ParseConfig(map[string]any{"host": "x", "bogus": 1}, params)
	require.Error(t, err)
}

func TestValidateAndBuildRequiresMissingParam(t *testing.T) {
	params := []ConfigParam{{Name: "host", Type: ParamStr, Required: true}}
	_, err := ValidateAndBuild(map[string]ParamValue{}, params)
	require.Error(t, err)
}

func TestCheckFrozenParamsRejectsPostmasterDrift(t *testing.T) {
	params := []ConfigParam{
		{Name: "path", Type: ParamStr, Context: ContextPostmaster},
		{Name: "batch", Type: ParamU64, Context: ContextSighup},
	}
	old := NewConfigValues()
	old.Set("path", StrValue("/data/a"))
	old.Set("batch", U64Value(10))

	same := NewConfigValues()
	same.Set("path", StrValue("/data/a"))
	same.Set("batch", U64Value(99))
	require.NoError(t, CheckFrozenParams(old, same, params))

	changed := NewConfigValues()
	changed.Set("path", StrValue("/data/b"))
	require.Error(t, CheckFrozenParams(old, changed, params))
}

func TestSighupParamsFiltersContext(t *testing.T) {
	params := []ConfigParam{
		{Name: "a", Context: ContextPostmaster},
		{Name: "b", Context: ContextSighup},
	}
	got := SighupParams(params)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].Name)
}
