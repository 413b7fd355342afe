package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	dsn    string
	closed bool
}

func (f *fakeStorage) Close() error {
	f.closed = true
	return nil
}

func TestLoadBuiltinAppliesDefaultsAndValidates(t *testing.T) {
	params := []ConfigParam{
		{Name: "dsn", Type: ParamStr, Context: ContextPostmaster, Required: true},
		{Name: "max_conns", Type: ParamU64, Context: ContextSighup, Default: ptr(U64Value(8))},
	}
	RegisterBuiltin(KindTopicStorage, "test-fake", params, func(cfg ConfigValues) (any, error) {
		return &fakeStorage{dsn: cfg.String("dsn", "")}, nil
	})

	host := NewHost()
	storage, handle, err := LoadTyped[*fakeStorage](host, KindTopicStorage, "test-fake", map[string]any{
		"dsn": "memory://",
	})
	require.NoError(t, err)
	require.Equal(t, "memory://", storage.dsn)
	require.Equal(t, uint64(8), handle.Values.Uint64("max_conns", 0))

	require.NoError(t, host.Unload(handle))
	require.True(t, storage.closed)
}

func TestLoadBuiltinMissingRequiredParam(t *testing.T) {
	params := []ConfigParam{
		{Name: "dsn", Type: ParamStr, Context: ContextPostmaster, Required: true},
	}
	RegisterBuiltin(KindTopicStorage, "test-fake-required", params, func(cfg ConfigValues) (any, error) {
		return &fakeStorage{}, nil
	})

	host := NewHost()
	_, _, err := LoadTyped[*fakeStorage](host, KindTopicStorage, "test-fake-required", map[string]any{})
	require.Error(t, err)
}

func TestLoadBuiltinUnknownKeyRejected(t *testing.T) {
	RegisterBuiltin(KindTopicStorage, "test-fake-unknown", nil, func(cfg ConfigValues) (any, error) {
		return &fakeStorage{}, nil
	})

	host := NewHost()
	_, _, err := LoadTyped[*fakeStorage](host, KindTopicStorage, "test-fake-unknown", map[string]any{"bogus": 1})
	require.Error(t, err)
}

func TestLoadTypedWrongInterfaceRejected(t *testing.T) {
	RegisterBuiltin(KindProcessor, "test-wrong-type", nil, func(cfg ConfigValues) (any, error) {
		return &fakeStorage{}, nil
	})

	host := NewHost()
	type notStorage interface{ DoesNotExist() }
	_, _, err := LoadTyped[notStorage](host, KindProcessor, "test-wrong-type", map[string]any{})
	require.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
