// Package json implements the JSON codec: one framed message is one JSON
// value. The engine's three envelope fields (ts_ms, key, value) are placed
// at the top level per spec.md §6, but the codec itself is schema-neutral —
// it decodes to a generic map/slice/scalar tree and lets the pipeline's
// key/ts field-path extraction find ts_ms/symbol wherever they live.
package json

import (
	"bytes"
	"encoding/json"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindCodec, "json", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

// Codec implements pipeline.Codec for JSON-encoded records.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) DataFormat() record.DataFormat { return record.FormatJSON }

func (c *Codec) Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, perr.Wrap(perr.KindFormat, "json", "decode failed", err)
	}
	return normalizeNumbers(value), nil
}

func (c *Codec) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, perr.Wrap(perr.KindFormat, "json", "encode failed", err)
	}
	return data, nil
}

// normalizeNumbers converts json.Number leaves to int64 (when integral) or
// float64, so downstream field-path extraction and storage plugins see
// ordinary Go scalars instead of encoding/json's intermediate number type.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeNumbers(vv)
		}
		return t
	default:
		return v
	}
}
