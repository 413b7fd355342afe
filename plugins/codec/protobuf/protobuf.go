// Package protobuf implements a codec for one fixed schema-rich message —
// Quote{symbol string = 1, price double = 2, ts_ms int64 = 3} — the small
// bundled message SPEC_FULL.md §D names for exercising the zero-copy
// passthrough path (scenario S3).
//
// Rather than shipping protoc-generated bindings for a single fixed message,
// this codec encodes/decodes the wire format directly with
// google.golang.org/protobuf/encoding/protowire, the same low-level package
// generated code itself calls into. This keeps the dependency real (it is
// the protobuf module, not a hand-rolled varint reader) without requiring a
// protoc invocation as part of the build.
package protobuf

import (
	"math"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldSymbol protowire.Number = 1
	fieldPrice  protowire.Number = 2
	fieldTsMs   protowire.Number = 3
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindCodec, "protobuf", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

// Codec implements pipeline.Codec for the fixed Quote message.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) DataFormat() record.DataFormat { return record.FormatProtobuf }

// Decode parses the wire bytes into a generic map so the pipeline's
// field-path key/ts extraction (and downstream codecs) can treat a
// protobuf-sourced record the same as a JSON-sourced one.
func (c *Codec) Decode(data []byte) (any, error) {
	out := map[string]any{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, perr.Format("protobuf", "invalid tag")
		}
		data = data[n:]

		switch num {
		case fieldSymbol:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, perr.Format("protobuf", "invalid symbol field")
			}
			out["symbol"] = s
			data = data[n:]
		case fieldPrice:
			f, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, perr.Format("protobuf", "invalid price field")
			}
			out["price"] = math.Float64frombits(f)
			data = data[n:]
		case fieldTsMs:
			i, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, perr.Format("protobuf", "invalid ts_ms field")
			}
			out["ts_ms"] = int64(i)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, perr.Format("protobuf", "invalid field value")
			}
			data = data[n:]
		}
	}
	return out, nil
}

func (c *Codec) Encode(value any) ([]byte, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, perr.Format("protobuf", "value is not a map[string]any")
	}

	var out []byte
	if s, ok := m["symbol"].(string); ok {
		out = protowire.AppendTag(out, fieldSymbol, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}
	if price, ok := asFloat64(m["price"]); ok {
		out = protowire.AppendTag(out, fieldPrice, protowire.Fixed64Type)
		out = protowire.AppendFixed64(out, math.Float64bits(price))
	}
	if ts, ok := asInt64(m["ts_ms"]); ok {
		out = protowire.AppendTag(out, fieldTsMs, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(ts))
	}
	return out, nil
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
