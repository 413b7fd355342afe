package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solomatovs/gauss/internal/record"
)

type lineFraming struct{}

func (lineFraming) Decode(buf []byte) ([]byte, int, error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, 0, ErrIncomplete
	}
	return buf[:i], i + 1, nil
}

func (lineFraming) Encode(frame []byte) ([]byte, error) {
	return append(append([]byte{}, frame...), '\n'), nil
}

type passthroughCodec struct{ format record.DataFormat }

func (c passthroughCodec) DataFormat() record.DataFormat { return c.format }
func (c passthroughCodec) Decode(data []byte) (any, error) {
	return map[string]any{"raw": string(data)}, nil
}
func (c passthroughCodec) Encode(value any) ([]byte, error) {
	m := value.(map[string]any)
	return []byte(m["raw"].(string)), nil
}

func fixedNow() time.Time { return time.UnixMilli(999) }

func TestDecodeRecordDefaultsMissingKeyAndTimestamp(t *testing.T) {
	endpoint := &Endpoint{Framing: lineFraming{}, Codec: passthroughCodec{format: record.FormatRaw}}
	rec, err := endpoint.DecodeRecord([]byte("hello"), fixedNow)
	require.NoError(t, err)
	require.Equal(t, "", rec.Key)
	require.Equal(t, int64(999), rec.TsMs)
}

func TestDecodeRecordExtractsKeyAndTimestamp(t *testing.T) {
	endpoint := &Endpoint{Framing: lineFraming{}, Codec: jsonLikeCodec{}, KeyField: "symbol", TsField: "ts_ms"}
	rec, err := endpoint.DecodeRecord([]byte(`{"symbol":"X","ts_ms":42}`), fixedNow)
	require.NoError(t, err)
	require.Equal(t, "X", rec.Key)
	require.Equal(t, int64(42), rec.TsMs)
}

type jsonLikeCodec struct{}

func (jsonLikeCodec) DataFormat() record.DataFormat { return record.FormatJSON }
func (jsonLikeCodec) Decode(data []byte) (any, error) {
	return map[string]any{"symbol": "X", "ts_ms": int64(42)}, nil
}
func (jsonLikeCodec) Encode(value any) ([]byte, error) { return nil, nil }

func TestEncodeRecordZeroCopyPassthroughSkipsCodecEncode(t *testing.T) {
	endpoint := &Endpoint{Framing: lineFraming{}, Codec: passthroughCodec{format: record.FormatProtobuf}}
	rec := record.Record{
		Value: map[string]any{"raw": "ignored-if-zero-copy"},
		Raw:   &record.Raw{Bytes: []byte("wire-bytes"), Format: record.FormatProtobuf},
	}
	out, err := endpoint.EncodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "wire-bytes\n", string(out))
}

func TestEncodeRecordFallsBackToCodecWhenFormatDiffers(t *testing.T) {
	endpoint := &Endpoint{Framing: lineFraming{}, Codec: passthroughCodec{format: record.FormatJSON}}
	rec := record.Record{
		Value: map[string]any{"raw": "from-codec"},
		Raw:   &record.Raw{Bytes: []byte("wire-bytes"), Format: record.FormatProtobuf},
	}
	out, err := endpoint.EncodeRecord(rec)
	require.NoError(t, err)
	require.Equal(t, "from-codec\n", string(out))
}

func TestLineFramingRoundTrips(t *testing.T) {
	f := lineFraming{}
	encoded, err := f.Encode([]byte("hello world"))
	require.NoError(t, err)
	frame, consumed, err := f.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(frame))
	require.Equal(t, len(encoded), consumed)
}
