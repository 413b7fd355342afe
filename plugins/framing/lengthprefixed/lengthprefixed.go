// Package lengthprefixed implements a 4-byte big-endian length header
// framing, the binary counterpart to the lines framing for codecs like
// protobuf whose payload may itself contain '\n' bytes.
package lengthprefixed

import (
	"encoding/binary"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

const headerSize = 4

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "max_length", Type: pluginhost.ParamU64, Context: pluginhost.ContextPostmaster,
			Default:     paramPtr(pluginhost.U64Value(16 << 20)),
			Description: "maximum declared frame length in bytes before a frame is rejected as malformed"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindFraming, "length_prefixed", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(uint32(cfg.Uint64("max_length", 16<<20))), nil
	})
}

func paramPtr(v pluginhost.ParamValue) *pluginhost.ParamValue { return &v }

// Framing implements pipeline.Framing over a fixed 4-byte big-endian header
// followed by that many payload bytes.
type Framing struct {
	maxLength uint32
}

func New(maxLength uint32) *Framing { return &Framing{maxLength: maxLength} }

// Decode requires the full header plus declared payload length to be
// present in buf; otherwise it signals incomplete. decode(encode(x)) = x
// for every x whose length fits in a uint32 and is within max_length.
func (f *Framing) Decode(buf []byte) ([]byte, int, error) {
	if len(buf) < headerSize {
		return nil, 0, pipeline.ErrIncomplete
	}
	length := binary.BigEndian.Uint32(buf[:headerSize])
	if f.maxLength > 0 && length > f.maxLength {
		return nil, 0, perr.Format("length_prefixed", "declared frame length exceeds max_length")
	}
	total := headerSize + int(length)
	if len(buf) < total {
		return nil, 0, pipeline.ErrIncomplete
	}
	return buf[headerSize:total], total, nil
}

func (f *Framing) Encode(frame []byte) ([]byte, error) {
	out := make([]byte, headerSize+len(frame))
	binary.BigEndian.PutUint32(out[:headerSize], uint32(len(frame)))
	copy(out[headerSize:], frame)
	return out, nil
}
