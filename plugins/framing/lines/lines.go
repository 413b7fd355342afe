// Package lines implements newline-delimited framing: each frame is the
// bytes preceding one '\n', matching the ingestion format scenario S1/S2
// describe ({"symbol":"X",...}\n).
package lines

import (
	"bytes"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "max_length", Type: pluginhost.ParamU64, Context: pluginhost.ContextPostmaster,
			Default:     paramPtr(pluginhost.U64Value(0)),
			Description: "maximum frame length in bytes before a frame is rejected as malformed; 0 means unbounded"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindFraming, "lines", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(int(cfg.Uint64("max_length", 0))), nil
	})
}

func paramPtr(v pluginhost.ParamValue) *pluginhost.ParamValue { return &v }

// Framing implements pipeline.Framing over '\n'-delimited frames.
type Framing struct {
	maxLength int
}

func New(maxLength int) *Framing { return &Framing{maxLength: maxLength} }

// Decode returns the bytes before the first '\n' in buf, or signals
// incomplete if none has arrived yet. decode(encode(x)) = x for every x not
// containing '\n', as long as len(x) fits max_length when one is set.
func (f *Framing) Decode(buf []byte) ([]byte, int, error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		if f.maxLength > 0 && len(buf) > f.maxLength {
			return nil, 0, errFrameTooLong
		}
		return nil, 0, pipeline.ErrIncomplete
	}
	if f.maxLength > 0 && idx > f.maxLength {
		return nil, 0, errFrameTooLong
	}
	return buf[:idx], idx + 1, nil
}

func (f *Framing) Encode(frame []byte) ([]byte, error) {
	out := make([]byte, 0, len(frame)+1)
	out = append(out, frame...)
	out = append(out, '\n')
	return out, nil
}

var errFrameTooLong = perr.Format("lines", "frame exceeds max_length")
