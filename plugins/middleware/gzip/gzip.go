// Package gzip implements a wire Middleware that compresses/decompresses
// each framed message with compress/gzip. Writer pooling mirrors the
// teacher's HTTP response compression middleware
// (internal/middleware/compression.go), adapted from "wrap an
// http.ResponseWriter" to "transform one message's bytes"; readers are not
// pooled, one is created per decoded message.
package gzip

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "level", Type: pluginhost.ParamI64, Context: pluginhost.ContextPostmaster,
			Default: paramPtr(pluginhost.I64Value(int64(gzip.DefaultCompression))),
			Description: "compress/gzip compression level"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindMiddleware, "gzip", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(int(cfg.Int64("level", int64(gzip.DefaultCompression)))), nil
	})
}

func paramPtr(v pluginhost.ParamValue) *pluginhost.ParamValue { return &v }

// Middleware implements pipeline.Middleware over compress/gzip.
type Middleware struct {
	level      int
	writerPool sync.Pool
}

func New(level int) *Middleware {
	m := &Middleware{level: level}
	m.writerPool.New = func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, m.level)
		return w
	}
	return m
}

// Decode treats data as incoming wire bytes and gunzips them — this
// middleware's Decode runs on the way in, closest to the wire.
func (m *Middleware) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, perr.Wrap(perr.KindFormat, "gzip", "decompress failed", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, perr.Wrap(perr.KindFormat, "gzip", "decompress failed", err)
	}
	return out, nil
}

// Encode compresses data for the wire.
func (m *Middleware) Encode(data []byte) ([]byte, error) {
	w := m.writerPool.Get().(*gzip.Writer)
	defer m.writerPool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, perr.Wrap(perr.KindFormat, "gzip", "compress failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, perr.Wrap(perr.KindFormat, "gzip", "compress failed", err)
	}
	return buf.Bytes(), nil
}
