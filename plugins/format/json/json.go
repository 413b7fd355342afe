// Package json implements the JSON FormatSerializer: a low-fidelity format
// that declares no schema, per spec.md §3 ("CSV/JSON produce none").
package json

import (
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindFormatSerializer, "json", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

type Serializer struct{}

func New() *Serializer { return &Serializer{} }

func (s *Serializer) DataFormat() record.DataFormat { return record.FormatJSON }

func (s *Serializer) Schema() *record.Schema { return nil }
