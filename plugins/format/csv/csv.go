// Package csv implements the CSV FormatSerializer: like JSON, a
// low-fidelity format that declares no schema.
package csv

import (
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindFormatSerializer, "csv", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

type Serializer struct{}

func New() *Serializer { return &Serializer{} }

func (s *Serializer) DataFormat() record.DataFormat { return record.FormatCSV }

func (s *Serializer) Schema() *record.Schema { return nil }
