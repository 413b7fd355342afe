// Package avro implements a minimal FormatSerializer declaring a schema
// shape for the Avro data format tag. spec.md §3 groups Avro with Protobuf
// as a "low-level type fidelity" format that produces a rich schema; no
// Avro wire codec ships with the core (no scenario in spec.md §8 exercises
// one), only the format declaration a topic can reference.
package avro

import (
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindFormatSerializer, "avro", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

type Serializer struct{}

func New() *Serializer { return &Serializer{} }

func (s *Serializer) DataFormat() record.DataFormat { return record.FormatAvro }

func (s *Serializer) Schema() *record.Schema {
	return &record.Schema{
		Fields: []record.Field{
			{Name: "symbol", Type: record.FieldString, Nullable: false},
			{Name: "price", Type: record.FieldFloat64, Nullable: false},
			{Name: "ts_ms", Type: record.FieldInt64, Nullable: false},
		},
	}
}
