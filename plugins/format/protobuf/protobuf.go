// Package protobuf implements the FormatSerializer for the fixed Quote
// message (symbol string, price double, ts_ms int64) that
// plugins/codec/protobuf encodes and decodes — a schema-rich format, unlike
// JSON/CSV, so it declares a real record.Schema.
package protobuf

import (
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
)

func init() {
	pluginhost.RegisterBuiltin(pluginhost.KindFormatSerializer, "protobuf", nil, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(), nil
	})
}

type Serializer struct{}

func New() *Serializer { return &Serializer{} }

func (s *Serializer) DataFormat() record.DataFormat { return record.FormatProtobuf }

func (s *Serializer) Schema() *record.Schema {
	return &record.Schema{
		Fields: []record.Field{
			{Name: "symbol", Type: record.FieldString, Nullable: false},
			{Name: "price", Type: record.FieldFloat64, Nullable: false},
			{Name: "ts_ms", Type: record.FieldInt64, Nullable: false},
		},
	}
}
