// Package record defines the engine's data model: the immutable Record
// triple, the closed data-format enumeration, and the optional schema shape
// produced by format serializers.
package record

// DataFormat is a closed tag deciding whether a record's raw wire bytes may
// be handed to a sink codec unchanged.
type DataFormat string

const (
	FormatJSON     DataFormat = "json"
	FormatCSV      DataFormat = "csv"
	FormatProtobuf DataFormat = "protobuf"
	FormatAvro     DataFormat = "avro"
	FormatRaw      DataFormat = "raw"
)

// Raw preserves the wire representation a record entered the system with.
// Any processing step that mutates Value must drop Raw — the two are only
// trustworthy as a pair when the record has not been touched since decode.
type Raw struct {
	Bytes  []byte
	Format DataFormat
}

// Record is the immutable unit of data flowing through topics, processors,
// and pipelines. TsMs is Unix milliseconds; Key is a partitioning identifier
// (empty string allowed); Value is a format-neutral structured document.
type Record struct {
	TsMs  int64
	Key   string
	Value any
	Raw   *Raw
}

// WithoutRaw returns a copy of r with Raw cleared, for use after any
// transformation that changes Value.
func (r Record) WithoutRaw() Record {
	r.Raw = nil
	return r
}

// FieldType is a scalar tag used by Field, or (via IsArray) an array of one.
type FieldType string

const (
	FieldBool      FieldType = "bool"
	FieldInt32     FieldType = "int32"
	FieldInt64     FieldType = "int64"
	FieldFloat32   FieldType = "float32"
	FieldFloat64   FieldType = "float64"
	FieldDecimal   FieldType = "decimal"
	FieldString    FieldType = "string"
	FieldBytes     FieldType = "bytes"
	FieldTimestamp FieldType = "timestamp"
	FieldDate      FieldType = "date"
	FieldUUID      FieldType = "uuid"
	FieldJSON      FieldType = "json"
)

// Field describes one column of a Schema. Precision/Scale are only
// meaningful when Type == FieldDecimal.
type Field struct {
	Name      string
	Type      FieldType
	IsArray   bool
	Nullable  bool
	Precision int
	Scale     int
}

// Schema is the optional, ordered field description a format serializer may
// produce for a topic. Low-fidelity formats (CSV, JSON) may return a nil
// Schema; rich formats (Avro, Protobuf) are expected to populate one.
type Schema struct {
	Fields []Field
}
