package input

import (
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/rowbatch"
	"github.com/data-fair/parquetexport/pkg/schema"
)

// AvroReader reads records from an Avro object container file. Nullable
// fields are unwrapped from their union representation.
type AvroReader struct {
	ocf    *goavro.OCFReader
	unions map[string]bool
	record int
}

// NewAvroReader reads the container header from r.
func NewAvroReader(r io.Reader) (*AvroReader, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read Avro container header")
	}

	rec, err := parseAvroRecord(ocf.Codec().Schema())
	if err != nil {
		return nil, err
	}
	unions := make(map[string]bool, len(rec.Fields))
	for _, f := range rec.Fields {
		if _, ok := f.Type.([]any); ok {
			unions[f.Name] = true
		}
	}
	return &AvroReader{ocf: ocf, unions: unions}, nil
}

// Next implements Reader.
func (r *AvroReader) Next() (rowbatch.Row, error) {
	if !r.ocf.Scan() {
		if err := r.ocf.Err(); err != nil {
			return nil, decodeError(err, r.record)
		}
		return nil, io.EOF
	}
	datum, err := r.ocf.Read()
	if err != nil {
		return nil, decodeError(err, r.record)
	}
	r.record++

	row, err := toRow(datum, r.record-1)
	if err != nil {
		return nil, err
	}
	for key := range r.unions {
		// A non-null union value is a single-entry map keyed by its type name.
		if m, ok := row[key].(map[string]any); ok && len(m) == 1 {
			for _, v := range m {
				row[key] = v
			}
		}
	}
	return row, nil
}

// Properties derives schema properties from the container's writer schema.
func (r *AvroReader) Properties() ([]schema.SchemaProperty, error) {
	return AvroProperties(r.ocf.Codec().Schema())
}

type avroRecord struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

type avroField struct {
	Name string `json:"name"`
	Type any    `json:"type"`
}

func parseAvroRecord(avroSchema string) (*avroRecord, error) {
	var rec avroRecord
	if err := gojson.Unmarshal([]byte(avroSchema), &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "invalid Avro schema")
	}
	if rec.Type != "record" {
		return nil, errors.Newf(errors.ErrorTypeSchema, "Avro schema must be a record, got %q", rec.Type)
	}
	return &rec, nil
}

// AvroProperties maps the fields of an Avro record schema to schema
// properties. A field is required unless it is a union with null.
//
//	boolean                    -> boolean
//	int, long                  -> integer
//	float, double              -> number
//	string, bytes, enum        -> string
//	int (date)                 -> string, date
//	long (timestamp-millis/us) -> string, date-time
func AvroProperties(avroSchema string) ([]schema.SchemaProperty, error) {
	rec, err := parseAvroRecord(avroSchema)
	if err != nil {
		return nil, err
	}

	props := make([]schema.SchemaProperty, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		t, nullable := unwrapUnion(f.Type)
		prop, ok := avroProperty(t)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "unsupported Avro type for field %q", f.Name).
				WithDetail("key", f.Name)
		}
		prop.Key = f.Name
		prop.Required = !nullable
		props = append(props, prop)
	}
	return props, nil
}

// unwrapUnion returns the single non-null branch of a union.
func unwrapUnion(t any) (any, bool) {
	branches, ok := t.([]any)
	if !ok {
		return t, false
	}
	var (
		nonNull  []any
		nullable bool
	)
	for _, b := range branches {
		if b == "null" {
			nullable = true
			continue
		}
		nonNull = append(nonNull, b)
	}
	if len(nonNull) != 1 {
		return nil, nullable
	}
	return nonNull[0], nullable
}

func avroProperty(t any) (schema.SchemaProperty, bool) {
	var name, logical string
	switch v := t.(type) {
	case string:
		name = v
	case map[string]any:
		name, _ = v["type"].(string)
		logical, _ = v["logicalType"].(string)
	default:
		return schema.SchemaProperty{}, false
	}

	switch {
	case logical == "date" && name == "int":
		return schema.SchemaProperty{Type: schema.TypeString, Format: schema.FormatDate}, true
	case (logical == "timestamp-millis" || logical == "timestamp-micros") && name == "long":
		return schema.SchemaProperty{Type: schema.TypeString, Format: schema.FormatDateTime}, true
	}

	switch name {
	case "boolean":
		return schema.SchemaProperty{Type: schema.TypeBoolean}, true
	case "int", "long":
		return schema.SchemaProperty{Type: schema.TypeInteger}, true
	case "float", "double":
		return schema.SchemaProperty{Type: schema.TypeNumber}, true
	case "string", "bytes", "enum":
		return schema.SchemaProperty{Type: schema.TypeString}, true
	default:
		return schema.SchemaProperty{}, false
	}
}
