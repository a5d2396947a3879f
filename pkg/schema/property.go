package schema

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// DeclaredType is the loosely-typed column type of a schema description.
type DeclaredType string

const (
	TypeBoolean DeclaredType = "boolean"
	TypeInteger DeclaredType = "integer"
	TypeNumber  DeclaredType = "number"
	TypeString  DeclaredType = "string"
)

// Format refines a string column. Any value other than FormatDate and
// FormatDateTime is treated as plain text.
type Format string

const (
	FormatNone     Format = ""
	FormatDate     Format = "date"
	FormatDateTime Format = "date-time"
)

// SchemaProperty is one declared column. Key is both the column name in the
// output file and the lookup key into each row.
type SchemaProperty struct {
	Key      string       `json:"key"`
	Type     DeclaredType `json:"type"`
	Format   Format       `json:"format,omitempty"`
	Required bool         `json:"x-required,omitempty"`
}

// ParseProperties decodes a JSON array of schema properties. Fields other
// than key, type, format and x-required are ignored so a full dataset schema
// can be passed as is.
func ParseProperties(data []byte) ([]SchemaProperty, error) {
	var props []SchemaProperty
	if err := gojson.Unmarshal(data, &props); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to decode schema description")
	}
	return props, nil
}

// LoadProperties reads and decodes a schema description file.
func LoadProperties(path string) ([]SchemaProperty, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read schema file").
			WithDetail("path", path)
	}
	return ParseProperties(data)
}
