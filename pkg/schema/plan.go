// Package schema translates a declarative column schema into the column plan
// used by the row batch assembler and the Parquet encoding engine.
//
// Translation is a pure function of each property's declared type and
// format. The result is resolved once into a closed Kind so that assembly
// dispatches on an enum instead of re-comparing type strings for every row.
//
//	plan, err := schema.Translate([]schema.SchemaProperty{
//	    {Key: "id", Type: schema.TypeInteger, Required: true},
//	    {Key: "day", Type: schema.TypeString, Format: schema.FormatDate},
//	})
package schema

import (
	"fmt"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// Kind is the resolved encoding contract of a column.
type Kind uint8

const (
	KindBoolean Kind = iota + 1
	KindInt64
	KindDouble
	KindString
	KindDate
	KindTimestampMillis
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTimestampMillis:
		return "timestamp_millis"
	default:
		return "unknown"
	}
}

// PhysicalType is the low-level binary representation of a column.
type PhysicalType uint8

const (
	PhysicalBoolean PhysicalType = iota + 1
	PhysicalInt32
	PhysicalInt64
	PhysicalDouble
	PhysicalByteArray
)

func (p PhysicalType) String() string {
	switch p {
	case PhysicalBoolean:
		return "BOOLEAN"
	case PhysicalInt32:
		return "INT32"
	case PhysicalInt64:
		return "INT64"
	case PhysicalDouble:
		return "DOUBLE"
	case PhysicalByteArray:
		return "BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// LogicalAnnotation tells readers how to interpret the physical bytes.
type LogicalAnnotation uint8

const (
	LogicalNone LogicalAnnotation = iota
	LogicalDate
	LogicalTimestampMillis
	LogicalString
)

func (l LogicalAnnotation) String() string {
	switch l {
	case LogicalDate:
		return "DATE"
	case LogicalTimestampMillis:
		return "TIMESTAMP(MILLIS,false)"
	case LogicalString:
		return "STRING"
	default:
		return "NONE"
	}
}

// Physical returns the physical type backing the kind.
func (k Kind) Physical() PhysicalType {
	switch k {
	case KindBoolean:
		return PhysicalBoolean
	case KindInt64, KindTimestampMillis:
		return PhysicalInt64
	case KindDouble:
		return PhysicalDouble
	case KindDate:
		return PhysicalInt32
	default:
		return PhysicalByteArray
	}
}

// Logical returns the logical annotation of the kind.
func (k Kind) Logical() LogicalAnnotation {
	switch k {
	case KindString:
		return LogicalString
	case KindDate:
		return LogicalDate
	case KindTimestampMillis:
		return LogicalTimestampMillis
	default:
		return LogicalNone
	}
}

// ColumnPlan is the per-column encoding contract derived from a
// SchemaProperty. Plans are immutable and safe to share between goroutines.
type ColumnPlan struct {
	Key      string
	Index    int
	Kind     Kind
	Nullable bool
}

// Physical returns the column's physical type.
func (c ColumnPlan) Physical() PhysicalType { return c.Kind.Physical() }

// Logical returns the column's logical annotation.
func (c ColumnPlan) Logical() LogicalAnnotation { return c.Kind.Logical() }

// Required reports whether nulls are rejected for the column.
func (c ColumnPlan) Required() bool { return !c.Nullable }

// KindOf resolves a declared type and format into a column kind.
func KindOf(declared DeclaredType, format Format) (Kind, error) {
	kind, ok := kindOf(declared, format)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeSchema, "unsupported declared type %q", string(declared)).
			WithDetail("type", string(declared))
	}
	return kind, nil
}

func kindOf(declared DeclaredType, format Format) (Kind, bool) {
	switch declared {
	case TypeBoolean:
		return KindBoolean, true
	case TypeInteger:
		return KindInt64, true
	case TypeNumber:
		return KindDouble, true
	case TypeString:
		switch format {
		case FormatDate:
			return KindDate, true
		case FormatDateTime:
			return KindTimestampMillis, true
		default:
			return KindString, true
		}
	default:
		return 0, false
	}
}

// Translate derives the column plan for an ordered list of properties. The
// returned plan keeps the property order. Any unsupported type, empty key or
// duplicate key aborts translation.
func Translate(properties []SchemaProperty) ([]ColumnPlan, error) {
	if len(properties) == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "schema has no properties")
	}

	seen := make(map[string]int, len(properties))
	plan := make([]ColumnPlan, 0, len(properties))
	for i, prop := range properties {
		if prop.Key == "" {
			return nil, errors.New(errors.ErrorTypeSchema, "property has an empty key").
				WithDetail("index", i)
		}
		if first, dup := seen[prop.Key]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchema, "duplicate property key %q", prop.Key).
				WithDetail("key", prop.Key).
				WithDetail("first_index", first).
				WithDetail("index", i)
		}
		seen[prop.Key] = i

		kind, err := KindOf(prop.Type, prop.Format)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, fmt.Sprintf("property %q", prop.Key)).
				WithDetail("key", prop.Key).
				WithDetail("type", string(prop.Type))
		}

		plan = append(plan, ColumnPlan{
			Key:      prop.Key,
			Index:    i,
			Kind:     kind,
			Nullable: !prop.Required,
		})
	}
	return plan, nil
}
