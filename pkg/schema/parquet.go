package schema

import (
	"github.com/apache/arrow-go/v18/parquet"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// RootName is the name of the root group of every generated file schema.
const RootName = "schema"

// ParquetType returns the engine's physical type enum.
func (p PhysicalType) ParquetType() parquet.Type {
	switch p {
	case PhysicalBoolean:
		return parquet.Types.Boolean
	case PhysicalInt32:
		return parquet.Types.Int32
	case PhysicalInt64:
		return parquet.Types.Int64
	case PhysicalDouble:
		return parquet.Types.Double
	default:
		return parquet.Types.ByteArray
	}
}

// LogicalType returns the engine's logical type, or nil for plain columns.
func (l LogicalAnnotation) LogicalType() pqschema.LogicalType {
	switch l {
	case LogicalString:
		return pqschema.StringLogicalType{}
	case LogicalDate:
		return pqschema.DateLogicalType{}
	case LogicalTimestampMillis:
		return pqschema.NewTimestampLogicalType(false, pqschema.TimeUnitMillis)
	default:
		return nil
	}
}

// Repetition returns REQUIRED for required columns and OPTIONAL otherwise.
func (c ColumnPlan) Repetition() parquet.Repetition {
	if c.Nullable {
		return parquet.Repetitions.Optional
	}
	return parquet.Repetitions.Required
}

// Node builds the leaf node describing the column.
func (c ColumnPlan) Node() (pqschema.Node, error) {
	var (
		node *pqschema.PrimitiveNode
		err  error
	)
	if logical := c.Logical().LogicalType(); logical != nil {
		node, err = pqschema.NewPrimitiveNodeLogical(c.Key, c.Repetition(), logical, c.Physical().ParquetType(), -1, -1)
	} else {
		node, err = pqschema.NewPrimitiveNode(c.Key, c.Repetition(), c.Physical().ParquetType(), -1, -1)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to build column node").
			WithDetail("key", c.Key).
			WithDetail("kind", c.Kind.String())
	}
	return node, nil
}

// ParquetSchema builds the engine's root group for a column plan. Fields are
// emitted in plan order.
func ParquetSchema(plan []ColumnPlan) (*pqschema.GroupNode, error) {
	if len(plan) == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "column plan is empty")
	}

	fields := make(pqschema.FieldList, 0, len(plan))
	for _, col := range plan {
		node, err := col.Node()
		if err != nil {
			return nil, err
		}
		fields = append(fields, node)
	}

	root, err := pqschema.NewGroupNode(RootName, parquet.Repetitions.Required, fields, -1)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to build file schema")
	}
	return root, nil
}
