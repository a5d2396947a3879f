package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/parquet"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-fair/parquetexport/pkg/errors"
)

func TestTranslateMapping(t *testing.T) {
	tests := []struct {
		name     string
		prop     SchemaProperty
		kind     Kind
		physical PhysicalType
		logical  LogicalAnnotation
	}{
		{"boolean", SchemaProperty{Key: "b", Type: TypeBoolean}, KindBoolean, PhysicalBoolean, LogicalNone},
		{"integer", SchemaProperty{Key: "i", Type: TypeInteger}, KindInt64, PhysicalInt64, LogicalNone},
		{"number", SchemaProperty{Key: "n", Type: TypeNumber}, KindDouble, PhysicalDouble, LogicalNone},
		{"string", SchemaProperty{Key: "s", Type: TypeString}, KindString, PhysicalByteArray, LogicalString},
		{"unknown format", SchemaProperty{Key: "u", Type: TypeString, Format: "uri"}, KindString, PhysicalByteArray, LogicalString},
		{"date", SchemaProperty{Key: "d", Type: TypeString, Format: FormatDate}, KindDate, PhysicalInt32, LogicalDate},
		{"date-time", SchemaProperty{Key: "t", Type: TypeString, Format: FormatDateTime}, KindTimestampMillis, PhysicalInt64, LogicalTimestampMillis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Translate([]SchemaProperty{tt.prop})
			require.NoError(t, err)
			require.Len(t, plan, 1)

			col := plan[0]
			assert.Equal(t, tt.prop.Key, col.Key)
			assert.Equal(t, 0, col.Index)
			assert.Equal(t, tt.kind, col.Kind)
			assert.Equal(t, tt.physical, col.Physical())
			assert.Equal(t, tt.logical, col.Logical())
			assert.True(t, col.Nullable)
		})
	}
}

func TestTranslateKeepsOrderAndNullability(t *testing.T) {
	plan, err := Translate([]SchemaProperty{
		{Key: "z", Type: TypeString, Required: true},
		{Key: "a", Type: TypeInteger},
		{Key: "m", Type: TypeNumber, Required: true},
	})
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, []string{"z", "a", "m"}, []string{plan[0].Key, plan[1].Key, plan[2].Key})
	for i, col := range plan {
		assert.Equal(t, i, col.Index)
	}
	assert.False(t, plan[0].Nullable)
	assert.True(t, plan[0].Required())
	assert.True(t, plan[1].Nullable)
	assert.False(t, plan[2].Nullable)
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name  string
		props []SchemaProperty
	}{
		{"unsupported type", []SchemaProperty{{Key: "x", Type: "object"}}},
		{"empty type", []SchemaProperty{{Key: "x"}}},
		{"empty key", []SchemaProperty{{Key: "", Type: TypeString}}},
		{"duplicate key", []SchemaProperty{{Key: "x", Type: TypeString}, {Key: "x", Type: TypeInteger}}},
		{"no properties", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Translate(tt.props)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchema), "got %v", err)
		})
	}
}

func TestTranslateUnsupportedTypeDetails(t *testing.T) {
	_, err := Translate([]SchemaProperty{
		{Key: "ok", Type: TypeBoolean},
		{Key: "geo", Type: "object"},
	})
	require.Error(t, err)

	se, ok := err.(*errors.Error)
	require.True(t, ok)
	key, _ := se.Detail("key")
	assert.Equal(t, "geo", key)
	typ, _ := se.Detail("type")
	assert.Equal(t, "object", typ)
}

func TestKindOf(t *testing.T) {
	kind, err := KindOf(TypeString, FormatDate)
	require.NoError(t, err)
	assert.Equal(t, KindDate, kind)
	assert.Equal(t, "date", kind.String())

	_, err = KindOf("array", FormatNone)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestParquetSchema(t *testing.T) {
	plan, err := Translate([]SchemaProperty{
		{Key: "id", Type: TypeInteger, Required: true},
		{Key: "name", Type: TypeString},
		{Key: "day", Type: TypeString, Format: FormatDate},
		{Key: "at", Type: TypeString, Format: FormatDateTime},
		{Key: "score", Type: TypeNumber},
		{Key: "active", Type: TypeBoolean},
	})
	require.NoError(t, err)

	root, err := ParquetSchema(plan)
	require.NoError(t, err)
	assert.Equal(t, RootName, root.Name())
	require.Equal(t, len(plan), root.NumFields())

	sc := pqschema.NewSchema(root)
	require.Equal(t, len(plan), sc.NumColumns())

	expected := []struct {
		name     string
		physical parquet.Type
		rep      parquet.Repetition
	}{
		{"id", parquet.Types.Int64, parquet.Repetitions.Required},
		{"name", parquet.Types.ByteArray, parquet.Repetitions.Optional},
		{"day", parquet.Types.Int32, parquet.Repetitions.Optional},
		{"at", parquet.Types.Int64, parquet.Repetitions.Optional},
		{"score", parquet.Types.Double, parquet.Repetitions.Optional},
		{"active", parquet.Types.Boolean, parquet.Repetitions.Optional},
	}
	for i, exp := range expected {
		col := sc.Column(i)
		assert.Equal(t, exp.name, col.Name())
		assert.Equal(t, exp.physical, col.PhysicalType())
		assert.Equal(t, exp.rep, root.Field(i).RepetitionType())
	}

	assert.True(t, sc.Column(1).LogicalType().Equals(pqschema.StringLogicalType{}))
	assert.True(t, sc.Column(2).LogicalType().Equals(pqschema.DateLogicalType{}))
	assert.True(t, sc.Column(3).LogicalType().Equals(pqschema.NewTimestampLogicalType(false, pqschema.TimeUnitMillis)))
	assert.Equal(t, int16(0), sc.Column(0).MaxDefinitionLevel())
	assert.Equal(t, int16(1), sc.Column(1).MaxDefinitionLevel())
}

func TestParquetSchemaEmpty(t *testing.T) {
	_, err := ParquetSchema(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestParseProperties(t *testing.T) {
	data := []byte(`[
		{"key": "id", "type": "integer", "x-required": true, "title": "Identifier"},
		{"key": "day", "type": "string", "format": "date", "x-originalName": "Day"},
		{"key": "label", "type": "string", "format": null}
	]`)

	props, err := ParseProperties(data)
	require.NoError(t, err)
	require.Len(t, props, 3)

	assert.Equal(t, SchemaProperty{Key: "id", Type: TypeInteger, Required: true}, props[0])
	assert.Equal(t, SchemaProperty{Key: "day", Type: TypeString, Format: FormatDate}, props[1])
	assert.Equal(t, FormatNone, props[2].Format)

	_, err = ParseProperties([]byte(`{"key":`))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestLoadProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"key":"a","type":"boolean"}]`), 0o600))

	props, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, []SchemaProperty{{Key: "a", Type: TypeBoolean}}, props)

	_, err = LoadProperties(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}
