// Package rowbatch converts row-major records into the column-major values
// and definition levels the Parquet engine consumes, one row group at a time.
//
// A batch is fully assembled and validated before anything is handed to the
// engine. A bad value or a null in a required column therefore fails the
// whole batch without leaving a partial row group behind.
package rowbatch

import (
	"fmt"

	"github.com/apache/arrow-go/v18/parquet"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/schema"
)

// Definition levels for flat columns.
const (
	LevelNull    int16 = 0
	LevelPresent int16 = 1
)

// Row is one record keyed by column name. A missing key is a null, the same
// as an explicit nil. Keys that are not in the plan are ignored.
type Row = map[string]any

// ColumnBatch is the column-major data for one column of a row group.
//
// Values holds only the non-null entries, in row order, typed by the
// column's physical type: []bool, []int32, []int64, []float64 or
// []parquet.ByteArray.
type ColumnBatch struct {
	Plan      schema.ColumnPlan
	DefLevels []int16
	Values    any
}

// NumValues returns the number of non-null entries.
func (c *ColumnBatch) NumValues() int {
	switch v := c.Values.(type) {
	case []bool:
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []float64:
		return len(v)
	case []parquet.ByteArray:
		return len(v)
	default:
		return 0
	}
}

// NullCount returns the number of null entries.
func (c *ColumnBatch) NullCount() int {
	return len(c.DefLevels) - c.NumValues()
}

// RowGroupBatch is the transient column-major form of one AddRows call.
type RowGroupBatch struct {
	NumRows int
	Columns []ColumnBatch
}

// Assemble converts rows into one column batch per planned column, in plan
// order. Every column batch carries exactly len(rows) definition levels.
func Assemble(rows []Row, plan []schema.ColumnPlan) (*RowGroupBatch, error) {
	batch := &RowGroupBatch{
		NumRows: len(rows),
		Columns: make([]ColumnBatch, 0, len(plan)),
	}
	for _, col := range plan {
		cb, err := assembleColumn(rows, col)
		if err != nil {
			return nil, err
		}
		batch.Columns = append(batch.Columns, cb)
	}
	return batch, nil
}

func assembleColumn(rows []Row, col schema.ColumnPlan) (ColumnBatch, error) {
	cb := ColumnBatch{
		Plan:      col,
		DefLevels: make([]int16, len(rows)),
	}

	var err error
	switch col.Kind {
	case schema.KindBoolean:
		cb.Values, err = collect(rows, col, cb.DefLevels, toBool)
	case schema.KindInt64:
		cb.Values, err = collect(rows, col, cb.DefLevels, toInt64)
	case schema.KindDouble:
		cb.Values, err = collect(rows, col, cb.DefLevels, toFloat64)
	case schema.KindString:
		cb.Values, err = collect(rows, col, cb.DefLevels, toByteArray)
	case schema.KindDate:
		cb.Values, err = collect(rows, col, cb.DefLevels, toDate)
	case schema.KindTimestampMillis:
		cb.Values, err = collect(rows, col, cb.DefLevels, toTimestampMillis)
	default:
		return cb, errors.Newf(errors.ErrorTypeSchema, "column %q has no kind", col.Key).
			WithDetail("key", col.Key)
	}
	return cb, err
}

// collect walks rows in order, filling defLevels and returning the non-null
// values converted by conv.
func collect[T any](rows []Row, col schema.ColumnPlan, defLevels []int16, conv func(any) (T, bool)) ([]T, error) {
	values := make([]T, 0, len(rows))
	for i, row := range rows {
		raw, present := row[col.Key]
		if !present || raw == nil {
			if !col.Nullable {
				return nil, errors.Newf(errors.ErrorTypeRequiredNull, "null value in required column %q", col.Key).
					WithDetail("key", col.Key).
					WithDetail("row", i)
			}
			defLevels[i] = LevelNull
			continue
		}

		v, ok := conv(raw)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeRowType, "cannot store %T value in %s column %q", raw, col.Kind, col.Key).
				WithDetail("key", col.Key).
				WithDetail("row", i).
				WithDetail("go_type", fmt.Sprintf("%T", raw))
		}
		values = append(values, v)
		defLevels[i] = LevelPresent
	}
	return values, nil
}
