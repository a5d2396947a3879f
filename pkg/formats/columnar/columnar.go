// Package columnar adapts the Parquet encoding engine for the exporter.
//
// The Engine interface is the narrow, synchronous surface the writer drives:
// open a row group, write each column's values and definition levels in
// schema order, close the row group, and finally write the footer. The
// arrow-go implementation lives in parquet_engine.go.
package columnar

import (
	"io"

	"github.com/data-fair/parquetexport/pkg/schema"
)

// Format represents a columnar storage format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
)

// Engine encodes column chunks into pages and writes them, followed by the
// footer, into the sink it was opened over. Every call reports failure
// synchronously. Columns must be written in plan order.
type Engine interface {
	// NextRowGroup opens a new row group.
	NextRowGroup() error
	// NextColumn opens the next column of the current row group.
	NextColumn() error
	// WriteBatch writes the non-null values and one definition level per
	// row for the current column.
	WriteBatch(values any, defLevels []int16) error
	// CloseColumn closes the current column.
	CloseColumn() error
	// CloseRowGroup closes the current row group, closing any open column.
	CloseRowGroup() error
	// Finish closes any open row group and writes the footer.
	Finish() error
}

// EngineFactory opens an engine writing the given plan into w.
type EngineFactory func(w io.Writer, plan []schema.ColumnPlan, opts *WriterOptions) (Engine, error)

// FormatInfo provides information about columnar formats
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
}

// GetFormatInfo returns information about a columnar format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Parquet:
		return &FormatInfo{
			Format:        Parquet,
			Name:          "Apache Parquet",
			FileExtension: ".parquet",
			MIMEType:      "application/vnd.apache.parquet",
		}
	default:
		return nil
	}
}

// Statistics summarises what an engine has written so far.
type Statistics struct {
	RowGroups int
	Rows      int64
}
