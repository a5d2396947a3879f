package columnar

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/schema"
)

// writeOnly hides any Close method of the sink. The file writer closes
// closable sinks when it writes the footer, and the sink must outlive it.
type writeOnly struct {
	w io.Writer
}

func (s writeOnly) Write(p []byte) (int, error) { return s.w.Write(p) }

// ParquetEngine drives an arrow-go file writer one column chunk at a time.
type ParquetEngine struct {
	fw       *file.Writer
	opts     *WriterOptions
	required []bool

	rg     file.SerialRowGroupWriter
	col    file.ColumnChunkWriter
	colIdx int
	rgRows int64
	stats  Statistics
	closed bool
}

var _ Engine = (*ParquetEngine)(nil)

// NewParquetEngine is an EngineFactory backed by arrow-go. The file magic is
// written to w immediately.
func NewParquetEngine(w io.Writer, plan []schema.ColumnPlan, opts *WriterOptions) (Engine, error) {
	if opts == nil {
		opts = DefaultWriterOptions()
	}

	root, err := schema.ParquetSchema(plan)
	if err != nil {
		return nil, err
	}
	props, err := opts.Properties()
	if err != nil {
		return nil, err
	}

	required := make([]bool, len(plan))
	for i, col := range plan {
		required[i] = col.Required()
	}

	pe := &ParquetEngine{
		opts:     opts,
		required: required,
		colIdx:   -1,
	}
	err = guard("open file", func() error {
		pe.fw = file.NewParquetWriter(writeOnly{w: w}, root, file.WithWriterProps(props))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

// NextRowGroup implements Engine.
func (pe *ParquetEngine) NextRowGroup() error {
	if pe.closed {
		return errors.New(errors.ErrorTypeEncoding, "file writer already finished")
	}
	if pe.rg != nil {
		return errors.New(errors.ErrorTypeEncoding, "previous row group still open")
	}
	return guard("append row group", func() error {
		pe.rg = pe.fw.AppendRowGroup()
		pe.colIdx = -1
		pe.rgRows = 0
		return nil
	})
}

// NextColumn implements Engine.
func (pe *ParquetEngine) NextColumn() error {
	if pe.rg == nil {
		return errors.New(errors.ErrorTypeEncoding, "no open row group")
	}
	return guard("next column", func() error {
		cw, err := pe.rg.NextColumn()
		if err != nil {
			return err
		}
		pe.col = cw
		pe.colIdx++
		return nil
	})
}

// WriteBatch implements Engine. Required columns have a maximum definition
// level of zero, so their levels are not passed to the column writer.
func (pe *ParquetEngine) WriteBatch(values any, defLevels []int16) error {
	if pe.col == nil {
		return errors.New(errors.ErrorTypeEncoding, "no open column")
	}
	if pe.colIdx == 0 {
		pe.rgRows += int64(len(defLevels))
	}
	if pe.colIdx < len(pe.required) && pe.required[pe.colIdx] {
		defLevels = nil
	}

	return guard("write batch", func() error {
		var err error
		switch cw := pe.col.(type) {
		case *file.BooleanColumnChunkWriter:
			v, ok := values.([]bool)
			if !ok {
				return mismatch(values, cw)
			}
			_, err = cw.WriteBatch(v, defLevels, nil)
		case *file.Int32ColumnChunkWriter:
			v, ok := values.([]int32)
			if !ok {
				return mismatch(values, cw)
			}
			_, err = cw.WriteBatch(v, defLevels, nil)
		case *file.Int64ColumnChunkWriter:
			v, ok := values.([]int64)
			if !ok {
				return mismatch(values, cw)
			}
			_, err = cw.WriteBatch(v, defLevels, nil)
		case *file.Float64ColumnChunkWriter:
			v, ok := values.([]float64)
			if !ok {
				return mismatch(values, cw)
			}
			_, err = cw.WriteBatch(v, defLevels, nil)
		case *file.ByteArrayColumnChunkWriter:
			v, ok := values.([]parquet.ByteArray)
			if !ok {
				return mismatch(values, cw)
			}
			_, err = cw.WriteBatch(v, defLevels, nil)
		default:
			return fmt.Errorf("unsupported column writer %T", pe.col)
		}
		return err
	})
}

// CloseColumn implements Engine.
func (pe *ParquetEngine) CloseColumn() error {
	if pe.col == nil {
		return nil
	}
	cw := pe.col
	pe.col = nil
	return guard("close column", cw.Close)
}

// CloseRowGroup implements Engine.
func (pe *ParquetEngine) CloseRowGroup() error {
	if pe.rg == nil {
		return nil
	}
	colErr := pe.CloseColumn()

	rg := pe.rg
	pe.rg = nil
	err := guard("close row group", rg.Close)
	if colErr != nil {
		return colErr
	}
	if err != nil {
		return err
	}

	pe.stats.RowGroups++
	pe.stats.Rows += pe.rgRows
	return nil
}

// Finish implements Engine.
func (pe *ParquetEngine) Finish() error {
	if pe.closed {
		return errors.New(errors.ErrorTypeEncoding, "file writer already finished")
	}
	rgErr := pe.CloseRowGroup()
	pe.closed = true

	err := guard("write footer", func() error {
		for _, k := range pe.opts.sortedMetadataKeys() {
			if err := pe.fw.AppendKeyValueMetadata(k, pe.opts.Metadata[k]); err != nil {
				return err
			}
		}
		return pe.fw.Close()
	})
	if rgErr != nil {
		return rgErr
	}
	return err
}

// totals returns the row groups and rows closed so far.
func (pe *ParquetEngine) totals() Statistics {
	return pe.stats
}

func mismatch(values any, cw file.ColumnChunkWriter) error {
	return fmt.Errorf("values of type %T do not match %s column %q",
		values, cw.Descr().PhysicalType(), cw.Descr().Name())
}

// guard runs fn and converts both returned errors and engine panics into
// encoding errors.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeEncoding, "%s: engine panic: %v", op, r).
				WithDetail("operation", op)
		}
	}()
	if ferr := fn(); ferr != nil {
		if errors.IsType(ferr, errors.ErrorTypeEncoding) {
			return ferr
		}
		return errors.Wrap(ferr, errors.ErrorTypeEncoding, op).WithDetail("operation", op)
	}
	return nil
}
