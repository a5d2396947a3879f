package testutil

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/require"
)

// ParquetFile is an encoded file opened for verification.
type ParquetFile struct {
	Reader *file.Reader
}

// ColumnData is one column chunk read back from a file. Required columns
// report a definition level of 1 for every row.
type ColumnData struct {
	Name      string
	Values    any
	DefLevels []int16
}

// ReadParquet opens data as a Parquet file, failing the test if the footer
// cannot be decoded.
func ReadParquet(t *testing.T, data []byte) *ParquetFile {
	t.Helper()

	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	require.NoError(t, err, "decode parquet file")
	t.Cleanup(func() { _ = rdr.Close() })
	return &ParquetFile{Reader: rdr}
}

// NumRowGroups returns the number of row groups in the footer.
func (p *ParquetFile) NumRowGroups() int {
	return p.Reader.NumRowGroups()
}

// NumRows returns the total number of rows in the footer.
func (p *ParquetFile) NumRows() int64 {
	return p.Reader.NumRows()
}

// Column reads every value of column col in row group rg.
func (p *ParquetFile) Column(t *testing.T, rg, col int) ColumnData {
	t.Helper()

	rgr := p.Reader.RowGroup(rg)
	n := rgr.NumRows()
	cr, err := rgr.Column(col)
	require.NoError(t, err)

	var (
		values any
		defs   []int16
	)
	switch r := cr.(type) {
	case *file.BooleanColumnChunkReader:
		values, defs, err = readAll(n, cr.HasNext, func(b int64, v []bool, d []int16) (int64, int, error) {
			return r.ReadBatch(b, v, d, nil)
		})
	case *file.Int32ColumnChunkReader:
		values, defs, err = readAll(n, cr.HasNext, func(b int64, v []int32, d []int16) (int64, int, error) {
			return r.ReadBatch(b, v, d, nil)
		})
	case *file.Int64ColumnChunkReader:
		values, defs, err = readAll(n, cr.HasNext, func(b int64, v []int64, d []int16) (int64, int, error) {
			return r.ReadBatch(b, v, d, nil)
		})
	case *file.Float64ColumnChunkReader:
		values, defs, err = readAll(n, cr.HasNext, func(b int64, v []float64, d []int16) (int64, int, error) {
			return r.ReadBatch(b, v, d, nil)
		})
	case *file.ByteArrayColumnChunkReader:
		var raw []parquet.ByteArray
		raw, defs, err = readAll(n, cr.HasNext, func(b int64, v []parquet.ByteArray, d []int16) (int64, int, error) {
			return r.ReadBatch(b, v, d, nil)
		})
		strs := make([]string, len(raw))
		for i, s := range raw {
			strs[i] = string(s)
		}
		values = strs
	default:
		t.Fatalf("unexpected column reader %T", cr)
	}
	require.NoError(t, err)

	if cr.Descriptor().MaxDefinitionLevel() == 0 {
		for i := range defs {
			defs[i] = 1
		}
	}
	return ColumnData{Name: cr.Descriptor().Name(), Values: values, DefLevels: defs}
}

// Rows rebuilds every row of the file keyed by column name. Nulls are
// present as nil, byte arrays come back as strings.
func (p *ParquetFile) Rows(t *testing.T) []map[string]any {
	t.Helper()

	var rows []map[string]any
	numCols := p.Reader.MetaData().Schema.NumColumns()
	for rg := 0; rg < p.NumRowGroups(); rg++ {
		base := len(rows)
		for c := 0; c < numCols; c++ {
			data := p.Column(t, rg, c)
			if c == 0 {
				for range data.DefLevels {
					rows = append(rows, map[string]any{})
				}
			}
			vi := 0
			for i, lvl := range data.DefLevels {
				if lvl == 0 {
					rows[base+i][data.Name] = nil
					continue
				}
				rows[base+i][data.Name] = valueAt(data.Values, vi)
				vi++
			}
		}
	}
	return rows
}

// KeyValue returns a footer key-value metadata entry.
func (p *ParquetFile) KeyValue(key string) (string, bool) {
	v := p.Reader.MetaData().KeyValueMetadata().FindValue(key)
	if v == nil {
		return "", false
	}
	return *v, true
}

func valueAt(values any, i int) any {
	switch v := values.(type) {
	case []bool:
		return v[i]
	case []int32:
		return v[i]
	case []int64:
		return v[i]
	case []float64:
		return v[i]
	case []string:
		return v[i]
	default:
		return nil
	}
}

func readAll[T any](n int64, hasNext func() bool, read func(int64, []T, []int16) (int64, int, error)) ([]T, []int16, error) {
	vals := make([]T, n)
	defs := make([]int16, n)

	var levels int64
	var nvals int
	for levels < n && hasNext() {
		total, got, err := read(n-levels, vals[nvals:], defs[levels:])
		if err != nil {
			return nil, nil, err
		}
		if total == 0 {
			break
		}
		levels += total
		nvals += got
	}
	return vals[:nvals], defs[:levels], nil
}
