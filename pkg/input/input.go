// Package input reads the rows of an export from a byte stream.
//
// Three formats are supported: newline-delimited JSON objects, a single JSON
// array of objects, and Avro object container files. JSON numbers are kept
// as json.Number so integers above 2^53 survive until the row batch
// assembler converts them.
package input

import (
	"io"
	"os"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/rowbatch"
)

// Supported formats.
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatAvro   = "avro"
)

// Reader yields rows one at a time.
type Reader interface {
	// Next returns the next row, or io.EOF after the last one.
	Next() (rowbatch.Row, error)
}

// New returns a reader for format over r.
func New(format string, r io.Reader) (Reader, error) {
	switch format {
	case FormatNDJSON, "":
		return NewNDJSONReader(r), nil
	case FormatJSON:
		return NewJSONArrayReader(r), nil
	case FormatAvro:
		return NewAvroReader(r)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported input format %q", format).
			WithDetail("format", format)
	}
}

// ReadBatch reads up to max rows. At the end of the input it returns the
// remaining rows together with io.EOF.
func ReadBatch(r Reader, max int) ([]rowbatch.Row, error) {
	return ReadBatchInto(r, make([]rowbatch.Row, 0, max), max)
}

// ReadBatchInto appends up to max rows to rows, like ReadBatch.
func ReadBatchInto(r Reader, rows []rowbatch.Row, max int) ([]rowbatch.Row, error) {
	rows = rows[:0]
	for len(rows) < max {
		row, err := r.Next()
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Open opens path for reading. "-" and "" read standard input.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the export configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open input").
			WithDetail("path", path)
	}
	return f, nil
}

// toRow checks that a decoded record is an object.
func toRow(v any, record int) (rowbatch.Row, error) {
	row, ok := v.(map[string]any)
	if !ok || row == nil {
		return nil, errors.Newf(errors.ErrorTypeRowType, "record %d is not an object", record).
			WithDetail("record", record)
	}
	return row, nil
}

func decodeError(err error, record int) error {
	return errors.Wrap(err, errors.ErrorTypeIO, "failed to decode input record").
		WithDetail("record", record)
}
