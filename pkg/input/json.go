package input

import (
	"bufio"
	stderrors "errors"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/rowbatch"
)

const readBufferSize = 64 * 1024

func newDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(bufio.NewReaderSize(r, readBufferSize))
	dec.UseNumber()
	return dec
}

// NDJSONReader reads one JSON object per line. Blank lines are skipped.
type NDJSONReader struct {
	dec    *gojson.Decoder
	record int
}

// NewNDJSONReader creates a reader over r.
func NewNDJSONReader(r io.Reader) *NDJSONReader {
	return &NDJSONReader{dec: newDecoder(r)}
}

// Next implements Reader.
func (r *NDJSONReader) Next() (rowbatch.Row, error) {
	var v any
	if err := r.dec.Decode(&v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, decodeError(err, r.record)
	}
	r.record++
	return toRow(v, r.record-1)
}

// JSONArrayReader streams the elements of a top-level JSON array without
// loading the whole document.
type JSONArrayReader struct {
	dec     *gojson.Decoder
	record  int
	started bool
	done    bool
}

// NewJSONArrayReader creates a reader over r.
func NewJSONArrayReader(r io.Reader) *JSONArrayReader {
	return &JSONArrayReader{dec: newDecoder(r)}
}

// Next implements Reader.
func (r *JSONArrayReader) Next() (rowbatch.Row, error) {
	if r.done {
		return nil, io.EOF
	}
	if !r.started {
		tok, err := r.dec.Token()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				r.done = true
				return nil, io.EOF
			}
			return nil, decodeError(err, 0)
		}
		if delim, ok := tok.(gojson.Delim); !ok || delim != '[' {
			return nil, errors.New(errors.ErrorTypeIO, "input is not a JSON array")
		}
		r.started = true
	}

	if !r.dec.More() {
		if _, err := r.dec.Token(); err != nil {
			return nil, decodeError(err, r.record)
		}
		r.done = true
		return nil, io.EOF
	}

	var v any
	if err := r.dec.Decode(&v); err != nil {
		return nil, decodeError(err, r.record)
	}
	r.record++
	return toRow(v, r.record-1)
}
