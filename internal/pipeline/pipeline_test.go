package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-fair/parquetexport/pkg/destinations"
	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/input"
	"github.com/data-fair/parquetexport/pkg/schema"
	"github.com/data-fair/parquetexport/pkg/testutil"
	"github.com/data-fair/parquetexport/pkg/writer"
)

var props = []schema.SchemaProperty{
	{Key: "id", Type: schema.TypeInteger, Required: true},
	{Key: "name", Type: schema.TypeString},
	{Key: "day", Type: schema.TypeString, Format: schema.FormatDate},
}

// recordingDestination keeps every chunk and signal.
type recordingDestination struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	events  []string
	failOn  int
	aborted error
}

func (d *recordingDestination) URI() string { return "memory" }

func (d *recordingDestination) OnData(_ context.Context, chunk []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "data")
	if d.failOn > 0 && countOf(d.events, "data") == d.failOn {
		return fmt.Errorf("destination full")
	}
	d.buf.Write(chunk)
	return nil
}

func (d *recordingDestination) OnEnd(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "end")
	return nil
}

func (d *recordingDestination) OnAbort(_ context.Context, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "abort")
	d.aborted = cause
}

func (d *recordingDestination) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *recordingDestination) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf.Bytes()...)
}

func countOf(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

func ndjson(t *testing.T, n int) string {
	return string(testutil.EncodeNDJSON(t, testutil.SampleRows(n)))
}

func run(t *testing.T, mode writer.Mode, in string, dest destinations.Destination) (*Result, error) {
	t.Helper()
	p := New(props, input.NewNDJSONReader(strings.NewReader(in)), dest, &Config{
		BatchSize: 10,
		Mode:      mode,
	}, testutil.TestLogger(t))
	return p.Run(testutil.TestContext(t))
}

func TestRun(t *testing.T) {
	for _, mode := range []writer.Mode{writer.ModePull, writer.ModePush} {
		t.Run(string(mode), func(t *testing.T) {
			dest := &recordingDestination{}
			result, err := run(t, mode, ndjson(t, 25), dest)
			require.NoError(t, err)

			assert.Equal(t, mode, result.Mode)
			assert.Equal(t, int64(25), result.Rows)
			assert.Equal(t, 3, result.RowGroups)
			assert.Equal(t, int64(len(dest.Bytes())), result.Bytes)
			assert.NotEmpty(t, result.ExportID)

			events := dest.Events()
			assert.Equal(t, "end", events[len(events)-1])
			assert.Equal(t, 1, countOf(events, "end"))
			assert.Zero(t, countOf(events, "abort"))

			pf := testutil.ReadParquet(t, dest.Bytes())
			assert.Equal(t, 3, pf.NumRowGroups())
			rows := pf.Rows(t)
			require.Len(t, rows, 25)
			assert.Equal(t, map[string]any{"id": int64(0), "name": nil, "day": int32(19724)}, rows[0])
			assert.Equal(t, map[string]any{"id": int64(1), "name": "row-1", "day": nil}, rows[1])
			assert.Equal(t, int64(24), rows[24]["id"])
		})
	}
}

func TestRunEmptyInput(t *testing.T) {
	dest := &recordingDestination{}
	result, err := run(t, writer.ModePull, "", dest)
	require.NoError(t, err)
	assert.Zero(t, result.Rows)

	pf := testutil.ReadParquet(t, dest.Bytes())
	assert.Equal(t, 0, pf.NumRowGroups())
}

func TestRunRejectedBatch(t *testing.T) {
	in := ndjson(t, 15) + `{"id": "sixteen"}` + "\n"
	for _, mode := range []writer.Mode{writer.ModePull, writer.ModePush} {
		t.Run(string(mode), func(t *testing.T) {
			dest := &recordingDestination{}
			_, err := run(t, mode, in, dest)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeRowType), "got %v", err)

			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			batch, _ := e.Detail("batch")
			assert.Equal(t, 1, batch)

			events := dest.Events()
			assert.Equal(t, []string{"data", "abort"}, events)
			assert.Equal(t, err, dest.aborted)
		})
	}
}

func TestRunReadError(t *testing.T) {
	in := ndjson(t, 5) + "{not json\n"
	for _, mode := range []writer.Mode{writer.ModePull, writer.ModePush} {
		t.Run(string(mode), func(t *testing.T) {
			dest := &recordingDestination{}
			_, err := run(t, mode, in, dest)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeIO), "got %v", err)

			events := dest.Events()
			assert.Equal(t, "abort", events[len(events)-1])
			assert.Zero(t, countOf(events, "end"))
		})
	}
}

func TestRunDestinationFailure(t *testing.T) {
	for _, mode := range []writer.Mode{writer.ModePull, writer.ModePush} {
		t.Run(string(mode), func(t *testing.T) {
			dest := &recordingDestination{failOn: 2}
			_, err := run(t, mode, ndjson(t, 50), dest)
			require.Error(t, err)
			assert.ErrorContains(t, err, "destination full")

			events := dest.Events()
			assert.Equal(t, "abort", events[len(events)-1])
			assert.Equal(t, 1, countOf(events, "abort"))
			assert.Zero(t, countOf(events, "end"))
		})
	}
}

func TestRunSchemaError(t *testing.T) {
	for _, mode := range []writer.Mode{writer.ModePull, writer.ModePush} {
		t.Run(string(mode), func(t *testing.T) {
			dest := &recordingDestination{}
			p := New([]schema.SchemaProperty{{Key: "x", Type: "object"}},
				input.NewNDJSONReader(strings.NewReader(ndjson(t, 3))), dest, &Config{Mode: mode}, nil)
			_, err := p.Run(context.Background())
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
			assert.Equal(t, []string{"abort"}, dest.Events())
		})
	}
}

func TestRunToFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.parquet")
	dest, err := destinations.NewFile(target, nil)
	require.NoError(t, err)

	result, err := run(t, writer.ModePush, ndjson(t, 12), dest)
	require.NoError(t, err)
	assert.Equal(t, int64(12), result.Rows)

	pf := testutil.ReadParquet(t, testutil.ReadFile(t, target))
	assert.Equal(t, int64(12), pf.NumRows())
}

func TestResultRowsPerSecond(t *testing.T) {
	r := &Result{Rows: 100, Duration: 2 * time.Second}
	assert.Equal(t, 50.0, r.RowsPerSecond())
	assert.Zero(t, (&Result{Rows: 1}).RowsPerSecond())
}

func TestDefaults(t *testing.T) {
	p := New(props, input.NewNDJSONReader(strings.NewReader("")), &recordingDestination{}, &Config{}, nil)
	assert.Equal(t, 10000, p.cfg.BatchSize)
	assert.Equal(t, writer.ModePull, p.cfg.Mode)
	assert.Equal(t, 10*time.Second, p.cfg.ReportInterval)
}
