// Package testutil provides testing utilities for parquetexport
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a debug-level logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
}

// TestContext returns a context that is cancelled after 10 seconds or when
// the test completes, whichever comes first.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// SampleRows returns n rows for the id/name/day schema used across the
// export tests. Every third row has no name and a date; the others have a
// name and a null date.
func SampleRows(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		if i%3 == 0 {
			rows[i] = map[string]any{"id": i, "day": "2024-01-02"}
			continue
		}
		rows[i] = map[string]any{"id": i, "name": fmt.Sprintf("row-%d", i), "day": nil}
	}
	return rows
}

// EncodeNDJSON renders rows as newline-delimited JSON.
func EncodeNDJSON(t *testing.T, rows []map[string]any) []byte {
	t.Helper()

	var buf []byte
	for _, row := range rows {
		line, err := gojson.Marshal(row)
		require.NoError(t, err)
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf
}
