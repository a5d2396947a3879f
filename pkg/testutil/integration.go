package testutil

import (
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// CreateTempFile writes content to name inside dir and returns the path.
func CreateTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

// CreateNDJSONFile writes one JSON object per line.
func CreateNDJSONFile(t *testing.T, dir, name string, rows []map[string]any) string {
	t.Helper()
	return CreateTempFile(t, dir, name, EncodeNDJSON(t, rows))
}

// CreateSchemaFile writes a schema description as a JSON array.
func CreateSchemaFile(t *testing.T, dir string, props []map[string]any) string {
	t.Helper()

	data, err := gojson.Marshal(props)
	require.NoError(t, err)
	return CreateTempFile(t, dir, "schema.json", data)
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // G304: test-controlled path
	require.NoError(t, err)
	return data
}
