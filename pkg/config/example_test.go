package config_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/data-fair/parquetexport/pkg/config"
)

// ExampleNewExportConfig demonstrates the defaults of a new configuration.
func ExampleNewExportConfig() {
	cfg := config.NewExportConfig()

	fmt.Printf("Compression: %s\n", cfg.Writer.Compression)
	fmt.Printf("Mode: %s\n", cfg.Delivery.Mode)
	fmt.Printf("Batch Size: %d\n", cfg.Input.BatchSize)
	fmt.Printf("Enqueue Timeout: %s\n", cfg.Delivery.EnqueueTimeout)

	// Output:
	// Compression: snappy
	// Mode: pull
	// Batch Size: 10000
	// Enqueue Timeout: 30s
}

// ExampleExportConfig_Validate shows how to validate a configuration
// before using it.
func ExampleExportConfig_Validate() {
	cfg := config.NewExportConfig()
	cfg.Input.SchemaPath = "schema.json"
	cfg.Writer.Compression = "zstd"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.Writer.Compression = "lzo"
	fmt.Println(cfg.Validate() != nil)

	// Output:
	// Configuration is valid!
	// true
}

// ExampleLoad demonstrates loading configuration from a YAML file
// with environment variable substitution.
func ExampleLoad() {
	dir, err := os.MkdirTemp("", "pqx-config")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	os.Setenv("EXAMPLE_BUCKET", "reports")
	defer os.Unsetenv("EXAMPLE_BUCKET")

	path := filepath.Join(dir, "export.yaml")
	yaml := `
input:
  schema_path: schema.json
output:
  uri: s3://${EXAMPLE_BUCKET}/daily.parquet
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg.Output.URI)
	fmt.Println(cfg.Output.Scheme())

	// Output:
	// s3://reports/daily.parquet
	// s3
}
