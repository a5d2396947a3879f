// Package config holds the configuration of a parquet export run.
// A single ExportConfig describes the writer, how rows are read, where the
// encoded file goes and how the run is observed.
//
// The configuration is organized into logical sections:
//   - Writer: Parquet writer properties
//   - Delivery: pull or push mode and the push queue
//   - Input and Output: the row source and the destination URI
//   - Logging, Metrics, Tracing: observability
//   - S3, GCS, Kafka: destination clients
//
// Example usage:
//
//	cfg := config.NewExportConfig()
//	cfg.Writer.Compression = "zstd"
//	cfg.Output.URI = "s3://bucket/export.parquet"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Loading
//
// Load reads a YAML file with spf13/viper, applies the defaults of
// NewExportConfig, lets PQX_ environment variables override any key and
// expands ${VAR} references inside string values:
//
//	cfg, err := config.Load("export.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
//	# export.yaml
//	output:
//	  uri: s3://${EXPORT_BUCKET}/daily.parquet
//	s3:
//	  region: ${AWS_REGION}
//
// Every key can also be overridden directly, with dots replaced by
// underscores:
//
//	PQX_WRITER_COMPRESSION=zstd PQX_DELIVERY_MODE=push parquet-export export ...
//
// # Configuration Structure
//
//	writer:
//	  compression: snappy      # uncompressed, snappy, gzip, brotli, zstd, lz4
//	  writer_version: 2.latest # 1.0, 2.4, 2.6, 2.latest
//	  data_page_size: 1048576
//	  dictionary: true
//	  statistics: true
//	  metadata:
//	    source: crm
//	delivery:
//	  mode: push               # pull or push
//	  queue_capacity: 64
//	  enqueue_timeout: 30s
//	input:
//	  format: ndjson           # ndjson, json or avro
//	  path: rows.ndjson
//	  schema_path: schema.json
//	  batch_size: 10000
//	output:
//	  uri: kafka://broker:9092/exports
//
// Viper lower-cases map keys, so writer.metadata keys are always lower case.
//
// Save writes a configuration back as YAML with gopkg.in/yaml.v3.
package config
