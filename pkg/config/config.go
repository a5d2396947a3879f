package config

import (
	"strings"
	"time"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/formats/columnar"
	"github.com/data-fair/parquetexport/pkg/logger"
	"github.com/data-fair/parquetexport/pkg/observability"
	"github.com/data-fair/parquetexport/pkg/sink"
)

// Delivery modes.
const (
	ModePull = "pull"
	ModePush = "push"
)

// Input formats.
const (
	InputNDJSON = "ndjson"
	InputJSON   = "json"
	InputAvro   = "avro"
)

// ExportConfig is the complete configuration of one export.
type ExportConfig struct {
	Writer   WriterConfig   `yaml:"writer" json:"writer" mapstructure:"writer"`
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery" mapstructure:"delivery"`
	Input    InputConfig    `yaml:"input" json:"input" mapstructure:"input"`
	Output   OutputConfig   `yaml:"output" json:"output" mapstructure:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	S3       S3Config       `yaml:"s3" json:"s3" mapstructure:"s3"`
	GCS      GCSConfig      `yaml:"gcs" json:"gcs" mapstructure:"gcs"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka" mapstructure:"kafka"`
}

// WriterConfig contains the Parquet writer properties.
type WriterConfig struct {
	// Compression codec (uncompressed, snappy, gzip, brotli, zstd, lz4)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// Version of the format (1.0, 2.4, 2.6, 2.latest)
	Version      string `yaml:"writer_version" json:"writer_version" mapstructure:"writer_version"`
	DataPageSize int64  `yaml:"data_page_size" json:"data_page_size" mapstructure:"data_page_size"`
	Dictionary   bool   `yaml:"dictionary" json:"dictionary" mapstructure:"dictionary"`
	Statistics   bool   `yaml:"statistics" json:"statistics" mapstructure:"statistics"`
	CreatedBy    string `yaml:"created_by" json:"created_by" mapstructure:"created_by"`
	// Metadata is written to the footer as key-value pairs
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty" mapstructure:"metadata"`
}

// DeliveryConfig selects how encoded bytes leave the writer.
type DeliveryConfig struct {
	// Mode is pull (bytes returned to the driver) or push (bytes handed to a consumer)
	Mode           string        `yaml:"mode" json:"mode" mapstructure:"mode"`
	QueueCapacity  int           `yaml:"queue_capacity" json:"queue_capacity" mapstructure:"queue_capacity"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" json:"enqueue_timeout" mapstructure:"enqueue_timeout"`
}

// InputConfig describes the row source.
type InputConfig struct {
	// Format is ndjson, json (a single array) or avro (object container file)
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Path of the row file, "-" or empty for stdin
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// SchemaPath is a JSON array of schema properties
	SchemaPath string `yaml:"schema_path" json:"schema_path" mapstructure:"schema_path"`
	// BatchSize is the number of rows per row group
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
}

// OutputConfig describes the destination.
type OutputConfig struct {
	// URI is a local path, "-" for stdout, or s3://, gs://, kafka:// URI
	URI string `yaml:"uri" json:"uri" mapstructure:"uri"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string   `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool     `yaml:"development" json:"development" mapstructure:"development"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	Environment string  `yaml:"environment" json:"environment" mapstructure:"environment"`
	Exporter    string  `yaml:"exporter" json:"exporter" mapstructure:"exporter"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// NewExportConfig returns a configuration with the same defaults Load applies.
func NewExportConfig() *ExportConfig {
	w := columnar.DefaultWriterOptions()
	return &ExportConfig{
		Writer: WriterConfig{
			Compression:  w.Compression,
			Version:      w.Version,
			DataPageSize: w.DataPageSize,
			Dictionary:   w.Dictionary,
			Statistics:   w.Statistics,
			CreatedBy:    w.CreatedBy,
		},
		Delivery: DeliveryConfig{
			Mode:           ModePull,
			QueueCapacity:  sink.DefaultQueueCapacity,
			EnqueueTimeout: sink.DefaultEnqueueTimeout,
		},
		Input: InputConfig{
			Format:    InputNDJSON,
			Path:      "-",
			BatchSize: 10000,
		},
		Output: OutputConfig{
			URI: "-",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stderr"},
		},
		Metrics: MetricsConfig{
			Address: ":9090",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "parquetexport",
			Environment: "development",
			Exporter:    "stdout",
			SampleRate:  0.1,
		},
		S3: S3Config{
			PartSize:    8 * 1024 * 1024, // 8MB
			Concurrency: 1,
			ContentType: columnar.GetFormatInfo(columnar.Parquet).MIMEType,
		},
		GCS: GCSConfig{
			ChunkSize:   16 * 1024 * 1024, // 16MB
			ContentType: columnar.GetFormatInfo(columnar.Parquet).MIMEType,
		},
		Kafka: KafkaConfig{
			ClientID:        "parquetexport",
			Version:         "2.8.0",
			MaxMessageBytes: 1000000,
			Timeout:         10 * time.Second,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *ExportConfig) Validate() error {
	if err := c.WriterOptions().Validate(); err != nil {
		return err
	}

	switch c.Delivery.Mode {
	case ModePull, ModePush:
	default:
		return invalid("delivery.mode", "must be pull or push")
	}
	if c.Delivery.QueueCapacity <= 0 {
		return invalid("delivery.queue_capacity", "must be positive")
	}
	if c.Delivery.EnqueueTimeout <= 0 {
		return invalid("delivery.enqueue_timeout", "must be positive")
	}

	switch c.Input.Format {
	case InputNDJSON, InputJSON, InputAvro:
	default:
		return invalid("input.format", "must be ndjson, json or avro")
	}
	if c.Input.SchemaPath == "" && c.Input.Format != InputAvro {
		return invalid("input.schema_path", "is required unless the input is avro")
	}
	if c.Input.BatchSize <= 0 {
		return invalid("input.batch_size", "must be positive")
	}

	if c.Output.URI == "" {
		return invalid("output.uri", "is required")
	}
	// kafka:///topic takes its brokers from the kafka section.
	if strings.HasPrefix(c.Output.URI, "kafka:///") && len(c.Kafka.Brokers) == 0 {
		return invalid("kafka.brokers", "is required when the output URI has no host")
	}
	if c.S3.PartSize < 5*1024*1024 {
		return invalid("s3.part_size", "must be at least 5MB")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return invalid("tracing.sample_rate", "must be between 0 and 1")
	}
	switch c.Tracing.Exporter {
	case observability.ExporterStdout, observability.ExporterNone:
	default:
		return invalid("tracing.exporter", "must be stdout or none")
	}
	return nil
}

// WriterOptions converts the writer section.
func (c *ExportConfig) WriterOptions() *columnar.WriterOptions {
	return &columnar.WriterOptions{
		Compression:  c.Writer.Compression,
		Version:      c.Writer.Version,
		DataPageSize: c.Writer.DataPageSize,
		Dictionary:   c.Writer.Dictionary,
		Statistics:   c.Writer.Statistics,
		CreatedBy:    c.Writer.CreatedBy,
		Metadata:     c.Writer.Metadata,
	}
}

// LoggerConfig converts the logging section.
func (c *ExportConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// ObservabilityConfig converts the tracing section.
func (c *ExportConfig) ObservabilityConfig(version string) observability.TracingConfig {
	cfg := observability.DefaultConfig()
	cfg.Enabled = c.Tracing.Enabled
	cfg.ServiceName = c.Tracing.ServiceName
	cfg.ServiceVersion = version
	cfg.Environment = c.Tracing.Environment
	cfg.ExporterType = c.Tracing.Exporter
	cfg.SamplingRate = c.Tracing.SampleRate
	return cfg
}

// IsPush reports whether the export runs in push mode.
func (c *ExportConfig) IsPush() bool {
	return c.Delivery.Mode == ModePush
}

func invalid(key, msg string) error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", key, msg).WithDetail("key", key)
}
