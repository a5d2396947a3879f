package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. PQX_WRITER_COMPRESSION.
const EnvPrefix = "PQX"

// Loader reads an ExportConfig from a YAML file and the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment overrides.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads the configuration at path, or only defaults and environment
// when path is empty, then validates it.
func Load(path string) (*ExportConfig, error) {
	return NewLoader().Load(path)
}

// Load loads configuration from file and environment variables.
func (l *Loader) Load(path string) (*ExportConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(err, errors.ErrorTypeIO, "config file not found").
					WithDetail("path", path)
			}
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	// Expand ${VAR} references in string values.
	for _, key := range l.v.AllKeys() {
		value, ok := l.v.Get(key).(string)
		if ok && strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var cfg ExportConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Set overrides a single key, as a command-line flag would.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// setDefaults registers every key so environment overrides apply to it.
func (l *Loader) setDefaults() {
	d := NewExportConfig()

	// Writer defaults
	l.v.SetDefault("writer.compression", d.Writer.Compression)
	l.v.SetDefault("writer.writer_version", d.Writer.Version)
	l.v.SetDefault("writer.data_page_size", d.Writer.DataPageSize)
	l.v.SetDefault("writer.dictionary", d.Writer.Dictionary)
	l.v.SetDefault("writer.statistics", d.Writer.Statistics)
	l.v.SetDefault("writer.created_by", d.Writer.CreatedBy)

	// Delivery defaults
	l.v.SetDefault("delivery.mode", d.Delivery.Mode)
	l.v.SetDefault("delivery.queue_capacity", d.Delivery.QueueCapacity)
	l.v.SetDefault("delivery.enqueue_timeout", d.Delivery.EnqueueTimeout)

	// Input and output defaults
	l.v.SetDefault("input.format", d.Input.Format)
	l.v.SetDefault("input.path", d.Input.Path)
	l.v.SetDefault("input.schema_path", d.Input.SchemaPath)
	l.v.SetDefault("input.batch_size", d.Input.BatchSize)
	l.v.SetDefault("output.uri", d.Output.URI)

	// Observability defaults
	l.v.SetDefault("logging.level", d.Logging.Level)
	l.v.SetDefault("logging.encoding", d.Logging.Encoding)
	l.v.SetDefault("logging.development", d.Logging.Development)
	l.v.SetDefault("logging.output_paths", d.Logging.OutputPaths)
	l.v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	l.v.SetDefault("metrics.address", d.Metrics.Address)
	l.v.SetDefault("metrics.path", d.Metrics.Path)
	l.v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	l.v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	l.v.SetDefault("tracing.environment", d.Tracing.Environment)
	l.v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	l.v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	// Destination defaults
	l.v.SetDefault("s3.region", d.S3.Region)
	l.v.SetDefault("s3.endpoint", d.S3.Endpoint)
	l.v.SetDefault("s3.use_path_style", d.S3.UsePathStyle)
	l.v.SetDefault("s3.part_size", d.S3.PartSize)
	l.v.SetDefault("s3.concurrency", d.S3.Concurrency)
	l.v.SetDefault("s3.content_type", d.S3.ContentType)
	l.v.SetDefault("gcs.credentials_file", d.GCS.CredentialsFile)
	l.v.SetDefault("gcs.endpoint", d.GCS.Endpoint)
	l.v.SetDefault("gcs.chunk_size", d.GCS.ChunkSize)
	l.v.SetDefault("gcs.content_type", d.GCS.ContentType)
	l.v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	l.v.SetDefault("kafka.client_id", d.Kafka.ClientID)
	l.v.SetDefault("kafka.version", d.Kafka.Version)
	l.v.SetDefault("kafka.max_message_bytes", d.Kafka.MaxMessageBytes)
	l.v.SetDefault("kafka.timeout", d.Kafka.Timeout)
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *ExportConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}
