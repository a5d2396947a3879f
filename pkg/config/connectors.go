package config

import (
	"strings"
	"time"
)

// Destination URI schemes.
const (
	SchemeFile  = "file"
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeKafka = "kafka"
)

// S3Config configures the s3:// destination.
type S3Config struct {
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the service endpoint (MinIO, LocalStack)
	Endpoint     string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style" mapstructure:"use_path_style"`
	// PartSize of multipart uploads in bytes
	PartSize    int64  `yaml:"part_size" json:"part_size" mapstructure:"part_size"`
	Concurrency int    `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	ContentType string `yaml:"content_type" json:"content_type" mapstructure:"content_type"`
}

// GCSConfig configures the gs:// destination.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	Endpoint        string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	// ChunkSize of resumable uploads in bytes
	ChunkSize   int    `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	ContentType string `yaml:"content_type" json:"content_type" mapstructure:"content_type"`
}

// KafkaConfig configures the kafka:// destination.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	ClientID string   `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	// Version of the Kafka protocol, e.g. 2.8.0
	Version         string        `yaml:"version" json:"version" mapstructure:"version"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes" mapstructure:"max_message_bytes"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// Scheme returns the destination scheme of the output URI. Paths without a
// scheme, and "-", are local files.
func (o OutputConfig) Scheme() string {
	for _, scheme := range []string{SchemeS3, SchemeGCS, SchemeKafka, SchemeFile} {
		if strings.HasPrefix(o.URI, scheme+"://") {
			return scheme
		}
	}
	return SchemeFile
}

// IsStdout reports whether the output goes to standard output.
func (o OutputConfig) IsStdout() bool {
	return o.URI == "-"
}
