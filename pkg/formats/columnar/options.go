package columnar

import (
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// DefaultCreatedBy is written to the footer when no created-by string is set.
const DefaultCreatedBy = "parquetexport"

// WriterOptions configures the encoding engine.
type WriterOptions struct {
	// Compression is one of uncompressed, snappy, gzip, brotli, zstd or lz4.
	Compression string
	// Version is the format version: 1.0, 2.4, 2.6 or 2.latest.
	Version      string
	DataPageSize int64
	Dictionary   bool
	Statistics   bool
	CreatedBy    string
	// Metadata is written as footer key-value metadata, sorted by key.
	Metadata map[string]string
}

// DefaultWriterOptions returns snappy compression and the latest 2.x format.
func DefaultWriterOptions() *WriterOptions {
	return &WriterOptions{
		Compression:  "snappy",
		Version:      "2.latest",
		DataPageSize: 1024 * 1024, // 1MB
		Dictionary:   true,
		Statistics:   true,
		CreatedBy:    DefaultCreatedBy,
	}
}

// Validate checks that compression and version are recognized.
func (o *WriterOptions) Validate() error {
	if _, err := ParseCompression(o.Compression); err != nil {
		return err
	}
	if _, err := ParseVersion(o.Version); err != nil {
		return err
	}
	if o.DataPageSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "data page size must not be negative")
	}
	return nil
}

// ParseCompression maps a codec name to the engine's codec. The empty string
// selects snappy.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4", "lz4_raw":
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", name).
			WithDetail("compression", name)
	}
}

// ParseVersion maps a format version string to the engine's version. The
// empty string selects the latest 2.x version.
func ParseVersion(v string) (parquet.Version, error) {
	switch strings.ToLower(v) {
	case "", "2", "2.latest", "latest":
		return parquet.V2_LATEST, nil
	case "1", "1.0":
		return parquet.V1_0, nil
	case "2.4":
		return parquet.V2_4, nil
	case "2.6":
		return parquet.V2_6, nil
	default:
		return parquet.V2_LATEST, errors.Newf(errors.ErrorTypeConfig, "unsupported format version %q", v).
			WithDetail("version", v)
	}
}

// Properties builds the engine's writer properties.
func (o *WriterOptions) Properties() (*parquet.WriterProperties, error) {
	codec, err := ParseCompression(o.Compression)
	if err != nil {
		return nil, err
	}
	version, err := ParseVersion(o.Version)
	if err != nil {
		return nil, err
	}

	createdBy := o.CreatedBy
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}

	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithVersion(version),
		parquet.WithCreatedBy(createdBy),
		parquet.WithDictionaryDefault(o.Dictionary),
		parquet.WithStats(o.Statistics),
	}
	if o.DataPageSize > 0 {
		opts = append(opts, parquet.WithDataPageSize(o.DataPageSize))
	}
	return parquet.NewWriterProperties(opts...), nil
}

func (o *WriterOptions) sortedMetadataKeys() []string {
	keys := make([]string, 0, len(o.Metadata))
	for k := range o.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
