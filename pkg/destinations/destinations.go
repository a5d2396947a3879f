// Package destinations delivers an encoded Parquet stream to where it
// belongs: a local file, standard output, an S3 or GCS object, or a Kafka
// topic.
//
// Every destination is a sink.Consumer and a sink.Aborter, so it can be
// handed to a push-mode writer as is. Pull-mode drivers call the same
// methods synchronously with the chunks they receive.
//
// Output URIs:
//
//	out.parquet, file:///tmp/out.parquet  local file, renamed into place at end
//	-                                     standard output
//	s3://bucket/key.parquet               multipart upload
//	gs://bucket/object.parquet            resumable upload
//	kafka://host:9092,host2:9092/topic    one message per chunk, then an end marker
package destinations

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"cloud.google.com/go/storage"

	"github.com/data-fair/parquetexport/pkg/config"
	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/sink"
)

// Destination receives the chunks of one encoded file.
type Destination interface {
	sink.Consumer
	sink.Aborter
	// URI identifies the destination in logs.
	URI() string
}

// Location is a parsed output URI.
type Location struct {
	Scheme string
	// Host is the bucket for object stores and the broker list for Kafka.
	Host string
	// Path is the object key, the Kafka topic or the local file path.
	Path string
}

// ParseLocation splits an output URI into its parts.
func ParseLocation(uri string) (Location, error) {
	scheme := config.OutputConfig{URI: uri}.Scheme()
	rest, hasScheme := strings.CutPrefix(uri, scheme+"://")
	if scheme == config.SchemeFile {
		if !hasScheme {
			rest = uri
		}
		if rest == "" {
			return Location{}, invalidURI(uri, "missing file path")
		}
		return Location{Scheme: scheme, Path: rest}, nil
	}

	host, path, _ := strings.Cut(rest, "/")
	loc := Location{Scheme: scheme, Host: host, Path: path}
	switch {
	case scheme != config.SchemeKafka && host == "":
		return Location{}, invalidURI(uri, "missing bucket")
	case path == "":
		return Location{}, invalidURI(uri, "missing object key or topic")
	}
	return loc, nil
}

// Brokers returns the comma-separated hosts of a Kafka location.
func (l Location) Brokers() []string {
	if l.Host == "" {
		return nil
	}
	return strings.Split(l.Host, ",")
}

// Open creates the destination named by cfg.Output.URI. exportID keys
// Kafka messages and names temporary files.
func Open(ctx context.Context, cfg *config.ExportConfig, exportID string, logger *zap.Logger) (Destination, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	uri := cfg.Output.URI
	if cfg.Output.IsStdout() {
		return NewStdout(), nil
	}

	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("destination", uri))

	switch loc.Scheme {
	case config.SchemeFile:
		return NewFile(loc.Path, logger)
	case config.SchemeS3:
		return openS3(ctx, cfg.S3, loc, logger)
	case config.SchemeGCS:
		return openGCS(ctx, cfg.GCS, loc, logger)
	case config.SchemeKafka:
		return openKafka(cfg.Kafka, loc, exportID, logger)
	default:
		return nil, invalidURI(uri, "unsupported scheme")
	}
}

func openS3(ctx context.Context, cfg config.S3Config, loc Location, logger *zap.Logger) (Destination, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
	})
	return NewS3(ctx, uploader, loc.Host, loc.Path, cfg.ContentType, logger), nil
}

func openGCS(ctx context.Context, cfg config.GCSConfig, loc Location, logger *zap.Logger) (Destination, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}

	// Cancelling uploadCtx discards the upload.
	uploadCtx, cancel := context.WithCancel(context.Background())
	w := client.Bucket(loc.Host).Object(loc.Path).NewWriter(uploadCtx)
	w.ChunkSize = cfg.ChunkSize
	w.ContentType = cfg.ContentType

	return NewGCS(loc.Host, loc.Path, w, cancel, client.Close, logger), nil
}

func invalidURI(uri, msg string) error {
	return errors.Newf(errors.ErrorTypeConfig, "invalid output URI %q: %s", uri, msg).
		WithDetail("uri", uri)
}
