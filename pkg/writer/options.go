package writer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/formats/columnar"
	"github.com/data-fair/parquetexport/pkg/sink"
)

// Config holds everything a Writer needs besides the schema.
type Config struct {
	// ExportID identifies the export in logs and spans. A random UUID is
	// used when empty.
	ExportID string
	Logger   *zap.Logger
	// Properties configures the encoding engine.
	Properties *columnar.WriterOptions
	// Engine opens the encoding engine. Defaults to the arrow-go engine.
	Engine columnar.EngineFactory
	// QueueCapacity and EnqueueTimeout bound push-mode delivery.
	QueueCapacity  int
	EnqueueTimeout time.Duration
	// DeliveryContext is passed to every push consumer call.
	DeliveryContext context.Context
}

// Option configures a Writer
type Option func(*Config)

// WithExportID sets the export ID.
func WithExportID(id string) Option {
	return func(c *Config) { c.ExportID = id }
}

// WithLogger sets the logger. Writers log nothing by default.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithProperties sets the engine's writer properties.
func WithProperties(p *columnar.WriterOptions) Option {
	return func(c *Config) { c.Properties = p }
}

// WithEngine replaces the encoding engine.
func WithEngine(f columnar.EngineFactory) Option {
	return func(c *Config) { c.Engine = f }
}

// WithQueue bounds push-mode delivery.
func WithQueue(capacity int, enqueueTimeout time.Duration) Option {
	return func(c *Config) {
		c.QueueCapacity = capacity
		c.EnqueueTimeout = enqueueTimeout
	}
}

// WithDeliveryContext sets the context handed to the push consumer.
func WithDeliveryContext(ctx context.Context) Option {
	return func(c *Config) { c.DeliveryContext = ctx }
}

func newConfig(opts []Option) *Config {
	cfg := &Config{
		QueueCapacity:   sink.DefaultQueueCapacity,
		EnqueueTimeout:  sink.DefaultEnqueueTimeout,
		DeliveryContext: context.Background(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Properties == nil {
		cfg.Properties = columnar.DefaultWriterOptions()
	}
	if cfg.Engine == nil {
		cfg.Engine = columnar.NewParquetEngine
	}
	if cfg.DeliveryContext == nil {
		cfg.DeliveryContext = context.Background()
	}
	return cfg
}
