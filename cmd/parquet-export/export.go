package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/internal/pipeline"
	"github.com/data-fair/parquetexport/pkg/config"
	"github.com/data-fair/parquetexport/pkg/destinations"
	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/input"
	"github.com/data-fair/parquetexport/pkg/logger"
	"github.com/data-fair/parquetexport/pkg/observability"
	"github.com/data-fair/parquetexport/pkg/schema"
	"github.com/data-fair/parquetexport/pkg/writer"
)

const shutdownTimeout = 5 * time.Second

// exportFlags holds the export command line. Only flags set explicitly
// override the configuration file.
type exportFlags struct {
	configFile  string
	schemaFile  string
	inputPath   string
	format      string
	output      string
	mode        string
	batchSize   int
	compression string
	metadata    map[string]string
	logLevel    string
	metrics     bool
	timeout     time.Duration
}

func (f *exportFlags) load(cmd *cobra.Command) (*config.ExportConfig, error) {
	loader := config.NewLoader()
	overrides := []struct {
		flag  string
		key   string
		value any
	}{
		{"schema", "input.schema_path", f.schemaFile},
		{"input", "input.path", f.inputPath},
		{"format", "input.format", f.format},
		{"batch-size", "input.batch_size", f.batchSize},
		{"output", "output.uri", f.output},
		{"mode", "delivery.mode", f.mode},
		{"compression", "writer.compression", f.compression},
		{"metadata", "writer.metadata", f.metadata},
		{"log-level", "logging.level", f.logLevel},
		{"enable-metrics", "metrics.enabled", f.metrics},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			loader.Set(o.key, o.value)
		}
	}
	return loader.Load(f.configFile)
}

// runExport runs one export described by cfg and prints its summary to out.
func runExport(ctx context.Context, cfg *config.ExportConfig, timeout time.Duration, out io.Writer) error {
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := observability.Init(cfg.ObservabilityConfig(version)); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = observability.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	exportID := uuid.NewString()
	log := logger.ForExport("parquet-export", exportID,
		zap.String("input_format", cfg.Input.Format),
		zap.String("output", cfg.Output.URI),
	)
	ctx = logger.NewContext(ctx, log)

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	in, err := input.Open(cfg.Input.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := input.New(cfg.Input.Format, in)
	if err != nil {
		return err
	}
	props, err := exportProperties(cfg, reader)
	if err != nil {
		return err
	}

	dest, err := destinations.Open(ctx, cfg, exportID, log)
	if err != nil {
		return err
	}

	mode := writer.ModePull
	if cfg.IsPush() {
		mode = writer.ModePush
	}

	log.Info("starting export",
		zap.String("mode", string(mode)),
		zap.Int("batch_size", cfg.Input.BatchSize),
		zap.Int("columns", len(props)))

	p := pipeline.New(props, reader, dest, &pipeline.Config{
		BatchSize: cfg.Input.BatchSize,
		Mode:      mode,
		Source:    cfg.Input.Format,
		WriterOptions: []writer.Option{
			writer.WithExportID(exportID),
			writer.WithProperties(cfg.WriterOptions()),
			writer.WithQueue(cfg.Delivery.QueueCapacity, cfg.Delivery.EnqueueTimeout),
		},
	}, nil)

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	summary, err := gojson.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to encode export summary")
	}
	_, err = fmt.Fprintln(out, string(summary))
	return err
}

// exportProperties loads the schema description, falling back to the
// writer schema of an Avro input.
func exportProperties(cfg *config.ExportConfig, reader input.Reader) ([]schema.SchemaProperty, error) {
	if cfg.Input.SchemaPath != "" {
		return schema.LoadProperties(cfg.Input.SchemaPath)
	}
	if avro, ok := reader.(*input.AvroReader); ok {
		return avro.Properties()
	}
	return nil, errors.New(errors.ErrorTypeConfig, "input.schema_path is required unless the input is avro").
		WithDetail("key", "input.schema_path")
}

func serveMetrics(cfg config.MetricsConfig, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("serving metrics", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func planProperties(schemaFile, avroFile string) ([]schema.SchemaProperty, error) {
	switch {
	case schemaFile != "":
		return schema.LoadProperties(schemaFile)
	case avroFile != "":
		f, err := input.Open(avroFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		reader, err := input.NewAvroReader(f)
		if err != nil {
			return nil, err
		}
		return reader.Properties()
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "one of --schema or --avro is required")
	}
}

// planColumn is the printed form of a schema.ColumnPlan.
type planColumn struct {
	Index      int    `json:"index"`
	Key        string `json:"key"`
	Kind       string `json:"kind"`
	Physical   string `json:"physical"`
	Logical    string `json:"logical"`
	Repetition string `json:"repetition"`
}

func printPlan(out io.Writer, props []schema.SchemaProperty, asJSON bool) error {
	plan, err := schema.Translate(props)
	if err != nil {
		return err
	}

	columns := make([]planColumn, len(plan))
	for i, c := range plan {
		columns[i] = planColumn{
			Index:      c.Index,
			Key:        c.Key,
			Kind:       c.Kind.String(),
			Physical:   c.Physical().String(),
			Logical:    c.Logical().String(),
			Repetition: c.Repetition().String(),
		}
	}

	if asJSON {
		data, err := gojson.MarshalIndent(columns, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to encode plan")
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tKEY\tKIND\tPHYSICAL\tLOGICAL\tREPETITION")
	for _, c := range columns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.Index, c.Key, c.Kind, c.Physical, c.Logical, c.Repetition)
	}
	return tw.Flush()
}
