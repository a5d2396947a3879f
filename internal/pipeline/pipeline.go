// Package pipeline drives one export from a row source to a destination.
//
// # Overview
//
// A Pipeline reads rows on a dedicated goroutine, groups them into batches of
// BatchSize rows, encodes every batch as one row group and delivers the
// encoded file to a destination:
//   - in pull mode the pipeline forwards the bytes returned by each writer
//     call to the destination itself
//   - in push mode the writer owns the destination and delivers chunks on
//     its own goroutine while the next batch is read and encoded
//
// Any failure abandons the export: the destination receives OnAbort exactly
// once and never a partial file.
//
// # Basic Usage
//
//	p := pipeline.New(props, reader, dest, &pipeline.Config{
//	    BatchSize: 10000,
//	    Mode:      writer.ModePush,
//	}, logger)
//
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/destinations"
	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/input"
	applog "github.com/data-fair/parquetexport/pkg/logger"
	"github.com/data-fair/parquetexport/pkg/metrics"
	"github.com/data-fair/parquetexport/pkg/observability"
	"github.com/data-fair/parquetexport/pkg/pool"
	"github.com/data-fair/parquetexport/pkg/rowbatch"
	"github.com/data-fair/parquetexport/pkg/schema"
	"github.com/data-fair/parquetexport/pkg/writer"
)

// Config contains the pipeline parameters.
type Config struct {
	BatchSize int         // Rows per row group
	Mode      writer.Mode // Pull or push delivery
	// Source labels throughput metrics, usually the input format
	Source string
	// ReportInterval between progress logs (default: 10s)
	ReportInterval time.Duration
	// WriterOptions are passed to the writer
	WriterOptions []writer.Option
}

// DefaultConfig returns pull mode with 10000-row batches.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      10000,
		Mode:           writer.ModePull,
		Source:         "ndjson",
		ReportInterval: 10 * time.Second,
	}
}

// Pipeline exports the rows of one reader to one destination.
type Pipeline struct {
	props  []schema.SchemaProperty
	source input.Reader
	dest   destinations.Destination
	cfg    *Config
	logger *zap.Logger
	rows   *pool.Pool[*[]rowbatch.Row]

	// ended is set once the destination has been told the stream ended.
	ended bool
}

// batch is a group of rows read from the source. rows is returned to the
// pipeline's pool once the writer has consumed it.
type batch struct {
	rows  *[]rowbatch.Row
	index int
}

// New creates a pipeline. It does not read anything until Run. A nil logger
// is taken from the context passed to Run.
func New(props []schema.SchemaProperty, source input.Reader, dest destinations.Destination, cfg *Config, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultConfig().ReportInterval
	}
	if cfg.Mode == "" {
		cfg.Mode = writer.ModePull
	}
	return &Pipeline{
		props:  props,
		source: source,
		dest:   dest,
		cfg:    cfg,
		logger: logger,
		rows:   pool.NewRowSlices(cfg.BatchSize),
	}
}

// Run executes the export and blocks until the destination has received
// the end of the stream or the export has been abandoned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.logger == nil {
		p.logger = applog.FromContext(ctx)
	}
	ctx, span := observability.StartSpan(ctx, "parquetexport.export")
	defer span.End()
	span.SetAttribute("mode", string(p.cfg.Mode))
	span.SetAttribute("destination", p.dest.URI())

	start := time.Now()
	w, err := p.openWriter(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	log := p.logger.With(zap.String("export_id", w.ID()), zap.String("mode", string(w.Mode())))
	log.Info("starting export",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("columns", len(w.Plan())),
		zap.String("destination", p.dest.URI()))

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	batches := make(chan batch, 2)
	readErr := make(chan error, 1)
	go p.readSource(readCtx, batches, readErr)

	tracker := metrics.NewThroughputTracker(p.cfg.Source, scheme(p.dest))
	lastReport := time.Now()

	for b := range batches {
		err := p.writeBatch(ctx, w, b)
		n := len(*b.rows)
		p.rows.Put(b.rows)
		if err != nil {
			return nil, p.abandon(ctx, w, log, span, err)
		}
		tracker.Increment(int64(n))
		if time.Since(lastReport) >= p.cfg.ReportInterval {
			stats := w.Stats()
			log.Info("export progress",
				zap.Int64("rows", stats.Rows),
				zap.Int("row_groups", stats.RowGroups),
				zap.Float64("rows_per_sec", tracker.GetAndReset()))
			lastReport = time.Now()
		}
	}

	select {
	case err := <-readErr:
		return nil, p.abandon(ctx, w, log, span, err)
	default:
	}

	if err := p.finish(ctx, w); err != nil {
		return nil, p.abandon(ctx, w, log, span, err)
	}

	stats := w.Stats()
	result := &Result{
		ExportID:  w.ID(),
		Mode:      w.Mode(),
		Rows:      stats.Rows,
		RowGroups: stats.RowGroups,
		Bytes:     stats.Bytes,
		Duration:  time.Since(start),
	}
	tracker.GetAndReset()
	span.SetAttribute("rows", result.Rows)
	span.SetAttribute("bytes", result.Bytes)
	log.Info("export complete",
		zap.Int64("rows", result.Rows),
		zap.Int("row_groups", result.RowGroups),
		zap.Int64("bytes", result.Bytes),
		zap.Duration("duration", result.Duration),
		zap.Float64("rows_per_sec", result.RowsPerSecond()))
	return result, nil
}

func (p *Pipeline) openWriter(ctx context.Context) (*writer.Writer, error) {
	opts := append([]writer.Option{writer.WithLogger(p.logger)}, p.cfg.WriterOptions...)
	if p.cfg.Mode == writer.ModePush {
		opts = append(opts, writer.WithDeliveryContext(ctx))
		return writer.NewStreaming(p.props, p.dest, opts...)
	}

	w, err := writer.New(p.props, opts...)
	if err != nil {
		// The destination was never handed to a writer.
		p.dest.OnAbort(ctx, err)
		return nil, err
	}
	return w, nil
}

// readSource streams batches until the source is exhausted. A read error
// is reported on errc before batches is closed.
func (p *Pipeline) readSource(ctx context.Context, batches chan<- batch, errc chan<- error) {
	defer close(batches)

	for index := 0; ; index++ {
		rows := p.rows.Get()
		var err error
		*rows, err = input.ReadBatchInto(p.source, *rows, p.cfg.BatchSize)
		if len(*rows) == 0 {
			p.rows.Put(rows)
		} else {
			select {
			case batches <- batch{rows: rows, index: index}:
			case <-ctx.Done():
				return
			}
		}
		if err == nil {
			continue
		}
		if !stderrors.Is(err, io.EOF) {
			errc <- err
		}
		return
	}
}

func (p *Pipeline) writeBatch(ctx context.Context, w *writer.Writer, b batch) error {
	out, err := w.AddRows(ctx, *b.rows)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) && !errors.IsFatal(err) {
			e.WithDetail("batch", b.index)
		}
		return err
	}
	if w.Mode() == writer.ModePull && len(out) > 0 {
		return p.dest.OnData(ctx, out)
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, w *writer.Writer) error {
	out, err := w.Finish(ctx)
	if err != nil {
		return err
	}
	if w.Mode() == writer.ModePush {
		return w.Wait(ctx)
	}
	if len(out) > 0 {
		if err := p.dest.OnData(ctx, out); err != nil {
			return err
		}
	}
	p.ended = true
	return p.dest.OnEnd(ctx)
}

// abandon stops the export and makes sure the destination sees one abort.
func (p *Pipeline) abandon(ctx context.Context, w *writer.Writer, log *zap.Logger, span *observability.Span, cause error) error {
	span.RecordError(cause)
	metrics.Errors.WithLabelValues(string(errors.TypeOf(cause))).Inc()

	if w.Mode() == writer.ModePush {
		// A push writer owns the destination; it delivers the abort itself.
		w.Abort(cause)
		if err := w.Wait(ctx); err != nil {
			log.Warn("destination reported an error while aborting", zap.Error(err))
		}
	} else {
		w.Abort(cause)
		if !p.ended {
			p.dest.OnAbort(ctx, cause)
		}
	}

	stats := w.Stats()
	log.Error("export failed",
		zap.Error(cause),
		zap.Int64("rows", stats.Rows),
		zap.Int("row_groups", stats.RowGroups))
	return cause
}

func scheme(d destinations.Destination) string {
	loc, err := destinations.ParseLocation(d.URI())
	if err != nil {
		return "stream"
	}
	return loc.Scheme
}
