// Package writer turns a schema and a stream of row batches into an encoded
// Parquet file.
//
// A Writer translates the schema once, then encodes every AddRows call as
// exactly one row group and every Finish call as the footer. In pull mode
// (New) the encoded bytes are returned from each call. In push mode
// (NewStreaming) they are delivered to a sink.Consumer on a separate
// goroutine, in order, followed by a single end signal.
//
//	w, err := writer.New(props)
//	for batch := range batches {
//	    chunk, err := w.AddRows(ctx, batch)
//	    out.Write(chunk)
//	}
//	trailer, err := w.Finish(ctx)
//	out.Write(trailer)
//
// Row-level failures (a value of the wrong type, a null in a required column)
// reject the whole batch and leave the writer usable. Engine or delivery
// failures are fatal: every later call returns a protocol error wrapping the
// original cause.
package writer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/formats/columnar"
	"github.com/data-fair/parquetexport/pkg/metrics"
	"github.com/data-fair/parquetexport/pkg/observability"
	"github.com/data-fair/parquetexport/pkg/rowbatch"
	"github.com/data-fair/parquetexport/pkg/schema"
	"github.com/data-fair/parquetexport/pkg/sink"
)

// Mode is the output mode of a writer.
type Mode string

const (
	// ModePull returns encoded bytes from AddRows and Finish.
	ModePull Mode = "pull"
	// ModePush delivers encoded bytes to a consumer.
	ModePush Mode = "push"
)

type state int

const (
	stateOpen state = iota
	stateFinished
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateFinished:
		return "finished"
	default:
		return "failed"
	}
}

// Stats describes what a writer has produced so far.
type Stats struct {
	Rows      int64
	RowGroups int
	Bytes     int64
}

// Writer encodes row batches into one Parquet file. Calls are serialised by
// an internal mutex; the writer is meant to be driven by one caller.
type Writer struct {
	mu sync.Mutex

	id     string
	mode   Mode
	plan   []schema.ColumnPlan
	engine columnar.Engine
	sink   sink.Sink
	push   *sink.PushSink
	logger *zap.Logger

	state   state
	failure error
	stats   Stats
}

// New creates a pull-mode writer.
func New(props []schema.SchemaProperty, opts ...Option) (*Writer, error) {
	cfg := newConfig(opts)
	plan, err := prepare(props, cfg)
	if err != nil {
		return nil, err
	}
	return open(plan, cfg, ModePull, sink.NewPullSink(), nil)
}

// NewStreaming creates a push-mode writer that owns consumer from now on.
// The consumer receives every chunk and then exactly one end or abort
// signal. When construction fails, a consumer implementing sink.Aborter
// receives the error through OnAbort.
func NewStreaming(props []schema.SchemaProperty, consumer sink.Consumer, opts ...Option) (*Writer, error) {
	if consumer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "push mode requires a consumer")
	}
	cfg := newConfig(opts)
	plan, err := prepare(props, cfg)
	if err != nil {
		if aborter, ok := consumer.(sink.Aborter); ok {
			aborter.OnAbort(cfg.DeliveryContext, err)
		}
		return nil, err
	}

	ps := sink.NewPushSink(cfg.DeliveryContext, consumer, sink.PushOptions{
		QueueCapacity:  cfg.QueueCapacity,
		EnqueueTimeout: cfg.EnqueueTimeout,
		Logger:         cfg.Logger,
	})
	w, err := open(plan, cfg, ModePush, ps, ps)
	if err != nil {
		ps.Abort(err)
		return nil, err
	}
	return w, nil
}

// prepare validates everything that does not need a sink.
func prepare(props []schema.SchemaProperty, cfg *Config) ([]schema.ColumnPlan, error) {
	if err := cfg.Properties.Validate(); err != nil {
		return nil, err
	}
	plan, err := schema.Translate(props)
	if err != nil {
		metrics.Errors.WithLabelValues(string(errors.TypeOf(err))).Inc()
		return nil, err
	}
	return plan, nil
}

func open(plan []schema.ColumnPlan, cfg *Config, mode Mode, s sink.Sink, push *sink.PushSink) (*Writer, error) {
	id := cfg.ExportID
	if id == "" {
		id = uuid.New().String()
	}
	log := cfg.Logger.With(zap.String("export_id", id), zap.String("mode", string(mode)))

	engine, err := cfg.Engine(s, plan, cfg.Properties)
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeSchema) && !errors.IsType(err, errors.ErrorTypeConfig) {
			err = errors.Wrap(err, errors.ErrorTypeEncoding, "failed to open encoding engine")
		}
		metrics.Errors.WithLabelValues(string(errors.TypeOf(err))).Inc()
		log.Error("failed to open writer", zap.Error(err))
		return nil, err
	}

	log.Info("writer opened",
		zap.Int("columns", len(plan)),
		zap.String("compression", cfg.Properties.Compression))

	return &Writer{
		id:     id,
		mode:   mode,
		plan:   plan,
		engine: engine,
		sink:   s,
		push:   push,
		logger: log,
	}, nil
}

// AddRows encodes rows as one row group. In pull mode it returns the bytes
// produced since the previous call; in push mode it returns nil after
// handing them to the consumer queue. An empty batch writes nothing.
func (w *Writer) AddRows(ctx context.Context, rows []rowbatch.Row) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkOpen("add rows"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "parquetexport.add_rows")
	defer span.End()
	span.SetAttribute("export_id", w.id)
	span.SetAttribute("rows", len(rows))
	timer := metrics.NewTimer("add_rows")
	defer func() {
		metrics.OperationLatency.WithLabelValues("add_rows", string(w.mode)).Observe(timer.Stop().Seconds())
	}()

	if len(rows) == 0 {
		if w.mode == ModePull {
			return []byte{}, nil
		}
		return nil, nil
	}

	batch, err := rowbatch.Assemble(rows, w.plan)
	if err != nil {
		span.RecordError(err)
		metrics.Errors.WithLabelValues(string(errors.TypeOf(err))).Inc()
		w.logger.Warn("rejected row batch", zap.Error(err), zap.Int("rows", len(rows)))
		return nil, err
	}

	if err := w.writeRowGroup(batch); err != nil {
		span.RecordError(err)
		return nil, w.fail(err)
	}

	out, err := w.sink.Commit()
	if err != nil {
		span.RecordError(err)
		return nil, w.fail(err)
	}

	w.stats.Rows += int64(batch.NumRows)
	w.stats.RowGroups++
	w.recordEmitted(out)
	metrics.RowsWritten.WithLabelValues(string(w.mode)).Add(float64(batch.NumRows))
	metrics.RowGroupsWritten.WithLabelValues(string(w.mode)).Inc()

	w.logger.Debug("row group written",
		zap.Int("row_group", w.stats.RowGroups-1),
		zap.Int("rows", batch.NumRows),
		zap.Int("bytes", len(out)))
	return out, nil
}

// Finish writes the footer. In pull mode it returns the trailing bytes; in
// push mode it enqueues them and the end signal. Use Wait to block until the
// consumer has seen the end of the stream.
func (w *Writer) Finish(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkOpen("finish"); err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "parquetexport.finish")
	defer span.End()
	span.SetAttribute("export_id", w.id)
	span.SetAttribute("row_groups", w.stats.RowGroups)
	timer := metrics.NewTimer("finish")
	defer func() {
		metrics.OperationLatency.WithLabelValues("finish", string(w.mode)).Observe(timer.Stop().Seconds())
	}()

	if err := w.engine.Finish(); err != nil {
		span.RecordError(err)
		return nil, w.fail(err)
	}

	out, err := w.sink.End()
	if err != nil {
		span.RecordError(err)
		return nil, w.fail(err)
	}

	w.state = stateFinished
	w.recordEmitted(out)
	w.logger.Info("writer finished",
		zap.Int64("rows", w.stats.Rows),
		zap.Int("row_groups", w.stats.RowGroups),
		zap.Int64("bytes", w.stats.Bytes))
	return out, nil
}

// Abort abandons the export. The sink drops staged bytes and a push-mode
// consumer receives OnAbort after the chunks already queued. Later calls
// return a protocol error wrapping cause. Abort on a finished or failed
// writer does nothing.
func (w *Writer) Abort(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateOpen {
		return
	}
	if cause == nil {
		cause = errors.New(errors.ErrorTypeProtocol, "export aborted")
	}
	w.state = stateFailed
	w.failure = cause
	w.sink.Abort(cause)
	w.logger.Warn("writer aborted", zap.Error(cause), zap.Int("row_groups", w.stats.RowGroups))
}

// Wait blocks until a push-mode consumer has received the end or abort
// signal and returns the first consumer error. It returns immediately in
// pull mode.
func (w *Writer) Wait(ctx context.Context) error {
	if w.push == nil {
		return nil
	}
	return w.push.Wait(ctx)
}

// ID returns the export ID.
func (w *Writer) ID() string { return w.id }

// Mode returns the output mode.
func (w *Writer) Mode() Mode { return w.mode }

// Plan returns the column plan. The plan must not be modified.
func (w *Writer) Plan() []schema.ColumnPlan { return w.plan }

// Stats returns a snapshot of the writer's progress.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Err returns the failure that made the writer unusable, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// writeRowGroup drives the engine for one batch. The row group is closed on
// every path once opened. Every column is written, including all-null ones:
// those submit their definition levels with an empty value slice, because
// the engine rejects a row group whose columns disagree on the row count.
func (w *Writer) writeRowGroup(batch *rowbatch.RowGroupBatch) (err error) {
	if err = w.engine.NextRowGroup(); err != nil {
		return err
	}
	defer func() {
		if cerr := w.engine.CloseRowGroup(); err == nil {
			err = cerr
		}
	}()

	for i := range batch.Columns {
		col := &batch.Columns[i]
		if err = w.engine.NextColumn(); err != nil {
			return err
		}
		if err = w.engine.WriteBatch(col.Values, col.DefLevels); err != nil {
			return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to write column").
				WithDetail("key", col.Plan.Key)
		}
		if err = w.engine.CloseColumn(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) checkOpen(op string) error {
	switch w.state {
	case stateFinished:
		return errors.Newf(errors.ErrorTypeProtocol, "%s called after finish", op).
			WithDetail("export_id", w.id)
	case stateFailed:
		return errors.Wrap(w.failure, errors.ErrorTypeProtocol, op+" called on a failed writer").
			WithDetail("export_id", w.id)
	default:
		return nil
	}
}

// fail marks the writer unusable and tells the sink the stream is broken.
func (w *Writer) fail(err error) error {
	if !errors.IsType(err, errors.ErrorTypeEncoding) {
		err = errors.Wrap(err, errors.ErrorTypeEncoding, "encoding failed")
	}
	w.state = stateFailed
	w.failure = err
	w.sink.Abort(err)

	metrics.Errors.WithLabelValues(string(errors.ErrorTypeEncoding)).Inc()
	w.logger.Error("writer failed", zap.Error(err), zap.Int("row_groups", w.stats.RowGroups))
	return err
}

func (w *Writer) recordEmitted(out []byte) {
	n := int64(len(out))
	if w.push != nil {
		// Push sinks return nothing; count what was handed to the queue.
		n = int64(w.push.BytesEnqueued()) - w.stats.Bytes
		metrics.QueueDepth.WithLabelValues("push").Set(float64(w.push.QueueDepth()))
	}
	w.stats.Bytes += n
	metrics.BytesEmitted.WithLabelValues(string(w.mode)).Add(float64(n))
}
