// Package observability provides OpenTelemetry tracing for parquetexport.
//
// Until Init is called spans go to the global tracer provider, which is a
// no-op by default, so library users pay nothing unless they opt in.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by every span of the exporter.
const InstrumentationName = "github.com/data-fair/parquetexport"

var (
	// Global tracer instance, nil until Init succeeds
	tracer trace.Tracer

	// Initialization lock
	initOnce sync.Once
	tracerMu sync.RWMutex
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string    // ExporterStdout or ExporterNone
	Output         io.Writer // stdout exporter destination (default: stderr)
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// Init sets up the tracer provider once. Later calls are no-ops.
func Init(config TracingConfig) error {
	var err error

	initOnce.Do(func() {
		if !config.Enabled {
			return
		}
		err = initTracing(config)
		if err != nil {
			return
		}

		// Set up global propagators
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return err
}

// GetTracer returns the exporter's tracer
func GetTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if tracer != nil {
		return tracer
	}
	return otel.Tracer(InstrumentationName)
}

func setTracer(t trace.Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	tracer = t
}

// Span wraps a tracing span and batches its attributes until End
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan creates a new span as a child of any span in ctx
func StartSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := GetTracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched for performance)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_us", time.Since(s.startTime).Microseconds()))
	s.span.End()
}

// SpanContext returns the wrapped span's context
func (s *Span) SpanContext() trace.SpanContext {
	return s.span.SpanContext()
}
