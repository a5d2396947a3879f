// Package metrics provides Prometheus instrumentation for parquetexport.
//
// # Overview
//
// Every writer reports into a fixed set of package-level collectors,
// registered with the default registry on import:
//   - rows and row groups written, labelled by delivery mode
//   - encoded bytes handed to the caller or the push consumer
//   - AddRows and Finish latency
//   - errors by structured error type
//   - push queue depth
//
// # Basic Usage
//
//	timer := metrics.NewTimer("add_rows")
//	out, err := w.AddRows(ctx, rows)
//	metrics.OperationLatency.WithLabelValues("add_rows", "pull").Observe(timer.Stop().Seconds())
//
//	tracker := metrics.NewThroughputTracker("ndjson", "s3")
//	tracker.Increment(int64(len(rows)))
//	rowsPerSec := tracker.GetAndReset()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsWritten counts rows encoded into row groups.
	// Labels: mode (pull/push)
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parquetexport_rows_written_total",
			Help: "Total number of rows encoded",
		},
		[]string{"mode"},
	)

	// RowGroupsWritten counts closed row groups.
	// Labels: mode (pull/push)
	RowGroupsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parquetexport_row_groups_written_total",
			Help: "Total number of row groups written",
		},
		[]string{"mode"},
	)

	// BytesEmitted counts encoded bytes returned to the caller (pull) or
	// enqueued for the consumer (push).
	// Labels: mode (pull/push)
	BytesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parquetexport_bytes_emitted_total",
			Help: "Total number of encoded bytes emitted",
		},
		[]string{"mode"},
	)

	// OperationLatency tracks writer call latency in seconds.
	// Labels: operation (add_rows/finish), mode (pull/push)
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parquetexport_operation_duration_seconds",
			Help: "Writer operation latency in seconds",
			Buckets: []float64{
				0.0001, // 100μs - Tiny batches
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - Typical row groups
				1,      // 1s
				10,     // 10s - Very large row groups
			},
		},
		[]string{"operation", "mode"},
	)

	// Errors counts failed writer calls.
	// Labels: type (structured error type)
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parquetexport_errors_total",
			Help: "Total number of writer errors by type",
		},
		[]string{"type"},
	)

	// QueueDepth tracks queue depths
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parquetexport_queue_depth",
			Help: "Current queue depth",
		},
		[]string{"queue_name"},
	)

	// Throughput tracks rows per second
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parquetexport_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"source", "destination"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string {
	return t.name
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (rows per second) over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64     // Rows processed since last reset
	lastReset   time.Time // Time of last reset
	source      string    // Input format
	destination string    // Output scheme
}

// NewThroughputTracker creates a new throughput tracker for an export.
// The source and destination parameters are used as metric labels.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.destination).Set(throughput)

	return throughput
}
