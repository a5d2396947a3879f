package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRegister(t *testing.T) {
	before := testutil.ToFloat64(RowsWritten.WithLabelValues("pull"))
	RowsWritten.WithLabelValues("pull").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RowsWritten.WithLabelValues("pull")))

	Errors.WithLabelValues("row_type").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(Errors.WithLabelValues("row_type")), 1.0)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
	assert.Equal(t, "op", timer.Name())
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("ndjson", "file")
	tracker.Increment(100)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("ndjson", "file")))
}
