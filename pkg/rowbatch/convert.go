package rowbatch

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/parquet"
)

const secondsPerDay = int64(24 * time.Hour / time.Second)

// number is satisfied by json.Number from both encoding/json and
// goccy/go-json, and by anything else that carries a decimal literal.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return saturateUint(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return saturateUint(n), true
	case float32:
		return truncateFloat(float64(n)), true
	case float64:
		return truncateFloat(n), true
	case number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return truncateFloat(f), true
	default:
		return 0, false
	}
}

func saturateUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

// truncateFloat rounds toward zero. NaN maps to zero and values outside the
// int64 range saturate.
func truncateFloat(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toByteArray(v any) (parquet.ByteArray, bool) {
	var b []byte
	switch s := v.(type) {
	case string:
		b = []byte(s)
	case []byte:
		b = s
	default:
		return nil, false
	}
	if !utf8.Valid(b) {
		return nil, false
	}
	return parquet.ByteArray(b), true
}

func toDate(v any) (int32, bool) {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case string:
		parsed, ok := parseLayouts(d, dateLayouts)
		if !ok {
			return 0, false
		}
		t = parsed
	default:
		return 0, false
	}

	y, m, day := t.Date()
	midnight := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	days := floorDiv(midnight.Unix(), secondsPerDay)
	if days > math.MaxInt32 || days < math.MinInt32 {
		return 0, false
	}
	return int32(days), true
}

func toTimestampMillis(v any) (int64, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.UnixMilli(), true
	case string:
		t, ok := parseLayouts(d, dateTimeLayouts)
		if !ok {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

// parseLayouts tries each layout in turn. Layouts without a zone parse as UTC.
func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
