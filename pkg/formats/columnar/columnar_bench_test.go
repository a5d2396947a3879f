package columnar

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/data-fair/parquetexport/pkg/rowbatch"
)

func generateTestRows(count int) []rowbatch.Row {
	rows := make([]rowbatch.Row, count)
	for i := 0; i < count; i++ {
		rows[i] = rowbatch.Row{
			"id":     i,
			"name":   fmt.Sprintf("User %d", i),
			"score":  rand.Float64() * 100,
			"active": rand.Intn(2) == 1,
			"day":    time.Now().AddDate(0, 0, -rand.Intn(365)).Format("2006-01-02"),
			"at":     time.Now().Add(-time.Duration(rand.Intn(365*24)) * time.Hour),
		}
	}
	return rows
}

// Benchmark write performance
func BenchmarkParquetEngineWrite(b *testing.B) {
	plan := testPlan(b)

	for _, count := range []int{1000, 10000, 100000} {
		for _, compression := range []string{"none", "snappy", "gzip", "zstd"} {
			batch, err := rowbatch.Assemble(generateTestRows(count), plan)
			if err != nil {
				b.Fatal(err)
			}

			b.Run(fmt.Sprintf("%d/%s", count, compression), func(b *testing.B) {
				opts := DefaultWriterOptions()
				opts.Compression = compression
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var buf bytes.Buffer
					e, err := NewParquetEngine(&buf, plan, opts)
					if err != nil {
						b.Fatal(err)
					}
					writeRowGroup(b, e, batch)
					if err := e.Finish(); err != nil {
						b.Fatal(err)
					}
					b.SetBytes(int64(buf.Len()))
				}
			})
		}
	}
}

// Benchmark file sizes and compression ratios
func BenchmarkParquetFileSizes(b *testing.B) {
	plan := testPlan(b)
	rows := generateTestRows(10000)
	batch, err := rowbatch.Assemble(rows, plan)
	if err != nil {
		b.Fatal(err)
	}

	b.Logf("\nFile sizes for %d rows:", len(rows))
	b.Logf("%-12s %-15s", "Compression", "Size")
	b.Logf("%s", strings.Repeat("-", 30))

	for _, compression := range []string{"none", "snappy", "gzip", "brotli", "zstd", "lz4"} {
		var buf bytes.Buffer
		opts := DefaultWriterOptions()
		opts.Compression = compression

		e, err := NewParquetEngine(&buf, plan, opts)
		if err != nil {
			b.Logf("%-12s Error: %v", compression, err)
			continue
		}
		writeRowGroup(b, e, batch)
		if err := e.Finish(); err != nil {
			b.Logf("%-12s Error: %v", compression, err)
			continue
		}
		b.Logf("%-12s %-15s", compression, formatBytes(buf.Len()))
	}
}

// Helper function to format bytes
func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
