package pipeline

import (
	"time"

	"github.com/data-fair/parquetexport/pkg/writer"
)

// Result summarises a completed export.
type Result struct {
	ExportID  string        `json:"export_id"`
	Mode      writer.Mode   `json:"mode"`
	Rows      int64         `json:"rows"`
	RowGroups int           `json:"row_groups"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"duration"`
}

// RowsPerSecond returns the average throughput of the export.
func (r *Result) RowsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Rows) / r.Duration.Seconds()
}
