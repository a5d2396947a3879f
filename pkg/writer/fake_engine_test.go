package writer

import (
	"fmt"
	"io"
	"sync"

	"github.com/data-fair/parquetexport/pkg/formats/columnar"
	"github.com/data-fair/parquetexport/pkg/schema"
)

// fakeEngine records every call and fails on demand. It writes a marker to
// the sink at each row-group close and at finish.
type fakeEngine struct {
	mu     sync.Mutex
	w      io.Writer
	calls  []string
	failOn string
	rg     int
}

func (f *fakeEngine) factory() columnar.EngineFactory {
	return func(w io.Writer, _ []schema.ColumnPlan, _ *columnar.WriterOptions) (columnar.Engine, error) {
		f.w = w
		if f.failOn == "open" {
			return nil, fmt.Errorf("cannot open")
		}
		_, _ = w.Write([]byte("MAGIC|"))
		return f, nil
	}
}

func (f *fakeEngine) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return fmt.Errorf("%s exploded", name)
	}
	return nil
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) NextRowGroup() error { return f.call("next_row_group") }
func (f *fakeEngine) NextColumn() error   { return f.call("next_column") }
func (f *fakeEngine) CloseColumn() error  { return f.call("close_column") }

func (f *fakeEngine) WriteBatch(_ any, _ []int16) error {
	if err := f.call("write_batch"); err != nil {
		// Simulate a partially written page.
		_, _ = f.w.Write([]byte("partial|"))
		return err
	}
	return nil
}

func (f *fakeEngine) CloseRowGroup() error {
	if err := f.call("close_row_group"); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(f.w, "RG%d|", f.rg)
	f.rg++
	return nil
}

func (f *fakeEngine) Finish() error {
	if err := f.call("finish"); err != nil {
		return err
	}
	_, _ = f.w.Write([]byte("FOOTER"))
	return nil
}
