package sink

import (
	"bytes"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// PullSink accumulates encoded bytes in memory and hands them back on each
// commit. It is not safe for concurrent use and starts no goroutines.
type PullSink struct {
	staged bytes.Buffer
	total  int64
	ended  bool
}

var _ Sink = (*PullSink)(nil)

// NewPullSink creates an empty pull sink.
func NewPullSink() *PullSink {
	return &PullSink{}
}

// Write implements io.Writer.
func (s *PullSink) Write(p []byte) (int, error) {
	if s.ended {
		return 0, errors.New(errors.ErrorTypeProtocol, "write after end of stream")
	}
	return s.staged.Write(p)
}

// Commit returns a fresh copy of the bytes staged since the previous commit.
func (s *PullSink) Commit() ([]byte, error) {
	if s.ended {
		return nil, errors.New(errors.ErrorTypeProtocol, "commit after end of stream")
	}
	return s.take(), nil
}

// Discard implements Sink.
func (s *PullSink) Discard() {
	s.staged.Reset()
}

// End returns the trailing bytes.
func (s *PullSink) End() ([]byte, error) {
	if s.ended {
		return nil, errors.New(errors.ErrorTypeProtocol, "end of stream already signaled")
	}
	out := s.take()
	s.ended = true
	return out, nil
}

// Abort implements Sink.
func (s *PullSink) Abort(error) {
	s.staged.Reset()
	s.ended = true
}

// BytesCommitted returns the number of bytes handed out so far.
func (s *PullSink) BytesCommitted() int64 {
	return s.total
}

func (s *PullSink) take() []byte {
	if s.staged.Len() == 0 {
		return []byte{}
	}
	out := make([]byte, s.staged.Len())
	copy(out, s.staged.Bytes())
	s.staged.Reset()
	s.total += int64(len(out))
	return out
}
