// Package sink bridges the encoding engine's synchronous byte output to the
// caller of the writer.
//
// The engine writes into a Sink as an io.Writer. Bytes are staged until the
// writer reaches a row-group or finalize boundary and calls Commit or End.
// PullSink hands the committed bytes back to the caller. PushSink transfers
// each committed chunk to a Consumer running on its own goroutine, in order,
// followed by exactly one end signal.
package sink

import (
	"context"
	"io"
)

// Sink is the output side of a writer.
type Sink interface {
	io.Writer

	// Commit marks a row-group boundary. Pull sinks return the bytes staged
	// since the previous commit. Push sinks enqueue them for the consumer and
	// return nil.
	Commit() ([]byte, error)
	// Discard drops everything staged since the previous commit.
	Discard()
	// End commits the trailing bytes and signals end of stream. No writes
	// are accepted afterwards.
	End() ([]byte, error)
	// Abort signals that the stream will never be completed. Staged bytes
	// are dropped.
	Abort(cause error)
}

// Consumer receives the encoded file in push mode. Both methods are called
// from a single dispatcher goroutine, never concurrently.
type Consumer interface {
	// OnData receives one chunk. The consumer owns chunk.
	OnData(ctx context.Context, chunk []byte) error
	// OnEnd is called once, after the last chunk.
	OnEnd(ctx context.Context) error
}

// Aborter is implemented by consumers that can discard a partial stream. It
// is called instead of OnEnd when the stream fails.
type Aborter interface {
	OnAbort(ctx context.Context, cause error)
}

// ConsumerFuncs adapts plain functions to a Consumer. Nil functions are
// treated as no-ops.
type ConsumerFuncs struct {
	Data  func(ctx context.Context, chunk []byte) error
	End   func(ctx context.Context) error
	Abort func(ctx context.Context, cause error)
}

// OnData implements Consumer.
func (f ConsumerFuncs) OnData(ctx context.Context, chunk []byte) error {
	if f.Data == nil {
		return nil
	}
	return f.Data(ctx, chunk)
}

// OnEnd implements Consumer.
func (f ConsumerFuncs) OnEnd(ctx context.Context) error {
	if f.End == nil {
		return nil
	}
	return f.End(ctx)
}

// OnAbort implements Aborter.
func (f ConsumerFuncs) OnAbort(ctx context.Context, cause error) {
	if f.Abort != nil {
		f.Abort(ctx, cause)
	}
}
