package sink

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/errors"
	"github.com/data-fair/parquetexport/pkg/lockfree"
)

const (
	// DefaultQueueCapacity is the number of chunks that may wait for the
	// consumer before the producer backs off.
	DefaultQueueCapacity = 64
	// DefaultEnqueueTimeout bounds how long a commit waits for queue space.
	DefaultEnqueueTimeout = 30 * time.Second

	minBackoff = 50 * time.Microsecond
	maxBackoff = 10 * time.Millisecond
)

// PushOptions configures a PushSink.
type PushOptions struct {
	QueueCapacity  int
	EnqueueTimeout time.Duration
	Logger         *zap.Logger
}

// message is a data chunk handed to the dispatcher. The chunk is owned by
// the message once enqueued.
type message struct {
	chunk []byte
}

// terminal is the single end-of-stream signal. A nil cause ends the stream
// normally.
type terminal struct {
	cause error
}

// PushSink delivers committed chunks to a Consumer on a dedicated dispatcher
// goroutine. Write, Commit, Discard, End and Abort must be called from a
// single producer goroutine.
type PushSink struct {
	consumer Consumer
	ctx      context.Context
	logger   *zap.Logger
	timeout  time.Duration

	staged bytes.Buffer
	ended  bool

	queue    *lockfree.Queue[message]
	notify   chan struct{}
	terminal chan terminal
	done     chan struct{}

	mu  sync.Mutex
	err error

	chunks    lockfree.AtomicCounter
	enqueued  lockfree.AtomicCounter
	delivered lockfree.AtomicCounter
}

var _ Sink = (*PushSink)(nil)

// NewPushSink takes ownership of consumer and starts the dispatcher. ctx is
// passed to every consumer call; cancelling it stops delivery.
func NewPushSink(ctx context.Context, consumer Consumer, opts PushOptions) *PushSink {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = DefaultEnqueueTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &PushSink{
		consumer: consumer,
		ctx:      ctx,
		logger:   opts.Logger,
		timeout:  opts.EnqueueTimeout,
		queue:    lockfree.NewQueue[message](opts.QueueCapacity),
		notify:   make(chan struct{}, 1),
		terminal: make(chan terminal, 1),
		done:     make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Write implements io.Writer.
func (s *PushSink) Write(p []byte) (int, error) {
	if s.ended {
		return 0, errors.New(errors.ErrorTypeProtocol, "write after end of stream")
	}
	return s.staged.Write(p)
}

// Commit enqueues the staged bytes as one chunk. It never waits for the
// consumer, only for queue space. A consumer failure reported since the last
// call is returned here.
func (s *PushSink) Commit() ([]byte, error) {
	if s.ended {
		return nil, errors.New(errors.ErrorTypeProtocol, "commit after end of stream")
	}
	if err := s.Err(); err != nil {
		s.staged.Reset()
		return nil, err
	}
	if s.staged.Len() == 0 {
		return nil, nil
	}
	return nil, s.enqueue(message{chunk: s.take()})
}

// Discard implements Sink.
func (s *PushSink) Discard() {
	s.staged.Reset()
}

// End enqueues the trailing bytes and the end marker.
func (s *PushSink) End() ([]byte, error) {
	if s.ended {
		return nil, errors.New(errors.ErrorTypeProtocol, "end of stream already signaled")
	}
	if err := s.Err(); err != nil {
		s.Abort(err)
		return nil, err
	}
	if s.staged.Len() > 0 {
		if err := s.enqueue(message{chunk: s.take()}); err != nil {
			s.Abort(err)
			return nil, err
		}
	}
	s.ended = true
	s.terminal <- terminal{}
	return nil, nil
}

// Abort drops staged bytes and asks the dispatcher to abort the consumer
// after the chunks already queued. It never waits for queue space.
func (s *PushSink) Abort(cause error) {
	if s.ended {
		return
	}
	if cause == nil {
		cause = errors.New(errors.ErrorTypeProtocol, "stream aborted")
	}
	s.ended = true
	s.staged.Reset()
	s.terminal <- terminal{cause: cause}
}

// Wait blocks until the dispatcher has signaled the end of stream to the
// consumer, or ctx is done. It returns the first consumer error.
func (s *PushSink) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the dispatcher exits.
func (s *PushSink) Done() <-chan struct{} {
	return s.done
}

// Err returns the sticky consumer error, if any.
func (s *PushSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// QueueDepth returns the number of chunks waiting for the consumer.
func (s *PushSink) QueueDepth() int {
	return s.queue.Size()
}

// ChunksEnqueued returns the number of data chunks handed to the queue.
func (s *PushSink) ChunksEnqueued() uint64 {
	return s.chunks.Get()
}

// BytesEnqueued returns the number of bytes handed to the queue.
func (s *PushSink) BytesEnqueued() uint64 {
	return s.enqueued.Get()
}

// BytesDelivered returns the number of bytes the consumer accepted.
func (s *PushSink) BytesDelivered() uint64 {
	return s.delivered.Get()
}

func (s *PushSink) take() []byte {
	chunk := make([]byte, s.staged.Len())
	copy(chunk, s.staged.Bytes())
	s.staged.Reset()
	return chunk
}

func (s *PushSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// enqueue hands msg to the dispatcher, backing off while the queue is full.
func (s *PushSink) enqueue(msg message) error {
	deadline := time.Now().Add(s.timeout)
	backoff := minBackoff
	for !s.queue.Enqueue(msg) {
		select {
		case <-s.done:
			if err := s.Err(); err != nil {
				return err
			}
			return errors.New(errors.ErrorTypeEncoding, "push dispatcher has stopped")
		default:
		}
		if time.Now().After(deadline) {
			return errors.Newf(errors.ErrorTypeEncoding, "push queue full for %s", s.timeout).
				WithDetail("queue_capacity", s.queue.Capacity()).
				WithDetail("timeout", s.timeout.String())
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}

	s.chunks.Increment()
	s.enqueued.Add(uint64(len(msg.chunk)))
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// dispatch drains the queue in order until the terminal signal arrives.
// The terminal channel is only read while the queue is empty, and the queue
// is drained once more after it, so every chunk enqueued before End or Abort
// is delivered first.
func (s *PushSink) dispatch() {
	defer close(s.done)

	for {
		if msg, ok := s.queue.Dequeue(); ok {
			s.deliver(msg)
			continue
		}

		select {
		case <-s.notify:
		case t := <-s.terminal:
			for {
				msg, ok := s.queue.Dequeue()
				if !ok {
					break
				}
				s.deliver(msg)
			}
			cause := t.cause
			if cause == nil {
				cause = s.Err()
			}
			s.finish(cause)
			return
		case <-s.ctx.Done():
			s.setErr(errors.Wrap(s.ctx.Err(), errors.ErrorTypeEncoding, "push delivery cancelled"))
			s.finish(s.Err())
			return
		}
	}
}

func (s *PushSink) deliver(msg message) {
	if s.Err() != nil {
		// The consumer already failed; later chunks are dropped.
		return
	}
	if err := s.consumer.OnData(s.ctx, msg.chunk); err != nil {
		s.logger.Error("push consumer rejected chunk", zap.Error(err), zap.Int("chunk_bytes", len(msg.chunk)))
		s.setErr(errors.Wrap(err, errors.ErrorTypeEncoding, "push consumer failed"))
		return
	}
	s.delivered.Add(uint64(len(msg.chunk)))
}

// finish delivers the single terminal signal. A failed stream is never
// reported through OnEnd: consumers without OnAbort get no call and the
// cause is returned from Wait instead.
func (s *PushSink) finish(cause error) {
	if cause != nil {
		if aborter, ok := s.consumer.(Aborter); ok {
			aborter.OnAbort(s.ctx, cause)
		} else {
			s.logger.Warn("push stream failed, consumer cannot be told", zap.Error(cause))
			s.setErr(cause)
		}
		return
	}
	if err := s.consumer.OnEnd(s.ctx); err != nil {
		s.logger.Error("push consumer failed to end stream", zap.Error(err))
		s.setErr(errors.Wrap(err, errors.ErrorTypeEncoding, "push consumer failed to end stream"))
	}
}
