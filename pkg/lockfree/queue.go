// Package lockfree provides lock-free data structures for handing data between
// goroutines without blocking the producer.
package lockfree

import (
	"sync/atomic"
)

// Queue is a bounded lock-free single-producer single-consumer queue.
//
// head and tail grow monotonically and are masked on access, so a full queue
// is tail-head == capacity and no slot is wasted. Exactly one goroutine may
// call Enqueue and exactly one goroutine may call Dequeue.
type Queue[T any] struct {
	// Separate head and tail on different cache lines to avoid false sharing
	head      atomic.Uint64
	_padding1 [7]uint64 //nolint:unused // 56 bytes padding to separate cache lines

	tail      atomic.Uint64
	_padding2 [7]uint64 //nolint:unused // 56 bytes padding

	buffer   []T
	capacity uint64
	mask     uint64
}

// NewQueue creates a new lock-free queue with given capacity.
// Capacity will be rounded up to the next power of 2 for efficient masking.
func NewQueue[T any](capacity int) *Queue[T] {
	// Round up to next power of 2
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}

	return &Queue[T]{
		buffer:   make([]T, size),
		capacity: size,
		mask:     size - 1,
	}
}

// Enqueue adds an item to the queue.
// Returns false without blocking if the queue is full.
func (q *Queue[T]) Enqueue(item T) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == q.capacity {
		return false
	}

	q.buffer[tail&q.mask] = item
	// Publishing the new tail makes the slot visible to the consumer.
	q.tail.Store(tail + 1)
	return true
}

// Dequeue removes and returns the oldest item.
// Returns the zero value and false if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T

	head := q.head.Load()
	if head == q.tail.Load() {
		return zero, false
	}

	idx := head & q.mask
	item := q.buffer[idx]
	q.buffer[idx] = zero
	q.head.Store(head + 1)
	return item, true
}

// Size returns the current number of items in the queue.
// This is an approximation in concurrent scenarios.
func (q *Queue[T]) Size() int {
	return int(q.tail.Load() - q.head.Load())
}

// Capacity returns the number of slots after rounding.
func (q *Queue[T]) Capacity() int {
	return int(q.capacity)
}

// IsEmpty returns true if the queue is empty.
// This check is atomic but may be stale in concurrent scenarios.
func (q *Queue[T]) IsEmpty() bool {
	return q.head.Load() == q.tail.Load()
}

// IsFull returns true if the queue is full.
// This check is atomic but may be stale in concurrent scenarios.
func (q *Queue[T]) IsFull() bool {
	return q.tail.Load()-q.head.Load() == q.capacity
}

// AtomicCounter provides a lock-free counter for statistics and metrics collection
// with atomic operations for thread-safe updates.
type AtomicCounter struct {
	value atomic.Uint64
}

// NewAtomicCounter creates a new atomic counter initialized to zero.
func NewAtomicCounter() *AtomicCounter {
	return &AtomicCounter{}
}

// Increment atomically increments the counter by one.
func (c *AtomicCounter) Increment() {
	c.value.Add(1)
}

// Add atomically adds the given delta value to the counter.
func (c *AtomicCounter) Add(delta uint64) {
	c.value.Add(delta)
}

// Get returns the current value of the counter atomically.
func (c *AtomicCounter) Get() uint64 {
	return c.value.Load()
}

// Reset atomically resets the counter to zero.
func (c *AtomicCounter) Reset() {
	c.value.Store(0)
}
