// Package pool provides typed object pooling for the buffers that an export
// allocates once per batch.
//
// Example usage:
//
//	rows := pool.NewRowSlices(10000)
//	batch := rows.Get()
//	*batch, err = input.ReadBatchInto(reader, *batch, 10000)
//	...
//	rows.Put(batch)
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/data-fair/parquetexport/pkg/rowbatch"
)

// Pool is a generic object pool with type safety. It wraps sync.Pool with
// allocation statistics and a reset function applied on Put. The pool is
// safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated atomic.Int64
		inUse     atomic.Int64
		gets      atomic.Int64
	}
}

// New creates a typed pool. new is called when the pool is empty; reset,
// if not nil, clears an object before it is returned to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		p.stats.allocated.Add(1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, allocating one if it is empty.
func (p *Pool[T]) Get() T {
	p.stats.inUse.Add(1)
	p.stats.gets.Add(1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.stats.inUse.Add(-1)
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated by the pool, the number
// currently checked out, and the number of Get calls served from the pool.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	allocated = p.stats.allocated.Load()
	return allocated, p.stats.inUse.Load(), p.stats.gets.Load() - allocated
}

// NewRowSlices returns a pool of row slices with the given capacity. Put
// drops the row references so that recycled slices do not retain decoded
// input.
func NewRowSlices(capacity int) *Pool[*[]rowbatch.Row] {
	return New(
		func() *[]rowbatch.Row {
			s := make([]rowbatch.Row, 0, capacity)
			return &s
		},
		func(s *[]rowbatch.Row) {
			clear(*s)
			*s = (*s)[:0]
		},
	)
}
