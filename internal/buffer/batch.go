package buffer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when operations are attempted on a closed Batch
var ErrClosed = errors.New("batch is closed")

// FlushFunc receives buffered items oldest first. It runs with the batch
// lock held, so flushes never interleave and order is preserved.
type FlushFunc[T any] func(items []T) error

// Batch accumulates items and hands them to a FlushFunc when the batch is
// full, when the caller forces it, on a timer, or on Close.
type Batch[T any] struct {
	mu            sync.Mutex
	items         []T
	maxCount      int
	flush         FlushFunc[T]
	flushTimer    *time.Timer
	flushInterval time.Duration
	closed        bool

	// buffered mirrors len(items) so Stats never waits behind a flush.
	buffered atomic.Int64
}

// NewBatch creates a batch holding at most maxCount items. A positive
// flushInterval also flushes whatever is buffered once the interval passes
// without a flush.
func NewBatch[T any](maxCount int, flushInterval time.Duration, flush FlushFunc[T]) *Batch[T] {
	if maxCount < 1 {
		maxCount = 1
	}
	b := &Batch[T]{
		items:         make([]T, 0, maxCount),
		maxCount:      maxCount,
		flush:         flush,
		flushInterval: flushInterval,
	}

	// Start flush timer if interval is set
	if flushInterval > 0 {
		b.flushTimer = time.AfterFunc(flushInterval, b.timedFlush)
	}
	return b
}

// Add buffers item. When force is set or the batch becomes full, everything
// buffered (item included) is flushed before Add returns.
func (b *Batch[T]) Add(item T, force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.items = append(b.items, item)
	b.buffered.Store(int64(len(b.items)))
	if force || len(b.items) >= b.maxCount {
		return b.flushLocked()
	}
	return nil
}

// Flush forces all buffered items out.
func (b *Batch[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// flushLocked performs the actual flush (must be called with lock held).
func (b *Batch[T]) flushLocked() error {
	if len(b.items) == 0 {
		return nil
	}

	items := b.items
	b.items = make([]T, 0, b.maxCount)
	b.buffered.Store(0)
	err := b.flush(items)

	// Reset timer for next interval
	if b.flushTimer != nil && !b.closed {
		b.flushTimer.Reset(b.flushInterval)
	}
	return err
}

// timedFlush is called by the timer to flush periodically.
func (b *Batch[T]) timedFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if len(b.items) > 0 {
		// The flush func reports its own failures.
		_ = b.flushLocked()
		return
	}
	b.flushTimer.Reset(b.flushInterval)
}

// Close flushes any remaining items and stops the timer. Further Adds fail
// with ErrClosed; calling Close again is a no-op.
func (b *Batch[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.flushTimer != nil {
		b.flushTimer.Stop()
	}
	return b.flushLocked()
}

// Stats returns current batch statistics. It does not wait for a flush in
// progress.
func (b *Batch[T]) Stats() Stats {
	return Stats{
		BufferedEntries: int(b.buffered.Load()),
		MaxEntries:      b.maxCount,
		FlushInterval:   b.flushInterval,
	}
}

// Stats contains statistics about a batch.
type Stats struct {
	BufferedEntries int           `json:"buffered_entries"`
	MaxEntries      int           `json:"max_entries"`
	FlushInterval   time.Duration `json:"flush_interval"`
}
