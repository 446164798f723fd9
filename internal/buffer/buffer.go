// Package buffer provides the bounded staging area between event producers
// (stream managers, snapshot fetcher, backfill) and the batch writer.
package buffer

import (
	"sync"
)

// Buffer is a thread-safe bounded ring. Producers enqueue without blocking;
// the writer drains the whole contents atomically. When occupancy crosses
// the high-water mark a flush signal fires so the writer can drain early
// instead of waiting for its interval.
type Buffer[T any] struct {
	mu        sync.Mutex
	buf       []T
	head      int // read position
	tail      int // write position
	count     int
	capacity  int
	highWater int
	closed    bool

	flush chan struct{}

	// Stats
	totalAccepted int64
	totalRejected int64
	totalDrained  int64
}

// Stats contains buffer counters.
type Stats struct {
	Count         int
	Capacity      int
	TotalAccepted int64
	TotalRejected int64
	TotalDrained  int64
}

// New creates a buffer. highWater must be in [1, capacity]; values outside
// are clamped.
func New[T any](capacity, highWater int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	if highWater < 1 {
		highWater = 1
	}
	if highWater > capacity {
		highWater = capacity
	}
	return &Buffer[T]{
		buf:       make([]T, capacity),
		capacity:  capacity,
		highWater: highWater,
		flush:     make(chan struct{}, 1),
	}
}

// TryEnqueue adds an item without blocking. Returns false if the buffer is
// at capacity or closed; the item is not stored in that case.
func (b *Buffer[T]) TryEnqueue(item T) bool {
	b.mu.Lock()

	if b.closed || b.count == b.capacity {
		b.totalRejected++
		b.mu.Unlock()
		return false
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalAccepted++
	crossed := b.count == b.highWater
	b.mu.Unlock()

	if crossed {
		select {
		case b.flush <- struct{}{}:
		default:
		}
	}
	return true
}

// Drain atomically removes and returns all buffered items, oldest first.
// Returns nil when empty. Enqueues racing with a drain land in either this
// batch or the next, never both and never neither.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	result := make([]T, b.count)
	for i := 0; i < len(result); i++ {
		result[i] = b.buf[b.head]
		var zero T
		b.buf[b.head] = zero // Clear reference for GC
		b.head = (b.head + 1) % b.capacity
	}
	b.totalDrained += int64(b.count)
	b.count = 0

	return result
}

// FlushSignal returns the channel that fires when occupancy crosses the
// high-water mark.
func (b *Buffer[T]) FlushSignal() <-chan struct{} {
	return b.flush
}

// Close stops accepting enqueues. Already-buffered items remain drainable.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the current number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Stats returns buffer counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalAccepted: b.totalAccepted,
		TotalRejected: b.totalRejected,
		TotalDrained:  b.totalDrained,
	}
}
