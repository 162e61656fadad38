// Package ring provides a bounded lock-free spsc generic ring buffer
// that never blocks: pushing into a full ring fails.
package ring

import (
	"math/bits"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Ring is a bounded lock-free spsc generic ring buffer.
// Push must be called by a single goroutine and Pop/PopInto by a single
// (possibly different) goroutine.
type Ring[T any] struct {
	// head is written by the producer only
	head atomic.Uint64

	_ cpu.CacheLinePad

	// tail is written by the consumer only
	tail atomic.Uint64

	_ cpu.CacheLinePad

	capacity uint64
	capMask  uint64

	buffer []T
}

// New returns a new ring with the given capacity
// rounded up to the next power of 2.
func New[T any](capacity uint64) *Ring[T] {
	capacity = roundToPowerOf2(capacity)

	return &Ring[T]{
		capacity: capacity,
		capMask:  capacity - 1,

		buffer: make([]T, capacity),
	}
}

func roundToPowerOf2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// Push adds an item to the ring. It returns false if the ring is full.
func (r *Ring[T]) Push(item T) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	// Check if the ring is full
	if head-tail >= r.capacity {
		return false
	}

	r.buffer[head&r.capMask] = item

	// Publish the item to the consumer
	r.head.Store(head + 1)

	return true
}

// Pop removes the oldest item from the ring. It returns false if the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T

	tail := r.tail.Load()
	head := r.head.Load()

	// Check if the ring is empty
	if head == tail {
		return zero, false
	}

	idx := tail & r.capMask
	item := r.buffer[idx]
	r.buffer[idx] = zero

	// Release the slot to the producer
	r.tail.Store(tail + 1)

	return item, true
}

// PopInto moves up to len(dst) items into dst and returns how many were moved.
func (r *Ring[T]) PopInto(dst []T) int {
	var zero T

	tail := r.tail.Load()
	head := r.head.Load()

	n := min(head-tail, uint64(len(dst)))
	for i := range n {
		idx := (tail + i) & r.capMask
		dst[i] = r.buffer[idx]
		r.buffer[idx] = zero
	}

	r.tail.Store(tail + n)

	return int(n)
}

// Len returns the number of items in the ring.
func (r *Ring[T]) Len() uint64 {
	tail := r.tail.Load()
	head := r.head.Load()
	return head - tail
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() uint64 {
	return r.capacity
}
