// Package dbuf provides a lock-free single producer/single consumer
// generic double buffer.
package dbuf

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// flipResult is the outcome of a flip attempt.
type flipResult uint8

const (
	// flipNone means there was nothing to flip.
	flipNone flipResult = iota
	// flipDeferred means a side was busy and the request stays pending.
	flipDeferred
	// flipCommitted means the active slot has been swapped.
	flipCommitted
)

type slot[T any] struct {
	data T

	// used to avoid false sharing between the two slots
	_ cpu.CacheLinePad
}

// Buffer is a lock-free spsc generic double buffer.
//
// A single generator calls Write (or WriteFunc) and a single consumer
// calls Read. Neither side ever waits for the other: the generator
// always fills the inactive slot and the consumer always copies the
// active one. The active slot is swapped only when neither side is busy.
//
// The zero value is ready to use.
type Buffer[T any] struct {
	// state is the only synchronization point, see [state] for the layout.
	state atomic.Uint32

	_ cpu.CacheLinePad

	slots [2]slot[T]
}

// NewBuffer returns a new double buffer with both slots zeroed
// and slot 0 active.
func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

func (b *Buffer[T]) load() state {
	return state(b.state.Load())
}

func (b *Buffer[T]) cas(curr, next state) bool {
	return b.state.CompareAndSwap(uint32(curr), uint32(next))
}

// update applies fn to the state word until the CAS succeeds
// and returns the stored state.
func (b *Buffer[T]) update(fn func(state) state) state {
	for {
		curr := b.load()
		next := fn(curr)

		if b.cas(curr, next) {
			return next
		}
	}
}

// setBusy marks the given side as busy. The returned state
// has a stable active index until the flag is cleared.
func (b *Buffer[T]) setBusy(mask state) state {
	return b.update(func(s state) state { return s.set(mask) })
}

// clearConsumerBusy releases the consumer side.
func (b *Buffer[T]) clearConsumerBusy() state {
	return b.update(func(s state) state { return s.clear(consumerBusyMask) })
}

// publish releases the generator side and marks the freshly written
// slot as pending in the same CAS, so the request cannot be observed
// apart from the busy flag going down.
func (b *Buffer[T]) publish() state {
	return b.update(func(s state) state {
		return s.clear(generatorBusyMask).set(shouldFlipMask)
	})
}

// flip swaps the active slot if a flip is pending and nobody is busy.
// When a side is busy the request stays recorded and whoever
// finishes next resolves it.
func (b *Buffer[T]) flip() flipResult {
	for {
		curr := b.load()

		// Already resolved by the other side
		if !curr.shouldFlip() {
			return flipNone
		}

		// Defer to the side that is still working
		if curr.busy() {
			return flipDeferred
		}

		if b.cas(curr, curr.flipped()) {
			return flipCommitted
		}

		// The state changed under us (the other side set its busy flag
		// or committed the flip), evaluate it again
	}
}

// Write copies v into the inactive slot and publishes it.
// It must not be called concurrently with another Write or WriteFunc.
func (b *Buffer[T]) Write(v T) {
	s := b.setBusy(generatorBusyMask)

	b.slots[s.inactive()].data = v

	b.publish()
	b.flip()
}

// WriteFunc lets fill modify the inactive slot in place and publishes it.
// The slot holds an older value (or the zero value), never the active one.
// The pointer must not be retained after fill returns.
// It must not be called concurrently with another Write or WriteFunc.
func (b *Buffer[T]) WriteFunc(fill func(slot *T)) {
	s := b.setBusy(generatorBusyMask)

	fill(&b.slots[s.inactive()].data)

	b.publish()
	b.flip()
}

// Read returns a copy of the latest published value.
// Before the first write it returns the zero value.
// It must not be called concurrently with another Read.
func (b *Buffer[T]) Read() T {
	s := b.setBusy(consumerBusyMask)

	v := b.slots[s.active()].data

	if b.clearConsumerBusy().shouldFlip() {
		b.flip()
	}

	return v
}
