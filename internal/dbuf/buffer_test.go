package dbuf

import (
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wideValue [64]uint64

func newWideValue(idx uint64) wideValue {
	var v wideValue
	for i := range v {
		v[i] = idx
	}
	return v
}

func (v wideValue) isTorn() bool {
	for _, w := range v {
		if w != v[0] {
			return true
		}
	}
	return false
}

func Test_BufferSequential(t *testing.T) {
	t.Run("zero value before any write", func(t *testing.T) {
		var b Buffer[string]
		assert.Equal(t, "", b.Read())
	})

	t.Run("default then written value", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()
		assert.Equal(0, b.Read())

		b.Write(42)
		assert.Equal(42, b.Read())
	})

	t.Run("last write wins", func(t *testing.T) {
		b := NewBuffer[string]()

		b.Write("x")
		b.Write("y")

		assert.Equal(t, "y", b.Read())
	})

	t.Run("progress", func(t *testing.T) {
		const writes = 1_000

		b := NewBuffer[int]()
		for i := 1; i <= writes; i++ {
			b.Write(i)
		}

		assert.Equal(t, writes, b.Read())
	})

	t.Run("idempotent re-read", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()
		b.Write(7)

		first := b.Read()
		second := b.Read()
		assert.Equal(first, second)
		assert.Equal(7, second)
	})

	t.Run("idle state", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()
		for i := range 5 {
			b.Write(i)
			b.Read()

			s := b.load()
			assert.False(s.busy())
			assert.False(s.shouldFlip())
			assert.Equal((i+1)%2, s.active())
		}
	})
}

func Test_BufferWriteFunc(t *testing.T) {
	assert := assert.New(t)

	b := NewBuffer[wideValue]()

	b.WriteFunc(func(slot *wideValue) {
		// Nothing has been written into slot 1 yet
		assert.Equal(wideValue{}, *slot)
		*slot = newWideValue(1)
	})
	assert.Equal(newWideValue(1), b.Read())

	b.WriteFunc(func(slot *wideValue) {
		for i := range slot {
			slot[i] = 2
		}
	})
	assert.Equal(newWideValue(2), b.Read())
}

func Test_BufferDeferredFlip(t *testing.T) {
	t.Run("consumer busy", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()

		// A read is in flight on slot 0
		s := b.setBusy(consumerBusyMask)
		assert.Equal(0, s.active())

		b.Write(1)

		s = b.load()
		assert.True(s.shouldFlip())
		assert.Equal(0, s.active(), "active slot moved under a reader")

		// The reader finishes and resolves the pending flip
		s = b.clearConsumerBusy()
		assert.True(s.shouldFlip())
		assert.Equal(flipCommitted, b.flip())

		s = b.load()
		assert.False(s.shouldFlip())
		assert.Equal(1, s.active())
		assert.Equal(1, b.Read())
	})

	t.Run("generator busy", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()

		b.setBusy(consumerBusyMask)
		b.Write(1)

		// A second write starts before the reader is done,
		// it must target the same (still inactive) slot
		s := b.setBusy(generatorBusyMask)
		assert.Equal(1, s.inactive())
		b.slots[s.inactive()].data = 2

		b.clearConsumerBusy()
		assert.Equal(flipDeferred, b.flip())
		assert.Equal(0, b.load().active())

		b.publish()
		assert.Equal(flipCommitted, b.flip())

		assert.Equal(2, b.Read())
	})

	t.Run("resolved once", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()

		b.setBusy(consumerBusyMask)
		b.Write(1)
		b.clearConsumerBusy()

		// Both sides try to resolve the same request
		assert.Equal(flipCommitted, b.flip())
		assert.Equal(flipNone, b.flip())

		assert.Equal(1, b.load().active())
		assert.Equal(1, b.Read())
	})

	t.Run("eventual visibility", func(t *testing.T) {
		assert := assert.New(t)

		b := NewBuffer[int]()
		b.Write(1)

		b.setBusy(consumerBusyMask)
		b.Write(2)

		// The in-flight read still returns the old value
		v := b.slots[b.load().active()].data
		assert.Equal(1, v)

		if b.clearConsumerBusy().shouldFlip() {
			b.flip()
		}

		assert.Equal(2, b.Read())
	})
}

func Test_BufferConcurrent(t *testing.T) {
	suite := []struct {
		writes int
		yield  bool
	}{
		{1_000, false},
		{1_000, true},
		{100_000, false},
	}

	for _, tCase := range suite {
		tName := fmt.Sprintf("W%d-yield-%t", tCase.writes, tCase.yield)

		t.Run(tName, func(t *testing.T) {
			testConcurrent(t, uint64(tCase.writes), tCase.yield)
		})
	}
}

func testConcurrent(t *testing.T, writes uint64, yield bool) {
	b := NewBuffer[wideValue]()

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()

		for idx := uint64(1); idx <= writes; idx++ {
			b.Write(newWideValue(idx))

			if yield {
				runtime.Gosched()
			}
		}
	}()

	var (
		reads     int
		last      uint64
		torn      int
		regressed int
	)

	go func() {
		defer wg.Done()

		for {
			v := b.Read()
			reads++

			if v.isTorn() {
				torn++
			}

			idx := v[0]
			if idx < last {
				regressed++
			}
			last = idx

			if idx == writes {
				return
			}

			if yield {
				runtime.Gosched()
			}
		}
	}()

	wg.Wait()

	require.Zero(t, torn, "torn reads")
	require.Zero(t, regressed, "non monotonic reads")
	assert.Equal(t, writes, last)

	t.Logf("reads: %d", reads)
}

func Benchmark_Buffer(b *testing.B) {
	b.ReportAllocs()

	b.Run("WriteRead", func(b *testing.B) {
		buf := NewBuffer[int]()

		val := 0
		for b.Loop() {
			buf.Write(val)
			buf.Read()
			val++
		}
	})

	b.Run("WriteReadWide", func(b *testing.B) {
		buf := NewBuffer[wideValue]()
		v := newWideValue(1)

		for b.Loop() {
			buf.Write(v)
			buf.Read()
		}
	})

	b.Run("Contention", func(b *testing.B) {
		buf := NewBuffer[int]()

		done := make(chan struct{})
		go func() {
			val := 0
			for {
				select {
				case <-done:
					return
				default:
				}

				buf.Write(val)
				val++
			}
		}()

		for b.Loop() {
			buf.Read()
		}

		close(done)
	})
}
