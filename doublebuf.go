// Package doublebuf provides a lock-free single writer/single reader
// double buffer.
//
// A generator publishes complete values with Write and a consumer
// retrieves the latest published value with Read. Neither call blocks
// the other and a reader never observes a partially written value.
//
// Exactly one goroutine may write and exactly one goroutine may read
// at any given time.
package doublebuf

import "github.com/FerroO2000/doublebuf/internal/dbuf"

// Reader is the consumer side of a double buffer.
type Reader[T any] interface {
	// Read returns a copy of the latest published value.
	Read() T
}

// Writer is the generator side of a double buffer.
type Writer[T any] interface {
	// Write publishes a complete value.
	Write(v T)
}

// ReadWriter groups the two sides of a double buffer.
type ReadWriter[T any] interface {
	Reader[T]
	Writer[T]
}

// DoubleBuffer is a lock-free spsc generic double buffer.
// The zero value is ready to use.
type DoubleBuffer[T any] = dbuf.Buffer[T]

var _ ReadWriter[int] = (*DoubleBuffer[int])(nil)

// New returns a new double buffer. Until the first write,
// Read returns the zero value of T.
func New[T any]() *DoubleBuffer[T] {
	return dbuf.NewBuffer[T]()
}
