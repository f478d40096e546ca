// Package ring defines the shared-memory SPSC (single-producer,
// single-consumer) ring transport contract used between the PHY
// adapter and the pipeline executor. Concrete transports (memring for
// in-process tests, shmring for real shared memory) implement these
// interfaces; the executor and the PHY adapter depend only on them.
package ring

import "errors"

// ErrReserveFailed is returned (wrapped with the requested and granted
// counts) when a Producer could not reserve as many slots as a caller
// needed, and the caller's contract requires every reserved slot to be
// writable — the pipeline executor treats this as a fatal transport
// failure for the current batch rather than silently writing a short
// subset of the packets it gathered.
var ErrReserveFailed = errors.New("ring: reserve failed")

// ErrClosed is returned by Consume, Reserve, WriteAt and Produce when
// called after the underlying transport has been torn down (e.g. an
// unmapped shmring). Consumable, Read and ReadMut have no error result.
var ErrClosed = errors.New("ring: transport closed")

// Consumer is the read side of a ring. A caller drains entries with
// Consumable/Read/ReadMut and releases them with Consume once
// processed, matching the reserve/commit shape used on the producer
// side.
type Consumer interface {
	// Consumable returns the number of entries currently available to
	// read without blocking.
	Consumable() int

	// Read returns a read-only view of entry i, 0 <= i < Consumable().
	// The returned slice is only valid until the next Consume call.
	Read(i int) []byte

	// ReadMut returns a mutable view of entry i. The pipeline executor
	// uses this to parse in place without a copy.
	ReadMut(i int) []byte

	// Consume releases the first n entries back to the ring, making
	// their slots available for the producer to reuse. n must not
	// exceed the value last returned by Consumable. It returns
	// ErrClosed if the transport has been torn down.
	Consume(n int) error
}

// Producer is the write side of a ring.
type Producer interface {
	// Reserve claims n slots for writing and returns the number
	// actually reserved, which may be less than n if the ring doesn't
	// have room, and an error only when the transport itself has
	// failed (e.g. ErrClosed) rather than merely being full.
	Reserve(n int) (int, error)

	// WriteAt writes data into the reserved slot at offset i from the
	// start of the most recent Reserve call, at the given byte offset
	// within that slot. It returns an error if the transport has been
	// torn down.
	WriteAt(i, byteOffset int, data []byte) error

	// Produce commits the first n reserved slots, making them visible
	// to the consumer. n must not exceed the value returned by the
	// matching Reserve call. It returns ErrClosed if the transport has
	// been torn down.
	Produce(n int) error
}
