// Package memring implements ring.Consumer and ring.Producer over a
// plain in-process byte slice, for unit tests and for wiring pipeline
// stages together within a single process without shared memory.
package memring

import (
	"sync"

	"github.com/netrack/ppl/ring"
)

// Ring is a fixed-capacity SPSC ring backed by a slice of byte
// buffers. Each slot starts at the slot size given to New and grows
// when a WriteAt runs past it. The zero value is not usable; construct
// with New.
type Ring struct {
	mu      sync.Mutex
	slots   [][]byte
	lengths []int

	// reserved is the number of slots claimed by the most recent
	// Reserve call but not yet Produce'd.
	reserved int
	// produced is the number of slots holding committed data waiting
	// to be consumed.
	produced int
	// closed marks a ring that Close has torn down; Consume, Reserve,
	// WriteAt and Produce return ring.ErrClosed afterward instead of
	// touching slots. Consumable, Read and ReadMut do not check it.
	closed bool
}

// Close marks the ring as torn down. It has no backing resource to
// release (unlike shmring's mapped file) but exists so callers that
// hold a ring.Consumer/ring.Producer can treat both implementations
// the same way during shutdown.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// New returns a ring with the given capacity (number of slots) and
// slot size in bytes.
func New(capacity, slotSize int) *Ring {
	slots := make([][]byte, capacity)
	for i := range slots {
		slots[i] = make([]byte, slotSize)
	}
	return &Ring{slots: slots, lengths: make([]int, capacity)}
}

// Consumable implements ring.Consumer.
func (r *Ring) Consumable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.produced
}

// Read implements ring.Consumer.
func (r *Ring) Read(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[i][:r.lengths[i]]
}

// ReadMut implements ring.Consumer.
func (r *Ring) ReadMut(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[i][:r.lengths[i]]
}

// Consume implements ring.Consumer. It shifts the remaining produced
// slots to the front of the backing slice and moves the released slot
// buffers behind them; a real shared-memory ring would instead advance
// a wrapping head index, but the visible contract (which entries
// Read(i) addresses after Consume) is the same.
func (r *Ring) Consume(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ring.ErrClosed
	}
	if n > r.produced {
		panic("memring: Consume n exceeds Consumable")
	}
	released := append([][]byte(nil), r.slots[:n]...)
	copy(r.slots, r.slots[n:r.produced])
	copy(r.slots[r.produced-n:], released)
	copy(r.lengths, r.lengths[n:r.produced])
	r.produced -= n
	return nil
}

// Reserve implements ring.Producer. A short reserve (fewer than n) is
// not itself an error: it is ordinary ring-full backpressure, and
// it's left to the caller to decide whether a short reserve is
// acceptable for its use. Only a closed transport is an error here.
func (r *Ring) Reserve(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ring.ErrClosed
	}
	free := len(r.slots) - r.produced
	if n > free {
		n = free
	}
	r.reserved = n
	for i := 0; i < n; i++ {
		r.lengths[r.produced+i] = 0
	}
	return n, nil
}

// WriteAt implements ring.Producer. i indexes the slot within the most
// recent Reserve call, counted from the first free slot.
func (r *Ring) WriteAt(i, byteOffset int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ring.ErrClosed
	}
	idx := r.produced + i
	need := byteOffset + len(data)
	if need > cap(r.slots[idx]) {
		grown := make([]byte, need)
		copy(grown, r.slots[idx])
		r.slots[idx] = grown
	} else if need > len(r.slots[idx]) {
		r.slots[idx] = r.slots[idx][:need]
	}
	copy(r.slots[idx][byteOffset:], data)
	if need > r.lengths[idx] {
		r.lengths[idx] = need
	}
	return nil
}

// Produce implements ring.Producer.
func (r *Ring) Produce(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ring.ErrClosed
	}
	if n > r.reserved {
		panic("memring: Produce n exceeds reserved")
	}
	r.produced += n
	r.reserved = 0
	return nil
}
