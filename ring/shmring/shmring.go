// Package shmring implements ring.Consumer and ring.Producer over a
// memory-mapped file, giving two independent processes (or a process
// and a privileged helper) a shared ring without a socket or pipe in
// between. The mapping is opened with github.com/edsrzf/mmap-go so the
// same backing file works whether it's a regular file, a tmpfs file,
// or a POSIX shared memory object opened via /dev/shm.
package shmring

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/netrack/ppl/ring"
)

// headerSize is the fixed prefix of the mapping ahead of the slots. Its
// first 8 bytes hold the ring's produced-slot count, little-endian; the
// rest is unused. The reserved count is kept in the Ring value, not in
// the mapping.
const headerSize = 16

// Ring is a fixed-capacity, fixed-slot-size SPSC ring backed by a
// memory-mapped file. Open returns a Ring ready for use as either a
// ring.Consumer or a ring.Producer; which role a given process plays
// is a matter of which of those interfaces it calls, not of any flag
// here.
type Ring struct {
	mu       sync.Mutex
	f        *os.File
	m        mmap.MMap
	capacity int
	slotSize int

	reserved int
	closed   bool
}

// Open maps path, creating and truncating it to the right size if it
// does not already exist at that size. capacity is the number of
// slots and slotSize the fixed byte size of each slot, including its
// 4-byte length prefix; WriteAt past the end of a slot truncates the
// write to fit, since a shared-memory slot cannot grow the way an
// in-process buffer can.
func Open(path string, capacity, slotSize int) (*Ring, error) {
	size := int64(headerSize + capacity*slotSize)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shmring: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: stat %s: %w", path, err)
	}
	if info.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("shmring: truncate %s: %w", path, err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: mmap %s: %w", path, err)
	}

	return &Ring{f: f, m: m, capacity: capacity, slotSize: slotSize}, nil
}

// Close unmaps and closes the backing file. It does not remove path.
// Consume, Reserve, WriteAt and Produce called afterward return
// ring.ErrClosed; Consumable, Read and ReadMut do not check for a
// closed ring.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if err := r.m.Unmap(); err != nil {
		r.f.Close()
		return fmt.Errorf("shmring: unmap: %w", err)
	}
	return r.f.Close()
}

func (r *Ring) produced() int {
	return int(binary.LittleEndian.Uint64(r.m[0:8]))
}

func (r *Ring) setProduced(n int) {
	binary.LittleEndian.PutUint64(r.m[0:8], uint64(n))
}

func (r *Ring) slotLen(i int) int {
	off := headerSize + i*r.slotSize
	return int(binary.LittleEndian.Uint32(r.m[off : off+4]))
}

func (r *Ring) setSlotLen(i, n int) {
	off := headerSize + i*r.slotSize
	binary.LittleEndian.PutUint32(r.m[off:off+4], uint32(n))
}

// slotData returns the payload region of slot i, reserving the first
// 4 bytes of every slot for that slot's length prefix.
func (r *Ring) slotData(i int) []byte {
	off := headerSize + i*r.slotSize + 4
	end := headerSize + (i+1)*r.slotSize
	return r.m[off:end]
}

// Consumable implements ring.Consumer.
func (r *Ring) Consumable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.produced()
}

// Read implements ring.Consumer.
func (r *Ring) Read(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotData(i)[:r.slotLen(i)]
}

// ReadMut implements ring.Consumer.
func (r *Ring) ReadMut(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotData(i)[:r.slotLen(i)]
}

// Consume implements ring.Consumer, shifting the remaining produced
// slots' length prefixes and payloads down to index 0.
func (r *Ring) Consume(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ring.ErrClosed
	}
	produced := r.produced()
	if n > produced {
		panic("shmring: Consume n exceeds Consumable")
	}
	for dst := 0; dst < produced-n; dst++ {
		src := dst + n
		copy(r.slotData(dst), r.slotData(src))
		r.setSlotLen(dst, r.slotLen(src))
	}
	r.setProduced(produced - n)
	return nil
}

// Reserve implements ring.Producer. A short reserve (fewer than n) is
// ordinary ring-full backpressure, not an error; only a closed
// transport is reported as one.
func (r *Ring) Reserve(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ring.ErrClosed
	}
	free := r.capacity - r.produced()
	if n > free {
		n = free
	}
	r.reserved = n
	produced := r.produced()
	for i := 0; i < n; i++ {
		r.setSlotLen(produced+i, 0)
	}
	return n, nil
}

// WriteAt implements ring.Producer. Unlike memring, a shared-memory
// slot has a fixed capacity fixed at Open time; writes that would run
// past it are truncated to fit rather than growing the mapping, since
// growing a live mmap out from under a concurrent reader isn't safe.
func (r *Ring) WriteAt(i, byteOffset int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ring.ErrClosed
	}
	idx := r.produced() + i
	dst := r.slotData(idx)

	avail := len(dst) - byteOffset
	if avail < 0 {
		return nil
	}
	if len(data) > avail {
		data = data[:avail]
	}
	copy(dst[byteOffset:], data)

	need := byteOffset + len(data)
	if need > r.slotLen(idx) {
		r.setSlotLen(idx, need)
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
		panic("shmring: Produce n exceeds reserved")
	}
	r.setProduced(r.produced() + n)
	r.reserved = 0
	return nil
}

// Capacity returns the number of slots the ring was opened with.
func (r *Ring) Capacity() int { return r.capacity }

// SlotSize returns the payload bytes available per slot (the size
// passed to Open minus the internal length prefix).
func (r *Ring) SlotSize() int { return r.slotSize - 4 }
