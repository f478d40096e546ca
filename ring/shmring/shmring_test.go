package shmring_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/netrack/ppl/ring"
	"github.com/netrack/ppl/ring/shmring"
)

func TestOpenReserveWriteProduceConsume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	r, err := shmring.Open(path, 4, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if n, err := r.Reserve(2); n != 2 || err != nil {
		t.Fatalf("Reserve(2) = (%d, %v), want (2, nil)", n, err)
	}
	r.WriteAt(0, 0, []byte("hello"))
	r.WriteAt(1, 0, []byte("world!!"))
	r.Produce(2)

	if got := r.Consumable(); got != 2 {
		t.Fatalf("Consumable() = %d, want 2", got)
	}
	if got := r.Read(0); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Read(0) = %q, want %q", got, "hello")
	}
	if got := r.Read(1); !bytes.Equal(got, []byte("world!!")) {
		t.Fatalf("Read(1) = %q, want %q", got, "world!!")
	}

	r.Consume(1)
	if got := r.Read(0); !bytes.Equal(got, []byte("world!!")) {
		t.Fatalf("Read(0) after shift = %q, want %q", got, "world!!")
	}
}

func TestReopenSeesCommittedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	w, err := shmring.Open(path, 2, 32)
	if err != nil {
		t.Fatalf("Open (writer): %v", err)
	}
	w.Reserve(1)
	w.WriteAt(0, 0, []byte("persisted"))
	w.Produce(1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := shmring.Open(path, 2, 32)
	if err != nil {
		t.Fatalf("Open (reader): %v", err)
	}
	defer r.Close()

	if got := r.Consumable(); got != 1 {
		t.Fatalf("Consumable() = %d, want 1", got)
	}
	if got := r.Read(0); !bytes.Equal(got, []byte("persisted")) {
		t.Fatalf("Read(0) = %q, want %q", got, "persisted")
	}
}

func TestWriteAtTruncatesToSlotCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	r, err := shmring.Open(path, 1, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if got, want := r.SlotSize(), 4; got != want {
		t.Fatalf("SlotSize() = %d, want %d", got, want)
	}

	r.Reserve(1)
	r.WriteAt(0, 0, bytes.Repeat([]byte{0xff}, 100))
	r.Produce(1)

	if got := len(r.Read(0)); got != 4 {
		t.Fatalf("Read(0) length = %d, want 4 (truncated to slot capacity)", got)
	}
}

func TestOperationsAfterCloseReturnErrClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	r, err := shmring.Open(path, 2, 32)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := r.Reserve(1); !errors.Is(err, ring.ErrClosed) {
		t.Fatalf("Reserve after Close: err = %v, want ring.ErrClosed", err)
	}
	if err := r.WriteAt(0, 0, []byte("x")); !errors.Is(err, ring.ErrClosed) {
		t.Fatalf("WriteAt after Close: err = %v, want ring.ErrClosed", err)
	}
	if err := r.Produce(1); !errors.Is(err, ring.ErrClosed) {
		t.Fatalf("Produce after Close: err = %v, want ring.ErrClosed", err)
	}
	if err := r.Consume(0); !errors.Is(err, ring.ErrClosed) {
		t.Fatalf("Consume after Close: err = %v, want ring.ErrClosed", err)
	}
}
