package bitvec_test

import (
	"testing"

	"github.com/netrack/ppl/bitvec"
)

func TestNewIsZeroed(t *testing.T) {
	v := bitvec.New(12)
	if v.Len() != 12 {
		t.Fatalf("Len() = %d, want 12", v.Len())
	}
	for i := 0; i < 12; i++ {
		if v.Bit(i) {
			t.Fatalf("bit %d set in freshly allocated vector", i)
		}
	}
}

func TestSetBitAndBit(t *testing.T) {
	v := bitvec.New(8)
	v.SetBit(0, true)
	v.SetBit(7, true)

	if !v.Bit(0) || !v.Bit(7) {
		t.Fatal("expected bits 0 and 7 set")
	}
	if v.Bytes()[0] != 0x81 {
		t.Fatalf("Bytes()[0] = %#x, want 0x81", v.Bytes()[0])
	}
}

func TestOrAssign(t *testing.T) {
	dst := bitvec.New(16)
	src := bitvec.FromUint64(0xab, 8)

	dst.OrAssign(8, src)
	if dst.Bytes()[0] != 0x00 || dst.Bytes()[1] != 0xab {
		t.Fatalf("got %#v, want [0x00 0xab]", dst.Bytes())
	}
}

func TestSliceIsByteAligned(t *testing.T) {
	v := bitvec.FromUint64(0b1011_0010, 8)
	s := v.Slice(2, 6)

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	if s.Uint64() != 0b1100 {
		t.Fatalf("Uint64() = %#b, want 0b1100", s.Uint64())
	}
}

func TestUint64RoundTrip(t *testing.T) {
	for _, want := range []uint64{0, 1, 0xff, 0x1234, (1 << 32) - 1} {
		bits := 32
		v := bitvec.FromUint64(want&((1<<32)-1), bits)
		if got := v.Uint64(); got != want&((1<<32)-1) {
			t.Fatalf("round trip %#x: got %#x", want, got)
		}
	}
}

func TestStringDumpsBinary(t *testing.T) {
	v := bitvec.FromUint64(0b1010, 4)
	if got, want := v.String(), "1010"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
