package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/netrack/ppl/bitvec"
	"github.com/netrack/ppl/pipeline"
	"github.com/netrack/ppl/ring"
	"github.com/netrack/ppl/ring/memring"
)

// tagHeader is a minimal header.Struct used only to exercise the
// executor loop: a single one-byte tag field.
type tagHeader struct {
	tag   byte
	valid bool
}

func (h *tagHeader) ValidHeaderSize() int {
	if !h.valid {
		return 0
	}
	return 8
}

func (h *tagHeader) ToBitVec() bitvec.BitVec {
	if !h.valid {
		return bitvec.New(0)
	}
	return bitvec.FromUint64(uint64(h.tag), 8)
}

func (h *tagHeader) Dump() string {
	return "tag"
}

func parseTag(content []byte, h *tagHeader) bool {
	if len(content) == 0 {
		return false
	}
	h.tag = content[0]
	h.valid = true
	return true
}

// controlBounce rewrites the tag by adding one and forwards to port 1,
// except a sentinel tag that's dropped outright.
func controlBounce(h *tagHeader, ingress pipeline.IngressMetadata, egress *pipeline.EgressMetadata) {
	if h.tag == 0xff {
		return // egress.Port stays 0: drop
	}
	h.tag++
	egress.Port = 1
}

func waitFor(t *testing.T, r *memring.Ring, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if r.Consumable() >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d entries, got %d", n, r.Consumable())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestExecutorForwardsAndRewritesHeader(t *testing.T) {
	ingress := memring.New(4, 64)
	egress := memring.New(4, 64)

	ex := pipeline.Executor[tagHeader, *tagHeader]{
		Ingress: []ring.Consumer{ingress},
		Egress:  []ring.Producer{egress},
		Parse:   parseTag,
		Control: controlBounce,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipeline.Run[tagHeader, *tagHeader](ctx, ex)

	ingress.Reserve(1)
	ingress.WriteAt(0, 0, []byte{5, 'p', 'a', 'y'})
	ingress.Produce(1)

	waitFor(t, egress, 1)

	got := egress.Read(0)
	if len(got) != 4 {
		t.Fatalf("egress frame length = %d, want 4", len(got))
	}
	if got[0] != 6 {
		t.Fatalf("rewritten tag = %d, want 6", got[0])
	}
	if string(got[1:]) != "pay" {
		t.Fatalf("tail = %q, want %q", got[1:], "pay")
	}
}

func TestExecutorDropsSentinelTag(t *testing.T) {
	ingress := memring.New(4, 64)
	egress := memring.New(4, 64)

	ex := pipeline.Executor[tagHeader, *tagHeader]{
		Ingress: []ring.Consumer{ingress},
		Egress:  []ring.Producer{egress},
		Parse:   parseTag,
		Control: controlBounce,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipeline.Run[tagHeader, *tagHeader](ctx, ex)

	ingress.Reserve(1)
	ingress.WriteAt(0, 0, []byte{0xff, 'x'})
	ingress.Produce(1)

	// Push a second, non-dropped frame to confirm the loop kept
	// running past the drop rather than getting stuck.
	ingress.Reserve(1)
	ingress.WriteAt(0, 0, []byte{1, 'y'})
	ingress.Produce(1)

	waitFor(t, egress, 1)
	if got := egress.Read(0); got[0] != 2 {
		t.Fatalf("tag = %d, want 2 (sentinel frame should have been dropped)", got[0])
	}
	time.Sleep(20 * time.Millisecond)
	if got := egress.Consumable(); got != 1 {
		t.Fatalf("Consumable() = %d, want 1 (no extra frame produced)", got)
	}
}

func TestRunAbortsWhenEgressRingCannotReserveWholeBatch(t *testing.T) {
	ingress := memring.New(4, 64)
	egress := memring.New(1, 64) // room for only one packet per batch

	ex := pipeline.Executor[tagHeader, *tagHeader]{
		Ingress: []ring.Consumer{ingress},
		Egress:  []ring.Producer{egress},
		Parse:   parseTag,
		Control: controlBounce,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- pipeline.Run[tagHeader, *tagHeader](ctx, ex) }()

	ingress.Reserve(2)
	ingress.WriteAt(0, 0, []byte{1, 'a'})
	ingress.WriteAt(1, 0, []byte{2, 'b'})
	ingress.Produce(2)

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("Run returned nil error, want a wrapped ring.ErrReserveFailed")
		}
		if !errors.Is(err, ring.ErrReserveFailed) {
			t.Fatalf("Run error = %v, want ring.ErrReserveFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to abort")
	}
}
