package gen_test

import (
	"net"
	"testing"

	"github.com/netrack/ppl/gen"
	"github.com/netrack/ppl/pipeline"
	"github.com/netrack/ppl/table"
)

func ipv6bytes(t *testing.T, s string) [16]byte {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("invalid IPv6 literal %q", s)
	}
	var b [16]byte
	copy(b[:], ip.To16())
	return b
}

func buildFrame(t *testing.T, dst [16]byte) []byte {
	t.Helper()
	frame := make([]byte, 14+40)
	copy(frame[0:6], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	copy(frame[6:12], []byte{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f})
	frame[12] = 0x86
	frame[13] = 0xdd
	copy(frame[14+24:14+40], dst[:])
	return frame
}

func TestParseThenControlRoutesOnLongestPrefix(t *testing.T) {
	router := table.New[gen.RouterAction]()

	nextHop1 := [6]byte{1, 1, 1, 1, 1, 1}
	nextHop2 := [6]byte{2, 2, 2, 2, 2, 2}

	if err := router.Insert(table.TableEntry[gen.RouterAction]{
		Name:     "supernet",
		Priority: 1,
		Key:      table.KeySet{table.LpmKey(table.Prefix{Addr: net.ParseIP("fd00:4700::").To16(), Len: 24})},
		Action:   gen.Route(1, nextHop1),
	}); err != nil {
		t.Fatal(err)
	}
	if err := router.Insert(table.TableEntry[gen.RouterAction]{
		Name:     "specific",
		Priority: 1,
		Key:      table.KeySet{table.LpmKey(table.Prefix{Addr: net.ParseIP("fd00:4702:0002:0002::").To16(), Len: 64})},
		Action:   gen.Route(2, nextHop2),
	}); err != nil {
		t.Fatal(err)
	}

	control := gen.NewControl(router)

	var h gen.Headers
	frame := buildFrame(t, ipv6bytes(t, "fd00:4702:2:2::1"))
	if !gen.Parse(frame, &h) {
		t.Fatal("Parse rejected a well-formed frame")
	}
	if !h.IPv6.Valid() {
		t.Fatal("expected IPv6 header to be valid")
	}

	var egress pipeline.EgressMetadata
	control(&h, pipeline.IngressMetadata{Port: 1}, &egress)

	if egress.Port != 2 {
		t.Fatalf("egress.Port = %d, want 2 (longest prefix)", egress.Port)
	}
	if h.Ethernet.Dst != nextHop2 {
		t.Fatalf("Ethernet.Dst = %v, want %v", h.Ethernet.Dst, nextHop2)
	}
}

func TestControlDropsUnroutedDestination(t *testing.T) {
	router := table.New[gen.RouterAction]()
	control := gen.NewControl(router)

	var h gen.Headers
	frame := buildFrame(t, ipv6bytes(t, "2001:db8::1"))
	if !gen.Parse(frame, &h) {
		t.Fatal("Parse rejected a well-formed frame")
	}

	var egress pipeline.EgressMetadata
	control(&h, pipeline.IngressMetadata{Port: 1}, &egress)

	if egress.Port != 0 {
		t.Fatalf("egress.Port = %d, want 0 (drop)", egress.Port)
	}
}

func TestParseAcceptsNonIPv6EthernetOnly(t *testing.T) {
	frame := make([]byte, 14)
	frame[12], frame[13] = 0x08, 0x00 // IPv4, unhandled by this program

	var h gen.Headers
	if !gen.Parse(frame, &h) {
		t.Fatal("Parse rejected a bare ethernet frame")
	}
	if h.IPv6.Valid() {
		t.Fatal("expected IPv6 header to stay invalid for a non-IPv6 ethertype")
	}
	if got, want := h.ValidHeaderSize(), 14*8; got != want {
		t.Fatalf("ValidHeaderSize() = %d, want %d", got, want)
	}
}

func TestParseRejectsShortFrame(t *testing.T) {
	var h gen.Headers
	if gen.Parse([]byte{1, 2, 3}, &h) {
		t.Fatal("Parse accepted a frame shorter than an ethernet header")
	}
}
