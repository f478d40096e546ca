// Package gen holds the kind of code a PPL program compiles down to: a
// concrete set of header types, a parser, and a control block wired
// against a match-action table. Nothing here is hand-maintained in a
// real deployment — a compiler emits it from a .ppl source file — but
// the runtime packages (header, table, pipeline, phy) don't know that,
// and this package exists to give them something real to run, grounded
// in the same router shape as the project's own end-to-end fixtures.
package gen

import (
	"bytes"
	"fmt"
	"net"

	"github.com/netrack/ppl/bitvec"
	"github.com/netrack/ppl/encoding/binary"
	"github.com/netrack/ppl/header"
)

// EthernetHeader is the fixed 14-byte Ethernet II header: destination
// MAC, source MAC, and EtherType.
type EthernetHeader struct {
	Dst       [6]byte
	Src       [6]byte
	EtherType uint16
	valid     bool
}

// EtherTypeIPv6 is the EtherType value signaling an IPv6 payload.
const EtherTypeIPv6 = 0x86dd

func (h *EthernetHeader) Size() int      { return 14 * 8 }
func (h *EthernetHeader) Valid() bool    { return h.valid }
func (h *EthernetHeader) SetValid(v bool) { h.valid = v }

func (h *EthernetHeader) ToBitVec() bitvec.BitVec {
	var buf bytes.Buffer
	buf.Write(h.Dst[:])
	buf.Write(h.Src[:])
	binary.Write(&buf, binary.BigEndian, h.EtherType)
	return bitvec.FromBytes(buf.Bytes(), 14*8)
}

func (h *EthernetHeader) Dump() string {
	return fmt.Sprintf("ethernet.dst: %s\nethernet.src: %s\nethernet.ethertype: %#04x\nethernet.valid: %v",
		net.HardwareAddr(h.Dst[:]), net.HardwareAddr(h.Src[:]), h.EtherType, h.valid)
}

// IPv6Header is a reduced IPv6 fixed header carrying just the fields
// the router control block needs: next header, hop limit, and the
// source/destination addresses. The version/traffic-class/flow-label
// word and the payload length are carried as opaque fields so ToBitVec
// still reproduces the full 40-byte header on the wire.
type IPv6Header struct {
	VersionClassFlow uint32
	PayloadLen       uint16
	NextHeader       uint8
	HopLimit         uint8
	Src              [16]byte
	Dst              [16]byte
	valid            bool
}

func (h *IPv6Header) Size() int      { return 40 * 8 }
func (h *IPv6Header) Valid() bool    { return h.valid }
func (h *IPv6Header) SetValid(v bool) { h.valid = v }

func (h *IPv6Header) ToBitVec() bitvec.BitVec {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, h.VersionClassFlow)
	binary.Write(&buf, binary.BigEndian, h.PayloadLen)
	buf.WriteByte(h.NextHeader)
	buf.WriteByte(h.HopLimit)
	buf.Write(h.Src[:])
	buf.Write(h.Dst[:])
	return bitvec.FromBytes(buf.Bytes(), 40*8)
}

func (h *IPv6Header) Dump() string {
	return fmt.Sprintf("ipv6.src: %s\nipv6.dst: %s\nipv6.next_header: %d\nipv6.hop_limit: %d\nipv6.valid: %v",
		net.IP(h.Src[:]), net.IP(h.Dst[:]), h.NextHeader, h.HopLimit, h.valid)
}

// Headers is the packet struct this program's parser populates and
// its control block inspects: an Ethernet frame optionally carrying an
// IPv6 packet.
type Headers struct {
	Ethernet EthernetHeader
	IPv6     IPv6Header
}

func (h *Headers) members() []header.Header {
	return []header.Header{&h.Ethernet, &h.IPv6}
}

// ValidHeaderSize implements header.Struct.
func (h *Headers) ValidHeaderSize() int {
	return header.ValidHeaderSize(h.members()...)
}

// ToBitVec implements header.Struct via the shared Pack helper.
func (h *Headers) ToBitVec() bitvec.BitVec {
	return header.Pack(h.members()...)
}

// Dump implements header.Struct.
func (h *Headers) Dump() string {
	return h.Ethernet.Dump() + "\n" + h.IPv6.Dump() + "\n"
}

// Parse populates h from the start of content. It accepts every
// well-formed Ethernet frame; an IPv6 payload is parsed into h.IPv6
// when there's room for a full header, and left invalid otherwise; the
// control block drops a packet whose IPv6 header is invalid.
func Parse(content []byte, h *Headers) bool {
	if len(content) < 14 {
		return false
	}
	copy(h.Ethernet.Dst[:], content[0:6])
	copy(h.Ethernet.Src[:], content[6:12])
	binary.Read(bytes.NewReader(content[12:14]), binary.BigEndian, &h.Ethernet.EtherType)
	h.Ethernet.valid = true

	if h.Ethernet.EtherType != EtherTypeIPv6 {
		return true
	}
	rest := content[14:]
	if len(rest) < 40 {
		return true
	}
	binary.Read(bytes.NewReader(rest[0:4]), binary.BigEndian, &h.IPv6.VersionClassFlow)
	binary.Read(bytes.NewReader(rest[4:6]), binary.BigEndian, &h.IPv6.PayloadLen)
	h.IPv6.NextHeader = rest[6]
	h.IPv6.HopLimit = rest[7]
	copy(h.IPv6.Src[:], rest[8:24])
	copy(h.IPv6.Dst[:], rest[24:40])
	h.IPv6.valid = true

	return true
}
