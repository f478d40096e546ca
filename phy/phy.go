// Package phy adapts a ring transport to and from Ethernet frames:
// Frame marshals the dst/src/ethertype/payload wire layout, Phy writes
// frames onto an ingress ring, and Run drains an egress ring. The
// pipeline executor does not use this package; it hands raw frame
// bytes to the generated parser, which decodes the Ethernet header
// itself.
package phy

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/netrack/ppl/encoding"
	"github.com/netrack/ppl/ring"
)

// EthernetHeaderLen is the fixed size, in bytes, of an untagged
// Ethernet II header: 6 bytes destination, 6 bytes source, 2 bytes
// EtherType.
const EthernetHeaderLen = 14

// Frame is a single Ethernet II frame: dst(6) || src(6) ||
// ethertype_be(2) || payload, matching the wire format every PHY
// adapter in the runtime reads and writes. It implements io.WriterTo
// and io.ReaderFrom using the runtime's shared encoding helpers, the
// same marshaling idiom every wire message in this codebase uses.
type Frame struct {
	Dst       [6]byte
	Src       [6]byte
	EtherType uint16
	Payload   []byte
}

// WireLen returns the frame's total on-wire length in bytes.
func (f Frame) WireLen() int {
	return EthernetHeaderLen + len(f.Payload)
}

// WriteTo implements io.WriterTo.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	return encoding.WriteTo(w, f.Dst[:], f.Src[:], f.EtherType, f.Payload)
}

// ReadFrom implements io.ReaderFrom. The header fields are read with a
// fixed binary layout; everything left in r becomes Payload.
func (f *Frame) ReadFrom(r io.Reader) (int64, error) {
	n, err := encoding.ReadFrom(r, &f.Dst, &f.Src, &f.EtherType)
	if err != nil {
		return n, fmt.Errorf("phy: short ethernet header: %w", err)
	}
	payload, err := io.ReadAll(r)
	f.Payload = payload
	return n + int64(len(payload)), err
}

// Marshal renders f in its wire format.
func (f Frame) Marshal() []byte {
	var buf bytes.Buffer
	f.WriteTo(&buf)
	return buf.Bytes()
}

// Unmarshal parses b as an Ethernet II frame.
func Unmarshal(b []byte) (Frame, error) {
	var f Frame
	_, err := f.ReadFrom(bytes.NewReader(b))
	return f, err
}

// Phy is the ingress side of the PHY adapter: it writes frames onto a
// ring for the pipeline executor to pick up, standing in for the
// network interface a real dataplane would read packets from.
type Phy struct {
	ingress ring.Producer
}

// New returns a Phy writing onto the given producer.
func New(ingress ring.Producer) *Phy {
	return &Phy{ingress: ingress}
}

// Write reserves one ring slot per frame and commits them atomically;
// it returns an error without writing anything if the ring doesn't
// have room for the whole batch, or if the ring transport itself has
// failed.
func (p *Phy) Write(frames []Frame) error {
	n, err := p.ingress.Reserve(len(frames))
	if err != nil {
		return fmt.Errorf("phy: reserve: %w", err)
	}
	if n < len(frames) {
		return fmt.Errorf("phy: %w: ring has room for %d of %d frames", ring.ErrReserveFailed, n, len(frames))
	}
	for i, f := range frames {
		if err := p.ingress.WriteAt(i, 0, f.Marshal()); err != nil {
			return fmt.Errorf("phy: write: %w", err)
		}
	}
	if err := p.ingress.Produce(len(frames)); err != nil {
		return fmt.Errorf("phy: produce: %w", err)
	}
	return nil
}

// Run drains the egress ring, calling handler with each frame's raw
// wire bytes, until ctx is canceled or the ring transport fails. It's
// meant to run in its own goroutine, mirroring the original runtime's
// dedicated egress thread per port.
func Run(ctx context.Context, egress ring.Consumer, handler func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n := egress.Consumable()
		if n == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			handler(egress.Read(i))
		}
		if err := egress.Consume(n); err != nil {
			return fmt.Errorf("phy: consume: %w", err)
		}
	}
}
