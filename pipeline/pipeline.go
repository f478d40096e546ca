// Package pipeline implements the executor: the single-threaded
// cooperative loop that gathers frames off every ingress ring, runs
// them through a generated parser and control block, and scatters the
// result onto the egress ring the control block selected.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/netrack/ppl/header"
	"github.com/netrack/ppl/pplog"
	"github.com/netrack/ppl/ring"
)

// IngressMetadata is the read-only metadata a control block observes
// about where a packet arrived.
type IngressMetadata struct {
	// Port is the 1-based index of the ingress ring the packet was
	// read from.
	Port uint8
}

// EgressMetadata is the metadata a control block sets to steer a
// packet. Port 0 means drop; any other value is a 1-based index into
// the executor's egress ring slice.
type EgressMetadata struct {
	Port uint8
}

// HeaderPtr constrains P to be a pointer to H that itself implements
// header.Struct. Generated packet structs satisfy header.Struct
// through pointer-receiver methods (ToBitVec and friends mutate
// nothing but are generated alongside SetValid, which does), so the
// executor is generic over the struct type H and carries this second
// parameter to name the pointer type without an explicit type
// assertion on every call.
type HeaderPtr[H any] interface {
	*H
	header.Struct
}

// ParseFunc extracts hdr from the start of content and reports whether
// the packet should continue through the pipeline. A parser returning
// false drops the packet before control ever runs.
type ParseFunc[H any] func(content []byte, hdr *H) bool

// ControlFunc inspects and mutates hdr, reads ingress and sets egress,
// deciding the packet's fate. A control block that leaves egress.Port
// at its zero value drops the packet.
type ControlFunc[H any] func(hdr *H, ingress IngressMetadata, egress *EgressMetadata)

// Executor runs the parse/control loop across a fixed set of ingress
// and egress rings. H is the generated packet struct type; P names its
// pointer type and is inferred at call sites.
type Executor[H any, P HeaderPtr[H]] struct {
	Ingress []ring.Consumer
	Egress  []ring.Producer
	Parse   ParseFunc[H]
	Control ControlFunc[H]

	// Logger records parse drops, control misses, and short egress
	// reserves at debug level; other ring transport errors are returned
	// from Run without being logged. Nil uses pplog.Default().
	Logger *slog.Logger
}

// pending is one packet's outcome after parse and control, queued for
// the batched write to its chosen egress ring.
type pending struct {
	header []byte
	tail   []byte
}

// Run drains every ingress ring once per iteration, in ring order,
// until ctx is canceled. Within one ingress ring's batch, frames are
// reserved and written to their egress rings together, one Reserve and
// Produce call per destination port, rather than per packet: this
// mirrors the original runtime's batched commit, where the cost of a
// ring operation is amortized over everything gathered in one pass
// instead of paid per frame.
//
// Run returns as soon as a ring operation fails. A Consume/WriteAt/
// Produce error means the transport itself is broken (ErrClosed); a
// Reserve call that returns fewer slots than the batch needs is
// treated the same way, wrapped in ErrReserveFailed, rather than
// silently writing only the packets that fit — a caller that wants to
// keep running past a full egress ring needs to size its rings for
// the batches it expects, not have Run drop the overflow quietly.
func Run[H any, P HeaderPtr[H]](ctx context.Context, ex Executor[H, P]) error {
	logger := ex.Logger
	if logger == nil {
		logger = pplog.Default()
	}

	egressQueue := make(map[int][]pending)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for i, ig := range ex.Ingress {
			n := ig.Consumable()
			if n == 0 {
				continue
			}

			for k := range egressQueue {
				delete(egressQueue, k)
			}

			for j := 0; j < n; j++ {
				content := ig.ReadMut(j)

				var hdr H
				ingressMeta := IngressMetadata{Port: uint8(i + 1)}
				egressMeta := EgressMetadata{Port: 0}

				if !ex.Parse(content, &hdr) {
					logger.Debug("dropping frame: parse failed", "ingress_port", ingressMeta.Port, "index", j)
					continue
				}

				parsedSize := P(&hdr).ValidHeaderSize() >> 3

				// The header fields Parse populated may alias
				// content's backing array; Control can mutate them
				// in place. Snapshot the unparsed tail now, before
				// Control runs, so a header mutation can never
				// corrupt payload bytes we still need to re-emit.
				tail := append([]byte(nil), content[parsedSize:]...)

				ex.Control(&hdr, ingressMeta, &egressMeta)

				if egressMeta.Port == 0 {
					logger.Debug("dropping frame: no egress port selected", "ingress_port", ingressMeta.Port, "index", j)
					continue
				}

				newHeader := P(&hdr).ToBitVec().Bytes()
				egressQueue[int(egressMeta.Port)] = append(egressQueue[int(egressMeta.Port)], pending{
					header: newHeader,
					tail:   tail,
				})
			}

			if err := ig.Consume(n); err != nil {
				return fmt.Errorf("pipeline: consume ingress port %d: %w", i+1, err)
			}

			for port, packets := range egressQueue {
				if port < 1 || port > len(ex.Egress) {
					continue
				}
				eg := ex.Egress[port-1]

				reserved, err := eg.Reserve(len(packets))
				if err != nil {
					return fmt.Errorf("pipeline: reserve egress port %d: %w", port, err)
				}
				if reserved < len(packets) {
					logger.Debug("egress ring short reserve, aborting batch", "egress_port", port, "wanted", len(packets), "got", reserved)
					return fmt.Errorf("pipeline: egress port %d: %w: wanted %d, got %d", port, ring.ErrReserveFailed, len(packets), reserved)
				}

				for k := 0; k < reserved; k++ {
					p := packets[k]
					if err := eg.WriteAt(k, 0, p.header); err != nil {
						return fmt.Errorf("pipeline: write egress port %d: %w", port, err)
					}
					if err := eg.WriteAt(k, len(p.header), p.tail); err != nil {
						return fmt.Errorf("pipeline: write egress port %d: %w", port, err)
					}
				}
				if err := eg.Produce(reserved); err != nil {
					return fmt.Errorf("pipeline: produce egress port %d: %w", port, err)
				}
			}
		}
	}
}
