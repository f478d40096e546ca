package gen

import (
	"math/big"

	"github.com/netrack/ppl/pipeline"
	"github.com/netrack/ppl/table"
)

// RouterAction is the action type the router table's entries carry: a
// closure that rewrites the packet's Ethernet destination to the next
// hop and selects the outgoing port.
type RouterAction func(h *Headers, egress *pipeline.EgressMetadata)

// Route returns a RouterAction that forwards out the given egress port
// after rewriting the Ethernet destination to nextHop. This is the
// action a control-plane table-entry insert ultimately compiles down
// to for this program.
func Route(port uint8, nextHop [6]byte) RouterAction {
	return func(h *Headers, egress *pipeline.EgressMetadata) {
		h.Ethernet.Dst = nextHop
		egress.Port = port
	}
}

// ipv6ToSelector renders a 16-byte IPv6 address as the big-integer
// selector value the table package matches LPM keys against.
func ipv6ToSelector(addr [16]byte) *big.Int {
	x := new(big.Int)
	x.SetBytes(addr[:])
	return x
}

// Control looks up the packet's IPv6 destination in router and, on a
// match, invokes the matched entry's action. A packet with no valid
// IPv6 header, or no matching route, is left with egress.Port at zero
// and is dropped by the executor.
func Control(h *Headers, ingress pipeline.IngressMetadata, egress *pipeline.EgressMetadata, router *table.Table[RouterAction]) {
	if !h.IPv6.Valid() {
		return
	}
	matches := router.MatchSelector(table.Selector{ipv6ToSelector(h.IPv6.Dst)})
	if len(matches) == 0 {
		return
	}
	matches[0].Action(h, egress)
}

// NewControl binds router into a pipeline.ControlFunc, the shape the
// executor actually calls. A generated program's control block is
// always a fixed arity of (header, ingress metadata, egress metadata);
// the tables it consults are free variables closed over at
// construction time, exactly as a P4 control's apply block closes over
// the tables declared in its control plane.
func NewControl(router *table.Table[RouterAction]) pipeline.ControlFunc[Headers] {
	return func(h *Headers, ingress pipeline.IngressMetadata, egress *pipeline.EgressMetadata) {
		Control(h, ingress, egress, router)
	}
}
