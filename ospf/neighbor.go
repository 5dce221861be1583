package ospf

import (
	"net/netip"
	"time"

	"github.com/davidbalbert/miniospf/common"
)

const maxRequests = 3

type NeighborState int

const (
	NeighborOneWay NeighborState = iota
	NeighborTwoWay
	NeighborExStart
	NeighborExchange
	NeighborLoading
	NeighborFull
)

var neighborStates = []NeighborState{
	NeighborOneWay,
	NeighborTwoWay,
	NeighborExStart,
	NeighborExchange,
	NeighborLoading,
	NeighborFull,
}

func (ns NeighborState) String() string {
	switch ns {
	case NeighborOneWay:
		return "1-Way"
	case NeighborTwoWay:
		return "2-Way"
	case NeighborExStart:
		return "ExStart"
	case NeighborExchange:
		return "Exchange"
	case NeighborLoading:
		return "Loading"
	case NeighborFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// ddSummary is what we remember of the last DD received, for duplicate
// detection.
type ddSummary struct {
	options uint32
	flags   ddFlags
	seq     uint32
}

// pendingUpdate is an LSA flooded to a neighbor that has not yet been
// acknowledged.
type pendingUpdate struct {
	header lsaHeader
	data   []byte
}

type Neighbor struct {
	// ident is how Hellos refer to this neighbor in their DR and BDR
	// fields: the interface address in OSPFv2, the router ID in OSPFv3.
	ident       uint32
	routerID    common.RouterID
	addr        netip.Addr
	interfaceID uint32
	priority    uint8
	designated  uint32
	backup      uint32
	state       NeighborState
	lastSeen    time.Time

	ddSeq          uint32
	ddFlags        ddFlags
	ddSent         bool
	lastSentDD     []byte
	lastReceivedDD ddSummary

	ddLastSent      time.Time
	requestLastSent time.Time
	updateLastSent  time.Time

	requests       boundedList[lsaKey]
	pendingUpdates []pendingUpdate
}

func newNeighbor(ident uint32, routerID common.RouterID, addr netip.Addr) *Neighbor {
	return &Neighbor{
		ident:    ident,
		routerID: routerID,
		addr:     addr,
		state:    NeighborOneWay,
		requests: newBoundedList[lsaKey](maxRequests),
	}
}

func (n *Neighbor) isMaster() bool {
	return n.ddFlags.has(ddMaster)
}

// declaresDR and declaresBDR report what the neighbor says about itself
// in its Hellos.
func (n *Neighbor) declaresDR() bool {
	return n.designated == n.ident
}

func (n *Neighbor) declaresBDR() bool {
	return n.backup == n.ident
}

func (n *Neighbor) isDuplicateDD(d *databaseDescription) bool {
	return n.lastReceivedDD == ddSummary{options: d.options, flags: d.flags, seq: d.seq}
}

func (n *Neighbor) addPendingUpdate(h lsaHeader, data []byte) {
	for k, p := range n.pendingUpdates {
		if p.header.key() == h.key() {
			if p.header.seq != h.seq {
				n.pendingUpdates[k] = pendingUpdate{header: h, data: data}
			}
			return
		}
	}

	n.pendingUpdates = append(n.pendingUpdates, pendingUpdate{header: h, data: data})
}

func (n *Neighbor) acknowledge(h lsaHeader) bool {
	for k, p := range n.pendingUpdates {
		if p.header.key() == h.key() && p.header.seq == h.seq {
			n.pendingUpdates = append(n.pendingUpdates[:k], n.pendingUpdates[k+1:]...)
			return true
		}
	}

	return false
}
