package ospf

import (
	"net/netip"
	"testing"

	"github.com/davidbalbert/miniospf/common"
	"github.com/stretchr/testify/assert"
)

func (h *harness) addNeighbor(routerID, addr string, priority uint8, state NeighborState) *Neighbor {
	a := netip.MustParseAddr(addr)
	n := newNeighbor(common.AddrToUint32(a), rid(routerID), a)
	n.priority = priority
	n.state = state
	n.lastSeen = h.clock.Now()

	h.i.link.neighbors = append(h.i.link.neighbors, n)
	return n
}

func newElectionHarness(t *testing.T) *harness {
	h := newHarness(t, testConfig(Version2), eth0V4)
	h.i.start()
	h.sent()
	return h
}

func TestElectionDeclared(t *testing.T) {
	h := newElectionHarness(t)

	a := h.addNeighbor("2.2.2.2", "10.0.0.2", 1, NeighborTwoWay)
	b := h.addNeighbor("3.3.3.3", "10.0.0.3", 1, NeighborTwoWay)
	a.designated = a.ident
	b.designated, b.backup = a.ident, b.ident

	h.i.election()

	assert.Equal(t, a.ident, h.i.link.dr)
	assert.Equal(t, b.ident, h.i.link.bdr)
	assert.Equal(t, LinkDROther, h.i.link.state)

	// Adjacencies with both.
	assert.Equal(t, NeighborExStart, a.state)
	assert.Equal(t, NeighborExStart, b.state)
	assert.Equal(t, []messageType{typeDatabaseDescription, typeDatabaseDescription}, types(h.sent()))
}

func TestElectionIdempotent(t *testing.T) {
	h := newElectionHarness(t)

	a := h.addNeighbor("2.2.2.2", "10.0.0.2", 1, NeighborTwoWay)
	b := h.addNeighbor("3.3.3.3", "10.0.0.3", 1, NeighborTwoWay)
	a.designated = a.ident
	b.designated, b.backup = a.ident, b.ident

	h.i.election()
	h.sent()
	seq := h.i.changes.Seq()

	h.i.election()
	assert.Equal(t, a.ident, h.i.link.dr)
	assert.Equal(t, b.ident, h.i.link.bdr)
	assert.Equal(t, seq, h.i.changes.Seq())
	assert.Empty(t, h.sent())
}

func TestElectionNoneDeclared(t *testing.T) {
	h := newElectionHarness(t)

	h.addNeighbor("2.2.2.2", "10.0.0.2", 1, NeighborTwoWay)
	b := h.addNeighbor("3.3.3.3", "10.0.0.3", 1, NeighborTwoWay)

	h.i.election()

	// The BDR candidate is promoted, leaving no backup.
	assert.Equal(t, b.ident, h.i.link.dr)
	assert.Equal(t, uint32(0), h.i.link.bdr)
}

func TestElectionPriority(t *testing.T) {
	h := newElectionHarness(t)

	a := h.addNeighbor("2.2.2.2", "10.0.0.2", 5, NeighborTwoWay)
	b := h.addNeighbor("3.3.3.3", "10.0.0.3", 1, NeighborTwoWay)
	a.designated = a.ident
	b.designated = b.ident

	h.i.election()

	assert.Equal(t, a.ident, h.i.link.dr)
	assert.Equal(t, uint32(0), h.i.link.bdr)
	assert.Equal(t, NeighborTwoWay, b.state)
}

func TestElectionRouterIDUnsigned(t *testing.T) {
	h := newElectionHarness(t)

	a := h.addNeighbor("200.0.0.1", "10.0.0.2", 1, NeighborTwoWay)
	b := h.addNeighbor("10.0.0.1", "10.0.0.3", 1, NeighborTwoWay)
	a.designated = a.ident
	b.designated = b.ident

	h.i.election()
	assert.Equal(t, a.ident, h.i.link.dr)
}

func TestElectionIneligible(t *testing.T) {
	h := newElectionHarness(t)

	zero := h.addNeighbor("9.9.9.9", "10.0.0.9", 0, NeighborTwoWay)
	oneWay := h.addNeighbor("8.8.8.8", "10.0.0.8", 1, NeighborOneWay)
	zero.designated = zero.ident
	oneWay.designated = oneWay.ident

	h.i.election()

	assert.Equal(t, uint32(0), h.i.link.dr)
	assert.Equal(t, uint32(0), h.i.link.bdr)
	assert.Empty(t, h.sent())
}

func TestElectionDemotesOldDR(t *testing.T) {
	h := newElectionHarness(t)

	a := h.addNeighbor("2.2.2.2", "10.0.0.2", 1, NeighborTwoWay)
	a.designated = a.ident
	h.i.election()
	assert.Equal(t, NeighborExStart, a.state)

	b := h.addNeighbor("3.3.3.3", "10.0.0.3", 1, NeighborTwoWay)
	a.designated = b.ident
	b.designated = b.ident
	h.i.election()

	assert.Equal(t, b.ident, h.i.link.dr)
	assert.Equal(t, a.ident, h.i.link.bdr)
	assert.Equal(t, NeighborExStart, b.state)
	assert.Equal(t, NeighborExStart, a.state, "still adjacent as BDR")

	a.designated, a.backup = b.ident, 0
	c := h.addNeighbor("4.4.4.4", "10.0.0.4", 1, NeighborTwoWay)
	c.designated, c.backup = b.ident, c.ident
	h.i.election()

	assert.Equal(t, c.ident, h.i.link.bdr)
	assert.Equal(t, NeighborTwoWay, a.state)
}
