package ospf

import (
	"encoding/binary"
	"net/netip"

	"github.com/sirupsen/logrus"
)

func (i *Instance) sendRequest(n *Neighbor) {
	b := i.newPacket(typeLinkStateRequest)
	for _, k := range n.requests.all() {
		b = k.appendTo(b)
	}

	n.requestLastSent = i.clock.Now()
	i.send(typeLinkStateRequest, finishHeader(i.conf.Version, b), n.addr)
}

// updateBuilder accumulates encoded LSAs into Link State Update packets.
type updateBuilder struct {
	i     *Instance
	buf   []byte
	count uint32
}

func (i *Instance) newUpdate() *updateBuilder {
	u := &updateBuilder{i: i}
	u.reset()
	return u
}

func (u *updateBuilder) reset() {
	u.buf = binary.BigEndian.AppendUint32(u.i.newPacket(typeLinkStateUpdate), 0)
	u.count = 0
}

func (u *updateBuilder) add(lsa []byte) {
	u.buf = append(u.buf, lsa...)
	u.count++
}

func (u *updateBuilder) len() int {
	return len(u.buf)
}

// bytes finishes the packet. The builder must be reset before reuse.
func (u *updateBuilder) bytes() []byte {
	off := u.i.conf.Version.headerLen()
	binary.BigEndian.PutUint32(u.buf[off:off+4], u.count)
	return finishHeader(u.i.conf.Version, u.buf)
}

func (i *Instance) processRequest(reqs []lsaKey, n *Neighbor) {
	log := i.log.WithFields(logrus.Fields{"neighbor": n.routerID, "state": n.state})

	switch n.state {
	case NeighborExchange, NeighborLoading, NeighborFull:
	case NeighborExStart:
		log.Info("request before exchange, restarting exchange")
		i.stateChange(n, NeighborExStart)
		return
	default:
		// Below ExStart there is no adjacency to restart.
		log.Debug("ignoring request")
		return
	}

	now := i.clock.Now()
	u := i.newUpdate()

	for _, k := range reqs {
		l := i.lsdb.match(k)
		if l == nil {
			log.WithField("lsa", k).Info("request for unknown LSA, restarting exchange")
			i.stateChange(n, NeighborExStart)
			return
		}

		data := l.encode(i.conf.Version, now)
		if u.count > 0 && u.len()+len(data) >= maxPacketSize {
			i.send(typeLinkStateUpdate, u.bytes(), n.addr)
			u.reset()
		}
		u.add(data)
	}

	if u.count > 0 {
		i.send(typeLinkStateUpdate, u.bytes(), n.addr)
	}
}

func (i *Instance) processUpdate(u *linkStateUpdate, n *Neighbor, dst netip.Addr) {
	log := i.log.WithField("neighbor", n.routerID)

	if n.state < NeighborExchange {
		log.WithField("state", n.state).Debug("ignoring update")
		return
	}

	if u.corrupt > 0 {
		log.WithField("count", u.corrupt).Debug("discarding LSAs with bad checksums")
	}

	now := i.clock.Now()
	var acks []lsaHeader

	for _, h := range u.lsas {
		// A newer copy of one of our own LSAs means one from before a
		// restart is still out there. We reassert ours with a higher
		// sequence number rather than adopting it.
		if local := i.lsdb.match(h.key()); local != nil {
			switch local.header(now).Compare(h) {
			case -1:
				log.WithField("lsa", h).Info("neighbor has newer copy of our LSA")
				i.reoriginate(local, h.seq)
			case 0:
				// implied acknowledgement
				n.acknowledge(h)
			}
		}

		if n.requests.remove(h.key()) {
			if n.state == NeighborLoading && n.requests.len() == 0 {
				i.stateChange(n, NeighborFull)
			}
			continue
		}

		acks = append(acks, h)
	}

	if len(acks) == 0 {
		return
	}

	b := i.newPacket(typeLinkStateAcknowledgement)
	for _, h := range acks {
		b = h.appendTo(i.conf.Version, b)
	}

	i.send(typeLinkStateAcknowledgement, finishHeader(i.conf.Version, b), i.ackDestination(n, dst))
}

// ackDestination follows the Update: multicast Updates to AllSPFRouters
// are acknowledged to AllDRouters, other multicasts are echoed, and
// unicast Updates are acknowledged directly.
func (i *Instance) ackDestination(n *Neighbor, dst netip.Addr) netip.Addr {
	if dst == i.conf.Version.AllSPFRouters() {
		return i.conf.Version.AllDRouters()
	} else if dst.IsMulticast() {
		return dst
	}

	return n.addr
}

func (i *Instance) processAck(acks []lsaHeader, n *Neighbor) {
	for _, h := range acks {
		if n.acknowledge(h) {
			i.log.WithFields(logrus.Fields{"neighbor": n.routerID, "lsa": h.key()}).Debug("acknowledged")
		}
	}
}

// fullDR returns the DR if our adjacency with it is Full.
func (i *Instance) fullDR() *Neighbor {
	if i.link == nil || i.link.dr == 0 {
		return nil
	}

	n := i.link.locate(i.link.dr)
	if n == nil || n.state != NeighborFull {
		return nil
	}

	return n
}

// sendUpdate floods every LSA that needs it to AllDRouters and remembers
// them on the DR and BDR until they are acknowledged.
func (i *Instance) sendUpdate() {
	if i.fullDR() == nil {
		return
	}

	now := i.clock.Now()
	u := i.newUpdate()

	var flooded []*LSA
	for _, l := range i.lsdb.lsas {
		if !l.needsFlooding {
			continue
		}

		u.add(l.encode(i.conf.Version, now))
		flooded = append(flooded, l)
	}

	if len(flooded) == 0 {
		return
	}

	i.send(typeLinkStateUpdate, u.bytes(), i.conf.Version.AllDRouters())

	for _, n := range i.link.neighbors {
		if n.ident != i.link.dr && n.ident != i.link.bdr {
			continue
		}

		for _, l := range flooded {
			n.addPendingUpdate(l.header(now), l.encode(i.conf.Version, now))
		}
		n.updateLastSent = now
	}

	for _, l := range flooded {
		l.needsFlooding = false
		i.log.WithField("lsa", l.key()).Debug("flooded")
	}
}

func (i *Instance) resendUpdates(n *Neighbor) {
	u := i.newUpdate()
	for _, p := range n.pendingUpdates {
		if u.count > 0 && u.len()+len(p.data) >= maxPacketSize {
			i.send(typeLinkStateUpdate, u.bytes(), n.addr)
			u.reset()
		}
		u.add(p.data)
	}

	if u.count > 0 {
		i.send(typeLinkStateUpdate, u.bytes(), n.addr)
	}

	n.updateLastSent = i.clock.Now()
}
