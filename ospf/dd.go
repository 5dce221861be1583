package ospf

import (
	"github.com/sirupsen/logrus"
)

func (i *Instance) sendDD(n *Neighbor) {
	now := i.clock.Now()

	d := &databaseDescription{
		mtu:     uint16(i.link.iface.MTU),
		options: i.conf.options(),
		seq:     n.ddSeq,
	}

	// Our whole database fits in one packet, so it goes out in the first
	// DD after negotiation and More is cleared along with it.
	if !n.ddFlags.has(ddInit) && !n.ddSent {
		n.ddFlags &^= ddMore
		d.lsas = i.lsdb.headers(now)
		n.ddSent = true
	}
	d.flags = n.ddFlags

	b := d.appendTo(i.conf.Version, i.newPacket(typeDatabaseDescription))
	n.lastSentDD = finishHeader(i.conf.Version, b)
	n.ddLastSent = now

	i.log.WithFields(logrus.Fields{
		"neighbor": n.routerID,
		"flags":    d.flags,
		"seq":      d.seq,
		"lsas":     len(d.lsas),
	}).Debug("sending DD")

	i.send(typeDatabaseDescription, n.lastSentDD, n.addr)
}

func (i *Instance) resendDD(n *Neighbor) {
	if n.lastSentDD == nil {
		return
	}

	n.ddLastSent = i.clock.Now()
	i.send(typeDatabaseDescription, n.lastSentDD, n.addr)
}

func (i *Instance) processDD(hdr header, d *databaseDescription, n *Neighbor) {
	log := i.log.WithFields(logrus.Fields{
		"neighbor": n.routerID,
		"state":    n.state,
		"flags":    d.flags,
		"seq":      d.seq,
	})

	switch n.state {
	case NeighborOneWay, NeighborTwoWay:
		log.Debug("ignoring DD")
	case NeighborExStart:
		allFlags := ddInit | ddMore | ddMaster

		if d.flags == allFlags && len(d.lsas) == 0 {
			if hdr.routerID <= i.conf.RouterID {
				log.Debug("ignoring master claim from lower router ID")
				return
			}

			// We are the slave.
			n.ddSeq = d.seq
			n.ddFlags &^= ddMaster | ddInit
			i.stateChange(n, NeighborExchange)
		} else if !d.flags.has(ddMaster) && !d.flags.has(ddInit) && d.seq == n.ddSeq && hdr.routerID < i.conf.RouterID {
			// We are the master.
			n.ddFlags &^= ddInit
			i.stateChange(n, NeighborExchange)
		} else {
			log.Debug("ignoring DD during negotiation")
			return
		}

		i.dbDescProc(n, d)
	case NeighborExchange:
		if n.isDuplicateDD(d) {
			i.duplicateDD(n)
			return
		}

		if d.flags.has(ddMaster) != n.lastReceivedDD.flags.has(ddMaster) || d.flags.has(ddInit) {
			log.Info("unexpected DD flags, restarting exchange")
			i.stateChange(n, NeighborExStart)
			return
		}

		if (n.isMaster() && d.seq != n.ddSeq) || (!n.isMaster() && d.seq != n.ddSeq+1) {
			log.WithField("expected", n.ddSeq).Info("DD sequence mismatch, restarting exchange")
			i.stateChange(n, NeighborExStart)
			return
		}

		i.dbDescProc(n, d)
	case NeighborLoading, NeighborFull:
		if n.isDuplicateDD(d) {
			i.duplicateDD(n)
			return
		}

		log.Info("unexpected DD after exchange, restarting exchange")
		i.stateChange(n, NeighborExStart)
	}
}

// duplicateDD handles a repeat of the last DD we received. The master
// retransmits on its own timer, so only the slave answers.
func (i *Instance) duplicateDD(n *Neighbor) {
	if n.isMaster() {
		return
	}

	i.resendDD(n)
}

func (i *Instance) dbDescProc(n *Neighbor, d *databaseDescription) {
	now := i.clock.Now()

	for _, h := range d.lsas {
		local := i.lsdb.match(h.key())
		if local != nil && local.header(now).Compare(h) >= 0 {
			continue
		}

		if n.requests.contains(h.key()) {
			continue
		}

		if n.requests.full() {
			i.log.WithFields(logrus.Fields{"neighbor": n.routerID, "lsa": h.key()}).Debug("request list full")
			continue
		}
		n.requests.add(h.key())
	}

	if n.isMaster() {
		n.ddSeq++

		if !d.flags.has(ddMore) && !n.ddFlags.has(ddMore) {
			i.exchangeDone(n)
		} else {
			i.sendDD(n)
		}
	} else {
		n.ddSeq = d.seq
		i.sendDD(n)

		if !d.flags.has(ddMore) && !n.ddFlags.has(ddMore) {
			i.exchangeDone(n)
		}
	}

	n.lastReceivedDD = ddSummary{options: d.options, flags: d.flags, seq: d.seq}
}

func (i *Instance) exchangeDone(n *Neighbor) {
	if n.requests.len() > 0 {
		i.stateChange(n, NeighborLoading)
	} else {
		i.stateChange(n, NeighborFull)
	}
}
