package ospf

import (
	"time"

	"github.com/davidbalbert/miniospf/metrics"
	"github.com/sirupsen/logrus"
)

// retransmitInterval applies to DD, Request and Update retransmissions.
const retransmitInterval = 10 * time.Second

func (i *Instance) stateChange(n *Neighbor, state NeighborState) {
	old := n.state
	n.state = state

	i.log.WithFields(logrus.Fields{
		"neighbor": n.routerID,
		"from":     old,
		"to":       state,
	}).Info("neighbor state change")
	metrics.NeighborTransitions.WithLabelValues(state.String()).Inc()
	i.changes.NotifyChange()

	switch state {
	case NeighborExStart:
		if n.ddSeq == 0 {
			n.ddSeq = uint32(i.clock.Now().Unix())
		} else {
			n.ddSeq++
		}
		n.ddSent = false
		n.ddFlags = ddInit | ddMore | ddMaster
		n.lastReceivedDD = ddSummary{}
		n.requests.clear()

		i.sendDD(n)
	case NeighborExchange, NeighborLoading:
		if n.requests.len() > 0 {
			i.sendRequest(n)
		}
	}

	if old == NeighborFull && state < NeighborFull {
		n.pendingUpdates = nil
	}

	if n.ident == i.link.dr && (state == NeighborFull || old == NeighborFull) {
		i.updateRouterLSA()
	}
}

// checkAdj brings up adjacencies with a new DR or BDR and tears down the
// ones we no longer need.
func (i *Instance) checkAdj() {
	link := i.link

	for _, n := range link.neighbors {
		if n.state < NeighborTwoWay {
			continue
		}

		if n.ident == link.dr || n.ident == link.bdr {
			if n.state == NeighborTwoWay {
				n.ddSent = false
				n.ddSeq = 0
				i.stateChange(n, NeighborExStart)
			}
		} else if n.state > NeighborTwoWay {
			i.stateChange(n, NeighborTwoWay)
		}
	}
}

func (i *Instance) checkNeighbors(now time.Time) {
	link := i.link
	dead := time.Duration(i.conf.DeadInterval) * time.Second

	pruned := false
	for _, n := range append([]*Neighbor(nil), link.neighbors...) {
		if now.Sub(n.lastSeen) >= dead {
			i.log.WithField("neighbor", n.routerID).Info("neighbor dead")
			link.remove(n)
			pruned = true
		}
	}

	if pruned {
		i.changes.NotifyChange()
		if link.state >= LinkWaiting {
			i.election()
		}
	}

	for _, n := range link.neighbors {
		switch {
		case n.state == NeighborExStart || (n.state == NeighborExchange && n.isMaster()):
			if now.Sub(n.ddLastSent) >= retransmitInterval {
				i.log.WithField("neighbor", n.routerID).Debug("retransmitting DD")
				i.resendDD(n)
			}
		case (n.state == NeighborExchange || n.state == NeighborLoading) && n.requests.len() > 0:
			if now.Sub(n.requestLastSent) >= retransmitInterval {
				i.log.WithField("neighbor", n.routerID).Debug("retransmitting request")
				i.sendRequest(n)
			}
		case n.state == NeighborFull && len(n.pendingUpdates) > 0:
			if now.Sub(n.updateLastSent) >= retransmitInterval {
				i.log.WithField("neighbor", n.routerID).Debug("retransmitting updates")
				i.resendUpdates(n)
			}
		}
	}
}

func (i *Instance) updateNeighborGauge() {
	counts := make(map[NeighborState]int)
	if i.link != nil {
		for _, n := range i.link.neighbors {
			counts[n.state]++
		}
	}

	for _, s := range neighborStates {
		metrics.Neighbors.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
