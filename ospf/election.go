package ospf

import (
	"github.com/davidbalbert/miniospf/metrics"
	"github.com/sirupsen/logrus"
)

func (i *Instance) eligible() []*Neighbor {
	var ns []*Neighbor
	for _, n := range i.link.neighbors {
		if n.priority > 0 && n.state >= NeighborTwoWay {
			ns = append(ns, n)
		}
	}
	return ns
}

// best picks the highest priority, breaking ties with the highest router
// ID.
func best(ns []*Neighbor) *Neighbor {
	var max *Neighbor
	for _, n := range ns {
		if max == nil || n.priority > max.priority || (n.priority == max.priority && n.routerID > max.routerID) {
			max = n
		}
	}
	return max
}

func (i *Instance) electBDR(eligible []*Neighbor) {
	var declared, candidates []*Neighbor
	for _, n := range eligible {
		if n.declaresDR() {
			continue
		}

		if n.declaresBDR() {
			declared = append(declared, n)
		}
		candidates = append(candidates, n)
	}

	if len(declared) > 0 {
		candidates = declared
	}

	if n := best(candidates); n != nil {
		i.link.bdr = n.ident
	} else {
		i.link.bdr = 0
	}
}

func (i *Instance) electDR(eligible []*Neighbor) {
	var declared []*Neighbor
	for _, n := range eligible {
		if n.declaresDR() {
			declared = append(declared, n)
		}
	}

	if n := best(declared); n != nil {
		i.link.dr = n.ident
		return
	}

	// Nobody claims to be DR, so the BDR is promoted.
	var bdr *Neighbor
	for _, n := range eligible {
		if n.ident == i.link.bdr {
			bdr = n
		}
	}

	i.link.bdr = 0
	if bdr != nil {
		i.link.dr = bdr.ident
	} else {
		i.link.dr = 0
	}
}

// election runs the DR/BDR calculation. We have priority 0, so we only
// ever choose between our neighbors.
func (i *Instance) election() {
	link := i.link
	oldDR, oldBDR := link.dr, link.bdr

	eligible := i.eligible()

	// A second pass lets routers promoted by the first one settle.
	i.electBDR(eligible)
	i.electDR(eligible)
	i.electBDR(eligible)
	i.electDR(eligible)

	link.state = LinkDROther
	metrics.Elections.Inc()

	if link.dr != oldDR || link.bdr != oldBDR {
		i.log.WithFields(logrus.Fields{
			"dr":  i.identString(link.dr),
			"bdr": i.identString(link.bdr),
		}).Info("elected")

		i.checkAdj()
		i.changes.NotifyChange()
	}

	if link.dr != oldDR {
		i.updateRouterLSA()
	}
}
