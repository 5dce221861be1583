package ospf

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/davidbalbert/miniospf/common"
	"github.com/davidbalbert/miniospf/system"
	"github.com/sirupsen/logrus"
)

type LinkState int

const (
	LinkDown LinkState = iota
	LinkWaiting
	LinkDROther
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "Down"
	case LinkWaiting:
		return "Waiting"
	case LinkDROther:
		return "DROther"
	default:
		return "Unknown"
	}
}

// Link is the broadcast network we run OSPF on.
type Link struct {
	iface  system.Interface
	addr   netip.Addr   // IPv4 address in OSPFv2, link-local in OSPFv3
	prefix netip.Prefix // OSPFv2 only

	dr  uint32
	bdr uint32

	neighbors    []*Neighbor
	state        LinkState
	waitingSince time.Time
	lastHello    time.Time
}

func (l *Link) locate(ident uint32) *Neighbor {
	for _, n := range l.neighbors {
		if n.ident == ident {
			return n
		}
	}

	return nil
}

func (l *Link) remove(n *Neighbor) {
	for k, other := range l.neighbors {
		if other == n {
			l.neighbors = append(l.neighbors[:k], l.neighbors[k+1:]...)
			return
		}
	}
}

func (l *Link) netmask() uint32 {
	return ^uint32(0) << (32 - l.prefix.Bits())
}

// usableAddr picks the address OSPF runs from on iface.
func (i *Instance) usableAddr(iface system.Interface) (netip.Addr, netip.Prefix, bool) {
	if i.conf.Version == Version2 {
		prefixes := iface.IPv4()
		if len(prefixes) == 0 {
			return netip.Addr{}, netip.Prefix{}, false
		}
		return prefixes[0].Addr(), prefixes[0], true
	}

	addr, ok := iface.LinkLocal()
	return addr, netip.Prefix{}, ok
}

func (i *Instance) createLink(iface system.Interface) error {
	addr, prefix, ok := i.usableAddr(iface)
	if !ok {
		return fmt.Errorf("no usable %s address on %s", i.conf.Version, iface.Name)
	}

	group := i.conf.Version.AllSPFRouters()
	if err := i.conn.JoinGroup(iface.Index, group); err != nil {
		return fmt.Errorf("failed to join %s on %s: %w", group, iface.Name, err)
	}

	i.link = &Link{
		iface:  iface,
		addr:   addr,
		prefix: prefix,
		state:  LinkDown,
	}

	i.log.WithFields(logrus.Fields{"interface": iface.Name, "addr": addr}).Info("link created")

	i.updateLinkLSA()
	i.updateRouterLSA()
	i.changes.NotifyChange()

	return nil
}

// tryCreateLink is createLink for the event path, where failure just means
// waiting for the next change.
func (i *Instance) tryCreateLink(iface system.Interface) {
	if err := i.createLink(iface); err != nil {
		i.log.WithError(err).Debug("not creating link")
		return
	}

	if iface.IsUp() {
		i.linkUp()
	}
}

func (i *Instance) destroyLink() {
	if i.link == nil {
		return
	}

	group := i.conf.Version.AllSPFRouters()
	if err := i.conn.LeaveGroup(i.link.iface.Index, group); err != nil {
		i.log.WithError(err).Warn("failed to leave group")
	}

	i.log.WithField("interface", i.link.iface.Name).Info("link destroyed")
	i.link = nil

	i.updateLinkLSA()
	i.updateRouterLSA()
	i.changes.NotifyChange()
}

func (i *Instance) linkUp() {
	if i.link.state >= LinkWaiting {
		return
	}

	i.link.state = LinkWaiting
	i.link.waitingSince = i.clock.Now()
	i.log.WithField("interface", i.link.iface.Name).Info("link waiting")

	i.sendHello()
	i.updateRouterLSA()
	i.changes.NotifyChange()
}

func (i *Instance) linkDown() {
	if i.link.state == LinkDown {
		return
	}

	i.link.neighbors = nil
	i.link.dr, i.link.bdr = 0, 0
	i.link.state = LinkDown
	i.log.WithField("interface", i.link.iface.Name).Info("link down")

	i.updateRouterLSA()
	i.changes.NotifyChange()
}

func (i *Instance) handleEvent(e system.Event) {
	i.log.WithFields(logrus.Fields{"event": e.Type, "interface": e.Interface.Name}).Debug("interface event")

	switch e.Interface.Name {
	case i.conf.Interface:
		i.handleActiveEvent(e)
	case i.conf.Passive:
		i.handlePassiveEvent(e)
	}
}

func (i *Instance) handleActiveEvent(e system.Event) {
	if i.link == nil {
		if e.Type != system.InterfaceDeleted && e.Type != system.InterfaceDown {
			i.tryCreateLink(e.Interface)
		}
		return
	}

	switch e.Type {
	case system.InterfaceDeleted:
		i.destroyLink()
	case system.InterfaceUp:
		i.link.iface = e.Interface
		i.linkUp()
	case system.InterfaceDown:
		i.link.iface = e.Interface
		i.linkDown()
	case system.AddressDeleted:
		if e.Addr.Addr() == i.link.addr {
			i.destroyLink()
			i.tryCreateLink(e.Interface)
			return
		}

		i.link.iface = e.Interface
		i.updateLinkLSA()
		i.updateRouterLSA()
	case system.AddressAdded, system.InterfaceAdded:
		i.link.iface = e.Interface
		i.updateLinkLSA()
		i.updateRouterLSA()
	}
}

func (i *Instance) handlePassiveEvent(e system.Event) {
	if e.Type == system.InterfaceDeleted {
		i.passive = nil
	} else {
		iface := e.Interface
		i.passive = &iface
	}

	i.updatePassiveLSA()
}

func (i *Instance) sendHello() {
	link := i.link

	h := &hello{
		options:       i.conf.options(),
		helloInterval: i.conf.HelloInterval,
		deadInterval:  i.conf.DeadInterval,
		designated:    link.dr,
		backup:        link.bdr,
	}

	if i.conf.Version == Version2 {
		h.networkMask = link.netmask()
	} else {
		h.interfaceID = uint32(link.iface.Index)
	}

	for _, n := range link.neighbors {
		h.neighbors = append(h.neighbors, n.routerID)
	}

	b := h.appendTo(i.conf.Version, i.newPacket(typeHello))
	i.send(typeHello, finishHeader(i.conf.Version, b), i.conf.Version.AllSPFRouters())

	link.lastHello = i.clock.Now()
}

func (i *Instance) neighborIdent(hdr header, src netip.Addr) uint32 {
	if i.conf.Version == Version2 {
		return common.AddrToUint32(src)
	}
	return uint32(hdr.routerID)
}

func (i *Instance) processHello(hdr header, h *hello, src netip.Addr) {
	link := i.link

	if h.helloInterval != i.conf.HelloInterval || h.deadInterval != i.conf.DeadInterval {
		i.log.WithFields(logrus.Fields{
			"neighbor": hdr.routerID,
			"hello":    h.helloInterval,
			"dead":     h.deadInterval,
		}).Debug("hello with mismatched timers")
		i.drop("timers")
		return
	}

	ident := i.neighborIdent(hdr, src)
	n := link.locate(ident)
	if n == nil {
		n = newNeighbor(ident, hdr.routerID, src)
		link.neighbors = append(link.neighbors, n)
		i.log.WithFields(logrus.Fields{"neighbor": hdr.routerID, "addr": src}).Info("new neighbor")
		i.changes.NotifyChange()
	}

	n.routerID = hdr.routerID
	n.addr = src
	n.priority = h.priority
	n.designated = h.designated
	n.backup = h.backup
	n.interfaceID = h.interfaceID
	n.lastSeen = i.clock.Now()

	changed := false
	listed := h.lists(i.conf.RouterID)
	if listed && n.state < NeighborTwoWay {
		i.stateChange(n, NeighborTwoWay)
		changed = true
	} else if !listed && n.state >= NeighborTwoWay {
		i.stateChange(n, NeighborOneWay)
		changed = true
	}

	switch link.state {
	case LinkWaiting:
		if n.declaresBDR() || (n.declaresDR() && n.backup == 0) {
			i.log.WithField("neighbor", n.routerID).Debug("backup seen, ending wait")
			i.election()
		}
	case LinkDROther:
		if changed {
			i.election()
		}
	}
}
