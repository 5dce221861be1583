package ospf

import (
	"net/netip"

	"github.com/davidbalbert/miniospf/common"
	"github.com/davidbalbert/miniospf/metrics"
	"github.com/sirupsen/logrus"
)

func (i *Instance) routerBody() lsaBody {
	if i.conf.Version == Version2 {
		return i.routerV2Body()
	}
	return i.routerV3Body()
}

// routerV2Body describes the active network as a transit link once we are
// adjacent with its DR, as a stub network otherwise, and adds a stub for
// every address on the passive interface.
func (i *Instance) routerV2Body() *routerV2Body {
	r := newRouterV2Body(i.conf.routerFlags())
	cost := i.conf.Cost

	if i.link != nil && i.link.state != LinkDown {
		if dr := i.fullDR(); dr != nil {
			r.links.add(routerLinkV2{
				linkType: routerLinkTransit,
				linkID:   i.link.dr,
				linkData: common.AddrToUint32(i.link.addr),
				metric:   cost,
			})
		} else {
			r.links.add(stubLink(i.link.prefix, cost))
		}
	}

	if i.passive != nil {
		for _, p := range i.passive.IPv4() {
			if !r.links.add(stubLink(p, cost)) {
				i.log.WithField("prefix", p).Warn("too many router links, not announcing prefix")
			}
		}
	}

	return r
}

func stubLink(p netip.Prefix, cost uint16) routerLinkV2 {
	mask := ^uint32(0) << (32 - p.Bits())
	return routerLinkV2{
		linkType: routerLinkStub,
		linkID:   common.AddrToUint32(p.Masked().Addr()),
		linkData: mask,
		metric:   cost,
	}
}

func (i *Instance) routerV3Body() *routerV3Body {
	r := newRouterV3Body(i.conf.routerFlags(), i.conf.options())

	if dr := i.fullDR(); dr != nil {
		r.interfaces.add(routerInterface{
			linkType:            routerLinkTransit,
			metric:              i.conf.Cost,
			interfaceID:         uint32(i.link.iface.Index),
			neighborInterfaceID: dr.interfaceID,
			neighborRouterID:    dr.routerID,
		})
	}

	return r
}

// ipv6Prefixes converts the global IPv6 addresses of an interface into
// LSA prefixes.
func (i *Instance) ipv6Prefixes(prefixes []netip.Prefix, metric uint16, l *boundedList[lsaPrefix]) {
	for _, p := range prefixes {
		if !l.add(lsaPrefix{prefix: p.Masked(), metric: metric}) {
			i.log.WithField("prefix", p).Warn("too many prefixes, not announcing prefix")
		}
	}
}

func (i *Instance) linkBody() *linkBody {
	l := newLinkBody(i.conf.options(), i.link.addr)
	i.ipv6Prefixes(i.link.iface.IPv6(), 0, &l.prefixes)
	return l
}

func (i *Instance) intraAreaPrefixBody() *intraAreaPrefixBody {
	p := newIntraAreaPrefixBody(i.conf.RouterID)
	if i.passive != nil {
		i.ipv6Prefixes(i.passive.IPv6(), i.conf.Cost, &p.prefixes)
	}
	return p
}

func (i *Instance) routerLSAType() lsType {
	if i.conf.Version == Version2 {
		return lsTypeRouterV2
	}
	return lsTypeRouterV3
}

func (i *Instance) routerLSAID() uint32 {
	if i.conf.Version == Version2 {
		return uint32(i.conf.RouterID)
	}
	return 0
}

func (i *Instance) originate(t lsType, id uint32, body lsaBody) *LSA {
	l := i.lsdb.originate(t, id, i.conf.RouterID, uint8(i.conf.options()), body, i.clock.Now())
	l.needsFlooding = i.fullDR() != nil

	i.log.WithField("lsa", l.lsaHeader).Info("originated")
	metrics.LSAOriginations.WithLabelValues(t.String()).Inc()
	i.changes.NotifyChange()

	return l
}

// reoriginate gives l a sequence number past seq and floods it if there
// is anyone to flood to.
func (i *Instance) reoriginate(l *LSA, seq int32) {
	i.lsdb.refresh(l, seq, i.clock.Now())
	i.reoriginated(l)
}

func (i *Instance) reoriginated(l *LSA) {
	l.needsFlooding = i.fullDR() != nil

	i.log.WithField("lsa", l.lsaHeader).Debug("reoriginated")
	metrics.LSAOriginations.WithLabelValues(l.lsType.String()).Inc()
	i.changes.NotifyChange()
}

func (i *Instance) rewrite(l *LSA, body lsaBody) bool {
	if !i.lsdb.rewrite(l, body, i.clock.Now()) {
		return false
	}

	i.reoriginated(l)
	return true
}

func (i *Instance) updateRouterLSA() {
	body := i.routerBody()

	l := i.lsdb.locate(i.routerLSAType(), i.routerLSAID())
	if l == nil {
		i.originate(i.routerLSAType(), i.routerLSAID(), body)
		return
	}

	i.rewrite(l, body)
}

// updateLinkLSA keeps the OSPFv3 Link LSA in step with the link. It is
// withdrawn from the database when the link goes away.
func (i *Instance) updateLinkLSA() {
	if i.conf.Version != Version3 {
		return
	}

	l := i.lsdb.locate(lsTypeLink, 0)

	if i.link == nil {
		if l != nil {
			i.log.WithField("lsa", l.key()).Info("retired")
			i.lsdb.remove(l)
			i.changes.NotifyChange()
		}
		return
	}

	body := i.linkBody()
	id := uint32(i.link.iface.Index)

	if l == nil {
		i.originate(lsTypeLink, id, body)
		return
	}

	if l.id != id {
		// The interface came back with a new index.
		i.lsdb.remove(l)
		i.originate(lsTypeLink, id, body)
		return
	}

	i.rewrite(l, body)
}

// updateIntraAreaPrefixLSA announces the passive interface's prefixes in
// OSPFv3. With nothing left to announce the LSA is flushed.
func (i *Instance) updateIntraAreaPrefixLSA() {
	if i.conf.Version != Version3 {
		return
	}

	body := i.intraAreaPrefixBody()

	l := i.lsdb.locate(lsTypeIntraAreaPrefix, 0)
	if l == nil {
		if body.prefixes.len() > 0 {
			i.originate(lsTypeIntraAreaPrefix, 0, body)
		}
		return
	}

	changed := i.rewrite(l, body)
	if changed && body.prefixes.len() == 0 {
		i.log.WithField("lsa", l.key()).Info("no prefixes left, flushing")
		i.expire(l)
	}
}

func (i *Instance) updatePassiveLSA() {
	if i.conf.Version == Version2 {
		i.updateRouterLSA()
	} else {
		i.updateIntraAreaPrefixLSA()
	}
}

func (i *Instance) expire(l *LSA) {
	i.lsdb.expire(l, i.clock.Now())
	l.needsFlooding = i.fullDR() != nil
}

// refreshLSAs reoriginates LSAs that are half way to MaxAge. LSAs we are
// flushing are left to age out.
func (i *Instance) refreshLSAs() {
	now := i.clock.Now()

	for _, l := range i.lsdb.lsas {
		age := l.currentAge(now)
		if age == maxAge || age <= lsRefreshTime {
			continue
		}

		i.log.WithFields(logrus.Fields{"lsa": l.key(), "age": age}).Debug("refreshing")
		i.reoriginate(l, l.seq)
	}
}
