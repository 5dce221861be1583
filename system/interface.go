package system

import (
	"net"
	"net/netip"
	"sort"
)

type Interface struct {
	Index int
	Name  string
	MTU   int
	Flags net.Flags
	Addrs []netip.Prefix
}

func (i Interface) IsUp() bool {
	return i.Flags&net.FlagUp != 0
}

func (i Interface) IsLoopback() bool {
	return i.Flags&net.FlagLoopback != 0
}

// IPv4 returns the interface's IPv4 prefixes in address order.
func (i Interface) IPv4() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, p := range i.Addrs {
		if p.Addr().Is4() {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// IPv6 returns the interface's non link-local IPv6 prefixes.
func (i Interface) IPv6() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, p := range i.Addrs {
		if p.Addr().Is6() && !p.Addr().IsLinkLocalUnicast() {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// LinkLocal returns the first IPv6 link-local address on the interface.
func (i Interface) LinkLocal() (netip.Addr, bool) {
	for _, p := range i.Addrs {
		if p.Addr().Is6() && p.Addr().IsLinkLocalUnicast() {
			return p.Addr(), true
		}
	}
	return netip.Addr{}, false
}

func (i Interface) HasAddr(addr netip.Addr) bool {
	for _, p := range i.Addrs {
		if p.Addr() == addr {
			return true
		}
	}
	return false
}

func (i Interface) clone() Interface {
	c := i
	c.Addrs = make([]netip.Prefix, len(i.Addrs))
	copy(c.Addrs, i.Addrs)
	return c
}

func sortPrefixes(prefixes []netip.Prefix) {
	sort.Slice(prefixes, func(a, b int) bool {
		if c := prefixes[a].Addr().Compare(prefixes[b].Addr()); c != 0 {
			return c < 0
		}
		return prefixes[a].Bits() < prefixes[b].Bits()
	})
}

type EventType int

const (
	InterfaceAdded EventType = iota
	InterfaceDeleted
	InterfaceUp
	InterfaceDown
	AddressAdded
	AddressDeleted
)

func (t EventType) String() string {
	switch t {
	case InterfaceAdded:
		return "InterfaceAdded"
	case InterfaceDeleted:
		return "InterfaceDeleted"
	case InterfaceUp:
		return "InterfaceUp"
	case InterfaceDown:
		return "InterfaceDown"
	case AddressAdded:
		return "AddressAdded"
	case AddressDeleted:
		return "AddressDeleted"
	default:
		return "Unknown"
	}
}

// Event describes one change to the system's interfaces. Interface is the
// state of the interface after the change (before it, for InterfaceDeleted).
// Addr is only set for address events.
type Event struct {
	Type      EventType
	Interface Interface
	Addr      netip.Prefix
}

// diff returns the events that turn old into new. Events for an interface
// are ordered: added, address deletions, address additions, up/down, and
// deleted interfaces come last.
func diff(old, new []Interface) []Event {
	before := make(map[int]Interface, len(old))
	for _, iface := range old {
		before[iface.Index] = iface
	}

	var events []Event
	seen := make(map[int]bool, len(new))

	for _, iface := range new {
		seen[iface.Index] = true

		prev, ok := before[iface.Index]
		if !ok {
			events = append(events, Event{Type: InterfaceAdded, Interface: iface})
			for _, p := range iface.Addrs {
				events = append(events, Event{Type: AddressAdded, Interface: iface, Addr: p})
			}
			if iface.IsUp() {
				events = append(events, Event{Type: InterfaceUp, Interface: iface})
			}
			continue
		}

		for _, p := range prev.Addrs {
			if !containsPrefix(iface.Addrs, p) {
				events = append(events, Event{Type: AddressDeleted, Interface: iface, Addr: p})
			}
		}
		for _, p := range iface.Addrs {
			if !containsPrefix(prev.Addrs, p) {
				events = append(events, Event{Type: AddressAdded, Interface: iface, Addr: p})
			}
		}

		if !prev.IsUp() && iface.IsUp() {
			events = append(events, Event{Type: InterfaceUp, Interface: iface})
		} else if prev.IsUp() && !iface.IsUp() {
			events = append(events, Event{Type: InterfaceDown, Interface: iface})
		}
	}

	for _, iface := range old {
		if !seen[iface.Index] {
			events = append(events, Event{Type: InterfaceDeleted, Interface: iface})
		}
	}

	return events
}

func containsPrefix(prefixes []netip.Prefix, p netip.Prefix) bool {
	for _, q := range prefixes {
		if q == p {
			return true
		}
	}
	return false
}
