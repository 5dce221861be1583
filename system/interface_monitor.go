package system

import (
	"context"
	"net"

	"go4.org/netipx"
)

type InterfaceMonitor interface {
	Run(context.Context) error
	Events() <-chan Event
	Interfaces() []Interface
	InterfaceByName(name string) (Interface, bool)
}

func getInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	interfaces := make([]Interface, 0, len(ifaces))
	for _, netif := range ifaces {
		addrs, err := netif.Addrs()
		if err != nil {
			return nil, err
		}

		iface := Interface{
			Index: netif.Index,
			Name:  netif.Name,
			MTU:   netif.MTU,
			Flags: netif.Flags,
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if p, ok := netipx.FromStdIPNet(ipnet); ok {
				iface.Addrs = append(iface.Addrs, p)
			}
		}
		sortPrefixes(iface.Addrs)

		interfaces = append(interfaces, iface)
	}

	return interfaces, nil
}

// baseInterfaceMonitor owns the current interface snapshot. Platform
// monitors call notify with a fresh snapshot whenever something may have
// changed, and the differences are delivered on the events channel.
type baseInterfaceMonitor struct {
	events     chan Event
	interfaces chan []Interface
}

func newBaseInterfaceMonitor(initial []Interface) *baseInterfaceMonitor {
	interfaces := make(chan []Interface, 1)
	interfaces <- initial

	return &baseInterfaceMonitor{
		events:     make(chan Event, 64),
		interfaces: interfaces,
	}
}

func (m *baseInterfaceMonitor) notify(ctx context.Context, latest []Interface) error {
	old := <-m.interfaces
	m.interfaces <- latest

	for _, e := range diff(old, latest) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m.events <- e:
		}
	}

	return nil
}

func (m *baseInterfaceMonitor) Events() <-chan Event {
	return m.events
}

func (m *baseInterfaceMonitor) Interfaces() []Interface {
	i1 := <-m.interfaces
	m.interfaces <- i1

	i2 := make([]Interface, len(i1))
	for i, iface := range i1 {
		i2[i] = iface.clone()
	}

	return i2
}

func (m *baseInterfaceMonitor) InterfaceByName(name string) (Interface, bool) {
	ifaces := <-m.interfaces
	m.interfaces <- ifaces

	for _, iface := range ifaces {
		if iface.Name == name {
			return iface.clone(), true
		}
	}

	return Interface{}, false
}
