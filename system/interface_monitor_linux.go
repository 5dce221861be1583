//go:build linux

package system

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
	"go4.org/netipx"
	"golang.org/x/sync/errgroup"
)

type netlinkInterfaceMonitor struct {
	*baseInterfaceMonitor
}

func NewInterfaceMonitor() (InterfaceMonitor, error) {
	ifaces, err := netlinkInterfaces()
	if err != nil {
		return nil, err
	}

	return &netlinkInterfaceMonitor{
		baseInterfaceMonitor: newBaseInterfaceMonitor(ifaces),
	}, nil
}

func netlinkInterfaces() ([]Interface, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	interfaces := make([]Interface, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()

		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses on %s: %w", attrs.Name, err)
		}

		iface := Interface{
			Index: attrs.Index,
			Name:  attrs.Name,
			MTU:   attrs.MTU,
			Flags: attrs.Flags,
		}

		for _, addr := range addrs {
			if addr.IPNet == nil {
				continue
			}
			if p, ok := netipx.FromStdIPNet(addr.IPNet); ok {
				iface.Addrs = append(iface.Addrs, p)
			}
		}
		sortPrefixes(iface.Addrs)

		interfaces = append(interfaces, iface)
	}

	return interfaces, nil
}

// Run re-reads the interface table every time the kernel reports a link
// or address change.
func (m *netlinkInterfaceMonitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	linkUpdates := make(chan netlink.LinkUpdate)
	addrUpdates := make(chan netlink.AddrUpdate)
	subErrs := make(chan error, 2)

	errorCallback := func(err error) {
		select {
		case subErrs <- err:
		default:
		}
	}

	err := netlink.LinkSubscribeWithOptions(linkUpdates, ctx.Done(), netlink.LinkSubscribeOptions{
		ErrorCallback: errorCallback,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to link updates: %w", err)
	}

	err = netlink.AddrSubscribeWithOptions(addrUpdates, ctx.Done(), netlink.AddrSubscribeOptions{
		ErrorCallback: errorCallback,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to address updates: %w", err)
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-subErrs:
				return fmt.Errorf("netlink subscription failed: %w", err)
			case _, ok := <-linkUpdates:
				if !ok {
					return nil
				}
			case _, ok := <-addrUpdates:
				if !ok {
					return nil
				}
			}

			ifaces, err := netlinkInterfaces()
			if err != nil {
				return err
			}

			if err := m.notify(ctx, ifaces); err != nil {
				return nil
			}
		}
	})

	return g.Wait()
}
