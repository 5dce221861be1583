// Package transport sends and receives raw OSPF packets (IP protocol 89).
package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// Protocol is the IP protocol number of OSPF.
const Protocol = 89

// maxPacketSize is large enough for any packet on an Ethernet link.
const maxPacketSize = 65535

// Packet is an OSPF packet without its IP header. IfIndex is the
// interface it arrived on or should leave from.
type Packet struct {
	Data    []byte
	Src     netip.Addr
	Dst     netip.Addr
	IfIndex int
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s > %s on %d, %d bytes", p.Src, p.Dst, p.IfIndex, len(p.Data))
}

func toNetAddr(addr netip.Addr) net.Addr {
	return &net.IPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
}

// fromNetIP converts ip, unmapping IPv4-in-IPv6 addresses. A nil or
// malformed ip gives the zero Addr.
func fromNetIP(ip net.IP) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func interfaceByIndex(ifindex int) (*net.Interface, error) {
	ifi, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return nil, fmt.Errorf("interface %d: %w", ifindex, err)
	}
	return ifi, nil
}
