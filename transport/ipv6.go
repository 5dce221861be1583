package transport

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/net/ipv6"
)

// checksumOffset is where the OSPFv3 checksum lives. The kernel computes it
// over the IPv6 pseudo-header.
const checksumOffset = 12

// Conn6 carries OSPFv3 over a raw IPv6 socket.
type Conn6 struct {
	pc *ipv6.PacketConn
}

func Listen6() (*Conn6, error) {
	conn, err := net.ListenPacket(fmt.Sprintf("ip6:%d", Protocol), "::")
	if err != nil {
		return nil, fmt.Errorf("failed to open OSPFv3 socket: %w", err)
	}

	c := &Conn6{pc: ipv6.NewPacketConn(conn)}

	if err := c.configure(); err != nil {
		c.pc.Close()
		return nil, err
	}

	return c, nil
}

func (c *Conn6) configure() error {
	if err := c.pc.SetChecksum(true, checksumOffset); err != nil {
		return fmt.Errorf("failed to enable checksum offload: %w", err)
	}

	if err := c.pc.SetHopLimit(1); err != nil {
		return fmt.Errorf("failed to set hop limit: %w", err)
	}

	if err := c.pc.SetMulticastHopLimit(1); err != nil {
		return fmt.Errorf("failed to set multicast hop limit: %w", err)
	}

	if err := c.pc.SetTrafficClass(0xc0); err != nil {
		return fmt.Errorf("failed to set traffic class: %w", err)
	}

	if err := c.pc.SetMulticastLoopback(false); err != nil {
		return fmt.Errorf("failed to disable multicast loopback: %w", err)
	}

	if err := c.pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		return fmt.Errorf("failed to enable control messages: %w", err)
	}

	return nil
}

func (c *Conn6) ReadPacket() (*Packet, error) {
	buf := make([]byte, maxPacketSize)

	n, cm, src, err := c.pc.ReadFrom(buf)
	if err != nil {
		return nil, err
	}

	p := &Packet{Data: buf[:n]}

	if ipa, ok := src.(*net.IPAddr); ok {
		p.Src = fromNetIP(ipa.IP)
	}

	if cm != nil {
		p.Dst = fromNetIP(cm.Dst)
		p.IfIndex = cm.IfIndex
	}

	return p, nil
}

func (c *Conn6) WritePacket(p *Packet) error {
	cm := &ipv6.ControlMessage{
		Src:     p.Src.AsSlice(),
		IfIndex: p.IfIndex,
	}

	dst := &net.IPAddr{IP: p.Dst.AsSlice(), Zone: strconv.Itoa(p.IfIndex)}

	_, err := c.pc.WriteTo(p.Data, cm, dst)
	return err
}

func (c *Conn6) JoinGroup(ifindex int, group netip.Addr) error {
	ifi, err := interfaceByIndex(ifindex)
	if err != nil {
		return err
	}

	if err := c.pc.SetMulticastInterface(ifi); err != nil {
		return fmt.Errorf("failed to set multicast interface: %w", err)
	}

	return c.pc.JoinGroup(ifi, toNetAddr(group))
}

func (c *Conn6) LeaveGroup(ifindex int, group netip.Addr) error {
	ifi, err := interfaceByIndex(ifindex)
	if err != nil {
		return err
	}

	return c.pc.LeaveGroup(ifi, toNetAddr(group))
}

func (c *Conn6) Close() error {
	return c.pc.Close()
}
