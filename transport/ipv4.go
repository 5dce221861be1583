package transport

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// Conn4 carries OSPFv2 over a raw IPv4 socket. The kernel fills in the IP
// header fields we leave zero.
type Conn4 struct {
	raw *ipv4.RawConn
}

func Listen4() (*Conn4, error) {
	conn, err := net.ListenPacket(fmt.Sprintf("ip4:%d", Protocol), "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to open OSPFv2 socket: %w", err)
	}

	raw, err := ipv4.NewRawConn(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open OSPFv2 socket: %w", err)
	}

	if err := raw.SetMulticastLoopback(false); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to disable multicast loopback: %w", err)
	}

	if err := raw.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to enable control messages: %w", err)
	}

	return &Conn4{raw: raw}, nil
}

func (c *Conn4) ReadPacket() (*Packet, error) {
	buf := make([]byte, maxPacketSize)

	h, payload, cm, err := c.raw.ReadFrom(buf)
	if err != nil {
		return nil, err
	}

	p := &Packet{
		Data: payload,
		Src:  fromNetIP(h.Src),
		Dst:  fromNetIP(h.Dst),
	}

	if cm != nil {
		p.IfIndex = cm.IfIndex
	}

	return p, nil
}

func (c *Conn4) WritePacket(p *Packet) error {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TOS:      0xc0,
		TotalLen: ipv4.HeaderLen + len(p.Data),
		TTL:      1,
		Protocol: Protocol,
		Src:      p.Src.AsSlice(),
		Dst:      p.Dst.AsSlice(),
	}

	cm := &ipv4.ControlMessage{IfIndex: p.IfIndex}

	return c.raw.WriteTo(h, p.Data, cm)
}

func (c *Conn4) JoinGroup(ifindex int, group netip.Addr) error {
	ifi, err := interfaceByIndex(ifindex)
	if err != nil {
		return err
	}

	if err := c.raw.SetMulticastInterface(ifi); err != nil {
		return fmt.Errorf("failed to set multicast interface: %w", err)
	}

	return c.raw.JoinGroup(ifi, toNetAddr(group))
}

func (c *Conn4) LeaveGroup(ifindex int, group netip.Addr) error {
	ifi, err := interfaceByIndex(ifindex)
	if err != nil {
		return err
	}

	return c.raw.LeaveGroup(ifi, toNetAddr(group))
}

func (c *Conn4) Close() error {
	return c.raw.Close()
}
