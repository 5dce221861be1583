package common

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
)

type RouterID uint32
type AreaID uint32

// BackboneArea is area 0.0.0.0.
const BackboneArea AreaID = 0

func dotted(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}

func (r RouterID) String() string {
	return dotted(uint32(r))
}

func (a AreaID) String() string {
	return dotted(uint32(a))
}

// ParseID accepts either an unsigned 32 bit integer or a dotted quad.
func ParseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err == nil {
		return uint32(n), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, fmt.Errorf("%q must be an IPv4 address or an unsigned 32 bit integer", s)
	}

	return AddrToUint32(addr), nil
}

func AddrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func Uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
