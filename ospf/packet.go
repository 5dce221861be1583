package ospf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/davidbalbert/miniospf/common"
)

type Version uint8

const (
	Version2 Version = 2
	Version3 Version = 3
)

func (v Version) String() string {
	return fmt.Sprintf("OSPFv%d", uint8(v))
}

func (v Version) Valid() bool {
	return v == Version2 || v == Version3
}

func (v Version) headerLen() int {
	if v == Version2 {
		return 24
	}
	return 16
}

var (
	allSPFRoutersV2 = netip.MustParseAddr("224.0.0.5")
	allDRoutersV2   = netip.MustParseAddr("224.0.0.6")
	allSPFRoutersV3 = netip.MustParseAddr("ff02::5")
	allDRoutersV3   = netip.MustParseAddr("ff02::6")
)

func (v Version) AllSPFRouters() netip.Addr {
	if v == Version2 {
		return allSPFRoutersV2
	}
	return allSPFRoutersV3
}

func (v Version) AllDRouters() netip.Addr {
	if v == Version2 {
		return allDRoutersV2
	}
	return allDRoutersV3
}

type messageType uint8

const (
	typeHello                    messageType = 1
	typeDatabaseDescription      messageType = 2
	typeLinkStateRequest         messageType = 3
	typeLinkStateUpdate          messageType = 4
	typeLinkStateAcknowledgement messageType = 5
)

func (t messageType) String() string {
	switch t {
	case typeHello:
		return "Hello"
	case typeDatabaseDescription:
		return "Database Description"
	case typeLinkStateRequest:
		return "Link State Request"
	case typeLinkStateUpdate:
		return "Link State Update"
	case typeLinkStateAcknowledgement:
		return "Link State Acknowledgement"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// maxPacketSize bounds Update packets built in answer to requests.
const maxPacketSize = 1500

type header struct {
	version     Version
	messageType messageType
	length      uint16
	routerID    common.RouterID
	areaID      common.AreaID
	instanceID  uint8 // v3
}

// fillHeader appends the fixed header with zeroed length and checksum.
func fillHeader(b []byte, v Version, t messageType, routerID common.RouterID, areaID common.AreaID, instanceID uint8) []byte {
	b = append(b, uint8(v), uint8(t), 0, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(routerID))
	b = binary.BigEndian.AppendUint32(b, uint32(areaID))
	b = append(b, 0, 0) // checksum

	if v == Version2 {
		// AuType 0 and an empty authentication field
		b = append(b, make([]byte, 10)...)
	} else {
		b = append(b, instanceID, 0)
	}

	return b
}

// finishHeader stores the packet length and, for OSPFv2, the checksum.
// The kernel computes the OSPFv3 checksum over the IPv6 pseudo-header.
func finishHeader(v Version, b []byte) []byte {
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))

	if v == Version2 {
		binary.BigEndian.PutUint16(b[12:14], 0)
		binary.BigEndian.PutUint16(b[12:14], checksum(b[:16], b[24:]))
	}

	return b
}

// validateHeader checks the fixed header of a received packet and returns
// it along with the body.
func validateHeader(v Version, data []byte) (header, []byte, error) {
	if len(data) < v.headerLen() {
		return header{}, nil, errors.New("packet too short")
	}

	if Version(data[0]) != v {
		return header{}, nil, fmt.Errorf("version mismatch: got %d", data[0])
	}

	h := header{
		version:     v,
		messageType: messageType(data[1]),
		length:      binary.BigEndian.Uint16(data[2:4]),
		routerID:    common.RouterID(binary.BigEndian.Uint32(data[4:8])),
		areaID:      common.AreaID(binary.BigEndian.Uint32(data[8:12])),
	}

	if int(h.length) != len(data) {
		return header{}, nil, fmt.Errorf("length mismatch: header says %d, got %d", h.length, len(data))
	}

	if v == Version2 {
		if binary.BigEndian.Uint16(data[14:16]) != 0 {
			return header{}, nil, errors.New("unsupported authentication type")
		}

		if checksum(data[:16], data[24:]) != 0 {
			return header{}, nil, errors.New("bad checksum")
		}
	} else {
		h.instanceID = data[14]
	}

	return h, data[v.headerLen():], nil
}

type hello struct {
	networkMask   uint32 // v2
	interfaceID   uint32 // v3
	priority      uint8
	options       uint32
	helloInterval uint16
	deadInterval  uint32
	designated    uint32
	backup        uint32
	neighbors     []common.RouterID
}

func (h *hello) appendTo(v Version, b []byte) []byte {
	if v == Version2 {
		b = binary.BigEndian.AppendUint32(b, h.networkMask)
		b = binary.BigEndian.AppendUint16(b, h.helloInterval)
		b = append(b, uint8(h.options), h.priority)
		b = binary.BigEndian.AppendUint32(b, h.deadInterval)
	} else {
		b = binary.BigEndian.AppendUint32(b, h.interfaceID)
		b = append(b, h.priority)
		b = appendOptions(b, h.options)
		b = binary.BigEndian.AppendUint16(b, h.helloInterval)
		b = binary.BigEndian.AppendUint16(b, uint16(h.deadInterval))
	}

	b = binary.BigEndian.AppendUint32(b, h.designated)
	b = binary.BigEndian.AppendUint32(b, h.backup)
	for _, n := range h.neighbors {
		b = binary.BigEndian.AppendUint32(b, uint32(n))
	}

	return b
}

func (h *hello) lists(id common.RouterID) bool {
	for _, n := range h.neighbors {
		if n == id {
			return true
		}
	}
	return false
}

func decodeHello(v Version, b []byte) (*hello, error) {
	if len(b) < 20 {
		return nil, errors.New("hello packet too short")
	}

	h := &hello{}
	if v == Version2 {
		h.networkMask = binary.BigEndian.Uint32(b[0:4])
		h.helloInterval = binary.BigEndian.Uint16(b[4:6])
		h.options = uint32(b[6])
		h.priority = b[7]
		h.deadInterval = binary.BigEndian.Uint32(b[8:12])
	} else {
		h.interfaceID = binary.BigEndian.Uint32(b[0:4])
		h.priority = b[4]
		h.options = decodeOptions(b[5:8])
		h.helloInterval = binary.BigEndian.Uint16(b[8:10])
		h.deadInterval = uint32(binary.BigEndian.Uint16(b[10:12]))
	}

	h.designated = binary.BigEndian.Uint32(b[12:16])
	h.backup = binary.BigEndian.Uint32(b[16:20])

	rest := b[20:]
	if len(rest)%4 != 0 {
		return nil, errors.New("hello neighbor list misaligned")
	}
	for len(rest) > 0 {
		h.neighbors = append(h.neighbors, common.RouterID(binary.BigEndian.Uint32(rest[0:4])))
		rest = rest[4:]
	}

	return h, nil
}

type ddFlags uint8

const (
	ddMaster ddFlags = 1 << 0
	ddMore   ddFlags = 1 << 1
	ddInit   ddFlags = 1 << 2
)

func (f ddFlags) has(flag ddFlags) bool {
	return f&flag != 0
}

func (f ddFlags) String() string {
	var parts []string
	if f.has(ddInit) {
		parts = append(parts, "I")
	}
	if f.has(ddMore) {
		parts = append(parts, "M")
	}
	if f.has(ddMaster) {
		parts = append(parts, "MS")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

type databaseDescription struct {
	mtu     uint16
	options uint32
	flags   ddFlags
	seq     uint32
	lsas    []lsaHeader
}

func (d *databaseDescription) appendTo(v Version, b []byte) []byte {
	if v == Version2 {
		b = binary.BigEndian.AppendUint16(b, d.mtu)
		b = append(b, uint8(d.options), uint8(d.flags))
	} else {
		b = append(b, 0)
		b = appendOptions(b, d.options)
		b = binary.BigEndian.AppendUint16(b, d.mtu)
		b = append(b, 0, uint8(d.flags))
	}
	b = binary.BigEndian.AppendUint32(b, d.seq)

	for _, h := range d.lsas {
		b = h.appendTo(v, b)
	}

	return b
}

func decodeDatabaseDescription(v Version, b []byte) (*databaseDescription, error) {
	if len(b) < 8 {
		return nil, errors.New("database description packet too short")
	}

	d := &databaseDescription{}
	if v == Version2 {
		d.mtu = binary.BigEndian.Uint16(b[0:2])
		d.options = uint32(b[2])
		d.flags = ddFlags(b[3])
		d.seq = binary.BigEndian.Uint32(b[4:8])
		b = b[8:]
	} else {
		if len(b) < 12 {
			return nil, errors.New("database description packet too short")
		}
		d.options = decodeOptions(b[1:4])
		d.mtu = binary.BigEndian.Uint16(b[4:6])
		d.flags = ddFlags(b[7])
		d.seq = binary.BigEndian.Uint32(b[8:12])
		b = b[12:]
	}

	if len(b)%lsaHeaderLen != 0 {
		return nil, errors.New("database description LSA headers misaligned")
	}
	for len(b) > 0 {
		d.lsas = append(d.lsas, decodeLSAHeader(v, b))
		b = b[lsaHeaderLen:]
	}

	return d, nil
}

func decodeLinkStateRequest(b []byte) ([]lsaKey, error) {
	if len(b)%lsaRequestLen != 0 {
		return nil, errors.New("link state request misaligned")
	}

	var reqs []lsaKey
	for len(b) > 0 {
		reqs = append(reqs, decodeLSAKey(b))
		b = b[lsaRequestLen:]
	}

	return reqs, nil
}

type linkStateUpdate struct {
	lsas []lsaHeader

	// LSAs that failed checksum validation. They are neither processed nor
	// acknowledged.
	corrupt int
}

func decodeLinkStateUpdate(v Version, b []byte) (*linkStateUpdate, error) {
	if len(b) < 4 {
		return nil, errors.New("link state update too short")
	}

	n := binary.BigEndian.Uint32(b[0:4])
	b = b[4:]

	u := &linkStateUpdate{}
	for k := uint32(0); k < n; k++ {
		if len(b) < lsaHeaderLen {
			return nil, errors.New("link state update truncated")
		}

		h := decodeLSAHeader(v, b)
		if int(h.length) < lsaHeaderLen || int(h.length) > len(b) {
			return nil, fmt.Errorf("link state update: LSA length %d out of range", h.length)
		}

		if lsaChecksumValid(b[:h.length]) {
			u.lsas = append(u.lsas, h)
		} else {
			u.corrupt++
		}

		b = b[h.length:]
	}

	return u, nil
}

func decodeLinkStateAcknowledgement(v Version, b []byte) ([]lsaHeader, error) {
	if len(b)%lsaHeaderLen != 0 {
		return nil, errors.New("link state acknowledgement misaligned")
	}

	var hs []lsaHeader
	for len(b) > 0 {
		hs = append(hs, decodeLSAHeader(v, b))
		b = b[lsaHeaderLen:]
	}

	return hs, nil
}
