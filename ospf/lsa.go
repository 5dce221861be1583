package ospf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"time"

	"github.com/davidbalbert/miniospf/common"
)

const (
	initialSequenceNumber = math.MinInt32 + 1 // 0x80000001
	maxSequenceNumber     = math.MaxInt32     // 0x7fffffff
	maxAge                = 3600              // 1 hour
	maxAgeDiff            = 900               // 15 minutes
	lsRefreshTime         = 1800              // 30 minutes
	initialAge            = 1
)

const (
	lsaHeaderLen     = 20
	lsaRequestLen    = 12
	maxRouterLinksV2 = 16
	maxRouterLinksV3 = 1
	maxPrefixes      = 16
)

type lsType uint16

const (
	lsTypeRouterV2        lsType = 0x0001
	lsTypeLink            lsType = 0x0008
	lsTypeRouterV3        lsType = 0x2001
	lsTypeIntraAreaPrefix lsType = 0x2009
)

func (t lsType) String() string {
	switch t {
	case lsTypeRouterV2, lsTypeRouterV3:
		return "Router"
	case lsTypeLink:
		return "Link"
	case lsTypeIntraAreaPrefix:
		return "Intra-Area-Prefix"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

// lsaKey identifies an LSA across the network. It is also the body of
// a Link State Request record.
type lsaKey struct {
	lsType    lsType
	id        uint32
	advRouter common.RouterID
}

func (k lsaKey) String() string {
	return fmt.Sprintf("%s %s %s", k.lsType, common.RouterID(k.id), k.advRouter)
}

func (k lsaKey) appendTo(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(k.lsType))
	b = binary.BigEndian.AppendUint32(b, k.id)
	return binary.BigEndian.AppendUint32(b, uint32(k.advRouter))
}

func decodeLSAKey(b []byte) lsaKey {
	return lsaKey{
		lsType:    lsType(binary.BigEndian.Uint32(b[0:4])),
		id:        binary.BigEndian.Uint32(b[4:8]),
		advRouter: common.RouterID(binary.BigEndian.Uint32(b[8:12])),
	}
}

// lsaHeader is the 20 byte summary of an LSA carried in DD, Update and
// Ack packets.
type lsaHeader struct {
	age       uint16
	options   uint8 // v2 only
	lsType    lsType
	id        uint32
	advRouter common.RouterID
	seq       int32
	checksum  uint16
	length    uint16
}

func (h lsaHeader) key() lsaKey {
	return lsaKey{lsType: h.lsType, id: h.id, advRouter: h.advRouter}
}

func (h lsaHeader) String() string {
	return fmt.Sprintf("%s seq 0x%08x age %d", h.key(), uint32(h.seq), h.age)
}

func (h lsaHeader) appendTo(v Version, b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, h.age)
	if v == Version2 {
		b = append(b, h.options, uint8(h.lsType))
	} else {
		b = binary.BigEndian.AppendUint16(b, uint16(h.lsType))
	}
	b = binary.BigEndian.AppendUint32(b, h.id)
	b = binary.BigEndian.AppendUint32(b, uint32(h.advRouter))
	b = binary.BigEndian.AppendUint32(b, uint32(h.seq))
	b = binary.BigEndian.AppendUint16(b, h.checksum)
	return binary.BigEndian.AppendUint16(b, h.length)
}

// decodeLSAHeader expects at least lsaHeaderLen bytes.
func decodeLSAHeader(v Version, b []byte) lsaHeader {
	h := lsaHeader{
		age:       binary.BigEndian.Uint16(b[0:2]),
		id:        binary.BigEndian.Uint32(b[4:8]),
		advRouter: common.RouterID(binary.BigEndian.Uint32(b[8:12])),
		seq:       int32(binary.BigEndian.Uint32(b[12:16])),
		checksum:  binary.BigEndian.Uint16(b[16:18]),
		length:    binary.BigEndian.Uint16(b[18:20]),
	}

	if v == Version2 {
		h.options = b[2]
		h.lsType = lsType(b[3])
	} else {
		h.lsType = lsType(binary.BigEndian.Uint16(b[2:4]))
	}

	return h
}

// Compare returns 1 if h is more recent than other, -1 if it is less
// recent, and 0 if the two are considered the same instance.
func (h lsaHeader) Compare(other lsaHeader) int {
	s1, s2 := h.seq, other.seq
	if s1 < s2 {
		return -1
	} else if s1 > s2 {
		return 1
	}

	c1, c2 := h.checksum, other.checksum
	if c1 < c2 {
		return -1
	} else if c1 > c2 {
		return 1
	}

	a1, a2 := int(h.age), int(other.age)
	if a1 != maxAge && a2 == maxAge {
		return -1
	} else if a1 == maxAge && a2 != maxAge {
		return 1
	}

	diff := abs(a1 - a2)
	if diff > maxAgeDiff && a1 < a2 {
		return 1
	} else if diff > maxAgeDiff && a1 > a2 {
		return -1
	}

	return 0
}

type lsaBody interface {
	appendTo(b []byte) []byte
	equal(other lsaBody) bool
}

type routerLinkType uint8

const (
	routerLinkPointToPoint routerLinkType = 1
	routerLinkTransit      routerLinkType = 2
	routerLinkStub         routerLinkType = 3
)

type routerLinkV2 struct {
	linkType routerLinkType
	linkID   uint32
	linkData uint32
	metric   uint16
}

type routerV2Body struct {
	flags uint8
	links boundedList[routerLinkV2]
}

func newRouterV2Body(flags uint8) *routerV2Body {
	return &routerV2Body{flags: flags, links: newBoundedList[routerLinkV2](maxRouterLinksV2)}
}

func (r *routerV2Body) appendTo(b []byte) []byte {
	b = append(b, r.flags, 0)
	b = binary.BigEndian.AppendUint16(b, uint16(r.links.len()))
	for _, l := range r.links.all() {
		b = binary.BigEndian.AppendUint32(b, l.linkID)
		b = binary.BigEndian.AppendUint32(b, l.linkData)
		b = append(b, uint8(l.linkType), 0) // no TOS metrics
		b = binary.BigEndian.AppendUint16(b, l.metric)
	}
	return b
}

func (r *routerV2Body) equal(other lsaBody) bool {
	o, ok := other.(*routerV2Body)
	return ok && r.flags == o.flags && r.links.equal(o.links)
}

func decodeRouterV2Body(b []byte) (*routerV2Body, error) {
	if len(b) < 4 {
		return nil, errors.New("router LSA too short")
	}

	r := newRouterV2Body(b[0])
	n := int(binary.BigEndian.Uint16(b[2:4]))
	b = b[4:]

	for k := 0; k < n; k++ {
		if len(b) < 12 {
			return nil, errors.New("router LSA link truncated")
		}

		ntos := int(b[9])
		l := routerLinkV2{
			linkID:   binary.BigEndian.Uint32(b[0:4]),
			linkData: binary.BigEndian.Uint32(b[4:8]),
			linkType: routerLinkType(b[8]),
			metric:   binary.BigEndian.Uint16(b[10:12]),
		}
		if !r.links.add(l) {
			return nil, fmt.Errorf("router LSA has more than %d links", maxRouterLinksV2)
		}

		skip := 12 + 4*ntos
		if len(b) < skip {
			return nil, errors.New("router LSA TOS metrics truncated")
		}
		b = b[skip:]
	}

	return r, nil
}

type routerInterface struct {
	linkType            routerLinkType
	metric              uint16
	interfaceID         uint32
	neighborInterfaceID uint32
	neighborRouterID    common.RouterID
}

type routerV3Body struct {
	flags      uint8
	options    uint32
	interfaces boundedList[routerInterface]
}

func newRouterV3Body(flags uint8, options uint32) *routerV3Body {
	return &routerV3Body{flags: flags, options: options, interfaces: newBoundedList[routerInterface](maxRouterLinksV3)}
}

func (r *routerV3Body) appendTo(b []byte) []byte {
	b = append(b, r.flags)
	b = appendOptions(b, r.options)
	for _, i := range r.interfaces.all() {
		b = append(b, uint8(i.linkType), 0)
		b = binary.BigEndian.AppendUint16(b, i.metric)
		b = binary.BigEndian.AppendUint32(b, i.interfaceID)
		b = binary.BigEndian.AppendUint32(b, i.neighborInterfaceID)
		b = binary.BigEndian.AppendUint32(b, uint32(i.neighborRouterID))
	}
	return b
}

func (r *routerV3Body) equal(other lsaBody) bool {
	o, ok := other.(*routerV3Body)
	return ok && r.flags == o.flags && r.options == o.options && r.interfaces.equal(o.interfaces)
}

func decodeRouterV3Body(b []byte) (*routerV3Body, error) {
	if len(b) < 4 {
		return nil, errors.New("router LSA too short")
	}

	r := newRouterV3Body(b[0], decodeOptions(b[1:4]))
	b = b[4:]

	for len(b) > 0 {
		if len(b) < 16 {
			return nil, errors.New("router LSA interface truncated")
		}

		i := routerInterface{
			linkType:            routerLinkType(b[0]),
			metric:              binary.BigEndian.Uint16(b[2:4]),
			interfaceID:         binary.BigEndian.Uint32(b[4:8]),
			neighborInterfaceID: binary.BigEndian.Uint32(b[8:12]),
			neighborRouterID:    common.RouterID(binary.BigEndian.Uint32(b[12:16])),
		}
		if !r.interfaces.add(i) {
			return nil, fmt.Errorf("router LSA has more than %d interfaces", maxRouterLinksV3)
		}
		b = b[16:]
	}

	return r, nil
}

// lsaPrefix is an IPv6 prefix as carried in Link and Intra-Area-Prefix
// LSAs. metric is the reserved field in Link LSAs.
type lsaPrefix struct {
	prefix  netip.Prefix
	options uint8
	metric  uint16
}

func prefixWords(bits int) int {
	return (bits + 31) / 32
}

func (p lsaPrefix) appendTo(b []byte) []byte {
	bits := p.prefix.Bits()
	b = append(b, uint8(bits), p.options)
	b = binary.BigEndian.AppendUint16(b, p.metric)

	addr := p.prefix.Masked().Addr().As16()
	return append(b, addr[:prefixWords(bits)*4]...)
}

func decodeLSAPrefix(b []byte) (lsaPrefix, int, error) {
	if len(b) < 4 {
		return lsaPrefix{}, 0, errors.New("prefix truncated")
	}

	bits := int(b[0])
	if bits > 128 {
		return lsaPrefix{}, 0, fmt.Errorf("invalid prefix length %d", bits)
	}

	n := 4 + prefixWords(bits)*4
	if len(b) < n {
		return lsaPrefix{}, 0, errors.New("prefix truncated")
	}

	var addr [16]byte
	copy(addr[:], b[4:n])

	p := lsaPrefix{
		prefix:  netip.PrefixFrom(netip.AddrFrom16(addr), bits).Masked(),
		options: b[1],
		metric:  binary.BigEndian.Uint16(b[2:4]),
	}

	return p, n, nil
}

func appendPrefixes(b []byte, prefixes []lsaPrefix) []byte {
	for _, p := range prefixes {
		b = p.appendTo(b)
	}
	return b
}

func decodePrefixes(b []byte, n int, l *boundedList[lsaPrefix]) error {
	for k := 0; k < n; k++ {
		p, size, err := decodeLSAPrefix(b)
		if err != nil {
			return err
		}
		if !l.add(p) {
			return fmt.Errorf("more than %d prefixes", maxPrefixes)
		}
		b = b[size:]
	}

	return nil
}

type linkBody struct {
	priority  uint8
	options   uint32
	linkLocal netip.Addr
	prefixes  boundedList[lsaPrefix]
}

func newLinkBody(options uint32, linkLocal netip.Addr) *linkBody {
	return &linkBody{options: options, linkLocal: linkLocal, prefixes: newBoundedList[lsaPrefix](maxPrefixes)}
}

func (l *linkBody) appendTo(b []byte) []byte {
	b = append(b, l.priority)
	b = appendOptions(b, l.options)
	addr := l.linkLocal.As16()
	b = append(b, addr[:]...)
	b = binary.BigEndian.AppendUint32(b, uint32(l.prefixes.len()))
	return appendPrefixes(b, l.prefixes.all())
}

func (l *linkBody) equal(other lsaBody) bool {
	o, ok := other.(*linkBody)
	return ok && l.priority == o.priority && l.options == o.options && l.linkLocal == o.linkLocal && l.prefixes.equal(o.prefixes)
}

func decodeLinkBody(b []byte) (*linkBody, error) {
	if len(b) < 24 {
		return nil, errors.New("link LSA too short")
	}

	l := newLinkBody(decodeOptions(b[1:4]), netip.AddrFrom16([16]byte(b[4:20])))
	l.priority = b[0]

	n := int(binary.BigEndian.Uint32(b[20:24]))
	if err := decodePrefixes(b[24:], n, &l.prefixes); err != nil {
		return nil, fmt.Errorf("link LSA: %w", err)
	}

	return l, nil
}

type intraAreaPrefixBody struct {
	refType      lsType
	refID        uint32
	refAdvRouter common.RouterID
	prefixes     boundedList[lsaPrefix]
}

func newIntraAreaPrefixBody(routerID common.RouterID) *intraAreaPrefixBody {
	return &intraAreaPrefixBody{
		refType:      lsTypeRouterV3,
		refAdvRouter: routerID,
		prefixes:     newBoundedList[lsaPrefix](maxPrefixes),
	}
}

func (p *intraAreaPrefixBody) appendTo(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(p.prefixes.len()))
	b = binary.BigEndian.AppendUint16(b, uint16(p.refType))
	b = binary.BigEndian.AppendUint32(b, p.refID)
	b = binary.BigEndian.AppendUint32(b, uint32(p.refAdvRouter))
	return appendPrefixes(b, p.prefixes.all())
}

func (p *intraAreaPrefixBody) equal(other lsaBody) bool {
	o, ok := other.(*intraAreaPrefixBody)
	return ok && p.refType == o.refType && p.refID == o.refID && p.refAdvRouter == o.refAdvRouter && p.prefixes.equal(o.prefixes)
}

func decodeIntraAreaPrefixBody(b []byte) (*intraAreaPrefixBody, error) {
	if len(b) < 12 {
		return nil, errors.New("intra-area-prefix LSA too short")
	}

	p := newIntraAreaPrefixBody(common.RouterID(binary.BigEndian.Uint32(b[8:12])))
	p.refType = lsType(binary.BigEndian.Uint16(b[2:4]))
	p.refID = binary.BigEndian.Uint32(b[4:8])

	n := int(binary.BigEndian.Uint16(b[0:2]))
	if err := decodePrefixes(b[12:], n, &p.prefixes); err != nil {
		return nil, fmt.Errorf("intra-area-prefix LSA: %w", err)
	}

	return p, nil
}

// appendOptions writes the low 24 bits of options, as OSPFv3 does.
func appendOptions(b []byte, options uint32) []byte {
	return append(b, uint8(options>>16), uint8(options>>8), uint8(options))
}

func decodeOptions(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// LSA is a self-originated link state advertisement. The age in the
// embedded header is the age at stamp; use age(now) for the current
// value.
type LSA struct {
	lsaHeader
	stamp         time.Time
	needsFlooding bool
	body          lsaBody
}

func (l *LSA) currentAge(now time.Time) uint16 {
	elapsed := int64(now.Sub(l.stamp) / time.Second)
	return uint16(clamp(int64(l.age)+elapsed, 0, maxAge))
}

// header returns the short form with the age as of now.
func (l *LSA) header(now time.Time) lsaHeader {
	h := l.lsaHeader
	h.age = l.currentAge(now)
	return h
}

func (l *LSA) maxAged(now time.Time) bool {
	return l.currentAge(now) == maxAge
}

// encode returns the LSA as it goes on the wire, aged to now. The
// checksum does not cover the age, so it is valid for any age.
func (l *LSA) encode(v Version, now time.Time) []byte {
	b := l.header(now).appendTo(v, make([]byte, 0, l.length))
	return l.body.appendTo(b)
}

// finish recomputes length and checksum after the body or sequence
// number changed.
func (l *LSA) finish(v Version) {
	l.checksum = 0
	b := l.lsaHeader.appendTo(v, nil)
	b = l.body.appendTo(b)

	l.length = uint16(len(b))
	binary.BigEndian.PutUint16(b[18:20], l.length)
	l.checksum = lsaChecksum(b)
}

func decodeLSA(v Version, b []byte) (*LSA, error) {
	if len(b) < lsaHeaderLen {
		return nil, errors.New("LSA too short")
	}

	h := decodeLSAHeader(v, b)
	if int(h.length) < lsaHeaderLen || int(h.length) > len(b) {
		return nil, fmt.Errorf("LSA length %d out of range", h.length)
	}
	b = b[:h.length]

	if !lsaChecksumValid(b) {
		return nil, fmt.Errorf("%s: bad LSA checksum", h.key())
	}

	var body lsaBody
	var err error
	switch {
	case v == Version2 && h.lsType == lsTypeRouterV2:
		body, err = decodeRouterV2Body(b[lsaHeaderLen:])
	case v == Version3 && h.lsType == lsTypeRouterV3:
		body, err = decodeRouterV3Body(b[lsaHeaderLen:])
	case v == Version3 && h.lsType == lsTypeLink:
		body, err = decodeLinkBody(b[lsaHeaderLen:])
	case v == Version3 && h.lsType == lsTypeIntraAreaPrefix:
		body, err = decodeIntraAreaPrefixBody(b[lsaHeaderLen:])
	default:
		return nil, fmt.Errorf("unsupported %s LSA type %s", v, h.lsType)
	}

	if err != nil {
		return nil, err
	}

	return &LSA{lsaHeader: h, body: body}, nil
}
