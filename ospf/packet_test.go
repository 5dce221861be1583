package ospf

import (
	"net/netip"
	"testing"

	"github.com/davidbalbert/miniospf/common"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rid(s string) common.RouterID {
	return common.RouterID(common.AddrToUint32(netip.MustParseAddr(s)))
}

func TestValidateCapturedHello(t *testing.T) {
	hdr, body, err := validateHeader(Version2, capturedHello)
	require.NoError(t, err)

	assert.Equal(t, typeHello, hdr.messageType)
	assert.Equal(t, rid("192.168.170.8"), hdr.routerID)
	assert.Equal(t, common.AreaID(1), hdr.areaID)

	h, err := decodeHello(Version2, body)
	require.NoError(t, err)

	assert.Equal(t, uint32(0xffffff00), h.networkMask)
	assert.Equal(t, uint16(10), h.helloInterval)
	assert.Equal(t, uint32(0x02), h.options)
	assert.Equal(t, uint8(1), h.priority)
	assert.Equal(t, uint32(40), h.deadInterval)
	assert.Equal(t, common.AddrToUint32(netip.MustParseAddr("192.168.170.8")), h.designated)
	assert.Equal(t, uint32(0), h.backup)
	assert.Empty(t, h.neighbors)
}

func TestValidateHeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		v      Version
		mutate func([]byte) []byte
		err    string
	}{
		{"short", Version2, func(b []byte) []byte { return b[:20] }, "packet too short"},
		{"version", Version3, func(b []byte) []byte { return b }, "version mismatch"},
		{"length", Version2, func(b []byte) []byte { return b[:40] }, "length mismatch"},
		{"auth", Version2, func(b []byte) []byte { b[15] = 1; return b }, "unsupported authentication type"},
		{"checksum", Version2, func(b []byte) []byte { b[30] ^= 0xff; return b }, "bad checksum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := validateHeader(tt.v, tt.mutate(clone(capturedHello)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestHelloV2Encode(t *testing.T) {
	h := &hello{
		networkMask:   0xffffff00,
		options:       0x02,
		helloInterval: 10,
		deadInterval:  40,
		designated:    common.AddrToUint32(netip.MustParseAddr("10.0.0.2")),
		neighbors:     []common.RouterID{rid("1.0.0.2"), rid("1.0.0.3")},
	}

	b := fillHeader(nil, Version2, typeHello, rid("1.0.0.1"), common.BackboneArea, 0)
	b = finishHeader(Version2, h.appendTo(Version2, b))

	_, _, err := validateHeader(Version2, b)
	require.NoError(t, err)

	var p layers.OSPFv2
	require.NoError(t, p.DecodeFromBytes(b, gopacket.NilDecodeFeedback))

	assert.Equal(t, layers.OSPFHello, p.Type)
	assert.Equal(t, uint32(rid("1.0.0.1")), p.RouterID)

	c := p.Content.(layers.HelloPkgV2)
	assert.Equal(t, uint32(0xffffff00), c.NetworkMask)
	assert.Equal(t, uint16(10), c.HelloInterval)
	assert.Equal(t, uint32(40), c.RouterDeadInterval)
	assert.Equal(t, uint8(0), c.RtrPriority)
	assert.Equal(t, h.designated, c.DesignatedRouterID)
	assert.Equal(t, []uint32{uint32(rid("1.0.0.2")), uint32(rid("1.0.0.3"))}, c.NeighborID)
}

func TestHelloV3Encode(t *testing.T) {
	h := &hello{
		interfaceID:   7,
		options:       0x13,
		helloInterval: 10,
		deadInterval:  40,
		designated:    uint32(rid("2.2.2.2")),
		backup:        uint32(rid("3.3.3.3")),
		neighbors:     []common.RouterID{rid("2.2.2.2")},
	}

	b := fillHeader(nil, Version3, typeHello, rid("1.1.1.1"), common.AreaID(5), 4)
	b = finishHeader(Version3, h.appendTo(Version3, b))

	hdr, body, err := validateHeader(Version3, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), hdr.instanceID)

	got, err := decodeHello(Version3, body)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	var p layers.OSPFv3
	require.NoError(t, p.DecodeFromBytes(b, gopacket.NilDecodeFeedback))
	assert.Equal(t, uint8(4), p.Instance)
	assert.Equal(t, uint32(5), p.AreaID)

	c := p.Content.(layers.HelloPkg)
	assert.Equal(t, uint32(7), c.InterfaceID)
	assert.Equal(t, uint32(0x13), c.Options)
	assert.Equal(t, uint32(40), c.RouterDeadInterval)
	assert.Equal(t, uint32(rid("3.3.3.3")), c.BackupDesignatedRouterID)
}

func TestDatabaseDescriptionV3(t *testing.T) {
	d := &databaseDescription{
		mtu:     1500,
		options: 0x13,
		flags:   ddInit | ddMore | ddMaster,
		seq:     0x01020304,
		lsas: []lsaHeader{
			{age: 1, lsType: lsTypeRouterV3, advRouter: rid("1.1.1.1"), seq: initialSequenceNumber, checksum: 0xabcd, length: 24},
		},
	}

	b := fillHeader(nil, Version3, typeDatabaseDescription, rid("1.1.1.1"), 0, 0)
	b = finishHeader(Version3, d.appendTo(Version3, b))

	var p layers.OSPFv3
	require.NoError(t, p.DecodeFromBytes(b, gopacket.NilDecodeFeedback))

	c := p.Content.(layers.DbDescPkg)
	assert.Equal(t, uint32(0x13), c.Options)
	assert.Equal(t, uint16(1500), c.InterfaceMTU)
	assert.Equal(t, uint16(7), c.Flags)
	assert.Equal(t, uint32(0x01020304), c.DDSeqNumber)
	require.Len(t, c.LSAinfo, 1)
	assert.Equal(t, uint16(0x2001), c.LSAinfo[0].LSType)
	assert.Equal(t, uint32(0x80000001), c.LSAinfo[0].LSSeqNumber)

	_, body, err := validateHeader(Version3, b)
	require.NoError(t, err)
	got, err := decodeDatabaseDescription(Version3, body)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestDatabaseDescriptionV2(t *testing.T) {
	d := &databaseDescription{mtu: 1500, options: 0x02, flags: ddMore | ddMaster, seq: 42}

	b := fillHeader(nil, Version2, typeDatabaseDescription, rid("1.0.0.1"), 0, 0)
	b = finishHeader(Version2, d.appendTo(Version2, b))

	var p layers.OSPFv2
	require.NoError(t, p.DecodeFromBytes(b, gopacket.NilDecodeFeedback))

	c := p.Content.(layers.DbDescPkg)
	assert.Equal(t, uint16(1500), c.InterfaceMTU)
	assert.Equal(t, uint32(0x02), c.Options)
	assert.Equal(t, uint16(3), c.Flags)
	assert.Equal(t, uint32(42), c.DDSeqNumber)
}

func TestDDFlagsString(t *testing.T) {
	assert.Equal(t, "I|M|MS", (ddInit | ddMore | ddMaster).String())
	assert.Equal(t, "MS", ddMaster.String())
	assert.Equal(t, "-", ddFlags(0).String())
}

func TestLinkStateRequest(t *testing.T) {
	k := lsaKey{lsType: lsTypeLink, id: 3, advRouter: rid("2.2.2.2")}

	b := fillHeader(nil, Version3, typeLinkStateRequest, rid("1.1.1.1"), 0, 0)
	b = finishHeader(Version3, k.appendTo(b))

	var p layers.OSPFv3
	require.NoError(t, p.DecodeFromBytes(b, gopacket.NilDecodeFeedback))
	assert.Equal(t, []layers.LSReq{{LSType: 8, LSID: 3, AdvRouter: uint32(rid("2.2.2.2"))}}, p.Content)

	_, body, err := validateHeader(Version3, b)
	require.NoError(t, err)
	reqs, err := decodeLinkStateRequest(body)
	require.NoError(t, err)
	assert.Equal(t, []lsaKey{k}, reqs)

	_, err = decodeLinkStateRequest(body[:5])
	assert.Error(t, err)
}

func TestDecodeUpdateSkipsCorruptLSAs(t *testing.T) {
	bad := clone(capturedRouterLSA)
	bad[30] ^= 0xff

	b := []byte{0, 0, 0, 2}
	b = append(b, capturedRouterLSA...)
	b = append(b, bad...)

	u, err := decodeLinkStateUpdate(Version2, b)
	require.NoError(t, err)

	require.Len(t, u.lsas, 1)
	assert.Equal(t, 1, u.corrupt)
	assert.Equal(t, rid("192.168.170.3"), u.lsas[0].advRouter)
	assert.Equal(t, lsTypeRouterV2, u.lsas[0].lsType)

	_, err = decodeLinkStateUpdate(Version2, b[:30])
	assert.Error(t, err)
}
