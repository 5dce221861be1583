package ospf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// An OSPFv2 Hello from 192.168.170.8, captured on the wire.
var capturedHello = []byte{
	0x02, 0x01, 0x00, 0x2c, 0xc0, 0xa8, 0xaa, 0x08, 0x00, 0x00, 0x00, 0x01, 0x27, 0x3b, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x0a, 0x02, 0x01,
	0x00, 0x00, 0x00, 0x28, 0xc0, 0xa8, 0xaa, 0x08, 0x00, 0x00, 0x00, 0x00,
}

// A Router LSA from 192.168.170.3 with two stub networks, captured inside
// an Update.
var capturedRouterLSA = []byte{
	0x00, 0x02, 0x02, 0x01, 0xc0, 0xa8, 0xaa, 0x03, 0xc0, 0xa8, 0xaa, 0x03, 0x80, 0x00, 0x00, 0x01,
	0x3a, 0x9c, 0x00, 0x30, 0x02, 0x00, 0x00, 0x02, 0xc0, 0xa8, 0xaa, 0x00, 0xff, 0xff, 0xff, 0x00,
	0x03, 0x00, 0x00, 0x0a, 0xc0, 0xa8, 0xaa, 0x00, 0xff, 0xff, 0xff, 0x00, 0x03, 0x00, 0x00, 0x0a,
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func TestInternetChecksum(t *testing.T) {
	b := clone(capturedHello)
	assert.Equal(t, uint16(0), checksum(b[:16], b[24:]))

	binary.BigEndian.PutUint16(b[12:14], 0)
	assert.Equal(t, uint16(0x273b), checksum(b[:16], b[24:]))
}

func TestInternetChecksumOddChunks(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9a}
	assert.Equal(t, checksum(data), checksum(data[:1], data[1:4], data[4:]))
}

func TestFletcher16(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 0xff, 0xff}

	assert.Equal(t, uint16(0xb238), fletcher16(data, 6))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 0xff, 0xff}, data, "input must not be modified")

	binary.BigEndian.PutUint16(data[6:], 0xb238)
	assert.Equal(t, uint16(0), fletcher16(data, fletcherValidate))
}

func TestLSAChecksum(t *testing.T) {
	lsa := clone(capturedRouterLSA)

	assert.Equal(t, uint16(0x3a9c), lsaChecksum(lsa))
	assert.True(t, lsaChecksumValid(lsa))

	// Age isn't covered.
	binary.BigEndian.PutUint16(lsa[0:2], maxAge)
	assert.True(t, lsaChecksumValid(lsa))

	lsa[25] ^= 0x01
	assert.False(t, lsaChecksumValid(lsa))
}
