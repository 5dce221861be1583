package ospf

import "encoding/binary"

// checksum is the Internet checksum (RFC 1071) over the concatenation of
// data. The OSPFv2 packet checksum skips the 64 bit authentication field,
// so callers pass the header and body as separate slices.
func checksum(data ...[]byte) uint16 {
	var sum uint32
	var odd bool
	var last byte

	for _, d := range data {
		if odd && len(d) > 0 {
			sum += uint32(last)<<8 | uint32(d[0])
			d = d[1:]
			odd = false
		}

		for len(d) >= 2 {
			sum += uint32(binary.BigEndian.Uint16(d))
			d = d[2:]
		}

		if len(d) == 1 {
			last = d[0]
			odd = true
		}
	}

	if odd {
		sum += uint32(last) << 8
	}

	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	return ^uint16(sum)
}

// fletcherValidate as an offset asks fletcher16 to sum the data as-is and
// report (c1<<8 | c0), which is zero for data carrying a correct checksum.
const fletcherValidate = -1

// lsaChecksumOffset is the position of the LS checksum once the two byte
// age field is skipped.
const lsaChecksumOffset = 14

// fletcher16 implements the ISO 8473 Annex C checksum used by LSAs. With a
// non-negative offset, the two bytes at data[offset:offset+2] are treated
// as zero and the returned value is the checksum to store there. data is
// never modified.
func fletcher16(data []byte, offset int) uint16 {
	var c0, c1 int

	for i, b := range data {
		if offset >= 0 && (i == offset || i == offset+1) {
			b = 0
		}

		c0 = (c0 + int(b)) % 255
		c1 = (c1 + c0) % 255
	}

	if offset < 0 {
		return uint16(c1<<8 | c0)
	}

	x := ((len(data)-offset-1)*c0 - c1) % 255
	if x <= 0 {
		x += 255
	}

	y := 510 - c0 - x
	if y > 255 {
		y -= 255
	}

	return uint16(x<<8 | y)
}

// lsaChecksum computes the checksum of an encoded LSA, age field included.
func lsaChecksum(lsa []byte) uint16 {
	return fletcher16(lsa[2:], lsaChecksumOffset)
}

func lsaChecksumValid(lsa []byte) bool {
	return fletcher16(lsa[2:], fletcherValidate) == 0
}
