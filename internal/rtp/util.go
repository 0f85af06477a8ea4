package rtp

// Convenience functions for dealing with packed RTP header bytes. For example,
// the first byte of the RTP packet header:
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |V=2|P|X|  CC   |
//   +-+-+-+-+-+-+-+-+
// can be parsed with
//    V, P, X, CC := splitByte2114(header[0])
// and put back together with
//    header[0] = joinByte2114(V, P, X, CC)

//   0 1 2 3 4 5 6 7
//   a a b c d d d d
func splitByte2114(v byte) (a2 byte, b1 bool, c1 bool, d4 byte) {
	a2 = v >> 6
	b1 = ((v >> 5) & 0x01) == 1
	c1 = ((v >> 4) & 0x01) == 1
	d4 = v & 0x0f
	return
}

// Inverse of splitByte2114.
func joinByte2114(a2 byte, b1 bool, c1 bool, d4 byte) byte {
	v := (a2 << 6) | (d4 & 0x0f)
	if b1 {
		v |= 0x20
	}
	if c1 {
		v |= 0x10
	}
	return v
}

// Split a byte into the first 2 bits, the next bit, and the remaining 5 bits,
// as in the first byte of the RTCP packet header.
func splitByte215(v byte) (a2 byte, b1 bool, c5 byte) {
	a2 = v >> 6
	b1 = ((v >> 5) & 0x01) == 1
	c5 = v & 0x1f
	return
}

func joinByte215(a2 byte, b1 bool, c5 byte) byte {
	v := (a2 << 6) | (c5 & 0x1f)
	if b1 {
		v |= 0x20
	}
	return v
}

// Split a byte into the first bit and the remaining 7 bits.
// E.g. for the second byte of the RTP packet header:
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |M|     PT      |
//   +-+-+-+-+-+-+-+-+
func splitByte17(v byte) (a1 bool, b7 byte) {
	a1 = (v >> 7) == 1
	b7 = v & 0x7f
	return
}

func joinByte17(b1 bool, b7 byte) byte {
	v := b7 & 0x7f
	if b1 {
		v |= 0x80
	}
	return v
}
