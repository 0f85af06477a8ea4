package rtp

import (
	"encoding/binary"

	errors "golang.org/x/xerrors"

	"github.com/vontio/rtpx/internal/packet"
)

// RTP Data Transfer Protocol, as defined in RFC 3550 Section 5.

// An RTP packet consists of a fixed 12-byte header, zero or more 32-bit CSRC
// identifiers, an optional header extension, followed by the payload itself.
// See https://tools.ietf.org/html/rfc3550#section-5.1
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |V=2|P|X|  CC   |M|     PT      |       sequence number         |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |                           timestamp                           |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |           synchronization source (SSRC) identifier            |
//   +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//   |            contributing source (CSRC) identifiers             |
//   |                             ....                              |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

// A Packet is a view over the raw bytes of an RTP (or RTCP) packet held in a
// resizable buffer. Header fields are read from and written to the underlying
// bytes directly, so edits are visible to every holder of the same buffer.
//
// The fixed-header accessors assume at least the 12 fixed header bytes are
// present; transforms check Length() before using them on foreign input.
type Packet struct {
	buf *packet.Buffer
}

func NewPacket(buf *packet.Buffer) *Packet {
	return &Packet{buf: buf}
}

// Buffer returns the underlying resizable buffer.
func (p *Packet) Buffer() *packet.Buffer {
	return p.buf
}

// Bytes returns the packet content. Invalidated by Grow/Shrink on the buffer.
func (p *Packet) Bytes() []byte {
	return p.buf.Bytes()
}

// Length returns the packet length in bytes.
func (p *Packet) Length() int {
	return p.buf.Length()
}

// SetLength shortens or extends the packet within its backing storage.
func (p *Packet) SetLength(n int) {
	p.buf.SetLength(n)
}

// Version returns the 2-bit version field, or 0 for an empty packet.
func (p *Packet) Version() byte {
	b := p.Bytes()
	if len(b) == 0 {
		return 0
	}
	v, _, _, _ := splitByte2114(b[0])
	return v
}

func (p *Packet) PayloadType() byte {
	_, pt := splitByte17(p.Bytes()[1])
	return pt
}

func (p *Packet) SetPayloadType(pt byte) {
	b := p.Bytes()
	m, _ := splitByte17(b[1])
	b[1] = joinByte17(m, pt)
}

func (p *Packet) Marker() bool {
	m, _ := splitByte17(p.Bytes()[1])
	return m
}

func (p *Packet) Sequence() uint16 {
	return binary.BigEndian.Uint16(p.Bytes()[2:4])
}

func (p *Packet) Timestamp() uint32 {
	return binary.BigEndian.Uint32(p.Bytes()[4:8])
}

func (p *Packet) SSRC() uint32 {
	return binary.BigEndian.Uint32(p.Bytes()[8:12])
}

func (p *Packet) csrcCount() int {
	_, _, _, cc := splitByte2114(p.Bytes()[0])
	return int(cc)
}

func (p *Packet) hasExtension() bool {
	_, _, x, _ := splitByte2114(p.Bytes()[0])
	return x
}

// HeaderLength returns the full RTP header length, including CSRC identifiers
// and any header extension. It fails when the declared header runs past the
// end of the packet.
func (p *Packet) HeaderLength() (int, error) {
	b := p.Bytes()
	if len(b) < fixedHeaderSize {
		return 0, errors.Errorf("short RTP packet: %d bytes", len(b))
	}
	n := fixedHeaderSize + 4*p.csrcCount()
	if p.hasExtension() {
		// 2-byte profile, 2-byte length in 32-bit words, then the extension.
		if len(b) < n+4 {
			return 0, errors.Errorf("truncated RTP header extension at %d", n)
		}
		words := int(b[n+2])<<8 | int(b[n+3])
		n += 4 + 4*words
	}
	if n > len(b) {
		return 0, errors.Errorf("RTP header length %d exceeds packet length %d", n, len(b))
	}
	return n, nil
}
