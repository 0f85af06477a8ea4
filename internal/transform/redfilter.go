package transform

import (
	"github.com/vontio/rtpx/internal/rtp"
)

// REDFilter strips RED (RFC 2198) redundancy encapsulation from outgoing RTP
// packets, for peers that do not support it. The packet's payload is replaced
// with the primary-encoding sub-block and the payload type is rewritten to the
// primary encoding's type; the redundant copies are discarded.
//
// A RED payload carries zero or more 4-byte redundant block headers, each with
// its follow bit set, terminated by a 1-byte primary header with the follow
// bit clear:
//
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |F|   block PT  |  timestamp offset         |   block length    |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
//    0 1 2 3 4 5 6 7
//   +-+-+-+-+-+-+-+-+
//   |0|   Block PT  |
//   +-+-+-+-+-+-+-+-+
type REDFilter struct {
	// Disabled filters pass every packet through untouched. Toggled
	// externally per destination; calls are serialized by the pipeline's
	// caller.
	enabled bool

	// The negotiated RED payload type.
	payloadType byte
}

func NewREDFilter(payloadType byte) *REDFilter {
	return &REDFilter{payloadType: payloadType}
}

// SetEnabled enables or disables stripping.
func (f *REDFilter) SetEnabled(enabled bool) {
	f.enabled = enabled
}

// Apply strips RED from outbound packets. The receive path is untouched:
// stripping is outbound-only. A packet that fails validation at any step is
// returned unmodified; partial rewrites never happen.
func (f *REDFilter) Apply(dir Direction, pkt *rtp.Packet) *rtp.Packet {
	if dir != Send || !f.enabled {
		return pkt
	}
	if pkt.Length() < 12 || pkt.PayloadType() != f.payloadType {
		return pkt
	}

	hdrLen, err := pkt.HeaderLength()
	if err != nil {
		log.Debug("ignoring invalid RED packet: %v", err)
		return pkt
	}

	buf := pkt.Bytes()

	// Count the redundant block headers: one per set follow bit.
	idx := hdrLen
	blocks := 1
	for {
		if idx >= len(buf) {
			log.Debug("ignoring truncated RED headers")
			return pkt
		}
		if buf[idx]&0x80 == 0 {
			break
		}
		blocks++
		idx += 4
	}

	// Walk the redundant headers again, accumulating the primary payload
	// offset from the declared block lengths.
	idx = hdrLen
	payloadOffset := hdrLen + (blocks-1)*4 + 1
	for i := 1; i < blocks; i++ {
		blockLen := int(buf[idx+2]&0x03)<<8 | int(buf[idx+3])
		idx += 4
		payloadOffset += blockLen
	}

	// idx now sits at the 1-byte primary block header.
	if payloadOffset > len(buf) {
		log.Debug("ignoring invalid primary block carried in RED")
		return pkt
	}
	primaryType := buf[idx] & 0x7f
	payloadLen := len(buf) - payloadOffset

	// Close the gap by moving the primary payload down to just after the RTP
	// header. Moving the tail up instead would displace anything trailing the
	// payload, such as an authentication tag owned by a later transform.
	pkt.SetPayloadType(primaryType)
	copy(buf[hdrLen:], buf[payloadOffset:payloadOffset+payloadLen])
	pkt.SetLength(pkt.Length() - (payloadOffset - hdrLen))

	return pkt
}
