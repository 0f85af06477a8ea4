package rtp

import (
	"encoding/binary"

	errors "golang.org/x/xerrors"

	"github.com/vontio/rtpx/internal/packet"
)

// RTP Control Protocol (RTCP), as defined in RFC 3550 Section 6.

const (
	rtcpHeaderSize = 4
	rtcpReportSize = 6 * 4

	// From RFC 3550 Section 6 and RFC 3611.
	RTCPSenderReport      = 200
	RTCPReceiverReport    = 201
	RTCPSourceDescription = 202
	RTCPGoodbye           = 203
	RTCPApp               = 204
	RTCPExtendedReportPT  = 207
)

// RTCP packets come in several different types. While they differ structurally,
// they all share a common 4-byte prefix header (where the meaning of count
// depends on packet type). See https://tools.ietf.org/html/rfc3550#section-6.
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |V=2|P|  count  |  packet type  |             length            |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

// RTCPLength determines whether buf appears to contain an RTCP packet starting
// at off and spanning at most maxLen bytes. It returns the exact byte length
// of that packet, decoded from the 16-bit length-in-words field, and whether
// classification succeeded. A compound packet is enumerated by calling
// RTCPLength in a loop, advancing off by the returned length; enumeration
// simply stops at the first position that fails to classify.
func RTCPLength(buf []byte, off, maxLen int) (int, bool) {
	if off < 0 || maxLen < rtcpHeaderSize || off+maxLen > len(buf) {
		return 0, false
	}
	version, _, _ := splitByte215(buf[off])
	if version != rtpVersion {
		return 0, false
	}
	words := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
	n := (words + 1) * 4
	if n > maxLen {
		return 0, false
	}
	return n, true
}

// IsRTCP reports whether the packet content classifies as RTCP.
func IsRTCP(p *Packet) bool {
	b := p.Bytes()
	_, ok := RTCPLength(b, 0, len(b))
	return ok
}

// RTCPFeedback is a report block within a sender or receiver report. See
// https://tools.ietf.org/html/rfc3550#section-6.4.1.
type RTCPFeedback struct {
	// The source that this report refers to.
	Source uint32

	// Fraction of packets lost since last report for this source, in 1/256
	// units.
	FractionLost byte

	// Total packets lost from this source for the entire session.
	TotalLost int

	// Extended sequence number of last packet received from this source.
	LastReceived uint32

	// Interarrival jitter, measured in timestamp units.
	Jitter uint32

	// Truncated NTP timestamp of most recent Sender Report from this source.
	LastSenderReportTimestamp uint32

	// Time in 1/65536 seconds since the most recent Sender Report from this
	// source (or 0, if no SR has been received).
	LastSenderReportDelay uint32
}

func (fb *RTCPFeedback) readFrom(r *packet.Reader) {
	fb.Source = r.ReadUint32()
	fb.FractionLost = r.ReadByte()
	fb.TotalLost = int(r.ReadUint24())
	fb.LastReceived = r.ReadUint32()
	fb.Jitter = r.ReadUint32()
	fb.LastSenderReportTimestamp = r.ReadUint32()
	fb.LastSenderReportDelay = r.ReadUint32()
}

// RTCPReport is a parsed RTCP sender or receiver report sub-packet.
type RTCPReport struct {
	// RTCPSenderReport or RTCPReceiverReport.
	Type byte

	// The source originating this report.
	SenderSSRC uint32

	// Sender information, present in sender reports only.
	NTPTimestamp      uint64
	RTPTimestamp      uint32
	SenderPacketCount uint32
	SenderByteCount   uint32

	Feedback []RTCPFeedback
}

// ParseRTCPReport parses the RTCP sub-packet at the start of buf as a sender
// or receiver report. It returns (nil, nil) when the sub-packet is well-formed
// RTCP of some other type.
func ParseRTCPReport(buf []byte) (*RTCPReport, error) {
	r := packet.NewReader(buf)
	if err := r.CheckRemaining(rtcpHeaderSize); err != nil {
		return nil, errors.Errorf("short RTCP packet: %v", err)
	}

	version, _, count := splitByte215(r.ReadByte())
	if version != rtpVersion {
		return nil, errBadVersion(version)
	}
	packetType := r.ReadByte()
	length := int(r.ReadUint16())

	if packetType != RTCPSenderReport && packetType != RTCPReceiverReport {
		return nil, nil
	}
	if err := r.CheckRemaining(4 * length); err != nil {
		return nil, errors.Errorf("truncated RTCP report: %v", err)
	}

	report := &RTCPReport{Type: packetType}

	// Sender SSRC plus, for SR, the 20-byte sender info block.
	senderInfoSize := 4
	if packetType == RTCPSenderReport {
		senderInfoSize += 20
	}
	if 4*length < senderInfoSize+int(count)*rtcpReportSize {
		return nil, errors.Errorf("invalid %s: length = %d, count = %d",
			rtcpTypeString(packetType), length, count)
	}

	report.SenderSSRC = r.ReadUint32()
	if packetType == RTCPSenderReport {
		report.NTPTimestamp = r.ReadUint64()
		report.RTPTimestamp = r.ReadUint32()
		report.SenderPacketCount = r.ReadUint32()
		report.SenderByteCount = r.ReadUint32()
	}
	for i := 0; i < int(count); i++ {
		var fb RTCPFeedback
		fb.readFrom(r)
		report.Feedback = append(report.Feedback, fb)
	}
	return report, nil
}

func rtcpTypeString(packetType byte) string {
	switch packetType {
	case RTCPSenderReport:
		return "SR"
	case RTCPReceiverReport:
		return "RR"
	case RTCPSourceDescription:
		return "SDES"
	case RTCPGoodbye:
		return "BYE"
	case RTCPApp:
		return "APP"
	case RTCPExtendedReportPT:
		return "XR"
	default:
		return "RTCP"
	}
}
