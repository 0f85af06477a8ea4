package rtp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vontio/rtpx/internal/packet"
)

// rtcpSubPacket assembles a single RTCP sub-packet with the given type, count
// field, and body (which must be a multiple of 4 bytes).
func rtcpSubPacket(packetType byte, count byte, body []byte) []byte {
	b := make([]byte, rtcpHeaderSize+len(body))
	b[0] = joinByte215(rtpVersion, false, count)
	b[1] = packetType
	binary.BigEndian.PutUint16(b[2:], uint16(len(b)/4-1))
	copy(b[4:], body)
	return b
}

func feedbackBody(source uint32, fractionLost byte, totalLost int, jitter uint32) []byte {
	b := make([]byte, rtcpReportSize)
	binary.BigEndian.PutUint32(b, source)
	b[4] = fractionLost
	b[5] = byte(totalLost >> 16)
	b[6] = byte(totalLost >> 8)
	b[7] = byte(totalLost)
	binary.BigEndian.PutUint32(b[12:], jitter)
	return b
}

func receiverReport(sender uint32, feedback ...[]byte) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, sender)
	for _, fb := range feedback {
		body = append(body, fb...)
	}
	return rtcpSubPacket(RTCPReceiverReport, byte(len(feedback)), body)
}

func senderReport(sender uint32, packets, bytes uint32, feedback ...[]byte) []byte {
	body := make([]byte, 24)
	binary.BigEndian.PutUint32(body, sender)
	binary.BigEndian.PutUint32(body[16:], packets)
	binary.BigEndian.PutUint32(body[20:], bytes)
	for _, fb := range feedback {
		body = append(body, fb...)
	}
	return rtcpSubPacket(RTCPSenderReport, byte(len(feedback)), body)
}

func goodbye(sources ...uint32) []byte {
	body := make([]byte, 4*len(sources))
	for i, ssrc := range sources {
		binary.BigEndian.PutUint32(body[4*i:], ssrc)
	}
	return rtcpSubPacket(RTCPGoodbye, byte(len(sources)), body)
}

func compound(subPackets ...[]byte) []byte {
	var b []byte
	for _, sp := range subPackets {
		b = append(b, sp...)
	}
	return b
}

func TestRTCPLengthEnumeratesCompound(t *testing.T) {
	sub := [][]byte{
		senderReport(0x1111, 10, 1000, feedbackBody(0x2222, 0, 0, 5)),
		rtcpSubPacket(RTCPSourceDescription, 1, make([]byte, 8)),
		goodbye(0x1111),
	}
	buf := compound(sub...)

	off := 0
	for i := 0; off < len(buf); i++ {
		n, ok := RTCPLength(buf, off, len(buf)-off)
		if !assert.True(t, ok, "sub-packet %d", i) {
			break
		}
		assert.Equal(t, len(sub[i]), n)
		off += n
	}
	assert.Equal(t, len(buf), off)
}

func TestRTCPLengthRejects(t *testing.T) {
	rr := receiverReport(0x1111)

	// Too short to hold a header.
	_, ok := RTCPLength(rr, 0, 3)
	assert.False(t, ok)

	// Wrong version.
	bad := append([]byte(nil), rr...)
	bad[0] = joinByte215(1, false, 0)
	_, ok = RTCPLength(bad, 0, len(bad))
	assert.False(t, ok)

	// Declared length exceeds the available bytes.
	_, ok = RTCPLength(rr, 0, len(rr)-1)
	assert.False(t, ok)

	// Offset past the end of the buffer.
	_, ok = RTCPLength(rr, 4, len(rr))
	assert.False(t, ok)
}

func TestParseRTCPReport(t *testing.T) {
	sr := senderReport(0xabcd, 42, 9000,
		feedbackBody(0x2222, 16, 7, 55),
		feedbackBody(0x3333, 0, 0, 12))

	report, err := ParseRTCPReport(sr)
	assert.NoError(t, err)
	assert.Equal(t, byte(RTCPSenderReport), report.Type)
	assert.Equal(t, uint32(0xabcd), report.SenderSSRC)
	assert.Equal(t, uint32(42), report.SenderPacketCount)
	assert.Equal(t, uint32(9000), report.SenderByteCount)
	assert.Equal(t, 2, len(report.Feedback))
	assert.Equal(t, uint32(0x2222), report.Feedback[0].Source)
	assert.Equal(t, 7, report.Feedback[0].TotalLost)
	assert.Equal(t, uint32(55), report.Feedback[0].Jitter)

	// Non-report types parse to nil without error.
	report, err = ParseRTCPReport(goodbye(0x1111))
	assert.NoError(t, err)
	assert.Nil(t, report)

	// A truncated report is malformed.
	_, err = ParseRTCPReport(sr[:10])
	assert.Error(t, err)
}

func TestExtendedReportRoundTrip(t *testing.T) {
	vm := NewVoIPMetricsBlock(0x2222)
	vm.LossRate = 10
	vm.DiscardRate = 3
	vm.BurstDensity = 70
	vm.GapDensity = 2
	vm.BurstDuration = 120
	vm.GapDuration = 3000
	vm.RoundTripDelay = 80
	vm.GMin = 16
	vm.PacketLossConcealment = PLCStandard
	vm.JitterBufferAdaptive = JBAAdaptive
	vm.JitterBufferNominal = 60
	vm.JitterBufferMaximum = 120
	vm.JitterBufferAbsoluteMax = 500

	xr := &ExtendedReport{
		SSRC:   0x1111,
		Blocks: []XRBlock{vm, &RawXRBlock{BlockType: XRBlockDLRR, Body: make([]byte, 12)}},
	}

	w := packet.NewWriterSize(xr.ByteLength())
	assert.NoError(t, xr.WriteTo(w))
	assert.Equal(t, xr.ByteLength(), w.Length())

	parsed, err := ParseExtendedReport(w.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, xr, parsed)

	// XR classifies as a regular RTCP sub-packet.
	n, ok := RTCPLength(w.Bytes(), 0, w.Length())
	assert.True(t, ok)
	assert.Equal(t, xr.ByteLength(), n)
}

func TestParseExtendedReportMalformed(t *testing.T) {
	xr := &ExtendedReport{SSRC: 0x1111, Blocks: []XRBlock{NewVoIPMetricsBlock(0x2222)}}
	w := packet.NewWriterSize(xr.ByteLength())
	assert.NoError(t, xr.WriteTo(w))
	raw := w.Bytes()

	// Wrong payload type.
	_, err := ParseExtendedReport(rtcpSubPacket(RTCPApp, 0, make([]byte, 4)))
	assert.Error(t, err)

	// Truncated block body.
	_, err = ParseExtendedReport(raw[:xrHeaderSize+xrBlockHeaderSize])
	assert.Error(t, err)
}
