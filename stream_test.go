package rtpx

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rtpPacket(payloadType byte, payload ...byte) []byte {
	h := make([]byte, 12)
	h[0] = 0x80
	h[1] = payloadType
	binary.BigEndian.PutUint32(h[8:], 0xcafe)
	return append(h, payload...)
}

func receiverReport(sender, source uint32, totalLost int, jitter uint32) []byte {
	b := make([]byte, 32)
	b[0] = 0x81
	b[1] = 201
	binary.BigEndian.PutUint16(b[2:], 7) // 8 words total
	binary.BigEndian.PutUint32(b[4:], sender)
	binary.BigEndian.PutUint32(b[8:], source)
	b[13] = byte(totalLost >> 16)
	b[14] = byte(totalLost >> 8)
	b[15] = byte(totalLost)
	binary.BigEndian.PutUint32(b[20:], jitter)
	return b
}

func TestNewStreamValidatesREDType(t *testing.T) {
	_, err := NewStream(Config{REDPayloadType: 50})
	assert.Error(t, err)

	s, err := NewStream(Config{REDPayloadType: 112})
	assert.NoError(t, err)
	assert.NoError(t, s.SetREDEnabled(true))

	s, err = NewStream(Config{})
	assert.NoError(t, err)
	assert.Error(t, s.SetREDEnabled(true))
}

func TestStreamOutboundStripsRED(t *testing.T) {
	s, err := NewStream(Config{REDPayloadType: 112})
	assert.NoError(t, err)
	assert.NoError(t, s.SetREDEnabled(true))

	// One redundant block of 2 bytes, then the primary.
	redPayload := []byte{
		0x80 | 9, 0, 0x80, 2, // redundant block header
		9,          // primary block header
		0xbb, 0xbb, // redundant payload
		0xaa, 0xaa, 0xaa, // primary payload
	}
	out := s.Outbound([][]byte{rtpPacket(112, redPayload...)})

	assert.Equal(t, 1, len(out))
	assert.Equal(t, rtpPacket(9, 0xaa, 0xaa, 0xaa), out[0])
	assert.Equal(t, uint64(1), s.RTPPacketsSent())
}

func TestStreamStatsDelegation(t *testing.T) {
	s, err := NewStream(Config{})
	assert.NoError(t, err)

	for _, j := range []uint32{8, 2} {
		s.Outbound([][]byte{receiverReport(0x1111, 0x2222, 5, j)})
	}

	assert.Equal(t, uint64(2), s.RTCPPacketsSent())
	assert.Equal(t, int64(2), s.MinInterArrivalJitter())
	assert.Equal(t, int64(8), s.MaxInterArrivalJitter())
	assert.Equal(t, 5.0, s.AvgInterArrivalJitter())
	assert.Equal(t, int64(5), s.PacketsLost())
}

func TestStreamInboundSkipsNilAndCopies(t *testing.T) {
	s, err := NewStream(Config{})
	assert.NoError(t, err)

	in := rtpPacket(96, 1, 2, 3)
	out := s.Inbound([][]byte{nil, in})

	assert.Nil(t, out[0])
	assert.Equal(t, in, out[1])
	// The stream works on its own copy.
	out[1][0] = 0
	assert.Equal(t, byte(0x80), in[0])
	assert.Equal(t, uint64(1), s.RTPPacketsReceived())
}
