package rtp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vontio/rtpx/internal/packet"
)

// rtpPacket assembles a raw RTP packet for tests.
func rtpPacket(payloadType byte, ssrc uint32, csrc []uint32, extWords int, payload []byte) []byte {
	b := make([]byte, fixedHeaderSize)
	b[0] = joinByte2114(rtpVersion, false, extWords >= 0, byte(len(csrc)))
	b[1] = joinByte17(false, payloadType)
	binary.BigEndian.PutUint16(b[2:], 1000)
	binary.BigEndian.PutUint32(b[4:], 160)
	binary.BigEndian.PutUint32(b[8:], ssrc)
	for _, c := range csrc {
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], c)
		b = append(b, w[:]...)
	}
	if extWords >= 0 {
		ext := make([]byte, 4+4*extWords)
		binary.BigEndian.PutUint16(ext[2:], uint16(extWords))
		b = append(b, ext...)
	}
	return append(b, payload...)
}

func TestPacketAccessors(t *testing.T) {
	p := NewPacket(packet.NewBuffer(rtpPacket(96, 0xcafe, nil, -1, []byte("payload"))))

	assert.Equal(t, byte(rtpVersion), p.Version())
	assert.Equal(t, byte(96), p.PayloadType())
	assert.Equal(t, uint16(1000), p.Sequence())
	assert.Equal(t, uint32(160), p.Timestamp())
	assert.Equal(t, uint32(0xcafe), p.SSRC())

	p.SetPayloadType(111)
	assert.Equal(t, byte(111), p.PayloadType())
	assert.False(t, p.Marker())
}

func TestPacketHeaderLength(t *testing.T) {
	plain := NewPacket(packet.NewBuffer(rtpPacket(96, 1, nil, -1, []byte("x"))))
	n, err := plain.HeaderLength()
	assert.NoError(t, err)
	assert.Equal(t, fixedHeaderSize, n)

	withCSRC := NewPacket(packet.NewBuffer(rtpPacket(96, 1, []uint32{7, 8}, -1, nil)))
	n, err = withCSRC.HeaderLength()
	assert.NoError(t, err)
	assert.Equal(t, fixedHeaderSize+8, n)

	withExt := NewPacket(packet.NewBuffer(rtpPacket(96, 1, nil, 2, []byte("x"))))
	n, err = withExt.HeaderLength()
	assert.NoError(t, err)
	assert.Equal(t, fixedHeaderSize+4+8, n)

	// Declared extension runs past the end of the packet.
	raw := rtpPacket(96, 1, nil, 2, nil)
	binary.BigEndian.PutUint16(raw[fixedHeaderSize+2:], 40)
	_, err = NewPacket(packet.NewBuffer(raw)).HeaderLength()
	assert.Error(t, err)

	short := NewPacket(packet.NewBuffer(make([]byte, 4)))
	_, err = short.HeaderLength()
	assert.Error(t, err)
}
