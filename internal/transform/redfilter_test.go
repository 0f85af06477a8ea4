package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testREDType = 112

// redBlockHeader builds the 4-byte header of one redundant block.
func redBlockHeader(payloadType byte, tsOffset uint16, length int) []byte {
	return []byte{
		0x80 | payloadType&0x7f,
		byte(tsOffset >> 6),
		byte(tsOffset&0x3f)<<2 | byte(length>>8)&0x03,
		byte(length),
	}
}

// redPacket builds an RTP packet whose payload is RED with the given
// redundant payloads followed by the primary payload.
func redPacket(primaryType byte, primary []byte, redundant ...[]byte) []byte {
	p := rtpHeader(testREDType, 7, 0xcafe)
	for i, r := range redundant {
		p = append(p, redBlockHeader(primaryType, uint16(40*(len(redundant)-i)), len(r))...)
	}
	p = append(p, primaryType&0x7f)
	for _, r := range redundant {
		p = append(p, r...)
	}
	return append(p, primary...)
}

func TestREDFilterStripsRedundancy(t *testing.T) {
	primary := []byte{0xa0, 0xa1, 0xa2, 0xa3, 0xa4}
	content := redPacket(9, primary,
		[]byte{0x01, 0x02, 0x03},
		[]byte{0x04, 0x05, 0x06, 0x07},
	)
	pkt := newTestPacket(content, 0, 10)

	f := NewREDFilter(testREDType)
	f.SetEnabled(true)
	out := f.Apply(Send, pkt)

	assert.Equal(t, pkt, out)
	assert.Equal(t, byte(9), out.PayloadType())
	assert.Equal(t, append(rtpHeader(9, 7, 0xcafe), primary...), out.Bytes())
}

func TestREDFilterPrimaryOnly(t *testing.T) {
	primary := []byte{1, 2, 3, 4}
	pkt := newTestPacket(redPacket(9, primary), 0, 0)

	f := NewREDFilter(testREDType)
	f.SetEnabled(true)
	out := f.Apply(Send, pkt)

	assert.Equal(t, byte(9), out.PayloadType())
	assert.Equal(t, append(rtpHeader(9, 7, 0xcafe), primary...), out.Bytes())
}

func TestREDFilterLeavesTrailerInPlace(t *testing.T) {
	content := redPacket(9, []byte{1, 2, 3}, []byte{4, 5})
	pkt := newTestPacket(content, 0, 4)
	trailer := pkt.Buffer().Storage()[len(content):]
	copy(trailer, []byte{0xde, 0xad, 0xbe, 0xef})

	f := NewREDFilter(testREDType)
	f.SetEnabled(true)
	f.Apply(Send, pkt)

	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, trailer)
}

func TestREDFilterPassThrough(t *testing.T) {
	content := redPacket(9, []byte{1, 2, 3}, []byte{4, 5})

	for name, tt := range map[string]struct {
		enabled bool
		dir     Direction
		content []byte
	}{
		"disabled":        {false, Send, content},
		"receive path":    {true, Receive, content},
		"other payload":   {true, Send, rtpHeader(96, 7, 0xcafe)},
		"truncated RED":   {true, Send, append(rtpHeader(testREDType, 7, 0xcafe), 0x80)},
		"bad block total": {true, Send, append(rtpHeader(testREDType, 7, 0xcafe), append(redBlockHeader(9, 40, 500), 9)...)},
	} {
		pkt := newTestPacket(tt.content, 0, 0)
		f := NewREDFilter(testREDType)
		f.SetEnabled(tt.enabled)
		out := f.Apply(tt.dir, pkt)

		assert.Equal(t, tt.content, out.Bytes(), name)
	}
}
