package rtpdump

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recording(origin string, start time.Time, records ...[]byte) []byte {
	var b bytes.Buffer
	b.WriteString(preamblePrefix + origin + "\n")

	hdr := make([]byte, fileHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:], uint32(start.Unix()))
	binary.BigEndian.PutUint32(hdr[4:], uint32(start.Nanosecond()/1000))
	b.Write(hdr)

	for _, r := range records {
		b.Write(r)
	}
	return b.Bytes()
}

func record(offsetMillis uint32, rtcp bool, payload []byte) []byte {
	hdr := make([]byte, recordHeaderSize)
	binary.BigEndian.PutUint16(hdr[0:], uint16(recordHeaderSize+len(payload)))
	if !rtcp {
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(payload)))
	}
	binary.BigEndian.PutUint32(hdr[4:], offsetMillis)
	return append(hdr, payload...)
}

func TestReaderRoundTrip(t *testing.T) {
	start := time.Date(2020, 3, 14, 15, 9, 26, 535000, time.UTC)
	data := recording("192.168.1.10/5004", start,
		record(0, false, []byte{0x80, 96, 0, 1}),
		record(20, false, []byte{0x80, 96, 0, 2}),
		record(250, true, []byte{0x81, 201, 0, 7}),
	)

	r, err := NewReader(bytes.NewReader(data))
	assert.NoError(t, err)
	assert.Equal(t, start, r.Start)
	assert.Equal(t, "192.168.1.10", r.Source.String())
	assert.Equal(t, uint16(5004), r.Port)

	rec, err := r.Next()
	assert.NoError(t, err)
	assert.Equal(t, time.Duration(0), rec.Offset)
	assert.False(t, rec.RTCP)
	assert.Equal(t, []byte{0x80, 96, 0, 1}, rec.Payload)

	rec, err = r.Next()
	assert.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, rec.Offset)

	rec, err = r.Next()
	assert.NoError(t, err)
	assert.True(t, rec.RTCP)
	assert.Equal(t, 250*time.Millisecond, rec.Offset)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderRejectsBadInput(t *testing.T) {
	for name, data := range map[string][]byte{
		"wrong magic": []byte("#!pcap1.0 10.0.0.1/5004\n"),
		"no origin":   []byte(preamblePrefix + "nonsense\n"),
		"bad port":    []byte(preamblePrefix + "10.0.0.1/70000\n"),
		"short header": append([]byte(preamblePrefix+"10.0.0.1/5004\n"),
			1, 2, 3, 4),
	} {
		_, err := NewReader(bytes.NewReader(data))
		assert.Error(t, err, name)
	}
}

func TestReaderTruncatedRecord(t *testing.T) {
	data := recording("10.0.0.1/5004", time.Unix(0, 0),
		record(0, false, []byte{0x80, 96, 0, 1}))
	// Cut the last payload byte.
	r, err := NewReader(bytes.NewReader(data[:len(data)-1]))
	assert.NoError(t, err)

	_, err = r.Next()
	assert.Error(t, err)
}
