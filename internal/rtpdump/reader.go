// Package rtpdump reads recordings in the rtpdump format produced by the
// rtptools suite (https://www.cs.columbia.edu/irt/software/rtptools/).
//
// A file starts with the ASCII preamble "#!rtpplay1.0 address/port\n",
// followed by a 16-byte binary file header and then one 8-byte record header
// per captured packet:
//
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |            length             |        packet length          |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |                     offset (milliseconds)                     |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// length covers the record header plus however much of the packet was
// captured; packet length is the original RTP packet size, or zero for RTCP.
package rtpdump

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	errors "golang.org/x/xerrors"

	"github.com/vontio/rtpx/internal/packet"
)

const (
	preamblePrefix   = "#!rtpplay1.0 "
	fileHeaderSize   = 16
	recordHeaderSize = 8

	// Sanity bound on captured packet size. Anything larger than a jumbo
	// frame means the record header was garbage.
	maxRecordSize = 65535
)

// A Record is one captured packet.
type Record struct {
	// Offset is the capture time relative to the start of the recording.
	Offset time.Duration

	// RTCP is true when the payload is an RTCP packet rather than RTP.
	RTCP bool

	// Payload is the captured packet, possibly truncated when the recording
	// kept headers only.
	Payload []byte
}

// A Reader reads one rtpdump recording sequentially.
type Reader struct {
	br *bufio.Reader

	// Start of the recording, from the file header.
	Start time.Time

	// Source address and port the recording was captured from, from the
	// preamble.
	Source net.IP
	Port   uint16
}

// NewReader parses the preamble and file header of an rtpdump recording and
// returns a Reader positioned at its first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	preamble, err := br.ReadString('\n')
	if err != nil {
		return nil, errors.Errorf("reading rtpdump preamble: %v", err)
	}
	if !strings.HasPrefix(preamble, preamblePrefix) {
		return nil, errors.Errorf("not an rtpdump recording: %q", preamble)
	}

	source, port, err := parseOrigin(strings.TrimSuffix(preamble[len(preamblePrefix):], "\n"))
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, errors.Errorf("reading rtpdump file header: %v", err)
	}
	p := packet.NewReader(hdr)
	sec := p.ReadUint32()
	usec := p.ReadUint32()
	// The binary source/port repeat the preamble values; the textual ones win.
	p.Skip(8)

	return &Reader{
		br:     br,
		Start:  time.Unix(int64(sec), int64(usec)*1000).UTC(),
		Source: source,
		Port:   port,
	}, nil
}

// Next returns the next record, or io.EOF after the last one. The payload is
// freshly allocated and remains valid across calls.
func (r *Reader) Next() (*Record, error) {
	hdr := make([]byte, recordHeaderSize)
	if _, err := io.ReadFull(r.br, hdr); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Errorf("reading rtpdump record header: %v", err)
	}

	p := packet.NewReader(hdr)
	length := int(p.ReadUint16())
	packetLength := p.ReadUint16()
	offset := p.ReadUint32()

	if length < recordHeaderSize || length > maxRecordSize {
		return nil, errors.Errorf("invalid rtpdump record length %d", length)
	}

	payload := make([]byte, length-recordHeaderSize)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, errors.Errorf("reading rtpdump record payload: %v", err)
	}

	return &Record{
		Offset:  time.Duration(offset) * time.Millisecond,
		RTCP:    packetLength == 0,
		Payload: payload,
	}, nil
}

// parseOrigin splits the "address/port" part of the preamble.
func parseOrigin(origin string) (net.IP, uint16, error) {
	i := strings.LastIndexByte(origin, '/')
	if i < 0 {
		return nil, 0, errors.Errorf("invalid rtpdump origin %q", origin)
	}
	ip := net.ParseIP(origin[:i])
	if ip == nil {
		return nil, 0, errors.Errorf("invalid rtpdump source address %q", origin[:i])
	}
	port, err := strconv.ParseUint(origin[i+1:], 10, 16)
	if err != nil {
		return nil, 0, errors.Errorf("invalid rtpdump source port %q: %v", origin[i+1:], err)
	}
	return ip, uint16(port), nil
}
