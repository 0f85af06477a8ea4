package transform

import (
	"encoding/binary"

	errors "golang.org/x/xerrors"

	"github.com/vontio/rtpx/internal/packet"
	"github.com/vontio/rtpx/internal/rtp"
)

// In-place editing of RTCP compound packets. Sub-packets are located with
// rtp.RTCPLength and spliced out or in by moving the compound's front
// boundary, so that bytes trailing the content (an SRTCP authentication
// region, say) are never displaced.

const rtcpHeaderSize = 4

// removeExtendedReports splices every parseable XR sub-packet out of the
// compound held by pkt and returns the removed sub-packets as copies, in
// compound order. A sub-packet that classifies as XR but does not parse is
// skipped in place rather than removed. Enumeration stops at the first
// position that does not classify as RTCP; anything from there on is left
// alone.
func removeExtendedReports(pkt *rtp.Packet) [][]byte {
	buf := pkt.Buffer()
	var removed [][]byte

	off := 0
	for off < buf.Length() {
		b := buf.Bytes()
		n, ok := rtp.RTCPLength(b, off, buf.Length()-off)
		if !ok {
			break
		}
		if b[off+1] != rtp.RTCPExtendedReportPT {
			off += n
			continue
		}
		if _, err := rtp.ParseExtendedReport(b[off : off+n]); err != nil {
			log.Debug("leaving unparseable XR in place: %v", err)
			off += n
			continue
		}

		xr := make([]byte, n)
		copy(xr, b[off:off+n])
		removed = append(removed, xr)

		// Splice out by shifting the preceding sub-packets right over the XR
		// and dropping the now-dead front bytes. The trailing sub-packets
		// keep their storage positions, and off stays valid: the content
		// window advanced by exactly the shift distance.
		copy(b[n:off+n], b[:off])
		buf.Shrink(n)
	}
	return removed
}

// addExtendedReport splices a serialized copy of xr into the compound held by
// pkt. The report is placed immediately before the first BYE sub-packet that
// names xr's SSRC (so the report about a source is not outlived by that
// source's goodbye), before any BYE too malformed to check, or at the end of
// the classifiable compound otherwise. On success the returned slice aliases
// the inserted region of the packet. On error the packet is unchanged.
func addExtendedReport(pkt *rtp.Packet, xr *rtp.ExtendedReport) ([]byte, error) {
	buf := pkt.Buffer()
	n := xr.ByteLength()
	insPos := xrInsertPosition(buf.Bytes(), xr.SSRC)

	buf.Grow(n)
	b := buf.Bytes()
	copy(b, b[n:n+insPos])

	w := packet.NewWriter(b[insPos : insPos+n])
	if err := xr.WriteTo(w); err != nil || w.Length() != n {
		// Undo the splice: shift the prefix back and release the gap.
		copy(b[n:n+insPos], b[:insPos])
		buf.Shrink(n)
		if err == nil {
			err = errors.Errorf("XR serialized to %d bytes, reserved %d", w.Length(), n)
		}
		return nil, err
	}
	return b[insPos : insPos+n], nil
}

// xrInsertPosition returns the content offset at which an extended report
// about ssrc should be inserted.
func xrInsertPosition(content []byte, ssrc uint32) int {
	off := 0
	for off < len(content) {
		n, ok := rtp.RTCPLength(content, off, len(content)-off)
		if !ok {
			break
		}
		if content[off+1] == rtp.RTCPGoodbye {
			count := int(content[off] & 0x1f)
			if rtcpHeaderSize+4*count > n {
				// Source list does not fit the declared length. We cannot
				// tell whether this BYE names ssrc, so do not risk placing
				// the report after it.
				return off
			}
			for i := 0; i < count; i++ {
				s := binary.BigEndian.Uint32(content[off+rtcpHeaderSize+4*i:])
				if s == ssrc {
					return off
				}
			}
		}
		off += n
	}
	return off
}
