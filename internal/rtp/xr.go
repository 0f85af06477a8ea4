package rtp

import (
	errors "golang.org/x/xerrors"

	"github.com/vontio/rtpx/internal/packet"
)

// RTCP Extended Reports (XR), as defined in RFC 3611.
//
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |V=2|P|reserved |   PT=XR=207   |             length            |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |                              SSRC                             |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   :                         report blocks                         :
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

// XR report block types from RFC 3611 Section 4.
const (
	XRBlockLossRLE            = 1
	XRBlockDuplicateRLE       = 2
	XRBlockPacketReceiptTimes = 3
	XRBlockReceiverRefTime    = 4
	XRBlockDLRR               = 5
	XRBlockStatisticsSummary  = 6
	XRBlockVoIPMetrics        = 7
)

const (
	xrHeaderSize      = 8  // common header + SSRC
	xrBlockHeaderSize = 4  // BT, type-specific, block length
	voipMetricsSize   = 36 // block header + 32-byte body
)

// An XRBlock is one report block within an extended report.
type XRBlock interface {
	// ByteLength returns the serialized block size, including the 4-byte
	// block header. Always a multiple of 4.
	ByteLength() int

	writeTo(w *packet.Writer)
}

// ExtendedReport is a parsed (or locally synthesized) RTCP XR packet.
type ExtendedReport struct {
	// SSRC of the packet originator.
	SSRC uint32

	Blocks []XRBlock
}

// ByteLength returns the total serialized packet size in bytes.
func (xr *ExtendedReport) ByteLength() int {
	n := xrHeaderSize
	for _, b := range xr.Blocks {
		n += b.ByteLength()
	}
	return n
}

// WriteTo serializes the extended report. The writer must have exactly
// ByteLength() bytes of capacity remaining.
func (xr *ExtendedReport) WriteTo(w *packet.Writer) error {
	n := xr.ByteLength()
	if err := w.CheckCapacity(n); err != nil {
		return errors.Errorf("short XR buffer: %v", err)
	}
	w.WriteByte(joinByte215(rtpVersion, false, 0))
	w.WriteByte(RTCPExtendedReportPT)
	w.WriteUint16(uint16(n/4 - 1))
	w.WriteUint32(xr.SSRC)
	for _, b := range xr.Blocks {
		b.writeTo(w)
	}
	return nil
}

// ParseExtendedReport parses buf, an exact RTCP sub-packet previously
// classified by RTCPLength, as an extended report. Blocks other than VoIP
// Metrics are retained as opaque RawXRBlocks.
func ParseExtendedReport(buf []byte) (*ExtendedReport, error) {
	r := packet.NewReader(buf)
	if err := r.CheckRemaining(xrHeaderSize); err != nil {
		return nil, errors.Errorf("short XR packet: %v", err)
	}

	version, _, _ := splitByte215(r.ReadByte())
	if version != rtpVersion {
		return nil, errBadVersion(version)
	}
	if packetType := r.ReadByte(); packetType != RTCPExtendedReportPT {
		return nil, errors.Errorf("not an XR packet: type %d", packetType)
	}
	length := int(r.ReadUint16())
	if 4*(length+1) != len(buf) {
		return nil, errors.Errorf("XR length mismatch: declared %d bytes, have %d",
			4*(length+1), len(buf))
	}

	xr := &ExtendedReport{SSRC: r.ReadUint32()}
	for r.Remaining() > 0 {
		if err := r.CheckRemaining(xrBlockHeaderSize); err != nil {
			return nil, errors.Errorf("truncated XR block header: %v", err)
		}
		blockType := r.ReadByte()
		typeSpecific := r.ReadByte()
		blockWords := int(r.ReadUint16())
		if err := r.CheckRemaining(4 * blockWords); err != nil {
			return nil, errors.Errorf("truncated XR block body: %v", err)
		}

		switch blockType {
		case XRBlockVoIPMetrics:
			if 4*(blockWords+1) != voipMetricsSize {
				return nil, errors.Errorf("invalid VoIP Metrics block length: %d words", blockWords)
			}
			b := new(VoIPMetricsBlock)
			b.readBody(r)
			xr.Blocks = append(xr.Blocks, b)
		default:
			body := make([]byte, 4*blockWords)
			copy(body, r.ReadSlice(4*blockWords))
			xr.Blocks = append(xr.Blocks, &RawXRBlock{
				BlockType:    blockType,
				TypeSpecific: typeSpecific,
				Body:         body,
			})
		}
	}
	return xr, nil
}

// RawXRBlock holds an XR report block of a type this layer does not interpret.
type RawXRBlock struct {
	BlockType    byte
	TypeSpecific byte
	Body         []byte // multiple of 4 bytes
}

func (b *RawXRBlock) ByteLength() int {
	return xrBlockHeaderSize + len(b.Body)
}

func (b *RawXRBlock) writeTo(w *packet.Writer) {
	w.WriteByte(b.BlockType)
	w.WriteByte(b.TypeSpecific)
	w.WriteUint16(uint16(len(b.Body) / 4))
	w.WriteSlice(b.Body)
}

// Packet loss concealment values for the RX config field (RFC 3611 4.7.6).
const (
	PLCUnspecified = 0
	PLCDisabled    = 1
	PLCEnhanced    = 2
	PLCStandard    = 3
)

// Jitter buffer adaptive values for the RX config field.
const (
	JBAUnknown     = 0
	JBAReserved    = 1
	JBANonAdaptive = 2
	JBAAdaptive    = 3
)

// Value meaning "not reported / unavailable" for several one-byte metrics.
const XRNotReported = 127

// VoIPMetricsBlock is a VoIP Metrics Report Block as defined by RFC 3611
// Section 4.7.
//
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |     BT=7      |   reserved    |       block length = 8        |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |                        SSRC of source                         |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |   loss rate   | discard rate  | burst density |  gap density  |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |       burst duration          |         gap duration          |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |     round trip delay          |       end system delay        |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   | signal level  |  noise level  |     RERL      |     Gmin      |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |   R factor    | ext. R factor |    MOS-LQ     |    MOS-CQ     |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |   RX config   |   reserved    |          JB nominal           |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |          JB maximum           |          JB abs max           |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type VoIPMetricsBlock struct {
	SourceSSRC uint32

	LossRate     uint8
	DiscardRate  uint8
	BurstDensity uint8
	GapDensity   uint8

	BurstDuration uint16
	GapDuration   uint16

	RoundTripDelay uint16
	EndSystemDelay uint16

	SignalLevel uint8
	NoiseLevel  uint8
	RERL        uint8
	GMin        uint8

	RFactor    uint8
	ExtRFactor uint8
	MOSLQ      uint8
	MOSCQ      uint8

	// Sub-fields of the RX config byte.
	PacketLossConcealment uint8
	JitterBufferAdaptive  uint8
	JitterBufferRate      uint8

	JitterBufferNominal     uint16
	JitterBufferMaximum     uint16
	JitterBufferAbsoluteMax uint16
}

// NewVoIPMetricsBlock returns a block for the given source with every metric
// this layer cannot measure preset to its "not reported" value.
func NewVoIPMetricsBlock(sourceSSRC uint32) *VoIPMetricsBlock {
	return &VoIPMetricsBlock{
		SourceSSRC:  sourceSSRC,
		SignalLevel: XRNotReported,
		NoiseLevel:  XRNotReported,
		RERL:        XRNotReported,
		RFactor:     XRNotReported,
		ExtRFactor:  XRNotReported,
		MOSLQ:       XRNotReported,
		MOSCQ:       XRNotReported,
	}
}

func (b *VoIPMetricsBlock) ByteLength() int {
	return voipMetricsSize
}

func (b *VoIPMetricsBlock) rxConfig() byte {
	return (b.PacketLossConcealment&0x03)<<6 |
		(b.JitterBufferAdaptive&0x03)<<4 |
		b.JitterBufferRate&0x0f
}

func (b *VoIPMetricsBlock) setRXConfig(v byte) {
	b.PacketLossConcealment = v >> 6 & 0x03
	b.JitterBufferAdaptive = v >> 4 & 0x03
	b.JitterBufferRate = v & 0x0f
}

func (b *VoIPMetricsBlock) writeTo(w *packet.Writer) {
	w.WriteByte(XRBlockVoIPMetrics)
	w.WriteByte(0)
	w.WriteUint16(voipMetricsSize/4 - 1)
	w.WriteUint32(b.SourceSSRC)
	w.WriteByte(b.LossRate)
	w.WriteByte(b.DiscardRate)
	w.WriteByte(b.BurstDensity)
	w.WriteByte(b.GapDensity)
	w.WriteUint16(b.BurstDuration)
	w.WriteUint16(b.GapDuration)
	w.WriteUint16(b.RoundTripDelay)
	w.WriteUint16(b.EndSystemDelay)
	w.WriteByte(b.SignalLevel)
	w.WriteByte(b.NoiseLevel)
	w.WriteByte(b.RERL)
	w.WriteByte(b.GMin)
	w.WriteByte(b.RFactor)
	w.WriteByte(b.ExtRFactor)
	w.WriteByte(b.MOSLQ)
	w.WriteByte(b.MOSCQ)
	w.WriteByte(b.rxConfig())
	w.WriteByte(0)
	w.WriteUint16(b.JitterBufferNominal)
	w.WriteUint16(b.JitterBufferMaximum)
	w.WriteUint16(b.JitterBufferAbsoluteMax)
}

// readBody reads the 32 bytes following the block header.
func (b *VoIPMetricsBlock) readBody(r *packet.Reader) {
	b.SourceSSRC = r.ReadUint32()
	b.LossRate = r.ReadByte()
	b.DiscardRate = r.ReadByte()
	b.BurstDensity = r.ReadByte()
	b.GapDensity = r.ReadByte()
	b.BurstDuration = r.ReadUint16()
	b.GapDuration = r.ReadUint16()
	b.RoundTripDelay = r.ReadUint16()
	b.EndSystemDelay = r.ReadUint16()
	b.SignalLevel = r.ReadByte()
	b.NoiseLevel = r.ReadByte()
	b.RERL = r.ReadByte()
	b.GMin = r.ReadByte()
	b.RFactor = r.ReadByte()
	b.ExtRFactor = r.ReadByte()
	b.MOSLQ = r.ReadByte()
	b.MOSCQ = r.ReadByte()
	b.setRXConfig(r.ReadByte())
	r.Skip(1)
	b.JitterBufferNominal = r.ReadUint16()
	b.JitterBufferMaximum = r.ReadUint16()
	b.JitterBufferAbsoluteMax = r.ReadUint16()
}
