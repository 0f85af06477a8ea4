package transform

import (
	"strings"

	"github.com/vontio/rtpx/internal/rtp"
)

// Default Gmin for the VoIP metrics burst model, per RFC 3611 Section 4.7.2.
const defaultGMin = 16

// StatisticsConfig collects the session description and the optional
// collaborators a StatisticsEngine draws its metrics from. Every collaborator
// may be nil; metrics with no backing collaborator are reported as
// unavailable.
type StatisticsConfig struct {
	Session   SessionInfo
	Collector ReportCollector

	JitterBuffer JitterBufferControl
	Sources      SourceProvider
	Burst        BurstModel
	RoundTrip    RoundTripEstimator
}

// StatisticsEngine observes the packets crossing a pipeline, maintaining
// traffic counters and jitter aggregates, and manages RTCP extended reports:
// outgoing compound packets gain a locally synthesized XR with VoIP metrics
// (audio sessions with XR negotiated only), and incoming compound packets
// have their XRs consumed and stripped before the stack above sees them.
//
// Counters are not synchronized. Each direction must be driven by a single
// goroutine, which is what the pipeline's caller guarantees; the read-side
// getters are for periodic reporting and may observe slightly stale values.
type StatisticsEngine struct {
	session   SessionInfo
	collector ReportCollector

	jitterBuffer JitterBufferControl
	sources      SourceProvider
	burst        BurstModel
	roundTrip    RoundTripEstimator

	rtpSent      uint64
	rtpReceived  uint64
	rtcpSent     uint64
	rtcpReceived uint64

	lost        int64
	jitterSum   uint64
	jitterCount uint64
	minJitter   int64
	maxJitter   int64
}

func NewStatisticsEngine(cfg StatisticsConfig) *StatisticsEngine {
	return &StatisticsEngine{
		session:      cfg.Session,
		collector:    cfg.Collector,
		jitterBuffer: cfg.JitterBuffer,
		sources:      cfg.Sources,
		burst:        cfg.Burst,
		roundTrip:    cfg.RoundTrip,
		minJitter:    -1,
	}
}

// Apply counts RTP traffic and processes RTCP compound packets. RTP passes
// through untouched. Outbound RTCP is mined for sender/receiver report
// feedback and may grow extended reports; inbound RTCP has its extended
// reports stripped, and is dropped entirely when nothing else remains.
func (e *StatisticsEngine) Apply(dir Direction, pkt *rtp.Packet) *rtp.Packet {
	if !rtp.IsRTCP(pkt) {
		if pkt.Version() == 2 {
			if dir == Send {
				e.rtpSent++
			} else {
				e.rtpReceived++
			}
		}
		return pkt
	}
	if dir == Send {
		return e.applySend(pkt)
	}
	return e.applyReceive(pkt)
}

func (e *StatisticsEngine) applySend(pkt *rtp.Packet) *rtp.Packet {
	e.rtcpSent++

	reports := e.scanOutgoing(pkt.Bytes())
	if e.collector != nil {
		e.collector.RTCPReportSent(pkt.Bytes())
	}

	if e.session.Audio && e.session.xrEnabled() {
		for _, report := range reports {
			xr := e.buildExtendedReport(report)
			if xr == nil {
				continue
			}
			inserted, err := addExtendedReport(pkt, xr)
			if err != nil {
				log.Debug("dropping extended report: %v", err)
				continue
			}
			if e.collector != nil {
				e.collector.RTCPExtendedReportSent(inserted)
			}
		}
	}
	return pkt
}

// scanOutgoing parses every SR/RR sub-packet of an outgoing compound and
// folds each into the running aggregates.
func (e *StatisticsEngine) scanOutgoing(b []byte) []*rtp.RTCPReport {
	var reports []*rtp.RTCPReport
	off := 0
	for off < len(b) {
		n, ok := rtp.RTCPLength(b, off, len(b)-off)
		if !ok {
			break
		}
		report, err := rtp.ParseRTCPReport(b[off : off+n])
		if err != nil {
			log.Debug("outgoing RTCP sub-packet did not parse: %v", err)
		} else if report != nil {
			e.recordOutgoingReport(report)
			reports = append(reports, report)
		}
		off += n
	}
	return reports
}

func (e *StatisticsEngine) applyReceive(pkt *rtp.Packet) *rtp.Packet {
	e.rtcpReceived++

	for _, xr := range removeExtendedReports(pkt) {
		if e.collector != nil {
			e.collector.RTCPExtendedReportReceived(xr)
		}
	}
	if pkt.Length() == 0 {
		// The compound carried nothing but extended reports.
		return nil
	}
	if e.collector != nil {
		e.collector.RTCPReportReceived(pkt.Bytes())
	}
	return pkt
}

// recordOutgoingReport folds the first feedback block of an outgoing sender
// or receiver report into the jitter and loss aggregates. The block describes
// our own reception of the remote source, which is what the aggregates track.
func (e *StatisticsEngine) recordOutgoingReport(report *rtp.RTCPReport) {
	if len(report.Feedback) == 0 {
		return
	}
	fb := report.Feedback[0]
	e.lost = int64(fb.TotalLost)

	j := int64(fb.Jitter)
	e.jitterSum += uint64(j)
	e.jitterCount++
	if e.minJitter < 0 || j < e.minJitter {
		e.minJitter = j
	}
	if j > e.maxJitter {
		e.maxJitter = j
	}
}

// buildExtendedReport synthesizes the XR matching one outgoing report: one
// VoIP metrics block per reported source this receiver actually tracks.
// Returns nil when no source contributes, so an empty XR is never sent.
func (e *StatisticsEngine) buildExtendedReport(report *rtp.RTCPReport) *rtp.ExtendedReport {
	if !e.session.xrVoIPMetrics() || e.sources == nil {
		return nil
	}
	xr := &rtp.ExtendedReport{SSRC: report.SenderSSRC}
	for _, fb := range report.Feedback {
		src := e.lookupSource(fb.Source)
		if src == nil {
			continue
		}
		xr.Blocks = append(xr.Blocks, e.voipMetrics(report.SenderSSRC, src))
	}
	if len(xr.Blocks) == 0 {
		return nil
	}
	return xr
}

func (e *StatisticsEngine) lookupSource(ssrc uint32) ReceptionStats {
	for _, src := range e.sources.Sources() {
		if src.SSRC() == ssrc {
			return src
		}
	}
	return nil
}

// voipMetrics builds a VoIP metrics block for one remote source from whatever
// collaborators are wired in. Loss rate is FEC-corrected: packets recovered
// through repair do not count as lost.
func (e *StatisticsEngine) voipMetrics(localSSRC uint32, src ReceptionStats) *rtp.VoIPMetricsBlock {
	b := rtp.NewVoIPMetricsBlock(src.SSRC())
	b.GMin = defaultGMin
	b.PacketLossConcealment = concealment(e.session.EncodingName)

	expected := src.PacketsExpected()
	if expected > 0 {
		lost := src.PacketsLost() - src.PacketsRepaired()
		if lost < 0 {
			lost = 0
		}
		b.LossRate = clampRate(256 * lost / expected)
	}

	if jb := e.jitterBuffer; jb != nil {
		if expected > 0 {
			b.DiscardRate = clampRate(256 * jb.Discarded() / expected)
		}
		b.JitterBufferNominal = clampMillis(jb.NominalDelay())
		b.JitterBufferMaximum = clampMillis(jb.MaximumDelay())
		if jb.Adaptive() {
			b.JitterBufferAdaptive = rtp.JBAAdaptive
			b.JitterBufferAbsoluteMax = clampMillis(jb.AbsoluteMaximumDelay())
		} else {
			b.JitterBufferAdaptive = rtp.JBANonAdaptive
			// A fixed buffer cannot exceed its configured maximum.
			b.JitterBufferAbsoluteMax = b.JitterBufferMaximum
		}
	}

	if e.burst != nil {
		// Only the densities and durations come from the packed word. The
		// loss and discard rates packed alongside them are superseded by the
		// FEC-aware values computed above.
		packed := e.burst.PackedBurstMetrics()
		b.GapDuration = uint16(packed)
		b.BurstDuration = uint16(packed >> 16)
		b.GapDensity = uint8(packed >> 32)
		b.BurstDensity = uint8(packed >> 40)
		b.GMin = e.burst.GMin()
	}

	if e.roundTrip != nil {
		if ms := e.roundTrip.RoundTripMillis(localSSRC); ms >= 0 {
			b.RoundTripDelay = clampMillis(ms)
		}
	}
	return b
}

// concealment classifies the codec's packet loss concealment for the RX
// config field. Opus and SILK conceal as part of normal decoding; for
// anything else we assume none.
func concealment(encodingName string) uint8 {
	name := strings.ToLower(encodingName)
	if strings.Contains(name, "opus") || strings.Contains(name, "silk") {
		return rtp.PLCStandard
	}
	return rtp.PLCDisabled
}

// RTPPacketsSent returns the number of RTP packets seen on the send path.
func (e *StatisticsEngine) RTPPacketsSent() uint64 {
	return e.rtpSent
}

// RTPPacketsReceived returns the number of RTP packets seen on the receive
// path.
func (e *StatisticsEngine) RTPPacketsReceived() uint64 {
	return e.rtpReceived
}

// RTCPPacketsSent returns the number of RTCP packets seen on the send path.
func (e *StatisticsEngine) RTCPPacketsSent() uint64 {
	return e.rtcpSent
}

// RTCPPacketsReceived returns the number of RTCP packets seen on the receive
// path.
func (e *StatisticsEngine) RTCPPacketsReceived() uint64 {
	return e.rtcpReceived
}

// PacketsLost returns the cumulative loss from the most recent outgoing
// report.
func (e *StatisticsEngine) PacketsLost() int64 {
	return e.lost
}

// MinInterArrivalJitter returns the smallest jitter reported so far, in
// timestamp units, or -1 before any report.
func (e *StatisticsEngine) MinInterArrivalJitter() int64 {
	return e.minJitter
}

// MaxInterArrivalJitter returns the largest jitter reported so far, in
// timestamp units.
func (e *StatisticsEngine) MaxInterArrivalJitter() int64 {
	return e.maxJitter
}

// AvgInterArrivalJitter returns the mean jitter across all reports, or 0
// before any report.
func (e *StatisticsEngine) AvgInterArrivalJitter() float64 {
	if e.jitterCount == 0 {
		return 0
	}
	return float64(e.jitterSum) / float64(e.jitterCount)
}

func clampRate(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampMillis(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
