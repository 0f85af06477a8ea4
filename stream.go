// Package rtpx provides an in-place transform layer for RTP sessions: RED
// redundancy stripping, RTCP quality instrumentation, and RTCP Extended
// Report management, applied symmetrically to the send and receive paths of
// a stream.
package rtpx

import (
	"github.com/pkg/errors"

	"github.com/vontio/rtpx/internal/packet"
	"github.com/vontio/rtpx/internal/rtp"
	"github.com/vontio/rtpx/internal/transform"
)

// Spare bytes reserved ahead of each packet so that transforms which enlarge
// the packet (XR insertion) do not reallocate.
const packetHeadroom = 256

// Config describes one RTP session and the collaborators its transform chain
// draws metrics from. The collaborator fields may be nil, in which case the
// corresponding metrics are reported as unavailable.
type Config struct {
	// Audio indicates an audio session. VoIP metrics reporting is only
	// performed for audio.
	Audio bool

	// EncodingName is the negotiated codec, e.g. "opus".
	EncodingName string

	// XRParameters is the negotiated rtcp-xr SDP attribute value. Leave empty
	// when extended reports were not negotiated.
	XRParameters string

	// REDPayloadType is the negotiated RED payload type, in the dynamic
	// range. Zero leaves RED stripping unconfigured.
	REDPayloadType int

	Collector    transform.ReportCollector
	JitterBuffer transform.JitterBufferControl
	Sources      transform.SourceProvider
	Burst        transform.BurstModel
	RoundTrip    transform.RoundTripEstimator
}

// A Stream applies the configured transform chain to the packets of one RTP
// session. Outbound and Inbound each expect to be driven by one goroutine;
// the two may run concurrently with each other.
type Stream struct {
	pipeline *transform.Pipeline
	stats    *transform.StatisticsEngine
	red      *transform.REDFilter
}

// NewStream builds the transform chain for a session.
func NewStream(config Config) (*Stream, error) {
	if pt := config.REDPayloadType; pt != 0 && (pt < 96 || pt > 127) {
		return nil, errors.Errorf("RED payload type %d outside the dynamic range", pt)
	}

	s := &Stream{
		stats: transform.NewStatisticsEngine(transform.StatisticsConfig{
			Session: transform.SessionInfo{
				Audio:        config.Audio,
				EncodingName: config.EncodingName,
				XRParameters: config.XRParameters,
			},
			Collector:    config.Collector,
			JitterBuffer: config.JitterBuffer,
			Sources:      config.Sources,
			Burst:        config.Burst,
			RoundTrip:    config.RoundTrip,
		}),
	}

	stages := []transform.Transformer{s.stats}
	if config.REDPayloadType != 0 {
		s.red = transform.NewREDFilter(byte(config.REDPayloadType))
		stages = append(stages, s.red)
	}
	s.pipeline = transform.NewPipeline(stages...)
	return s, nil
}

// SetREDEnabled toggles RED stripping on the send path. It returns an error
// when no RED payload type was configured. Call from the goroutine driving
// the send path.
func (s *Stream) SetREDEnabled(enabled bool) error {
	if s.red == nil {
		return errors.New("no RED payload type configured")
	}
	s.red.SetEnabled(enabled)
	return nil
}

// Outbound runs a batch of outgoing packets through the chain and returns
// the transformed packets. Entries come back nil when the chain consumed the
// packet. Inputs are copied; the returned slices are freshly allocated.
func (s *Stream) Outbound(packets [][]byte) [][]byte {
	return unwrap(s.pipeline.Outbound(wrap(packets)))
}

// Inbound runs a batch of incoming packets through the chain in reverse
// stage order.
func (s *Stream) Inbound(packets [][]byte) [][]byte {
	return unwrap(s.pipeline.Inbound(wrap(packets)))
}

// RTPPacketsSent returns the number of RTP packets seen on the send path.
func (s *Stream) RTPPacketsSent() uint64 { return s.stats.RTPPacketsSent() }

// RTPPacketsReceived returns the number of RTP packets seen on the receive
// path.
func (s *Stream) RTPPacketsReceived() uint64 { return s.stats.RTPPacketsReceived() }

// RTCPPacketsSent returns the number of RTCP packets seen on the send path.
func (s *Stream) RTCPPacketsSent() uint64 { return s.stats.RTCPPacketsSent() }

// RTCPPacketsReceived returns the number of RTCP packets seen on the receive
// path.
func (s *Stream) RTCPPacketsReceived() uint64 { return s.stats.RTCPPacketsReceived() }

// PacketsLost returns the cumulative loss from the most recent outgoing
// report.
func (s *Stream) PacketsLost() int64 { return s.stats.PacketsLost() }

// MinInterArrivalJitter returns the smallest reported jitter in timestamp
// units, or -1 before any report.
func (s *Stream) MinInterArrivalJitter() int64 { return s.stats.MinInterArrivalJitter() }

// MaxInterArrivalJitter returns the largest reported jitter in timestamp
// units.
func (s *Stream) MaxInterArrivalJitter() int64 { return s.stats.MaxInterArrivalJitter() }

// AvgInterArrivalJitter returns the mean reported jitter, or 0 before any
// report.
func (s *Stream) AvgInterArrivalJitter() float64 { return s.stats.AvgInterArrivalJitter() }

func wrap(packets [][]byte) []*rtp.Packet {
	pkts := make([]*rtp.Packet, len(packets))
	for i, p := range packets {
		if p == nil {
			continue
		}
		storage := make([]byte, packetHeadroom+len(p))
		copy(storage[packetHeadroom:], p)
		buf := packet.NewBuffer(storage)
		buf.Shrink(packetHeadroom)
		pkts[i] = rtp.NewPacket(buf)
	}
	return pkts
}

func unwrap(pkts []*rtp.Packet) [][]byte {
	packets := make([][]byte, len(pkts))
	for i, pkt := range pkts {
		if pkt == nil {
			continue
		}
		packets[i] = pkt.Bytes()
	}
	return packets
}
