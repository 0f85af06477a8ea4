package transform

import (
	"strings"
)

// SessionInfo carries the negotiated session properties the statistics engine
// needs to decide what to report.
type SessionInfo struct {
	// Audio is true for audio sessions. RTCP XR VoIP metrics are only
	// meaningful for audio and are suppressed otherwise.
	Audio bool

	// EncodingName is the negotiated codec name, e.g. "opus". Matched
	// case-insensitively when classifying packet loss concealment.
	EncodingName string

	// XRParameters is the value of the negotiated rtcp-xr attribute, empty
	// when extended reports were not negotiated.
	XRParameters string
}

// xrEnabled reports whether RTCP extended reports were negotiated at all.
func (s SessionInfo) xrEnabled() bool {
	return s.XRParameters != ""
}

// xrVoIPMetrics reports whether the VoIP metrics report block was negotiated.
func (s SessionInfo) xrVoIPMetrics() bool {
	return strings.Contains(s.XRParameters, "voip-metrics")
}

// JitterBufferControl exposes the receive-side jitter buffer's configuration
// and occupancy for VoIP metrics reporting. Delays are in milliseconds.
type JitterBufferControl interface {
	// Adaptive reports whether the buffer resizes itself.
	Adaptive() bool

	// NominalDelay is the current target playout delay.
	NominalDelay() int

	// MaximumDelay is the current worst-case playout delay.
	MaximumDelay() int

	// AbsoluteMaximumDelay is the hard upper bound an adaptive buffer may
	// grow to. Ignored for fixed buffers, whose absolute maximum is their
	// maximum by definition.
	AbsoluteMaximumDelay() int

	// Discarded is the count of packets the buffer has dropped, for arriving
	// too early, too late, or across a reset.
	Discarded() int
}

// ReceptionStats describes what a receiver has seen from one remote source.
type ReceptionStats interface {
	// SSRC of the remote source.
	SSRC() uint32

	// PacketsExpected is the extended-sequence-number span since reception
	// began.
	PacketsExpected() int

	// PacketsLost is the cumulative loss count, before any repair.
	PacketsLost() int

	// PacketsRepaired is the count of losses recovered through FEC or
	// retransmission.
	PacketsRepaired() int
}

// SourceProvider enumerates the remote sources a receiver is tracking.
type SourceProvider interface {
	Sources() []ReceptionStats
}

// BurstModel summarizes loss and discard distribution per RFC 3611 Section
// 4.7.2: alternating burst and gap periods, classified against the Gmin
// threshold.
type BurstModel interface {
	// PackedBurstMetrics returns the model's current state packed into one
	// word, low byte first: gap duration (16 bits, ms), burst duration
	// (16 bits, ms), gap density (8 bits, 1/256 units), burst density
	// (8 bits), discard rate (8 bits), loss rate (8 bits). The packed
	// discard and loss rates are informational only; reporting computes
	// both independently.
	PackedBurstMetrics() uint64

	// GMin is the loss/discard count threshold separating bursts from gaps.
	GMin() uint8
}

// RoundTripEstimator supplies round trip time estimates per reporting source.
type RoundTripEstimator interface {
	// RoundTripMillis returns the estimate for the given sender SSRC in
	// milliseconds, or a negative value when none is available yet.
	RoundTripMillis(ssrc uint32) int
}

// ReportCollector receives every RTCP report that crosses the session, in
// both directions, after the statistics engine has updated its counters.
// Implementations must not retain the packet slices past the call.
type ReportCollector interface {
	RTCPReportSent(report []byte)
	RTCPReportReceived(report []byte)
	RTCPExtendedReportSent(report []byte)
	RTCPExtendedReportReceived(report []byte)
}
