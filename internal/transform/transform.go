// Package transform rewrites RTP and RTCP packets in flight between a media
// engine and the network. Transformers are chained into a Pipeline that runs
// over both directions of a stream; a failure while processing one packet
// never disturbs its siblings or the stream itself.
package transform

import (
	"github.com/vontio/rtpx/internal/logging"
	"github.com/vontio/rtpx/internal/rtp"
)

var log = logging.DefaultLogger.WithTag("transform")

// Direction distinguishes the send path from the receive path of a stream.
type Direction int

const (
	// Send covers packets leaving the media engine towards the network.
	Send Direction = iota

	// Receive covers packets arriving from the network.
	Receive
)

func (d Direction) String() string {
	if d == Send {
		return "send"
	}
	return "receive"
}

// A Transformer rewrites one packet at a time. Apply returns the packet to
// pass further down the chain, which may be the input itself (edited in place
// or untouched), or nil to drop the packet. On any parse failure a Transformer
// must leave the packet unmodified and return it as-is; malformed input is
// never grounds for disturbing the stream.
type Transformer interface {
	Apply(dir Direction, pkt *rtp.Packet) *rtp.Packet
}

// Log only every Nth fault per direction past the first, lest a
// steady stream of bad packets flood the log.
const faultsPerLogEntry = 1000

// A Pipeline runs an ordered chain of Transformers over batches of packets.
// On the send path stages run in order; on the receive path they run in
// reverse, so that a stage undoes on reception what its successors did on
// sending.
//
// Each packet of a batch is processed independently: a panic while one packet
// is in flight is recovered at the pipeline boundary, counted, logged at a
// bounded rate, and the packet slot keeps its last known-good value. Only
// goroutine teardown (runtime.Goexit), which recover cannot intercept,
// escapes. Callers serialize calls per direction; the fault counters are
// deliberately unsynchronized, like every other per-stream counter in this
// package.
type Pipeline struct {
	// Stages in application order, indexed by Direction.
	stages [2][]Transformer

	// Faults recovered so far, indexed by Direction.
	faults [2]uint64
}

func NewPipeline(stages ...Transformer) *Pipeline {
	reversed := make([]Transformer, len(stages))
	for i, stage := range stages {
		reversed[len(stages)-1-i] = stage
	}
	pl := new(Pipeline)
	pl.stages[Send] = stages
	pl.stages[Receive] = reversed
	return pl
}

// Outbound runs the batch through the chain in stage order. The slice is
// edited in place and returned; dropped packets become nil entries.
func (pl *Pipeline) Outbound(pkts []*rtp.Packet) []*rtp.Packet {
	return pl.apply(Send, pkts)
}

// Inbound runs the batch through the chain in reverse stage order.
func (pl *Pipeline) Inbound(pkts []*rtp.Packet) []*rtp.Packet {
	return pl.apply(Receive, pkts)
}

// Faults returns the number of recovered per-packet faults in the given
// direction.
func (pl *Pipeline) Faults(dir Direction) uint64 {
	return pl.faults[dir]
}

func (pl *Pipeline) apply(dir Direction, pkts []*rtp.Packet) []*rtp.Packet {
	for i, pkt := range pkts {
		if pkt == nil {
			continue
		}
		pkts[i] = pl.applyOne(dir, pkt)
	}
	return pkts
}

// applyOne runs a single packet through every stage, recovering any panic and
// reverting to the last packet value known to be good.
func (pl *Pipeline) applyOne(dir Direction, pkt *rtp.Packet) (out *rtp.Packet) {
	out = pkt
	defer func() {
		if r := recover(); r != nil {
			pl.faults[dir]++
			if n := pl.faults[dir]; n == 1 || n%faultsPerLogEntry == 0 {
				log.Error("recovered fault #%d on %s path: %v", n, dir, r)
			}
		}
	}()

	for _, stage := range pl.stages[dir] {
		next := stage.Apply(dir, out)
		if next == nil {
			return nil
		}
		out = next
	}
	return out
}
