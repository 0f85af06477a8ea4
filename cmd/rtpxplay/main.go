package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vontio/rtpx"
	"github.com/vontio/rtpx/internal/rtpdump"
)

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string

var (
	flagInput    string
	flagDest     string
	flagRED      int
	flagLoop     bool
	flagFullRate bool
	flagHelp     bool
	flagVersion  bool
)

func init() {
	flag.StringVarP(&flagInput, "input", "i", "-", "rtpdump recording to replay")
	flag.StringVarP(&flagDest, "dest", "d", "127.0.0.1:5004", "Replay destination")
	flag.IntVarP(&flagRED, "strip-red", "r", 0, "Strip RED with this payload type")
	flag.BoolVarP(&flagLoop, "loop", "l", false, "Restart from the top at end of file")
	flag.BoolVarP(&flagFullRate, "full-rate", "f", false, "Ignore recorded timing")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

func version() {
	fmt.Println("rtpxplay", GitRevisionId)
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	stream, err := rtpx.NewStream(rtpx.Config{
		Audio:          true,
		REDPayloadType: flagRED,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "rtpxplay:", err)
		os.Exit(1)
	}
	if flagRED != 0 {
		stream.SetREDEnabled(true)
	}

	conn, err := net.Dial("udp", flagDest)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rtpxplay:", err)
		os.Exit(1)
	}
	defer conn.Close()

	for {
		if err := replay(stream, conn); err != nil {
			fmt.Fprintln(os.Stderr, "rtpxplay:", err)
			os.Exit(1)
		}
		if !flagLoop || flagInput == "-" {
			break
		}
	}

	fmt.Printf("replayed %d RTP and %d RTCP packets\n",
		stream.RTPPacketsSent(), stream.RTCPPacketsSent())
}

// replay plays the recording once, pacing records by their capture offsets
// unless --full-rate was given.
func replay(stream *rtpx.Stream, conn net.Conn) error {
	var in io.Reader = os.Stdin
	if flagInput != "-" {
		f, err := os.Open(flagInput)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	r, err := rtpdump.NewReader(in)
	if err != nil {
		return err
	}

	begin := time.Now()
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if !flagFullRate {
			if wait := rec.Offset - time.Since(begin); wait > 0 {
				time.Sleep(wait)
			}
		}

		for _, p := range stream.Outbound([][]byte{rec.Payload}) {
			if p == nil {
				continue
			}
			if _, err := conn.Write(p); err != nil {
				return err
			}
		}
	}
}
