package rtp

// common.go contains generic logic that is common between RTP and RTCP (i.e.
// the data protocol and the control protocol).

import (
	"fmt"
)

const (
	// RFC 3550 defines RTP version 2.
	rtpVersion = 2

	fixedHeaderSize = 12
)

type errBadVersion byte

func (e errBadVersion) Error() string {
	return fmt.Sprintf("invalid RTP version: %d", byte(e))
}
