package logging

import (
	"fmt"
	"os"
	"strings"
)

// RTPX_LOGLEVEL holds comma-separated directives, each either a bare level
// ("debug", "3") setting the default, or "tag=level" overriding one tag.
// LOGLEVEL is honored as a fallback for use alongside other tooling.
const envVar = "RTPX_LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var tagLevels []tagLevel

func init() {
	directives := os.Getenv(envVar)
	if directives == "" {
		directives = os.Getenv("LOGLEVEL")
	}
	for _, d := range strings.Split(directives, ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := parseLevel(v[len(v)-1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid %s directive '%s': %s\n", envVar, d, err)
			continue
		}
		if len(v) == 1 {
			defaultLevel = level
		} else {
			tagLevels = append(tagLevels, tagLevel{v[0], level})
		}
	}

	DefaultLogger.Level = defaultLevel
}

func determineLevel(tag string, fallback Level) Level {
	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level
		}
	}
	return fallback
}
