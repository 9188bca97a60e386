package paproto

import (
	"strings"
	"time"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01T00:00:00Z) and the Unix epoch.
const ntpEpochOffset = 2208988800

// isoLayouts are attempted in order when parsing an ISO-8601 timestamp for
// Digi-ASCII datalog replay.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// NTPNow returns the current time as NTP seconds (with fractional component)
// since 1900-01-01 UTC.
func NTPNow() float64 {
	return TimeToNTP(time.Now())
}

// TimeToNTP converts a time.Time to NTP seconds since 1900-01-01 UTC.
func TimeToNTP(t time.Time) float64 {
	t = t.UTC()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9 + ntpEpochOffset
}

// NTPToTime converts NTP seconds since 1900-01-01 UTC to a time.Time.
func NTPToTime(ntp float64) time.Time {
	unix := ntp - ntpEpochOffset
	sec := int64(unix)
	nsec := int64((unix - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// ParseISOToNTP parses an ISO-8601 UTC timestamp (YYYY-MM-DDTHH:MM:SS[.ffffff]Z)
// as used by Digi-ASCII datalog records, returning NTP seconds since
// 1900-01-01 UTC. Returns ErrBadTimestamp if the string cannot be parsed.
func ParseISOToNTP(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeToNTP(t), nil
		}
	}
	return 0, ErrBadTimestamp
}

// ntpParts splits an NTP time into its integer-seconds and fractional
// components, the latter scaled by 2^32 as stored on the wire.
func ntpParts(ntp float64) (high uint32, low uint32) {
	if ntp < 0 {
		ntp = 0
	}
	whole := float64(uint32(ntp))
	frac := ntp - whole
	return uint32(ntp), uint32(frac * 4294967296.0)
}

// ntpFromParts reassembles NTP seconds from wire (TSHigh, TSLow) parts.
func ntpFromParts(high, low uint32) float64 {
	return float64(high) + float64(low)/4294967296.0
}
