package util

import (
	"strconv"
	"time"
)

// unixMilliCutoff separates second and millisecond epoch values. Seconds stay
// below it until the year 5138.
const unixMilliCutoff = 1e11

// UnixAuto converts an epoch value in seconds or milliseconds to UTC time.
func UnixAuto(v int64) time.Time {
	if v > unixMilliCutoff || v < -unixMilliCutoff {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds.
// Results are in UTC. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}
