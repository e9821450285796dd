// Package timeparse converts the time values APIs put in rate-limit headers into
// absolute unix-millisecond timestamps.
package timeparse

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseDurationStr converts strings like "1s", "6m0s" or a bare number of seconds into ms.
// It returns 0 when s cannot be parsed.
func ParseDurationStr(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sec * 1000
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d.Milliseconds()
	}
	return 0
}

// RetryAfter parses a Retry-After header, either delta-seconds or an HTTP-date,
// into the absolute unix ms at which the request may be retried.
func RetryAfter(value string, now time.Time) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if sec, err := strconv.ParseInt(value, 10, 64); err == nil {
		if sec < 0 {
			sec = 0
		}
		return now.UnixMilli() + sec*1000, true
	}
	if t, err := http.ParseTime(value); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// UnixToMs converts a UNIX timestamp in seconds to milliseconds.
func UnixToMs(timestamp int64) int64 {
	return timestamp * 1000
}

// IsInFuture checks if a timestamp (in ms) is later than now.
func IsInFuture(ms int64, now time.Time) bool {
	return ms > now.UnixMilli()
}
