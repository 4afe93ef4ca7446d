package api

import (
	"strconv"
	"time"
)

// Service ids are snowflakes:
// 42 bits (ms since service epoch) | 5 bits (worker) | 5 bits (process) | 12 bits (increment)
// Ids grow monotonically with creation time, so a numeric compare orders them
// by age even when message timestamps disagree.
const (
	// snowflakeEpoch is 2015-01-01T00:00:00Z in milliseconds
	snowflakeEpoch = 1420070400000
	timestampShift = 22
)

// ParseID parses a snowflake id as an unsigned 64-bit integer.
// Empty or non-numeric ids parse as 0 so they sort last in descending order.
func ParseID(id string) uint64 {
	if id == "" {
		return 0
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IDTime returns the creation time embedded in a snowflake id.
// Unparsable ids return the zero time.
func IDTime(id string) time.Time {
	n := ParseID(id)
	if n == 0 {
		return time.Time{}
	}
	ms := int64(n>>timestampShift) + snowflakeEpoch
	return time.UnixMilli(ms).UTC()
}

// CompareIDs compares two ids numerically: -1 if a < b, 0 if equal, +1 if a > b
func CompareIDs(a, b string) int {
	na, nb := ParseID(a), ParseID(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// MaxID returns the numerically highest id, or "" when ids is empty.
// Ties keep the first occurrence.
func MaxID(ids ...string) string {
	best := ""
	for i, id := range ids {
		if i == 0 || CompareIDs(id, best) > 0 {
			best = id
		}
	}
	return best
}
