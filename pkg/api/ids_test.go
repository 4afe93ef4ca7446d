package api

import (
	"strconv"
	"time"
)

func formatID(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// makeID builds a snowflake for t with a zero worker/process and the given increment
func makeID(t time.Time, increment uint16) string {
	ms := t.UnixMilli() - snowflakeEpoch
	if ms < 0 {
		ms = 0
	}
	return formatID(uint64(ms)<<timestampShift | uint64(increment&0xFFF))
}
