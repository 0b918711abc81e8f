package base

import "time"

// CurrentTimeMillis returns the wall clock in Unix milliseconds
func CurrentTimeMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// CurrentTimeNanos returns the wall clock in Unix nanoseconds
func CurrentTimeNanos() int64 {
	return time.Now().UnixNano()
}
