// Package deadline classifies in-flight work against its time allowance.
package deadline

import "time"

// SecondsRemaining returns the seconds left before the allowance runs
// out. A negative result means the work is late.
func SecondsRemaining(startedAt time.Time, allowed time.Duration, now time.Time) int64 {
	elapsed := now.Sub(startedAt)
	return int64((allowed - elapsed) / time.Second)
}

// RemainingUntil returns the seconds left before an absolute deadline.
func RemainingUntil(deadline, now time.Time) int64 {
	return int64(deadline.Sub(now) / time.Second)
}

// IsLate reports whether the elapsed time exceeds the allowance.
func IsLate(startedAt time.Time, allowed time.Duration, now time.Time) bool {
	return SecondsRemaining(startedAt, allowed, now) < 0
}
