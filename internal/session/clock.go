package session

import "time"

// elapsedMillis is the wall time spent since the turn was armed.
func elapsedMillis(turnStartedAt *time.Time, now time.Time) int64 {
	if turnStartedAt == nil {
		return 0
	}
	ms := now.Sub(*turnStartedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// spend subtracts elapsed time from a clock, flooring at zero.
func spend(leftMs, elapsedMs int64) int64 {
	left := leftMs - elapsedMs
	if left < 0 {
		return 0
	}
	return left
}

// flagged reports whether a clock has run out.
func flagged(leftMs, elapsedMs int64) bool {
	return leftMs-elapsedMs <= 0
}
