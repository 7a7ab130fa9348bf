package supervisor

import "time"

// BackoffFor returns the delay before restart attempt n (1-based): doubling
// from base, capped at max. Attempt 0 (or below) sleeps nothing.
func BackoffFor(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
