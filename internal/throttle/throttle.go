// Package throttle implements per-project event throttling. Projects and
// organizations carry a throttle rate between 0 and 100; that fraction of
// incoming requests is rejected probabilistically, with a Retry-After that
// grows steeply as the rate approaches 100.
package throttle

import (
	"math"
	"math/rand/v2"
)

// RetryAfter returns the Retry-After seconds for a given throttle rate.
// The curve is gentle at low rates and steep near full throttling, so a
// project at 100 backs clients off for over ten minutes.
func RetryAfter(rate int) int {
	if rate <= 0 {
		return 0
	}
	return int(math.Ceil(0.02 * math.Pow(float64(rate), 2.3)))
}

// ShouldThrottle reports whether a request against a project with the given
// throttle rate should be rejected. A rate of 0 never throttles; 100 always
// does.
func ShouldThrottle(rate int) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 100 {
		return true
	}
	return rand.IntN(100) < rate
}
