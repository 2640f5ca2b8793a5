package state

import "math"

// ClampHealth applies delta to health while keeping it within [0, max].
// It returns the new value and whether it changed.
func ClampHealth(health, max, delta float64) (float64, bool) {
	if delta == 0 {
		return health, false
	}
	next := health + delta
	if next < 0 {
		next = 0
	}
	if max > 0 && next > max {
		next = max
	}
	if math.Abs(next-health) < 1e-6 {
		return health, false
	}
	return next, true
}
