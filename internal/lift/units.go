// internal/lift/units.go
package lift

import "math"

// Pure unit transforms. No IO. No side effects.

// PulsesToMeters converts an encoder pulse count to meters.
// ppm must be > 0; callers validate before converting.
func PulsesToMeters(pulses int64, ppm int64) float64 {
	return float64(pulses) / float64(ppm)
}

// MetersToPulses converts meters to the nearest encoder pulse count.
func MetersToPulses(m float64, ppm int64) int64 {
	return int64(math.Round(m * float64(ppm)))
}

// WithinTravel reports whether pos lies inside the travel range.
// The device reports travel as a signed max: the valid range is
// [0, maxPos] for positive travel and [maxPos, 0] for negative travel.
func WithinTravel(pos, maxPos float64) bool {
	if maxPos < 0 {
		return pos <= 0 && pos >= maxPos
	}
	return pos >= 0 && pos <= maxPos
}
