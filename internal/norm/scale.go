// internal/norm/scale.go
package norm

import "time"

// Magnitude thresholds separating seconds / millis / micros / nanos.
const (
	maxSeconds = uint64(1_000_000_000)         // < 10^9  → seconds
	maxMillis  = uint64(1_000_000_000_000)     // < 10^12 → milliseconds
	maxMicros  = uint64(1_000_000_000_000_000) // < 10^15 → microseconds
)

// TimeScaler converts a raw venue timestamp of unknown unit into
// nanoseconds since epoch. Isolated as an interface so that a stricter
// per-venue pinned-unit implementation can replace the guessing one
// without touching callers.
type TimeScaler interface {
	ToNanos(raw uint64) uint64
}

// MagnitudeScaler guesses the unit from the order of magnitude.
// A zero value means "unknown" and is replaced with the current time.
type MagnitudeScaler struct {
	// Now overrides the wall clock in tests; nil means time.Now.
	Now func() uint64
}

func (s MagnitudeScaler) ToNanos(raw uint64) uint64 {
	switch {
	case raw == 0:
		return s.now()
	case raw < maxSeconds:
		return raw * 1_000_000_000
	case raw < maxMillis:
		return raw * 1_000_000
	case raw < maxMicros:
		return raw * 1_000
	default:
		return raw
	}
}

func (s MagnitudeScaler) now() uint64 {
	if s.Now != nil {
		return s.Now()
	}
	return uint64(time.Now().UnixNano())
}
