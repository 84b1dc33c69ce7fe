package carousel

import (
	"math"
	"strings"
)

// NormalizeTo360 wraps an angle in degrees into [0, 360).
func NormalizeTo360(angle float64) float64 {
	// math.Mod is exact, so values already in range come back unchanged.
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds up to exactly 360.
	if a >= 360 {
		return 0
	}
	return a
}

// NormalizeTo180 folds an angle already in [0, 360) into its absolute
// deviation from front-center, in [0, 180].
func NormalizeTo180(angle float64) float64 {
	if angle > 180 {
		return math.Abs(360 - angle)
	}
	return math.Abs(angle)
}

// Direction constrains which way an animation may spin between two angles.
type Direction int

const (
	Auto Direction = iota
	Clockwise
	CounterClockwise
)

func (d Direction) String() string {
	switch d {
	case Clockwise:
		return "clockwise"
	case CounterClockwise:
		return "counterClockwise"
	default:
		return "auto"
	}
}

// ParseDirection maps a direction name to a Direction.
// Anything unrecognised, including the empty string, is Auto.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clockwise", "cw":
		return Clockwise
	case "counterclockwise", "counter_clockwise", "counter-clockwise", "ccw":
		return CounterClockwise
	default:
		return Auto
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	*d = ParseDirection(string(b))
	return nil
}

// ShortestDelta returns the signed angular distance to travel from one angle
// to another. Clockwise results are in [0, 360), counter-clockwise results
// in (-360, 0], and Auto results in [-180, 180].
func ShortestDelta(from, to float64, dir Direction) float64 {
	delta := NormalizeTo360(to) - NormalizeTo360(from)

	switch dir {
	case Clockwise:
		if delta < 0 {
			delta += 360
		}
	case CounterClockwise:
		if delta > 0 {
			delta -= 360
		}
	default:
		if delta > 180 {
			delta -= 360
		} else if delta < -180 {
			delta += 360
		}
	}
	return delta
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// EaseInOutCubic accelerates through the first half and decelerates through
// the second.
func EaseInOutCubic(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// EaseOutCubic starts fast and decelerates into the target.
func EaseOutCubic(t float64) float64 {
	t = clamp01(t)
	return 1 - math.Pow(1-t, 3)
}

// PerspectiveDistance derives the viewer distance for a ring of the given
// radius. A positive custom value is honoured but never allowed closer than
// radius*minMultiplier.
func PerspectiveDistance(radius, custom, multiplier, minMultiplier float64) float64 {
	if custom > 0 {
		return math.Max(custom, radius*minMultiplier)
	}
	return radius * multiplier
}

// perspectiveMargin keeps the viewer strictly behind the nearest item.
const perspectiveMargin = 1.0

// SafePerspective returns perspective unchanged when it lies beyond the
// largest forward displacement an item can reach, and otherwise pushes it
// just past that displacement so the host's projection never divides by a
// non-positive distance.
func SafePerspective(perspective, maxDisplacement float64) float64 {
	if perspective > maxDisplacement {
		return perspective
	}
	return maxDisplacement + perspectiveMargin
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
