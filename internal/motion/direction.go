// Package motion models the directional motion of a clip at its start and end,
// and aggregates per-frame motion vectors into those summaries.
package motion

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnknownDirection = errors.New("unknown motion direction")

// Direction is one of the eight compass points, or Static / Complex.
// The string value is the persisted form.
type Direction string

const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"
	Static    Direction = "static"
	Complex   Direction = "complex"
)

// Directions lists every direction in declaration order.
var Directions = []Direction{
	North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest, Static, Complex,
}

var opposites = map[Direction]Direction{
	North:     South,
	NorthEast: SouthWest,
	East:      West,
	SouthEast: NorthWest,
	South:     North,
	SouthWest: NorthEast,
	West:      East,
	NorthWest: SouthEast,
	Static:    Static,
	Complex:   Complex,
}

// compassAngles is clockwise from North. Static and Complex have no angle.
var compassAngles = map[Direction]float64{
	North:     0,
	NorthEast: 45,
	East:      90,
	SouthEast: 135,
	South:     180,
	SouthWest: 225,
	West:      270,
	NorthWest: 315,
}

// ParseDirection validates a persisted direction value.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	_, ok := opposites[d]
	return ok
}

func (d Direction) String() string {
	return string(d)
}

// Opposite returns the direction pointing the other way. Static and Complex
// are their own opposites; applying Opposite twice returns d.
func (d Direction) Opposite() Direction {
	if o, ok := opposites[d]; ok {
		return o
	}
	return d
}

// IsCompass reports whether d is one of the eight compass points.
func (d Direction) IsCompass() bool {
	_, ok := compassAngles[d]
	return ok
}

// AngleDiff returns the smallest angle in degrees between two compass
// directions. Static, Complex or unknown directions count as 180.
func AngleDiff(a, b Direction) float64 {
	a1, ok1 := compassAngles[a]
	a2, ok2 := compassAngles[b]
	if !ok1 || !ok2 {
		return 180
	}
	diff := math.Abs(a1 - a2)
	return math.Min(diff, 360-diff)
}

// FromDegrees maps an angle (0 = East, counter-clockwise) onto one of eight
// 45 degree sectors centred on each compass point.
func FromDegrees(deg float64) Direction {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}

	switch {
	case deg >= 337.5 || deg < 22.5:
		return East
	case deg < 67.5:
		return NorthEast
	case deg < 112.5:
		return North
	case deg < 157.5:
		return NorthWest
	case deg < 202.5:
		return West
	case deg < 247.5:
		return SouthWest
	case deg < 292.5:
		return South
	default:
		return SouthEast
	}
}

// FromAngle is FromDegrees for an angle in radians.
func FromAngle(rad float64) Direction {
	return FromDegrees(rad * 180 / math.Pi)
}
