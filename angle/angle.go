// Package angle implements a multi-turn angle that stays exact over long
// sessions. An int32 millidegree count alone overflows after roughly 6000
// rotations, so the whole rotations are kept separately.
package angle

import "math"

// MdegPerRotation is the number of millidegrees in one full rotation.
const MdegPerRotation = 360000

// Angle is a multi-turn angle. Millidegrees is always normalized to the open
// interval (-MdegPerRotation, MdegPerRotation).
type Angle struct {
	Rotations    int32
	Millidegrees int32
}

// FromMdeg builds a normalized angle from a 64-bit millidegree total.
func FromMdeg(mdeg int64) Angle {
	return Angle{
		Rotations:    int32(mdeg / MdegPerRotation),
		Millidegrees: int32(mdeg % MdegPerRotation),
	}
}

// FromCounts converts an encoder count into an angle, given the number of
// counts per output shaft revolution.
func FromCounts(counts int64, countsPerRev uint32) Angle {
	if countsPerRev == 0 {
		return Angle{}
	}
	rotations := counts / int64(countsPerRev)
	remainder := counts % int64(countsPerRev)
	return Angle{
		Rotations:    int32(rotations),
		Millidegrees: int32(remainder * MdegPerRotation / int64(countsPerRev)),
	}
}

// Mdeg returns the total angle in millidegrees.
func (a Angle) Mdeg() int64 {
	return int64(a.Rotations)*MdegPerRotation + int64(a.Millidegrees)
}

// DiffMdeg returns a - b in millidegrees, saturated to the int32 range.
func DiffMdeg(a, b Angle) int32 {
	d := a.Mdeg() - b.Mdeg()
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	if d < math.MinInt32 {
		return math.MinInt32
	}
	return int32(d)
}

// AddMdeg adds a millidegree increment in place and renormalizes.
func (a *Angle) AddMdeg(delta int32) {
	m := int64(a.Millidegrees) + int64(delta)
	a.Rotations += int32(m / MdegPerRotation)
	a.Millidegrees = int32(m % MdegPerRotation)
}

// IsZero reports whether the angle is exactly zero.
func (a Angle) IsZero() bool {
	return a.Rotations == 0 && a.Millidegrees == 0
}
