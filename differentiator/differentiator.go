// Package differentiator estimates speed by finite differences over a short
// history of angle samples taken at a fixed loop period.
package differentiator

import (
	"math"

	"dcservo/angle"
)

// Window is the number of loop periods the speed is averaged over.
const Window = 8

// Differentiator keeps a ring of the last Window+1 angle samples.
type Differentiator struct {
	history    [Window + 1]angle.Angle
	head       int
	loopTimeMs uint32
}

// New returns a differentiator for the given loop period.
func New(loopTimeMs uint32) Differentiator {
	if loopTimeMs == 0 {
		loopTimeMs = 1
	}
	return Differentiator{loopTimeMs: loopTimeMs}
}

// LoopTimeMs returns the sample period the differentiator assumes.
func (d *Differentiator) LoopTimeMs() uint32 {
	return d.loopTimeMs
}

// Reset fills the whole history with one angle, so the next speed is zero.
func (d *Differentiator) Reset(a angle.Angle) {
	for i := range d.history {
		d.history[i] = a
	}
	d.head = 0
}

// Speed records a new sample and returns the average speed in mdeg/s between
// it and the sample Window periods earlier.
func (d *Differentiator) Speed(a angle.Angle) int32 {
	d.head = (d.head + 1) % len(d.history)
	d.history[d.head] = a
	oldest := d.history[(d.head+1)%len(d.history)]

	delta := a.Mdeg() - oldest.Mdeg()
	speed := delta * 1000 / (int64(Window) * int64(d.loopTimeMs))
	if speed > math.MaxInt32 {
		return math.MaxInt32
	}
	if speed < math.MinInt32 {
		return math.MinInt32
	}
	return int32(speed)
}
