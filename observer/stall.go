package observer

// updateStall sets or clears the instant stall flag for this tick.
//
// The motor counts as stalled when it is slow, when the feedback voltage
// opposes the drive and is a large share of it, and when the drive itself is
// not negligible. The test runs in a frame where the commanded direction is
// forward, so it is the same for both directions.
func (o *Observer) updateStall(time uint32, actuation Actuation, voltage, feedback int32) {
	if actuation != ActuationVoltage {
		o.stalled = false
		return
	}

	speed := o.speed
	if voltage < 0 {
		speed = -speed
		voltage = -voltage
		feedback = -feedback
	}

	s := o.settings
	if speed < s.StallSpeedLimit &&
		feedback < 0 &&
		-feedback*100 > voltage*s.FeedbackVoltageStallRatio &&
		voltage > s.FeedbackVoltageNegligible {
		if !o.stalled {
			o.stallStart = time
		}
		o.stalled = true
		return
	}
	o.stalled = false
}

// IsStalled reports whether the motor has been stalled for longer than the
// configured stall time, along with how long it has been stalled so far.
// The instant flag alone is not enough.
func (o *Observer) IsStalled(time uint32) (bool, uint32) {
	if !o.stalled {
		return false, 0
	}
	elapsed := time - o.stallStart
	if elapsed <= o.settings.StallTime {
		return false, 0
	}
	return true, elapsed
}

// Stalling reports the instant stall flag and when it last rose. It is set
// before the StallTime gate and is meant for diagnostics.
func (o *Observer) Stalling() (bool, uint32) {
	return o.stalled, o.stallStart
}
