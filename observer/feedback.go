package observer

import (
	"dcservo/angle"
	"dcservo/intmath"
)

// feedbackVoltageAbs maps an absolute angle error (mdeg) to a feedback
// voltage magnitude (mV). The gain steps up from low to high past the
// threshold, and both regions meet at the threshold.
func feedbackVoltageAbs(err int32, s *Settings) int32 {
	e := int64(err)
	thr := int64(s.FeedbackGainThreshold)
	if e <= thr {
		return intmath.Saturate(e * int64(s.FeedbackGainLow) / 1000)
	}
	return intmath.Saturate((thr*int64(s.FeedbackGainLow) + (e-thr)*int64(s.FeedbackGainHigh)) / 1000)
}

// FeedbackVoltage returns the signed voltage (mV) that pulls the estimate
// toward the measured angle, clamped to MaxVoltage.
func (o *Observer) FeedbackVoltage(measured angle.Angle) int32 {
	err := angle.DiffMdeg(measured, o.angle)
	fb := feedbackVoltageAbs(intmath.Abs(err), o.settings)
	return intmath.Clamp(fb, MaxVoltage) * intmath.Sign(err)
}
