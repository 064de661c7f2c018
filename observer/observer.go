package observer

import (
	"dcservo/angle"
	"dcservo/differentiator"
	"dcservo/intmath"
)

// Observer is the estimated state of one motor. It is driven from a single
// control loop and is not safe for concurrent use.
type Observer struct {
	model    *Model
	settings *Settings

	angle   angle.Angle
	speed   int32 // mdeg/s
	current int32 // mA

	// speedNumeric is the finite-difference speed of the measured angle. It
	// is reported for diagnostics, limited to MaxSpeed like the estimate,
	// and never fed back into the model.
	speedNumeric int32
	diff         differentiator.Differentiator

	stalled    bool
	stallStart uint32
}

// New returns an observer at angle zero. loopTimeMs is the period at which
// Update will be called.
func New(model *Model, settings *Settings, loopTimeMs uint32) *Observer {
	o := &Observer{
		model:    model,
		settings: settings,
		diff:     differentiator.New(loopTimeMs),
	}
	o.Reset(angle.Angle{})
	return o
}

// Model returns the motor model the observer runs.
func (o *Observer) Model() *Model {
	return o.model
}

// Settings returns the observer settings.
func (o *Observer) Settings() *Settings {
	return o.settings
}

// Reset places the estimate at a standstill at the given angle.
func (o *Observer) Reset(a angle.Angle) {
	o.angle = a
	o.speed = 0
	o.current = 0
	o.speedNumeric = 0
	o.stalled = false
	o.diff.Reset(a)
}

// EstimatedState returns the numerically differentiated speed, the estimated
// angle and the estimated speed.
func (o *Observer) EstimatedState() (speedNumeric int32, a angle.Angle, speed int32) {
	return o.speedNumeric, o.angle, o.speed
}

// Current returns the estimated motor current in mA.
func (o *Observer) Current() int32 {
	return o.current
}

// Update advances the estimate by one loop period.
//
// The model is driven by the applied voltage plus a feedback voltage that
// pulls it toward the measured angle. The voltage is only meaningful for
// ActuationVoltage.
func (o *Observer) Update(time uint32, measured angle.Angle, actuation Actuation, voltage int32) {
	m := o.model
	voltage = intmath.Clamp(voltage, MaxVoltage)

	o.speedNumeric = intmath.Clamp(o.diff.Speed(measured), MaxSpeed)

	feedback := o.FeedbackVoltage(measured)
	o.updateStall(time, actuation, voltage, feedback)

	modelVoltage := intmath.Clamp(voltage+feedback, MaxVoltage)

	friction := o.coulombFriction()
	torque := friction

	dAngle := row(o.speed, o.current, modelVoltage, torque,
		m.DAngleDSpeed, m.DAngleDCurrent, m.DAngleDVoltage, m.DAngleDTorque)
	speedNext := intmath.Clamp(row(o.speed, o.current, modelVoltage, torque,
		m.DSpeedDSpeed, m.DSpeedDCurrent, m.DSpeedDVoltage, m.DSpeedDTorque), MaxSpeed)
	currentNext := intmath.Clamp(row(o.speed, o.current, modelVoltage, torque,
		m.DCurrentDSpeed, m.DCurrentDCurrent, m.DCurrentDVoltage, m.DCurrentDTorque), MaxCurrent)

	// A full friction impulse across a zero crossing would kick the speed
	// back and forth, so drop the friction contribution on that tick.
	if (o.speed < 0) != (speedNext < 0) {
		correction := PrescaleTorque * friction / m.DSpeedDTorque
		speedNext = intmath.Clamp(intmath.Saturate(int64(speedNext)-int64(correction)), MaxSpeed)
	}

	o.angle.AddMdeg(dAngle)
	o.speed = speedNext
	o.current = currentNext
}

// coulombFriction returns the friction torque (uNm) for the current speed
// estimate. Below the cutoff speed it ramps linearly to zero.
func (o *Observer) coulombFriction() int32 {
	absSpeed := intmath.Abs(o.speed)
	cutoff := o.settings.CoulombFrictionSpeedCutoff
	friction := o.model.TorqueFriction
	if absSpeed <= cutoff {
		if cutoff == 0 {
			return 0
		}
		friction = intmath.Saturate(int64(absSpeed) * int64(friction) / int64(cutoff))
	}
	return friction * intmath.Sign(o.speed)
}

// row evaluates one line of the state-space model. Each term is truncated on
// its own, the sum is taken in 64 bits and saturated.
func row(speed, current, voltage, torque, dSpeed, dCurrent, dVoltage, dTorque int32) int32 {
	sum := int64(PrescaleSpeed*speed/dSpeed) +
		int64(PrescaleCurrent*current/dCurrent) +
		int64(PrescaleVoltage*voltage/dVoltage) +
		int64(PrescaleTorque*torque/dTorque)
	return intmath.Saturate(sum)
}
