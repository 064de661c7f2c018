// Package observer estimates the angle, speed and current of a brushed DC
// motor from periodic angle samples using a discrete fixed-point motor model.
//
// Units are fixed throughout: millidegrees (mdeg), millidegrees per second
// (mdeg/s), milliamps (mA), millivolts (mV) and micronewton-meters (uNm).
// All arithmetic is int32, with divisions truncating toward zero.
package observer

import "errors"

// Physical limits. Inputs and states are clamped to these before scaling.
const (
	MaxSpeed        = 2500000  // mdeg/s
	MaxAcceleration = 25000000 // mdeg/s^2
	MaxCurrent      = 30000    // mA
	MaxVoltage      = 12000    // mV
	MaxTorque       = 1000000  // uNm
)

// Prescale factors. Each one times its maximum still fits in an int32, so a
// term can be multiplied before it is divided by a model coefficient.
const (
	PrescaleSpeed        = 858
	PrescaleAcceleration = 85
	PrescaleCurrent      = 71582
	PrescaleVoltage      = 178956
	PrescaleTorque       = 2147
)

// Model holds the discretized motor coefficients. Every entry is the
// reciprocal of a state-space gain multiplied by the matching prescale, so a
// row of the model reads Prescale*input/coefficient. A Model is never mutated
// once built and may be shared by any number of observers.
type Model struct {
	DAngleDSpeed   int32
	DAngleDCurrent int32
	DAngleDVoltage int32
	DAngleDTorque  int32

	DSpeedDSpeed   int32
	DSpeedDCurrent int32
	DSpeedDVoltage int32
	DSpeedDTorque  int32

	DCurrentDSpeed   int32
	DCurrentDCurrent int32
	DCurrentDVoltage int32
	DCurrentDTorque  int32

	DTorqueDSpeed        int32
	DTorqueDAcceleration int32
	DTorqueDVoltage      int32
	DVoltageDTorque      int32

	// TorqueFriction is the Coulomb friction magnitude in uNm.
	TorqueFriction int32
}

// Settings tunes the feedback and stall detection of an observer.
type Settings struct {
	// StallSpeedLimit is the speed (mdeg/s) below which a motor may count as stalled.
	StallSpeedLimit int32
	// StallTime is how long (ms) the instant stall flag must persist before
	// IsStalled reports it. Update and IsStalled take time in ms as well.
	StallTime uint32
	// FeedbackVoltageStallRatio is the percentage of the applied voltage the
	// opposing feedback voltage must exceed.
	FeedbackVoltageStallRatio int32
	// FeedbackVoltageNegligible is the applied voltage (mV) below which no
	// stall is ever flagged.
	FeedbackVoltageNegligible int32
	// CoulombFrictionSpeedCutoff is the speed (mdeg/s) below which friction
	// ramps linearly down to zero.
	CoulombFrictionSpeedCutoff int32
	// FeedbackGainLow and FeedbackGainHigh are in mV per degree of error,
	// below and above FeedbackGainThreshold (mdeg).
	FeedbackGainLow       int32
	FeedbackGainHigh      int32
	FeedbackGainThreshold int32
}

// MaxStallRatio keeps the stall test's voltage*ratio product inside int32
// for any clamped voltage.
const MaxStallRatio = (1<<31 - 1) / MaxVoltage

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid observer settings")

// Validate rejects settings the stall and feedback math cannot use. A
// negative negligible voltage would flag zero drive as a stall, and a
// ratio above MaxStallRatio wraps the comparison negative.
func (s *Settings) Validate() error {
	if s.StallSpeedLimit < 0 || s.CoulombFrictionSpeedCutoff < 0 ||
		s.FeedbackGainThreshold < 0 || s.FeedbackGainLow < 0 || s.FeedbackGainHigh < 0 {
		return ErrInvalidSettings
	}
	if s.FeedbackVoltageStallRatio < 0 || s.FeedbackVoltageStallRatio > MaxStallRatio {
		return ErrInvalidSettings
	}
	if s.FeedbackVoltageNegligible < 0 {
		return ErrInvalidSettings
	}
	return nil
}

// Actuation is the way a motor is being driven on a given tick.
type Actuation uint8

const (
	ActuationCoast Actuation = iota
	ActuationBrake
	ActuationVoltage
	ActuationTorque
)

func (a Actuation) String() string {
	switch a {
	case ActuationCoast:
		return "coast"
	case ActuationBrake:
		return "brake"
	case ActuationVoltage:
		return "voltage"
	case ActuationTorque:
		return "torque"
	default:
		return "unknown"
	}
}
