package core

// DCDutyMax is full scale for DCDriver.SetDuty, in hundredths of a percent.
const DCDutyMax = 10000

// DCDriver drives one brushed motor through an H-bridge.
type DCDriver interface {
	// Configure claims the two bridge inputs.
	Configure(pinA, pinB uint32) error

	// SetDuty drives the bridge with a signed duty in
	// [-DCDutyMax, DCDutyMax]. Positive is forward.
	SetDuty(duty int32) error

	// Coast lets the motor spin freely with both outputs low.
	Coast() error

	// Brake shorts the motor terminals.
	Brake() error
}

// EncoderDriver counts quadrature edges of the motor encoder.
type EncoderDriver interface {
	Configure(pinA, pinB uint32) error

	// Count returns the edge count. It wraps at the int32 range.
	Count() int32

	SetCount(count int32)
}

// EncoderReleaser is implemented by encoders that hold a hardware resource,
// such as a PIO state machine. Release is called when the motor is dropped
// by config_reset so the next config_dc_motor can claim it again.
type EncoderReleaser interface {
	Release()
}

var (
	dcDriverFactory func() DCDriver
	encoderFactory  func() EncoderDriver

	// Supply voltage the bridge switches, used to turn millivolts into duty.
	supplyMillivolts int32 = 12000
)

// SetDCDriverFactory sets how config_dc_motor obtains an H-bridge backend.
func SetDCDriverFactory(factory func() DCDriver) {
	dcDriverFactory = factory
}

// SetEncoderFactory sets how config_dc_motor obtains an encoder backend.
// The factory may return nil when no encoder resource is left.
func SetEncoderFactory(factory func() EncoderDriver) {
	encoderFactory = factory
}

// SetSupplyMillivolts sets the bridge supply voltage and publishes it as
// DC_SUPPLY_MV.
func SetSupplyMillivolts(mv int32) {
	if mv <= 0 {
		return
	}
	supplyMillivolts = mv
	RegisterConstant("DC_SUPPLY_MV", mv)
}

// voltageToDuty converts a voltage (mV) to a signed bridge duty.
func voltageToDuty(mv int32) int32 {
	duty := int64(mv) * DCDutyMax / int64(supplyMillivolts)
	if duty > DCDutyMax {
		return DCDutyMax
	}
	if duty < -DCDutyMax {
		return -DCDutyMax
	}
	return int32(duty)
}
