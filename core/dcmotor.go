package core

// Brushed DC motor with a quadrature encoder, tracked by a state observer.
// The control tick runs from the timer dispatcher; reports go out from
// DCMotorTask in the main loop.

import (
	"errors"

	"dcservo/angle"
	"dcservo/intmath"
	"dcservo/observer"
	"dcservo/protocol"
)

// MaxDCMotors bounds the OID table.
const MaxDCMotors = 8

var (
	errMotorOID       = errors.New("dc motor OID out of range")
	errMotorMissing   = errors.New("dc motor not configured")
	errMotorExists    = errors.New("dc motor already configured")
	errUnknownModel   = errors.New("unknown dc motor model")
	errNoDriver       = errors.New("no dc motor driver backend")
	errNoEncoder      = errors.New("no encoder backend available")
	errLoopTime       = errors.New("rest_ticks does not match the model loop time")
	errTooManyMotors  = errors.New("too many dc motor OIDs")
	errMotorShutdown  = errors.New("dc motor commands refused in shutdown")
	errCountsPerRev   = errors.New("counts_per_rev must be positive")
	errInvalidSetting = errors.New("invalid observer setting")
)

// DCMotor is one configured motor.
type DCMotor struct {
	OID          uint8
	PinA, PinB   uint32
	EncA, EncB   uint32
	CountsPerRev uint32
	Type         *observer.MotorType

	Driver   DCDriver
	Encoder  EncoderDriver
	Observer *observer.Observer

	// settings starts as the model defaults; the observer reads it by
	// pointer so config_dc_observer takes effect on the next tick.
	settings observer.Settings

	actuation observer.Actuation
	command   int32 // mV for voltage, uNm for torque
	voltage   int32 // mV applied to the bridge

	// The encoder count at the last angle reset maps to zero.
	zero      angle.Angle
	zeroCount int32

	timer       Timer
	restTicks   uint32
	loopTimeMs  uint32
	timeMs      uint32 // observer time base, advanced one loop per tick
	running     bool
	stopOnStall bool
	wasStalling bool

	// Stall reporting runs once per episode.
	stallReported bool
	reportPending bool
	reportClock   uint32
	reportDur     uint32
}

var (
	dcMotors     [MaxDCMotors]*DCMotor
	dcMotorLimit = MaxDCMotors
	dcMotorWake  bool
)

// GetDCMotor returns the motor at oid or nil.
func GetDCMotor(oid uint8) *DCMotor {
	if int(oid) >= MaxDCMotors {
		return nil
	}
	return dcMotors[oid]
}

func lookupDCMotor(oid uint32) (*DCMotor, error) {
	if oid >= MaxDCMotors {
		return nil, errMotorOID
	}
	m := dcMotors[oid]
	if m == nil {
		return nil, errMotorMissing
	}
	return m, nil
}

// allocateDCMotors limits the OIDs the host may configure.
func allocateDCMotors(count int) error {
	if count > MaxDCMotors {
		return errTooManyMotors
	}
	dcMotorLimit = count
	return nil
}

// NewDCMotor configures a motor and its backends. The motor starts coasting
// with the observer at angle zero.
func NewDCMotor(oid uint8, pinA, pinB, encA, encB, countsPerRev uint32, modelIndex int) (*DCMotor, error) {
	if int(oid) >= dcMotorLimit {
		return nil, errMotorOID
	}
	if dcMotors[oid] != nil {
		return nil, errMotorExists
	}
	if countsPerRev == 0 {
		return nil, errCountsPerRev
	}
	mt, ok := observer.TypeByIndex(modelIndex)
	if !ok {
		return nil, errUnknownModel
	}
	if dcDriverFactory == nil {
		return nil, errNoDriver
	}
	driver := dcDriverFactory()
	if driver == nil {
		return nil, errNoDriver
	}
	if encoderFactory == nil {
		return nil, errNoEncoder
	}
	encoder := encoderFactory()
	if encoder == nil {
		return nil, errNoEncoder
	}
	if err := driver.Configure(pinA, pinB); err != nil {
		return nil, err
	}
	if err := encoder.Configure(encA, encB); err != nil {
		return nil, err
	}
	encoder.SetCount(0)

	m := &DCMotor{
		OID:          oid,
		PinA:         pinA,
		PinB:         pinB,
		EncA:         encA,
		EncB:         encB,
		CountsPerRev: countsPerRev,
		Type:         mt,
		Driver:       driver,
		Encoder:      encoder,
		settings:     mt.Settings,
		loopTimeMs:   observer.LoopTimeMs,
	}
	m.Observer = observer.New(&mt.Model, &m.settings, m.loopTimeMs)
	m.timer.Handler = m.controlEvent
	if err := m.Coast(); err != nil {
		return nil, err
	}

	dcMotors[oid] = m
	return m, nil
}

// Settings returns the live observer settings.
func (m *DCMotor) Settings() *observer.Settings {
	return &m.settings
}

// SetSettings replaces the observer settings.
func (m *DCMotor) SetSettings(s observer.Settings) error {
	// Wire values are %u cast to int32, so large ones arrive negative.
	if s.Validate() != nil {
		return errInvalidSetting
	}
	state := disableInterrupts()
	m.settings = s
	restoreInterrupts(state)
	return nil
}

// Start schedules the control tick. restTicks must equal the loop period the
// model was discretized at.
func (m *DCMotor) Start(clock, restTicks uint32, stopOnStall bool) error {
	if restTicks != TimerFromMS(m.loopTimeMs) {
		return errLoopTime
	}
	if m.running {
		CancelTimer(&m.timer)
	}
	m.restTicks = restTicks
	m.stopOnStall = stopOnStall
	m.running = true
	m.timer.WakeTime = clock
	RecordTiming(EvtMotorStart, m.OID, clock, restTicks, boolToUint(stopOnStall))
	ScheduleTimer(&m.timer)
	return nil
}

// Stop cancels the control tick and coasts.
func (m *DCMotor) Stop() {
	if m.running {
		CancelTimer(&m.timer)
		m.running = false
	}
	m.Coast()
}

// Running reports whether the control tick is scheduled.
func (m *DCMotor) Running() bool {
	return m.running
}

// SetVoltage drives the motor with a voltage in mV.
func (m *DCMotor) SetVoltage(mv int32) error {
	mv = intmath.Clamp(mv, observer.MaxVoltage)
	m.setActuation(observer.ActuationVoltage, mv, mv)
	return m.Driver.SetDuty(voltageToDuty(mv))
}

// SetTorque drives the motor with the voltage that produces torque (uNm) at
// standstill.
func (m *DCMotor) SetTorque(torque int32) error {
	mv := m.Type.Model.TorqueToVoltage(torque)
	m.setActuation(observer.ActuationTorque, torque, mv)
	return m.Driver.SetDuty(voltageToDuty(mv))
}

// Coast releases the motor.
func (m *DCMotor) Coast() error {
	m.setActuation(observer.ActuationCoast, 0, 0)
	return m.Driver.Coast()
}

// Brake shorts the motor.
func (m *DCMotor) Brake() error {
	m.setActuation(observer.ActuationBrake, 0, 0)
	return m.Driver.Brake()
}

func (m *DCMotor) setActuation(a observer.Actuation, command, mv int32) {
	state := disableInterrupts()
	m.actuation = a
	m.command = command
	m.voltage = mv
	restoreInterrupts(state)
	RecordTiming(EvtActuation, m.OID, GetTime(), uint32(a), uint32(command))
}

// Actuation returns how the motor is driven and the commanded value.
func (m *DCMotor) Actuation() (observer.Actuation, int32) {
	return m.actuation, m.command
}

// ResetAngle declares the current shaft position to be a and restarts the
// observer there at standstill.
func (m *DCMotor) ResetAngle(a angle.Angle) {
	state := disableInterrupts()
	m.zero = a
	m.zeroCount = m.Encoder.Count()
	m.Observer.Reset(a)
	m.stallReported = false
	m.reportPending = false
	m.wasStalling = false
	restoreInterrupts(state)
	RecordTiming(EvtObserverSync, m.OID, GetTime(), uint32(a.Rotations), uint32(a.Millidegrees))
}

// MeasuredAngle converts the encoder count to an output shaft angle.
func (m *DCMotor) MeasuredAngle() angle.Angle {
	counts := int64(m.Encoder.Count() - m.zeroCount)
	return angle.FromMdeg(m.zero.Mdeg() + angle.FromCounts(counts, m.CountsPerRev).Mdeg())
}

// observerInput is what the observer sees for the current actuation. Torque
// control is a voltage as far as the model is concerned.
func (m *DCMotor) observerInput() (observer.Actuation, int32) {
	switch m.actuation {
	case observer.ActuationVoltage, observer.ActuationTorque:
		return observer.ActuationVoltage, m.voltage
	default:
		return m.actuation, 0
	}
}

// controlEvent is the periodic timer handler.
func (m *DCMotor) controlEvent(t *Timer) uint8 {
	now := GetTime()
	m.tick(now)

	t.WakeTime += m.restTicks
	if TimerIsBefore(t.WakeTime, now) {
		// Missed whole periods are dropped rather than replayed.
		RecordTiming(EvtTickLate, m.OID, now, now-t.WakeTime, 0)
		t.WakeTime = now + m.restTicks
	}
	return SF_RESCHEDULE
}

// tick advances the observer by one loop period and applies the stall
// policy.
func (m *DCMotor) tick(now uint32) {
	m.timeMs += m.loopTimeMs
	actuation, mv := m.observerInput()
	m.Observer.Update(m.timeMs, m.MeasuredAngle(), actuation, mv)

	stalling, since := m.Observer.Stalling()
	if stalling && !m.wasStalling {
		RecordTiming(EvtStallBegin, m.OID, now, since, 0)
	}
	m.wasStalling = stalling

	stalled, duration := m.Observer.IsStalled(m.timeMs)
	if !stalled {
		m.stallReported = false
		return
	}
	if m.stallReported {
		return
	}
	// One report per episode. The response goes out from DCMotorTask, not
	// from timer context.
	m.stallReported = true
	m.reportPending = true
	m.reportClock = now
	m.reportDur = duration
	dcMotorWake = true
	RecordTiming(EvtStallReport, m.OID, now, duration, 0)

	// Coasting clears the instant flag, which ends the episode.
	if m.stopOnStall {
		m.Coast()
	}
}

// DCMotorTask sends pending stall reports. Call it from the main loop.
func DCMotorTask() {
	state := disableInterrupts()
	if !dcMotorWake {
		restoreInterrupts(state)
		return
	}
	dcMotorWake = false
	restoreInterrupts(state)

	for _, m := range dcMotors {
		if m == nil {
			continue
		}
		// Copy under the lock, send outside it.
		state = disableInterrupts()
		pending := m.reportPending
		clock, duration := m.reportClock, m.reportDur
		m.reportPending = false
		restoreInterrupts(state)

		if !pending {
			continue
		}
		oid := m.OID
		SendResponse("dc_motor_stall", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(oid))
			protocol.EncodeVLQUint(output, clock)
			protocol.EncodeVLQUint(output, duration)
		})
	}
}

// ShutdownAllDCMotors stops every motor and returns how many there were.
func ShutdownAllDCMotors() int {
	n := 0
	for _, m := range dcMotors {
		if m != nil {
			m.Stop()
			n++
		}
	}
	return n
}

// resetDCMotors stops and forgets every motor, handing back encoder
// resources first.
func resetDCMotors() {
	ShutdownAllDCMotors()
	for i, m := range dcMotors {
		if m == nil {
			continue
		}
		if r, ok := m.Encoder.(EncoderReleaser); ok {
			r.Release()
		}
		dcMotors[i] = nil
	}
	dcMotorLimit = MaxDCMotors
	dcMotorWake = false
}
