package core

import (
	"dcservo/angle"
	"dcservo/observer"
	"dcservo/protocol"
)

// RegisterDCMotorCommands registers the DC motor commands, responses,
// constants and the dc_model enumeration.
func RegisterDCMotorCommands() {
	RegisterCommand("config_dc_motor",
		"oid=%c pin_a=%u pin_b=%u enc_a=%u enc_b=%u counts_per_rev=%u model=%c",
		cmdConfigDCMotor)
	RegisterCommand("config_dc_observer",
		"oid=%c stall_speed_limit=%u stall_time=%u stall_ratio=%u negligible=%u"+
			" friction_cutoff=%u gain_low=%u gain_high=%u gain_threshold=%u",
		cmdConfigDCObserver)
	RegisterCommand("dc_motor_start", "oid=%c clock=%u rest_ticks=%u stop_on_stall=%c", cmdDCMotorStart)
	RegisterCommand("dc_motor_set_voltage", "oid=%c voltage=%i", cmdDCMotorSetVoltage)
	RegisterCommand("dc_motor_set_torque", "oid=%c torque=%i", cmdDCMotorSetTorque)
	RegisterCommand("dc_motor_coast", "oid=%c", cmdDCMotorCoast)
	RegisterCommand("dc_motor_brake", "oid=%c", cmdDCMotorBrake)
	RegisterCommand("dc_motor_reset_angle", "oid=%c rotations=%i millidegrees=%i", cmdDCMotorResetAngle)
	RegisterCommand("query_dc_observer", "oid=%c", cmdQueryDCObserver)
	RegisterCommand("dc_motor_feedforward", "oid=%c rate=%i accel=%i", cmdDCMotorFeedforward)

	RegisterResponse("dc_observer_state",
		"oid=%c clock=%u rotations=%i millidegrees=%i speed=%i speed_num=%i"+
			" current=%i feedback=%i stalled=%c stall_duration=%u")
	RegisterResponse("dc_motor_stall", "oid=%c clock=%u duration=%u")
	RegisterResponse("dc_feedforward", "oid=%c torque=%i voltage=%i")

	RegisterConstant("DC_MAX_TORQUE", int32(observer.MaxTorque))
	RegisterConstant("DC_MAX_VOLTAGE", int32(observer.MaxVoltage))
	RegisterConstant("DC_SUPPLY_MV", supplyMillivolts)
	RegisterConstant("DC_LOOP_MS", uint32(observer.LoopTimeMs))
	RegisterEnumeration("dc_model", observer.TypeNames())
}

// decodeArgs reads n VLQ values in order.
func decodeArgs(data *[]byte, n int) ([]uint32, error) {
	args := make([]uint32, n)
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// motorArgs decodes the OID followed by n more values and looks up the
// motor. Commands that move the motor are refused in shutdown.
func motorArgs(data *[]byte, n int, actuates bool) (*DCMotor, []uint32, error) {
	args, err := decodeArgs(data, n+1)
	if err != nil {
		return nil, nil, err
	}
	m, err := lookupDCMotor(args[0])
	if err != nil {
		return nil, nil, err
	}
	if actuates && IsShutdown() {
		return nil, nil, errMotorShutdown
	}
	return m, args[1:], nil
}

// Format: oid=%c pin_a=%u pin_b=%u enc_a=%u enc_b=%u counts_per_rev=%u model=%c
func cmdConfigDCMotor(data *[]byte) error {
	args, err := decodeArgs(data, 7)
	if err != nil {
		return err
	}
	if args[0] >= MaxDCMotors {
		return errMotorOID
	}
	// model is an index into the dc_model enumeration
	_, err = NewDCMotor(uint8(args[0]), args[1], args[2], args[3], args[4], args[5], int(args[6]))
	return err
}

// Format: oid=%c stall_speed_limit=%u stall_time=%u stall_ratio=%u negligible=%u
// friction_cutoff=%u gain_low=%u gain_high=%u gain_threshold=%u
func cmdConfigDCObserver(data *[]byte) error {
	m, args, err := motorArgs(data, 8, false)
	if err != nil {
		return err
	}
	// Every field is %u on the wire. SetSettings rejects what casts to a
	// negative or overflowing int32.
	return m.SetSettings(observer.Settings{
		StallSpeedLimit:            int32(args[0]),
		StallTime:                  args[1],
		FeedbackVoltageStallRatio:  int32(args[2]),
		FeedbackVoltageNegligible:  int32(args[3]),
		CoulombFrictionSpeedCutoff: int32(args[4]),
		FeedbackGainLow:            int32(args[5]),
		FeedbackGainHigh:           int32(args[6]),
		FeedbackGainThreshold:      int32(args[7]),
	})
}

// Format: oid=%c clock=%u rest_ticks=%u stop_on_stall=%c
func cmdDCMotorStart(data *[]byte) error {
	m, args, err := motorArgs(data, 3, true)
	if err != nil {
		return err
	}
	return m.Start(args[0], args[1], args[2] != 0)
}

// Format: oid=%c voltage=%i
func cmdDCMotorSetVoltage(data *[]byte) error {
	m, args, err := motorArgs(data, 1, true)
	if err != nil {
		return err
	}
	return m.SetVoltage(int32(args[0]))
}

// Format: oid=%c torque=%i
func cmdDCMotorSetTorque(data *[]byte) error {
	m, args, err := motorArgs(data, 1, true)
	if err != nil {
		return err
	}
	return m.SetTorque(int32(args[0]))
}

// Coast and brake stay allowed in shutdown since they only stop the motor.
func cmdDCMotorCoast(data *[]byte) error {
	m, _, err := motorArgs(data, 0, false)
	if err != nil {
		return err
	}
	return m.Coast()
}

func cmdDCMotorBrake(data *[]byte) error {
	m, _, err := motorArgs(data, 0, false)
	if err != nil {
		return err
	}
	return m.Brake()
}

// Format: oid=%c rotations=%i millidegrees=%i
func cmdDCMotorResetAngle(data *[]byte) error {
	m, args, err := motorArgs(data, 2, false)
	if err != nil {
		return err
	}
	// Normalize in case the host sends millidegrees outside one turn.
	a := angle.FromMdeg(angle.Angle{
		Rotations:    int32(args[0]),
		Millidegrees: int32(args[1]),
	}.Mdeg())
	m.ResetAngle(a)
	return nil
}

// Format: oid=%c
func cmdQueryDCObserver(data *[]byte) error {
	m, _, err := motorArgs(data, 0, false)
	if err != nil {
		return err
	}
	s := m.Snapshot()
	SendResponse("dc_observer_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(s.OID))
		protocol.EncodeVLQUint(output, s.Clock)
		protocol.EncodeVLQInt(output, s.Angle.Rotations)
		protocol.EncodeVLQInt(output, s.Angle.Millidegrees)
		protocol.EncodeVLQInt(output, s.Speed)
		protocol.EncodeVLQInt(output, s.SpeedNumeric)
		protocol.EncodeVLQInt(output, s.Current)
		protocol.EncodeVLQInt(output, s.Feedback)
		protocol.EncodeVLQUint(output, boolToUint(s.Stalled))
		protocol.EncodeVLQUint(output, s.StallDuration)
	})
	return nil
}

// Format: oid=%c rate=%i accel=%i
func cmdDCMotorFeedforward(data *[]byte) error {
	m, args, err := motorArgs(data, 2, false)
	if err != nil {
		return err
	}
	// Model only; the observer state is not touched.
	model := &m.Type.Model
	torque := model.FeedforwardTorque(int32(args[0]), int32(args[1]))
	voltage := model.TorqueToVoltage(torque)
	oid := m.OID
	SendResponse("dc_feedforward", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQInt(output, torque)
		protocol.EncodeVLQInt(output, voltage)
	})
	return nil
}

// ObserverSnapshot is a consistent copy of a motor's estimate.
type ObserverSnapshot struct {
	OID           uint8
	Clock         uint32
	Angle         angle.Angle
	Speed         int32
	SpeedNumeric  int32
	Current       int32
	Feedback      int32
	Stalled       bool
	StallDuration uint32
}

// Snapshot copies the observer state with the control tick held off.
func (m *DCMotor) Snapshot() ObserverSnapshot {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	// Stall time is judged on the observer time base, not the MCU clock.
	num, a, speed := m.Observer.EstimatedState()
	stalled, duration := m.Observer.IsStalled(m.timeMs)
	return ObserverSnapshot{
		OID:           m.OID,
		Clock:         GetTime(),
		Angle:         a,
		Speed:         speed,
		SpeedNumeric:  num,
		Current:       m.Observer.Current(),
		Feedback:      m.Observer.FeedbackVoltage(m.MeasuredAngle()),
		Stalled:       stalled,
		StallDuration: duration,
	}
}
