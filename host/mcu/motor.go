package mcu

import (
	"fmt"
	"hash/crc32"
	"time"

	"dcservo/config"
)

// startDelay is how far ahead of the current MCU clock a motor's first
// control tick is scheduled.
const startDelay = 50 * time.Millisecond

// Motor is a configured motor on a connected MCU.
type Motor struct {
	mcu    *MCU
	OID    uint8
	Config config.MotorConfig
}

// State is one dc_observer_state report.
type State struct {
	OID           uint8  `json:"oid"`
	Clock         uint32 `json:"clock"`
	AngleMdeg     int64  `json:"angle_mdeg"`
	Speed         int32  `json:"speed"`     // mdeg/s
	SpeedNumeric  int32  `json:"speed_num"` // mdeg/s, from the encoder
	Current       int32  `json:"current"`   // mA
	Feedback      int32  `json:"feedback"`  // mV
	Stalled       bool   `json:"stalled"`
	StallDuration uint32 `json:"stall_duration"` // ms
}

// StateFromMessage converts a dc_observer_state response.
func StateFromMessage(msg *Message) State {
	return State{
		OID:           uint8(msg.Int("oid")),
		Clock:         uint32(msg.Int("clock")),
		AngleMdeg:     msg.Int("rotations")*360000 + msg.Int("millidegrees"),
		Speed:         int32(msg.Int("speed")),
		SpeedNumeric:  int32(msg.Int("speed_num")),
		Current:       int32(msg.Int("current")),
		Feedback:      int32(msg.Int("feedback")),
		Stalled:       msg.Int("stalled") != 0,
		StallDuration: uint32(msg.Int("stall_duration")),
	}
}

// ConfigureMotors sends the configuration for every motor in the profile,
// in order, as OIDs 0..n-1, and finalizes it with a CRC of the commands.
func (m *MCU) ConfigureMotors(p *config.Profile) ([]*Motor, error) {
	if d := m.GetDictionary(); d != nil {
		if mv, ok := d.ConfigInt("DC_SUPPLY_MV"); ok {
			for _, mc := range p.Motors {
				if int64(mc.SupplyMillivolts) != mv {
					m.log.Warn().Str("motor", mc.Name).Int32("profile_mv", mc.SupplyMillivolts).
						Int64("mcu_mv", mv).Msg("supply voltage differs from the firmware")
				}
			}
		}
	}

	crc := crc32.NewIEEE()
	send := func(name string, args Args) error {
		fmt.Fprintf(crc, "%s %v\n", name, args)
		return m.Send(name, args)
	}

	if err := send("allocate_oids", Args{"count": len(p.Motors)}); err != nil {
		return nil, err
	}
	motors := make([]*Motor, 0, len(p.Motors))
	for i, mc := range p.Motors {
		settings, err := mc.ToSettings()
		if err != nil {
			return nil, err
		}
		oid := uint8(i)
		err = send("config_dc_motor", Args{
			"oid":            oid,
			"pin_a":          mc.PinA,
			"pin_b":          mc.PinB,
			"enc_a":          mc.EncoderA,
			"enc_b":          mc.EncoderB,
			"counts_per_rev": mc.CountsPerRev,
			"model":          mc.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("motor %q: %w", mc.Name, err)
		}
		err = send("config_dc_observer", Args{
			"oid":               oid,
			"stall_speed_limit": settings.StallSpeedLimit,
			"stall_time":        settings.StallTime,
			"stall_ratio":       settings.FeedbackVoltageStallRatio,
			"negligible":        settings.FeedbackVoltageNegligible,
			"friction_cutoff":   settings.CoulombFrictionSpeedCutoff,
			"gain_low":          settings.FeedbackGainLow,
			"gain_high":         settings.FeedbackGainHigh,
			"gain_threshold":    settings.FeedbackGainThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("motor %q: %w", mc.Name, err)
		}
		motors = append(motors, &Motor{mcu: m, OID: oid, Config: mc})
	}
	if err := m.Send("finalize_config", Args{"crc": crc.Sum32()}); err != nil {
		return nil, err
	}
	m.log.Info().Int("motors", len(motors)).Msg("motors configured")
	return motors, nil
}

// RestTicks is the control period in MCU clock ticks.
func (mo *Motor) RestTicks() uint32 {
	return uint32(uint64(mo.mcu.ClockFreq()) * uint64(mo.Config.LoopMs) / 1000)
}

// Start schedules the control tick shortly after the current MCU clock.
func (mo *Motor) Start() error {
	now, err := mo.mcu.Clock()
	if err != nil {
		return err
	}
	delay := uint32(uint64(mo.mcu.ClockFreq()) * uint64(startDelay) / uint64(time.Second))
	return mo.StartAt(now + delay)
}

// StartAt schedules the first control tick at an MCU clock.
func (mo *Motor) StartAt(clock uint32) error {
	return mo.mcu.Send("dc_motor_start", Args{
		"oid":           mo.OID,
		"clock":         clock,
		"rest_ticks":    mo.RestTicks(),
		"stop_on_stall": mo.Config.StopOnStall,
	})
}

// SetVoltage drives the motor at mv millivolts.
func (mo *Motor) SetVoltage(mv int32) error {
	return mo.mcu.Send("dc_motor_set_voltage", Args{"oid": mo.OID, "voltage": mv})
}

// SetTorque drives the motor at torque uNm.
func (mo *Motor) SetTorque(torque int32) error {
	return mo.mcu.Send("dc_motor_set_torque", Args{"oid": mo.OID, "torque": torque})
}

// Coast releases the motor.
func (mo *Motor) Coast() error {
	return mo.mcu.Send("dc_motor_coast", Args{"oid": mo.OID})
}

// Brake shorts the motor.
func (mo *Motor) Brake() error {
	return mo.mcu.Send("dc_motor_brake", Args{"oid": mo.OID})
}

// ResetAngle declares the current shaft position to be mdeg.
func (mo *Motor) ResetAngle(mdeg int64) error {
	return mo.mcu.Send("dc_motor_reset_angle", Args{
		"oid":          mo.OID,
		"rotations":    mdeg / 360000,
		"millidegrees": mdeg % 360000,
	})
}

// State queries the observer.
func (mo *Motor) State() (State, error) {
	msg, err := mo.mcu.Query("query_dc_observer", Args{"oid": mo.OID}, "dc_observer_state", mo.matchOID, time.Second)
	if err != nil {
		return State{}, err
	}
	return StateFromMessage(msg), nil
}

// Feedforward returns the torque (uNm) and voltage (mV) the model predicts
// for a speed (mdeg/s) and acceleration (mdeg/s^2).
func (mo *Motor) Feedforward(rate, accel int32) (torque, voltage int32, err error) {
	msg, err := mo.mcu.Query("dc_motor_feedforward", Args{"oid": mo.OID, "rate": rate, "accel": accel},
		"dc_feedforward", mo.matchOID, time.Second)
	if err != nil {
		return 0, 0, err
	}
	return int32(msg.Int("torque")), int32(msg.Int("voltage")), nil
}

// Apply runs one profile step on the motor.
func (mo *Motor) Apply(step config.Step) error {
	switch step.Action {
	case "voltage":
		return mo.SetVoltage(step.Value)
	case "torque":
		return mo.SetTorque(step.Value)
	case "coast":
		return mo.Coast()
	case "brake":
		return mo.Brake()
	}
	return fmt.Errorf("%w: %q", config.ErrUnknownAction, step.Action)
}

func (mo *Motor) matchOID(msg *Message) bool {
	return uint8(msg.Int("oid")) == mo.OID
}
