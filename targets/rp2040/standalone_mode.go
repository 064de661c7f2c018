//go:build rp2040

package main

import (
	"machine"
	"time"

	"dcservo/config"
	"dcservo/core"
)

// builtinProfile runs the reference motor back and forth without a host.
const builtinProfile = `{
	"motors": [{"name": "motor0", "model": "medium", "pin_a": 14, "pin_b": 15,
		"encoder_a": 2, "encoder_b": 3, "encoder_pio": true, "stop_on_stall": true}],
	"sequence": [
		{"motor": "motor0", "action": "voltage", "value": 6000, "hold_ms": 2000},
		{"motor": "motor0", "action": "coast", "hold_ms": 1000},
		{"motor": "motor0", "action": "voltage", "value": -6000, "hold_ms": 2000},
		{"motor": "motor0", "action": "brake", "hold_ms": 1000}
	]
}`

// RunStandaloneMode configures the built-in profile and repeats its
// sequence forever. Stalls are logged on the debug UART.
func RunStandaloneMode() {
	profile, err := config.LoadConfig([]byte(builtinProfile))
	if err != nil {
		core.DebugPrintln("[standalone] profile: " + err.Error())
		profile = config.DefaultProfile()
	}

	motors, err := configureStandalone(profile)
	if err != nil {
		core.DebugPrintln("[standalone] " + err.Error())
		blinkForever(100 * time.Millisecond)
	}

	// Three blinks: standalone mode is running.
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; i < 3; i++ {
		led.High()
		time.Sleep(200 * time.Millisecond)
		led.Low()
		time.Sleep(200 * time.Millisecond)
	}

	stalled := make(map[string]bool, len(motors))
	wait := func(ms uint32) {
		UpdateSystemTime()
		deadline := core.GetTime() + core.TimerFromMS(ms)
		for {
			UpdateSystemTime()
			core.ProcessTimers()
			for name, m := range motors {
				s := m.Snapshot()
				if s.Stalled && !stalled[name] {
					core.DebugPrintln("[standalone] " + name + " stalled for " + itoa(int(s.StallDuration)) + " ms")
				}
				stalled[name] = s.Stalled
			}
			if !core.TimerIsBefore(core.GetTime(), deadline) {
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}

	if len(profile.Sequence) == 0 {
		for {
			wait(1000)
		}
	}
	for {
		for _, step := range profile.Sequence {
			if err := applyStep(motors[step.Motor], step); err != nil {
				core.DebugPrintln("[standalone] " + step.Motor + ": " + err.Error())
			}
			wait(step.HoldMs)
		}
	}
}

// configureStandalone does locally what the host does with config_dc_motor,
// config_dc_observer and dc_motor_start.
func configureStandalone(profile *config.Profile) (map[string]*core.DCMotor, error) {
	motors := make(map[string]*core.DCMotor, len(profile.Motors))
	UpdateSystemTime()
	start := core.GetTime() + core.TimerFromMS(50)
	for i := range profile.Motors {
		mc := &profile.Motors[i]
		core.SetSupplyMillivolts(mc.SupplyMillivolts)
		allowPIO := mc.EncoderPIO
		core.SetEncoderFactory(func() core.EncoderDriver {
			return NewEncoder(allowPIO)
		})
		m, err := core.NewDCMotor(uint8(i), mc.PinA, mc.PinB, mc.EncoderA, mc.EncoderB,
			mc.CountsPerRev, mc.ModelIndex())
		if err != nil {
			return nil, err
		}
		settings, err := mc.ToSettings()
		if err != nil {
			return nil, err
		}
		if err := m.SetSettings(settings); err != nil {
			return nil, err
		}
		if err := m.Start(start, core.TimerFromMS(mc.LoopMs), mc.StopOnStall); err != nil {
			return nil, err
		}
		motors[mc.Name] = m
	}
	return motors, nil
}

func applyStep(m *core.DCMotor, step config.Step) error {
	switch step.Action {
	case "voltage":
		return m.SetVoltage(step.Value)
	case "torque":
		return m.SetTorque(step.Value)
	case "brake":
		return m.Brake()
	default:
		return m.Coast()
	}
}

func blinkForever(period time.Duration) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(period)
		led.Low()
		time.Sleep(period)
	}
}
