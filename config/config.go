// Package config loads motor profiles: the motors on a board, their
// observer tuning in human units and an optional actuation sequence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"dcservo/observer"
)

// MotorConfig describes one motor and its wiring.
type MotorConfig struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"` // observer catalog name

	PinA       uint32 `json:"pin_a" yaml:"pin_a"`
	PinB       uint32 `json:"pin_b" yaml:"pin_b"`
	EncoderA   uint32 `json:"encoder_a" yaml:"encoder_a"`
	EncoderB   uint32 `json:"encoder_b" yaml:"encoder_b"`
	EncoderPIO bool   `json:"encoder_pio" yaml:"encoder_pio"` // opt in to the PIO counter

	CountsPerRev     uint32 `json:"counts_per_rev" yaml:"counts_per_rev"`
	LoopMs           uint32 `json:"loop_ms" yaml:"loop_ms"`
	SupplyMillivolts int32  `json:"supply_mv" yaml:"supply_mv"`
	StopOnStall      bool   `json:"stop_on_stall" yaml:"stop_on_stall"`

	Observer ObserverConfig `json:"observer" yaml:"observer"`
}

// ObserverConfig overrides the model's default settings. Zero fields keep
// the default.
type ObserverConfig struct {
	StallSpeedLimit   float64 `json:"stall_speed_limit" yaml:"stall_speed_limit"` // deg/s
	StallTimeMs       uint32  `json:"stall_time_ms" yaml:"stall_time_ms"`
	StallRatio        int32   `json:"stall_ratio" yaml:"stall_ratio"`               // %
	NegligibleVoltage float64 `json:"negligible_voltage" yaml:"negligible_voltage"` // V
	FrictionCutoff    float64 `json:"friction_cutoff" yaml:"friction_cutoff"`       // deg/s
	GainLow           int32   `json:"gain_low" yaml:"gain_low"`                     // mV/deg
	GainHigh          int32   `json:"gain_high" yaml:"gain_high"`                   // mV/deg
	GainThreshold     float64 `json:"gain_threshold" yaml:"gain_threshold"`         // deg
}

// Step is one entry of an actuation sequence.
type Step struct {
	Motor  string `json:"motor" yaml:"motor"`
	Action string `json:"action" yaml:"action"` // voltage, torque, coast, brake
	Value  int32  `json:"value" yaml:"value"`   // mV or uNm
	HoldMs uint32 `json:"hold_ms" yaml:"hold_ms"`
}

// Profile is a complete configuration file.
type Profile struct {
	Motors   []MotorConfig `json:"motors" yaml:"motors"`
	Sequence []Step        `json:"sequence" yaml:"sequence"`
}

var (
	ErrNoMotors      = errors.New("profile has no motors")
	ErrUnknownMotor  = errors.New("sequence names an unknown motor")
	ErrUnknownAction = errors.New("unknown sequence action")
)

// LoadConfig parses a JSON profile and fills in defaults.
func LoadConfig(jsonData []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(jsonData, &p); err != nil {
		return nil, err
	}
	return finish(&p)
}

func finish(p *Profile) (*Profile, error) {
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func applyDefaults(p *Profile) {
	for i := range p.Motors {
		m := &p.Motors[i]
		if m.Name == "" {
			m.Name = fmt.Sprintf("motor%d", i)
		}
		if m.Model == "" {
			m.Model = "medium"
		}
		if m.CountsPerRev == 0 {
			m.CountsPerRev = 1440
		}
		if m.LoopMs == 0 {
			m.LoopMs = observer.LoopTimeMs
		}
		if m.SupplyMillivolts == 0 {
			m.SupplyMillivolts = 12000
		}
	}
}

// Validate checks the profile against the model catalog.
func (p *Profile) Validate() error {
	if len(p.Motors) == 0 {
		return ErrNoMotors
	}
	names := make(map[string]bool, len(p.Motors))
	for i := range p.Motors {
		m := &p.Motors[i]
		if names[m.Name] {
			return fmt.Errorf("motor %q defined twice", m.Name)
		}
		names[m.Name] = true
		if _, ok := observer.LookupType(m.Model); !ok {
			return fmt.Errorf("motor %q: unknown model %q", m.Name, m.Model)
		}
		if _, err := m.ToSettings(); err != nil {
			return err
		}
		if m.LoopMs != observer.LoopTimeMs {
			return fmt.Errorf("motor %q: loop_ms %d, models are built for %d", m.Name, m.LoopMs, observer.LoopTimeMs)
		}
		if m.PinA == m.PinB || m.EncoderA == m.EncoderB {
			return fmt.Errorf("motor %q: pin pairs must differ", m.Name)
		}
		if m.SupplyMillivolts < 0 {
			return fmt.Errorf("motor %q: negative supply voltage", m.Name)
		}
	}
	for _, s := range p.Sequence {
		if !names[s.Motor] {
			return fmt.Errorf("%w: %q", ErrUnknownMotor, s.Motor)
		}
		switch s.Action {
		case "voltage", "torque", "coast", "brake":
		default:
			return fmt.Errorf("%w: %q", ErrUnknownAction, s.Action)
		}
	}
	return nil
}

// Motor returns the motor with the given name.
func (p *Profile) Motor(name string) (*MotorConfig, bool) {
	for i := range p.Motors {
		if p.Motors[i].Name == name {
			return &p.Motors[i], true
		}
	}
	return nil, false
}

// ModelIndex is the model's position in the dc_model enumeration.
func (m *MotorConfig) ModelIndex() int {
	for i, name := range observer.TypeNames() {
		if name == m.Model {
			return i
		}
	}
	return -1
}

// ToSettings resolves the overrides against the model defaults.
func (m *MotorConfig) ToSettings() (observer.Settings, error) {
	mt, ok := observer.LookupType(m.Model)
	if !ok {
		return observer.Settings{}, fmt.Errorf("unknown model %q", m.Model)
	}
	s := mt.Settings
	o := m.Observer
	if o.StallSpeedLimit != 0 {
		s.StallSpeedLimit = milli(o.StallSpeedLimit)
	}
	if o.StallTimeMs != 0 {
		s.StallTime = o.StallTimeMs
	}
	if o.StallRatio != 0 {
		s.FeedbackVoltageStallRatio = o.StallRatio
	}
	if o.NegligibleVoltage != 0 {
		s.FeedbackVoltageNegligible = milli(o.NegligibleVoltage)
	}
	if o.FrictionCutoff != 0 {
		s.CoulombFrictionSpeedCutoff = milli(o.FrictionCutoff)
	}
	if o.GainLow != 0 {
		s.FeedbackGainLow = o.GainLow
	}
	if o.GainHigh != 0 {
		s.FeedbackGainHigh = o.GainHigh
	}
	if o.GainThreshold != 0 {
		s.FeedbackGainThreshold = milli(o.GainThreshold)
	}
	if err := s.Validate(); err != nil {
		return observer.Settings{}, fmt.Errorf("motor %q: %w (stall_ratio at most %d, nothing negative)",
			m.Name, err, observer.MaxStallRatio)
	}
	return s, nil
}

// milli converts a value in base units to thousandths, rounding to nearest.
func milli(v float64) int32 {
	if v < 0 {
		return int32(v*1000 - 0.5)
	}
	return int32(v*1000 + 0.5)
}

// DefaultProfile is a single medium motor on the pins the reference board
// uses.
func DefaultProfile() *Profile {
	return &Profile{
		Motors: []MotorConfig{DefaultMotorConfig()},
	}
}

// DefaultMotorConfig returns the reference board's first motor.
func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		Name:             "motor0",
		Model:            "medium",
		PinA:             14,
		PinB:             15,
		EncoderA:         2,
		EncoderB:         3,
		CountsPerRev:     1440,
		LoopMs:           observer.LoopTimeMs,
		SupplyMillivolts: 12000,
		StopOnStall:      true,
	}
}
