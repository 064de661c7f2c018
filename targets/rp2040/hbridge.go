//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/l9110x"

	"dcservo/core"
)

// PWM period of the bridge inputs, 20 kHz keeps switching inaudible.
const bridgePeriodNs = 50000

var (
	errBridgeSlice = errors.New("bridge pins must share a PWM slice")
	errBridgeState = errors.New("bridge not configured")
)

// pwmSlice is the subset of TinyGo's unexported *pwmGroup the bridge uses.
// It is also what l9110x.NewWithSpeed expects.
type pwmSlice interface {
	l9110x.PWM
}

// HBridge drives an L9110-style bridge from the two channels of one PWM
// slice. Both low coasts, both high brakes.
type HBridge struct {
	pwm    pwmSlice
	ca, cb uint8
	dev    l9110x.PWMDevice
	ready  bool
}

// NewHBridge returns an unconfigured bridge backend.
func NewHBridge() *HBridge {
	return &HBridge{}
}

// Configure claims pinA and pinB. GPIO N belongs to slice (N>>1)&7, so the
// pins must be an even/odd pair such as 14 and 15.
func (h *HBridge) Configure(pinA, pinB uint32) error {
	slice := (pinA >> 1) & 0x7
	if (pinB>>1)&0x7 != slice || pinA == pinB {
		return errBridgeSlice
	}
	pwm := pwmForSlice(uint8(slice))
	if err := pwm.Configure(machine.PWMConfig{Period: bridgePeriodNs}); err != nil {
		return err
	}
	ca, err := pwm.Channel(machine.Pin(pinA))
	if err != nil {
		return err
	}
	cb, err := pwm.Channel(machine.Pin(pinB))
	if err != nil {
		return err
	}
	h.pwm, h.ca, h.cb = pwm, ca, cb
	h.dev = l9110x.NewWithSpeed(ca, cb, pwm)
	h.ready = true
	return h.dev.Configure()
}

// SetDuty drives forward for positive duty and backward for negative.
func (h *HBridge) SetDuty(duty int32) error {
	if !h.ready {
		return errBridgeState
	}
	if duty == 0 {
		h.dev.Stop()
		return nil
	}
	top := h.pwm.Top()
	if duty > 0 {
		h.pwm.Set(h.cb, 0)
		h.pwm.Set(h.ca, scaleDuty(top, duty))
	} else {
		h.pwm.Set(h.ca, 0)
		h.pwm.Set(h.cb, scaleDuty(top, -duty))
	}
	return nil
}

func (h *HBridge) Coast() error {
	if !h.ready {
		return errBridgeState
	}
	h.dev.Stop()
	return nil
}

func (h *HBridge) Brake() error {
	if !h.ready {
		return errBridgeState
	}
	top := h.pwm.Top()
	h.pwm.Set(h.ca, top)
	h.pwm.Set(h.cb, top)
	return nil
}

// scaleDuty maps a duty in [0, core.DCDutyMax] to a compare value. top is
// at most 65535, so the product fits in 32 bits.
func scaleDuty(top uint32, duty int32) uint32 {
	if duty > core.DCDutyMax {
		duty = core.DCDutyMax
	}
	return top * uint32(duty) / core.DCDutyMax
}

// pwmForSlice returns TinyGo's PWM0-PWM7 through the interface.
func pwmForSlice(slice uint8) pwmSlice {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
