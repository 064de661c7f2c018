//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/encoders"
)

// Encoder counts quadrature edges on two GPIOs. It uses a PIO state machine
// when allowed and one is free, and falls back to pin interrupts.
type Encoder struct {
	allowPIO   bool
	pinA, pinB machine.Pin
	pio        *pioEncoder
	irq        *encoders.QuadratureDevice
}

// NewEncoder returns an unconfigured encoder backend.
func NewEncoder(allowPIO bool) *Encoder {
	return &Encoder{allowPIO: allowPIO}
}

func (e *Encoder) Configure(pinA, pinB uint32) error {
	e.pinA, e.pinB = machine.Pin(pinA), machine.Pin(pinB)
	if e.allowPIO && pinB == pinA+1 {
		if enc, err := newPIOEncoder(machine.Pin(pinA)); err == nil {
			e.pio = enc
			return nil
		}
	}
	// Precision 1 keeps every edge, giving four counts per encoder line.
	dev := encoders.NewQuadratureViaInterrupt(machine.Pin(pinA), machine.Pin(pinB))
	if err := dev.Configure(encoders.QuadratureConfig{Precision: 1}); err != nil {
		return err
	}
	e.irq = dev
	return nil
}

func (e *Encoder) Count() int32 {
	switch {
	case e.pio != nil:
		return e.pio.Count()
	case e.irq != nil:
		return int32(e.irq.Position())
	}
	return 0
}

func (e *Encoder) SetCount(count int32) {
	switch {
	case e.pio != nil:
		e.pio.SetCount(count)
	case e.irq != nil:
		e.irq.SetPosition(int(count))
	}
}

// Release hands the state machine back to PIO1, or detaches the pin
// interrupts, so a later config_dc_motor can reuse them.
func (e *Encoder) Release() {
	switch {
	case e.pio != nil:
		e.pio.release()
		e.pio = nil
	case e.irq != nil:
		e.pinA.SetInterrupt(machine.PinToggle, nil)
		e.pinB.SetInterrupt(machine.PinToggle, nil)
		e.irq = nil
	}
}
