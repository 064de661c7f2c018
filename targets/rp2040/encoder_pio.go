//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// The encoder program keeps the signed count in Y and pushes it after every
// sample. The first 16 words are a jump table indexed by the previous and
// current pin state, so the program must sit at offset 0 and "mov pc, isr"
// lands on the right entry.
const (
	pioEncDecrement = 14
	pioEncUpdate    = 15
	pioEncIncrement = 21
	pioEncWrap      = 23
)

var errPIOEncoderBusy = errors.New("no PIO state machine free for encoder")

// Encoders share PIO1; PIO0 is left for other uses.
var (
	encoderPIO        = rp2pio.PIO1
	encoderProgLoaded bool
)

func buildEncoderProgram() []uint16 {
	u := uint8(pioEncUpdate)
	d := uint8(pioEncDecrement)
	i := uint8(pioEncIncrement)
	jmp := func(addr uint8) uint16 { return rp2pio.EncodeJmp(addr, rp2pio.JmpAlways) }
	return []uint16{
		// previous state 00
		jmp(u), jmp(d), jmp(i), jmp(u),
		// previous state 01
		jmp(i), jmp(u), jmp(u), jmp(d),
		// previous state 10
		jmp(d), jmp(u), jmp(u), jmp(i),
		// previous state 11, entries 14 and 15 double as the handlers
		jmp(u), jmp(i),
		rp2pio.EncodeJmp(u, rp2pio.JmpYNZeroDec), // 14: decrement
		// .wrap_target
		rp2pio.EncodeMov(rp2pio.SrcDestISR, rp2pio.SrcDestY), // 15: update
		rp2pio.EncodePush(false, false),
		rp2pio.EncodeOut(rp2pio.SrcDestISR, 2), // previous state into ISR
		rp2pio.EncodeIn(rp2pio.SrcDestPins, 2), // append current state
		rp2pio.EncodeMov(rp2pio.SrcDestOSR, rp2pio.SrcDestISR),
		rp2pio.EncodeMov(rp2pio.SrcDestPC, rp2pio.SrcDestISR),
		// 21: increment as ~(~y - 1)
		rp2pio.EncodeMovNot(rp2pio.SrcDestY, rp2pio.SrcDestY),
		rp2pio.EncodeJmp(pioEncWrap, rp2pio.JmpYNZeroDec),
		rp2pio.EncodeMovNot(rp2pio.SrcDestY, rp2pio.SrcDestY), // 23
		// .wrap
	}
}

// pioEncoder reads a count maintained by a PIO state machine. Pin B must be
// pin A + 1. The joined RX FIFO leaves no way to load Y later, so SetCount
// keeps an offset instead.
type pioEncoder struct {
	sm     rp2pio.StateMachine
	offset int32
}

func newPIOEncoder(pinA machine.Pin) (*pioEncoder, error) {
	if !encoderProgLoaded {
		offset, err := encoderPIO.AddProgram(buildEncoderProgram(), 0)
		if err != nil {
			return nil, err
		}
		if offset != 0 {
			return nil, errPIOEncoderBusy
		}
		encoderProgLoaded = true
	}
	sm, err := encoderPIO.ClaimStateMachine()
	if err != nil {
		return nil, errPIOEncoderBusy
	}

	pinA.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	(pinA + 1).Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(pinA)
	cfg.SetInShift(false, false, 32)
	cfg.SetFIFOJoin(rp2pio.FifoJoinRx)
	cfg.SetWrap(pioEncUpdate, pioEncWrap)

	sm.Init(0, cfg)
	sm.Exec(rp2pio.EncodeSet(rp2pio.SrcDestY, 0))
	sm.SetEnabled(true)
	return &pioEncoder{sm: sm}, nil
}

func (e *pioEncoder) Count() int32 {
	return e.raw() + e.offset
}

func (e *pioEncoder) SetCount(count int32) {
	e.offset = count - e.raw()
}

// release stops the state machine and returns it to the pool. The program
// stays loaded for the next encoder.
func (e *pioEncoder) release() {
	e.sm.SetEnabled(false)
	e.sm.ClearFIFOs()
	e.sm.Unclaim()
}

// raw drains the stale values in the FIFO and waits for a fresh one. The
// program pushes every few cycles, so the wait is short.
func (e *pioEncoder) raw() int32 {
	n := e.sm.RxFIFOLevel() + 1
	var v uint32
	for n > 0 {
		for e.sm.IsRxFIFOEmpty() {
		}
		v = e.sm.RxGet()
		n--
	}
	return int32(v)
}
