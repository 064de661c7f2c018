//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"dcservo/core"
)

// RP2040 timer peripheral registers.
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock publishes the MCU name and the timer frequency. The RP2040
// timer counts microseconds, which is also the control tick unit.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.TimerFreq))
}

// GetHardwareTime returns the low word of the microsecond counter.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime copies the hardware clock into the core timer.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
