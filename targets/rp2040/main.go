//go:build rp2040

package main

import (
	"machine"
	"time"

	"dcservo/core"
)

// Supply voltage of the reference board's H-bridge.
const boardSupplyMillivolts = 12000

func main() {
	// Clear any watchdog state left over from a reset command.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()

	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.RegisterDCMotorCommands()
	core.SetSupplyMillivolts(boardSupplyMillivolts)

	core.SetDCDriverFactory(func() core.DCDriver {
		return NewHBridge()
	})
	core.SetEncoderFactory(func() core.EncoderDriver {
		return NewEncoder(true)
	})

	if GetMode().Standalone {
		RunStandaloneMode()
		return
	}

	// The dictionary is compressed once, after every command is registered.
	core.GetGlobalDictionary().BuildDictionary()

	link := newUSBLink()
	core.SetGlobalTransport(link.transport)
	core.SetResetHandler(watchdogReset)

	go link.readLoop()

	for {
		link.poll()
		time.Sleep(10 * time.Microsecond)
	}
}

// watchdogReset reboots through the watchdog, which also re-enumerates USB.
func watchdogReset() {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
		return
	}
	if err := machine.Watchdog.Start(); err != nil {
		return
	}
	for {
		time.Sleep(1 * time.Millisecond)
	}
}

// itoa converts int to string without importing strconv.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	negative := i < 0
	if negative {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
