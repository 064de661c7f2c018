//go:build rp2040

package main

import (
	"machine"

	"dcservo/core"
)

var debugUART *machine.UART

// InitDebugUART sends core debug output to UART0 on GPIO0 (TX) and GPIO1
// (RX) at 115200 baud. Output stays off until the host sends set_debug.
func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	debugUART = uart
	core.SetDebugWriter(debugWrite)
	debugWrite("=== dcservo rp2040 ===")
}

func debugWrite(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
