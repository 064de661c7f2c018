//go:build rp2040

package main

import "machine"

// InitUSB configures the USB CDC port. On the RP2040 machine.Serial is USB,
// with descriptors supplied by the TinyGo runtime.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// USBAvailable returns the number of bytes waiting to be read.
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads one byte.
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes data and returns how much was taken.
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
