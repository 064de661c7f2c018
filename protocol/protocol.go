// Package protocol implements the framed serial protocol between host and
// MCU: VLQ encoded messages in CRC protected, sequenced blocks.
package protocol

// Version is the protocol implementation version.
const Version = "0.1.0"

const (
	MessageMax = 512 // output scratch size; holds several blocks

	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)
