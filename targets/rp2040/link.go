//go:build rp2040

package main

import (
	"time"

	"dcservo/core"
	"dcservo/protocol"
)

// More failed writes than this in a row means the host went away.
const maxWriteFailures = 10

// usbLink joins the USB CDC port to the protocol transport. A reader
// goroutine fills the input FIFO; the main loop parses, runs the control
// ticks and writes the output.
type usbLink struct {
	in        *protocol.FifoBuffer
	out       *protocol.ScratchOutput
	transport *protocol.Transport

	disconnected  bool
	writeFailures uint32

	received, sent, errors uint32
}

func newUSBLink() *usbLink {
	l := &usbLink{
		in:  protocol.NewFifoBuffer(256),
		out: protocol.NewScratchOutput(),
	}
	l.transport = protocol.NewTransport(l.out, core.DispatchCommand)
	l.transport.SetResetCallback(func() {
		l.in.Reset()
		l.out.Reset()
		core.ResetFirmwareState()
	})
	// The host waits for the ACK before it reads responses.
	l.transport.SetFlushCallback(l.flush)
	l.transport.SetErrorCallback(func(cmdID uint16, err error) {
		l.errors++
		core.DebugPrintln("[cmd " + itoa(int(cmdID)) + "] " + err.Error())
	})
	return l
}

// poll runs one pass of the main loop. A panic shuts the motors down and
// drops the buffered bytes.
func (l *usbLink) poll() {
	defer func() {
		if r := recover(); r != nil {
			l.errors++
			l.in.Reset()
			l.out.Reset()
			core.TryShutdown("main loop panic")
		}
	}()

	UpdateSystemTime()

	if l.in.Available() > 0 {
		input := protocol.NewSliceInputBuffer(l.in.Data())
		before := input.Available()
		l.transport.Receive(input)
		l.received++
		if consumed := before - input.Available(); consumed > 0 {
			l.in.Pop(consumed)
		}
	}

	// Ticks run before reporting so a stall found now goes out now.
	core.ProcessTimers()
	core.DCMotorTask()

	if len(l.out.Result()) > 0 {
		l.flush()
		l.sent++
	}

	// Reset only once the ACK is on the wire.
	core.CheckPendingReset()
}

// readLoop moves USB bytes into the input FIFO. It restarts itself after a
// panic.
func (l *usbLink) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			l.errors++
			time.Sleep(100 * time.Millisecond)
			go l.readLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				l.errors++
				time.Sleep(1 * time.Millisecond)
				continue
			}
			if l.disconnected {
				l.reconnect()
			}
			if l.in.Write([]byte{b}) == 0 {
				l.errors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// reconnect starts a fresh session on the first byte after a disconnect.
func (l *usbLink) reconnect() {
	l.disconnected = false
	l.in.Reset()
	l.out.Reset()
	l.transport.Reset()
	core.ResetFirmwareState()
	l.received, l.sent = 0, 0
	l.writeFailures = 0
}

// flush drains the output buffer. Stale output is dropped once the host
// is considered gone.
func (l *usbLink) flush() {
	data := l.out.Result()
	for len(data) > 0 {
		n, err := USBWriteBytes(data)
		if err != nil || n == 0 {
			l.writeFailures++
			if l.writeFailures > maxWriteFailures {
				l.disconnected = true
				l.writeFailures = 0
				l.out.Reset()
				l.in.Reset()
			}
			return
		}
		data = data[n:]
	}
	l.writeFailures = 0
	l.out.Reset()
}
