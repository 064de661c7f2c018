//go:build tinygo

package core

import "sync/atomic"

// clockTicks is written by the main loop from the hardware timer and read
// by command handlers, so it goes through atomics.
var clockTicks uint32

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&clockTicks)
}

func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&clockTicks, ticks)
}
