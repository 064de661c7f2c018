//go:build !tinygo

package core

// irqState stands in for interrupt.State off target. Host builds run the
// control tick and the main loop on one goroutine, so there is nothing to
// mask.
type irqState uintptr

func disableInterrupts() irqState { return 0 }

func restoreInterrupts(irqState) {}
