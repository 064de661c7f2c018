//go:build !tinygo

package core

// Host builds and tests drive the clock by hand through SetTime.
var systemTicks uint32

func getSystemTicks() uint32 { return systemTicks }

func setSystemTicks(ticks uint32) { systemTicks = ticks }
