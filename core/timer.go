package core

// TimerFreq is the rate of the system clock. The RP2040 timer counts
// microseconds.
const TimerFreq = 1000000

var (
	lastTicks  uint32
	uptimeHigh uint32
)

// GetTime returns the current system time in timer ticks.
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time. Targets call it from the main loop
// with the hardware counter; tests call it directly.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime extends the 32-bit clock to 64 bits. It has to be called at
// least once per clock wrap, which the main loop does through get_uptime
// polling and ProcessTimers.
func GetUptime() uint64 {
	now := GetTime()
	if now < lastTicks {
		uptimeHigh++
	}
	lastTicks = now
	return uint64(uptimeHigh)<<32 | uint64(now)
}

// TimerFromUS converts microseconds to timer ticks.
func TimerFromUS(us uint32) uint32 {
	return us * (TimerFreq / 1000000)
}

// TimerFromMS converts milliseconds to timer ticks.
func TimerFromMS(ms uint32) uint32 {
	return ms * (TimerFreq / 1000)
}

// TimerToUS converts timer ticks to microseconds.
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// TimerIsBefore compares two clock values across wraparound.
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// TimerInit resets the uptime extension. Call it once at boot after the
// target has loaded the hardware clock.
func TimerInit() {
	lastTicks = GetTime()
	uptimeHigh = 0
}

// ProcessTimers runs every timer that is due.
func ProcessTimers() {
	currentTime = GetTime()
	GetUptime()
	TimerDispatch()
}
