package core

// DebugWriter writes one line of debug output.
type DebugWriter func(string)

// TimingEvent is one entry of the post-mortem event ring.
type TimingEvent struct {
	EventType uint8
	OID       uint8
	Clock     uint32
	Value1    uint32
	Value2    uint32
}

// Event type codes. Zero marks an empty slot.
const (
	EvtMotorStart   = 1 // v1=rest_ticks v2=stop_on_stall
	EvtObserverSync = 2 // angle reset; v1=rotations v2=millidegrees
	EvtStallBegin   = 3 // instant stall flag rose; v1=time in ms
	EvtStallReport  = 4 // stall outlasted StallTime; v1=duration in ms
	EvtTickLate     = 5 // control tick ran late; v1=ticks late
	EvtShutdown     = 6 // v1=number of motors stopped
	EvtActuation    = 7 // v1=actuation v2=value
)

const TimingRingSize = 32

var (
	debugPrintln DebugWriter = func(s string) {}

	// Debug output is off by default so it cannot disturb control timing.
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  = true

	debugChan chan string
)

// SetDebugWriter redirects debug output, usually to a UART.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables DebugPrintln output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug line synchronously when debug is enabled.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug line. It never blocks; the message is dropped
// when the queue is full or async output was not started.
func DebugAsync(msg string) {
	if debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTiming stores an event in the ring, overwriting the oldest one.
// It is safe to call from timer handlers.
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

func eventName(eventType uint8) string {
	switch eventType {
	case EvtMotorStart:
		return "MOTOR_START"
	case EvtObserverSync:
		return "OBS_SYNC"
	case EvtStallBegin:
		return "STALL_BEGIN"
	case EvtStallReport:
		return "STALL!"
	case EvtTickLate:
		return "TICK_LATE"
	case EvtShutdown:
		return "SHUTDOWN"
	case EvtActuation:
		return "ACTUATE"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing writes the ring through the debug writer. It is called on
// shutdown, when the control loop no longer needs the CPU.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" oid=" + itoa(int(evt.OID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing empties the ring.
func ClearTimingRing() {
	timingRing = [TimingRingSize]TimingEvent{}
	timingRingHead = 0
}
