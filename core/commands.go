package core

import (
	"errors"
	"sync/atomic"

	"dcservo/protocol"
)

// FirmwareState holds the global firmware state.
type FirmwareState struct {
	configCRC  uint32 // atomic
	isShutdown uint32 // atomic bool
	moveCount  uint16
}

var errConfigResetRunning = errors.New("config_reset only allowed in shutdown")

var globalState = &FirmwareState{
	moveCount: 16,
}

// InitCoreCommands registers the protocol commands every target needs.
//
// Registration order matters for the first two: hosts bootstrap with a
// fixed dictionary where identify_response is ID 0 and identify is ID 1.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)
	RegisterCommand("set_debug", "enable=%c", handleSetDebug)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")
	RegisterResponse("shutdown", "clock=%u reason=%*s")
}

// handleIdentify returns one chunk of the compressed dictionary.
func handleIdentify(data *[]byte) error {
	// Arguments: offset (uint32), count (uint8)
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	// A chunk past the end comes back empty, which tells the host the
	// dictionary is complete.
	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	// 64-bit uptime, sent as high word then low word
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetConfig(data *[]byte) error {
	crc := atomic.LoadUint32(&globalState.configCRC)
	isShutdown := atomic.LoadUint32(&globalState.isShutdown)

	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolToUint(crc != 0)) // is_config: finalize_config seen
		protocol.EncodeVLQUint(output, crc)                  // crc the host sent, 0 if none
		protocol.EncodeVLQUint(output, isShutdown)           // is_shutdown
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})
	return nil
}

// handleConfigReset drops the configuration so the host can configure the
// motors again. Motors are stopped and forgotten and their encoder
// resources released.
func handleConfigReset(data *[]byte) error {
	// Only from shutdown, so no control tick can be running.
	if !IsShutdown() {
		return errConfigResetRunning
	}
	atomic.StoreUint32(&globalState.configCRC, 0)
	resetDCMotors()
	atomic.StoreUint32(&globalState.isShutdown, 0)
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

// handleAllocateOids sizes the motor table.
func handleAllocateOids(data *[]byte) error {
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	return allocateDCMotors(int(count))
}

func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency stop")
	return nil
}

func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

// TryShutdown stops every motor and tells the host why. Only the first
// call after a reset has any effect.
func TryShutdown(reason string) {
	if !atomic.CompareAndSwapUint32(&globalState.isShutdown, 0, 1) {
		return
	}
	// Motors first; the report can wait for the next flush.
	stopped := ShutdownAllDCMotors()
	now := GetTime()
	RecordTiming(EvtShutdown, 0, now, uint32(stopped), 0)
	DebugPrintln("[shutdown] " + reason)

	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, now)
		protocol.EncodeVLQString(output, reason)
	})
	DumpTimingRing()
}

// IsShutdown reports whether the firmware is shut down.
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState clears the shutdown flag and configuration after a
// host reconnect.
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
}

var globalResetHandler func()

// resetPending is set by the reset command. The reset itself runs from the
// main loop once the ACK has been written.
var resetPending uint32 // atomic bool

// SetResetHandler sets the platform reset routine.
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler if a reset was requested. Call
// it from the main loop after outgoing data has been flushed.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) == 0 {
		return
	}
	// Leave the bridges coasting in case the handler returns or the
	// watchdog takes a while to fire.
	ShutdownAllDCMotors()
	if globalResetHandler != nil {
		globalResetHandler()
	}
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
