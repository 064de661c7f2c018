// Package serial opens the link to a dcservo board. USB CDC devices go
// through tarm/serial; "tcp:host:port" addresses reach a board behind a
// network bridge or a simulator.
package serial

import (
	"errors"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// TCPPrefix marks a network address in Config.Device.
const TCPPrefix = "tcp:"

var ErrNoDevice = errors.New("serial: device path required")

// Port is an open link to the MCU.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything still queued in the OS buffers.
	Flush() error
}

// Config holds the link settings.
type Config struct {
	// Device is a path such as /dev/ttyACM0 or COM3, or tcp:host:port.
	Device string

	// Baud is ignored by USB CDC but required by the OS API.
	Baud int

	// ReadTimeout in milliseconds; 0 blocks.
	ReadTimeout int
}

// DefaultConfig returns the settings the firmware expects.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

// IsNetwork reports whether the device is a TCP address.
func (c *Config) IsNetwork() bool {
	return strings.HasPrefix(c.Device, TCPPrefix)
}

// ListPorts returns the serial devices a board is likely to show up as.
func ListPorts() ([]string, error) {
	var patterns []string
	switch runtime.GOOS {
	case "linux":
		patterns = []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/serial/by-id/*"}
	case "darwin":
		patterns = []string{"/dev/cu.usbmodem*", "/dev/tty.usbmodem*"}
	default:
		return nil, nil
	}

	seen := make(map[string]bool)
	var ports []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if resolved, err := filepath.EvalSymlinks(m); err == nil {
				m = resolved
			}
			if !seen[m] {
				seen[m] = true
				ports = append(ports, m)
			}
		}
	}
	sort.Strings(ports)
	return ports, nil
}
