//go:build rp2040

package main

// ModeConfig determines which mode to run.
type ModeConfig struct {
	// Standalone runs the built-in motor profile without a host. Otherwise
	// the firmware waits for a host over USB.
	Standalone bool
}

// GetMode returns the mode chosen at build time.
func GetMode() ModeConfig {
	return ModeConfig{
		Standalone: false,
	}
}
