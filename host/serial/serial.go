package serial

import (
	"io"
)

// Port is the serial connection to the device's monitor UART. The
// interface exists so tools can be tested against an in-memory
// implementation instead of real hardware.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate; the firmware's monitor UART runs at 115200
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a configuration matching the firmware's
// monitor UART
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100, // 100ms read timeout
	}
}
