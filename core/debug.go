package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active. Disabled by
	// default: debug output from foreground code must never run long
	// enough to starve the bus handlers.
	debugEnabled bool = false
)

// SetDebugWriter sets the platform-specific debug output function.
// This allows platforms to redirect debug output to UART, USB, etc.
// Never call the writer from inside the bus event handlers.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrint writes a debug message if debug output is enabled
func DebugPrint(s string) {
	if debugEnabled {
		debugPrintln(s)
	}
}

// String returns a short name for the phase, for debug output.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitRegisterPointer:
		return "await-pointer"
	case PhaseAwaitWriteData:
		return "await-data"
	case PhasePostWriteAck:
		return "post-write-ack"
	case PhasePreReadByte:
		return "pre-read-byte"
	case PhaseAwaitReadAck:
		return "await-read-ack"
	}
	return "unknown"
}
