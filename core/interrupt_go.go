//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go
type State uintptr

// disableInterrupts is a no-op on regular Go. Host-side tests rely on
// this: the torn-access interleavings documented for the register file
// stay reproducible without real interrupt masking.
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on regular Go
func restoreInterrupts(state State) {
	// No-op
}
