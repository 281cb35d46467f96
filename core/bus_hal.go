package core

// BusDriver is the abstract two-wire signaling interface that the slave
// state machine runs against. Hardware targets implement it over their
// bus peripheral (USI counter on AVR, PIO on RP2040); tests implement it
// with a simulated bus.
//
// The driver owns the electrical side only: line direction and level,
// the 8-bit shift buffer, and the event sources that call into
// Slave.OnStartCondition and Slave.OnBitBoundary. All protocol decisions
// stay in the core.
type BusDriver interface {
	// ConfigureLines sets the clock and data lines to their idle
	// (released, pulled-up) state. Called once during activation.
	ConfigureLines()

	// EnableStartEvent enables the start-condition event source.
	// Called once during activation; start detection stays enabled for
	// the life of the slave.
	EnableStartEvent()

	// HoldClock keeps the clock line asserted low so the master cannot
	// issue further clock edges until ReleaseClock.
	HoldClock()

	// ReleaseClock releases the clock line back to the master.
	ReleaseClock()

	// DriveDataLine drives the data line to the given level. The slave
	// uses level=false to generate an acknowledgment bit.
	DriveDataLine(level bool)

	// ReleaseDataLine stops driving the data line, returning it to the
	// master (or the pull-up).
	ReleaseDataLine()

	// BeginTransmit connects the shift buffer to the data line output so
	// the next 8 clock edges shift the loaded byte onto the bus.
	BeginTransmit()

	// SampleDataLine reads the current level of the data line.
	SampleDataLine() bool

	// SampleClockLine reads the current level of the clock line.
	SampleClockLine() bool

	// ArmBitBoundary enables the bit-boundary event source and sets it
	// to fire after the given number of bus clock bits. Only 1 and 8
	// are meaningful.
	ArmBitBoundary(bits uint8)

	// RearmBitCounter resets only the bit counter for a fresh byte,
	// leaving event flags untouched.
	RearmBitCounter()

	// DisarmBitBoundary disables the bit-boundary event source. Start
	// detection is unaffected.
	DisarmBitBoundary()

	// StopConditionFlagged reports whether a stop condition has been
	// observed since the flag was last cleared.
	StopConditionFlagged() bool

	// ShiftBufferRead returns the byte assembled by the last 8 bits
	// shifted in from the bus.
	ShiftBufferRead() byte

	// ShiftBufferWrite loads the shift buffer, normally ahead of
	// BeginTransmit.
	ShiftBufferWrite(b byte)

	// ClearEventFlags clears latched start/boundary/stop flags.
	ClearEventFlags()
}

// Global singleton used by core code.
var busDriver BusDriver

// SetBusDriver is called by target-specific code to register its driver.
func SetBusDriver(d BusDriver) {
	busDriver = d
}

// MustBus returns the configured driver or panics if missing.
func MustBus() BusDriver {
	if busDriver == nil {
		panic("bus driver not configured")
	}
	return busDriver
}
