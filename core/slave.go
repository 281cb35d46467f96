package core

// Phase tracks where the slave is inside a bus transaction. Exactly one
// phase is active at a time and it is only ever changed inside the two
// event handlers, which hardware targets run with the corresponding
// interrupt sources masked.
type Phase uint8

const (
	// PhaseIdle: no transaction in progress, or the next byte is an
	// address byte.
	PhaseIdle Phase = iota

	// PhaseAwaitRegisterPointer: address matched for a write, waiting
	// for the register pointer byte.
	PhaseAwaitRegisterPointer

	// PhaseAwaitWriteData: pointer known, waiting for a data byte.
	PhaseAwaitWriteData

	// PhasePostWriteAck: a data byte was stored, the slave is driving
	// its acknowledgment; the next boundary decides stop vs more data.
	PhasePostWriteAck

	// PhasePreReadByte: address matched for a read (or the master
	// acknowledged the previous byte); the next register byte is loaded
	// and shifted out.
	PhasePreReadByte

	// PhaseAwaitReadAck: a register byte has been shifted out, waiting
	// for the master's ACK/NACK bit.
	PhaseAwaitReadAck
)

// Slave is the protocol state machine for a two-wire bus slave exposing
// a RegisterFile to a remote master. Bus events arrive through
// OnStartCondition and OnBitBoundary, each running to completion; no
// other code mutates the transaction state.
type Slave struct {
	bus  BusDriver
	regs *RegisterFile

	addr    uint8 // own 7-bit bus address, fixed at activation
	phase   Phase
	pointer uint8 // current register index, advances mod 256
	ackGen  bool  // true while the next bit boundary is an ack bit
}

// NewSlave creates a slave bound to a signaling driver and a register
// file. Call Activate before enabling event delivery.
func NewSlave(bus BusDriver, regs *RegisterFile) *Slave {
	return &Slave{bus: bus, regs: regs}
}

// Activate fixes the slave's own bus address (masked to 7 bits), puts
// the lines in their idle state and enables start-condition detection.
// Performed once at startup; nothing is runtime-configurable afterwards.
func (s *Slave) Activate(addr uint8) {
	s.addr = addr & 0x7F
	s.bus.ConfigureLines()
	s.bus.EnableStartEvent()
}

// Registers returns the register file shared with application code.
func (s *Slave) Registers() *RegisterFile {
	return s.regs
}

// Phase returns the current transaction phase. Diagnostic only; the
// value may be stale by the time the caller looks at it.
func (s *Slave) Phase() Phase {
	return s.phase
}

// OnStartCondition handles a start (or repeated start) condition.
func (s *Slave) OnStartCondition() {
	bus := s.bus
	bus.HoldClock()
	if s.phase == PhaseAwaitWriteData || s.phase == PhasePostWriteAck {
		// Repeated start in the middle of a write sequence. The
		// boundary source is already armed; the next byte is parsed as
		// a fresh address. An unserviced acknowledgment is abandoned
		// with the rest of the sequence.
		s.phase = PhaseIdle
		bus.ReleaseDataLine()
	} else {
		bus.ShiftBufferWrite(0)
		bus.ArmBitBoundary(8)
	}
	// A start can land before an outstanding acknowledgment boundary is
	// serviced; whatever follows is a full byte, never an ack bit.
	s.ackGen = false
	bus.RearmBitCounter()
	bus.ClearEventFlags()
	bus.ReleaseClock()
}

// OnBitBoundary handles the counter event: either a full data/address
// byte has crossed the bus, or the single acknowledgment bit that
// follows one.
func (s *Slave) OnBitBoundary() {
	if s.ackGen {
		s.onAckBoundary()
	} else {
		s.onByteBoundary()
	}
	s.bus.ReleaseClock()
}

// onAckBoundary runs when the just-completed bit was an acknowledgment
// bit.
func (s *Slave) onAckBoundary() {
	bus := s.bus

	if s.phase == PhaseAwaitReadAck {
		if !bus.SampleDataLine() {
			// ACK: the master wants the next register byte. Take the
			// data line back before the clock runs again, then fall
			// through to the transmit setup below.
			s.phase = PhasePreReadByte
			bus.DriveDataLine(false)
			s.pointer++
			s.waitClockLow()
		} else {
			// NACK: transaction over.
			s.waitClockLow()
			s.phase = PhaseIdle
			s.pointer = 0
			bus.ReleaseDataLine()
			bus.DisarmBitBoundary()
		}
	}

	switch s.phase {
	case PhasePostWriteAck:
		bus.HoldClock()
		if bus.StopConditionFlagged() {
			s.pointer = 0
			s.phase = PhaseIdle
			bus.DisarmBitBoundary()
		} else {
			s.phase = PhaseAwaitWriteData
			s.pointer++
		}
		bus.ReleaseDataLine()
	case PhasePreReadByte:
		bus.HoldClock()
		bus.ShiftBufferWrite(s.regs.Load(s.pointer))
		bus.BeginTransmit()
	default:
		bus.HoldClock()
		bus.ReleaseDataLine()
	}

	s.ackGen = false
	bus.RearmBitCounter()
	bus.ClearEventFlags()
}

// onByteBoundary runs when a full 8-bit unit has crossed the bus.
func (s *Slave) onByteBoundary() {
	bus := s.bus
	bus.HoldClock()
	bus.RearmBitCounter()

	switch s.phase {
	case PhaseIdle:
		// Address byte: top 7 bits address, LSB read/write. On a
		// mismatch nothing is driven and the master sees a NACK.
		b := bus.ShiftBufferRead()
		if b>>1 == s.addr {
			if b&0x01 != 0 {
				s.phase = PhasePreReadByte
			} else {
				s.phase = PhaseAwaitRegisterPointer
			}
			bus.DriveDataLine(false)
			s.ackGen = true
		}
	case PhaseAwaitRegisterPointer:
		s.pointer = bus.ShiftBufferRead()
		bus.DriveDataLine(false)
		s.ackGen = true
		s.phase = PhaseAwaitWriteData
	case PhaseAwaitWriteData:
		s.regs.Store(s.pointer, bus.ShiftBufferRead())
		bus.DriveDataLine(false)
		s.ackGen = true
		s.phase = PhasePostWriteAck
	case PhasePreReadByte:
		// The register byte finished shifting out; hand the data line
		// to the master for its ACK/NACK.
		bus.ReleaseDataLine()
		s.ackGen = true
		s.phase = PhaseAwaitReadAck
	}

	if s.ackGen {
		// Fire again after the single acknowledgment bit.
		bus.ArmBitBoundary(1)
	}
	bus.ShiftBufferWrite(0)
	bus.ClearEventFlags()
}

// waitClockLow busy-waits for the master to finish the current clock
// pulse. Bounded by bus timing; this is the flow-control hold window,
// not an error path.
func (s *Slave) waitClockLow() {
	for s.bus.SampleClockLine() {
	}
}
