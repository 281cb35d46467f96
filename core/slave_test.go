package core

import (
	"testing"
)

// simBus is a test implementation of BusDriver that models the
// line-level side of the bus: the shift register, the bit counter and
// the slave's hold on the two wires. The busMaster below clocks bits
// through it one at a time.
type simBus struct {
	shift byte

	// bit counter: fires the boundary event when remaining reaches 0
	armed     bool
	remaining uint8

	// slave's grip on the data line
	slaveDriven bool
	slaveLevel  bool
	transmit    bool // data line follows shift register MSB

	clockHeld bool
	clockHigh bool
	wire      bool // data line level during the current bit
	stopFlag  bool

	startEnabled bool
	configured   bool
}

func (b *simBus) ConfigureLines()   { b.configured = true }
func (b *simBus) EnableStartEvent() { b.startEnabled = true }
func (b *simBus) HoldClock()        { b.clockHeld = true }
func (b *simBus) ReleaseClock()     { b.clockHeld = false }

func (b *simBus) DriveDataLine(level bool) {
	b.slaveDriven = true
	b.slaveLevel = level
	b.transmit = false
}

func (b *simBus) ReleaseDataLine() {
	b.slaveDriven = false
	b.transmit = false
}

func (b *simBus) BeginTransmit() {
	b.transmit = true
}

func (b *simBus) SampleDataLine() bool  { return b.wire }
func (b *simBus) SampleClockLine() bool { return b.clockHigh }

func (b *simBus) ArmBitBoundary(bits uint8) {
	b.armed = true
	b.remaining = bits
}

func (b *simBus) RearmBitCounter() {
	b.remaining = 8
}

func (b *simBus) DisarmBitBoundary() {
	b.armed = false
}

func (b *simBus) StopConditionFlagged() bool { return b.stopFlag }
func (b *simBus) ShiftBufferRead() byte      { return b.shift }
func (b *simBus) ShiftBufferWrite(v byte)    { b.shift = v }

func (b *simBus) ClearEventFlags() {
	b.stopFlag = false
}

// busMaster drives transactions against a slave the way a bus master
// would: start/stop conditions, bytes most-significant bit first, and
// an acknowledgment bit after each byte.
type busMaster struct {
	t     *testing.T
	sim   *simBus
	slave *Slave
}

func newBusMaster(t *testing.T, addr uint8) (*busMaster, *RegisterFile) {
	sim := &simBus{}
	regs := NewRegisterFile()
	slave := NewSlave(sim, regs)
	slave.Activate(addr)
	if !sim.configured || !sim.startEnabled {
		t.Fatal("Activate did not configure lines and enable start detection")
	}
	return &busMaster{t: t, sim: sim, slave: slave}, regs
}

// clockBit runs one bus clock pulse. If masterDrives is false the
// master releases the data line for this bit (slave transmit or
// acknowledgment windows). Returns the level the wire carried.
func (m *busMaster) clockBit(level bool, masterDrives bool) bool {
	sim := m.sim
	if sim.clockHeld {
		m.t.Fatal("master clocked a bit while the slave held the clock")
	}

	switch {
	case sim.transmit:
		level = sim.shift&0x80 != 0
	case sim.slaveDriven:
		level = sim.slaveLevel
	case !masterDrives:
		level = true // pull-up
	}
	sim.wire = level

	// The shift register advances on every clock pulse regardless of
	// who drove the bit.
	var in byte
	if level {
		in = 1
	}
	sim.shift = sim.shift<<1 | in

	if sim.armed {
		sim.remaining--
		if sim.remaining == 0 {
			m.slave.OnBitBoundary()
			if sim.clockHeld {
				m.t.Fatal("bit-boundary handler returned with the clock held")
			}
		}
	}
	return level
}

// start issues a start (or repeated start) condition.
func (m *busMaster) start() {
	m.slave.OnStartCondition()
	if m.sim.clockHeld {
		m.t.Fatal("start handler returned with the clock held")
	}
}

// stop issues a stop condition. Whether the slave observes the flag
// depends on whether an acknowledgment boundary is still outstanding;
// normally the flag is only found by the next start.
func (m *busMaster) stop() {
	m.sim.stopFlag = true
}

// sendByte clocks out a byte and returns true if the slave pulled the
// data line low for the acknowledgment bit.
func (m *busMaster) sendByte(b byte) bool {
	for i := 7; i >= 0; i-- {
		m.clockBit(b&(1<<uint(i)) != 0, true)
	}
	return !m.clockBit(true, false)
}

// readByte clocks in a byte from the slave and answers with an ACK
// (ack=true) or NACK bit.
func (m *busMaster) readByte(ack bool) byte {
	var v byte
	for i := 0; i < 8; i++ {
		if m.clockBit(true, false) {
			v = v<<1 | 1
		} else {
			v <<= 1
		}
	}
	m.clockBit(!ack, true)
	return v
}

// writeTo runs a complete write transaction: address, register
// pointer, data bytes. Fails the test if any byte goes unacknowledged.
func (m *busMaster) writeTo(addr, pointer uint8, data ...byte) {
	m.start()
	if !m.sendByte(addr << 1) {
		m.t.Fatalf("address byte %#02x not acknowledged", addr)
	}
	if !m.sendByte(pointer) {
		m.t.Fatal("register pointer byte not acknowledged")
	}
	for i, b := range data {
		if !m.sendByte(b) {
			m.t.Fatalf("data byte %d not acknowledged", i)
		}
	}
	m.stop()
}

func TestWriteTransactionStoresBytes(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	m.writeTo(0x50, 0x03, 0x7F)

	if got := regs.Load(0x03); got != 0x7F {
		t.Errorf("register 0x03 = %#02x, want 0x7f", got)
	}
}

func TestWriteAutoIncrement(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	m.writeTo(0x50, 0x10, 0xAA, 0xBB, 0xCC)

	want := []byte{0xAA, 0xBB, 0xCC}
	for i, w := range want {
		if got := regs.Load(0x10 + uint8(i)); got != w {
			t.Errorf("register %#02x = %#02x, want %#02x", 0x10+i, got, w)
		}
	}
}

func TestWriteAutoIncrementWraps(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	m.writeTo(0x50, 0xFE, 0x01, 0x02, 0x03)

	if got := regs.Load(0xFE); got != 0x01 {
		t.Errorf("register 0xfe = %#02x, want 0x01", got)
	}
	if got := regs.Load(0xFF); got != 0x02 {
		t.Errorf("register 0xff = %#02x, want 0x02", got)
	}
	if got := regs.Load(0x00); got != 0x03 {
		t.Errorf("register 0x00 = %#02x, want 0x03 (pointer wraps)", got)
	}
}

func TestAddressMismatchIgnored(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)
	regs.Store(0x03, 0x55)

	m.start()
	if m.sendByte(0x51 << 1) {
		t.Fatal("slave acknowledged a foreign address")
	}
	m.stop()

	if m.slave.Phase() != PhaseIdle {
		t.Errorf("phase = %v after mismatch, want idle", m.slave.Phase())
	}
	if got := regs.Load(0x03); got != 0x55 {
		t.Errorf("register 0x03 = %#02x, want 0x55 untouched", got)
	}
}

func TestReadTransaction(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)
	regs.Store(0x20, 0xDE)
	regs.Store(0x21, 0xAD)
	regs.Store(0x22, 0xBE)

	// Point at 0x20 with an empty write, then restart into a read.
	m.start()
	if !m.sendByte(0x50 << 1) {
		t.Fatal("address byte not acknowledged")
	}
	if !m.sendByte(0x20) {
		t.Fatal("register pointer byte not acknowledged")
	}
	m.start()
	if !m.sendByte(0x50<<1 | 1) {
		t.Fatal("read address byte not acknowledged")
	}

	if got := m.readByte(true); got != 0xDE {
		t.Errorf("first read byte = %#02x, want 0xde", got)
	}
	if got := m.readByte(true); got != 0xAD {
		t.Errorf("second read byte = %#02x, want 0xad", got)
	}
	if got := m.readByte(false); got != 0xBE {
		t.Errorf("third read byte = %#02x, want 0xbe", got)
	}

	if m.slave.Phase() != PhaseIdle {
		t.Errorf("phase = %v after terminating NACK, want idle", m.slave.Phase())
	}
}

func TestReadNackTerminatesImmediately(t *testing.T) {
	m, regs := newBusMaster(t, 0x42)
	regs.Store(0x00, 0x11)
	regs.Store(0x01, 0x22)

	m.start()
	if !m.sendByte(0x42<<1 | 1) {
		t.Fatal("read address byte not acknowledged")
	}
	if got := m.readByte(false); got != 0x11 {
		t.Errorf("read byte = %#02x, want 0x11", got)
	}
	if m.slave.Phase() != PhaseIdle {
		t.Fatalf("phase = %v after NACK, want idle", m.slave.Phase())
	}

	// The rejected transfer must not have advanced the pointer: a fresh
	// read starts over at register 0.
	m.start()
	if !m.sendByte(0x42<<1 | 1) {
		t.Fatal("second read address byte not acknowledged")
	}
	if got := m.readByte(false); got != 0x11 {
		t.Errorf("read after NACK restart = %#02x, want 0x11", got)
	}
}

func TestRepeatedStartDuringWrite(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	// Write one byte, then restart instead of stopping. The slave must
	// parse the next byte as a fresh address.
	m.start()
	if !m.sendByte(0x50 << 1) {
		t.Fatal("address byte not acknowledged")
	}
	if !m.sendByte(0x03) {
		t.Fatal("register pointer byte not acknowledged")
	}
	if !m.sendByte(0x7F) {
		t.Fatal("data byte not acknowledged")
	}

	m.start()
	if m.slave.Phase() != PhaseIdle {
		t.Fatalf("phase = %v after repeated start, want idle", m.slave.Phase())
	}
	if got := regs.Load(0x03); got != 0x7F {
		t.Errorf("register 0x03 = %#02x, want 0x7f", got)
	}

	// The pointer already advanced past the written byte when the
	// write was acknowledged, so a read after the restart continues at
	// the next register.
	regs.Store(0x04, 0x55)
	if !m.sendByte(0x50<<1 | 1) {
		t.Fatal("address byte after repeated start not acknowledged")
	}
	if got := m.readByte(false); got != 0x55 {
		t.Errorf("readback = %#02x, want register 0x04 contents", got)
	}
}

func TestRestartBeforeWriteAckBoundary(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	// Clock a full data byte but restart before the acknowledgment bit:
	// the slave is parked mid-acknowledgment and must still treat the
	// next byte as a fresh address.
	m.start()
	if !m.sendByte(0x50 << 1) {
		t.Fatal("address byte not acknowledged")
	}
	if !m.sendByte(0x03) {
		t.Fatal("register pointer byte not acknowledged")
	}
	for i := 7; i >= 0; i-- {
		m.clockBit(0x7F&(1<<uint(i)) != 0, true)
	}
	if m.slave.Phase() != PhasePostWriteAck {
		t.Fatalf("phase = %v before restart, want post-write-ack", m.slave.Phase())
	}

	m.start()
	if m.slave.Phase() != PhaseIdle {
		t.Fatalf("phase = %v after restart, want idle", m.slave.Phase())
	}
	if got := regs.Load(0x03); got != 0x7F {
		t.Errorf("register 0x03 = %#02x, want 0x7f", got)
	}

	// The abandoned acknowledgment never advanced the pointer, so a
	// read after the restart returns the byte just written.
	if !m.sendByte(0x50<<1 | 1) {
		t.Fatal("read address byte after restart not acknowledged")
	}
	if got := m.readByte(false); got != 0x7F {
		t.Errorf("readback = %#02x, want register 0x03 contents", got)
	}
}

func TestStopFlagEndsWriteSequence(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	// A stop condition can land before the acknowledgment boundary is
	// serviced; the post-write branch must then end the transaction.
	m.start()
	if !m.sendByte(0x50 << 1) {
		t.Fatal("address byte not acknowledged")
	}
	if !m.sendByte(0x08) {
		t.Fatal("register pointer byte not acknowledged")
	}
	for i := 7; i >= 0; i-- {
		m.clockBit(0x99&(1<<uint(i)) != 0, true)
	}
	m.sim.stopFlag = true
	m.clockBit(true, false) // acknowledgment boundary sees the stop flag

	if m.slave.Phase() != PhaseIdle {
		t.Errorf("phase = %v after flagged stop, want idle", m.slave.Phase())
	}
	if m.sim.armed {
		t.Error("bit-boundary source still armed after flagged stop")
	}
	if got := regs.Load(0x08); got != 0x99 {
		t.Errorf("register 0x08 = %#02x, want 0x99", got)
	}
}

func TestWriteThenReadScenario(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	m.writeTo(0x50, 0x03, 0x7F)
	regs.Store(0x04, 0x42)

	// Standard register read: point back at 0x03 with an empty write,
	// then restart into the read.
	m.start()
	if !m.sendByte(0x50 << 1) {
		t.Fatal("address byte not acknowledged")
	}
	if !m.sendByte(0x03) {
		t.Fatal("register pointer byte not acknowledged")
	}
	m.start()
	if !m.sendByte(0x50<<1 | 1) {
		t.Fatal("read address byte not acknowledged")
	}
	if got := m.readByte(true); got != 0x7F {
		t.Errorf("read byte = %#02x, want 0x7f stored by the write", got)
	}
	// After the ACK the slave has already loaded the next register.
	if got := m.readByte(false); got != 0x42 {
		t.Errorf("second read byte = %#02x, want register 0x04 contents", got)
	}
}

func TestBackToBackWriteTransactions(t *testing.T) {
	m, regs := newBusMaster(t, 0x50)

	m.writeTo(0x50, 0x00, 0x01)
	m.writeTo(0x50, 0x80, 0x02)

	if got := regs.Load(0x00); got != 0x01 {
		t.Errorf("register 0x00 = %#02x, want 0x01", got)
	}
	if got := regs.Load(0x80); got != 0x02 {
		t.Errorf("register 0x80 = %#02x, want 0x02", got)
	}
}

func TestActivateMasksAddressTo7Bits(t *testing.T) {
	m, regs := newBusMaster(t, 0xD0) // masked to 0x50

	m.writeTo(0x50, 0x01, 0x33)

	if got := regs.Load(0x01); got != 0x33 {
		t.Errorf("register 0x01 = %#02x, want 0x33", got)
	}
}
