//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"twislave/core"
)

// PIOBusDriver implements core.BusDriver on the RP2040, which has no
// USI-style slave peripheral. Two PIO state machines stand in for it:
//
//   - the sampler waits for each clock rising edge, samples the data
//     pin and pushes one word per bit into its RX FIFO;
//   - the shifter waits for each clock low phase and moves one bit from
//     its OSR onto the data pin direction (open drain: output = pulled
//     low, input = released high).
//
// Start/stop conditions are data-pin edge interrupts qualified by the
// clock level. The 8-bit shift buffer and the bit counter live in
// software, fed from the sampler FIFO by the Service loop; all state
// machine callbacks run from that single loop, so the core handlers
// keep their run-to-completion guarantee.
type PIOBusDriver struct {
	sda machine.Pin
	scl machine.Pin

	pio     *rp2pio.PIO
	sampler rp2pio.StateMachine
	shifter rp2pio.StateMachine

	shift byte

	armed     bool
	remaining uint8

	startFlag bool // set in pin IRQ, consumed by Service
	stopFlag  bool

	onStart func()
	onBit   func()
}

// buildSamplerProgram samples the data pin at every clock rising edge.
func buildSamplerProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Wait(0, rp2pio.WaitSrcPin, 1).Encode(), // 0: wait 0 pin 1 (SCL low)
		asm.Wait(1, rp2pio.WaitSrcPin, 1).Encode(), // 1: wait 1 pin 1 (SCL rising edge)
		asm.In(rp2pio.InSrcPins, 1).Encode(),       // 2: in pins, 1 (sample SDA)
		asm.Push(false, true).Encode(),             // 3: push block
		// .wrap
	}
}

// buildShifterProgram presents one OSR bit per clock low phase on the
// data pin direction. A set bit drives the line low.
func buildShifterProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Wait(0, rp2pio.WaitSrcPin, 1).Encode(), // 0: wait 0 pin 1 (SCL low)
		asm.Out(rp2pio.OutDestPindirs, 1).Encode(), // 1: out pindirs, 1
		asm.Wait(1, rp2pio.WaitSrcPin, 1).Encode(), // 2: wait 1 pin 1 (bit consumed)
		// .wrap
	}
}

const (
	samplerOrigin = 0
	shifterOrigin = 4
)

// NewPIOBusDriver builds a driver on PIO0 with the given pins. The
// clock pin must be the GPIO directly after the data pin; the PIO wait
// instructions address it by that fixed offset.
func NewPIOBusDriver(sda, scl machine.Pin) *PIOBusDriver {
	p := rp2pio.PIO0
	return &PIOBusDriver{
		sda:     sda,
		scl:     scl,
		pio:     p,
		sampler: p.StateMachine(0),
		shifter: p.StateMachine(1),
	}
}

// SetHandlers wires the start and bit-boundary callbacks. Must be set
// before the first Service call.
func (d *PIOBusDriver) SetHandlers(onStart, onBit func()) {
	d.onStart = onStart
	d.onBit = onBit
}

// ConfigureLines claims the state machines, loads both programs and
// releases the lines to the pull-ups.
func (d *PIOBusDriver) ConfigureLines() {
	d.sda.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	d.scl.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	d.sampler.TryClaim()
	d.shifter.TryClaim()

	samplerOffset, err := d.pio.AddProgram(buildSamplerProgram(), samplerOrigin)
	if err != nil {
		panic("twowire: sampler program load failed")
	}
	shifterOffset, err := d.pio.AddProgram(buildShifterProgram(), shifterOrigin)
	if err != nil {
		panic("twowire: shifter program load failed")
	}

	d.sda.Configure(machine.PinConfig{Mode: d.pio.PinMode()})
	d.scl.Configure(machine.PinConfig{Mode: d.pio.PinMode()})

	scfg := rp2pio.DefaultStateMachineConfig()
	scfg.SetInPins(d.sda) // in index 0 = SDA, wait index 1 = SCL
	scfg.SetInShift(false, false, 32)
	scfg.SetWrap(samplerOffset+3, samplerOffset)
	scfg.SetClkDivIntFrac(1, 0)
	d.sampler.Init(samplerOffset, scfg)

	tcfg := rp2pio.DefaultStateMachineConfig()
	tcfg.SetInPins(d.sda)
	tcfg.SetOutPins(d.sda, 1)
	tcfg.SetOutShift(false, true, 8) // shift left, autopull, one byte
	tcfg.SetWrap(shifterOffset+2, shifterOffset)
	tcfg.SetClkDivIntFrac(1, 0)
	d.shifter.Init(shifterOffset, tcfg)

	// Lines idle released; the pin value stays low so that switching a
	// direction to output always pulls the line down.
	d.sampler.SetPinsConsecutive(d.sda, 2, false)
	d.sampler.SetPindirsConsecutive(d.sda, 2, false)

	d.sampler.SetEnabled(true)
}

// EnableStartEvent arms the data-pin edge interrupt used for start and
// stop detection. The handler only records flags; Service dispatches.
func (d *PIOBusDriver) EnableStartEvent() {
	d.sda.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		if !d.scl.Get() {
			return // data edges while the clock is low are ordinary bits
		}
		if p.Get() {
			d.stopFlag = true
		} else {
			d.startFlag = true
		}
	})
}

// Service dispatches pending bus events. Call it continuously from the
// firmware main loop; both core handlers run here and nowhere else.
func (d *PIOBusDriver) Service() {
	if d.startFlag {
		d.startFlag = false
		d.onStart()
	}
	for !d.sampler.IsRxFIFOEmpty() {
		level := d.sampler.RxGet()&1 != 0
		var in byte
		if level {
			in = 1
		}
		d.shift = d.shift<<1 | in
		if d.armed {
			d.remaining--
			if d.remaining == 0 {
				d.onBit()
			}
		}
	}
}

func (d *PIOBusDriver) HoldClock() {
	d.sampler.SetPindirsConsecutive(d.scl, 1, true)
}

func (d *PIOBusDriver) ReleaseClock() {
	d.sampler.SetPindirsConsecutive(d.scl, 1, false)
}

func (d *PIOBusDriver) DriveDataLine(level bool) {
	d.sampler.SetPinsConsecutive(d.sda, 1, level)
	d.sampler.SetPindirsConsecutive(d.sda, 1, true)
}

func (d *PIOBusDriver) ReleaseDataLine() {
	d.shifter.SetEnabled(false)
	d.shifter.ClearFIFOs()
	d.shifter.Restart()
	d.sampler.SetPinsConsecutive(d.sda, 1, false)
	d.sampler.SetPindirsConsecutive(d.sda, 1, false)
}

// BeginTransmit hands the data pin to the shifter, loaded with the
// current shift buffer. Bits go out most-significant first; a set OSR
// bit means "release the line", so the byte is inverted.
func (d *PIOBusDriver) BeginTransmit() {
	d.shifter.ClearFIFOs()
	d.shifter.Restart()
	d.shifter.TxPut(uint32(^d.shift) << 24)
	d.sampler.SetPinsConsecutive(d.sda, 1, false)
	d.shifter.SetEnabled(true)
}

func (d *PIOBusDriver) SampleDataLine() bool {
	return d.sda.Get()
}

func (d *PIOBusDriver) SampleClockLine() bool {
	return d.scl.Get()
}

func (d *PIOBusDriver) ArmBitBoundary(bits uint8) {
	d.armed = true
	d.remaining = bits
}

func (d *PIOBusDriver) RearmBitCounter() {
	d.remaining = 8
}

func (d *PIOBusDriver) DisarmBitBoundary() {
	d.armed = false
}

func (d *PIOBusDriver) StopConditionFlagged() bool {
	return d.stopFlag
}

func (d *PIOBusDriver) ShiftBufferRead() byte {
	return d.shift
}

func (d *PIOBusDriver) ShiftBufferWrite(b byte) {
	d.shift = b
}

func (d *PIOBusDriver) ClearEventFlags() {
	d.stopFlag = false
	d.startFlag = false
}

var _ core.BusDriver = (*PIOBusDriver)(nil)
