//go:build attiny85

package main

import (
	"device/avr"

	"twislave/core"
)

// USIBusDriver implements core.BusDriver on the ATtiny85 USI peripheral
// in two-wire mode. The USI supplies exactly the contract the core
// needs: a start-condition detector, a 4-bit edge counter whose
// overflow marks bit boundaries, and an 8-bit shift register on the
// data line.
type USIBusDriver struct{}

// USI two-wire pins on the ATtiny85.
const (
	sdaPin = 1 << 0 // PB0
	sclPin = 1 << 2 // PB2
)

// ConfigureLines releases both lines to the external pull-ups.
func (d *USIBusDriver) ConfigureLines() {
	avr.PORTB.ClearBits(sdaPin | sclPin)
	avr.DDRB.ClearBits(sdaPin | sclPin)
}

// EnableStartEvent puts the USI in two-wire mode with the external
// clock source and enables the start-condition interrupt. The counter
// overflow interrupt stays off until a start condition arms it.
func (d *USIBusDriver) EnableStartEvent() {
	avr.USICR.Set(avr.USICR_USISIE | avr.USICR_USIWM1 | avr.USICR_USICS1)
	avr.USISR.Set(avr.USISR_USISIF | avr.USISR_USIOIF |
		avr.USISR_USIPF | avr.USISR_USIDC)
}

// HoldClock drives the clock line low. The port bit is kept at zero, so
// switching the pin to output is enough.
func (d *USIBusDriver) HoldClock() {
	avr.DDRB.SetBits(sclPin)
}

// ReleaseClock hands the clock line back to the master.
func (d *USIBusDriver) ReleaseClock() {
	avr.DDRB.ClearBits(sclPin)
}

// DriveDataLine takes the data line and presents the given level. The
// core only drives low, for acknowledgment bits.
func (d *USIBusDriver) DriveDataLine(level bool) {
	if level {
		avr.PORTB.SetBits(sdaPin)
	} else {
		avr.PORTB.ClearBits(sdaPin)
	}
	avr.DDRB.SetBits(sdaPin)
}

// ReleaseDataLine returns the data line to the pull-up.
func (d *USIBusDriver) ReleaseDataLine() {
	avr.PORTB.ClearBits(sdaPin)
	avr.DDRB.ClearBits(sdaPin)
}

// BeginTransmit routes the shift register to the data line output so
// the loaded byte clocks out on the following edges.
func (d *USIBusDriver) BeginTransmit() {
	avr.PORTB.SetBits(sdaPin)
	avr.DDRB.SetBits(sdaPin)
}

func (d *USIBusDriver) SampleDataLine() bool {
	return avr.PINB.HasBits(sdaPin)
}

func (d *USIBusDriver) SampleClockLine() bool {
	return avr.PINB.HasBits(sclPin)
}

// ArmBitBoundary enables the counter overflow interrupt and presets the
// 4-bit edge counter: zero for a full byte (16 edges), 14 for the
// single acknowledgment bit (2 edges).
func (d *USIBusDriver) ArmBitBoundary(bits uint8) {
	avr.USICR.SetBits(avr.USICR_USIOIE)
	if bits == 1 {
		avr.USISR.SetBits(avr.USISR_USICNT1 | avr.USISR_USICNT2 | avr.USISR_USICNT3)
	} else {
		d.RearmBitCounter()
	}
}

// RearmBitCounter zeroes the edge counter for a fresh byte. The flag
// bits clear on writing ones, so writing all zeros leaves the latched
// flags untouched.
func (d *USIBusDriver) RearmBitCounter() {
	avr.USISR.Set(0)
}

// DisarmBitBoundary turns the counter overflow interrupt off; start
// detection stays live.
func (d *USIBusDriver) DisarmBitBoundary() {
	avr.USICR.ClearBits(avr.USICR_USIOIE)
}

func (d *USIBusDriver) StopConditionFlagged() bool {
	return avr.USISR.HasBits(avr.USISR_USIPF)
}

func (d *USIBusDriver) ShiftBufferRead() byte {
	return avr.USIDR.Get()
}

func (d *USIBusDriver) ShiftBufferWrite(b byte) {
	avr.USIDR.Set(b)
}

// ClearEventFlags clears the latched start, overflow and stop flags by
// writing ones to them.
func (d *USIBusDriver) ClearEventFlags() {
	avr.USISR.SetBits(avr.USISR_USISIF | avr.USISR_USIOIF | avr.USISR_USIPF)
}

var _ core.BusDriver = (*USIBusDriver)(nil)
