//go:build attiny85

package main

import (
	"device/avr"
	"runtime/interrupt"

	"twislave/core"
)

// Bus address this device answers to.
const slaveAddress = 0x50

// Register map exposed to the bus master.
const (
	regVersion  = 0x00 // u8 firmware version
	regUptime   = 0x04 // u32 loop counter
	regScratch  = 0x10 // start of the master-writable scratch area
	firmwareRev = 0x01
)

var slave *core.Slave

func main() {
	driver := &USIBusDriver{}
	core.SetBusDriver(driver)

	regs := core.NewRegisterFile()
	slave = core.NewSlave(driver, regs)
	slave.Activate(slaveAddress)

	regs.WriteU8(firmwareRev, regVersion)

	// Wire the USI event sources to the state machine. AVR interrupt
	// handlers run with further interrupts masked, which gives the
	// handlers the run-to-completion guarantee they require.
	interrupt.New(avr.IRQ_USI_START, func(i interrupt.Interrupt) {
		slave.OnStartCondition()
	})
	interrupt.New(avr.IRQ_USI_OVF, func(i interrupt.Interrupt) {
		slave.OnBitBoundary()
	})
	avr.Asm("sei")

	// Foreground work: keep a free-running counter visible to the
	// master. Everything else happens in the interrupt handlers.
	var uptime uint32
	for {
		uptime++
		regs.WriteU32(uptime, regUptime)
	}
}
