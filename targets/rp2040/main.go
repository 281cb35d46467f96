//go:build rp2040

package main

import (
	"machine"
	"time"

	"twislave/core"
	"twislave/monitor"
)

// Bus address this device answers to.
const slaveAddress = 0x50

// Register map exposed to the bus master.
const (
	regVersion  = 0x00 // u8 firmware version
	regUptime   = 0x04 // u32 seconds since boot
	regSensors  = 0x20 // sensor publisher window (see examples/drivers)
	regScratch  = 0x40 // master-writable scratch area
	firmwareRev = 0x01
)

// Monitor stream: the first 64 registers, once a second, on UART0.
const (
	monitorWindow = 64
	monitorPeriod = time.Second
)

func main() {
	driver := NewPIOBusDriver(machine.GP14, machine.GP15)
	core.SetBusDriver(driver)

	regs := core.NewRegisterFile()
	slave := core.NewSlave(driver, regs)
	driver.SetHandlers(slave.OnStartCondition, slave.OnBitBoundary)
	slave.Activate(slaveAddress)

	regs.WriteU8(firmwareRev, regVersion)

	uart := machine.UART0
	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)

	go publishLoop(regs, uart)

	// The bus is serviced from this loop and nowhere else, which keeps
	// the two core handlers non-reentrant without extra locking.
	for {
		driver.Service()
	}
}

// publishLoop maintains the foreground registers and streams monitor
// frames. Runs as a goroutine so it never delays bus servicing.
func publishLoop(regs *core.RegisterFile, uart *machine.UART) {
	window := make([]byte, monitorWindow)
	var uptime uint32

	for {
		time.Sleep(monitorPeriod)
		uptime++
		regs.WriteU32(uptime, regUptime)

		regs.Snapshot(window, 0)
		frame, err := monitor.Encode(0, window)
		if err != nil {
			continue
		}
		uart.Write(frame)
	}
}
