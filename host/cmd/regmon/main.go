// Command regmon watches the register-file dump stream a twislave
// device emits on its monitor UART and renders each frame as a hex
// dump. Useful for checking what a bus master wrote without attaching
// a bus analyzer.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"twislave/host/serial"
	"twislave/monitor"
)

var (
	device = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud   = flag.Int("baud", 115200, "Baud rate of the monitor UART")
	count  = flag.Uint("count", 0, "Number of frames to print before exiting (0 = forever)")
	quiet  = flag.Bool("quiet", false, "Suppress the per-frame header line")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "regmon: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	if err := port.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "regmon: flush: %v\n", err)
	}

	dec := monitor.NewDecoder()
	buf := make([]byte, 256)
	var printed uint

	for {
		n, err := port.Read(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "regmon: read: %v\n", err)
			os.Exit(1)
		}
		if n == 0 {
			continue // read timeout, keep polling
		}
		dec.Feed(buf[:n])

		for {
			frame, ok := dec.Next()
			if !ok {
				break
			}
			if !*quiet {
				fmt.Printf("frame: %d registers at %#02x\n", len(frame.Regs), frame.Start)
			}
			dumpFrame(frame)
			printed++
			if *count > 0 && printed >= *count {
				return
			}
		}
	}
}

// dumpFrame prints a register window as 16-column rows with register
// indices in the left margin.
func dumpFrame(f monitor.Frame) {
	for row := 0; row < len(f.Regs); row += 16 {
		end := row + 16
		if end > len(f.Regs) {
			end = len(f.Regs)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%02x:", f.Start+uint8(row))
		for _, b := range f.Regs[row:end] {
			fmt.Fprintf(&sb, " %02x", b)
		}
		fmt.Println(sb.String())
	}
}
