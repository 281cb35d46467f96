// Package monitor frames register-file snapshots for a debug UART.
//
// A slave device periodically streams windows of its register file to a
// host; the host resynchronizes on the trailing sync byte after line
// noise. Frame layout:
//
//	[len] [start] [payload ...] [crc16 hi] [crc16 lo] [0x7E]
//
// len counts the whole frame, start is the register index of the first
// payload byte, and the CRC covers everything before the trailer.
package monitor

import "errors"

const (
	FrameHeaderSize  = 2 // len + start index
	FrameTrailerSize = 3 // crc16 + sync
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 96
	FramePayloadMax  = FrameLengthMax - FrameHeaderSize - FrameTrailerSize
	FrameSyncByte    = 0x7E
)

var ErrPayloadTooLarge = errors.New("monitor: register window exceeds frame payload")

// Frame is one decoded register window.
type Frame struct {
	Start uint8  // register index of Regs[0]
	Regs  []byte // window contents, ascending indices
}

// Encode builds a dump frame for a register window. Returns
// ErrPayloadTooLarge if the window does not fit in one frame; split
// larger windows across frames.
func Encode(start uint8, regs []byte) ([]byte, error) {
	if len(regs) > FramePayloadMax {
		return nil, ErrPayloadTooLarge
	}

	n := FrameHeaderSize + len(regs) + FrameTrailerSize
	frame := make([]byte, 0, n)
	frame = append(frame, byte(n), start)
	frame = append(frame, regs...)

	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), FrameSyncByte)
	return frame, nil
}

// Decoder incrementally consumes a byte stream and yields frames. On a
// corrupt frame it drops bytes up to the next sync byte and carries on,
// mirroring the transport resync behavior the MCU side of this protocol
// family expects.
type Decoder struct {
	buf    []byte
	synced bool
}

// NewDecoder returns a decoder that assumes the stream starts at a
// frame boundary.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Feed appends raw bytes from the stream.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, or ok=false if more bytes are
// needed. The returned payload aliases the decoder's buffer only until
// the next Feed.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if !d.synced {
			if !d.resync() {
				return Frame{}, false
			}
		}

		// Skip stray sync bytes between frames.
		for len(d.buf) > 0 && d.buf[0] == FrameSyncByte {
			d.buf = d.buf[1:]
		}
		if len(d.buf) < FrameLengthMin {
			return Frame{}, false
		}

		n := int(d.buf[0])
		if n < FrameLengthMin || n > FrameLengthMax {
			d.synced = false
			continue
		}
		if len(d.buf) < n {
			return Frame{}, false
		}
		if d.buf[n-1] != FrameSyncByte {
			d.synced = false
			continue
		}

		wire := uint16(d.buf[n-3])<<8 | uint16(d.buf[n-2])
		if CRC16(d.buf[:n-FrameTrailerSize]) != wire {
			d.synced = false
			continue
		}

		f := Frame{Start: d.buf[1], Regs: d.buf[FrameHeaderSize : n-FrameTrailerSize]}
		d.buf = d.buf[n:]
		return f, true
	}
}

// resync discards bytes up to and including the next sync byte.
// Returns false if no sync byte is buffered yet.
func (d *Decoder) resync() bool {
	for i, b := range d.buf {
		if b == FrameSyncByte {
			d.buf = d.buf[i+1:]
			d.synced = true
			return true
		}
	}
	d.buf = nil
	return false
}
