package core

// RegisterFile is the byte-addressable space a bus master sees: 256
// independent one-byte cells. The slave state machine accesses it one
// cell at a time at the current register pointer; application code uses
// the typed accessors below.
//
// Multi-byte values are stored most-significant byte first regardless of
// host byte order, so the byte sequence a master reads with an
// auto-incrementing pointer matches the wire convention. Index
// arithmetic is done in uint8, so a multi-byte access starting near 255
// wraps around to cell 0 rather than faulting.
type RegisterFile struct {
	cells [256]byte
}

// NewRegisterFile returns a zeroed register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Load returns the raw cell at index. Used by the state machine when
// transmitting a read byte.
func (r *RegisterFile) Load(index uint8) byte {
	return r.cells[index]
}

// Store sets the raw cell at index. Used by the state machine when a
// write byte arrives from the master.
func (r *RegisterFile) Store(index uint8, b byte) {
	r.cells[index] = b
}

// storeBE writes value's low n bytes starting at index, most-significant
// byte first. Interrupts are masked for the duration so a bus
// transaction cannot interleave with a half-written value; on plain Go
// the mask pair is a no-op.
func (r *RegisterFile) storeBE(index uint8, value uint32, n uint8) {
	state := disableInterrupts()
	for i := uint8(0); i < n; i++ {
		shift := 8 * (n - 1 - i)
		r.cells[index+i] = byte(value >> shift)
	}
	restoreInterrupts(state)
}

// loadBE reads n bytes starting at index as a most-significant-first
// value.
func (r *RegisterFile) loadBE(index uint8, n uint8) uint32 {
	state := disableInterrupts()
	var v uint32
	for i := uint8(0); i < n; i++ {
		v = v<<8 | uint32(r.cells[index+i])
	}
	restoreInterrupts(state)
	return v
}

// WriteU8 stores an unsigned 8-bit value at index.
func (r *RegisterFile) WriteU8(value uint8, index uint8) {
	r.cells[index] = value
}

// WriteS8 stores a signed 8-bit value at index.
func (r *RegisterFile) WriteS8(value int8, index uint8) {
	r.cells[index] = byte(value)
}

// WriteU16 stores an unsigned 16-bit value at index and index+1.
func (r *RegisterFile) WriteU16(value uint16, index uint8) {
	r.storeBE(index, uint32(value), 2)
}

// WriteS16 stores a signed 16-bit value at index and index+1.
func (r *RegisterFile) WriteS16(value int16, index uint8) {
	r.storeBE(index, uint32(uint16(value)), 2)
}

// WriteU32 stores an unsigned 32-bit value at index through index+3.
func (r *RegisterFile) WriteU32(value uint32, index uint8) {
	r.storeBE(index, value, 4)
}

// WriteS32 stores a signed 32-bit value at index through index+3.
func (r *RegisterFile) WriteS32(value int32, index uint8) {
	r.storeBE(index, uint32(value), 4)
}

// ReadU8 returns the unsigned 8-bit value at index.
func (r *RegisterFile) ReadU8(index uint8) uint8 {
	return r.cells[index]
}

// ReadS8 returns the signed 8-bit value at index.
func (r *RegisterFile) ReadS8(index uint8) int8 {
	return int8(r.cells[index])
}

// ReadU16 returns the unsigned 16-bit value stored at index and index+1.
func (r *RegisterFile) ReadU16(index uint8) uint16 {
	return uint16(r.loadBE(index, 2))
}

// ReadS16 returns the signed 16-bit value stored at index and index+1.
func (r *RegisterFile) ReadS16(index uint8) int16 {
	return int16(r.loadBE(index, 2))
}

// ReadU32 returns the unsigned 32-bit value stored at index through
// index+3.
func (r *RegisterFile) ReadU32(index uint8) uint32 {
	return r.loadBE(index, 4)
}

// ReadS32 returns the signed 32-bit value stored at index through
// index+3.
func (r *RegisterFile) ReadS32(index uint8) int32 {
	return int32(r.loadBE(index, 4))
}

// Snapshot copies n cells starting at index into dst and returns the
// number copied. Used by the monitor stream to frame register windows.
func (r *RegisterFile) Snapshot(dst []byte, index uint8) int {
	state := disableInterrupts()
	n := len(dst)
	if n > 256 {
		n = 256
	}
	for i := 0; i < n; i++ {
		dst[i] = r.cells[index+uint8(i)]
	}
	restoreInterrupts(state)
	return n
}
