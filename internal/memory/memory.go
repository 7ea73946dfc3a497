// Package memory implements the simulator's byte-addressable store and the
// program counter it owns.
//
// Adapted from the teacher's SUPRAXCore.Memory (flat []uint64 word store) and
// from original_source/include/memory.cpp, which backs a 32-bit address space
// with a sparse uint32->uint8 map instead of a flat array — the right choice
// here since RV32I addresses are 32 bits wide and test programs only ever
// touch a handful of them.
package memory

// Memory is a sparse, byte-addressable, little-endian store plus the
// program counter. It has no alignment checks and no bounds errors: reads
// of untouched addresses return 0, per spec.
type Memory struct {
	bytes map[uint32]uint8
	pc    uint32
}

// New returns a zeroed Memory with PC at 0.
func New() *Memory {
	return &Memory{bytes: make(map[uint32]uint8)}
}

// ReadByte returns the byte at addr, or 0 if never written.
func (m *Memory) ReadByte(addr uint32) uint8 {
	return m.bytes[addr]
}

// WriteByte stores a single byte at addr.
func (m *Memory) WriteByte(addr uint32, v uint8) {
	m.bytes[addr] = v
}

// ReadHalfword composes two bytes at addr, little-endian.
func (m *Memory) ReadHalfword(addr uint32) uint16 {
	lo := uint16(m.ReadByte(addr))
	hi := uint16(m.ReadByte(addr + 1))
	return lo | hi<<8
}

// WriteHalfword decomposes v into two little-endian byte writes.
func (m *Memory) WriteHalfword(addr uint32, v uint16) {
	m.WriteByte(addr, uint8(v))
	m.WriteByte(addr+1, uint8(v>>8))
}

// ReadWord composes four bytes at addr, little-endian.
func (m *Memory) ReadWord(addr uint32) uint32 {
	b0 := uint32(m.ReadByte(addr))
	b1 := uint32(m.ReadByte(addr + 1))
	b2 := uint32(m.ReadByte(addr + 2))
	b3 := uint32(m.ReadByte(addr + 3))
	return b0 | b1<<8 | b2<<16 | b3<<24
}

// WriteWord decomposes v into four little-endian byte writes.
func (m *Memory) WriteWord(addr uint32, v uint32) {
	m.WriteByte(addr, uint8(v))
	m.WriteByte(addr+1, uint8(v>>8))
	m.WriteByte(addr+2, uint8(v>>16))
	m.WriteByte(addr+3, uint8(v>>24))
}

// GetPC returns the current program counter.
func (m *Memory) GetPC() uint32 {
	return m.pc
}

// SetPC overwrites the program counter.
func (m *Memory) SetPC(pc uint32) {
	m.pc = pc
}

// AdvancePCBy adds delta (signed, e.g. a branch offset) to PC.
func (m *Memory) AdvancePCBy(delta int32) {
	m.pc = uint32(int32(m.pc) + delta)
}

// StepPC advances PC by one instruction word (4 bytes).
func (m *Memory) StepPC() {
	m.pc += 4
}
