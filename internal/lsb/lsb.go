// Package lsb implements the load-store buffer: a FIFO-ordered pool of
// pending memory operations that computes effective addresses out of order
// but only retires loads once every prior store has committed, and only
// performs a store's actual memory write at commit time.
//
// Grounded on original_source/include/LSB.cpp (LSB_Op, LSB_Entry,
// insert_inst/insert/calculate_address/update_operand/get_ready_entry/
// execute, the fixed 3-cycle execution_cycle latency, and the sign/zero
// extension rules per load width) and on internal/rs's bitmap dependency
// scheme, reused here for the base-address operand.
package lsb

import (
	"math/bits"

	"github.com/maemo32/rv32ooo/internal/isa"
	"github.com/maemo32/rv32ooo/internal/regfile"
	"github.com/maemo32/rv32ooo/internal/rob"
)

// Capacity is the fixed number of in-flight load/store operations.
const Capacity = 16

// memoryLatency is the fixed number of cycles a load/store spends executing
// once its address and (for stores) its value operand are both known,
// mirroring LSB.cpp's execution_cycle reaching 3.
const memoryLatency = 3

// Entry is one pending load or store, in FIFO program order via its slot
// index modulo Capacity (the buffer is allocated and drained like a ring,
// same as the ROB, so program order among memory ops is exactly queue
// order between head and tail).
type Entry struct {
	Busy  bool
	RobID uint32
	Op    isa.Op

	Base    uint32 // rs1 value, once known
	BaseQ   uint32 // ROB id Base is pending on, while WaitBase is set
	WaitBase bool

	StoreVal  uint32 // rs2 value for stores, once known
	StoreValQ uint32 // ROB id StoreVal is pending on, while WaitStore is set
	WaitStore bool

	Imm     int32
	Addr    uint32
	AddrSet bool

	CyclesLeft int
	Done       bool
}

// LSB is the load-store buffer.
type LSB struct {
	entries [Capacity]Entry
	head    uint32
	tail    uint32
	size    uint32

	waitsForBase  [rob.Capacity]uint32
	waitsForStore [rob.Capacity]uint32
}

// New returns an empty load-store buffer.
func New() *LSB {
	return &LSB{}
}

// IsFull reports whether the buffer has no free slot.
func (l *LSB) IsFull() bool { return l.size == Capacity }

// Issue allocates the next buffer slot (at tail, preserving program order)
// for a load or store already assigned ROB id robID, renaming its base
// address register and, for stores, its value register. Returns ok=false if
// the buffer is full.
func (l *LSB) Issue(d isa.Decoded, robID uint32, regs *regfile.RegisterFile) bool {
	if l.IsFull() {
		return false
	}
	slot := l.tail

	e := Entry{
		Busy:  true,
		RobID: robID,
		Op:    d.Op,
		Imm:   d.Imm,
	}

	if regs.IsPending(d.Rs1) {
		e.BaseQ = regs.ReorderOf(d.Rs1)
		e.WaitBase = true
	} else {
		e.Base = regs.Read(d.Rs1)
	}

	if isStoreOp(d.Op) {
		if regs.IsPending(d.Rs2) {
			e.StoreValQ = regs.ReorderOf(d.Rs2)
			e.WaitStore = true
		} else {
			e.StoreVal = regs.Read(d.Rs2)
		}
	}

	l.entries[slot] = e
	l.tail = (l.tail + 1) % Capacity
	l.size++

	if e.WaitBase {
		l.waitsForBase[e.BaseQ] |= 1 << slot
	}
	if e.WaitStore {
		l.waitsForStore[e.StoreValQ] |= 1 << slot
	}
	return true
}

// Broadcast publishes a completed (robID, value) pair to every buffered
// entry waiting on it for its base address or store value.
func (l *LSB) Broadcast(robID uint32, value uint32) {
	waiters := l.waitsForBase[robID]
	l.waitsForBase[robID] = 0
	for waiters != 0 {
		slot := uint32(bits.TrailingZeros32(waiters))
		waiters &^= 1 << slot
		e := &l.entries[slot]
		if e.Busy && e.WaitBase && e.BaseQ == robID {
			e.Base = value
			e.WaitBase = false
		}
	}

	waiters = l.waitsForStore[robID]
	l.waitsForStore[robID] = 0
	for waiters != 0 {
		slot := uint32(bits.TrailingZeros32(waiters))
		waiters &^= 1 << slot
		e := &l.entries[slot]
		if e.Busy && e.WaitStore && e.StoreValQ == robID {
			e.StoreVal = value
			e.WaitStore = false
		}
	}
}

// programOrderBefore reports whether slot a was issued before slot b, given
// the buffer's current head (the oldest live slot).
func (l *LSB) programOrderBefore(a, b uint32) bool {
	distA := (a - l.head + Capacity) % Capacity
	distB := (b - l.head + Capacity) % Capacity
	return distA < distB
}

// anyEarlierStorePending reports whether any busy store entry earlier in
// program order than slot has not yet retired (i.e. has not yet been
// removed from the buffer at commit). Per the spec's conservative policy, a
// load may not begin executing until every earlier store has actually
// performed its memory write — Done only means the store's latency has
// elapsed, not that the write has happened (that happens at commit, via
// Remove), so a store must keep blocking past Done until it retires.
func (l *LSB) anyEarlierStorePending(slot uint32) bool {
	for i := range l.entries {
		e := &l.entries[i]
		if !e.Busy {
			continue
		}
		if uint32(i) == slot {
			continue
		}
		if !isStoreOp(e.Op) {
			continue
		}
		if l.programOrderBefore(uint32(i), slot) {
			return true
		}
	}
	return false
}

func isStoreOp(op isa.Op) bool {
	switch op {
	case isa.SB, isa.SH, isa.SW:
		return true
	default:
		return false
	}
}

// PickExecutable returns the slot of one entry eligible to begin or
// continue its memory access this cycle: its operands must be known, and if
// it is a load, every earlier store must already have retired. Entries
// already completed (Done) are excluded. Returns ok=false if none qualify.
func (l *LSB) PickExecutable() (slot uint32, ok bool) {
	for i := range l.entries {
		e := &l.entries[i]
		if !e.Busy || e.Done || e.WaitBase {
			continue
		}
		if isStoreOp(e.Op) {
			if e.WaitStore {
				continue
			}
		} else if l.anyEarlierStorePending(uint32(i)) {
			continue
		}
		return uint32(i), true
	}
	return 0, false
}

// Tick advances slot's memory access by one cycle, computing its effective
// address on first entry, and reports whether this was the access's final
// cycle (CyclesLeft having reached zero).
func (l *LSB) Tick(slot uint32) (finished bool) {
	e := &l.entries[slot]
	if !e.AddrSet {
		e.Addr = e.Base + uint32(e.Imm)
		e.AddrSet = true
		e.CyclesLeft = memoryLatency
	}
	e.CyclesLeft--
	return e.CyclesLeft <= 0
}

// Entry returns a pointer to the entry at slot, for the engine's execute
// stage to read Addr/Op/StoreVal once Tick reports completion.
func (l *LSB) Entry(slot uint32) *Entry {
	return &l.entries[slot]
}

// MarkDone flags slot as having completed its memory access (its result is
// now ready to broadcast / await commit), without freeing the slot.
func (l *LSB) MarkDone(slot uint32) {
	l.entries[slot].Done = true
}

// PeekHead returns the oldest buffered entry without removing it, so the
// committing caller can inspect a store's address/value before it is
// written to memory.
func (l *LSB) PeekHead() (*Entry, bool) {
	if l.size == 0 {
		return nil, false
	}
	return &l.entries[l.head], true
}

// IsStore reports whether op is one of SB/SH/SW.
func IsStore(op isa.Op) bool {
	return isStoreOp(op)
}

// Remove frees the head slot, which must hold robID (the buffer always
// retires in FIFO program order, matching ROB commit order).
func (l *LSB) Remove(robID uint32) {
	if l.size == 0 || l.entries[l.head].RobID != robID {
		return
	}
	l.entries[l.head] = Entry{}
	l.head = (l.head + 1) % Capacity
	l.size--
}

// Flush discards all buffered entries (used on misprediction recovery).
func (l *LSB) Flush() {
	*l = LSB{}
}
