// Package rs implements the unified reservation station: an unordered pool
// of pending ALU/branch/jump operations awaiting operands, generalized from
// the teacher's bitmap-based Tomasulo scheduler.
//
// SUPRAXCore's OutOfOrderScheduler (SupraX.go) tracks, per reservation
// station slot, an "occupied" bitmap, a "ready" bitmap, and two dependency
// bitmaps (src1WaitsFor/src2WaitsFor) indexed by the *producer's* tag so
// that a writeback is a single parallel bitmap OR into "ready" instead of a
// linear scan of every waiter. That scheme assumed physical-register tags
// equal to RS slot indices (SuperH has 64 physical registers, one per RS
// slot). Here the producer tag is a ROB id instead of a physical register,
// so the dependency bitmaps below are indexed by ROB id (sized to
// rob.Capacity) rather than by RS slot, but the shape — "broadcast is an OR
// of a producer-indexed bitmap into the ready bitmap" — is the same
// mechanism, just re-targeted at this module's actual tag space. This is
// also where original_source/include/ReservationStation.cpp's
// insert_inst/get_ready_entry/update_operand/remove map onto: Issue,
// PickReady, Broadcast and Remove below perform the same role.
package rs

import (
	"math/bits"

	"github.com/maemo32/rv32ooo/internal/isa"
	"github.com/maemo32/rv32ooo/internal/regfile"
	"github.com/maemo32/rv32ooo/internal/rob"
)

// Capacity is the fixed number of reservation station slots. The spec
// requires >= 8; the teacher's own prototype window (proto/ooo.go) bounds
// itself to 32 in-flight operations, which this module matches.
const Capacity = 32

// Entry is one pending ALU/branch/jump operation.
type Entry struct {
	Busy     bool
	RobID    uint32
	Op       isa.Op
	Vj, Vk   uint32
	Qj, Qk   uint32
	WaitJ    bool
	WaitK    bool
	Imm      int32
	PC       uint32
	Executed bool
}

// Ready reports whether the entry has both operands and has not yet been
// dispatched for execution.
func (e *Entry) Ready() bool {
	return e.Busy && !e.WaitJ && !e.WaitK && !e.Executed
}

// RS is the unified reservation station.
type RS struct {
	entries [Capacity]Entry

	occupied uint32 // bitmap: bit i set => entries[i].Busy
	ready    uint32 // bitmap: bit i set => entries[i].Ready()

	// waitsForJ[robID]/waitsForK[robID]: bitmap of RS slots whose Vj/Vk is
	// still pending that ROB id's result. Broadcasting a result is an OR of
	// the matching bitmap into `ready` (after the wait flags have been
	// cleared for the newly-satisfied operand), mirroring SUPRAX's
	// src1WaitsFor/src2WaitsFor fan-out.
	waitsForJ [rob.Capacity]uint32
	waitsForK [rob.Capacity]uint32
}

// New returns an empty reservation station.
func New() *RS {
	return &RS{}
}

// HasFreeEntry reports whether the RS can accept another operation.
func (s *RS) HasFreeEntry() bool {
	return s.occupied != ^uint32(0)
}

// Issue allocates a free RS slot for the decoded instruction already
// assigned ROB id robID, renaming its source operands through regfile: a
// pending source captures its producer's ROB id as a dependency; a ready
// source captures its current architectural value. Returns ok=false if the
// RS is full. pc is the instruction's own address, needed by AUIPC/branch
// target computation at execute time.
func (s *RS) Issue(d isa.Decoded, robID uint32, pc uint32, regs *regfile.RegisterFile) bool {
	if !s.HasFreeEntry() {
		return false
	}
	slot := uint32(bits.TrailingZeros32(^s.occupied))

	e := Entry{
		Busy:  true,
		RobID: robID,
		Op:    d.Op,
		Imm:   d.Imm,
		PC:    pc,
	}

	// Source 1 (rs1). The decoder fills Rs1 from bits[19:15] unconditionally,
	// but that field only denotes a real source register for R/I/B/S
	// formats; for LUI/JAL (U/J-type) those bits belong to the immediate, so
	// neither reads a register there. AUIPC (also U-type) instead takes the
	// instruction's own PC as its first operand.
	switch d.Op {
	case isa.AUIPC:
		e.Vj = pc
	case isa.LUI, isa.JAL:
		e.Vj = 0
	default:
		if regs.IsPending(d.Rs1) {
			e.Qj = regs.ReorderOf(d.Rs1)
			e.WaitJ = true
		} else {
			e.Vj = regs.Read(d.Rs1)
		}
	}

	// Source 2 (rs2) for R-type/branch ops, or the immediate for
	// immediate-form ops and LUI/AUIPC/JAL/JALR (always ready).
	switch d.Fmt {
	case isa.FmtR, isa.FmtB:
		if regs.IsPending(d.Rs2) {
			e.Qk = regs.ReorderOf(d.Rs2)
			e.WaitK = true
		} else {
			e.Vk = regs.Read(d.Rs2)
		}
	default:
		e.Vk = uint32(d.Imm)
	}

	s.entries[slot] = e
	s.occupied |= 1 << slot
	if e.WaitJ {
		s.waitsForJ[e.Qj] |= 1 << slot
	}
	if e.WaitK {
		s.waitsForK[e.Qk] |= 1 << slot
	}
	if !e.WaitJ && !e.WaitK {
		s.ready |= 1 << slot
	}
	return true
}

// PickReady returns the slot of one ready, not-yet-executed entry (the
// lowest-index such slot — a stable, documented scan order; the spec
// requires only that exactly one entry be dispatched per tick under some
// deterministic rule), or ok=false if none is ready.
func (s *RS) PickReady() (slot uint32, ok bool) {
	live := s.ready
	if live == 0 {
		return 0, false
	}
	slot = uint32(bits.TrailingZeros32(live))
	return slot, true
}

// Entry returns a pointer to the entry at slot for direct inspection/
// mutation by the engine's execute stage (e.g. marking Executed).
func (s *RS) Entry(slot uint32) *Entry {
	return &s.entries[slot]
}

// MarkExecuted removes slot from the ready bitmap once its execution has
// been dispatched this cycle, without freeing the slot (it stays occupied
// until Remove; the engine calls Remove right after dispatch, since the
// result travels on in the engine's write-back queue).
func (s *RS) MarkExecuted(slot uint32) {
	s.entries[slot].Executed = true
	s.ready &^= 1 << slot
}

// Broadcast publishes a completed (robID, value) pair: every entry waiting
// on robID for Vj or Vk captures value and clears its wait flag, becoming
// ready once all its operands have arrived.
func (s *RS) Broadcast(robID uint32, value uint32) {
	waitersJ := s.waitsForJ[robID]
	s.waitsForJ[robID] = 0
	for waitersJ != 0 {
		slot := uint32(bits.TrailingZeros32(waitersJ))
		waitersJ &^= 1 << slot
		e := &s.entries[slot]
		if !e.Busy || e.Qj != robID {
			continue
		}
		e.Vj = value
		e.WaitJ = false
		if e.Ready() {
			s.ready |= 1 << slot
		}
	}

	waitersK := s.waitsForK[robID]
	s.waitsForK[robID] = 0
	for waitersK != 0 {
		slot := uint32(bits.TrailingZeros32(waitersK))
		waitersK &^= 1 << slot
		e := &s.entries[slot]
		if !e.Busy || e.Qk != robID {
			continue
		}
		e.Vk = value
		e.WaitK = false
		if e.Ready() {
			s.ready |= 1 << slot
		}
	}
}

// Remove frees the slot holding robID, if any, making it available for a
// future Issue.
func (s *RS) Remove(robID uint32) {
	for i := range s.entries {
		if s.entries[i].Busy && s.entries[i].RobID == robID {
			s.entries[i] = Entry{}
			s.occupied &^= 1 << uint32(i)
			s.ready &^= 1 << uint32(i)
			return
		}
	}
}

// Flush discards all entries (used on misprediction recovery).
func (s *RS) Flush() {
	*s = RS{}
}
