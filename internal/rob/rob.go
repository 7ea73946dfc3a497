// Package rob implements the reorder buffer: a circular queue of in-flight
// instructions that commits strictly in program order and detects branch
// mispredictions at its head.
//
// Grounded on original_source/include/ROB.cpp (ROB_Entry/ROB_State, the
// head/tail/size circular layout, allocate/write_result/commit/flush), with
// the original's raw int/bool fields replaced by the isa/rob-specific tagged
// types the rest of this module uses.
package rob

import "github.com/maemo32/rv32ooo/internal/isa"

// Capacity is the fixed number of in-flight instructions the ROB can hold.
// The spec requires >= 16; this is comfortably above the minimum without
// the reference implementation's 1024-entry extravagance.
const Capacity = 64

// State is an entry's position in the ISSUE -> EXECUTE -> WRITE_RESULT ->
// COMMIT lifecycle. Entries progress monotonically; they never regress.
type State uint8

const (
	ISSUE State = iota
	EXECUTE
	WriteResult
	Commit
)

// Entry is one in-flight instruction tracked by the ROB.
type Entry struct {
	Busy        bool
	State       State
	Instruction uint32
	Destination uint8
	Value       uint32
	Op          isa.Op

	IsBranch       bool
	IsTaken        bool
	Target         uint32
	PredictedTaken bool
	PredictedPC    uint32
}

// ROB is the circular reorder buffer.
type ROB struct {
	entries [Capacity]Entry
	head    uint32
	tail    uint32
	size    uint32
}

// New returns an empty ROB.
func New() *ROB {
	return &ROB{}
}

// IsFull reports whether the ROB has no free entry.
func (r *ROB) IsFull() bool { return r.size == Capacity }

// IsEmpty reports whether the ROB holds no in-flight instruction.
func (r *ROB) IsEmpty() bool { return r.size == 0 }

// Size returns the number of busy entries.
func (r *ROB) Size() uint32 { return r.size }

// Allocate reserves the entry at tail for a newly issued instruction and
// returns its ROB id, or ok=false if the ROB is full.
func (r *ROB) Allocate(d isa.Decoded, dest uint8) (id uint32, ok bool) {
	if r.IsFull() {
		return 0, false
	}
	id = r.tail
	r.entries[id] = Entry{
		Busy:           true,
		State:          ISSUE,
		Instruction:    d.Raw,
		Destination:    dest,
		Op:             d.Op,
		IsBranch:       d.IsBranch,
		PredictedTaken: d.PredictedTaken,
		PredictedPC:    d.PredictedPC,
	}
	r.tail = (r.tail + 1) % Capacity
	r.size++
	return id, true
}

// Entry returns a pointer to the ROB entry at the given id, for read-only
// inspection by callers (e.g. the engine checking branch fields).
func (r *ROB) Entry(id uint32) *Entry {
	return &r.entries[id]
}

// WriteResult stores a produced value for a busy entry and advances it to
// WriteResult. For control-flow instructions the caller separately records
// the resolved taken bit via SetTaken and the resolved target via
// SetTarget; value is then the link word for JAL/JALR. Calling this
// on a non-busy entry is an invariant violation (InvalidROBAccess, spec
// §7) and panics, mirroring the original's thrown runtime_error.
func (r *ROB) WriteResult(id uint32, value uint32) {
	e := &r.entries[id]
	if !e.Busy {
		panic("rob: write_result on non-busy entry")
	}
	e.Value = value
	e.State = WriteResult
}

// SetTaken records the actual outcome of a branch once resolved.
func (r *ROB) SetTaken(id uint32, taken bool) {
	r.entries[id].IsTaken = taken
}

// SetTarget records the resolved taken-branch target, kept separate from
// Value because a control-flow instruction with its own destination
// register (JAL/JALR) needs both: Value is the link word written to rd,
// Target is the PC commit redirects to if the branch mispredicted taken.
func (r *ROB) SetTarget(id uint32, target uint32) {
	r.entries[id].Target = target
}

// CheckMispredict inspects the head entry only. If it is a branch in
// WriteResult whose actual outcome differs from its prediction, it returns
// the correct successor PC (the resolved target if taken, or the
// predicted fallthrough PC otherwise) and ok=true.
func (r *ROB) CheckMispredict() (correctPC uint32, mispredicted bool) {
	if r.IsEmpty() {
		return 0, false
	}
	e := &r.entries[r.head]
	if e.IsBranch && e.State == WriteResult && e.IsTaken != e.PredictedTaken {
		if e.IsTaken {
			return e.Target, true
		}
		return e.PredictedPC, true
	}
	return 0, false
}

// ReadyToCommit reports whether the head entry has reached WriteResult.
func (r *ROB) ReadyToCommit() bool {
	return !r.IsEmpty() && r.entries[r.head].State == WriteResult
}

// Commit retires the head entry (transitioning it to Commit and freeing
// its slot) and returns its id, value, and destination register. Calling
// this when ReadyToCommit is false panics.
func (r *ROB) Commit() (id uint32, value uint32, dest uint8) {
	if !r.ReadyToCommit() {
		panic("rob: commit with no ready instruction")
	}
	e := &r.entries[r.head]
	e.State = Commit
	e.Busy = false

	id, value, dest = r.head, e.Value, e.Destination
	r.head = (r.head + 1) % Capacity
	r.size--
	return id, value, dest
}

// BusyIDs returns the ids of every currently busy entry, in program
// (head-to-tail) order, for a caller that must act on all in-flight
// entries before they are discarded (e.g. clearing regfile renames ahead
// of Flush).
func (r *ROB) BusyIDs() []uint32 {
	ids := make([]uint32, 0, r.size)
	for i, n := uint32(0), r.size; i < n; i++ {
		ids = append(ids, (r.head+i)%Capacity)
	}
	return ids
}

// Flush discards all in-flight entries (used on misprediction recovery).
func (r *ROB) Flush() {
	for i := range r.entries {
		r.entries[i].Busy = false
	}
	r.head = r.tail
	r.size = 0
}
