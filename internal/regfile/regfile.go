// Package regfile implements the 32 architectural registers plus the
// rename map (reorder[i] -> ROB id) that routes a reader to the producing
// ROB entry instead of a stale architectural value.
//
// Grounded on original_source/include/register.cpp (reg[]/reorder[] with
// reorder==-1 meaning "not renamed") and on proto/ooo/ooo.go's Scoreboard
// bitmap type, adapted here from "register has valid data" to "register is
// renamed" so the common is-pending check is an O(1) bit test instead of a
// sentinel comparison, while the ROB-id array remains the source of truth
// the spec's invariants are stated over.
package regfile

const numRegisters = 32

// RegisterFile holds the 32 architectural registers and their rename state.
// reg[0] always reads 0 and is never renamed, per spec.
type RegisterFile struct {
	reg     [numRegisters]uint32
	robID   [numRegisters]uint32 // valid only where renamed bit is set
	renamed uint32                // bitmap: bit i set => reg i is renamed
}

// New returns a RegisterFile with all registers zero and unrenamed.
func New() *RegisterFile {
	return &RegisterFile{}
}

// Read returns the architectural value of register i (0 for i==0).
func (r *RegisterFile) Read(i uint8) uint32 {
	if i == 0 {
		return 0
	}
	return r.reg[i]
}

// Set writes register i (no-op for i==0).
func (r *RegisterFile) Set(i uint8, v uint32) {
	if i == 0 {
		return
	}
	r.reg[i] = v
}

// SetRename marks register i as renamed to the given ROB id (no-op for
// i==0, which is never renamed).
func (r *RegisterFile) SetRename(i uint8, robID uint32) {
	if i == 0 {
		return
	}
	r.robID[i] = robID
	r.renamed |= 1 << i
}

// ClearRename removes register i's rename (no-op for i==0).
func (r *RegisterFile) ClearRename(i uint8) {
	if i == 0 {
		return
	}
	r.renamed &^= 1 << i
}

// IsPending reports whether register i is currently renamed (its next
// value has not yet committed).
func (r *RegisterFile) IsPending(i uint8) bool {
	if i == 0 {
		return false
	}
	return r.renamed&(1<<i) != 0
}

// ReorderOf returns the ROB id register i is renamed to. Only meaningful
// when IsPending(i) is true.
func (r *RegisterFile) ReorderOf(i uint8) uint32 {
	return r.robID[i]
}

// RenamedTo reports whether register i is currently renamed to exactly
// robID — used at commit to decide whether a later rename has already
// superseded this one before clearing it.
func (r *RegisterFile) RenamedTo(i uint8, robID uint32) bool {
	return i != 0 && r.IsPending(i) && r.robID[i] == robID
}
