package rob

import (
	"testing"

	"github.com/maemo32/rv32ooo/internal/isa"
)

func TestAllocate_CommitLifecycle(t *testing.T) {
	r := New()
	if r.IsFull() {
		t.Fatal("fresh ROB should not be full")
	}

	id, ok := r.Allocate(isa.Decoded{Op: isa.ADDI}, 5)
	if !ok {
		t.Fatal("Allocate should succeed on an empty ROB")
	}
	if r.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", r.Size())
	}
	if r.ReadyToCommit() {
		t.Fatal("entry should not be ready to commit before WriteResult")
	}

	r.WriteResult(id, 42)
	if !r.ReadyToCommit() {
		t.Fatal("entry should be ready to commit after WriteResult")
	}

	gotID, value, dest := r.Commit()
	if gotID != id || value != 42 || dest != 5 {
		t.Fatalf("Commit() = (%d,%d,%d), want (%d,42,5)", gotID, value, dest, id)
	}
	if !r.IsEmpty() {
		t.Fatal("ROB should be empty after committing its only entry")
	}
}

func TestAllocate_FullWhenAtCapacity(t *testing.T) {
	r := New()
	for i := uint32(0); i < Capacity; i++ {
		if _, ok := r.Allocate(isa.Decoded{}, 1); !ok {
			t.Fatalf("Allocate #%d should have succeeded below capacity", i)
		}
	}
	if !r.IsFull() {
		t.Fatal("ROB should report full at capacity")
	}
	if _, ok := r.Allocate(isa.Decoded{}, 1); ok {
		t.Fatal("Allocate should fail once the ROB is full")
	}
}

func TestWriteResult_PanicsOnNonBusyEntry(t *testing.T) {
	r := New()
	defer func() {
		if recover() == nil {
			t.Fatal("WriteResult on a non-busy entry should panic")
		}
	}()
	r.WriteResult(0, 1)
}

func TestCommit_PanicsWhenNotReady(t *testing.T) {
	r := New()
	r.Allocate(isa.Decoded{}, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("Commit with no ready head entry should panic")
		}
	}()
	r.Commit()
}

func TestCheckMispredict_TakenWhenNotPredicted(t *testing.T) {
	r := New()
	id, _ := r.Allocate(isa.Decoded{IsBranch: true, PredictedTaken: false, PredictedPC: 104}, 0)
	r.WriteResult(id, 0)
	r.SetTaken(id, true)
	r.SetTarget(id, 200)

	correctPC, mispredicted := r.CheckMispredict()
	if !mispredicted || correctPC != 200 {
		t.Fatalf("CheckMispredict() = (%d,%v), want (200,true)", correctPC, mispredicted)
	}
}

func TestCheckMispredict_NotTakenWhenPredictedTaken(t *testing.T) {
	r := New()
	id, _ := r.Allocate(isa.Decoded{IsBranch: true, PredictedTaken: true, PredictedPC: 104}, 0)
	r.WriteResult(id, 0)
	r.SetTaken(id, false)

	correctPC, mispredicted := r.CheckMispredict()
	if !mispredicted || correctPC != 104 {
		t.Fatalf("CheckMispredict() = (%d,%v), want (104,true)", correctPC, mispredicted)
	}
}

func TestCheckMispredict_CorrectPrediction(t *testing.T) {
	r := New()
	id, _ := r.Allocate(isa.Decoded{IsBranch: true, PredictedTaken: true, PredictedPC: 104}, 0)
	r.WriteResult(id, 0)
	r.SetTaken(id, true)
	r.SetTarget(id, 200)

	if _, mispredicted := r.CheckMispredict(); mispredicted {
		t.Fatal("a correctly predicted branch must not report a misprediction")
	}
}

func TestBusyIDs_ReturnsHeadToTailOrderBeforeFlush(t *testing.T) {
	r := New()
	var want []uint32
	for i := uint32(0); i < 4; i++ {
		id, _ := r.Allocate(isa.Decoded{}, 1)
		want = append(want, id)
	}
	got := r.BusyIDs()
	if len(got) != len(want) {
		t.Fatalf("BusyIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BusyIDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFlush_ClearsAllEntries(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		r.Allocate(isa.Decoded{}, 1)
	}
	r.Flush()
	if !r.IsEmpty() || r.Size() != 0 {
		t.Fatal("Flush should leave the ROB empty")
	}
	// head collapses to tail on flush, so the next allocation continues from
	// wherever tail was, not necessarily index 0.
	if _, ok := r.Allocate(isa.Decoded{}, 2); !ok {
		t.Fatal("Allocate should succeed immediately after Flush")
	}
	if r.Size() != 1 {
		t.Fatalf("Size() after one post-flush allocation = %d, want 1", r.Size())
	}
}
