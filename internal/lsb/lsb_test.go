package lsb

import (
	"testing"

	"github.com/maemo32/rv32ooo/internal/isa"
	"github.com/maemo32/rv32ooo/internal/regfile"
)

func TestIssue_Load_AddressComputation(t *testing.T) {
	l := New()
	regs := regfile.New()
	regs.Set(5, 0x1000)

	d := isa.Decoded{Op: isa.LW, Rs1: 5, Imm: 4}
	if ok := l.Issue(d, 0, regs); !ok {
		t.Fatal("Issue should succeed on an empty buffer")
	}

	slot, ok := l.PickExecutable()
	if !ok {
		t.Fatal("load with a known base address should be executable")
	}
	l.Tick(slot)
	if got := l.Entry(slot).Addr; got != 0x1004 {
		t.Fatalf("Addr = %#x, want 0x1004", got)
	}
}

func TestTick_ThreeCycleLatency(t *testing.T) {
	l := New()
	regs := regfile.New()
	regs.Set(5, 0x1000)
	l.Issue(isa.Decoded{Op: isa.LW, Rs1: 5, Imm: 0}, 0, regs)

	slot, _ := l.PickExecutable()
	if l.Tick(slot) {
		t.Fatal("cycle 1 of 3 should not finish")
	}
	if l.Tick(slot) {
		t.Fatal("cycle 2 of 3 should not finish")
	}
	if !l.Tick(slot) {
		t.Fatal("cycle 3 of 3 should finish")
	}
}

func TestLoad_WaitsForEarlierPendingStore(t *testing.T) {
	l := New()
	regs := regfile.New()
	regs.Set(5, 0x1000) // store's base
	regs.Set(6, 0xAB)   // store's value
	regs.Set(7, 0x1000) // load's base (same address, conservatively irrelevant)

	l.Issue(isa.Decoded{Op: isa.SB, Rs1: 5, Rs2: 6, Imm: 0}, 0, regs)
	l.Issue(isa.Decoded{Op: isa.LBU, Rs1: 7, Imm: 0}, 1, regs)

	slot, ok := l.PickExecutable()
	if !ok || slot != 0 {
		t.Fatalf("the earlier store should be the only executable entry, got slot=%d ok=%v", slot, ok)
	}
	// Finish the store's 3-cycle latency.
	l.Tick(0)
	l.Tick(0)
	l.Tick(0)
	l.MarkDone(0)

	// Done only means the store's latency has elapsed, not that it has
	// retired. It has not reached commit yet, so it must keep blocking.
	if _, ok := l.PickExecutable(); ok {
		t.Fatal("load must not execute while the earlier store is done but not yet retired")
	}

	// Only once the store actually retires (Remove, at commit) may the load
	// become executable.
	l.Remove(0)

	slot, ok = l.PickExecutable()
	if !ok || slot != 1 {
		t.Fatalf("load should become executable once the earlier store has retired, got slot=%d ok=%v", slot, ok)
	}
}

func TestBroadcast_ResolvesBaseAndStoreValue(t *testing.T) {
	l := New()
	regs := regfile.New()
	regs.SetRename(5, 9)
	regs.SetRename(6, 11)

	l.Issue(isa.Decoded{Op: isa.SW, Rs1: 5, Rs2: 6, Imm: 0}, 0, regs)

	if _, ok := l.PickExecutable(); ok {
		t.Fatal("store with unresolved operands should not be executable yet")
	}

	l.Broadcast(9, 0x2000)
	l.Broadcast(11, 0xDEADBEEF)

	slot, ok := l.PickExecutable()
	if !ok {
		t.Fatal("store should become executable once both operands resolve")
	}
	e := l.Entry(slot)
	if e.Base != 0x2000 || e.StoreVal != 0xDEADBEEF {
		t.Fatalf("Base/StoreVal = %#x/%#x, want 0x2000/0xDEADBEEF", e.Base, e.StoreVal)
	}
}

func TestRemove_FIFOOrder(t *testing.T) {
	l := New()
	regs := regfile.New()
	l.Issue(isa.Decoded{Op: isa.LW}, 5, regs)
	l.Issue(isa.Decoded{Op: isa.LW}, 6, regs)

	// Removing the non-head id must be a no-op; only the head can retire.
	l.Remove(6)
	head, ok := l.PeekHead()
	if !ok || head.RobID != 5 {
		t.Fatal("Remove of a non-head id should not disturb FIFO order")
	}

	l.Remove(5)
	head, ok = l.PeekHead()
	if !ok || head.RobID != 6 {
		t.Fatalf("after removing the head, new head should be robID 6")
	}
}
