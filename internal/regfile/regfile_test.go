package regfile

import "testing"

func TestRegisterZero_AlwaysReadsZero(t *testing.T) {
	r := New()
	r.Set(0, 123)
	r.SetRename(0, 7)
	if got := r.Read(0); got != 0 {
		t.Fatalf("Read(0) = %d, want 0", got)
	}
	if r.IsPending(0) {
		t.Fatal("register 0 must never be renamed")
	}
}

func TestReadWrite(t *testing.T) {
	r := New()
	r.Set(5, 42)
	if got := r.Read(5); got != 42 {
		t.Fatalf("Read(5) = %d, want 42", got)
	}
}

func TestRenameLifecycle(t *testing.T) {
	r := New()
	r.SetRename(5, 3)
	if !r.IsPending(5) {
		t.Fatal("register should be pending after SetRename")
	}
	if r.ReorderOf(5) != 3 {
		t.Fatalf("ReorderOf(5) = %d, want 3", r.ReorderOf(5))
	}
	if !r.RenamedTo(5, 3) {
		t.Fatal("RenamedTo(5,3) should be true")
	}
	if r.RenamedTo(5, 4) {
		t.Fatal("RenamedTo(5,4) should be false")
	}
	r.ClearRename(5)
	if r.IsPending(5) {
		t.Fatal("register should not be pending after ClearRename")
	}
}

func TestRenamedTo_SupersededByLaterRename(t *testing.T) {
	r := New()
	r.SetRename(5, 3)
	r.SetRename(5, 9) // a second instruction also targets x5 before the first commits
	if r.RenamedTo(5, 3) {
		t.Fatal("stale ROB id 3 must not still be considered the current rename")
	}
	if !r.RenamedTo(5, 9) {
		t.Fatal("register should now be renamed to the later ROB id 9")
	}
}
