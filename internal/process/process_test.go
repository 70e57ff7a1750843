package process

import (
	"testing"

	"github.com/arkalon/mlfq/internal/constants"
)

func TestRegisterAndLookup(t *testing.T) {
	tbl := NewTable()

	h1, err := tbl.Register(100, "/bin/worker1", 1)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	h2, err := tbl.Register(200, "/bin/worker2", 1)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct handles")
	}

	rec, ok := tbl.LookupByHandle(h1)
	if !ok || rec.Pid != 100 || rec.ProgramPath != "/bin/worker1" {
		t.Fatalf("LookupByHandle(%d) = %+v, %v", h1, rec, ok)
	}

	rec, ok = tbl.LookupByPid(200)
	if !ok || rec.Handle != h2 {
		t.Fatalf("LookupByPid(200) = %+v, %v", rec, ok)
	}
}

func TestContainsPathDedup(t *testing.T) {
	tbl := NewTable()
	if tbl.ContainsPath("/bin/a") {
		t.Fatal("empty table should not contain any path")
	}
	if _, err := tbl.Register(1, "/bin/a", 1); err != nil {
		t.Fatal(err)
	}
	if !tbl.ContainsPath("/bin/a") {
		t.Fatal("expected /bin/a to be registered")
	}
}

func TestMarkTerminatedFreesSlotButNotHandle(t *testing.T) {
	tbl := NewTable()
	h1, _ := tbl.Register(1, "/bin/a", 1)
	if !tbl.MarkTerminated(h1) {
		t.Fatal("MarkTerminated should succeed for a known handle")
	}
	if _, ok := tbl.LookupByHandle(h1); ok {
		t.Fatal("terminated handle should no longer be active")
	}

	h2, err := tbl.Register(2, "/bin/b", 1)
	if err != nil {
		t.Fatal(err)
	}
	if h2 == h1 {
		t.Fatal("handles must never be reused")
	}
}

func TestTableFull(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < constants.MaxProcs; i++ {
		if _, err := tbl.Register(i+1, "/bin/p", 1); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
	}
	if _, err := tbl.Register(999, "/bin/overflow", 1); err != ErrTableFull {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}
}

func TestSetPriority(t *testing.T) {
	tbl := NewTable()
	h, _ := tbl.Register(1, "/bin/a", 1)
	if !tbl.SetPriority(h, 2) {
		t.Fatal("SetPriority should succeed")
	}
	rec, _ := tbl.LookupByHandle(h)
	if rec.Priority != 2 {
		t.Fatalf("priority = %d, want 2", rec.Priority)
	}
}
