package dispatch

import (
	"testing"
	"time"

	"github.com/arkalon/mlfq/internal/process"
	"github.com/arkalon/mlfq/internal/queue"
)

type fakeLauncher struct {
	resumed  []int
	suspended []int
	reaped   []int
}

func (f *fakeLauncher) Spawn(path string) (int, error) { return 0, nil }
func (f *fakeLauncher) Resume(pid int) error {
	f.resumed = append(f.resumed, pid)
	return nil
}
func (f *fakeLauncher) Suspend(pid int) error {
	f.suspended = append(f.suspended, pid)
	return nil
}
func (f *fakeLauncher) Reap(pid int) error {
	f.reaped = append(f.reaped, pid)
	return nil
}

func newTestDispatcher(l *fakeLauncher) (*Dispatcher, *process.Table, *queue.Set) {
	tbl := process.NewTable()
	qs := queue.NewSet()
	d := New(tbl, qs, l, nil, nil, Config{BaseQuantum: 100 * time.Millisecond, Tick: time.Millisecond})
	return d, tbl, qs
}

// fakeObserver records which Observer methods were invoked, for
// asserting that a given run-slice outcome was categorized correctly.
type fakeObserver struct {
	runSliceCalls int
	promotedCalls int
	neutralCalls  int
}

func (f *fakeObserver) ObserveAdmission(bool) {}
func (f *fakeObserver) ObserveRunSlice(priority int, durationNs uint64, promoted bool) {
	f.runSliceCalls++
	if promoted {
		f.promotedCalls++
	}
}
func (f *fakeObserver) ObserveRunSliceNeutral(priority int, durationNs uint64) {
	f.neutralCalls++
}
func (f *fakeObserver) ObserveIOBegin()         {}
func (f *fakeObserver) ObserveIOEnd()           {}
func (f *fakeObserver) ObserveRetirement()      {}
func (f *fakeObserver) ObserveQueueDepth(int)   {}

func TestPromoteHalvesPriorityOnEarlyBlock(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, _ := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 4)
	rec, _ := tbl.LookupByHandle(h)

	quantum := 400 * time.Millisecond // priority 4 * 100ms base
	d.promote(rec, 50*time.Millisecond, quantum)

	got, _ := tbl.LookupByHandle(h)
	if got.Priority != 2 {
		t.Fatalf("priority after early-block promote = %d, want 2", got.Priority)
	}
}

func TestPromoteNoOpWhenCloseToQuantum(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, _ := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 4)
	rec, _ := tbl.LookupByHandle(h)

	quantum := 400 * time.Millisecond
	// Elapsed is within BaseQuantum/2 of the full quantum: no promotion.
	d.promote(rec, 350*time.Millisecond, quantum)

	got, _ := tbl.LookupByHandle(h)
	if got.Priority != 4 {
		t.Fatalf("priority after late-block promote = %d, want unchanged 4", got.Priority)
	}
}

func TestPromoteFloorsAtMinPriority(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, _ := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 1)
	rec, _ := tbl.LookupByHandle(h)

	quantum := 100 * time.Millisecond
	d.promote(rec, 10*time.Millisecond, quantum)

	got, _ := tbl.LookupByHandle(h)
	if got.Priority != 1 {
		t.Fatalf("priority at floor = %d, want 1", got.Priority)
	}
}

func TestPromoteNoOpRecordsNeutralNotDemotion(t *testing.T) {
	l := &fakeLauncher{}
	tbl := process.NewTable()
	qs := queue.NewSet()
	obs := &fakeObserver{}
	d := New(tbl, qs, l, nil, obs, Config{BaseQuantum: 100 * time.Millisecond, Tick: time.Millisecond})

	h, _ := tbl.Register(42, "/bin/worker", 4)
	rec, _ := tbl.LookupByHandle(h)

	quantum := 400 * time.Millisecond
	d.promote(rec, 350*time.Millisecond, quantum)

	if obs.neutralCalls != 1 {
		t.Fatalf("neutralCalls = %d, want 1", obs.neutralCalls)
	}
	if obs.runSliceCalls != 0 {
		t.Fatalf("runSliceCalls = %d, want 0 (a non-promoted IO block must not be recorded as a demotion)", obs.runSliceCalls)
	}
}

func TestDemoteDoublesAndRequeues(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, qs := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 1)
	rec, _ := tbl.LookupByHandle(h)

	d.demote(rec)

	got, _ := tbl.LookupByHandle(h)
	if got.Priority != 2 {
		t.Fatalf("priority after demote = %d, want 2", got.Priority)
	}
	if len(l.suspended) != 1 || l.suspended[0] != 42 {
		t.Fatalf("expected SUSPEND sent to pid 42, got %+v", l.suspended)
	}
	gotHandle, gotPriority, ok := qs.PopHighest()
	if !ok || gotHandle != h || gotPriority != 2 {
		t.Fatalf("expected handle %d requeued at priority 2, got %d,%d,%v", h, gotHandle, gotPriority, ok)
	}
}

func TestDemoteCapsAtMaxPriority(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, _ := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 4)
	rec, _ := tbl.LookupByHandle(h)

	d.demote(rec)

	got, _ := tbl.LookupByHandle(h)
	if got.Priority != 4 {
		t.Fatalf("priority after demote at max = %d, want capped at 4", got.Priority)
	}
}

func TestRetireReapsAndMarksTerminated(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, _ := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 1)
	rec, _ := tbl.LookupByHandle(h)

	d.retire(rec)

	if len(l.reaped) != 1 || l.reaped[0] != 42 {
		t.Fatalf("expected pid 42 reaped, got %+v", l.reaped)
	}
	if _, ok := tbl.LookupByHandle(h); ok {
		t.Fatal("expected handle to be retired from the table")
	}
}

func TestHandleIOEndRequeuesByPid(t *testing.T) {
	l := &fakeLauncher{}
	d, tbl, qs := newTestDispatcher(l)
	h, _ := tbl.Register(42, "/bin/worker", 2)

	d.handleIOEnd(42)

	gotHandle, gotPriority, ok := qs.PopHighest()
	if !ok || gotHandle != h || gotPriority != 2 {
		t.Fatalf("expected handle %d requeued at priority 2 after IO_END, got %d,%d,%v", h, gotHandle, gotPriority, ok)
	}
}

func TestHandleIOEndUnknownPidIsNoop(t *testing.T) {
	l := &fakeLauncher{}
	d, _, qs := newTestDispatcher(l)
	d.handleIOEnd(99999)
	if !qs.IsEmpty() {
		t.Fatal("expected no queue activity for an unknown pid")
	}
}
