// Package process implements the scheduler's process table: the registry
// of admitted programs, their OS pids, and their current feedback-queue
// priority.
package process

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arkalon/mlfq/internal/constants"
	"github.com/arkalon/mlfq/internal/errs"
)

// State is the coarse lifecycle state of a registered process. The
// dispatcher derives Running/Blocked from which queue (if any) currently
// holds the handle and from the event flags it tracks separately; State
// here only distinguishes the two states nothing else can reconstruct
// after the fact: never-yet-terminated versus terminated.
type State int

const (
	// Active covers Ready, Running, and Blocked-on-IO: the table does not
	// need to tell those apart, since the dispatcher and the queue set
	// already know which of the three applies to a given handle.
	Active State = iota
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "active"
}

// Record is one row of the process table, corresponding to spec's
// Process record: a dense handle, the OS pid, the current priority
// level, and the admitted program path.
type Record struct {
	Handle      int
	Pid         int
	Priority    int
	ProgramPath string
	State       State
}

// Table is the fixed-capacity process registry. It is the single writer
// for process metadata; the dispatcher and admission worker both read it
// concurrently, so every access takes the table's lock.
type Table struct {
	mu      sync.RWMutex
	records [constants.MaxProcs]Record
	used    [constants.MaxProcs]bool
	nextFid int
}

// NewTable creates an empty process table.
func NewTable() *Table {
	return &Table{}
}

// ErrTableFull is returned by Register when the table has reached
// constants.MaxProcs live entries. It is a single package-level value
// so callers can compare against it directly, per the disposition
// table's ErrCodeTableFull.
var ErrTableFull = errs.NewError("ADMIT", errs.ErrCodeTableFull, fmt.Sprintf("process table full (max %d)", constants.MaxProcs))

// Register admits a newly spawned process at the given priority,
// allocating the next dense handle. It never reuses a prior handle, even
// after the owning slot is freed by compaction, so a handle a caller is
// already holding never silently refers to a different process.
func (t *Table) Register(pid int, path string, priority int) (handle int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := -1
	for i := 0; i < constants.MaxProcs; i++ {
		if !t.used[i] {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, ErrTableFull
	}

	handle = t.nextFid
	t.nextFid++

	t.records[slot] = Record{
		Handle:      handle,
		Pid:         pid,
		Priority:    priority,
		ProgramPath: path,
		State:       Active,
	}
	t.used[slot] = true
	return handle, nil
}

func (t *Table) indexOfHandle(handle int) int {
	for i := 0; i < constants.MaxProcs; i++ {
		if t.used[i] && t.records[i].Handle == handle {
			return i
		}
	}
	return -1
}

// LookupByHandle returns the record for handle and whether it was found.
func (t *Table) LookupByHandle(handle int) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.indexOfHandle(handle)
	if i == -1 {
		return Record{}, false
	}
	return t.records[i], true
}

// LookupByPid returns the record whose OS pid matches pid. A linear scan
// is acceptable here: the table is bounded at constants.MaxProcs entries.
func (t *Table) LookupByPid(pid int) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 0; i < constants.MaxProcs; i++ {
		if t.used[i] && t.records[i].Pid == pid {
			return t.records[i], true
		}
	}
	return Record{}, false
}

// ContainsPath reports whether an active process was already admitted
// from the same program path, enforcing the admission worker's dedup
// invariant.
func (t *Table) ContainsPath(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 0; i < constants.MaxProcs; i++ {
		if t.used[i] && t.records[i].State == Active && t.records[i].ProgramPath == path {
			return true
		}
	}
	return false
}

// SetPriority updates the priority of the process identified by handle.
// Only the dispatcher calls this, after a run-slice completes.
func (t *Table) SetPriority(handle int, priority int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOfHandle(handle)
	if i == -1 {
		return false
	}
	t.records[i].Priority = priority
	return true
}

// MarkTerminated transitions handle to Terminated. The slot is freed for
// reuse by future Register calls, but the handle value itself is never
// reissued.
func (t *Table) MarkTerminated(handle int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOfHandle(handle)
	if i == -1 {
		return false
	}
	t.records[i].State = Terminated
	t.used[i] = false
	return true
}

// Count returns the number of currently active (non-terminated) entries.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := 0; i < constants.MaxProcs; i++ {
		if t.used[i] {
			n++
		}
	}
	return n
}

// String renders a human-readable dump of the table, used by the
// dispatcher's periodic diagnostic logging.
func (t *Table) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "process table (%d/%d):\n", t.activeLocked(), constants.MaxProcs)
	for i := 0; i < constants.MaxProcs; i++ {
		if !t.used[i] {
			continue
		}
		r := t.records[i]
		fmt.Fprintf(&b, "  fid=%d pid=%d priority=%d path=%s\n", r.Handle, r.Pid, r.Priority, r.ProgramPath)
	}
	return b.String()
}

func (t *Table) activeLocked() int {
	n := 0
	for i := 0; i < constants.MaxProcs; i++ {
		if t.used[i] {
			n++
		}
	}
	return n
}
