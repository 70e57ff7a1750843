package mlfq

import (
	"fmt"
	"sync"
)

// MockLauncher provides an in-memory implementation of the internal
// Launcher contract for testing code that admits and dispatches
// processes without actually forking and exec'ing real programs. It
// tracks every Spawn/Resume/Suspend/Reap call for assertions.
type MockLauncher struct {
	mu        sync.Mutex
	nextPid   int
	spawned   map[int]string // pid -> path
	resumed   []int
	suspended []int
	reaped    map[int]bool
	failSpawn map[string]bool
}

// NewMockLauncher creates a MockLauncher with pids starting at 1000.
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{
		nextPid:   1000,
		spawned:   make(map[int]string),
		reaped:    make(map[int]bool),
		failSpawn: make(map[string]bool),
	}
}

// FailSpawn makes future Spawn calls for path return an error, modeling
// an executable that exists but fails to launch.
func (m *MockLauncher) FailSpawn(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSpawn[path] = true
}

// Spawn implements interfaces.Launcher.
func (m *MockLauncher) Spawn(path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSpawn[path] {
		return 0, fmt.Errorf("mock launcher: configured to fail spawning %s", path)
	}
	m.nextPid++
	pid := m.nextPid
	m.spawned[pid] = path
	return pid, nil
}

// Resume implements interfaces.Launcher.
func (m *MockLauncher) Resume(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumed = append(m.resumed, pid)
	return nil
}

// Suspend implements interfaces.Launcher.
func (m *MockLauncher) Suspend(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = append(m.suspended, pid)
	return nil
}

// Reap implements interfaces.Launcher.
func (m *MockLauncher) Reap(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reaped[pid] = true
	return nil
}

// SpawnedPaths returns the set of paths Spawn was called with, in pid
// (i.e. call) order.
func (m *MockLauncher) SpawnedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.spawned))
	for pid := 1001; pid <= m.nextPid; pid++ {
		if p, ok := m.spawned[pid]; ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// ResumeCount returns how many times Resume was called for pid.
func (m *MockLauncher) ResumeCount(pid int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.resumed {
		if p == pid {
			n++
		}
	}
	return n
}

// SuspendCount returns how many times Suspend was called for pid.
func (m *MockLauncher) SuspendCount(pid int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.suspended {
		if p == pid {
			n++
		}
	}
	return n
}

// IsReaped reports whether Reap was called for pid.
func (m *MockLauncher) IsReaped(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reaped[pid]
}
