// Package launcher spawns and signals worker processes for the
// scheduler. It exists as its own package, rather than inline in
// dispatch/admission, so the fork/exec and signal-delivery syscalls have
// one obvious place to live and one place to swap out in tests.
package launcher

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func environ() []string {
	return os.Environ()
}

// Launcher spawns worker processes via fork+exec and signals them
// directly with unix.Kill, rather than going through os/exec.Cmd. A
// Cmd-managed child installs its own SIGCHLD bookkeeping inside the Go
// runtime; mixing that with this scheduler's own signalfd-driven
// SIGCHLD handling would race two reapers against the same pid. Owning
// fork, signal, and wait end to end avoids that entirely.
type Launcher struct{}

// New creates a real OS-process Launcher.
func New() *Launcher {
	return &Launcher{}
}

// Spawn forks and execs path with no arguments beyond argv[0], inheriting
// the scheduler's environment and standard file descriptors.
func (l *Launcher) Spawn(path string) (int, error) {
	argv := []string{path}
	var attr unix.ProcAttr
	attr.Files = []uintptr{0, 1, 2}
	attr.Env = environ()

	pid, err := unix.ForkExec(path, argv, &attr)
	if err != nil {
		return 0, fmt.Errorf("launcher: fork/exec %s: %w", path, err)
	}
	return pid, nil
}

// Resume delivers SIGUSR2 (the RESUME signal, per the worker contract)
// to pid.
func (l *Launcher) Resume(pid int) error {
	return l.signal(pid, unix.SIGUSR2)
}

// Suspend delivers SIGUSR1 (the SUSPEND signal) to pid.
func (l *Launcher) Suspend(pid int) error {
	return l.signal(pid, unix.SIGUSR1)
}

func (l *Launcher) signal(pid int, sig syscall.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		if err == unix.ESRCH {
			// Process already exited; CHILD_EXIT will retire it.
			return nil
		}
		return fmt.Errorf("launcher: signal %v to pid %d: %w", sig, pid, err)
	}
	return nil
}

// Reap blocks until pid exits and collects its exit status, so the host
// never leaves a zombie behind — unlike the original C scheduler, whose
// SIGCHLD handler set a flag but never called wait().
func (l *Launcher) Reap(pid int) error {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("launcher: wait4 pid %d: %w", pid, err)
		}
		return nil
	}
}
