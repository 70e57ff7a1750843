//go:build linux

// Package sigfd gives the dispatcher access to the sender pid carried by
// a delivered signal (POSIX siginfo_t.si_pid), something Go's os/signal
// channel API never exposes. It does this with golang.org/x/sys/unix's
// signalfd(2) binding: the signals of interest are blocked on the
// calling thread, then read back as structured events from a file
// descriptor instead of an asynchronous handler.
package sigfd

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event is one signal delivery, with the pid that sent it.
type Event struct {
	Signal syscall.Signal
	Pid    int
}

// Watcher reads blocked signals off a signalfd.
type Watcher struct {
	fd     int
	events chan Event
	done   chan struct{}
}

func sigsetAdd(set *unix.Sigset_t, sig syscall.Signal) {
	i := uint(sig) - 1
	set.Val[i/64] |= 1 << (i % 64)
}

// NewWatcher blocks delivery of signals on the calling OS thread (via
// PthreadSigmask) and returns a Watcher that emits one Event per signal
// raised thereafter. Callers must arrange for PthreadSigmask's effect to
// propagate to every thread that must not receive these signals
// asynchronously — in practice this means calling NewWatcher very early
// in main, on a runtime.LockOSThread'd goroutine, before other OS
// threads are cloned, since Linux's clone(2) inherits the caller's
// signal mask.
func NewWatcher(signals ...syscall.Signal) (*Watcher, error) {
	var mask unix.Sigset_t
	for _, sig := range signals {
		sigsetAdd(&mask, sig)
	}

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, nil); err != nil {
		return nil, fmt.Errorf("sigfd: block signals: %w", err)
	}

	fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("sigfd: signalfd: %w", err)
	}

	w := &Watcher{
		fd:     fd,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.events)
	buf := make([]byte, unix.SizeofSignalfdSiginfo)
	for {
		n, err := unix.Read(w.fd, buf)
		select {
		case <-w.done:
			return
		default:
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n < unix.SizeofSignalfdSiginfo {
			continue
		}
		info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
		select {
		case w.events <- Event{Signal: syscall.Signal(info.Signo), Pid: int(info.Pid)}:
		case <-w.done:
			return
		}
	}
}

// Events returns the channel of signal-delivery events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and releases the signalfd.
func (w *Watcher) Close() error {
	close(w.done)
	return unix.Close(w.fd)
}
