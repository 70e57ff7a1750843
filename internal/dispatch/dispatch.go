// Package dispatch implements the scheduler's dispatcher: the run-slice
// loop that resumes the highest-priority ready process, lets it run for
// its quantum, and reacts to the three events that can end a run-slice
// early — the process blocking on I/O, the process exiting, or the
// process simply exhausting its quantum.
package dispatch

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/arkalon/mlfq/internal/constants"
	"github.com/arkalon/mlfq/internal/interfaces"
	"github.com/arkalon/mlfq/internal/process"
	"github.com/arkalon/mlfq/internal/queue"
	"github.com/arkalon/mlfq/internal/sigfd"
)

// outcome is why a run-slice ended.
type outcome int

const (
	outcomeQuantumExhausted outcome = iota
	outcomeIOBegin
	outcomeChildExit
)

// Config configures a Dispatcher.
type Config struct {
	BaseQuantum time.Duration // unit quantum (UT); defaults to constants.BaseQuantum
	Tick        time.Duration // run-slice polling granularity; defaults to constants.TickGranularity
}

// Dispatcher runs the MLFQ dispatch loop against a shared process table
// and queue set. Exactly one Dispatcher owns a given Table/Set pair: the
// design relies on a single goroutine running the run-slice loop, with
// signal handling confined to flag toggles and one bounded queue append.
type Dispatcher struct {
	table    *process.Table
	queues   *queue.Set
	launcher interfaces.Launcher
	logger   interfaces.Logger
	observer interfaces.Observer

	baseQuantum time.Duration
	tick        time.Duration

	mu               sync.Mutex
	ioBeginPending   bool
	childExitPending bool
	currentPid       atomic.Int64

	sigusr1Ch chan os.Signal
	watcher   *sigfd.Watcher

	stop chan struct{}
	done chan struct{}
}

// New creates a Dispatcher. cfg may be the zero value, in which case
// defaults from internal/constants apply.
func New(table *process.Table, queues *queue.Set, launcher interfaces.Launcher, logger interfaces.Logger, observer interfaces.Observer, cfg Config) *Dispatcher {
	if cfg.BaseQuantum <= 0 {
		cfg.BaseQuantum = constants.BaseQuantum
	}
	if cfg.Tick <= 0 {
		cfg.Tick = constants.TickGranularity
	}
	return &Dispatcher{
		table:       table,
		queues:      queues,
		launcher:    launcher,
		logger:      logger,
		observer:    observer,
		baseQuantum: cfg.BaseQuantum,
		tick:        cfg.Tick,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start installs signal handling and begins the dispatch loop in a new
// goroutine. The returned error is non-nil only if signal plumbing
// failed to initialize (e.g. signalfd unsupported on this platform).
func (d *Dispatcher) Start(ctx context.Context) error {
	d.sigusr1Ch = make(chan os.Signal, 8)
	signal.Notify(d.sigusr1Ch, syscall.SIGUSR1)

	watcher, err := sigfd.NewWatcher(syscall.SIGUSR2, syscall.SIGCHLD)
	if err != nil {
		signal.Stop(d.sigusr1Ch)
		return err
	}
	d.watcher = watcher

	go d.eventLoop()
	go d.runLoop(ctx)
	return nil
}

// Stop halts the dispatch loop and releases signal resources. It blocks
// until the run loop has exited.
func (d *Dispatcher) Stop() {
	close(d.stop)
	if d.watcher != nil {
		d.watcher.Close()
	}
	signal.Stop(d.sigusr1Ch)
	<-d.done
}

// eventLoop is the scheduler-side half of the signal protocol (§4.D.sig):
// IO_BEGIN and CHILD_EXIT only ever pertain to whichever process is
// currently running, so the handler work here is just a flag toggle.
// IO_END can arrive for any previously blocked process, so its handler
// does the one bounded amount of extra work the design allows: looking
// up that process and appending its handle back onto the queue set.
func (d *Dispatcher) eventLoop() {
	for {
		select {
		case <-d.stop:
			return
		case _, ok := <-d.sigusr1Ch:
			if !ok {
				return
			}
			d.mu.Lock()
			d.ioBeginPending = true
			d.mu.Unlock()
			if d.observer != nil {
				d.observer.ObserveIOBegin()
			}
		case ev, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			switch ev.Signal {
			case syscall.SIGCHLD:
				if int64(ev.Pid) == d.currentPid.Load() {
					d.mu.Lock()
					d.childExitPending = true
					d.mu.Unlock()
				}
			case syscall.SIGUSR2:
				d.handleIOEnd(ev.Pid)
			}
		}
	}
}

// handleIOEnd moves a previously I/O-blocked process back onto the
// queue for its current (possibly already-promoted) priority.
func (d *Dispatcher) handleIOEnd(pid int) {
	rec, ok := d.table.LookupByPid(pid)
	if !ok {
		return
	}
	if d.observer != nil {
		d.observer.ObserveIOEnd()
	}
	if err := d.queues.Push(rec.Priority, rec.Handle); err != nil {
		if d.logger != nil {
			d.logger.Error("dispatch: failed to requeue after IO_END", "pid", pid, "err", err)
		}
	}
}

// runLoop is the main MLFQ run-slice loop.
func (d *Dispatcher) runLoop(ctx context.Context) {
	defer close(d.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	lastLog := time.Now()
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		handle, priority, ok := d.queues.PopHighest()
		if !ok {
			time.Sleep(d.tick)
			continue
		}

		rec, ok := d.table.LookupByHandle(handle)
		if !ok {
			continue
		}

		d.runSlice(rec, priority)

		if d.logger != nil && time.Since(lastLog) > time.Second {
			d.logger.Debug("dispatcher state", "queues", d.queues.Snapshot(), "table", d.table.String())
			lastLog = time.Now()
		}
		if d.observer != nil {
			d.observer.ObserveQueueDepth(d.queues.Depth())
		}
	}
}

// runSlice resumes one process, lets it run for priority*baseQuantum (or
// until it blocks on I/O or exits), and applies the half-quantum
// promotion rule or the demotion-on-exhaustion rule accordingly.
func (d *Dispatcher) runSlice(rec process.Record, priority int) {
	quantum := time.Duration(priority) * d.baseQuantum

	d.mu.Lock()
	d.ioBeginPending = false
	d.childExitPending = false
	d.mu.Unlock()
	d.currentPid.Store(int64(rec.Pid))

	if err := d.launcher.Resume(rec.Pid); err != nil && d.logger != nil {
		d.logger.Error("dispatch: resume failed", "pid", rec.Pid, "err", err)
	}

	start := time.Now()
	var result outcome
	var elapsed time.Duration
	for {
		time.Sleep(d.tick)
		elapsed = time.Since(start)

		d.mu.Lock()
		ioBegin := d.ioBeginPending
		childExit := d.childExitPending
		d.mu.Unlock()

		if childExit {
			result = outcomeChildExit
			break
		}
		if ioBegin {
			result = outcomeIOBegin
			break
		}
		if elapsed >= quantum {
			result = outcomeQuantumExhausted
			break
		}
	}
	d.currentPid.Store(0)

	switch result {
	case outcomeChildExit:
		d.retire(rec)
	case outcomeIOBegin:
		d.promote(rec, elapsed, quantum)
	case outcomeQuantumExhausted:
		d.demote(rec)
	}
}

// promote applies the half-quantum rule: a process that blocked on I/O
// with more than half a base quantum of its quantum still unused is
// rewarded with a lower (better) priority number, true-halved and
// floored at MinPriority.
func (d *Dispatcher) promote(rec process.Record, elapsed, quantum time.Duration) {
	promoted := false
	newPriority := rec.Priority
	if elapsed < quantum-d.baseQuantum/2 {
		newPriority = rec.Priority / 2
		if newPriority < constants.MinPriority {
			newPriority = constants.MinPriority
		}
		if newPriority != rec.Priority {
			promoted = true
		}
	}
	d.table.SetPriority(rec.Handle, newPriority)
	if d.observer != nil {
		if promoted {
			d.observer.ObserveRunSlice(rec.Priority, uint64(elapsed.Nanoseconds()), true)
		} else {
			// Blocked on I/O without enough unused quantum for the
			// half-quantum reward: not a demotion, so it must not be
			// counted as one.
			d.observer.ObserveRunSliceNeutral(rec.Priority, uint64(elapsed.Nanoseconds()))
		}
	}
	// The process is now blocked on real I/O; it re-enters a queue only
	// when its IO_END event arrives (see handleIOEnd), not here.
}

// demote doubles the priority number (worse priority), capped at
// MaxPriority, suspends the process, and returns it to the queue for
// its new priority.
func (d *Dispatcher) demote(rec process.Record) {
	if err := d.launcher.Suspend(rec.Pid); err != nil && d.logger != nil {
		d.logger.Error("dispatch: suspend failed", "pid", rec.Pid, "err", err)
	}

	newPriority := rec.Priority * 2
	if newPriority > constants.MaxPriority {
		newPriority = constants.MaxPriority
	}
	d.table.SetPriority(rec.Handle, newPriority)
	if d.observer != nil {
		d.observer.ObserveRunSlice(rec.Priority, uint64(time.Duration(rec.Priority)*d.baseQuantum), false)
	}
	if err := d.queues.Push(newPriority, rec.Handle); err != nil && d.logger != nil {
		d.logger.Error("dispatch: requeue after demotion failed", "pid", rec.Pid, "err", err)
	}
}

// retire reaps the exited child and marks it terminated. Unlike the
// original scheduler, which set a flag on SIGCHLD and never called
// wait(), this always reaps before releasing the handle.
func (d *Dispatcher) retire(rec process.Record) {
	if err := d.launcher.Reap(rec.Pid); err != nil && d.logger != nil {
		d.logger.Warn("dispatch: reap failed", "pid", rec.Pid, "err", err)
	}
	d.table.MarkTerminated(rec.Handle)
	if d.observer != nil {
		d.observer.ObserveRetirement()
	}
	if d.logger != nil {
		d.logger.Info("process retired", "fid", rec.Handle, "pid", rec.Pid, "path", rec.ProgramPath)
	}
}
