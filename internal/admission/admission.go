// Package admission implements the scheduler's admission worker: it
// reads newly submitted executable paths off a named pipe, validates
// and dedups them, spawns the processes, and admits them into the
// process table and the priority-1 feedback queue.
package admission

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arkalon/mlfq/internal/constants"
	"github.com/arkalon/mlfq/internal/errs"
	"github.com/arkalon/mlfq/internal/interfaces"
	"github.com/arkalon/mlfq/internal/process"
	"github.com/arkalon/mlfq/internal/queue"
)

// Worker consumes the admission FIFO and admits new processes.
type Worker struct {
	pipePath string
	table    *process.Table
	queues   *queue.Set
	launcher interfaces.Launcher
	logger   interfaces.Logger
	observer interfaces.Observer

	mu     sync.Mutex
	fd     int
	fdOpen bool
	stop   chan struct{}
}

// New creates an admission worker that reads from pipePath, a named pipe
// this worker creates if it does not already exist.
func New(pipePath string, table *process.Table, queues *queue.Set, launcher interfaces.Launcher, logger interfaces.Logger, observer interfaces.Observer) *Worker {
	return &Worker{
		pipePath: pipePath,
		table:    table,
		queues:   queues,
		launcher: launcher,
		logger:   logger,
		observer: observer,
		fd:       -1,
		stop:     make(chan struct{}),
	}
}

// ensurePipe creates the admission FIFO at mode 0666 if it does not
// already exist, matching the interpreter's expectations for the other
// end of the pipe.
func ensurePipe(path string) error {
	if err := unix.Mkfifo(path, 0666); err != nil {
		if err == unix.EEXIST {
			return nil
		}
		return fmt.Errorf("admission: mkfifo %s: %w", path, err)
	}
	return nil
}

// Run opens the admission pipe and processes submissions until Stop is
// called. It blocks, so callers run it in its own goroutine.
func (w *Worker) Run() error {
	if err := ensurePipe(w.pipePath); err != nil {
		return err
	}

	buf := make([]byte, constants.BufSize)
	for {
		select {
		case <-w.stop:
			return nil
		default:
		}

		fd, err := unix.Open(w.pipePath, unix.O_RDONLY, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("admission: open %s: %w", w.pipePath, err)
		}
		w.mu.Lock()
		w.fd = fd
		w.fdOpen = true
		w.mu.Unlock()

		w.drain(fd, buf)

		unix.Close(fd)
		w.mu.Lock()
		w.fdOpen = false
		w.mu.Unlock()

		select {
		case <-w.stop:
			return nil
		case <-time.After(constants.AdmissionPollInterval):
		}
	}
}

// drain reads admission requests from fd until the writer side closes
// (EOF), which happens between interpreter invocations — the admission
// worker then reopens the pipe and waits for the next writer.
func (w *Worker) drain(fd int, buf []byte) {
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if w.logger != nil {
				w.logger.Warn("admission read error", "err", err)
			}
			return
		}
		if n == 0 {
			// Writer closed its end of the pipe.
			return
		}
		w.admit(buf[:n])
	}
}

// admit validates and processes one submitted path, extracted as the
// bytes up to the first NUL terminator, matching the interpreter's
// null-terminated write contract.
func (w *Worker) admit(msg []byte) {
	end := bytes.IndexByte(msg, 0)
	if end == -1 {
		end = len(msg)
	}
	path := string(msg[:end])

	if path == "" {
		return
	}
	if len(path) > constants.MaxPathLen {
		aerr := errs.NewError("ADMIT", errs.ErrCodePathTooLong, fmt.Sprintf("path too long: %d bytes (max %d)", len(path), constants.MaxPathLen))
		if w.logger != nil {
			w.logger.Warn("admission rejected", "err", aerr)
		}
		w.observeAdmission(false)
		return
	}

	if w.table.ContainsPath(path) {
		aerr := errs.NewError("ADMIT", errs.ErrCodeDuplicatePath, fmt.Sprintf("already admitted: %s", path))
		if w.logger != nil {
			w.logger.Info("admission skipped", "err", aerr)
		}
		w.observeAdmission(false)
		return
	}

	if w.table.Count() >= constants.MaxProcs {
		if w.logger != nil {
			w.logger.Warn("admission rejected", "path", path, "err", process.ErrTableFull)
		}
		w.observeAdmission(false)
		return
	}

	if _, err := os.Stat(path); err != nil {
		aerr := errs.NewError("ADMIT", errs.ErrCodeProgramNotFound, fmt.Sprintf("%s: %v", path, err))
		if w.logger != nil {
			w.logger.Warn("admission rejected", "err", aerr)
		}
		w.observeAdmission(false)
		return
	}

	pid, err := w.launcher.Spawn(path)
	if err != nil {
		aerr := errs.WrapError("ADMIT", err)
		if aerr.Code == errs.ErrCodeChannelIO {
			aerr.Code = errs.ErrCodeSpawnFailed
		}
		if w.logger != nil {
			w.logger.Error("admission spawn failed", "err", aerr)
		}
		w.observeAdmission(false)
		return
	}

	handle, err := w.table.Register(pid, path, queue.Q1)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("admission register failed", "err", err)
		}
		w.observeAdmission(false)
		return
	}

	if err := w.queues.Push(queue.Q1, handle); err != nil {
		aerr := errs.NewHandleError("ADMIT", handle, errs.ErrCodeChannelIO, err.Error())
		if w.logger != nil {
			w.logger.Error("admission enqueue failed", "err", aerr)
		}
		w.observeAdmission(false)
		return
	}

	if w.logger != nil {
		w.logger.Info("admitted process", "fid", handle, "pid", pid, "path", path)
	}
	w.observeAdmission(true)
}

func (w *Worker) observeAdmission(success bool) {
	if w.observer != nil {
		w.observer.ObserveAdmission(success)
	}
}

// Stop unblocks Run by closing the pipe descriptor it currently holds
// open (if any), signaling the stop channel so Run does not reopen the
// pipe afterward, and briefly opening the pipe for writing so that a Run
// blocked in open(2) waiting for a writer wakes, reads EOF, and returns.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.mu.Lock()
	if w.fdOpen {
		unix.Close(w.fd)
		w.fdOpen = false
	}
	w.mu.Unlock()
	if fd, err := unix.Open(w.pipePath, unix.O_WRONLY|unix.O_NONBLOCK, 0); err == nil {
		unix.Close(fd)
	}
}
