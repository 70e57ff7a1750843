package mlfq

import (
	"context"
	"fmt"
	"time"

	"github.com/arkalon/mlfq/internal/admission"
	"github.com/arkalon/mlfq/internal/constants"
	"github.com/arkalon/mlfq/internal/dispatch"
	"github.com/arkalon/mlfq/internal/interfaces"
	"github.com/arkalon/mlfq/internal/launcher"
	"github.com/arkalon/mlfq/internal/logging"
	"github.com/arkalon/mlfq/internal/process"
	"github.com/arkalon/mlfq/internal/queue"
)

// Config configures a Scheduler.
type Config struct {
	// PipePath is the filesystem path of the admission FIFO. Created if
	// it does not already exist.
	PipePath string

	// BaseQuantum is the unit time slice multiplied by a process's
	// priority number to compute its run-slice length.
	BaseQuantum time.Duration

	// Tick is the run-slice polling granularity.
	Tick time.Duration
}

// DefaultConfig returns a Config with the specification's defaults.
func DefaultConfig() Config {
	return Config{
		PipePath:    constants.DefaultPipePath,
		BaseQuantum: constants.BaseQuantum,
		Tick:        constants.TickGranularity,
	}
}

// Options contains optional collaborators for a Scheduler. Any left nil
// get sane defaults: a real process launcher, the default logger, and a
// metrics-backed observer.
type Options struct {
	// Context is not read by New or Start: cancellation comes from the
	// context passed to Start (context.Background() if that is nil).
	Context context.Context

	// Launcher spawns and signals worker processes. Defaults to
	// internal/launcher's real fork/exec implementation. Tests can
	// supply a MockLauncher instead.
	Launcher interfaces.Launcher

	// Logger for debug/info/warn/error messages. Defaults to
	// logging.Default().
	Logger interfaces.Logger

	// Observer receives scheduling events. Defaults to a
	// MetricsObserver wrapping the Scheduler's own Metrics.
	Observer Observer
}

// Scheduler is a supervised MLFQ process scheduler: an admission worker
// reads program paths off a named pipe and spawns them, and a dispatcher
// runs the resulting processes across three priority levels.
type Scheduler struct {
	cfg Config

	table  *process.Table
	queues *queue.Set

	admissionWorker *admission.Worker
	dispatcher      *dispatch.Dispatcher

	logger  interfaces.Logger
	metrics *Metrics

	cancel context.CancelFunc

	admissionDone chan error
}

// New creates a Scheduler without starting it. cfg may be the zero
// value, in which case DefaultConfig applies.
func New(cfg Config, options *Options) (*Scheduler, error) {
	if cfg.PipePath == "" {
		cfg.PipePath = constants.DefaultPipePath
	}
	if cfg.BaseQuantum <= 0 {
		cfg.BaseQuantum = constants.BaseQuantum
	}
	if cfg.Tick <= 0 {
		cfg.Tick = constants.TickGranularity
	}

	if options == nil {
		options = &Options{}
	}

	var l interfaces.Launcher = options.Launcher
	if l == nil {
		l = launcher.New()
	}

	var log interfaces.Logger = options.Logger
	if log == nil {
		log = logging.Default()
	}

	metrics := NewMetrics()
	var obs Observer = options.Observer
	if obs == nil {
		obs = NewMetricsObserver(metrics)
	}

	table := process.NewTable()
	queues := queue.NewSet()

	admissionWorker := admission.New(cfg.PipePath, table, queues, l, log, obs)
	dispatcher := dispatch.New(table, queues, l, log, obs, dispatch.Config{
		BaseQuantum: cfg.BaseQuantum,
		Tick:        cfg.Tick,
	})

	return &Scheduler{
		cfg:             cfg,
		table:           table,
		queues:          queues,
		admissionWorker: admissionWorker,
		dispatcher:      dispatcher,
		logger:          log,
		metrics:         metrics,
	}, nil
}

// Start begins serving admissions and dispatching processes. It returns
// once both subsystems are running; Stop (or context cancellation)
// shuts them down.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.dispatcher.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("mlfq: failed to start dispatcher: %w", err)
	}

	s.admissionDone = make(chan error, 1)
	go func() {
		s.admissionDone <- s.admissionWorker.Run()
	}()

	s.logger.Info("scheduler started", "pipe", s.cfg.PipePath)
	return nil
}

// Stop halts admission and dispatch, waiting for both to shut down.
func (s *Scheduler) Stop() {
	s.admissionWorker.Stop()
	s.dispatcher.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.metrics.Stop()
	if s.admissionDone != nil {
		<-s.admissionDone
	}
	s.logger.Info("scheduler stopped")
}

// Metrics returns the scheduler's metrics instance.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of scheduler metrics.
func (s *Scheduler) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// ProcessCount returns the number of processes currently tracked (both
// queued and running).
func (s *Scheduler) ProcessCount() int {
	return s.table.Count()
}

// QueueDepth returns the total number of processes waiting across all
// three priority queues.
func (s *Scheduler) QueueDepth() int {
	return s.queues.Depth()
}

// Dump returns a diagnostic snapshot of the process table and queues,
// suitable for logging or a debug endpoint.
func (s *Scheduler) Dump() string {
	return fmt.Sprintf("processes:\n%s\nqueues: %+v", s.table.String(), s.queues.Snapshot())
}
