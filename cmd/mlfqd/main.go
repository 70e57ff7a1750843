package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkalon/mlfq"
	"github.com/arkalon/mlfq/internal/logging"
)

func main() {
	var (
		pipePath = flag.String("pipe", mlfq.DefaultPipePath, "path of the admission named pipe")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := mlfq.DefaultConfig()
	cfg.PipePath = *pipePath

	sched, err := mlfq.New(cfg, &mlfq.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to construct scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	fmt.Printf("mlfqd running, pid %d, admission pipe %s\n", os.Getpid(), *pipePath)
	fmt.Printf("Press Ctrl+C to stop...\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	stopDone := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}

	snap := sched.MetricsSnapshot()
	logger.Info("final metrics",
		"admissions", snap.AdmissionOps,
		"admission_errors", snap.AdmissionErrors,
		"run_slices", snap.RunSlices,
		"retirements", snap.Retirements)

	os.Exit(0)
}
