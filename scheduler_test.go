package mlfq

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSchedulerAdmitsAndDispatches(t *testing.T) {
	dir := t.TempDir()
	pipePath := filepath.Join(dir, "admission.pipe")

	launcher := NewMockLauncher()
	cfg := Config{
		PipePath:    pipePath,
		BaseQuantum: 20 * time.Millisecond,
		Tick:        2 * time.Millisecond,
	}

	sched, err := New(cfg, &Options{Launcher: launcher})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	// Wait for the admission FIFO to exist before writing to it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(pipePath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for admission pipe to be created")
		}
		time.Sleep(5 * time.Millisecond)
	}

	programPath := filepath.Join(dir, "worker.exec")
	if err := os.WriteFile(programPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to create fake worker program: %v", err)
	}

	pipe, err := os.OpenFile(pipePath, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("failed to open admission pipe for writing: %v", err)
	}
	if _, err := pipe.Write(append([]byte(programPath), 0)); err != nil {
		t.Fatalf("failed to write to admission pipe: %v", err)
	}
	pipe.Close()

	deadline = time.Now().Add(2 * time.Second)
	for {
		if len(launcher.SpawnedPaths()) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for admission to spawn the program")
		}
		time.Sleep(5 * time.Millisecond)
	}

	paths := launcher.SpawnedPaths()
	if len(paths) != 1 || paths[0] != programPath {
		t.Fatalf("spawned paths = %v, want [%s]", paths, programPath)
	}

	// The mock launcher never actually reports IO or exit, so the
	// dispatcher should demote the process after its quantum expires.
	deadline = time.Now().Add(2 * time.Second)
	for {
		snap := sched.MetricsSnapshot()
		if snap.Demotions >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a demotion; snapshot=%+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PipePath == "" {
		t.Error("expected a non-empty default pipe path")
	}
	if cfg.BaseQuantum <= 0 {
		t.Error("expected a positive default base quantum")
	}
	if cfg.Tick <= 0 {
		t.Error("expected a positive default tick")
	}
}
