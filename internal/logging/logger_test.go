package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	if logger.level != LevelInfo {
		t.Errorf("default level = %v, want LevelInfo", logger.level)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected warn message in output, got %q", buf.String())
	}
}

func TestLoggerArgFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("admitted process", "fid", 3, "path", "/bin/worker")
	output := buf.String()
	if !strings.Contains(output, "fid=3") {
		t.Errorf("expected fid=3 in output, got %q", output)
	}
	if !strings.Contains(output, "path=/bin/worker") {
		t.Errorf("expected path=/bin/worker in output, got %q", output)
	}
	if !strings.Contains(output, "[INFO]") {
		t.Errorf("expected [INFO] prefix in output, got %q", output)
	}
}

func TestLoggerPrintfVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Errorf("dispatch failed for pid=%d: %v", 42, "ESRCH")
	output := buf.String()
	if !strings.Contains(output, "dispatch failed for pid=42: ESRCH") {
		t.Errorf("expected formatted message, got %q", output)
	}
	if !strings.Contains(output, "[ERROR]") {
		t.Errorf("expected [ERROR] prefix, got %q", output)
	}
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Info("hello from default logger")
	if !strings.Contains(buf.String(), "hello from default logger") {
		t.Errorf("expected message via package-level Info, got %q", buf.String())
	}
}
