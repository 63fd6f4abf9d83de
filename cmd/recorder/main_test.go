package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunRecorder_UnreachableChannel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROUTE_LOG_DIR", dir)
	t.Setenv("NATS_URL", "nats://127.0.0.1:1")

	err := runRecorder()
	if err == nil {
		t.Fatal("runRecorder() expected error with unreachable channel, got nil")
	}
	if !strings.Contains(err.Error(), "failed to connect position channel") {
		t.Errorf("runRecorder() error = %v, expected channel connect failure", err)
	}

	// Storage should have started before the connect attempt failed.
	logFile := filepath.Join(dir, "routes_"+time.Now().UTC().Format("2006-01-02")+".log")
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("Expected route log file %s to exist: %v", logFile, err)
	}
}

func TestRunRecorder_InvalidConfig(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "not-a-number")

	err := runRecorder()
	if err == nil {
		t.Fatal("runRecorder() expected error with invalid configuration, got nil")
	}
	if !strings.Contains(err.Error(), "failed to load configuration") {
		t.Errorf("runRecorder() error = %v, expected configuration failure", err)
	}
}
