package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

func TestStartCreatesDailyFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	want := filepath.Join(dir, logFileName(time.Now().UTC()))
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected log file %s: %v", want, err)
	}
}

func TestStartCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	s := New(dir)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected output directory to be created: %v", err)
	}
}

func TestWritePosition(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	messages := []*types.PositionMessage{
		{
			VehicleID:        "v-1",
			Position:         types.Position{Lat: -23.55, Lng: -46.63, Speed: 40, Heading: 90},
			MovementStatus:   types.MovementMoving,
			ConnectionStatus: types.ConnectionOnline,
			Timestamp:        time.Now().UTC(),
		},
		{
			VehicleID:        "v-2",
			MovementStatus:   types.MovementStopped,
			ConnectionStatus: types.ConnectionTempLoss,
			Timestamp:        time.Now().UTC(),
		},
	}
	for _, msg := range messages {
		if err := s.WritePosition(msg); err != nil {
			t.Fatalf("WritePosition() failed: %v", err)
		}
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, logFileName(time.Now().UTC())))
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()

	var decoded []types.PositionMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var msg types.PositionMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("Failed to decode line %q: %v", scanner.Text(), err)
		}
		decoded = append(decoded, msg)
	}

	if len(decoded) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(decoded))
	}
	if decoded[0].VehicleID != "v-1" || decoded[1].VehicleID != "v-2" {
		t.Errorf("Unexpected messages: %+v", decoded)
	}
}

func TestCompressFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes_2026-08-28.log")
	content := strings.Repeat(`{"vehicle_id":"v-1"}`+"\n", 10)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	if err := compressFile(path); err != nil {
		t.Fatalf("compressFile() failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected original file to be removed")
	}

	f, err := os.Open(path + ".gz")
	if err != nil {
		t.Fatalf("Failed to open compressed file: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to read compressed data: %v", err)
	}
	if string(data) != content {
		t.Error("Compressed content does not match original")
	}
}

func TestStopTwiceSafeAfterStart(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}
