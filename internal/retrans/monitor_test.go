package retrans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records []types.RetransmissionRecord
	err     error
	calls   int
	filters []types.LinkFilter
	block   chan struct{}

	updateErr error
}

func (f *fakeFetcher) RetransmissionRecords(ctx context.Context, filter types.LinkFilter) ([]types.RetransmissionRecord, error) {
	f.mu.Lock()
	f.calls++
	f.filters = append(f.filters, filter)
	block := f.block
	records := make([]types.RetransmissionRecord, len(f.records))
	copy(records, f.records)
	err := f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return records, err
}

func (f *fakeFetcher) UpdateLinkComment(ctx context.Context, id, comment string) (types.RetransmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return types.RetransmissionRecord{}, f.updateErr
	}
	for _, r := range f.records {
		if r.ID == id {
			r.Comment = comment
			return r, nil
		}
	}
	return types.RetransmissionRecord{}, errors.New("not found")
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setRecords(records []types.RetransmissionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func sampleRecords() []types.RetransmissionRecord {
	return []types.RetransmissionRecord{
		{ID: "1", VehiclePlate: "ABC-1001", ConnectionStatus: types.ConnectionOnline},
		{ID: "2", VehiclePlate: "ABC-1002", ConnectionStatus: types.ConnectionOnline},
		{ID: "3", VehiclePlate: "ABC-1003", ConnectionStatus: types.ConnectionTempLoss},
		{ID: "4", VehiclePlate: "ABC-1004", ConnectionStatus: types.ConnectionDisconnected},
	}
}

func TestLoadReplacesRecordsAndRecomputesStats(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, time.Hour)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := len(m.Records()); got != 4 {
		t.Errorf("Expected 4 records, got %d", got)
	}

	stats := m.Stats()
	if stats.Total != 4 || stats.Online != 2 || stats.TemporaryLoss != 1 || stats.Disconnected != 1 {
		t.Errorf("Unexpected stats counts: %+v", stats)
	}
	if stats.OnlinePercent != 50.0 {
		t.Errorf("Expected 50.0 online percent, got %v", stats.OnlinePercent)
	}
	if stats.TempLossPercent != 25.0 {
		t.Errorf("Expected 25.0 temp loss percent, got %v", stats.TempLossPercent)
	}
}

func TestFailedLoadKeepsPreviousRecords(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, time.Hour)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fetcher.setErr(errors.New("connection refused"))
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("Expected error from failed load")
	}

	if got := len(m.Records()); got != 4 {
		t.Errorf("Failed load should keep previous records, got %d", got)
	}
	if m.LastError() == nil {
		t.Error("Expected LastError to be retained after failed load")
	}
}

func TestLastErrorClearedByNextSuccess(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("timeout")}
	m := New(fetcher, time.Hour)

	if err := m.Load(context.Background()); err == nil {
		t.Fatal("Expected error from failed load")
	}
	if m.LastError() == nil {
		t.Fatal("Expected retained error")
	}

	fetcher.setErr(nil)
	fetcher.setRecords(sampleRecords())
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.LastError() != nil {
		t.Errorf("Expected LastError cleared after success, got %v", m.LastError())
	}
}

func TestSetFilterReloadsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, time.Hour)

	if err := m.SetFilter(context.Background(), "connection_status", types.ConnectionOnline); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}

	if fetcher.callCount() != 1 {
		t.Errorf("Expected 1 fetch after SetFilter, got %d", fetcher.callCount())
	}

	fetcher.mu.Lock()
	last := fetcher.filters[len(fetcher.filters)-1]
	fetcher.mu.Unlock()
	if last.ConnectionStatus != types.ConnectionOnline {
		t.Errorf("Expected filter to carry connection status, got %+v", last)
	}
}

func TestSetFilterUnknownKey(t *testing.T) {
	fetcher := &fakeFetcher{}
	m := New(fetcher, time.Hour)

	if err := m.SetFilter(context.Background(), "bogus", "x"); err == nil {
		t.Fatal("Expected error for unknown filter key")
	}
	if fetcher.callCount() != 0 {
		t.Errorf("Unknown filter key should not trigger a fetch, got %d calls", fetcher.callCount())
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		records: []types.RetransmissionRecord{{ID: "old", ConnectionStatus: types.ConnectionOnline}},
		block:   block,
	}
	m := New(fetcher, time.Hour)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- m.Load(context.Background())
	}()

	// Wait for the slow load to be in flight.
	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Slow load never started")
		}
		time.Sleep(time.Millisecond)
	}

	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.records = []types.RetransmissionRecord{
		{ID: "new-1", ConnectionStatus: types.ConnectionDisconnected},
		{ID: "new-2", ConnectionStatus: types.ConnectionDisconnected},
	}
	fetcher.mu.Unlock()

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	close(block)
	if err := <-slowDone; err != nil {
		t.Fatalf("Slow load returned error: %v", err)
	}

	records := m.Records()
	if len(records) != 2 || records[0].ID != "new-1" {
		t.Errorf("Stale response should be discarded, got %+v", records)
	}
	if m.Stats().Disconnected != 2 {
		t.Errorf("Stats should reflect the newer load, got %+v", m.Stats())
	}
}

func TestAutoRefreshPolls(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, 10*time.Millisecond)

	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 2 polls, got %d", fetcher.callCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPauseGatesTicksWithoutStoppingTicker(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, 10*time.Millisecond)

	m.PauseAutoRefresh()
	m.Start()
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount(); got != 0 {
		t.Errorf("Paused monitor should not fetch, got %d calls", got)
	}

	m.ResumeAutoRefresh()
	if got := fetcher.callCount(); got != 0 {
		t.Errorf("Resume should not fetch immediately, got %d calls", got)
	}

	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected a poll after resume at the next tick")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStopCancelsTicker(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, 10*time.Millisecond)

	m.Start()
	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Monitor never polled")
		}
		time.Sleep(time.Millisecond)
	}
	m.Stop()

	after := fetcher.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount(); got != after {
		t.Errorf("Monitor polled after Stop: %d -> %d", after, got)
	}

	// Stopping twice is safe.
	m.Stop()
}

func TestUpdateCommentAppliesOnSuccessOnly(t *testing.T) {
	fetcher := &fakeFetcher{records: sampleRecords()}
	m := New(fetcher, time.Hour)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	updated, err := m.UpdateComment(context.Background(), "3", "antenna replaced")
	if err != nil {
		t.Fatalf("UpdateComment failed: %v", err)
	}
	if updated.Comment != "antenna replaced" {
		t.Errorf("Expected updated comment, got %q", updated.Comment)
	}

	var found bool
	for _, r := range m.Records() {
		if r.ID == "3" {
			found = true
			if r.Comment != "antenna replaced" {
				t.Errorf("Local record not updated, got %q", r.Comment)
			}
		}
	}
	if !found {
		t.Fatal("Record 3 missing")
	}

	fetcher.updateErr = errors.New("write failed")
	if _, err := m.UpdateComment(context.Background(), "3", "other"); err == nil {
		t.Fatal("Expected error from failed update")
	}
	for _, r := range m.Records() {
		if r.ID == "3" && r.Comment != "antenna replaced" {
			t.Errorf("Failed update should leave record unchanged, got %q", r.Comment)
		}
	}
}

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name    string
		records []types.RetransmissionRecord
		want    types.RetransmissionStats
	}{
		{
			name:    "empty",
			records: nil,
			want:    types.RetransmissionStats{},
		},
		{
			name: "all online",
			records: []types.RetransmissionRecord{
				{ConnectionStatus: types.ConnectionOnline},
				{ConnectionStatus: types.ConnectionOnline},
			},
			want: types.RetransmissionStats{Total: 2, Online: 2, OnlinePercent: 100.0},
		},
		{
			name: "rounding to one decimal",
			records: []types.RetransmissionRecord{
				{ConnectionStatus: types.ConnectionOnline},
				{ConnectionStatus: types.ConnectionTempLoss},
				{ConnectionStatus: types.ConnectionDisconnected},
			},
			want: types.RetransmissionStats{
				Total: 3, Online: 1, TemporaryLoss: 1, Disconnected: 1,
				OnlinePercent: 33.3, TempLossPercent: 33.3, DisconnectedPercent: 33.3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStats(tt.records)
			if got != tt.want {
				t.Errorf("ComputeStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
