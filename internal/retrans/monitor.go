package retrans

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// DefaultPollInterval is the auto-refresh period when none is configured.
const DefaultPollInterval = 30 * time.Second

// Fetcher supplies retransmission records and comment updates from the
// backend.
type Fetcher interface {
	RetransmissionRecords(ctx context.Context, filter types.LinkFilter) ([]types.RetransmissionRecord, error)
	UpdateLinkComment(ctx context.Context, id, comment string) (types.RetransmissionRecord, error)
}

// Monitor tracks GPS link health by polling, independently of the live
// position channel. Records are replaced wholesale on each poll and the
// aggregate statistics are always recomputed from the freshly loaded set.
// A failed poll keeps the last-known-good records and retains the error
// until the next successful poll clears it.
type Monitor struct {
	fetcher  Fetcher
	interval time.Duration

	mu      sync.Mutex
	filter  types.LinkFilter
	records []types.RetransmissionRecord
	stats   types.RetransmissionStats
	lastErr error
	gen     uint64
	paused  bool

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a retransmission monitor. interval <= 0 selects the default
// poll period.
func New(fetcher Fetcher, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		fetcher:  fetcher,
		interval: interval,
	}
}

// Start launches the auto-refresh ticker. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(stop)
}

// Stop cancels the auto-refresh ticker and waits for it to exit. No timer
// keeps firing after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) pollLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			paused := m.paused
			m.mu.Unlock()
			if paused {
				continue
			}
			// A failed poll is retained in LastError; the ticker simply
			// proceeds to the next scheduled tick.
			_ = m.Load(context.Background())
		}
	}
}

// Load fetches the records matching the current filter set and recomputes
// the aggregate statistics from the fresh set. If the filter changed while
// this load was in flight, the superseded response is discarded.
func (m *Monitor) Load(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	filter := m.filter
	m.mu.Unlock()

	records, err := m.fetcher.RetransmissionRecords(ctx, filter)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		// Superseded by a newer load; drop this response either way.
		return nil
	}
	if err != nil {
		m.lastErr = err
		return fmt.Errorf("failed to load retransmission records: %w", err)
	}

	m.records = records
	m.stats = ComputeStats(records)
	m.lastErr = nil
	return nil
}

// Refresh triggers an immediate manual reload.
func (m *Monitor) Refresh(ctx context.Context) error {
	return m.Load(ctx)
}

// SetFilter updates one filter key and triggers an immediate reload.
func (m *Monitor) SetFilter(ctx context.Context, key, value string) error {
	m.mu.Lock()
	switch key {
	case "company_id":
		m.filter.CompanyID = value
	case "connection_status":
		m.filter.ConnectionStatus = value
	case "search":
		m.filter.Search = value
	default:
		m.mu.Unlock()
		return fmt.Errorf("unknown filter key %q", key)
	}
	m.mu.Unlock()

	return m.Load(ctx)
}

// Filter returns the current filter set.
func (m *Monitor) Filter() types.LinkFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// PauseAutoRefresh suspends the periodic reload without tearing down the
// ticker.
func (m *Monitor) PauseAutoRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// ResumeAutoRefresh re-enables the periodic reload. The next fetch happens
// at the next scheduled tick, not immediately.
func (m *Monitor) ResumeAutoRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Paused reports whether auto-refresh is currently suspended.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Records returns a copy of the last loaded record set.
func (m *Monitor) Records() []types.RetransmissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.RetransmissionRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Stats returns the aggregate statistics of the last loaded record set.
func (m *Monitor) Stats() types.RetransmissionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// LastError returns the retained error of the most recent failed poll, or
// nil after a successful one.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// UpdateComment changes a link's comment. The local record is replaced by
// the server's authoritative value only after the call succeeds; on
// failure nothing changes and the error propagates.
func (m *Monitor) UpdateComment(ctx context.Context, id, comment string) (types.RetransmissionRecord, error) {
	updated, err := m.fetcher.UpdateLinkComment(ctx, id, comment)
	if err != nil {
		return types.RetransmissionRecord{}, fmt.Errorf("failed to update link comment: %w", err)
	}

	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID == updated.ID {
			m.records[i] = updated
			break
		}
	}
	m.mu.Unlock()
	return updated, nil
}

// ComputeStats derives aggregate link health from a record set.
// Percentages are rounded to one decimal place.
func ComputeStats(records []types.RetransmissionRecord) types.RetransmissionStats {
	stats := types.RetransmissionStats{Total: len(records)}
	for _, r := range records {
		switch r.ConnectionStatus {
		case types.ConnectionOnline:
			stats.Online++
		case types.ConnectionTempLoss:
			stats.TemporaryLoss++
		case types.ConnectionDisconnected:
			stats.Disconnected++
		}
	}
	if stats.Total > 0 {
		stats.OnlinePercent = percent(stats.Online, stats.Total)
		stats.TempLossPercent = percent(stats.TemporaryLoss, stats.Total)
		stats.DisconnectedPercent = percent(stats.Disconnected, stats.Total)
	}
	return stats
}

func percent(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*1000) / 10
}
