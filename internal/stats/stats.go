package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats tracks monitoring pipeline counters
type Stats struct {
	// Delta processing
	DeltasApplied  uint64
	DeltasDropped  uint64
	DecodeFailures uint64

	// Snapshot loads
	SnapshotsLoaded uint64
	StaleResponses  uint64

	// Live tracking
	ActiveVehicles uint64

	startedAt time.Time
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		startedAt: time.Now(),
	}
}

// IncrementDeltasApplied increments the applied deltas counter
func (s *Stats) IncrementDeltasApplied() {
	atomic.AddUint64(&s.DeltasApplied, 1)
}

// IncrementDeltasDropped increments the dropped deltas counter
func (s *Stats) IncrementDeltasDropped() {
	atomic.AddUint64(&s.DeltasDropped, 1)
}

// IncrementDecodeFailures increments the decode failures counter
func (s *Stats) IncrementDecodeFailures() {
	atomic.AddUint64(&s.DecodeFailures, 1)
}

// IncrementSnapshotsLoaded increments the snapshots loaded counter
func (s *Stats) IncrementSnapshotsLoaded() {
	atomic.AddUint64(&s.SnapshotsLoaded, 1)
}

// IncrementStaleResponses increments the discarded stale responses counter
func (s *Stats) IncrementStaleResponses() {
	atomic.AddUint64(&s.StaleResponses, 1)
}

// SetActiveVehicles sets the number of currently tracked vehicles
func (s *Stats) SetActiveVehicles(count uint64) {
	atomic.StoreUint64(&s.ActiveVehicles, count)
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"deltas_applied":   atomic.LoadUint64(&s.DeltasApplied),
		"deltas_dropped":   atomic.LoadUint64(&s.DeltasDropped),
		"decode_failures":  atomic.LoadUint64(&s.DecodeFailures),
		"snapshots_loaded": atomic.LoadUint64(&s.SnapshotsLoaded),
		"stale_responses":  atomic.LoadUint64(&s.StaleResponses),
		"active_vehicles":  atomic.LoadUint64(&s.ActiveVehicles),
		"uptime_seconds":   uint64(time.Since(s.startedAt).Seconds()),
	}
}

// String returns a human-readable summary for periodic logging
func (s *Stats) String() string {
	return fmt.Sprintf(
		"deltas applied: %d, dropped: %d, decode failures: %d, snapshots: %d, stale responses: %d, active vehicles: %d, uptime: %s",
		atomic.LoadUint64(&s.DeltasApplied),
		atomic.LoadUint64(&s.DeltasDropped),
		atomic.LoadUint64(&s.DecodeFailures),
		atomic.LoadUint64(&s.SnapshotsLoaded),
		atomic.LoadUint64(&s.StaleResponses),
		atomic.LoadUint64(&s.ActiveVehicles),
		time.Since(s.startedAt).Round(time.Second),
	)
}
