package fleet

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/stats"
	"github.com/mobitrack/fleet-monitor/internal/types"
)

// SnapshotFetcher supplies the current vehicle set from the backend.
type SnapshotFetcher interface {
	ActiveVehicles(ctx context.Context, filter types.VehicleFilter) ([]types.TrackedVehicle, error)
}

// PositionSource is the push channel surface the store consumes. Both the
// live NATS channel and the simulated feed satisfy it.
type PositionSource interface {
	SubscribeVehicles(ids []string) error
	UnsubscribeVehicles(ids []string) error
	OnMessage(fn func(types.PositionMessage)) func()
	OnConnect(fn func()) func()
	OnDisconnect(fn func()) func()
}

// Store is the single source of truth for where each tracked vehicle is
// right now. Vehicles enter through snapshot loads; position deltas merge
// into existing records and are dropped for unknown vehicles. Deltas apply
// in arrival order, last write wins.
type Store struct {
	fetcher SnapshotFetcher
	stats   *stats.Stats

	mu       sync.RWMutex
	vehicles map[string]*types.TrackedVehicle
	order    []string
	gen      uint64

	nextObserver int
	observers    map[int]func(string, types.TrackedVehicle)
}

// NewStore creates a vehicle state store backed by the given fetcher
func NewStore(fetcher SnapshotFetcher, st *stats.Stats) *Store {
	if st == nil {
		st = stats.New()
	}
	return &Store{
		fetcher:   fetcher,
		stats:     st,
		vehicles:  make(map[string]*types.TrackedVehicle),
		observers: make(map[int]func(string, types.TrackedVehicle)),
	}
}

// LoadSnapshot replaces the entire vehicle map with a freshly fetched
// list. If a newer load has been issued while this one was in flight, the
// stale response is discarded on arrival. On fetch failure the last-known
// state is kept and the error returned.
func (s *Store) LoadSnapshot(ctx context.Context, filter types.VehicleFilter) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	vehicles, err := s.fetcher.ActiveVehicles(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load vehicle snapshot: %w", err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.stats.IncrementStaleResponses()
		return nil
	}

	s.vehicles = make(map[string]*types.TrackedVehicle, len(vehicles))
	s.order = make([]string, 0, len(vehicles))
	for i := range vehicles {
		v := vehicles[i]
		if v.VehicleID == "" {
			continue
		}
		if _, exists := s.vehicles[v.VehicleID]; exists {
			continue
		}
		s.vehicles[v.VehicleID] = &v
		s.order = append(s.order, v.VehicleID)
	}
	count := len(s.vehicles)
	s.mu.Unlock()

	s.stats.IncrementSnapshotsLoaded()
	s.stats.SetActiveVehicles(uint64(count))
	return nil
}

// ApplyDelta merges a position update into the matching vehicle record and
// reports whether it was applied. Deltas for vehicles not present in the
// store are dropped: a vehicle must first appear via snapshot before its
// deltas are meaningful.
func (s *Store) ApplyDelta(msg types.PositionMessage) bool {
	s.mu.Lock()
	v, ok := s.vehicles[msg.VehicleID]
	if !ok {
		s.mu.Unlock()
		s.stats.IncrementDeltasDropped()
		return false
	}

	v.Position = msg.Position
	if types.ValidMovementStatus(msg.MovementStatus) {
		v.MovementStatus = msg.MovementStatus
	}
	if types.ValidConnectionStatus(msg.ConnectionStatus) {
		v.ConnectionStatus = msg.ConnectionStatus
	}
	if msg.Timestamp.IsZero() {
		v.LastUpdate = time.Now().UTC()
	} else {
		v.LastUpdate = msg.Timestamp
	}

	updated := *v
	observers := make([]func(string, types.TrackedVehicle), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	s.stats.IncrementDeltasApplied()
	for _, fn := range observers {
		fn(updated.VehicleID, updated)
	}
	return true
}

// Vehicle returns a copy of one tracked vehicle by identity.
func (s *Store) Vehicle(id string) (types.TrackedVehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return types.TrackedVehicle{}, false
	}
	return *v, true
}

// List returns a stable-ordered copy of all tracked vehicles. The live
// map is never exposed.
func (s *Store) List() []types.TrackedVehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.TrackedVehicle, 0, len(s.order))
	for _, id := range s.order {
		if v, ok := s.vehicles[id]; ok {
			out = append(out, *v)
		}
	}
	return out
}

// TrackedIDs returns the identities of all tracked vehicles in stable order.
func (s *Store) TrackedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Remove drops one vehicle from the store on explicit unsubscribe.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[id]; !ok {
		return false
	}
	delete(s.vehicles, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of tracked vehicles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}

// OnUpdate registers an observer invoked with a copy of the vehicle after
// every applied delta. Returns the observer's unsubscribe function.
func (s *Store) OnUpdate(fn func(vehicleID string, v types.TrackedVehicle)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// BindChannel wires the store to a position source: incoming messages are
// applied as deltas, and every tracked identity is re-subscribed whenever
// the source (re)connects, since the channel forgets its subscription set
// across disconnects. Returns an unbind function.
func (s *Store) BindChannel(src PositionSource) func() {
	offMessage := src.OnMessage(func(msg types.PositionMessage) {
		s.ApplyDelta(msg)
	})
	offConnect := src.OnConnect(func() {
		ids := s.TrackedIDs()
		if len(ids) == 0 {
			return
		}
		if err := src.SubscribeVehicles(ids); err != nil {
			// Keep last-known-good state; the next reconnect retries.
			log.Printf("Warning: failed to re-subscribe %d vehicles: %v", len(ids), err)
		}
	})
	return func() {
		offMessage()
		offConnect()
	}
}
