package simulate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// DefaultInterval is the emission period when none is configured.
const DefaultInterval = 2 * time.Second

// Vehicle seeds one simulated vehicle.
type Vehicle struct {
	VehicleID string
	Plate     string
	CompanyID string
	Start     types.Position
}

// vehicleState carries the evolving motion of one simulated vehicle.
type vehicleState struct {
	meta      Vehicle
	position  types.Position
	stopTicks int
}

// Feed generates synthetic position updates: vehicles drift their heading,
// jitter their speed, and alternate between moving and stopped phases. It
// exposes the same subscribe/listener surface as the live position channel,
// so the rest of the system cannot tell it apart from a real feed.
type Feed struct {
	interval time.Duration
	rng      *rand.Rand

	mu           sync.Mutex
	vehicles     []*vehicleState
	subscribed   map[string]bool
	msgListeners map[int]func(types.PositionMessage)
	connectLs    map[int]func()
	disconnectLs map[int]func()
	nextID       int

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a feed over the given vehicles. interval <= 0 selects the
// default emission period.
func New(vehicles []Vehicle, interval time.Duration, seed int64) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	f := &Feed{
		interval:     interval,
		rng:          rand.New(rand.NewSource(seed)),
		subscribed:   make(map[string]bool),
		msgListeners: make(map[int]func(types.PositionMessage)),
		connectLs:    make(map[int]func()),
		disconnectLs: make(map[int]func()),
	}
	for _, v := range vehicles {
		state := &vehicleState{meta: v, position: v.Start}
		if state.position.Speed == 0 {
			state.position.Speed = 20 + f.rng.Float64()*40
		}
		f.vehicles = append(f.vehicles, state)
	}
	return f
}

// Start begins emitting updates and fires connect listeners.
func (f *Feed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.stopChan = make(chan struct{})
	stop := f.stopChan
	connectLs := make([]func(), 0, len(f.connectLs))
	for _, fn := range f.connectLs {
		connectLs = append(connectLs, fn)
	}
	f.mu.Unlock()

	for _, fn := range connectLs {
		fn()
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.Step()
			}
		}
	}()
}

// Stop halts emission and fires disconnect listeners.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopChan)
	disconnectLs := make([]func(), 0, len(f.disconnectLs))
	for _, fn := range f.disconnectLs {
		disconnectLs = append(disconnectLs, fn)
	}
	f.mu.Unlock()

	f.wg.Wait()
	for _, fn := range disconnectLs {
		fn()
	}
}

// Step advances every vehicle one tick and delivers updates for the
// subscribed ones. Exposed so tests and the simulator CLI can drive the
// feed without the ticker.
func (f *Feed) Step() {
	f.mu.Lock()
	var delivered []types.PositionMessage
	for _, v := range f.vehicles {
		msg := f.advance(v)
		if f.subscribed[v.meta.VehicleID] {
			delivered = append(delivered, msg)
		}
	}
	listeners := make([]func(types.PositionMessage), 0, len(f.msgListeners))
	for _, fn := range f.msgListeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, msg := range delivered {
		for _, fn := range listeners {
			fn(msg)
		}
	}
}

// advance mutates one vehicle's motion and returns its update. Caller
// holds the lock.
func (f *Feed) advance(v *vehicleState) types.PositionMessage {
	if v.stopTicks > 0 {
		v.stopTicks--
		v.position.Speed = 0
	} else if v.position.Speed == 0 {
		// Resume from a stop phase.
		v.position.Speed = 20 + f.rng.Float64()*40
	} else {
		// Heading drift and speed jitter.
		v.position.Heading = (v.position.Heading + f.rng.Intn(21) - 10 + 360) % 360
		v.position.Speed += f.rng.Float64()*10 - 5
		if v.position.Speed < 5 {
			v.position.Speed = 5
		}
		if v.position.Speed > 90 {
			v.position.Speed = 90
		}
		// Occasionally pull over for a few ticks.
		if f.rng.Float64() < 0.05 {
			v.stopTicks = 3 + f.rng.Intn(8)
			v.position.Speed = 0
		}
	}

	if v.position.Speed > 0 {
		distKM := v.position.Speed * f.interval.Hours()
		heading := float64(v.position.Heading) * math.Pi / 180
		v.position.Lat += (distKM / 110.574) * math.Cos(heading)
		v.position.Lng += (distKM / (111.320 * math.Cos(v.position.Lat*math.Pi/180))) * math.Sin(heading)
	}

	movement := types.MovementMoving
	if v.position.Speed == 0 {
		movement = types.MovementStopped
	}
	return types.PositionMessage{
		Type:             types.MessageTypePositionUpdate,
		VehicleID:        v.meta.VehicleID,
		Position:         v.position,
		MovementStatus:   movement,
		ConnectionStatus: types.ConnectionOnline,
		Timestamp:        time.Now().UTC(),
	}
}

// SubscribeVehicles adds vehicles to the delivery set
func (f *Feed) SubscribeVehicles(vehicleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range vehicleIDs {
		f.subscribed[id] = true
	}
	return nil
}

// UnsubscribeVehicles removes vehicles from the delivery set
func (f *Feed) UnsubscribeVehicles(vehicleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range vehicleIDs {
		delete(f.subscribed, id)
	}
	return nil
}

// OnMessage registers a position update listener
func (f *Feed) OnMessage(fn func(types.PositionMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.msgListeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.msgListeners, id)
	}
}

// OnConnect registers a listener fired when the feed starts
func (f *Feed) OnConnect(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.connectLs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.connectLs, id)
	}
}

// OnDisconnect registers a listener fired when the feed stops
func (f *Feed) OnDisconnect(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.disconnectLs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.disconnectLs, id)
	}
}

// ActiveVehicles returns the current state of every simulated vehicle,
// so the feed can also stand in for the vehicle snapshot backend.
func (f *Feed) ActiveVehicles(ctx context.Context, filter types.VehicleFilter) ([]types.TrackedVehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var vehicles []types.TrackedVehicle
	for _, v := range f.vehicles {
		if filter.CompanyID != "" && v.meta.CompanyID != filter.CompanyID {
			continue
		}
		movement := types.MovementMoving
		if v.position.Speed == 0 {
			movement = types.MovementStopped
		}
		vehicles = append(vehicles, types.TrackedVehicle{
			VehicleID:        v.meta.VehicleID,
			Plate:            v.meta.Plate,
			CompanyID:        v.meta.CompanyID,
			Position:         v.position,
			MovementStatus:   movement,
			ConnectionStatus: types.ConnectionOnline,
			LastUpdate:       time.Now().UTC(),
		})
	}
	return vehicles, nil
}

// DefaultFleet returns a small fleet seeded around central Sao Paulo.
func DefaultFleet(size int) []Vehicle {
	vehicles := make([]Vehicle, 0, size)
	for i := 0; i < size; i++ {
		vehicles = append(vehicles, Vehicle{
			VehicleID: fmt.Sprintf("sim-%03d", i+1),
			Plate:     fmt.Sprintf("SIM-%04d", 1000+i),
			CompanyID: "sim",
			Start: types.Position{
				Lat:     -23.5505 + float64(i)*0.01,
				Lng:     -46.6333 - float64(i)*0.01,
				Speed:   30,
				Heading: (i * 45) % 360,
			},
		})
	}
	return vehicles
}
