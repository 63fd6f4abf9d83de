package playback

import (
	"math"
	"sync"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// State is the playback machine state
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Speeds lists the supported playback speed multipliers.
var Speeds = []int{1, 2, 4, 8, 16, 32}

// DefaultBaseInterval is the step interval at speed 1.
const DefaultBaseInterval = time.Second

// Engine replays an immutable, ordered point sequence at a controllable
// speed. It advances exactly one index per tick; the tick timer exists
// only while the engine is playing and is torn down on pause, stop and
// dispose. Reaching the final index stops the engine and fires the
// completion callback exactly once; playback never wraps around.
type Engine struct {
	mu           sync.Mutex
	points       []types.RoutePoint
	baseInterval time.Duration
	speed        int
	idx          int
	state        State
	stop         chan struct{}

	onPoint    func(index int, point types.RoutePoint)
	onComplete func()
	onState    func(State)
}

// NewEngine creates a playback engine over the given point sequence. A
// zero baseInterval falls back to DefaultBaseInterval.
func NewEngine(points []types.RoutePoint, baseInterval time.Duration) *Engine {
	if baseInterval <= 0 {
		baseInterval = DefaultBaseInterval
	}
	return &Engine{
		points:       points,
		baseInterval: baseInterval,
		speed:        1,
	}
}

// OnPoint sets the callback fired whenever the current point changes.
func (e *Engine) OnPoint(fn func(index int, point types.RoutePoint)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPoint = fn
}

// OnComplete sets the callback fired once when playback reaches the end.
func (e *Engine) OnComplete(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// OnStateChange sets the callback fired on every state transition.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onState = fn
}

// Play starts or resumes playback. From the final point playback restarts
// at index 0. No-op when the sequence is empty or already playing.
func (e *Engine) Play() {
	e.mu.Lock()
	if len(e.points) == 0 || e.state == Playing {
		e.mu.Unlock()
		return
	}
	if e.idx >= len(e.points)-1 {
		e.idx = 0
	}
	e.state = Playing
	stop := make(chan struct{})
	e.stop = stop
	onState := e.onState
	e.mu.Unlock()

	go e.run(stop)
	if onState != nil {
		onState(Playing)
	}
}

// Pause halts the step timer without resetting the index.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != Playing {
		e.mu.Unlock()
		return
	}
	e.state = Paused
	close(e.stop)
	e.stop = nil
	onState := e.onState
	e.mu.Unlock()

	if onState != nil {
		onState(Paused)
	}
}

// Stop halts playback from any state and resets the index to 0.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasStopped := e.state == Stopped
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.state = Stopped
	e.idx = 0
	onState := e.onState
	e.mu.Unlock()

	if !wasStopped && onState != nil {
		onState(Stopped)
	}
}

// Reset is Stop under the name the scrubber UI uses; the engine need not
// have been playing.
func (e *Engine) Reset() {
	e.Stop()
}

// Dispose tears down the engine's timer. The engine must not be reused.
func (e *Engine) Dispose() {
	e.Stop()
}

// SeekTo jumps to the given index, clamped to the sequence bounds. The
// point callback fires even when playback is inactive, because the engine
// doubles as a scrubber.
func (e *Engine) SeekTo(index int) {
	e.mu.Lock()
	if len(e.points) == 0 {
		e.mu.Unlock()
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(e.points)-1 {
		index = len(e.points) - 1
	}
	e.idx = index
	point := e.points[index]
	onPoint := e.onPoint
	e.mu.Unlock()

	if onPoint != nil {
		onPoint(index, point)
	}
}

// SeekToProgress jumps to the index matching a progress percentage.
func (e *Engine) SeekToProgress(percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	e.mu.Lock()
	n := len(e.points)
	e.mu.Unlock()
	if n == 0 {
		return
	}
	e.SeekTo(int(math.Floor(percent / 100 * float64(n-1))))
}

// SetSpeed selects one of the supported multipliers and reports whether
// it was accepted. A new speed takes effect on the next scheduled tick.
func (e *Engine) SetSpeed(multiplier int) bool {
	supported := false
	for _, s := range Speeds {
		if s == multiplier {
			supported = true
			break
		}
	}
	if !supported {
		return false
	}

	e.mu.Lock()
	e.speed = multiplier
	e.mu.Unlock()
	return true
}

// StepForward advances one index without the timer; no-op at the end.
func (e *Engine) StepForward() {
	e.step(1)
}

// StepBackward moves one index back without the timer; no-op at the start.
func (e *Engine) StepBackward() {
	e.step(-1)
}

func (e *Engine) step(delta int) {
	e.mu.Lock()
	next := e.idx + delta
	if len(e.points) == 0 || next < 0 || next > len(e.points)-1 {
		e.mu.Unlock()
		return
	}
	e.idx = next
	point := e.points[next]
	onPoint := e.onPoint
	e.mu.Unlock()

	if onPoint != nil {
		onPoint(next, point)
	}
}

// State returns the current machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Index returns the current point index.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Progress returns playback progress as a rounded percentage.
func (e *Engine) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() int {
	if len(e.points) <= 1 {
		return 0
	}
	return int(math.Round(float64(e.idx) / float64(len(e.points)-1) * 100))
}

// Snapshot returns the engine state for UI consumption.
func (e *Engine) Snapshot() types.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.PlaybackState{
		IsPlaying:    e.state == Playing,
		IsPaused:     e.state == Paused,
		CurrentIndex: e.idx,
		Speed:        e.speed,
		Progress:     e.progressLocked(),
	}
}

// run drives the step timer for one playing session. The interval is
// re-read every iteration so speed changes apply on the next tick.
func (e *Engine) run(stop chan struct{}) {
	for {
		e.mu.Lock()
		interval := e.baseInterval / time.Duration(e.speed)
		e.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			if e.tick(stop) {
				return
			}
		}
	}
}

// tick advances one index. It reports true when the session ended, either
// by completion or because this session was superseded.
func (e *Engine) tick(stop chan struct{}) bool {
	e.mu.Lock()
	if e.state != Playing || e.stop != stop {
		e.mu.Unlock()
		return true
	}

	last := len(e.points) - 1
	if e.idx >= last {
		// Nothing left to advance through (single-point sequence or a
		// seek landed on the end while playing).
		e.state = Stopped
		e.stop = nil
		onComplete := e.onComplete
		onState := e.onState
		e.mu.Unlock()

		if onState != nil {
			onState(Stopped)
		}
		if onComplete != nil {
			onComplete()
		}
		return true
	}

	e.idx++
	idx := e.idx
	point := e.points[idx]
	onPoint := e.onPoint
	completed := idx == last
	var onComplete func()
	var onState func(State)
	if completed {
		e.state = Stopped
		e.stop = nil
		onComplete = e.onComplete
		onState = e.onState
	}
	e.mu.Unlock()

	if onPoint != nil {
		onPoint(idx, point)
	}
	if completed {
		if onState != nil {
			onState(Stopped)
		}
		if onComplete != nil {
			onComplete()
		}
	}
	return completed
}
