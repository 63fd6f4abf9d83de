package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

func makePoints(n int) []types.RoutePoint {
	points := make([]types.RoutePoint, n)
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = types.RoutePoint{
			Lat:       -23.5 + float64(i)*0.001,
			Lng:       -46.6 + float64(i)*0.001,
			Speed:     40,
			Heading:   90,
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
		}
	}
	return points
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func TestPlay_EmptySequenceIsNoop(t *testing.T) {
	engine := NewEngine(nil, 10*time.Millisecond)
	engine.Play()

	if engine.State() != Stopped {
		t.Errorf("Expected stopped state, got %v", engine.State())
	}
}

func TestStepForwardBackward_Clamped(t *testing.T) {
	engine := NewEngine(makePoints(3), 10*time.Millisecond)

	engine.StepBackward()
	if engine.Index() != 0 {
		t.Errorf("Expected index clamped at 0, got %d", engine.Index())
	}

	engine.StepForward()
	engine.StepForward()
	engine.StepForward() // past the end, no-op
	if engine.Index() != 2 {
		t.Errorf("Expected index clamped at 2, got %d", engine.Index())
	}

	engine.StepBackward()
	if engine.Index() != 1 {
		t.Errorf("Expected index 1, got %d", engine.Index())
	}
}

func TestSeekTo_ClampsAndAlwaysFiresPointCallback(t *testing.T) {
	engine := NewEngine(makePoints(5), 10*time.Millisecond)

	var fired []int
	engine.OnPoint(func(index int, point types.RoutePoint) {
		fired = append(fired, index)
	})

	engine.SeekTo(3)
	engine.SeekTo(-10)
	engine.SeekTo(99)

	want := []int{3, 0, 4}
	if len(fired) != len(want) {
		t.Fatalf("Expected %d point callbacks, got %d", len(want), len(fired))
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("Callback %d fired with index %d, want %d", i, fired[i], want[i])
		}
	}
	if engine.State() != Stopped {
		t.Errorf("Seeking must not start playback, state = %v", engine.State())
	}
}

func TestSeekToProgress(t *testing.T) {
	engine := NewEngine(makePoints(11), 10*time.Millisecond)

	tests := []struct {
		percent float64
		want    int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{33, 3},  // floor(3.3)
		{-5, 0},  // clamped
		{150, 10}, // clamped
	}

	for _, tt := range tests {
		engine.SeekToProgress(tt.percent)
		if engine.Index() != tt.want {
			t.Errorf("SeekToProgress(%v): index = %d, want %d", tt.percent, engine.Index(), tt.want)
		}
	}
}

func TestSetSpeed(t *testing.T) {
	engine := NewEngine(makePoints(5), 10*time.Millisecond)

	for _, s := range Speeds {
		if !engine.SetSpeed(s) {
			t.Errorf("Expected speed %d to be accepted", s)
		}
		if engine.Speed() != s {
			t.Errorf("Speed() = %d, want %d", engine.Speed(), s)
		}
	}

	for _, s := range []int{0, 3, 7, 64, -1} {
		if engine.SetSpeed(s) {
			t.Errorf("Expected speed %d to be rejected", s)
		}
	}
	if engine.Speed() != Speeds[len(Speeds)-1] {
		t.Errorf("Rejected speed must not change the current one, got %d", engine.Speed())
	}
}

func TestPlayback_RunsToCompletionExactlyOnce(t *testing.T) {
	engine := NewEngine(makePoints(10), 40*time.Millisecond)
	if !engine.SetSpeed(4) {
		t.Fatal("SetSpeed(4) rejected")
	}

	var mu sync.Mutex
	completions := 0
	var indexes []int
	engine.OnComplete(func() {
		mu.Lock()
		completions++
		mu.Unlock()
	})
	engine.OnPoint(func(index int, point types.RoutePoint) {
		mu.Lock()
		indexes = append(indexes, index)
		mu.Unlock()
	})

	engine.Play()
	waitFor(t, 2*time.Second, func() bool { return engine.State() == Stopped })

	// Give a spurious extra tick the chance to fire.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if completions != 1 {
		t.Errorf("Expected completion exactly once, got %d", completions)
	}
	if engine.Index() != 9 {
		t.Errorf("Expected final index 9, got %d", engine.Index())
	}
	if engine.Progress() != 100 {
		t.Errorf("Expected progress 100, got %d", engine.Progress())
	}

	// Exactly one advance per tick, in order, no wrap-around.
	for i, idx := range indexes {
		if idx != i+1 {
			t.Errorf("Tick %d advanced to index %d, want %d", i, idx, i+1)
		}
	}
}

func TestProgress_MonotonicDuringForwardPlayback(t *testing.T) {
	engine := NewEngine(makePoints(10), 5*time.Millisecond)

	var mu sync.Mutex
	var progress []int
	engine.OnPoint(func(index int, point types.RoutePoint) {
		mu.Lock()
		progress = append(progress, engine.Progress())
		mu.Unlock()
	})

	engine.Play()
	waitFor(t, 2*time.Second, func() bool { return engine.State() == Stopped })

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("Progress decreased from %d to %d", progress[i-1], progress[i])
		}
	}
}

func TestPauseKeepsIndex(t *testing.T) {
	engine := NewEngine(makePoints(50), 5*time.Millisecond)

	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.Index() >= 3 })
	engine.Pause()

	if engine.State() != Paused {
		t.Fatalf("Expected paused, got %v", engine.State())
	}
	idx := engine.Index()
	time.Sleep(30 * time.Millisecond)
	if engine.Index() != idx {
		t.Errorf("Index moved while paused: %d -> %d", idx, engine.Index())
	}

	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.Index() > idx })
	engine.Stop()

	if engine.Index() != 0 {
		t.Errorf("Expected Stop to reset index, got %d", engine.Index())
	}
}

func TestPlayAfterCompletion_RestartsFromZero(t *testing.T) {
	engine := NewEngine(makePoints(3), 5*time.Millisecond)

	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.State() == Stopped })
	if engine.Index() != 2 {
		t.Fatalf("Expected completion at index 2, got %d", engine.Index())
	}

	var mu sync.Mutex
	var first int = -1
	engine.OnPoint(func(index int, point types.RoutePoint) {
		mu.Lock()
		if first == -1 {
			first = index
		}
		mu.Unlock()
	})

	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.State() == Stopped })

	mu.Lock()
	defer mu.Unlock()
	if first != 1 {
		t.Errorf("Expected restart from index 0 (first advance to 1), got first advance to %d", first)
	}
}

func TestIndexStaysInBounds(t *testing.T) {
	engine := NewEngine(makePoints(4), 10*time.Millisecond)

	ops := []func(){
		func() { engine.StepForward() },
		func() { engine.StepBackward() },
		func() { engine.SeekTo(100) },
		func() { engine.StepForward() },
		func() { engine.SeekTo(-100) },
		func() { engine.StepBackward() },
		func() { engine.SeekToProgress(75) },
		func() { engine.StepForward() },
	}
	for i, op := range ops {
		op()
		if idx := engine.Index(); idx < 0 || idx > 3 {
			t.Fatalf("After op %d index out of bounds: %d", i, idx)
		}
	}
}

func TestStateChangeCallback(t *testing.T) {
	engine := NewEngine(makePoints(100), 5*time.Millisecond)

	var mu sync.Mutex
	var states []State
	engine.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.Index() >= 1 })
	engine.Pause()
	engine.Play()
	waitFor(t, time.Second, func() bool { return engine.Index() >= 3 })
	engine.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []State{Playing, Paused, Playing, Stopped}
	if len(states) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Transition %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestSnapshot(t *testing.T) {
	engine := NewEngine(makePoints(5), 10*time.Millisecond)
	engine.SetSpeed(8)
	engine.SeekTo(2)

	snap := engine.Snapshot()
	if snap.IsPlaying || snap.IsPaused {
		t.Error("Expected idle snapshot")
	}
	if snap.CurrentIndex != 2 {
		t.Errorf("CurrentIndex = %d, want 2", snap.CurrentIndex)
	}
	if snap.Speed != 8 {
		t.Errorf("Speed = %d, want 8", snap.Speed)
	}
	if snap.Progress != 50 {
		t.Errorf("Progress = %d, want 50", snap.Progress)
	}
}

func TestProgress_SinglePointIsZero(t *testing.T) {
	engine := NewEngine(makePoints(1), 10*time.Millisecond)
	if engine.Progress() != 0 {
		t.Errorf("Expected progress 0 for single point, got %d", engine.Progress())
	}
}
