package game

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

// recorder is a Sink that keeps everything it is told.
type recorder struct {
	grid     []string
	events   []string
	shows    int
	removes  int
	hits     int
	score    [3]int
	gameOver bool
	controls Controls

	up          map[string]bool // cell currently showing a mole
	hitThisPop  map[string]bool
	unhitRemove int // removals of moles that were never hit
}

func newRecorder() *recorder {
	return &recorder{up: map[string]bool{}, hitThisPop: map[string]bool{}}
}

func (r *recorder) RenderGrid(ids []string) {
	r.grid = append([]string(nil), ids...)
	r.up = map[string]bool{}
	r.hitThisPop = map[string]bool{}
	r.events = append(r.events, "grid")
}

func (r *recorder) ShowEntity(id string) {
	r.shows++
	r.up[id] = true
	r.hitThisPop[id] = false
	r.events = append(r.events, "show "+id)
}

func (r *recorder) ShowHitEntity(id string) {
	r.hits++
	r.hitThisPop[id] = true
	r.events = append(r.events, "hit "+id)
}

func (r *recorder) RemoveEntity(id string) {
	r.removes++
	if !r.hitThisPop[id] {
		r.unhitRemove++
	}
	r.up[id] = false
	r.events = append(r.events, "remove "+id)
}

func (r *recorder) UpdateScore(hits, misses, remaining int) {
	r.score = [3]int{hits, misses, remaining}
}

func (r *recorder) SetGameOver(over bool) { r.gameOver = over }

func (r *recorder) SetControls(c Controls) { r.controls = c }

// scriptedRand returns queued values (clamped to n-1), then fallback.
type scriptedRand struct {
	queue    []int
	fallback int
}

func (s *scriptedRand) Intn(n int) int {
	v := s.fallback
	if len(s.queue) > 0 {
		v, s.queue = s.queue[0], s.queue[1:]
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func newTestEngine(t *testing.T, rnd Rand, opts ...Option) (*Engine, *recorder, *ManualScheduler) {
	t.Helper()
	rec := newRecorder()
	sched := NewManualScheduler()
	opts = append([]Option{WithScheduler(sched), WithRand(rnd), WithID("test")}, opts...)
	return New(rec, opts...), rec, sched
}

func ticks(n int) time.Duration { return time.Duration(n) * DefaultTickInterval }

func TestSetupInitialisesGrid(t *testing.T) {
	e, rec, _ := newTestEngine(t, &scriptedRand{fallback: 100})

	snap := e.Snapshot()
	if len(snap.Cells) != CellCount {
		t.Fatalf("expected %d cells, got %d", CellCount, len(snap.Cells))
	}
	for i, c := range snap.Cells {
		if c.ID != fmt.Sprintf("block_%d", i) {
			t.Errorf("cell %d: id %q", i, c.ID)
		}
		if c.Visible || c.Hit {
			t.Errorf("cell %s should start hidden and unhit", c.ID)
		}
		if c.NextEventTime != initialDelayMax {
			t.Errorf("cell %s: expected first event at %d, got %d", c.ID, initialDelayMax, c.NextEventTime)
		}
	}
	if snap.State.Clock != 0 || snap.State.Hits != 0 || snap.State.Misses != 0 || snap.State.Running {
		t.Errorf("unexpected initial state %+v", snap.State)
	}
	if snap.Phase != PhaseIdle {
		t.Errorf("expected idle phase, got %s", snap.Phase)
	}
	if len(rec.grid) != CellCount {
		t.Errorf("sink grid has %d cells", len(rec.grid))
	}
	if rec.score != [3]int{0, 0, DefaultMaxClock} {
		t.Errorf("initial score %v", rec.score)
	}
	if rec.controls != ControlsFor(PhaseIdle) {
		t.Errorf("initial controls %+v", rec.controls)
	}
}

func TestFirstTickShowsMolesDueAtZero(t *testing.T) {
	e, rec, sched := newTestEngine(t, &scriptedRand{})

	e.Start()
	sched.Advance(ticks(1))

	snap := e.Snapshot()
	for _, c := range snap.Cells {
		if !c.Visible {
			t.Errorf("cell %s should be visible after first tick", c.ID)
		}
	}
	if rec.shows != CellCount {
		t.Errorf("expected %d shows, got %d", CellCount, rec.shows)
	}
	if rec.score[2] != DefaultMaxClock-1 {
		t.Errorf("expected remaining %d, got %d", DefaultMaxClock-1, rec.score[2])
	}
}

func TestClockAdvancesOncePerTickAndStopsAtMax(t *testing.T) {
	e, rec, sched := newTestEngine(t, rand.New(rand.NewSource(1)))

	e.Start()
	if sched.Pending() != 1 {
		t.Fatalf("expected one pending tick, got %d", sched.Pending())
	}
	for i := 1; i < DefaultMaxClock; i++ {
		sched.Advance(ticks(1))
		snap := e.Snapshot()
		if snap.State.Clock != i {
			t.Fatalf("after %d ticks clock is %d", i, snap.State.Clock)
		}
		if !snap.State.Running {
			t.Fatalf("game stopped early at clock %d", i)
		}
	}

	sched.Advance(ticks(1))
	snap := e.Snapshot()
	if snap.State.Running || snap.State.Clock != DefaultMaxClock {
		t.Fatalf("expected stopped at %d, got %+v", DefaultMaxClock, snap.State)
	}
	if snap.Phase != PhaseOver || !rec.gameOver {
		t.Errorf("expected game-over phase and style, phase=%s style=%v", snap.Phase, rec.gameOver)
	}

	sched.Advance(ticks(10))
	if got := e.Snapshot().State.Clock; got != DefaultMaxClock {
		t.Errorf("clock moved after game over: %d", got)
	}
	if sched.Pending() != 0 {
		t.Errorf("expected no pending ticks, got %d", sched.Pending())
	}
}

func TestNoClicksEveryRetractionIsAMiss(t *testing.T) {
	// Moles pop up at zero, stay one tick, and reappear immediately, so each
	// cell retracts on every even tick.
	e, rec, sched := newTestEngine(t, &scriptedRand{})

	e.Start()
	sched.Advance(ticks(DefaultMaxClock))

	snap := e.Snapshot()
	want := CellCount * DefaultMaxClock / 2
	if snap.State.Misses != want {
		t.Errorf("expected %d misses, got %d", want, snap.State.Misses)
	}
	if snap.State.Hits != 0 {
		t.Errorf("expected no hits, got %d", snap.State.Hits)
	}
	if rec.removes != snap.State.Misses {
		t.Errorf("misses %d do not match retractions %d", snap.State.Misses, rec.removes)
	}
	if snap.State.Running {
		t.Error("game should be over")
	}
}

func TestClickOverridesRetraction(t *testing.T) {
	// block_0 appears at 4 and would stay until 9; the rest appear at 8.
	rnd := &scriptedRand{queue: []int{4, 8, 8, 8, 8, 8, 8, 8, 8, 4}}
	e, rec, sched := newTestEngine(t, rnd)

	e.Start()
	sched.Advance(ticks(5))

	snap := e.Snapshot()
	if snap.State.Clock != 5 {
		t.Fatalf("clock %d", snap.State.Clock)
	}
	if c := snap.Cells[0]; !c.Visible || c.NextEventTime != 9 {
		t.Fatalf("block_0 should be up until 9, got %+v", c)
	}

	if !e.Click("block_0") {
		t.Fatal("click on visible mole should count")
	}
	snap = e.Snapshot()
	if snap.State.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", snap.State.Hits)
	}
	if c := snap.Cells[0]; !c.Hit || c.NextEventTime != 6 {
		t.Errorf("expected hit cell to retract at 6, got %+v", c)
	}
	if rec.score[0] != 1 || rec.hits != 1 {
		t.Errorf("sink not told about the hit: score=%v hits=%d", rec.score, rec.hits)
	}

	sched.Advance(ticks(1))
	snap = e.Snapshot()
	if snap.Cells[0].Visible {
		t.Error("hit mole should retract on the next tick")
	}
	if snap.State.Misses != 0 {
		t.Errorf("retracting a hit mole must not count a miss, got %d", snap.State.Misses)
	}
}

func TestIneffectiveClicks(t *testing.T) {
	rnd := &scriptedRand{queue: []int{0, 8, 8, 8, 8, 8, 8, 8, 8, 4}}
	e, _, sched := newTestEngine(t, rnd)

	if e.Click("block_0") {
		t.Error("click before start should be ignored")
	}
	e.Start()
	sched.Advance(ticks(1))

	cases := []struct {
		name string
		cell string
		want bool
	}{
		{"unknown cell", "block_42", false},
		{"hidden cell", "block_1", false},
		{"visible cell", "block_0", true},
		{"already hit", "block_0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.Click(tc.cell); got != tc.want {
				t.Errorf("Click(%q) = %v, want %v", tc.cell, got, tc.want)
			}
		})
	}
	if s := e.Snapshot().State; s.Hits != 1 || s.Misses != 0 {
		t.Errorf("expected 1 hit and 0 misses, got %+v", s)
	}

	e.Stop()
	sched.Advance(ticks(1))
	before := e.Snapshot().State
	for i := 0; i < CellCount; i++ {
		e.Click(fmt.Sprintf("block_%d", i))
	}
	if after := e.Snapshot().State; after != before {
		t.Errorf("clicks while stopped changed state: %+v -> %+v", before, after)
	}
}

func TestResetRestoresFreshGame(t *testing.T) {
	e, rec, sched := newTestEngine(t, rand.New(rand.NewSource(7)))

	e.Start()
	sched.Advance(ticks(12))
	for i := 0; i < CellCount; i++ {
		e.Click(fmt.Sprintf("block_%d", i))
	}
	e.Reset()

	snap := e.Snapshot()
	if snap.State.Clock != 0 || snap.State.Hits != 0 || snap.State.Misses != 0 || snap.State.Running {
		t.Errorf("state not reset: %+v", snap.State)
	}
	if len(snap.Cells) != CellCount {
		t.Fatalf("expected %d cells, got %d", CellCount, len(snap.Cells))
	}
	for _, c := range snap.Cells {
		if c.Visible || c.Hit {
			t.Errorf("cell %s not hidden after reset", c.ID)
		}
	}
	if rec.gameOver {
		t.Error("game-over style should be cleared by reset")
	}
	if sched.Pending() != 0 {
		t.Errorf("reset left %d pending ticks", sched.Pending())
	}

	sched.Advance(ticks(5))
	if got := e.Snapshot().State.Clock; got != 0 {
		t.Errorf("clock moved after reset: %d", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	e, _, sched := newTestEngine(t, &scriptedRand{})

	e.Start()
	e.Start()
	e.Start()
	if sched.Pending() != 1 {
		t.Fatalf("expected one pending tick, got %d", sched.Pending())
	}
	sched.Advance(ticks(1))
	if got := e.Snapshot().State.Clock; got != 1 {
		t.Errorf("expected clock 1, got %d", got)
	}
}

func TestStopThenStartKeepsSingleTickChain(t *testing.T) {
	e, _, sched := newTestEngine(t, &scriptedRand{})

	e.Start()
	sched.Advance(DefaultTickInterval / 2)
	e.Stop()
	e.Start()

	sched.Advance(ticks(1))
	if got := e.Snapshot().State.Clock; got != 1 {
		t.Fatalf("expected exactly one tick, clock is %d", got)
	}
	if sched.Pending() != 1 {
		t.Errorf("expected one pending tick, got %d", sched.Pending())
	}
}

func TestStaleTickIsIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t, &scriptedRand{})

	e.Start()
	e.mu.Lock()
	stale := e.gen
	e.mu.Unlock()
	e.Stop()
	e.Start()

	e.tick(stale)
	if got := e.Snapshot().State.Clock; got != 0 {
		t.Errorf("stale tick advanced the clock to %d", got)
	}
}

func TestResumeAfterStop(t *testing.T) {
	t.Run("continues by default", func(t *testing.T) {
		e, rec, sched := newTestEngine(t, &scriptedRand{})
		e.Start()
		sched.Advance(ticks(3))
		e.Stop()

		if rec.controls != ControlsFor(PhasePaused) || rec.controls.StartLabel != "Resume" {
			t.Errorf("paused controls %+v", rec.controls)
		}
		sched.Advance(ticks(3))
		if got := e.Snapshot().State.Clock; got != 3 {
			t.Fatalf("clock moved while stopped: %d", got)
		}

		e.Start()
		sched.Advance(ticks(1))
		if got := e.Snapshot().State.Clock; got != 4 {
			t.Errorf("expected resume at 4, got %d", got)
		}
	})

	t.Run("restart when configured", func(t *testing.T) {
		e, _, sched := newTestEngine(t, &scriptedRand{}, WithRestartOnResume(true))
		e.Start()
		sched.Advance(ticks(3))
		e.Stop()
		e.Start()

		snap := e.Snapshot()
		if snap.State.Clock != 0 || snap.State.Misses != 0 || !snap.State.Running {
			t.Errorf("expected fresh running game, got %+v", snap.State)
		}
	})
}

func TestStartAfterGameOverBeginsFreshGame(t *testing.T) {
	e, rec, sched := newTestEngine(t, &scriptedRand{}, WithMaxClock(4))

	e.Start()
	sched.Advance(ticks(4))
	if s := e.Snapshot(); s.Phase != PhaseOver || s.State.Misses == 0 {
		t.Fatalf("expected finished game with misses, got %+v", s)
	}

	e.Start()
	snap := e.Snapshot()
	if snap.State.Clock != 0 || snap.State.Misses != 0 || !snap.State.Running {
		t.Errorf("expected fresh running game, got %+v", snap.State)
	}
	if rec.gameOver {
		t.Error("game-over style should be cleared on start")
	}
	if rec.controls != ControlsFor(PhaseRunning) {
		t.Errorf("running controls %+v", rec.controls)
	}
}

func TestGameOverHookFiresOnce(t *testing.T) {
	var results []Result
	e, _, sched := newTestEngine(t, &scriptedRand{},
		WithMaxClock(6),
		WithGameOverHook(func(r Result) { results = append(results, r) }),
	)

	first := e.Snapshot().GameID
	e.Start()
	sched.Advance(ticks(20))

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0]
	snap := e.Snapshot()
	if r.GameID != first || r.MaxClock != 6 || r.Hits != snap.State.Hits || r.Misses != snap.State.Misses {
		t.Errorf("result %+v does not match state %+v", r, snap)
	}
	if snap.ID != "test" {
		t.Errorf("engine ID changed to %q", snap.ID)
	}

	e.Stop()
	if len(results) != 1 {
		t.Error("manual stop must not emit a result")
	}
}

func TestEachGameGetsItsOwnID(t *testing.T) {
	var results []Result
	e, _, sched := newTestEngine(t, &scriptedRand{},
		WithMaxClock(3),
		WithGameOverHook(func(r Result) { results = append(results, r) }),
	)

	for i := 0; i < 2; i++ {
		e.Start()
		sched.Advance(ticks(3))
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if results[0].GameID == "" || results[0].GameID == results[1].GameID {
		t.Errorf("consecutive games share ID %q", results[0].GameID)
	}
	if got := e.Snapshot(); got.ID != "test" || got.GameID != results[1].GameID {
		t.Errorf("snapshot %s/%s after second game %s", got.ID, got.GameID, results[1].GameID)
	}

	before := e.Snapshot().GameID
	e.Reset()
	if e.Snapshot().GameID == before {
		t.Error("reset should start a new game ID")
	}
}

func TestControlsFor(t *testing.T) {
	cases := []struct {
		phase Phase
		want  Controls
	}{
		{PhaseIdle, Controls{Start: true, StartLabel: "Start"}},
		{PhaseRunning, Controls{Stop: true, StartLabel: "Start"}},
		{PhasePaused, Controls{Start: true, Reset: true, StartLabel: "Resume"}},
		{PhaseOver, Controls{Start: true, Reset: true, StartLabel: "Start"}},
	}
	for _, tc := range cases {
		if got := ControlsFor(tc.phase); got != tc.want {
			t.Errorf("ControlsFor(%s) = %+v, want %+v", tc.phase, got, tc.want)
		}
	}
}

func TestScoreAccountingWithRandomPlay(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			e, rec, sched := newTestEngine(t, rand.New(rand.NewSource(seed)))
			player := rand.New(rand.NewSource(seed * 31))

			e.Start()
			clicks := 0
			prev := 0
			for e.Snapshot().State.Running {
				sched.Advance(ticks(1))
				snap := e.Snapshot()
				if snap.State.Clock != prev+1 {
					t.Fatalf("clock jumped from %d to %d", prev, snap.State.Clock)
				}
				prev = snap.State.Clock
				for _, c := range snap.Cells {
					if player.Intn(3) == 0 && e.Click(c.ID) {
						clicks++
					}
				}
			}

			s := e.Snapshot().State
			if s.Clock != DefaultMaxClock {
				t.Errorf("ended at clock %d", s.Clock)
			}
			if s.Hits != clicks {
				t.Errorf("hits %d, effective clicks %d", s.Hits, clicks)
			}
			if s.Misses != rec.unhitRemove {
				t.Errorf("misses %d, unhit retractions %d", s.Misses, rec.unhitRemove)
			}
		})
	}
}
