// internal/game/engine.go
//
// Core game engine for a single whack-a-mole session.
// Responsibilities:
//   - Own the clock, the hit/miss counters and the nine cell timers.
//   - Advance the clock one tick at a time on a Scheduler.
//   - Flip due cells between hidden and visible and score clicks.
//   - Track state transitions: idle → running → paused/over → running.
//
// Notes:
//   - Presentation is delegated to a Sink; the engine never renders.
//   - Timing and randomness are injected so tests can drive the engine
//     deterministically.
//   - All entry points are serialised by one mutex. A generation counter
//     turns ticks scheduled before the latest stop into no-ops.
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Random draw bounds (inclusive), in ticks.
const (
	initialDelayMax = 8 // first appearance in [0,8]
	hiddenDelayMax  = 9 // reappearance in [0,9] after retracting
	visibleMin      = 1 // a mole stays up for [1,5]
	visibleMax      = 5
)

// Engine runs one game.
type Engine struct {
	mu sync.Mutex

	id              string // session key, stable across games
	gameID          string // current game, regenerated by every setup
	interval        time.Duration
	restartOnResume bool
	sink            Sink
	sched           Scheduler
	rnd             Rand
	log             zerolog.Logger
	onGameOver      func(Result)

	state GameState
	cells []CellState

	gen    uint64      // bumped whenever pending ticks must be ignored
	cancel func() bool // pending tick, nil when none
}

// Option configures an Engine.
type Option func(*Engine)

// WithID sets the engine ID; by default a random UUID is used. Each game
// played on the engine gets its own game ID on top of this.
func WithID(id string) Option { return func(e *Engine) { e.id = id } }

// WithScheduler sets the timer source. Defaults to RealScheduler.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithRand sets the random source. Defaults to a time-seeded *rand.Rand.
func WithRand(r Rand) Option { return func(e *Engine) { e.rnd = r } }

// WithMaxClock sets the number of ticks in a game.
func WithMaxClock(n int) Option { return func(e *Engine) { e.state.MaxClock = n } }

// WithTickInterval sets the real-time length of a tick.
func WithTickInterval(d time.Duration) Option { return func(e *Engine) { e.interval = d } }

// WithRestartOnResume makes Start after a manual Stop begin a fresh game
// instead of continuing the paused one.
func WithRestartOnResume(v bool) Option { return func(e *Engine) { e.restartOnResume = v } }

// WithLogger attaches a logger for debug output.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithGameOverHook registers fn to receive the result of every game that
// reaches its time limit. fn runs after the engine lock is released.
func WithGameOverHook(fn func(Result)) Option { return func(e *Engine) { e.onGameOver = fn } }

// New constructs an engine bound to sink and performs the initial setup.
func New(sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	e := &Engine{
		id:       uuid.NewString(),
		interval: DefaultTickInterval,
		sink:     sink,
		sched:    RealScheduler{},
		log:      zerolog.Nop(),
		state:    GameState{MaxClock: DefaultMaxClock},
	}
	for _, o := range opts {
		o(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.state.MaxClock <= 0 {
		e.state.MaxClock = DefaultMaxClock
	}
	if e.interval <= 0 {
		e.interval = DefaultTickInterval
	}

	e.mu.Lock()
	e.setupLocked()
	e.mu.Unlock()
	return e
}

// ID returns the engine identifier.
func (e *Engine) ID() string { return e.id }

// Setup reinitialises the game: clock and counters to zero, nine hidden
// cells with fresh random first appearances, no pending tick.
func (e *Engine) Setup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setupLocked()
}

func (e *Engine) setupLocked() {
	e.haltLocked()
	e.state = GameState{MaxClock: e.state.MaxClock}
	e.gameID = uuid.NewString()

	e.cells = make([]CellState, CellCount)
	ids := make([]string, CellCount)
	for i := range e.cells {
		id := fmt.Sprintf("block_%d", i)
		e.cells[i] = CellState{ID: id, NextEventTime: e.randInt(0, initialDelayMax)}
		ids[i] = id
	}

	e.sink.RenderGrid(ids)
	e.sink.SetGameOver(false)
	e.sink.UpdateScore(0, 0, e.state.MaxClock)
	e.sink.SetControls(ControlsFor(PhaseIdle))
	e.log.Debug().Str("gameId", e.gameID).Msg("setup")
}

// Start begins or resumes ticking. It is a no-op while running. A game that
// already reached its time limit is set up afresh first.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Running {
		return
	}
	if e.state.Clock >= e.state.MaxClock || (e.restartOnResume && e.state.Clock > 0) {
		e.setupLocked()
	}
	e.state.Running = true
	e.sink.SetGameOver(false)
	e.sink.SetControls(ControlsFor(PhaseRunning))
	e.scheduleLocked()
	e.log.Debug().Int("clock", e.state.Clock).Msg("start")
}

// Stop halts ticking and shows the game-over state. Counters and cells are
// kept so the game can be resumed.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	e.haltLocked()
	e.sink.SetGameOver(true)
	e.sink.SetControls(ControlsFor(e.phaseLocked()))
	e.log.Debug().Int("clock", e.state.Clock).Msg("stop")
}

// Reset is Stop followed by Setup.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.setupLocked()
}

// Close cancels any pending tick without notifying the sink.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
}

// haltLocked clears the running flag and invalidates the pending tick.
func (e *Engine) haltLocked() {
	e.state.Running = false
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) scheduleLocked() {
	gen := e.gen
	e.cancel = e.sched.AfterFunc(e.interval, func() { e.tick(gen) })
}

// Click registers a whack on cellID. It only counts while running and when
// the cell shows a mole that has not been hit yet; the mole then retracts
// on the next tick. Reports whether the click counted.
func (e *Engine) Click(cellID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Running {
		return false
	}
	c := e.cellLocked(cellID)
	if c == nil || !c.Visible || c.Hit {
		return false
	}
	c.Hit = true
	c.NextEventTime = e.state.Clock + 1
	e.state.Hits++
	e.sink.UpdateScore(e.state.Hits, e.state.Misses, e.remainingLocked())
	e.sink.ShowHitEntity(c.ID)
	e.log.Debug().Str("cell", c.ID).Int("clock", e.state.Clock).Msg("hit")
	return true
}

// tick advances the clock by one and processes due cells.
func (e *Engine) tick(gen uint64) {
	var result *Result

	e.mu.Lock()
	if !e.state.Running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.cancel = nil
	e.state.Clock++
	e.sink.UpdateScore(e.state.Hits, e.state.Misses, e.remainingLocked())

	for i := range e.cells {
		c := &e.cells[i]
		if c.NextEventTime > e.state.Clock {
			continue
		}
		if c.Visible {
			if !c.Hit {
				e.state.Misses++
				e.sink.UpdateScore(e.state.Hits, e.state.Misses, e.remainingLocked())
			}
			c.Visible = false
			e.sink.RemoveEntity(c.ID)
			c.NextEventTime = e.state.Clock + e.randInt(0, hiddenDelayMax)
		} else {
			c.Visible, c.Hit = true, false
			e.sink.ShowEntity(c.ID)
			c.NextEventTime = e.state.Clock + e.randInt(visibleMin, visibleMax)
		}
	}

	if e.state.Clock < e.state.MaxClock {
		e.scheduleLocked()
	} else {
		e.stopLocked()
		result = &Result{
			GameID:     e.gameID,
			Hits:       e.state.Hits,
			Misses:     e.state.Misses,
			MaxClock:   e.state.MaxClock,
			FinishedAt: time.Now().UTC(),
		}
		e.log.Info().Str("gameId", e.gameID).Int("hits", result.Hits).Int("misses", result.Misses).Msg("game over")
	}
	e.mu.Unlock()

	if result != nil && e.onGameOver != nil {
		e.onGameOver(*result)
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	cells := make([]CellState, len(e.cells))
	copy(cells, e.cells)
	return Snapshot{
		ID:        e.id,
		GameID:    e.gameID,
		State:     e.state,
		Phase:     e.phaseLocked(),
		Remaining: e.remainingLocked(),
		Cells:     cells,
	}
}

func (e *Engine) phaseLocked() Phase {
	switch {
	case e.state.Running:
		return PhaseRunning
	case e.state.Clock >= e.state.MaxClock:
		return PhaseOver
	case e.state.Clock > 0:
		return PhasePaused
	default:
		return PhaseIdle
	}
}

func (e *Engine) remainingLocked() int { return e.state.MaxClock - e.state.Clock }

func (e *Engine) cellLocked(id string) *CellState {
	for i := range e.cells {
		if e.cells[i].ID == id {
			return &e.cells[i]
		}
	}
	return nil
}

// randInt draws uniformly from [lo, hi].
func (e *Engine) randInt(lo, hi int) int {
	return lo + e.rnd.Intn(hi-lo+1)
}
