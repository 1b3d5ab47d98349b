// internal/game/types.go
//
// Core type definitions for the whack-a-mole engine.
// Defines:
//   - GameState / CellState: the clock, counters and per-cell timers.
//   - Phase / Controls: coarse state and the button layout derived from it.
//   - Sink: the rendering collaborator the engine reports changes to.
//   - Rand: the injectable random source.

package game

import "time"

const (
	// CellCount is the fixed size of the grid (3x3).
	CellCount = 9

	// DefaultMaxClock is the number of ticks in one game.
	DefaultMaxClock = 30

	// DefaultTickInterval is the real-time length of one tick.
	DefaultTickInterval = time.Second
)

// GameState holds the clock and score counters of a single game.
type GameState struct {
	Clock    int  `json:"clock"`    // ticks elapsed since setup
	MaxClock int  `json:"maxClock"` // game ends when Clock reaches this
	Hits     int  `json:"hits"`
	Misses   int  `json:"misses"`
	Running  bool `json:"running"`
}

// CellState is one grid position and its pending transition.
type CellState struct {
	ID            string `json:"id"`            // "block_0" … "block_8"
	NextEventTime int    `json:"nextEventTime"` // clock value at which the cell flips
	Visible       bool   `json:"visible"`
	Hit           bool   `json:"hit"`
}

// Phase is a coarse representation of the engine state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseOver    Phase = "over"
)

// Controls describes which control buttons are usable in the current phase.
type Controls struct {
	Start      bool   `json:"start"`
	Stop       bool   `json:"stop"`
	Reset      bool   `json:"reset"`
	StartLabel string `json:"startLabel"` // "Start" or "Resume"
}

// ControlsFor returns the button layout for a phase.
func ControlsFor(p Phase) Controls {
	switch p {
	case PhaseRunning:
		return Controls{Stop: true, StartLabel: "Start"}
	case PhasePaused:
		return Controls{Start: true, Reset: true, StartLabel: "Resume"}
	case PhaseOver:
		return Controls{Start: true, Reset: true, StartLabel: "Start"}
	default:
		return Controls{Start: true, StartLabel: "Start"}
	}
}

// Snapshot is a consistent copy of an engine's state.
type Snapshot struct {
	ID        string      `json:"id"`     // engine (session) ID
	GameID    string      `json:"gameId"` // current game
	State     GameState   `json:"state"`
	Phase     Phase       `json:"phase"`
	Remaining int         `json:"remaining"`
	Cells     []CellState `json:"cells"`
}

// Result summarises a game that ran to its time limit.
type Result struct {
	GameID     string    `json:"gameId"`
	Hits       int       `json:"hits"`
	Misses     int       `json:"misses"`
	MaxClock   int       `json:"maxClock"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Sink receives presentation updates from the engine.
//
// Methods are called while the engine holds its lock: implementations must
// not block and must not call back into the engine from the same goroutine.
type Sink interface {
	RenderGrid(cellIDs []string)
	ShowEntity(cellID string)
	ShowHitEntity(cellID string)
	RemoveEntity(cellID string)
	UpdateScore(hits, misses, remaining int)
	SetGameOver(over bool)
	SetControls(c Controls)
}

// Rand is the subset of *math/rand.Rand the engine draws from.
type Rand interface {
	Intn(n int) int
}

// NopSink discards every update. Useful for headless engines.
type NopSink struct{}

func (NopSink) RenderGrid([]string) {}
func (NopSink) ShowEntity(string) {}
func (NopSink) ShowHitEntity(string) {}
func (NopSink) RemoveEntity(string) {}
func (NopSink) UpdateScore(int, int, int) {}
func (NopSink) SetGameOver(bool) {}
func (NopSink) SetControls(Controls) {}
