// internal/scores/store.go
//
// Persistent history of finished games.
// Responsibilities:
//   - Insert one row per game that ran to its time limit.
//   - Leaderboard: best games ordered by hits, then fewest misses, then age.
//   - Per-player history, newest first.
//
// Notes:
//   - Rows are keyed by game ID; re-inserting the same game is ignored.
//   - Timestamps are stored as RFC3339 text (SQLite has no time type).

package scores

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Row is a single finished game.
type Row struct {
	PlayerID   string    `json:"playerId"`
	GameID     string    `json:"gameId"`
	Hits       int       `json:"hits"`
	Misses     int       `json:"misses"`
	MaxClock   int       `json:"maxClock"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert records a finished game. Duplicate game IDs are ignored.
func (s *Store) Insert(ctx context.Context, r Row) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO scores
            (player_id, game_id, hits, misses, max_clock, finished_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		r.PlayerID, r.GameID, r.Hits, r.Misses, r.MaxClock,
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Top returns the best games across all players.
func (s *Store) Top(ctx context.Context, limit int) ([]Row, error) {
	return s.query(ctx, `
        SELECT player_id, game_id, hits, misses, max_clock, finished_at
        FROM scores
        ORDER BY hits DESC, misses ASC, created_at ASC, id ASC
        LIMIT ?`, clampLimit(limit))
}

// ByPlayer returns a player's games, newest first.
func (s *Store) ByPlayer(ctx context.Context, playerID string, limit int) ([]Row, error) {
	return s.query(ctx, `
        SELECT player_id, game_id, hits, misses, max_clock, finished_at
        FROM scores
        WHERE player_id=?
        ORDER BY id DESC
        LIMIT ?`, playerID, clampLimit(limit))
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		var finished string
		if err := rows.Scan(&r.PlayerID, &r.GameID, &r.Hits, &r.Misses, &r.MaxClock, &finished); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, finished)
		if err != nil {
			return nil, fmt.Errorf("game %s: finished_at %q: %w", r.GameID, finished, err)
		}
		r.FinishedAt = t
		out = append(out, r)
	}
	return out, rows.Err()
}

// clampLimit applies the default (20) and caps at 100.
func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
