// db.go
//
// Database helpers for the whack-a-mole server.
// Responsibilities:
//   - Opening the SQLite score database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded schema migrations (see internal/scores).
//
// Score history is optional: an empty path disables it.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/whackamole/internal/scores"
)

/**
 * openDB opens (and creates if missing) a SQLite database file.
 *
 * - Ensures parent directory exists for relative DSNs (e.g. ./data/scores.db).
 * - Configures busy timeout and WAL journaling mode.
 * - Enforces foreign keys.
 */
func openDB(dsn string) (*sql.DB, error) {
	// Ensure directory exists for ./data/scores.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// Open DB with busy timeout and WAL journaling.
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Explicitly enforce foreign keys + WAL.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * openScores opens and migrates the score database at path.
 * Returns a nil store (and nil DB) when path is empty.
 */
func openScores(ctx context.Context, path string) (*scores.Store, *sql.DB, error) {
	if path == "" {
		log.Info().Msg("score history disabled")
		return nil, nil, nil
	}
	db, err := openDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := scores.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info().Str("path", path).Msg("score history enabled")
	return scores.NewStore(db), db, nil
}
