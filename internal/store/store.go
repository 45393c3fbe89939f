// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store persists runtime stream settings and the outbound session
// history in SQLite, and the cached default pipeline config as a JSON file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/persistence/sqlite"
)

var migrations = []string{
	`
	CREATE TABLE settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		stream_name TEXT NOT NULL,
		playback_id TEXT NOT NULL DEFAULT '',
		whip_url TEXT NOT NULL DEFAULT '',
		pipeline TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		ended_at TEXT,
		frames_sent INTEGER NOT NULL DEFAULT 0,
		end_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX idx_sessions_started_at ON sessions(started_at);
	`,
	`ALTER TABLE sessions ADD COLUMN codec TEXT NOT NULL DEFAULT 'vp8';`,
}

// Store provides SQLite persistence for settings and session history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// A failed quick integrity check is logged but does not prevent startup.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	if issues, err := sqlite.VerifyIntegrity(ctx, db, "quick"); err != nil || len(issues) > 0 {
		log.L().Warn().
			Str(log.FieldEvent, "store.integrity").
			Str("path", path).
			Strs("issues", issues).
			Err(err).
			Msg("sqlite integrity check reported problems")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
