// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one outbound session in the history.
type SessionRecord struct {
	ID          string     `json:"session_id"`
	StreamName  string     `json:"stream_name"`
	PlaybackID  string     `json:"playback_id,omitempty"`
	WhipURL     string     `json:"whip_url,omitempty"`
	Pipeline    string     `json:"pipeline,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Codec       string     `json:"codec"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	FramesSent  uint64     `json:"frames_sent"`
	EndReason   string     `json:"end_reason,omitempty"`
}

const defaultRecentLimit = 20

// RecordSessionStart inserts a session. Re-recording an id overwrites it.
func (s *Store) RecordSessionStart(ctx context.Context, rec SessionRecord) error {
	codec := rec.Codec
	if codec == "" {
		codec = "vp8"
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO sessions (id, stream_name, playback_id, whip_url, pipeline, fingerprint, codec, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		stream_name = excluded.stream_name,
		playback_id = excluded.playback_id,
		whip_url = excluded.whip_url,
		pipeline = excluded.pipeline,
		fingerprint = excluded.fingerprint,
		codec = excluded.codec,
		started_at = excluded.started_at,
		ended_at = NULL,
		frames_sent = 0,
		end_reason = ''
	`, rec.ID, rec.StreamName, rec.PlaybackID, rec.WhipURL, rec.Pipeline, rec.Fingerprint, codec,
		rec.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// RecordSessionEnd closes the session with its final frame count.
func (s *Store) RecordSessionEnd(ctx context.Context, id string, endedAt time.Time, framesSent uint64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE sessions SET ended_at = ?, frames_sent = ?, end_reason = ?
	WHERE id = ?
	`, endedAt.UTC().Format(time.RFC3339Nano), int64(framesSent), reason, id)
	if err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record session end: unknown session %q", id)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, stream_name, playback_id, whip_url, pipeline, fingerprint, codec, started_at, ended_at, frames_sent, end_reason
	FROM sessions
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []SessionRecord{}
	for rows.Next() {
		var (
			r         SessionRecord
			startedAt string
			endedAt   sql.NullString
			frames    int64
		)
		if err := rows.Scan(&r.ID, &r.StreamName, &r.PlaybackID, &r.WhipURL, &r.Pipeline, &r.Fingerprint,
			&r.Codec, &startedAt, &endedAt, &frames, &r.EndReason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		if endedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
				r.EndedAt = &t
			}
		}
		r.FramesSent = uint64(frames)
		out = append(out, r)
	}
	return out, rows.Err()
}
