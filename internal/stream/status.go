// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"time"

	"github.com/ManuGH/rtcrelay/internal/framebridge"
)

// Phase event names recorded in RemoteSnapshot.Phase.
const (
	EventStreamCreated   = "STREAM_CREATED"
	EventWhipOffer       = "WHIP_OFFER"
	EventWhipAnswer      = "WHIP_ANSWER"
	EventWhipEstablished = "WHIP_ESTABLISHED"
	EventRemoteStatus    = "REMOTE_STATUS"
	EventPipelineUpdated = "PIPELINE_UPDATED"
	EventStopped         = "STOPPED"
)

// RemoteSnapshot is the latest phase event or remote status answer.
type RemoteSnapshot struct {
	Phase        string     `json:"phase,omitempty"`
	Detail       string     `json:"detail,omitempty"`
	HTTPStatus   int        `json:"http_status,omitempty"`
	Body         any        `json:"body,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
}

// SessionInfo identifies an outbound session.
type SessionInfo struct {
	SessionID  string         `json:"session_id"`
	StreamName string         `json:"stream_name"`
	WhipURL    string         `json:"whip_url"`
	WhepURL    string         `json:"whep_url,omitempty"`
	PlaybackID string         `json:"playback_id,omitempty"`
	Pipeline   map[string]any `json:"pipeline_config"`
	Codec      string         `json:"codec"`
	StartedAt  time.Time      `json:"started_at"`
	// Reused is set when Start returned the already running session.
	Reused bool `json:"reused,omitempty"`
}

// Status is a point-in-time view of the controller. SessionID, PlaybackID and
// WhipURL mirror Session so clients can read them without descending.
type Status struct {
	Phase        Phase             `json:"phase"`
	Running      bool              `json:"running"`
	SessionID    string            `json:"session_id,omitempty"`
	PlaybackID   string            `json:"playback_id,omitempty"`
	WhipURL      string            `json:"whip_url,omitempty"`
	Session      *SessionInfo      `json:"session,omitempty"`
	FramesSent   uint64            `json:"frames_sent"`
	FramesDrop   uint64            `json:"frames_dropped"`
	FrameSource  string            `json:"frame_source,omitempty"`
	RemoteStatus RemoteSnapshot    `json:"remote_status"`
	QueueDepth   int               `json:"queue_depth"`
	QueueStats   framebridge.Stats `json:"queue_stats"`
	Settings     Settings          `json:"stream_settings"`
	LastError    string            `json:"last_error,omitempty"`
}
