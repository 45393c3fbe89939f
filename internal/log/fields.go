// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldStreamName = "stream_name"
	FieldPlaybackID = "playback_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPipeline  = "pipeline"

	// Media fields
	FieldCodec       = "codec"
	FieldResolution  = "resolution"
	FieldFPS         = "fps"
	FieldFrameSource = "frame_source"
	FieldPTS         = "pts"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldPhase    = "phase"

	// Network fields
	FieldURL    = "url"
	FieldStatus = "status"
)
