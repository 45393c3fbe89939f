// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controlplane

import (
	"strings"
	"time"
)

// StreamInfo describes a remote stream and its ingest/playback endpoints.
type StreamInfo struct {
	ID         string `json:"stream_id"`
	Name       string `json:"stream_name"`
	WhipURL    string `json:"whip_url"`
	WhepURL    string `json:"whep_url,omitempty"`
	PlaybackID string `json:"playback_id"`
}

// RemoteStatus is one answer of the status endpoint.
type RemoteStatus struct {
	HTTPStatus int       `json:"http_status"`
	Body       any       `json:"body"`
	PolledAt   time.Time `json:"last_polled_at"`
}

// State extracts the stream state from the body, looking at "status",
// "state" and "data.state" in that order. Empty when absent.
func (s RemoteStatus) State() string {
	body, ok := s.Body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"status", "state"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	if data, ok := body["data"].(map[string]any); ok {
		if v, ok := data["state"].(string); ok {
			return v
		}
	}
	return ""
}

// WhepURL returns the playback endpoint if the body carries one, either at the
// top level or under "data".
func (s RemoteStatus) WhepURL() string {
	body, ok := s.Body.(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := body["whep_url"].(string); ok && v != "" {
		return v
	}
	if data, ok := body["data"].(map[string]any); ok {
		if v, ok := data["whep_url"].(string); ok {
			return v
		}
	}
	return ""
}

// Ready reports whether the remote considers the stream online.
func (s RemoteStatus) Ready() bool {
	switch strings.ToLower(s.State()) {
	case "ready", "online":
		return true
	}
	return false
}

type streamRequest struct {
	Pipeline string         `json:"pipeline"`
	Params   map[string]any `json:"params"`
	Name     string         `json:"name,omitempty"`
}

type streamResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	WhipURL          string `json:"whip_url"`
	WhepURL          string `json:"whep_url"`
	OutputPlaybackID string `json:"output_playback_id"`
}

func (r streamResponse) info(fallbackName string) StreamInfo {
	name := r.Name
	if name == "" {
		name = fallbackName
	}
	return StreamInfo{
		ID:         r.ID,
		Name:       name,
		WhipURL:    r.WhipURL,
		WhepURL:    r.WhepURL,
		PlaybackID: r.OutputPlaybackID,
	}
}
