// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/store"
	"github.com/ManuGH/rtcrelay/internal/stream"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 200
)

type pipelineResponse struct {
	PipelineConfig map[string]any `json:"pipeline_config"`
}

// GetHealth implements ServerInterface.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"phase":   s.stream.Phase(),
		"version": s.cfg.Version,
	})
}

// StartStream implements ServerInterface.
func (s *Server) StartStream(w http.ResponseWriter, r *http.Request) {
	var req StartStreamJSONRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name, override := startArgs(req)
	info, err := s.stream.Start(r.Context(), name, override)
	if err != nil {
		writeError(w, r, "start", err)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.SessionAttributes(info.SessionID, info.StreamName, info.PlaybackID)...)
	writeJSON(w, http.StatusOK, info)
}

// RestartStream implements ServerInterface.
func (s *Server) RestartStream(w http.ResponseWriter, r *http.Request) {
	var req RestartStreamJSONRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name, override := startArgs(req)
	info, err := s.stream.Restart(r.Context(), name, override)
	if err != nil {
		writeError(w, r, "restart", err)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.SessionAttributes(info.SessionID, info.StreamName, info.PlaybackID)...)
	writeJSON(w, http.StatusOK, info)
}

func startArgs(req StartRequest) (string, map[string]any) {
	var (
		name     string
		override map[string]any
	)
	if req.StreamName != nil {
		name = *req.StreamName
	}
	if req.PipelineConfig != nil {
		override = *req.PipelineConfig
	}
	return name, override
}

// StopStream implements ServerInterface. Stopping an idle stream is not an error.
func (s *Server) StopStream(w http.ResponseWriter, r *http.Request) {
	_ = s.stream.Stop(r.Context())
	phase := string(s.stream.Phase())
	writeJSON(w, http.StatusOK, OkResponse{Ok: true, Phase: &phase})
}

// GetStatus implements ServerInterface.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request, params GetStatusParams) {
	refresh := params.Refresh != nil && parseFlag(*params.Refresh)
	writeJSON(w, http.StatusOK, s.stream.Status(r.Context(), refresh))
}

// UpdatePipeline implements ServerInterface.
func (s *Server) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	var partial UpdatePipelineJSONRequestBody
	if !decodeJSON(w, r, &partial) {
		return
	}
	if len(partial) == 0 {
		writeError(w, r, "update_pipeline", relayerr.Configf("pipeline update must be a non-empty JSON object"))
		return
	}
	merged, err := s.stream.UpdatePipeline(r.Context(), partial)
	if err != nil {
		writeError(w, r, "update_pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, pipelineResponse{PipelineConfig: merged})
}

// GetCachedPipeline implements ServerInterface.
func (s *Server) GetCachedPipeline(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.stream.CachedPipeline()
	if err != nil {
		writeError(w, r, "cached_pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, pipelineResponse{PipelineConfig: cfg})
}

// PutCachedPipeline implements ServerInterface.
func (s *Server) PutCachedPipeline(w http.ResponseWriter, r *http.Request) {
	var cfg PutCachedPipelineJSONRequestBody
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if cfg == nil {
		writeError(w, r, "cache_pipeline", relayerr.Configf("pipeline config must be a JSON object"))
		return
	}
	saved, err := s.stream.CachePipeline(cfg)
	if err != nil {
		writeError(w, r, "cache_pipeline", err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Str(log.FieldEvent, "pipeline.cached").Msg("default pipeline updated")
	writeJSON(w, http.StatusOK, pipelineResponse{PipelineConfig: saved})
}

// GetSettings implements ServerInterface.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stream.Settings())
}

// PutSettings implements ServerInterface. The body binds to the domain patch
// type so absent fields stay distinguishable from zero values.
func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	var patch stream.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	settings, err := s.stream.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeError(w, r, "update_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// ListSessions implements ServerInterface.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request, params ListSessionsParams) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": []store.SessionRecord{}})
		return
	}
	limit := defaultSessionLimit
	if params.Limit != nil {
		if *params.Limit < 1 {
			writeError(w, r, "sessions", relayerr.Configf("limit must be a positive integer"))
			return
		}
		limit = min(*params.Limit, maxSessionLimit)
	}
	records, err := s.sessions.RecentSessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, "sessions", err)
		return
	}
	if records == nil {
		records = []store.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
