// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

const (
	// HeaderRequestID is the canonical header for request correlation.
	HeaderRequestID = "X-Request-ID"
	// JSONKeyRequestID is the JSON key carrying the request id.
	JSONKeyRequestID = "requestId"

	ContentType = "application/problem+json"
)

// Write writes a problem details response.
//
//   - type: machine identifier, e.g. "stream/conflict".
//   - title: short human-readable label.
//   - code: stable machine-readable code, e.g. "SESSION_CONFLICT".
//   - detail: explanation of this occurrence.
//
// extra keys are added at the top level; reserved keys are ignored.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	reqID := ""
	instance := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
		instance = r.URL.EscapedPath()
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
		"code":   code,
	}
	if reqID != "" {
		res[JSONKeyRequestID] = reqID
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance != "" {
		res["instance"] = instance
	}
	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code":
			log.L().Warn().Str("key", k).Str("problem_type", problemType).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	if reqID != "" {
		w.Header().Set(HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().Err(err).Str("type", problemType).Int("status", status).Msg("failed to encode problem response")
	}
}

// FromError maps err onto a problem response using the relayerr taxonomy.
// Remote API errors carry the upstream status as "upstream_status".
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	status := relayerr.HTTPStatus(err)
	code := relayerr.Code(err)
	var extra map[string]any
	var apiErr *relayerr.RemoteAPIError
	if errors.As(err, &apiErr) {
		extra = map[string]any{"upstream_status": apiErr.Status}
	}
	Write(w, r, status, "relay/"+strings.ToLower(code), http.StatusText(status), code, err.Error(), extra)
}
