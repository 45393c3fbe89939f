// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a problem response and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status := relayerr.HTTPStatus(err); status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.failed").
			Str("op", op).
			Int(log.FieldStatus, status).
			Msg("request failed")
	}
	problem.FromError(w, r, err)
}

func writeTooLarge(w http.ResponseWriter, r *http.Request, limit int64) {
	problem.Write(w, r, http.StatusRequestEntityTooLarge, "relay/body_too_large", "Request Entity Too Large",
		"BODY_TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", limit), nil)
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v untouched.
// It reports false after writing the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeTooLarge(w, r, maxErr.Limit)
		return false
	}
	problem.FromError(w, r, relayerr.Configf("invalid JSON body: %v", err))
	return false
}
