// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/ManuGH/rtcrelay/internal/auth"
	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/log"
)

// RequireToken rejects requests that do not carry token, except for the
// exempt paths (health and metrics scrapes).
func RequireToken(token string, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !auth.AuthorizeRequest(r, token) {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str(log.FieldEvent, "auth.rejected").
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("request without valid API token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="rtcrelay"`)
				problem.Write(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized",
					"UNAUTHORIZED", "missing or invalid API token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
