// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strings"
)

// The relay API has no DELETE routes. Browser previews read the X-Frame-*
// headers of /whep/frame, so they are exposed alongside the request ID.
const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, OPTIONS"
	corsAllowHeaders  = "Authorization, Content-Type, X-API-Token, X-Request-ID"
	corsExposeHeaders = "X-Request-ID, Retry-After, X-Frame-Seq, X-Frame-Width, X-Frame-Height, X-Frame-Format"
	corsMaxAge        = "600"
)

type originSet struct {
	any   bool
	exact map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	set := originSet{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case "*":
			set.any = true
		default:
			set.exact[o] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.exact[normalizeOrigin(origin)]
	return ok
}

// normalizeOrigin makes "HTTP://UI.local/" and "http://ui.local" compare equal.
func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// CORS answers preflights for allowed origins and tags their responses.
// "*" allows every origin; the request origin is reflected so credentials
// keep working. Preflights from other origins get 403 before reaching auth.
func CORS(allowedOrigins []string, allowCredentials bool) func(http.Handler) http.Handler {
	origins := newOriginSet(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin != "" && origins.allows(origin)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				if allowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
