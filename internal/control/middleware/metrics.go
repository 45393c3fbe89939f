// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API surfaces used as the "surface" label.
const (
	SurfaceWHIP    = "whip"    // publish lifecycle: start, stop, restart, status, pipeline
	SurfaceWHEP    = "whep"    // receive side
	SurfaceFrames  = "frames"  // producer frame ingest
	SurfaceControl = "control" // health, config, sessions, metrics, API description
)

const unmatchedRoute = "unmatched"

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_api_requests_total",
		Help: "Relay API requests by surface, route and status class",
	}, []string{"surface", "method", "route", "code"})

	// Start and restart include remote stream creation and WHIP negotiation.
	apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rtcrelay_api_request_duration_seconds",
		Help:    "Relay API request latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"surface", "route"})

	apiInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtcrelay_api_requests_in_flight",
		Help: "Relay API requests currently being served",
	}, []string{"surface"})

	frameUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtcrelay_api_frame_upload_bytes",
		Help:    "Body size of accepted frame uploads",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
)

// RouteSurface maps a route to its API surface.
func RouteSurface(route string) string {
	switch {
	case route == "/frames":
		return SurfaceFrames
	case strings.HasPrefix(route, "/whep/"):
		return SurfaceWHEP
	case route == "/start", route == "/stop", route == "/restart", route == "/status",
		strings.HasPrefix(route, "/pipeline"):
		return SurfaceWHIP
	default:
		return SurfaceControl
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Metrics records per-surface request counts, latency and frame upload sizes.
// Requests that match no route share one label value.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			inFlight := apiInFlight.WithLabelValues(RouteSurface(r.URL.Path))
			inFlight.Inc()
			defer inFlight.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			surface := RouteSurface(route)
			code := ww.Status()

			apiRequests.WithLabelValues(surface, r.Method, route, statusClass(code)).Inc()
			apiDuration.WithLabelValues(surface, route).Observe(time.Since(start).Seconds())
			if surface == SurfaceFrames && code < http.StatusBadRequest && r.ContentLength > 0 {
				frameUploadBytes.Observe(float64(r.ContentLength))
			}
		})
	}
}
