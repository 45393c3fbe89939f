// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionStartTotal tracks the outcome of outbound session starts.
	SessionStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_session_start_total",
		Help: "Outbound session start attempts by result",
	}, []string{"result"}) // result=ok|reused|config_error|remote_error|negotiation_error|timeout

	// SessionStartupLatency tracks the time from start request to Streaming.
	SessionStartupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtcrelay_session_startup_latency_seconds",
		Help:    "Time from start request to an established WHIP session",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_session_transitions_total",
		Help: "Lifecycle transitions of the outbound session",
	}, []string{"from", "to"})

	sessionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtcrelay_session_active",
		Help: "Whether a session is active (1) or not (0) per direction",
	}, []string{"direction"}) // direction=whip|whep

	controlPlaneRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rtcrelay_controlplane_request_duration_seconds",
		Help:    "Remote control-plane request latency by operation and status",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"op", "status"})

	statusFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_remote_status_fetch_total",
		Help: "Remote status lookups by outcome",
	}, []string{"outcome"}) // outcome=fetched|throttled|shared_cache|remote_error|error
)

// IncSessionStart records the outcome of a start attempt.
func IncSessionStart(result string) {
	SessionStartTotal.WithLabelValues(result).Inc()
}

// ObserveSessionStartupLatency records the start-to-streaming latency.
func ObserveSessionStartupLatency(d time.Duration) {
	SessionStartupLatency.Observe(d.Seconds())
}

// IncSessionTransition records one lifecycle transition.
func IncSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// SetSessionActive records whether a session is active in the given direction.
func SetSessionActive(direction string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	sessionActive.WithLabelValues(direction).Set(v)
}

// ObserveControlPlaneRequest records the latency of one control-plane call.
// A status of 0 means the request failed before a response was received.
func ObserveControlPlaneRequest(op string, status int, d time.Duration) {
	controlPlaneRequests.WithLabelValues(op, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncStatusFetch records how a remote status lookup was served.
func IncStatusFetch(outcome string) {
	statusFetches.WithLabelValues(outcome).Inc()
}
