// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_helper_signal_total",
		Help: "Signals sent to ffmpeg helper process groups during teardown",
	}, []string{"role", "signal", "result"}) // result=sent|error

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_helper_teardown_total",
		Help: "ffmpeg helper teardowns by how the helper stopped and its exit status",
	}, []string{"role", "stop", "exit"}) // stop=graceful|forced, exit=clean|nonzero

	ffmpegExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_ffmpeg_exit_total",
		Help: "ffmpeg helper process exits by role and reason",
	}, []string{"role", "reason"}) // role=encoder|decoder|media, reason=stopped|error|eof
)

// IncProcTerminate records a signal delivery attempt to a helper.
func IncProcTerminate(role, signal, result string) {
	procTerminate.WithLabelValues(role, signal, result).Inc()
}

// IncProcWait records how a terminated helper exited.
func IncProcWait(role, stop, exit string) {
	procWait.WithLabelValues(role, stop, exit).Inc()
}

// IncFFmpegExit records the exit of an ffmpeg helper.
func IncFFmpegExit(role, reason string) {
	ffmpegExits.WithLabelValues(role, reason).Inc()
}
