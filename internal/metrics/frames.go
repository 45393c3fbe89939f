// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the Prometheus collectors of the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcrelay_frames_enqueued_total",
		Help: "Total number of frames pushed into the frame bridge",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_frames_dropped_total",
		Help: "Total number of frames dropped by stage",
	}, []string{"reason"}) // reason=bridge_overflow|encoder_skip|write_failed|mailbox_overwrite

	bridgeDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtcrelay_frame_bridge_depth",
		Help: "Number of frames currently pending in the frame bridge",
	})

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcrelay_frames_sent_total",
		Help: "Total number of samples written to the outbound track",
	})

	frameSourceSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_frame_source_selected_total",
		Help: "Frames produced per source strategy",
	}, []string{"source"})

	frameSourceSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcrelay_frame_source_switch_total",
		Help: "Transitions of the active frame source",
	}, []string{"to"})

	whepFramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcrelay_whep_frames_received_total",
		Help: "Total number of samples received on the WHEP downlink",
	})
)

// IncFramesEnqueued counts one frame pushed into the bridge.
func IncFramesEnqueued() {
	framesEnqueued.Inc()
}

// IncFramesDropped counts one dropped frame.
func IncFramesDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}

// SetBridgeDepth records the current bridge depth.
func SetBridgeDepth(depth int) {
	bridgeDepth.Set(float64(depth))
}

// IncFramesSent counts one sample written to the uplink.
func IncFramesSent() {
	framesSent.Inc()
}

// ObserveFrameSource counts one frame produced by source.
func ObserveFrameSource(source string) {
	frameSourceSelected.WithLabelValues(source).Inc()
}

// IncFrameSourceSwitch counts a change of the active source.
func IncFrameSourceSwitch(to string) {
	frameSourceSwitches.WithLabelValues(to).Inc()
}

// IncWhepFramesReceived counts one inbound sample.
func IncWhepFramesReceived() {
	whepFramesReceived.Inc()
}
