// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the relay.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	RequestIDKey      = "http.requestId"
	APISurfaceKey     = "relay.api.surface"

	// Session attributes
	SessionIDKey     = "session.id"
	SessionPhaseKey  = "session.phase"
	StreamNameKey    = "stream.name"
	PlaybackIDKey    = "stream.playback_id"
	PipelineKey      = "stream.pipeline"
	StreamCodecKey   = "stream.codec"
	StreamWidthKey   = "stream.width"
	StreamHeightKey  = "stream.height"
	StreamFPSKey     = "stream.fps"
	SignalingKindKey = "signaling.kind"

	// Control plane attributes
	ControlPlaneOpKey = "controlplane.op"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates session span attributes. Empty values are omitted.
func SessionAttributes(sessionID, streamName, playbackID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if streamName != "" {
		attrs = append(attrs, attribute.String(StreamNameKey, streamName))
	}
	if playbackID != "" {
		attrs = append(attrs, attribute.String(PlaybackIDKey, playbackID))
	}
	return attrs
}

// MediaAttributes describes the outbound video track.
func MediaAttributes(codec string, width, height, fps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StreamCodecKey, codec),
		attribute.Int(StreamWidthKey, width),
		attribute.Int(StreamHeightKey, height),
		attribute.Int(StreamFPSKey, fps),
	}
}

// ControlPlaneAttributes tags a control-plane request span.
func ControlPlaneAttributes(op, streamID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(ControlPlaneOpKey, op)}
	if streamID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, streamID))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
