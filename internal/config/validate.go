// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// Validate reports every problem in cfg at once. Each error matches relayerr.ErrConfig.
// A missing API key is not an error here; stream start reports it instead.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, relayerr.Configf(format, args...))
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		add("server.listen must not be empty")
	}
	if cfg.Server.MaxConns < 0 {
		add("server.max_conns must not be negative")
	}
	if cfg.Server.RateLimit < 0 {
		add("server.rate_limit must not be negative")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
			add("log.level %q is not a valid level", cfg.Log.Level)
		}
	}

	if u, err := url.Parse(cfg.ControlPlane.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("control_plane.base_url %q must be an absolute http(s) URL", cfg.ControlPlane.BaseURL)
	}
	if cfg.ControlPlane.Timeout <= 0 || cfg.ControlPlane.StatusTimeout <= 0 {
		add("control_plane timeouts must be positive")
	}
	if cfg.ControlPlane.StatusInterval <= 0 {
		add("control_plane.status_interval must be positive")
	}

	if cfg.Stream.FrameRate <= 0 {
		add("stream.frame_rate must be positive, got %d", cfg.Stream.FrameRate)
	}
	if cfg.Stream.FrameWidth <= 0 || cfg.Stream.FrameHeight <= 0 {
		add("stream frame size must be positive, got %dx%d", cfg.Stream.FrameWidth, cfg.Stream.FrameHeight)
	}
	if cfg.Stream.QueueCapacity <= 0 {
		add("stream.queue_capacity must be positive")
	}
	switch strings.ToLower(cfg.Stream.Encoder) {
	case "ffmpeg", "passthrough":
	default:
		add("stream.encoder must be ffmpeg or passthrough, got %q", cfg.Stream.Encoder)
	}
	switch strings.ToLower(cfg.Stream.Codec) {
	case "vp8":
	case "h264":
		if strings.EqualFold(cfg.Stream.Encoder, "ffmpeg") {
			add("stream.codec h264 requires the passthrough encoder")
		}
	default:
		add("stream.codec must be vp8 or h264, got %q", cfg.Stream.Codec)
	}

	if cfg.WHEP.Decode && (cfg.WHEP.Width <= 0 || cfg.WHEP.Height <= 0) {
		add("whep decode size must be positive, got %dx%d", cfg.WHEP.Width, cfg.WHEP.Height)
	}

	for _, s := range cfg.RTC.ICEServers {
		if !hasICEScheme(s) {
			add("rtc.ice_servers entry %q must start with stun:, stuns:, turn: or turns:", s)
		}
	}

	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		add("storage.data_dir must not be empty")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter must be grpc or http, got %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.sampling_rate must be within [0, 1]")
		}
	}

	return errors.Join(errs...)
}

func hasICEScheme(s string) bool {
	for _, p := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
