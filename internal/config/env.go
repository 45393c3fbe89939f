// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rtcrelay/internal/log"
)

// envSource reads RELAY_* variables and logs where each value came from.
type envSource struct {
	lookup func(string) (string, bool)
	logger zerolog.Logger
}

// first returns the first non-empty variable among keys.
func (e envSource) first(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
			return key, strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

func (e envSource) str(dst *string, keys ...string) {
	key, v, ok := e.first(keys...)
	if !ok {
		return
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "key") || strings.Contains(lower, "token") || strings.Contains(lower, "password") {
		e.logger.Debug().Str("key", key).Str("source", "environment").Bool("sensitive", true).Msg("using environment variable")
	} else {
		e.logger.Debug().Str("key", key).Str("value", v).Str("source", "environment").Msg("using environment variable")
	}
	*dst = v
}

func (e envSource) integer(dst *int, keys ...string) {
	key, v, ok := e.first(keys...)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Int("default", *dst).Msg("invalid integer in environment variable, using default")
		return
	}
	*dst = i
}

func (e envSource) duration(dst *time.Duration, keys ...string) {
	key, v, ok := e.first(keys...)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Dur("default", *dst).Msg("invalid duration in environment variable, using default")
		return
	}
	*dst = d
}

func (e envSource) boolean(dst *bool, keys ...string) {
	key, v, ok := e.first(keys...)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.logger.Warn().Str("key", key).Str("value", v).Bool("default", *dst).Msg("invalid boolean in environment variable, using default")
	}
}

func (e envSource) float(dst *float64, keys ...string) {
	key, v, ok := e.first(keys...)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Float64("default", *dst).Msg("invalid float in environment variable, using default")
		return
	}
	*dst = f
}

func (e envSource) list(dst *[]string, keys ...string) {
	_, v, ok := e.first(keys...)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// applyEnv overlays environment variables onto cfg. DAYDREAM_API_URL and
// DAYDREAM_API_KEY are accepted as aliases for the control-plane settings.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	e := envSource{lookup: lookup, logger: log.WithComponent("config")}

	e.str(&cfg.Server.Listen, "RELAY_LISTEN")
	e.integer(&cfg.Server.MaxConns, "RELAY_MAX_CONNS")
	e.integer(&cfg.Server.RateLimit, "RELAY_RATE_LIMIT")
	e.str(&cfg.Server.APIToken, "RELAY_API_TOKEN")
	e.list(&cfg.Server.CORSOrigins, "RELAY_CORS_ORIGINS")
	e.duration(&cfg.Server.ShutdownTimeout, "RELAY_SHUTDOWN_TIMEOUT")

	e.str(&cfg.Log.Level, "RELAY_LOG_LEVEL")

	e.str(&cfg.ControlPlane.BaseURL, "RELAY_API_URL", "DAYDREAM_API_URL")
	e.str(&cfg.ControlPlane.APIKey, "RELAY_API_KEY", "DAYDREAM_API_KEY")
	e.duration(&cfg.ControlPlane.Timeout, "RELAY_API_TIMEOUT")
	e.duration(&cfg.ControlPlane.StatusInterval, "RELAY_STATUS_INTERVAL")

	e.integer(&cfg.Stream.FrameRate, "RELAY_FRAME_RATE")
	e.integer(&cfg.Stream.FrameWidth, "RELAY_FRAME_WIDTH")
	e.integer(&cfg.Stream.FrameHeight, "RELAY_FRAME_HEIGHT")
	e.str(&cfg.Stream.FallbackMedia, "RELAY_FALLBACK_MEDIA")
	e.str(&cfg.Stream.FallbackImagesDir, "RELAY_FALLBACK_IMAGES_DIR")
	e.integer(&cfg.Stream.QueueCapacity, "RELAY_QUEUE_CAPACITY")
	e.str(&cfg.Stream.Encoder, "RELAY_ENCODER")
	e.str(&cfg.Stream.Codec, "RELAY_CODEC")
	e.integer(&cfg.Stream.BitrateKbps, "RELAY_BITRATE_KBPS")
	e.str(&cfg.Stream.FFmpegBinary, "RELAY_FFMPEG_BIN")

	e.boolean(&cfg.WHEP.Decode, "RELAY_WHEP_DECODE")
	e.integer(&cfg.WHEP.Width, "RELAY_WHEP_WIDTH")
	e.integer(&cfg.WHEP.Height, "RELAY_WHEP_HEIGHT")

	e.list(&cfg.RTC.ICEServers, "RELAY_ICE_SERVERS")

	e.str(&cfg.Storage.DataDir, "RELAY_DATA_DIR")

	e.str(&cfg.Redis.Addr, "RELAY_REDIS_ADDR")
	e.str(&cfg.Redis.Password, "RELAY_REDIS_PASSWORD")
	e.integer(&cfg.Redis.DB, "RELAY_REDIS_DB")

	e.boolean(&cfg.Telemetry.Enabled, "RELAY_TRACING_ENABLED")
	e.str(&cfg.Telemetry.Exporter, "RELAY_OTLP_EXPORTER")
	e.str(&cfg.Telemetry.Endpoint, "RELAY_OTLP_ENDPOINT")
	e.float(&cfg.Telemetry.SamplingRate, "RELAY_TRACING_SAMPLING_RATE")
}
