// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	l := NewLoader("")
	l.lookup = mapLookup(nil)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 90, cfg.Stream.QueueCapacity)
	assert.Equal(t, filepath.Join("data", "rtcrelay.db"), cfg.Storage.DBPath())
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "127.0.0.1:9000"
stream:
  frame_rate: 24
  fallback_media: /media/loop.ivf
  encoder: passthrough
  codec: h264
control_plane:
  status_interval: 10s
rtc:
  ice_servers: ["stun:example.test:3478"]
`)
	l := NewLoader(path)
	l.lookup = mapLookup(nil)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, 24, cfg.Stream.FrameRate)
	assert.Equal(t, 1280, cfg.Stream.FrameWidth, "unset keys keep defaults")
	assert.Equal(t, "/media/loop.ivf", cfg.Stream.FallbackMedia)
	assert.Equal(t, 10*time.Second, cfg.ControlPlane.StatusInterval)
	assert.Equal(t, []string{"stun:example.test:3478"}, cfg.RTC.ICEServers)
}

func TestLoad_UnknownFieldIsRejected(t *testing.T) {
	path := writeConfig(t, "stream:\n  frame_rte: 30\n")
	l := NewLoader(path)
	l.lookup = mapLookup(nil)

	_, err := l.Load()
	require.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	l := NewLoader(writeConfig(t, ""))
	l.lookup = mapLookup(nil)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "stream:\n  frame_rate: 24\n")
	l := NewLoader(path)
	l.lookup = mapLookup(map[string]string{
		"RELAY_FRAME_RATE":  "60",
		"DAYDREAM_API_URL":  "https://alias.test",
		"DAYDREAM_API_KEY":  "alias-key",
		"RELAY_API_KEY":     "relay-key",
		"RELAY_WHEP_DECODE": "yes",
		"RELAY_ICE_SERVERS": "stun:a.test:1, turn:b.test:2",
		"RELAY_FRAME_WIDTH": "not-a-number",
	})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Stream.FrameRate)
	assert.Equal(t, "https://alias.test", cfg.ControlPlane.BaseURL)
	assert.Equal(t, "relay-key", cfg.ControlPlane.APIKey, "RELAY_ wins over the alias")
	assert.True(t, cfg.WHEP.Decode)
	assert.Equal(t, []string{"stun:a.test:1", "turn:b.test:2"}, cfg.RTC.ICEServers)
	assert.Equal(t, 1280, cfg.Stream.FrameWidth, "invalid values keep the previous value")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }},
		{"zero frame rate", func(c *Config) { c.Stream.FrameRate = 0 }},
		{"negative width", func(c *Config) { c.Stream.FrameWidth = -1 }},
		{"unknown encoder", func(c *Config) { c.Stream.Encoder = "gstreamer" }},
		{"h264 with ffmpeg", func(c *Config) { c.Stream.Codec = "h264" }},
		{"relative base url", func(c *Config) { c.ControlPlane.BaseURL = "api.test" }},
		{"bad ice server", func(c *Config) { c.RTC.ICEServers = []string{"example.test"} }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad sampling", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, Validate(cfg), relayerr.ErrConfig)
		})
	}
}

func TestHolder_ReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	l := NewLoader(path)
	l.lookup = mapLookup(nil)
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)
	assert.Equal(t, "debug", (<-ch).Log.Level)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: shouting\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level, "invalid reload keeps the current config")
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "stream:\n  frame_rate: 30\n")
	l := NewLoader(path)
	l.lookup = mapLookup(nil)
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// Rewrite now and then in case the watcher was not yet registered; writes
	// closer together than the debounce would keep postponing the reload.
	ticks := 0
	require.Eventually(t, func() bool {
		if ticks%5 == 0 {
			_ = os.WriteFile(path, []byte("stream:\n  frame_rate: 15\n"), 0o600)
		}
		ticks++
		return h.Get().Stream.FrameRate == 15
	}, 10*time.Second, 200*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
