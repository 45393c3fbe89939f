// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rtcrelay/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Holder holds the active configuration and swaps it atomically on reload.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	logger  zerolog.Logger

	reloadMu  sync.Mutex
	listeners []chan<- Config
}

// NewHolder wraps an already loaded configuration.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration again. On failure the current
// configuration stays in place.
func (h *Holder) Reload(_ context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("new configuration rejected")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)
	for _, ch := range h.listeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn().Str(log.FieldEvent, "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// RegisterListener adds a channel that receives every successfully reloaded
// configuration. Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Watch reloads on file changes and on SIGHUP until ctx is done. The parent
// directory is watched so editors that replace the file by rename are seen.
// Without a config file only SIGHUP is handled.
func (h *Holder) Watch(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var errs <-chan error
	path := h.loader.Path()
	if path != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(filepath.Dir(path)); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch config dir: %w", err)
		}
		defer func() { _ = w.Close() }()
		events, errs = w.Events, w.Errors
		h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str("path", path).Msg("watching config file for changes")
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil
		case <-hup:
			h.logger.Info().Str(log.FieldEvent, "config.sighup").Msg("SIGHUP received")
			_ = h.Reload(ctx)
		case <-debounce.C:
			_ = h.Reload(ctx)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			h.logger.Debug().Str(log.FieldEvent, "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			debounce.Reset(reloadDebounce)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str(log.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

func (h *Holder) logChanges(prev, next Config) {
	if prev.Log.Level != next.Log.Level {
		h.logger.Info().Str("old", prev.Log.Level).Str("new", next.Log.Level).Msg("config changed: log.level")
	}
	if prev.Stream != next.Stream {
		h.logger.Info().Msg("config changed: stream settings")
	}
	if prev.ControlPlane.BaseURL != next.ControlPlane.BaseURL {
		h.logger.Info().Str("old", prev.ControlPlane.BaseURL).Str("new", next.ControlPlane.BaseURL).Msg("config changed: control_plane.base_url")
	}
	if prev.ControlPlane.APIKey != next.ControlPlane.APIKey {
		h.logger.Info().Bool("set", next.ControlPlane.APIKey != "").Msg("config changed: control_plane.api_key")
	}
}
