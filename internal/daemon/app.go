// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/rtcrelay/internal/config"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/stream"
)

// App owns the long-lived runtime lifecycle: the HTTP server, the config
// watcher and live application of reloaded settings.
type App struct {
	logger  zerolog.Logger
	holder  *config.Holder
	runtime *Runtime
	cfg     config.Config
}

// NewApp creates an App. holder may be nil when no reloads are wanted.
func NewApp(rt *Runtime, holder *config.Holder, cfg config.Config) (*App, error) {
	if rt == nil {
		return nil, ErrMissingRuntime
	}
	return &App{
		logger:  log.WithComponent("daemon"),
		holder:  holder,
		runtime: rt,
		cfg:     cfg,
	}, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", ErrServerStartFailed, a.cfg.Server.Listen, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is cancelled or the server fails, then
// shuts everything down. ln is closed on return.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, a.cfg.Server.MaxConns)
	}
	srv := &http.Server{
		Handler:           a.runtime.API.Handler(),
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout / 2,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		updates := make(chan config.Config, 1)
		a.holder.RegisterListener(updates)

		// Watcher is best-effort: startup should not fail if it cannot be started.
		g.Go(func() error {
			if err := a.holder.Watch(gctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case next := <-updates:
					a.applyConfig(gctx, next)
				}
			}
		})
	}

	g.Go(func() error {
		a.logger.Info().
			Str(log.FieldEvent, "api.server.listening").
			Str("addr", ln.Addr().String()).
			Int("max_conns", a.cfg.Server.MaxConns).
			Msg("API server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("API server failed")
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Str(log.FieldEvent, "daemon.shutdown").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
		if err := a.runtime.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			a.logger.Error().Err(err).Str(log.FieldEvent, "daemon.shutdown_failed").Msg("shutdown completed with errors")
			return err
		}
		a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
		return nil
	})

	return g.Wait()
}

// applyConfig applies the reloadable parts of next: log level, stream
// settings and the control-plane client. Server and storage settings need a
// restart.
func (a *App) applyConfig(ctx context.Context, next config.Config) {
	prev := a.cfg
	a.cfg.Log = next.Log
	a.cfg.Stream = next.Stream
	a.cfg.ControlPlane = next.ControlPlane

	if next.Log.Level != prev.Log.Level && log.SetLevel(next.Log.Level) {
		a.logger.Info().Str(log.FieldEvent, "config.log_level").Str("level", next.Log.Level).Msg("log level changed")
	}

	if patch, changed := settingsPatch(prev.Stream, next.Stream); changed {
		if s, err := a.runtime.Stream.UpdateSettings(ctx, patch); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.stream_settings_rejected").Msg("reloaded stream settings rejected")
		} else {
			a.logger.Info().
				Str(log.FieldEvent, "config.stream_settings").
				Int("frame_rate", s.FrameRate).
				Int("frame_width", s.FrameWidth).
				Int("frame_height", s.FrameHeight).
				Msg("stream settings applied to next session")
		}
	}

	if next.ControlPlane != prev.ControlPlane {
		client, err := newControlPlane(next.ControlPlane, a.runtime.statusCache)
		if err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.controlplane_rejected").Msg("control plane config rejected, keeping previous client")
		} else {
			a.runtime.Stream.SetControlPlane(client)
			a.logger.Info().Str(log.FieldEvent, "config.controlplane").Str("base_url", client.BaseURL()).Msg("control plane client replaced")
		}
	}

	if !reflect.DeepEqual(prev.Server, next.Server) || prev.Storage != next.Storage || !reflect.DeepEqual(prev.RTC, next.RTC) {
		a.logger.Warn().Str(log.FieldEvent, "config.restart_required").Msg("server, storage or rtc changes apply after restart")
	}
}

func settingsPatch(prev, next config.StreamConfig) (stream.SettingsPatch, bool) {
	var p stream.SettingsPatch
	changed := false
	if prev.FrameRate != next.FrameRate {
		p.FrameRate, changed = &next.FrameRate, true
	}
	if prev.FrameWidth != next.FrameWidth {
		p.FrameWidth, changed = &next.FrameWidth, true
	}
	if prev.FrameHeight != next.FrameHeight {
		p.FrameHeight, changed = &next.FrameHeight, true
	}
	if prev.FallbackMedia != next.FallbackMedia {
		p.FallbackMedia, changed = &next.FallbackMedia, true
	}
	if prev.FallbackImagesDir != next.FallbackImagesDir {
		p.FallbackImagesDir, changed = &next.FallbackImagesDir, true
	}
	return p, changed
}
