// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/rtcrelay/internal/api"
	"github.com/ManuGH/rtcrelay/internal/cache"
	"github.com/ManuGH/rtcrelay/internal/config"
	"github.com/ManuGH/rtcrelay/internal/control/middleware"
	"github.com/ManuGH/rtcrelay/internal/controlplane"
	"github.com/ManuGH/rtcrelay/internal/ffmpeg"
	"github.com/ManuGH/rtcrelay/internal/framebridge"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/rtc"
	"github.com/ManuGH/rtcrelay/internal/store"
	"github.com/ManuGH/rtcrelay/internal/stream"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
	"github.com/ManuGH/rtcrelay/internal/whep"
)

const memoryCacheJanitor = time.Minute

// Runtime is the wired service graph behind the HTTP API.
type Runtime struct {
	Stream *stream.Controller
	WHEP   *whep.Controller
	API    *api.Server
	Store  *store.Store

	statusCache cache.Cache
	closers     []namedCloser
}

type namedCloser struct {
	name string
	fn   func(ctx context.Context) error
}

// Bootstrap builds every component from cfg. A missing control-plane API key
// is not fatal; Start reports it until a reload supplies one.
func Bootstrap(ctx context.Context, cfg config.Config, ver string) (rt *Runtime, err error) {
	logger := log.WithComponent("daemon")
	rt = &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: ver,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	rt.addCloser("telemetry", tp.Shutdown)

	rt.statusCache = newStatusCache(ctx, cfg.Redis)
	if c, ok := rt.statusCache.(interface{ Close() error }); ok {
		rt.addCloser("status_cache", func(context.Context) error { return c.Close() })
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
		return rt, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(ctx, cfg.Storage.DBPath())
	if err != nil {
		return rt, err
	}
	rt.Store = st
	rt.addCloser("store", func(context.Context) error { return st.Close() })

	rtcAPI, err := rtc.NewAPI(cfg.RTC.ICEServers)
	if err != nil {
		return rt, fmt.Errorf("webrtc: %w", err)
	}
	publisher := rtc.NewPublisher(rtcAPI, rtc.NewSignaler("whip", nil, ""))
	subscriber := rtc.NewSubscriber(rtcAPI, rtc.NewSignaler("whep", nil, ""))

	encoders, err := stream.NewEncoderFactory(stream.EncoderOptions{
		Mode:        stream.EncoderMode(cfg.Stream.Encoder),
		Codec:       media.Codec(cfg.Stream.Codec),
		Binary:      cfg.Stream.FFmpegBinary,
		BitrateKbps: cfg.Stream.BitrateKbps,
	})
	if err != nil {
		return rt, err
	}

	var cp stream.ControlPlane
	if client, cpErr := newControlPlane(cfg.ControlPlane, rt.statusCache); cpErr != nil {
		if !errors.Is(cpErr, relayerr.ErrConfig) {
			return rt, cpErr
		}
		logger.Warn().Err(cpErr).Str(log.FieldEvent, "controlplane.unconfigured").Msg("control plane unavailable until configured")
	} else {
		cp = client
	}

	rt.Stream, err = stream.NewController(ctx, stream.Options{
		Bridge:         framebridge.New(cfg.Stream.QueueCapacity),
		ControlPlane:   cp,
		Dialer:         stream.NewPublisherDialer(publisher),
		Encoders:       encoders,
		Pipelines:      store.NewPipelineFile(cfg.Storage.PipelinePath()),
		SettingsStore:  st,
		Recorder:       st,
		Settings:       streamSettings(cfg.Stream),
		FFmpegBinary:   cfg.Stream.FFmpegBinary,
		StatusInterval: cfg.ControlPlane.StatusInterval,
		StatusTimeout:  cfg.ControlPlane.StatusTimeout,
		PollInterval:   cfg.Stream.PollInterval,
		StopTimeout:    cfg.Stream.StopTimeout,
	})
	if err != nil {
		return rt, err
	}
	rt.addCloser("stream", rt.Stream.Stop)

	var decoders whep.DecoderFactory
	if cfg.WHEP.Decode {
		decoders = whep.NewFFmpegDecoder(ffmpeg.DecoderConfig{
			Binary: cfg.Stream.FFmpegBinary,
			Width:  cfg.WHEP.Width,
			Height: cfg.WHEP.Height,
		})
	}
	rt.WHEP, err = whep.NewController(whep.Options{
		Subscriber:  whep.NewRTCSubscriber(subscriber),
		Decoders:    decoders,
		PLIInterval: cfg.WHEP.PLIInterval,
		StopTimeout: cfg.Stream.StopTimeout,
	})
	if err != nil {
		return rt, err
	}
	rt.addCloser("whep", rt.WHEP.Disconnect)

	rt.API, err = api.New(ctx, apiConfig(cfg, ver, tp.Enabled()), api.Deps{
		Stream:   rt.Stream,
		WHEP:     rt.WHEP,
		Sessions: st,
	})
	if err != nil {
		return rt, err
	}

	logger.Info().
		Str(log.FieldEvent, "daemon.bootstrapped").
		Str("encoder", cfg.Stream.Encoder).
		Str("codec", cfg.Stream.Codec).
		Bool("whep_decode", cfg.WHEP.Decode).
		Bool("tracing", tp.Enabled()).
		Bool("control_plane", cp != nil).
		Msg("runtime wired")
	return rt, nil
}

// Close releases components in reverse construction order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) addCloser(name string, fn func(context.Context) error) {
	rt.closers = append(rt.closers, namedCloser{name: name, fn: fn})
}

// newStatusCache prefers Redis and falls back to memory when it is unreachable.
func newStatusCache(ctx context.Context, cfg config.RedisConfig) cache.Cache {
	if cfg.Addr == "" {
		return cache.NewMemoryCache(memoryCacheJanitor)
	}
	logger := log.WithComponent("cache")
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "cache.redis_unavailable").Msg("falling back to in-memory status cache")
		return cache.NewMemoryCache(memoryCacheJanitor)
	}
	return rc
}

func newControlPlane(cfg config.ControlPlaneConfig, statusCache cache.Cache) (*controlplane.Client, error) {
	return controlplane.New(controlplane.Options{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Timeout:        cfg.Timeout,
		StatusTimeout:  cfg.StatusTimeout,
		MaxRetries:     cfg.MaxRetries,
		StatusCache:    statusCache,
		StatusCacheTTL: cfg.StatusInterval,
	})
}

func streamSettings(cfg config.StreamConfig) stream.Settings {
	return stream.Settings{
		FrameRate:         cfg.FrameRate,
		FrameWidth:        cfg.FrameWidth,
		FrameHeight:       cfg.FrameHeight,
		FallbackMedia:     cfg.FallbackMedia,
		FallbackImagesDir: cfg.FallbackImagesDir,
	}
}

func apiConfig(cfg config.Config, ver string, tracing bool) api.Config {
	stack := middleware.StackConfig{
		EnableCORS:            len(cfg.Server.CORSOrigins) > 0,
		AllowedOrigins:        cfg.Server.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		RateLimitPerMinute:    cfg.Server.RateLimit,
		APIToken:              cfg.Server.APIToken,
	}
	if tracing {
		stack.TracingService = "rtcrelay.http"
	}
	return api.Config{
		Stack:        stack,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Version:      ver,
	}
}
