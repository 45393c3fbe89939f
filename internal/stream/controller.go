// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream owns the outbound WHIP session: remote stream creation,
// negotiation, the per-tick publish loop, remote status polling, live
// pipeline updates and teardown.
//
// Lifecycle operations (Start, Stop, Restart, UpdatePipeline) serialize on one
// mutex. Everything Status reads lives behind a separate lock, so a status
// request never waits for a transition that is talking to the remote.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/rtcrelay/internal/controlplane"
	"github.com/ManuGH/rtcrelay/internal/framebridge"
	"github.com/ManuGH/rtcrelay/internal/framesource"
	"github.com/ManuGH/rtcrelay/internal/fsm"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/metrics"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/rtc"
	"github.com/ManuGH/rtcrelay/internal/store"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
	"github.com/ManuGH/rtcrelay/internal/throttle"
)

const (
	tracerName = "github.com/ManuGH/rtcrelay/internal/stream"

	settingsKey = "stream_settings"

	DefaultStatusInterval = throttle.DefaultInterval
	DefaultStatusTimeout  = 15 * time.Second
	DefaultPollDelay      = 500 * time.Millisecond
	DefaultPollInterval   = 5 * time.Second
	DefaultStopTimeout    = 5 * time.Second

	recordTimeout = 5 * time.Second
)

// ControlPlane is the subset of the remote API the controller uses.
type ControlPlane interface {
	CreateStream(ctx context.Context, name string, cfg controlplane.PipelineConfig) (controlplane.StreamInfo, error)
	StreamStatus(ctx context.Context, id string) (controlplane.RemoteStatus, error)
	UpdateStream(ctx context.Context, id string, cfg controlplane.PipelineConfig) (map[string]any, error)
}

// Uplink is an established publish transport.
type Uplink interface {
	WriteSample(data []byte, duration time.Duration, prevDropped uint16) error
	Done() <-chan struct{}
	Close() error
}

// Dialer negotiates an Uplink with a WHIP endpoint.
type Dialer interface {
	Dial(ctx context.Context, opts rtc.PublishOptions) (Uplink, error)
}

type publisherDialer struct {
	p *rtc.Publisher
}

// NewPublisherDialer adapts an rtc.Publisher to Dialer.
func NewPublisherDialer(p *rtc.Publisher) Dialer {
	return publisherDialer{p: p}
}

func (d publisherDialer) Dial(ctx context.Context, opts rtc.PublishOptions) (Uplink, error) {
	u, err := d.p.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// PipelineStore persists the cached default pipeline config.
type PipelineStore interface {
	Load() (map[string]any, bool, error)
	Save(cfg map[string]any) error
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	LoadSettings(ctx context.Context, key string, v any) (bool, error)
	SaveSettings(ctx context.Context, key string, v any) error
}

// SessionRecorder keeps the session history.
type SessionRecorder interface {
	RecordSessionStart(ctx context.Context, rec store.SessionRecord) error
	RecordSessionEnd(ctx context.Context, id string, endedAt time.Time, framesSent uint64, reason string) error
}

// Options wires a Controller. Bridge, Dialer, Encoders and Pipelines are
// required. A nil ControlPlane makes Start fail until SetControlPlane is called.
type Options struct {
	Bridge        *framebridge.Bridge
	ControlPlane  ControlPlane
	Dialer        Dialer
	Encoders      EncoderFactory
	Pipelines     PipelineStore
	SettingsStore SettingsStore
	Recorder      SessionRecorder

	// Settings are the defaults used until persisted settings exist.
	Settings     Settings
	FFmpegBinary string

	StatusInterval time.Duration
	StatusTimeout  time.Duration
	PollDelay      time.Duration
	PollInterval   time.Duration
	StopTimeout    time.Duration
}

// Controller is the outbound session state machine.
type Controller struct {
	bridge    *framebridge.Bridge
	dialer    Dialer
	encoders  EncoderFactory
	pipelines PipelineStore
	settingsS SettingsStore
	recorder  SessionRecorder
	binary    string

	statusInterval time.Duration
	statusTimeout  time.Duration
	pollDelay      time.Duration
	pollInterval   time.Duration
	stopTimeout    time.Duration

	machine *fsm.Machine[Phase, event]

	// mu serializes lifecycle operations.
	mu sync.Mutex

	stateMu   sync.RWMutex
	cp        ControlPlane
	sess      *session
	remote    RemoteSnapshot
	settings  Settings
	lastError string
}

// NewController validates opts and loads persisted settings.
func NewController(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Bridge == nil || opts.Dialer == nil || opts.Encoders == nil || opts.Pipelines == nil {
		return nil, relayerr.Configf("stream controller: bridge, dialer, encoders and pipelines are required")
	}
	settings := opts.Settings
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}
	settings, err := settings.Normalize()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		bridge:         opts.Bridge,
		dialer:         opts.Dialer,
		encoders:       opts.Encoders,
		pipelines:      opts.Pipelines,
		settingsS:      opts.SettingsStore,
		recorder:       opts.Recorder,
		binary:         opts.FFmpegBinary,
		statusInterval: orDefault(opts.StatusInterval, DefaultStatusInterval),
		statusTimeout:  orDefault(opts.StatusTimeout, DefaultStatusTimeout),
		pollDelay:      orDefault(opts.PollDelay, DefaultPollDelay),
		pollInterval:   orDefault(opts.PollInterval, DefaultPollInterval),
		stopTimeout:    orDefault(opts.StopTimeout, DefaultStopTimeout),
		machine:        newMachine(),
		cp:             opts.ControlPlane,
		settings:       settings,
	}

	if c.settingsS != nil {
		var persisted Settings
		ok, err := c.settingsS.LoadSettings(ctx, settingsKey, &persisted)
		switch {
		case err != nil:
			logger := log.WithComponentFromContext(ctx, "stream")
			logger.Warn().Err(err).Str(log.FieldEvent, "stream.settings_load_failed").Msg("using default stream settings")
		case ok:
			if n, err := persisted.Normalize(); err == nil {
				c.settings = n
			}
		}
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// SetControlPlane replaces the remote client, e.g. after credentials change.
// A running session keeps polling through the client it was started with.
func (c *Controller) SetControlPlane(cp ControlPlane) {
	c.stateMu.Lock()
	c.cp = cp
	c.stateMu.Unlock()
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase { return c.machine.State() }

// Start creates a remote stream and publishes to it. When a session with the
// same pipeline fingerprint is already streaming it is returned unchanged;
// a different fingerprint replaces it. On error the controller is Idle and
// no transport is left open.
func (c *Controller) Start(ctx context.Context, name string, override map[string]any) (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx, name, override)
}

// Restart stops any running session and starts a new one.
func (c *Controller) Restart(ctx context.Context, name string, override map[string]any) (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(ctx, "restart")
	return c.startLocked(ctx, name, override)
}

// Stop ends the running session. It always succeeds and leaves the controller Idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(ctx, "stopped")
	return nil
}

func (c *Controller) startLocked(ctx context.Context, name string, override map[string]any) (info SessionInfo, err error) {
	began := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "rtcrelay.stream.start")
	defer func() { telemetry.EndSpan(span, err) }()
	logger := log.WithComponentFromContext(ctx, "stream")

	cfg, err := c.resolvePipeline(override)
	if err != nil {
		metrics.IncSessionStart("config_error")
		return SessionInfo{}, err
	}
	fp := cfg.Fingerprint()

	if s := c.current(); s != nil {
		if c.machine.State() == PhaseStreaming && !isDone(s) && c.fingerprint(s) == fp {
			metrics.IncSessionStart("reused")
			logger.Info().
				Str(log.FieldEvent, "stream.start_reused").
				Str(log.FieldSessionID, s.id).
				Msg("session already streaming with this pipeline")
			info := c.sessionInfo(s)
			info.Reused = true
			return info, nil
		}
	}

	cp := c.controlPlane()
	if cp == nil {
		metrics.IncSessionStart("config_error")
		return SessionInfo{}, relayerr.Configf("control plane api key is not configured")
	}
	if c.current() != nil {
		c.stopLocked(ctx, "pipeline changed")
	}

	c.machine.MustFire(ctx, evCreate)
	streamName := controlplane.NormalizeStreamName(name)
	remote, err := cp.CreateStream(ctx, streamName, cfg)
	if err != nil {
		return SessionInfo{}, c.failStart(ctx, err)
	}
	span.SetAttributes(telemetry.SessionAttributes(remote.ID, remote.Name, remote.PlaybackID)...)
	c.setEvent(nil, EventStreamCreated, "remote stream "+remote.ID+" created")
	c.machine.MustFire(ctx, evCreated)

	settings := c.Settings()
	enc, err := c.encoders(ctx, settings)
	if err != nil {
		return SessionInfo{}, c.failStart(ctx, err)
	}

	runCtx, cancel := context.WithCancel(log.ContextWithSessionID(context.WithoutCancel(ctx), remote.ID))
	s := &session{
		id:        remote.ID,
		owner:     "whip:" + remote.ID,
		info:      remote,
		pipeline:  cfg,
		fp:        fp,
		settings:  settings,
		startedAt: time.Now().UTC(),
		encoder:   enc,
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.status = throttle.New(c.statusInterval, c.statusFetcher(cp, s), throttle.WithFetchTimeout(c.statusTimeout))
	c.setSession(s)

	uplink, err := c.dialer.Dial(ctx, rtc.PublishOptions{
		URL:     remote.WhipURL,
		Codec:   enc.Codec(),
		OnEvent: c.rtcEvents(s),
	})
	if err != nil {
		cancel()
		_ = enc.Close()
		c.clearSession(s)
		return SessionInfo{}, c.failStart(ctx, err)
	}

	source := framesource.Build(runCtx, c.bridge, framesource.Config{
		Width:             settings.FrameWidth,
		Height:            settings.FrameHeight,
		FPS:               settings.FrameRate,
		Passthrough:       enc.Passthrough(),
		FallbackMedia:     settings.FallbackMedia,
		FallbackImagesDir: settings.FallbackImagesDir,
		FFmpegBinary:      c.binary,
	})
	c.stateMu.Lock()
	s.uplink = uplink
	s.source = source
	c.stateMu.Unlock()
	if !c.bridge.Attach(s.owner) {
		logger.Warn().Str(log.FieldEvent, "stream.bridge_busy").Msg("frame bridge already has a consumer")
	}

	c.machine.MustFire(ctx, evNegotiated)
	c.setEvent(s, EventWhipEstablished, "WHIP session established")
	c.setLastError("")

	if c.recorder != nil {
		if err := c.recorder.RecordSessionStart(ctx, store.SessionRecord{
			ID:          s.id,
			StreamName:  remote.Name,
			PlaybackID:  remote.PlaybackID,
			WhipURL:     remote.WhipURL,
			Pipeline:    cfg.Pipeline,
			Fingerprint: fp,
			Codec:       string(enc.Codec()),
			StartedAt:   s.startedAt,
		}); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "stream.record_failed").Msg("session history not recorded")
		}
	}

	metrics.IncSessionStart("ok")
	metrics.ObserveSessionStartupLatency(time.Since(began))
	metrics.SetSessionActive("whip", true)
	logger.Info().
		Str(log.FieldEvent, "stream.started").
		Str(log.FieldSessionID, s.id).
		Str(log.FieldStreamName, remote.Name).
		Str(log.FieldPlaybackID, remote.PlaybackID).
		Str(log.FieldPipeline, cfg.Pipeline).
		Str(log.FieldCodec, string(enc.Codec())).
		Str(log.FieldResolution, fmt.Sprintf("%dx%d", settings.FrameWidth, settings.FrameHeight)).
		Int(log.FieldFPS, settings.FrameRate).
		Msg("outbound session streaming")

	go c.runSession(s)
	return c.sessionInfo(s), nil
}

// failStart rolls a half-started session back to Idle.
func (c *Controller) failStart(ctx context.Context, err error) error {
	c.machine.MustFire(ctx, evFail)
	c.setLastError(err.Error())
	metrics.IncSessionStart(startResult(err))
	logger := log.WithComponentFromContext(ctx, "stream")
	logger.Error().
		Str(log.FieldEvent, "stream.start_failed").
		Str("code", relayerr.Code(err)).
		Err(err).
		Msg("outbound session start failed")
	return err
}

func startResult(err error) string {
	switch {
	case errors.Is(err, relayerr.ErrConfig):
		return "config_error"
	case errors.Is(err, relayerr.ErrNetworkTimeout):
		return "timeout"
	case errors.Is(err, relayerr.ErrNegotiation):
		return "negotiation_error"
	case errors.Is(err, relayerr.ErrRuntime):
		return "runtime_error"
	default:
		return "remote_error"
	}
}

func (c *Controller) runSession(s *session) {
	err := s.run(c.pollDelay, c.pollInterval)
	close(s.done)
	if err == nil {
		return
	}

	// The session ended on its own; return the controller to Idle unless a
	// lifecycle operation already replaced it.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current() != s {
		return
	}
	log.L().Warn().
		Str(log.FieldEvent, "stream.session_ended").
		Str(log.FieldSessionID, s.id).
		Err(err).
		Msg("outbound session ended")
	c.setLastError(err.Error())
	c.teardownLocked(s, err.Error())
	c.machine.MustFire(context.Background(), evPeerClosed)
	c.setEvent(nil, EventStopped, err.Error())
}

func (c *Controller) stopLocked(ctx context.Context, reason string) {
	s := c.current()
	if s == nil {
		return
	}
	c.machine.MustFire(ctx, evStop)
	s.cancel()

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		logger := log.WithComponentFromContext(ctx, "stream")
		logger.Warn().
			Str(log.FieldEvent, "stream.stop_forced").
			Str(log.FieldSessionID, s.id).
			Dur("timeout", c.stopTimeout).
			Msg("session task did not exit in time; closing transport")
	}

	c.teardownLocked(s, reason)
	c.machine.MustFire(ctx, evStopped)
	c.setEvent(nil, EventStopped, reason)
	logger := log.WithComponentFromContext(ctx, "stream")
	logger.Info().
		Str(log.FieldEvent, "stream.stopped").
		Str(log.FieldSessionID, s.id).
		Str("reason", reason).
		Uint64("frames_sent", s.framesSent.Load()).
		Msg("outbound session stopped")
}

// teardownLocked releases everything a session holds. The caller owns c.mu.
func (c *Controller) teardownLocked(s *session, reason string) {
	s.cancel()
	if s.uplink != nil {
		_ = s.uplink.Close()
	}
	_ = s.encoder.Close()
	if s.source != nil {
		_ = s.source.Close()
	}
	c.bridge.Detach(s.owner)
	c.clearSession(s)
	metrics.SetSessionActive("whip", false)

	if c.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.RecordSessionEnd(ctx, s.id, time.Now().UTC(), s.framesSent.Load(), reason); err != nil {
			log.L().Warn().Err(err).Str(log.FieldEvent, "stream.record_failed").Msg("session end not recorded")
		}
	}
}

// Status returns the controller state. With refresh set the remote status is
// fetched, at most once per status interval.
func (c *Controller) Status(ctx context.Context, refresh bool) Status {
	if refresh {
		if s := c.current(); s != nil {
			before := s.status.Fetches()
			if _, err := s.status.Get(ctx, false); err != nil {
				logger := log.WithComponentFromContext(ctx, "stream")
				logger.Debug().Err(err).Str(log.FieldEvent, "stream.status_refresh_failed").Msg("remote status refresh failed")
			}
			if s.status.Fetches() == before {
				metrics.IncStatusFetch("throttled")
			}
		}
	}

	stats := c.bridge.Stats()
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	st := Status{
		Phase:        c.machine.State(),
		RemoteStatus: c.remote,
		QueueDepth:   stats.Depth,
		QueueStats:   stats,
		Settings:     c.settings,
		LastError:    c.lastError,
	}
	if s := c.sess; s != nil && s.uplink != nil {
		info := c.sessionInfoLocked(s)
		st.Session = &info
		st.SessionID = info.SessionID
		st.PlaybackID = info.PlaybackID
		st.WhipURL = info.WhipURL
		st.Running = true
		st.FramesSent = s.framesSent.Load()
		st.FramesDrop = s.dropped.Load()
		if s.source != nil {
			st.FrameSource = string(s.source.Current())
		}
	}
	return st
}

// EnqueueFrame hands a producer frame to the bridge. It works in every phase;
// frames wait in the bounded bridge until a session consumes them.
func (c *Controller) EnqueueFrame(f media.Frame) error {
	if err := f.Validate(); err != nil {
		return relayerr.Configf("%v", err)
	}
	c.bridge.Enqueue(f)
	return nil
}

// UpdatePipeline deep-merges partial into the running session's pipeline and
// sends it to the remote without renegotiating. The stored config is swapped
// only after the remote accepted it.
func (c *Controller) UpdatePipeline(ctx context.Context, partial map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current()
	if s == nil || c.machine.State() != PhaseStreaming {
		return nil, relayerr.Conflictf("no active stream to update")
	}
	c.stateMu.RLock()
	base := s.pipeline
	c.stateMu.RUnlock()

	merged, err := base.Merge(partial)
	if err != nil {
		return nil, err
	}

	logger := log.WithComponentFromContext(ctx, "stream")
	cp := c.controlPlane()
	if cp == nil {
		return nil, relayerr.Configf("control plane api key is not configured")
	}
	if _, err := cp.UpdateStream(ctx, s.id, merged); err != nil {
		logger.Warn().
			Str(log.FieldEvent, "stream.pipeline_update_failed").
			Str(log.FieldSessionID, s.id).
			Str("code", relayerr.Code(err)).
			Err(err).
			Msg("pipeline update rejected")
		return nil, err
	}

	c.stateMu.Lock()
	s.pipeline = merged
	s.fp = merged.Fingerprint()
	c.stateMu.Unlock()
	c.setEvent(s, EventPipelineUpdated, "pipeline parameters updated")
	logger.Info().
		Str(log.FieldEvent, "stream.pipeline_updated").
		Str(log.FieldSessionID, s.id).
		Str(log.FieldPipeline, merged.Pipeline).
		Msg("pipeline updated")
	return merged.Map(), nil
}

// Settings returns the settings the next session will use.
func (c *Controller) Settings() Settings {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.settings
}

// UpdateSettings applies p, persists the result and returns it. A running
// session keeps its settings until it is restarted.
func (c *Controller) UpdateSettings(ctx context.Context, p SettingsPatch) (Settings, error) {
	c.stateMu.Lock()
	next, err := c.settings.Apply(p)
	if err != nil {
		c.stateMu.Unlock()
		return Settings{}, err
	}
	c.settings = next
	c.stateMu.Unlock()

	if c.settingsS != nil {
		if err := c.settingsS.SaveSettings(ctx, settingsKey, next); err != nil {
			logger := log.WithComponentFromContext(ctx, "stream")
			logger.Warn().Err(err).Str(log.FieldEvent, "stream.settings_save_failed").Msg("stream settings not persisted")
		}
	}
	return next, nil
}

// CachePipeline validates cfg and stores it as the default pipeline.
func (c *Controller) CachePipeline(cfg map[string]any) (map[string]any, error) {
	parsed, err := controlplane.ParsePipelineConfig(cfg)
	if err != nil {
		return nil, err
	}
	out := parsed.Map()
	if err := c.pipelines.Save(out); err != nil {
		return nil, err
	}
	log.L().Info().Str(log.FieldEvent, "stream.pipeline_cached").Str(log.FieldPipeline, parsed.Pipeline).Msg("default pipeline cached")
	return out, nil
}

// CachedPipeline returns the stored default pipeline, or the built-in default.
func (c *Controller) CachedPipeline() (map[string]any, error) {
	cfg, err := c.resolvePipeline(nil)
	if err != nil {
		return nil, err
	}
	return cfg.Map(), nil
}

func (c *Controller) resolvePipeline(override map[string]any) (controlplane.PipelineConfig, error) {
	raw, ok, err := c.pipelines.Load()
	if err != nil {
		return controlplane.PipelineConfig{}, relayerr.Configf("load cached pipeline: %v", err)
	}
	var base controlplane.PipelineConfig
	if ok {
		base, err = controlplane.ParsePipelineConfig(raw)
	} else {
		base, err = controlplane.ParsePipelineConfig(nil)
	}
	if err != nil {
		return controlplane.PipelineConfig{}, err
	}
	if override == nil {
		return base, nil
	}
	return base.Merge(override)
}

// statusFetcher polls the remote for s. A non-2xx answer still yields a
// snapshot carrying http_status, so it is stored rather than treated as a failure.
func (c *Controller) statusFetcher(cp ControlPlane, s *session) throttle.FetchFunc[controlplane.RemoteStatus] {
	return func(ctx context.Context) (controlplane.RemoteStatus, error) {
		snap, err := cp.StreamStatus(ctx, s.id)
		var apiErr *relayerr.RemoteAPIError
		if err != nil && !(errors.As(err, &apiErr) && snap.HTTPStatus != 0) {
			return snap, err
		}

		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		if c.sess != s {
			return snap, nil
		}
		if whep := snap.WhepURL(); whep != "" {
			s.info.WhepURL = whep
		}
		polled := snap.PolledAt
		if polled.IsZero() {
			polled = time.Now().UTC()
		}
		c.remote = RemoteSnapshot{
			Phase:        EventRemoteStatus,
			Detail:       snap.State(),
			HTTPStatus:   snap.HTTPStatus,
			Body:         snap.Body,
			Timestamp:    polled,
			LastPolledAt: &polled,
		}
		return snap, nil
	}
}

// rtcEvents maps transport events onto phase events of s.
func (c *Controller) rtcEvents(s *session) rtc.EventFunc {
	return func(ev rtc.Event) {
		switch ev.Kind {
		case rtc.EventOfferSent:
			c.setEvent(s, EventWhipOffer, "sending SDP offer")
		case rtc.EventAnswerReceived:
			c.setEvent(s, EventWhipAnswer, "received SDP answer")
		case rtc.EventICEState:
			c.setEvent(s, "ICE_"+strings.ToUpper(ev.State), "ICE connection state change")
		case rtc.EventPeerState:
			c.setEvent(s, "PEER_"+strings.ToUpper(ev.State), "peer connection state change")
		}
	}
}

// setEvent records a phase event. Events of a session that is no longer
// current are ignored; a nil session records unconditionally.
func (c *Controller) setEvent(s *session, phase, detail string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if s != nil && c.sess != s {
		return
	}
	c.remote = RemoteSnapshot{Phase: phase, Detail: detail, Timestamp: time.Now().UTC()}
}

func (c *Controller) setLastError(msg string) {
	c.stateMu.Lock()
	c.lastError = msg
	c.stateMu.Unlock()
}

func (c *Controller) current() *session {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.sess
}

func (c *Controller) setSession(s *session) {
	c.stateMu.Lock()
	c.sess = s
	c.stateMu.Unlock()
}

func (c *Controller) clearSession(s *session) {
	c.stateMu.Lock()
	if c.sess == s {
		c.sess = nil
	}
	c.stateMu.Unlock()
}

func (c *Controller) controlPlane() ControlPlane {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.cp
}

func (c *Controller) fingerprint(s *session) string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return s.fp
}

func (c *Controller) sessionInfo(s *session) SessionInfo {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.sessionInfoLocked(s)
}

func (c *Controller) sessionInfoLocked(s *session) SessionInfo {
	return SessionInfo{
		SessionID:  s.id,
		StreamName: s.info.Name,
		WhipURL:    s.info.WhipURL,
		WhepURL:    s.info.WhepURL,
		PlaybackID: s.info.PlaybackID,
		Pipeline:   s.pipeline.Map(),
		Codec:      string(s.encoder.Codec()),
		StartedAt:  s.startedAt,
	}
}

func isDone(s *session) bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
