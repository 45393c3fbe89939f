// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package whep owns the inbound playback session. Arriving samples overwrite a
// single-slot mailbox that consumers observe with LatestFrame.
package whep

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"

	"github.com/ManuGH/rtcrelay/internal/ffmpeg"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/metrics"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/rtc"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
)

const (
	tracerName = "github.com/ManuGH/rtcrelay/internal/whep"

	DefaultPLIInterval = 3 * time.Second
	DefaultStopTimeout = 5 * time.Second
)

// Downlink is an established receive transport.
type Downlink interface {
	ReadRTP(ctx context.Context) (*rtp.Packet, string, error)
	RequestKeyframe() error
	Done() <-chan struct{}
	Close() error
}

// Subscriber negotiates a Downlink with a WHEP endpoint.
type Subscriber interface {
	Subscribe(ctx context.Context, opts rtc.SubscribeOptions) (Downlink, error)
}

type rtcSubscriber struct {
	s *rtc.Subscriber
}

// NewRTCSubscriber adapts an rtc.Subscriber to Subscriber.
func NewRTCSubscriber(s *rtc.Subscriber) Subscriber {
	return rtcSubscriber{s: s}
}

func (r rtcSubscriber) Subscribe(ctx context.Context, opts rtc.SubscribeOptions) (Downlink, error) {
	d, err := r.s.Subscribe(ctx, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Decoder turns VP8 RTP into raw frames.
type Decoder interface {
	WriteRTP(pkt *rtp.Packet) error
	Done() <-chan struct{}
	Close() error
}

// DecoderFactory starts one decoder per session. onFrame receives decoded frames.
type DecoderFactory func(ctx context.Context, onFrame func(media.Frame)) (Decoder, error)

// NewFFmpegDecoder returns a factory for ffmpeg decoders producing rgb24 at the configured size.
func NewFFmpegDecoder(cfg ffmpeg.DecoderConfig) DecoderFactory {
	return func(ctx context.Context, onFrame func(media.Frame)) (Decoder, error) {
		d, err := ffmpeg.StartDecoder(ctx, cfg, onFrame)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Options wires a Controller. Decoders is optional; without it the mailbox
// holds encoded samples.
type Options struct {
	Subscriber  Subscriber
	Decoders    DecoderFactory
	PLIInterval time.Duration
	StopTimeout time.Duration
}

// Status is a point-in-time view of the inbound session.
type Status struct {
	WhepURL         string     `json:"whep_url,omitempty"`
	Connected       bool       `json:"connected"`
	Connecting      bool       `json:"connecting"`
	ConnectionState string     `json:"connection_state,omitempty"`
	ICEState        string     `json:"ice_state,omitempty"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
	FramesReceived  uint64     `json:"frames_received"`
	HasFrame        bool       `json:"has_frame"`
	LastError       string     `json:"last_error,omitempty"`
}

// Controller is the inbound session lifecycle.
type Controller struct {
	subscriber  Subscriber
	decoders    DecoderFactory
	pliInterval time.Duration
	stopTimeout time.Duration

	mailbox Mailbox
	frames  atomic.Uint64

	// mu serializes Connect and Disconnect.
	mu sync.Mutex

	stateMu   sync.RWMutex
	sess      *session
	lastError string
}

// NewController returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Subscriber == nil {
		return nil, relayerr.Configf("whep controller: subscriber is required")
	}
	c := &Controller{
		subscriber:  opts.Subscriber,
		decoders:    opts.Decoders,
		pliInterval: opts.PLIInterval,
		stopTimeout: opts.StopTimeout,
	}
	if c.pliInterval <= 0 {
		c.pliInterval = DefaultPLIInterval
	}
	if c.stopTimeout <= 0 {
		c.stopTimeout = DefaultStopTimeout
	}
	return c, nil
}

// Connect subscribes to url. Connecting again to the URL of the live session
// is a no-op; a different URL replaces it.
func (c *Controller) Connect(ctx context.Context, url string) (err error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return relayerr.Configf("whep url is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.current(); s != nil && s.url == url && !s.finished() {
		return nil
	}
	c.disconnectLocked(ctx, "switching url")

	ctx, span := telemetry.StartSpan(ctx, tracerName, "rtcrelay.whep.connect")
	defer func() { telemetry.EndSpan(span, err) }()
	logger := log.WithComponentFromContext(ctx, "whep")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		url:    url,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.frames.Store(0)
	c.stateMu.Lock()
	c.sess = s
	c.lastError = ""
	c.stateMu.Unlock()

	down, err := c.subscriber.Subscribe(ctx, rtc.SubscribeOptions{URL: url, OnEvent: c.rtcEvents(s)})
	if err != nil {
		cancel()
		c.fail(s, err)
		logger.Error().Str(log.FieldEvent, "whep.connect_failed").Str(log.FieldURL, url).Err(err).Msg("whep connect failed")
		return err
	}

	var dec Decoder
	if c.decoders != nil {
		dec, err = c.decoders(runCtx, c.deliver)
		if err != nil {
			cancel()
			_ = down.Close()
			err = relayerr.Runtime("start whep decoder", err)
			c.fail(s, err)
			return err
		}
	}

	now := time.Now().UTC()
	c.stateMu.Lock()
	s.down = down
	s.dec = dec
	s.connectedAt = now
	c.stateMu.Unlock()

	metrics.SetSessionActive("whep", true)
	logger.Info().
		Str(log.FieldEvent, "whep.connected").
		Str(log.FieldURL, url).
		Bool("decode", dec != nil).
		Msg("inbound session connected")

	go c.runSession(s)
	return nil
}

// Disconnect releases the inbound session and clears the mailbox. It always succeeds.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked(ctx, "disconnect")
	return nil
}

func (c *Controller) disconnectLocked(ctx context.Context, reason string) {
	s := c.current()
	if s == nil {
		c.mailbox.Clear()
		return
	}
	s.cancel()
	if s.down != nil {
		_ = s.down.Close()
	}

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		logger := log.WithComponentFromContext(ctx, "whep")
		logger.Warn().
			Str(log.FieldEvent, "whep.stop_forced").
			Str(log.FieldURL, s.url).
			Msg("receive task did not exit in time")
	}
	c.teardownLocked(s)

	logger := log.WithComponentFromContext(ctx, "whep")
	logger.Info().
		Str(log.FieldEvent, "whep.disconnected").
		Str(log.FieldURL, s.url).
		Str("reason", reason).
		Uint64("frames_received", c.frames.Load()).
		Msg("inbound session closed")
}

func (c *Controller) teardownLocked(s *session) {
	s.cancel()
	if s.dec != nil {
		_ = s.dec.Close()
	}
	if s.down != nil {
		_ = s.down.Close()
		metrics.SetSessionActive("whep", false)
	}
	c.stateMu.Lock()
	if c.sess == s {
		c.sess = nil
	}
	c.stateMu.Unlock()
	c.mailbox.Clear()
}

func (c *Controller) fail(s *session, err error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.sess == s {
		c.sess = nil
	}
	c.lastError = err.Error()
}

func (c *Controller) runSession(s *session) {
	err := s.run(c.pliInterval, c.deliver)
	close(s.done)
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current() != s {
		return
	}
	log.L().Warn().
		Str(log.FieldEvent, "whep.session_ended").
		Str(log.FieldURL, s.url).
		Err(err).
		Msg("inbound session ended")
	c.stateMu.Lock()
	c.lastError = err.Error()
	c.stateMu.Unlock()
	c.teardownLocked(s)
}

// deliver stores f in the mailbox.
func (c *Controller) deliver(f media.Frame) {
	n := c.frames.Add(1)
	f.Seq = n
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}
	c.mailbox.Put(f)
	metrics.IncWhepFramesReceived()
}

// Status never waits on Connect or Disconnect.
func (c *Controller) Status() Status {
	_, hasFrame := c.mailbox.Latest()
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	st := Status{
		FramesReceived: c.frames.Load(),
		HasFrame:       hasFrame,
		LastError:      c.lastError,
	}
	if s := c.sess; s != nil {
		st.WhepURL = s.url
		st.Connecting = s.down == nil
		st.Connected = s.down != nil
		st.ConnectionState = s.connState
		st.ICEState = s.iceState
		if !s.connectedAt.IsZero() {
			at := s.connectedAt
			st.ConnectedAt = &at
		}
	}
	return st
}

// LatestFrame returns the newest inbound frame without consuming it.
func (c *Controller) LatestFrame() (media.Frame, bool) {
	return c.mailbox.Latest()
}

func (c *Controller) rtcEvents(s *session) rtc.EventFunc {
	return func(ev rtc.Event) {
		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		switch ev.Kind {
		case rtc.EventICEState:
			s.iceState = ev.State
		case rtc.EventPeerState:
			s.connState = ev.State
		}
	}
}

func (c *Controller) current() *session {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.sess
}

var (
	errPeerClosed     = errors.New("whep peer connection closed")
	errDecoderStopped = errors.New("whep decoder exited")
)
