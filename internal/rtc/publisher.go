// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

const teardownTimeout = 5 * time.Second

// Publisher opens WHIP sessions that carry one video sample track.
type Publisher struct {
	api      *API
	signaler *Signaler
}

// NewPublisher returns a publisher using api and signaler.
func NewPublisher(api *API, signaler *Signaler) *Publisher {
	return &Publisher{api: api, signaler: signaler}
}

// PublishOptions describes one WHIP session.
type PublishOptions struct {
	URL     string
	Codec   media.Codec
	OnEvent EventFunc
}

// Uplink is an established WHIP session.
type Uplink struct {
	pc       *webrtc.PeerConnection
	track    *webrtc.TrackLocalStaticSample
	signaler *Signaler
	resource string

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Dial negotiates a send-only video session with the WHIP endpoint. On error
// the peer connection is already closed.
func (p *Publisher) Dial(ctx context.Context, opts PublishOptions) (*Uplink, error) {
	if opts.URL == "" {
		return nil, relayerr.Configf("whip url is empty")
	}
	codec := opts.Codec
	if codec == "" {
		codec = media.CodecVP8
	}

	pc, err := p.api.newPeerConnection()
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: codec.MimeType()}, "video", "rtcrelay")
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: create track: %v", relayerr.ErrNegotiation, err)
	}
	tr, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendonly})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: add track: %v", relayerr.ErrNegotiation, err)
	}

	u := &Uplink{pc: pc, track: track, signaler: p.signaler, done: make(chan struct{})}
	watchState(pc, opts.OnEvent, u.markDone)

	// Interceptors (NACK, reports) only run while RTCP is read from the sender.
	sender := tr.Sender()
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	resource, err := negotiate(ctx, pc, p.signaler, opts.URL, opts.OnEvent)
	u.resource = resource
	if err != nil {
		_ = u.Close()
		return nil, err
	}

	logger := log.WithComponentFromContext(ctx, "rtc")
	logger.Info().
		Str(log.FieldEvent, "whip.established").
		Str(log.FieldCodec, string(codec)).
		Str(log.FieldURL, opts.URL).
		Msg("whip session established")
	return u, nil
}

// WriteSample sends one encoded frame. prevDropped is the number of frames
// skipped since the last write; the RTP timestamp advances over them.
func (u *Uplink) WriteSample(data []byte, duration time.Duration, prevDropped uint16) error {
	return u.track.WriteSample(pionmedia.Sample{Data: data, Duration: duration, PrevDroppedPackets: prevDropped})
}

// Done is closed when the peer connection has failed or closed.
func (u *Uplink) Done() <-chan struct{} { return u.done }

// ConnectionState returns the current peer connection state.
func (u *Uplink) ConnectionState() string { return u.pc.ConnectionState().String() }

func (u *Uplink) markDone() {
	u.doneOnce.Do(func() { close(u.done) })
}

// Close tears down the remote resource and the peer connection. It is safe
// to call more than once.
func (u *Uplink) Close() error {
	u.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := u.signaler.Teardown(ctx, u.resource); err != nil {
			log.L().Warn().
				Str(log.FieldEvent, "whip.teardown_failed").
				Str(log.FieldURL, u.resource).
				Err(err).
				Msg("whip resource teardown failed")
		}
		u.closeErr = u.pc.Close()
		u.markDone()
	})
	return u.closeErr
}
