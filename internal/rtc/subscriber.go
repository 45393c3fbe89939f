// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// Subscriber opens receive-only WHEP sessions.
type Subscriber struct {
	api      *API
	signaler *Signaler
}

// NewSubscriber returns a subscriber using api and signaler.
func NewSubscriber(api *API, signaler *Signaler) *Subscriber {
	return &Subscriber{api: api, signaler: signaler}
}

// SubscribeOptions describes one WHEP session.
type SubscribeOptions struct {
	URL     string
	OnEvent EventFunc
}

// Downlink is an established WHEP session. The first remote video track is
// read; any further tracks are ignored.
type Downlink struct {
	pc       *webrtc.PeerConnection
	signaler *Signaler
	resource string

	trackCh chan *webrtc.TrackRemote
	mu      sync.Mutex
	track   *webrtc.TrackRemote

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Subscribe negotiates a receive-only video session with the WHEP endpoint.
func (s *Subscriber) Subscribe(ctx context.Context, opts SubscribeOptions) (*Downlink, error) {
	if opts.URL == "" {
		return nil, relayerr.Configf("whep url is empty")
	}
	pc, err := s.api.newPeerConnection()
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: add transceiver: %v", relayerr.ErrNegotiation, err)
	}

	d := &Downlink{
		pc:       pc,
		signaler: s.signaler,
		trackCh:  make(chan *webrtc.TrackRemote, 1),
		done:     make(chan struct{}),
	}
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		select {
		case d.trackCh <- track:
		default:
		}
	})
	watchState(pc, opts.OnEvent, d.markDone)

	resource, err := negotiate(ctx, pc, s.signaler, opts.URL, opts.OnEvent)
	d.resource = resource
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	logger := log.WithComponentFromContext(ctx, "rtc")
	logger.Info().
		Str(log.FieldEvent, "whep.established").
		Str(log.FieldURL, opts.URL).
		Msg("whep session established")
	return d, nil
}

func (d *Downlink) waitTrack(ctx context.Context) (*webrtc.TrackRemote, error) {
	d.mu.Lock()
	t := d.track
	d.mu.Unlock()
	if t != nil {
		return t, nil
	}
	select {
	case t = <-d.trackCh:
		d.mu.Lock()
		d.track = t
		d.mu.Unlock()
		return t, nil
	case <-d.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadRTP blocks until the next RTP packet of the video track arrives and
// returns it with the negotiated mime type. A deadline on ctx bounds the read.
func (d *Downlink) ReadRTP(ctx context.Context) (*rtp.Packet, string, error) {
	track, err := d.waitTrack(ctx)
	if err != nil {
		return nil, "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = track.SetReadDeadline(deadline)
	} else {
		_ = track.SetReadDeadline(time.Time{})
	}
	pkt, _, err := track.ReadRTP()
	if err != nil {
		select {
		case <-d.done:
			return nil, "", ErrClosed
		default:
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, "", context.DeadlineExceeded
		}
		return nil, "", err
	}
	return pkt, track.Codec().MimeType, nil
}

// RequestKeyframe sends a PLI for the video track. It is a no-op before the
// track has arrived.
func (d *Downlink) RequestKeyframe() error {
	d.mu.Lock()
	track := d.track
	d.mu.Unlock()
	if track == nil {
		return nil
	}
	return d.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
}

// ConnectionState returns the current peer connection state.
func (d *Downlink) ConnectionState() string { return d.pc.ConnectionState().String() }

// ICEState returns the current ICE connection state.
func (d *Downlink) ICEState() string { return d.pc.ICEConnectionState().String() }

// Done is closed when the peer connection has failed or closed.
func (d *Downlink) Done() <-chan struct{} { return d.done }

func (d *Downlink) markDone() {
	d.doneOnce.Do(func() { close(d.done) })
}

// Close tears down the remote resource and the peer connection.
func (d *Downlink) Close() error {
	d.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := d.signaler.Teardown(ctx, d.resource); err != nil {
			log.L().Warn().
				Str(log.FieldEvent, "whep.teardown_failed").
				Str(log.FieldURL, d.resource).
				Err(err).
				Msg("whep resource teardown failed")
		}
		d.markDone()
		d.closeErr = d.pc.Close()
	})
	return d.closeErr
}
