// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rtc wraps pion/webrtc for the two directions of the relay: publishing
// a sample track to a WHIP endpoint and subscribing to a WHEP endpoint.
//
// Both directions use non-trickle signaling: ICE gathering is allowed to finish
// (or time out) before the offer is POSTed, and the answer is applied as-is.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// Payload types offered for video. They match the values most WHIP gateways
// answer with, which keeps the SDP munging on the remote side trivial.
const (
	PayloadTypeVP8  webrtc.PayloadType = 96
	PayloadTypeH264 webrtc.PayloadType = 102
)

const (
	h264Fmtp      = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"
	gatherTimeout = 5 * time.Second
)

// DefaultICEServers are the public STUN servers used when none are configured.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun.cloudflare.com:3478",
	"stun:stun1.l.google.com:19302",
}

// ErrClosed is returned by reads on a torn-down connection.
var ErrClosed = errors.New("rtc: connection closed")

// EventKind classifies a connection event.
type EventKind string

const (
	EventOfferSent      EventKind = "offer_sent"
	EventAnswerReceived EventKind = "answer_received"
	EventICEState       EventKind = "ice_state"
	EventPeerState      EventKind = "peer_state"
)

// Event is emitted while a connection is negotiated and for every state change
// afterwards. State is empty for the signaling events.
type Event struct {
	Kind  EventKind
	State string
}

// EventFunc receives connection events. It runs on pion's callback goroutines
// and must not block.
type EventFunc func(Event)

func (f EventFunc) emit(ev Event) {
	if f != nil {
		f(ev)
	}
}

// API is a configured pion API plus the ICE servers every connection uses.
type API struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer
}

// NewAPI registers VP8 and H264 with the default interceptors (NACK, RTCP
// reports, TWCC) and remembers the ICE servers. An empty list means host
// candidates only.
func NewAPI(iceServers []string) (*API, error) {
	m := &webrtc.MediaEngine{}
	feedback := []webrtc.RTCPFeedback{
		{Type: webrtc.TypeRTCPFBGoogREMB},
		{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
		{Type: webrtc.TypeRTCPFBNACK},
		{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
	}
	codecs := []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000, RTCPFeedback: feedback},
			PayloadType:        PayloadTypeVP8,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000, SDPFmtpLine: h264Fmtp, RTCPFeedback: feedback},
			PayloadType:        PayloadTypeH264,
		},
	}
	for _, c := range codecs {
		if err := m.RegisterCodec(c, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	servers := make([]webrtc.ICEServer, 0, len(iceServers))
	for _, s := range iceServers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, webrtc.ICEServer{URLs: []string{s}})
		}
	}

	return &API{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry)),
		iceServers: servers,
	}, nil
}

// ICEServers returns the configured server URLs.
func (a *API) ICEServers() []string {
	out := make([]string, 0, len(a.iceServers))
	for _, s := range a.iceServers {
		out = append(out, s.URLs...)
	}
	return out
}

func (a *API) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := a.api.NewPeerConnection(webrtc.Configuration{ICEServers: a.iceServers})
	if err != nil {
		return nil, fmt.Errorf("%w: create peer connection: %v", relayerr.ErrNegotiation, err)
	}
	return pc, nil
}

// watchState forwards ICE and peer state changes to onEvent and calls
// onTerminal once the peer connection is failed or closed.
func watchState(pc *webrtc.PeerConnection, onEvent EventFunc, onTerminal func()) {
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		onEvent.emit(Event{Kind: EventICEState, State: s.String()})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		onEvent.emit(Event{Kind: EventPeerState, State: s.String()})
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			onTerminal()
		}
	})
}

// negotiate runs offer → gather → POST → answer on pc and returns the
// session resource URL from the answer's Location header.
func negotiate(ctx context.Context, pc *webrtc.PeerConnection, signaler *Signaler, endpoint string, onEvent EventFunc) (string, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", relayerr.Negotiation(signaler.kind+" offer", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", relayerr.Negotiation(signaler.kind+" offer", err)
	}

	timer := time.NewTimer(gatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		// Slow STUN servers only cost reflexive candidates; send what we have.
	case <-ctx.Done():
		return "", relayerr.Negotiation(signaler.kind+" offer", ctx.Err())
	}

	onEvent.emit(Event{Kind: EventOfferSent})
	answer, err := signaler.Offer(ctx, endpoint, pc.LocalDescription().SDP)
	if err != nil {
		return "", err
	}
	onEvent.emit(Event{Kind: EventAnswerReceived})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		return answer.Resource, relayerr.Negotiation(signaler.kind+" answer", err)
	}
	return answer.Resource, nil
}
