// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// remotePeer answers offers the way a WHIP/WHEP gateway does.
type remotePeer struct {
	srv     *httptest.Server
	deletes atomic.Int32

	mu  sync.Mutex
	pcs []*webrtc.PeerConnection
}

func newRemotePeer(t *testing.T, sendVideo bool) *remotePeer {
	t.Helper()
	rp := &remotePeer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/endpoint", func(w http.ResponseWriter, r *http.Request) {
		offer, _ := io.ReadAll(r.Body)
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rp.mu.Lock()
		rp.pcs = append(rp.pcs, pc)
		rp.mu.Unlock()

		if sendVideo {
			track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "remote")
			if err == nil {
				_, _ = pc.AddTrack(track)
			}
		}
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		gathered := webrtc.GatheringCompletePromise(pc)
		if err := pc.SetLocalDescription(answer); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		<-gathered

		w.Header().Set("Content-Type", "application/sdp")
		w.Header().Set("Location", "/resource/1")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, pc.LocalDescription().SDP)
	})
	mux.HandleFunc("/resource/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			rp.deletes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	})
	rp.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		rp.srv.Close()
		rp.mu.Lock()
		defer rp.mu.Unlock()
		for _, pc := range rp.pcs {
			_ = pc.Close()
		}
	})
	return rp
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		if ev.Kind == EventOfferSent || ev.Kind == EventAnswerReceived {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func TestNewAPI_ICEServers(t *testing.T) {
	api, err := NewAPI([]string{" stun:a:3478 ", "", "stun:b:19302"})
	require.NoError(t, err)
	assert.Equal(t, []string{"stun:a:3478", "stun:b:19302"}, api.ICEServers())

	api, err = NewAPI(nil)
	require.NoError(t, err)
	assert.Empty(t, api.ICEServers())
}

func TestPublisher_DialAndClose(t *testing.T) {
	rp := newRemotePeer(t, false)
	api, err := NewAPI(nil)
	require.NoError(t, err)

	events := &eventLog{}
	pub := NewPublisher(api, NewSignaler("whip", rp.srv.Client(), ""))
	up, err := pub.Dial(context.Background(), PublishOptions{
		URL:     rp.srv.URL + "/endpoint",
		Codec:   media.CodecVP8,
		OnEvent: events.record,
	})
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventOfferSent, EventAnswerReceived}, events.kinds())

	require.NoError(t, up.WriteSample([]byte{0x10, 0x02, 0x00}, time.Second/30, 0))

	require.NoError(t, up.Close())
	require.NoError(t, up.Close())
	assert.EqualValues(t, 1, rp.deletes.Load())
	select {
	case <-up.Done():
	default:
		t.Fatal("uplink not done after close")
	}
}

func TestPublisher_DialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	api, err := NewAPI(nil)
	require.NoError(t, err)
	_, err = NewPublisher(api, NewSignaler("whip", srv.Client(), "")).Dial(context.Background(), PublishOptions{URL: srv.URL})
	assert.ErrorIs(t, err, relayerr.ErrNegotiation)

	_, err = NewPublisher(api, NewSignaler("whip", srv.Client(), "")).Dial(context.Background(), PublishOptions{})
	assert.ErrorIs(t, err, relayerr.ErrConfig)
}

func TestSubscriber_SubscribeReadAndClose(t *testing.T) {
	rp := newRemotePeer(t, true)
	api, err := NewAPI(nil)
	require.NoError(t, err)

	sub := NewSubscriber(api, NewSignaler("whep", rp.srv.Client(), ""))
	down, err := sub.Subscribe(context.Background(), SubscribeOptions{URL: rp.srv.URL + "/endpoint"})
	require.NoError(t, err)

	// No media is sent, so no track arrives.
	require.NoError(t, down.RequestKeyframe())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = down.ReadRTP(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, down.Close())
	assert.EqualValues(t, 1, rp.deletes.Load())

	_, _, err = down.ReadRTP(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
