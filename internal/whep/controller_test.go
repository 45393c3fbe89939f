// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package whep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/rtc"
)

// vp8Key is a VP8 keyframe header for 320x240.
var vp8Key = []byte{0x50, 0x42, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00}

type fakeDownlink struct {
	packets chan *rtp.Packet
	done    chan struct{}
	once    sync.Once
	closes  atomic.Int32
	plis    atomic.Int32
}

func newFakeDownlink() *fakeDownlink {
	return &fakeDownlink{packets: make(chan *rtp.Packet, 16), done: make(chan struct{})}
}

func (d *fakeDownlink) ReadRTP(ctx context.Context) (*rtp.Packet, string, error) {
	select {
	case pkt := <-d.packets:
		return pkt, webrtc.MimeTypeVP8, nil
	case <-d.done:
		return nil, "", rtc.ErrClosed
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (d *fakeDownlink) RequestKeyframe() error {
	d.plis.Add(1)
	return nil
}

func (d *fakeDownlink) Done() <-chan struct{} { return d.done }

func (d *fakeDownlink) Close() error {
	d.closes.Add(1)
	d.hangUp()
	return nil
}

func (d *fakeDownlink) hangUp() { d.once.Do(func() { close(d.done) }) }

func (d *fakeDownlink) send(seq uint16, payload []byte) {
	d.packets <- &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    uint8(rtc.PayloadTypeVP8),
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 3000,
			SSRC:           1,
		},
		Payload: append([]byte{0x10}, payload...),
	}
}

type fakeSubscriber struct {
	mu        sync.Mutex
	err       error
	urls      []string
	downlinks []*fakeDownlink
}

func (s *fakeSubscriber) Subscribe(_ context.Context, opts rtc.SubscribeOptions) (Downlink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, opts.URL)
	if s.err != nil {
		return nil, s.err
	}
	if opts.OnEvent != nil {
		opts.OnEvent(rtc.Event{Kind: rtc.EventICEState, State: "connected"})
		opts.OnEvent(rtc.Event{Kind: rtc.EventPeerState, State: "connected"})
	}
	d := newFakeDownlink()
	s.downlinks = append(s.downlinks, d)
	return d, nil
}

func (s *fakeSubscriber) last() *fakeDownlink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downlinks[len(s.downlinks)-1]
}

func (s *fakeSubscriber) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

func newTestController(t *testing.T, sub *fakeSubscriber, decoders DecoderFactory) *Controller {
	t.Helper()
	c, err := NewController(Options{Subscriber: sub, Decoders: decoders, PLIInterval: 20 * time.Millisecond, StopTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	return c
}

func TestConnect_RejectsEmptyURL(t *testing.T) {
	c := newTestController(t, &fakeSubscriber{}, nil)
	require.ErrorIs(t, c.Connect(context.Background(), "  "), relayerr.ErrConfig)
}

func TestConnect_SameURLIsNoop(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, nil)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))
	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))
	assert.Equal(t, 1, sub.calls())

	st := c.Status()
	assert.True(t, st.Connected)
	assert.False(t, st.Connecting)
	assert.Equal(t, "https://remote.test/whep/a", st.WhepURL)
	assert.Equal(t, "connected", st.ICEState)
	assert.Equal(t, "connected", st.ConnectionState)
	assert.NotNil(t, st.ConnectedAt)
}

func TestConnect_DifferentURLReplacesSession(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, nil)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))
	first := sub.last()
	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/b"))

	assert.GreaterOrEqual(t, first.closes.Load(), int32(1))
	assert.Zero(t, sub.last().closes.Load())
	assert.Equal(t, "https://remote.test/whep/b", c.Status().WhepURL)
}

func TestConnect_FailureRecordsError(t *testing.T) {
	sub := &fakeSubscriber{err: relayerr.Negotiation("whep offer", errors.New("rejected"))}
	c := newTestController(t, sub, nil)

	err := c.Connect(context.Background(), "https://remote.test/whep/a")
	require.ErrorIs(t, err, relayerr.ErrNegotiation)

	st := c.Status()
	assert.False(t, st.Connected)
	assert.False(t, st.Connecting)
	assert.Contains(t, st.LastError, "rejected")
}

func TestConnect_DecoderStartFailureIsRuntimeError(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, func(context.Context, func(media.Frame)) (Decoder, error) {
		return nil, errors.New(`exec: "ffmpeg": executable file not found in $PATH`)
	})

	err := c.Connect(context.Background(), "https://remote.test/whep/a")
	require.ErrorIs(t, err, relayerr.ErrRuntime)
	assert.NotErrorIs(t, err, relayerr.ErrConfig)
	assert.Equal(t, "RUNTIME_ERROR", relayerr.Code(err))

	assert.Equal(t, int32(1), sub.last().closes.Load())
	st := c.Status()
	assert.False(t, st.Connected)
	assert.Contains(t, st.LastError, "ffmpeg")
}

func TestSamplesFillMailbox(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, nil)
	require.NoError(t, c.Connect(context.Background(), "https://remote.test/whep/a"))
	down := sub.last()

	down.send(1, vp8Key)
	down.send(2, []byte{0x01, 0x02, 0x03, 0x04})
	down.send(3, []byte{0x05, 0x06, 0x07, 0x08})

	require.Eventually(t, func() bool {
		return c.Status().FramesReceived == 2
	}, 2*time.Second, 5*time.Millisecond)

	f, ok := c.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, media.FormatVP8, f.Format)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, f.Data)
	assert.Equal(t, 320, f.Width, "size carries over from the last keyframe")
	assert.Equal(t, 240, f.Height)

	again, ok := c.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, f, again, "observing the mailbox does not consume it")

	require.Eventually(t, func() bool { return down.plis.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

type fakeDecoder struct {
	onFrame func(media.Frame)
	done    chan struct{}
	writes  atomic.Int32
}

func (d *fakeDecoder) WriteRTP(*rtp.Packet) error {
	d.writes.Add(1)
	d.onFrame(media.Blank(4, 4))
	return nil
}

func (d *fakeDecoder) Done() <-chan struct{} { return d.done }

func (d *fakeDecoder) Close() error { return nil }

func TestDecoderReceivesVP8Packets(t *testing.T) {
	sub := &fakeSubscriber{}
	var dec *fakeDecoder
	c := newTestController(t, sub, func(_ context.Context, onFrame func(media.Frame)) (Decoder, error) {
		dec = &fakeDecoder{onFrame: onFrame, done: make(chan struct{})}
		return dec, nil
	})
	require.NoError(t, c.Connect(context.Background(), "https://remote.test/whep/a"))

	sub.last().send(1, vp8Key)
	require.Eventually(t, func() bool { return c.Status().FramesReceived == 1 }, 2*time.Second, 5*time.Millisecond)

	f, ok := c.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, media.FormatRGB24, f.Format)
	assert.Equal(t, int32(1), dec.writes.Load())
}

func TestDisconnect_IsIdempotentAndClearsMailbox(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, nil)
	ctx := context.Background()

	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))
	down := sub.last()
	down.send(1, vp8Key)
	down.send(2, vp8Key)
	require.Eventually(t, func() bool { return c.Status().HasFrame }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Disconnect(ctx))

	_, ok := c.LatestFrame()
	assert.False(t, ok)
	st := c.Status()
	assert.False(t, st.Connected)
	assert.Empty(t, st.WhepURL)
	assert.GreaterOrEqual(t, down.closes.Load(), int32(1))
}

func TestPeerClosedEndsSession(t *testing.T) {
	sub := &fakeSubscriber{}
	c := newTestController(t, sub, nil)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))

	sub.last().hangUp()
	require.Eventually(t, func() bool { return !c.Status().Connected }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, c.Status().LastError, "closed")

	require.NoError(t, c.Connect(ctx, "https://remote.test/whep/a"))
	assert.Equal(t, 2, sub.calls())
}

func TestVP8KeyframeSize(t *testing.T) {
	w, h, ok := vp8KeyframeSize(vp8Key)
	require.True(t, ok)
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)

	_, _, ok = vp8KeyframeSize([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a})
	assert.False(t, ok, "interframe")
	_, _, ok = vp8KeyframeSize(vp8Key[:6])
	assert.False(t, ok)
}
