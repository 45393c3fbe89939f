// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/rtcrelay/internal/controlplane"
	"github.com/ManuGH/rtcrelay/internal/framesource"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/metrics"
	"github.com/ManuGH/rtcrelay/internal/throttle"
)

var (
	errPeerClosed     = errors.New("peer connection closed")
	errEncoderStopped = errors.New("encoder stopped producing samples")
)

// session is one outbound stream from creation to teardown. Mutable fields
// other than the atomics are guarded by Controller.stateMu.
type session struct {
	id        string
	owner     string
	info      controlplane.StreamInfo
	pipeline  controlplane.PipelineConfig
	fp        string
	settings  Settings
	startedAt time.Time

	encoder Encoder
	uplink  Uplink
	source  *framesource.Source
	status  *throttle.Throttle[controlplane.RemoteStatus]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	framesSent atomic.Uint64
	dropped    atomic.Uint64
	pending    atomic.Uint64
}

// run drives the publish ticker, the sample writer and the status poller
// until ctx is cancelled or one of them fails.
func (s *session) run(pollDelay, pollInterval time.Duration) error {
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.publishLoop(ctx) })
	g.Go(func() error { return s.writeLoop(ctx) })
	g.Go(func() error { return s.pollLoop(ctx, pollDelay, pollInterval) })
	g.Go(func() error {
		select {
		case <-s.uplink.Done():
			return errPeerClosed
		case <-ctx.Done():
			return nil
		}
	})
	return g.Wait()
}

func (s *session) publishLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.FrameDuration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick := s.source.Next()
			if !s.encoder.Submit(tick.Frame) {
				s.dropped.Add(1)
				s.pending.Add(1)
				metrics.IncFramesDropped("encoder_busy")
			}
		}
	}
}

func (s *session) writeLoop(ctx context.Context) error {
	duration := s.settings.FrameDuration()
	samples := s.encoder.Samples()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-samples:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errEncoderStopped
			}
			skipped := s.pending.Swap(0)
			if skipped > math.MaxUint16 {
				skipped = math.MaxUint16
			}
			if err := s.uplink.WriteSample(data, duration, uint16(skipped)); err != nil {
				log.L().Debug().
					Str(log.FieldEvent, "stream.write_failed").
					Str(log.FieldSessionID, s.id).
					Err(err).
					Msg("sample write failed")
				continue
			}
			s.framesSent.Add(1)
			metrics.IncFramesSent()
		}
	}
}

func (s *session) pollLoop(ctx context.Context, delay, interval time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if _, err := s.status.Get(ctx, false); err != nil && ctx.Err() == nil {
			log.L().Warn().
				Str(log.FieldEvent, "stream.poll_failed").
				Str(log.FieldSessionID, s.id).
				Err(err).
				Msg("background remote status poll failed")
		}
		timer.Reset(interval)
	}
}
