// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package whep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/rtc"
)

const (
	// readTimeout bounds one ReadRTP so the loop observes cancellation.
	readTimeout = time.Second

	maxLatePackets = 128
	videoClockRate = 90000
)

// session is one inbound subscription. down, dec, connectedAt and the state
// strings are guarded by Controller.stateMu.
type session struct {
	url         string
	down        Downlink
	dec         Decoder
	connectedAt time.Time
	connState   string
	iceState    string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the receive loop.
	codec   media.Codec
	builder *samplebuilder.SampleBuilder
	width   int
	height  int
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) run(pliInterval time.Duration, deliver func(media.Frame)) error {
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.receiveLoop(ctx, deliver) })
	g.Go(func() error { return s.pliLoop(ctx, pliInterval) })
	g.Go(func() error {
		select {
		case <-s.down.Done():
			if ctx.Err() != nil {
				return nil
			}
			return errPeerClosed
		case <-ctx.Done():
			return nil
		}
	})
	if s.dec != nil {
		g.Go(func() error {
			select {
			case <-s.dec.Done():
				if ctx.Err() != nil {
					return nil
				}
				return errDecoderStopped
			case <-ctx.Done():
				return nil
			}
		})
	}
	return g.Wait()
}

func (s *session) receiveLoop(ctx context.Context, deliver func(media.Frame)) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		pkt, mime, err := s.down.ReadRTP(readCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			s.handle(pkt, mime, deliver)
		case errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, rtc.ErrClosed):
			return errPeerClosed
		default:
			return fmt.Errorf("whep read rtp: %w", err)
		}
	}
}

func (s *session) handle(pkt *rtp.Packet, mime string, deliver func(media.Frame)) {
	codec, ok := media.CodecFromMime(mime)
	if !ok {
		return
	}
	if s.dec != nil && codec == media.CodecVP8 {
		if err := s.dec.WriteRTP(pkt); err != nil {
			log.L().Debug().Str(log.FieldEvent, "whep.decode_write_failed").Err(err).Msg("decoder rejected packet")
		}
		return
	}

	if s.builder == nil || s.codec != codec {
		s.codec = codec
		s.builder = samplebuilder.New(maxLatePackets, depacketizer(codec), videoClockRate)
		log.L().Info().
			Str(log.FieldEvent, "whep.track_codec").
			Str(log.FieldCodec, string(codec)).
			Msg("receiving encoded samples")
	}
	s.builder.Push(pkt)
	for sample := s.builder.Pop(); sample != nil; sample = s.builder.Pop() {
		if codec == media.CodecVP8 {
			if w, h, ok := vp8KeyframeSize(sample.Data); ok {
				s.width, s.height = w, h
			}
		}
		deliver(media.Frame{
			Width:      s.width,
			Height:     s.height,
			Format:     codec.Format(),
			Data:       sample.Data,
			CapturedAt: time.Now(),
		})
	}
}

func depacketizer(codec media.Codec) rtp.Depacketizer {
	if codec == media.CodecH264 {
		return &codecs.H264Packet{}
	}
	return &codecs.VP8Packet{}
}

// pliLoop asks for a keyframe right away and then every interval.
func (s *session) pliLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.down.RequestKeyframe(); err != nil && ctx.Err() == nil {
			log.L().Debug().Str(log.FieldEvent, "whep.pli_failed").Err(err).Msg("keyframe request failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
