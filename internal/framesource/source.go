// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package framesource picks the frame published on every tick of the outbound
// track. Strategies are tried in priority order and the first one that has a
// frame wins; a blank frame is the last resort, so Next never fails.
package framesource

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/metrics"
)

// Kind names the strategy that produced a frame.
type Kind string

const (
	KindNone           Kind = "none"
	KindLive           Kind = "live"
	KindCachedLive     Kind = "cached_live"
	KindFallbackMedia  Kind = "fallback_media"
	KindFallbackImages Kind = "fallback_images"
	KindDummy          Kind = "dummy"
)

// Strategy is one tier of the fallback chain.
type Strategy interface {
	Kind() Kind
	// TryFrame returns a frame if this tier can produce one right now.
	TryFrame() (media.Frame, bool)
}

// Tick is the result of one Next call. PTS counts ticks from zero.
type Tick struct {
	Frame media.Frame
	PTS   uint64
	Kind  Kind
}

// Source is the ordered strategy chain of one outbound session.
type Source struct {
	mu         sync.Mutex
	strategies []Strategy
	dummy      Strategy
	pts        uint64
	last       Kind
	logger     zerolog.Logger
}

// New builds a source from strategies in priority order. A Dummy of the given
// size always terminates the chain.
func New(ctx context.Context, width, height int, strategies ...Strategy) *Source {
	return &Source{
		strategies: strategies,
		dummy:      NewDummy(width, height),
		last:       KindNone,
		logger:     log.WithComponentFromContext(ctx, "framesource"),
	}
}

// Next returns exactly one frame. Its PTS is one greater than the previous
// call's, whichever tier supplied the pixels.
func (s *Source) Next() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, kind := s.pick()
	tick := Tick{Frame: frame, PTS: s.pts, Kind: kind}
	s.pts++

	metrics.ObserveFrameSource(string(kind))
	if kind != s.last {
		s.logger.Info().
			Str(log.FieldEvent, "framesource.switched").
			Str(log.FieldOldState, string(s.last)).
			Str(log.FieldFrameSource, string(kind)).
			Uint64(log.FieldPTS, tick.PTS).
			Msg("frame source changed")
		metrics.IncFrameSourceSwitch(string(kind))
		s.last = kind
	}
	return tick
}

func (s *Source) pick() (media.Frame, Kind) {
	for _, st := range s.strategies {
		if f, ok := st.TryFrame(); ok {
			return f, st.Kind()
		}
	}
	f, _ := s.dummy.TryFrame()
	return f, KindDummy
}

// Current returns the kind of the last delivered frame.
func (s *Source) Current() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Ticks returns how many frames have been delivered.
func (s *Source) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pts
}

// Close releases strategies that hold resources (decoders, open files).
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, st := range s.strategies {
		if c, ok := st.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
