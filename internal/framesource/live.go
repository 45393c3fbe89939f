// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package framesource

import (
	"sync"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// Dequeuer is the consumer side of the frame bridge.
type Dequeuer interface {
	TryDequeue() (media.Frame, bool)
}

// LiveCache remembers the most recent live frame of a session.
type LiveCache struct {
	mu    sync.RWMutex
	frame media.Frame
	ok    bool
}

func (c *LiveCache) store(f media.Frame) {
	c.mu.Lock()
	c.frame, c.ok = f, true
	c.mu.Unlock()
}

// Load returns the remembered frame.
func (c *LiveCache) Load() (media.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.ok
}

type live struct {
	bridge Dequeuer
	cache  *LiveCache
}

// NewLive pulls from the bridge and records every frame in cache.
func NewLive(bridge Dequeuer, cache *LiveCache) Strategy {
	return &live{bridge: bridge, cache: cache}
}

func (l *live) Kind() Kind { return KindLive }

func (l *live) TryFrame() (media.Frame, bool) {
	f, ok := l.bridge.TryDequeue()
	if ok {
		l.cache.store(f)
	}
	return f, ok
}

type cachedLive struct {
	cache *LiveCache
}

// NewCachedLive replays the last live frame during producer gaps. An encoded
// frame is only replayed when it is a keyframe: a repeated delta frame would
// be predicted from the wrong reference. For those ticks the strategy yields
// an empty frame of the same format, which the encoder drops so the uplink
// accounts for the gap.
func NewCachedLive(cache *LiveCache) Strategy {
	return cachedLive{cache: cache}
}

func (c cachedLive) Kind() Kind { return KindCachedLive }

func (c cachedLive) TryFrame() (media.Frame, bool) {
	f, ok := c.cache.Load()
	if !ok {
		return media.Frame{}, false
	}
	if f.Format.Encoded() && !f.Keyframe() {
		return media.Frame{Width: f.Width, Height: f.Height, Format: f.Format, Seq: f.Seq}, true
	}
	return f, true
}

type dummy struct {
	frame media.Frame
}

// NewDummy always yields a black frame of the given size.
func NewDummy(width, height int) Strategy {
	return dummy{frame: media.Blank(width, height)}
}

func (d dummy) Kind() Kind { return KindDummy }

func (d dummy) TryFrame() (media.Frame, bool) { return d.frame, true }
