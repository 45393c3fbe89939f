// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// MediaConfig configures a looping fallback media reader.
type MediaConfig struct {
	Binary string
	Path   string
	Width  int
	Height int
	FPS    int
}

// MediaReader decodes a media file of any container ffmpeg understands, loops
// it forever and keeps the most recent frame.
type MediaReader struct {
	cfg  MediaConfig
	proc *Process

	mu     sync.RWMutex
	latest media.Frame
	have   bool

	wg sync.WaitGroup
}

// OpenMedia starts decoding cfg.Path.
func OpenMedia(ctx context.Context, cfg MediaConfig) (*MediaReader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ffmpeg media: empty path")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("ffmpeg media: invalid geometry %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	proc, err := Start(ctx, Spec{
		Binary: cfg.Binary,
		Args:   MediaArgs(cfg.Path, cfg.Width, cfg.Height, cfg.FPS),
		Role:   "media",
	})
	if err != nil {
		return nil, err
	}
	m := &MediaReader{cfg: cfg, proc: proc}
	m.wg.Add(1)
	go m.readLoop()
	return m, nil
}

// Latest returns the most recently decoded frame, if any.
func (m *MediaReader) Latest() (media.Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.have
}

// Alive reports whether the decoder process is still running.
func (m *MediaReader) Alive() bool {
	select {
	case <-m.proc.Done():
		return false
	default:
		return true
	}
}

// Close stops decoding.
func (m *MediaReader) Close() error {
	err := m.proc.Stop()
	m.wg.Wait()
	return err
}

func (m *MediaReader) readLoop() {
	defer m.wg.Done()
	size := media.FormatRGB24.FrameSize(m.cfg.Width, m.cfg.Height)
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(m.proc.Stdout(), buf); err != nil {
			return
		}
		f := media.Frame{
			Width:      m.cfg.Width,
			Height:     m.cfg.Height,
			Format:     media.FormatRGB24,
			Data:       buf,
			CapturedAt: time.Now(),
		}
		m.mu.Lock()
		m.latest = f
		m.have = true
		m.mu.Unlock()
	}
}
