// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package framesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/ManuGH/rtcrelay/internal/ffmpeg"
	"github.com/ManuGH/rtcrelay/internal/media"
)

// ivfLoop replays pre-encoded VP8 frames from an IVF file, rewinding at EOF.
type ivfLoop struct {
	path string

	mu     sync.Mutex
	file   *os.File
	reader *ivfreader.IVFReader
	width  int
	height int
	failed bool
}

// NewIVFLoop opens path and checks that it is a VP8 IVF file.
func NewIVFLoop(path string) (Strategy, error) {
	l := &ivfLoop{path: path}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ivfLoop) open() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open fallback media: %w", err)
	}
	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("read ivf header %s: %w", l.path, err)
	}
	if header.FourCC != "VP80" {
		_ = f.Close()
		return fmt.Errorf("fallback media %s: unsupported fourcc %q", l.path, header.FourCC)
	}
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file, l.reader = f, reader
	l.width, l.height = int(header.Width), int(header.Height)
	return nil
}

func (l *ivfLoop) Kind() Kind { return KindFallbackMedia }

func (l *ivfLoop) TryFrame() (media.Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed || l.reader == nil {
		return media.Frame{}, false
	}

	payload, _, err := l.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err = l.open(); err == nil {
			payload, _, err = l.reader.ParseNextFrame()
		}
	}
	if err != nil || len(payload) == 0 {
		// A truncated or empty file would otherwise be retried every tick.
		l.failed = true
		return media.Frame{}, false
	}
	return media.Frame{Width: l.width, Height: l.height, Format: media.FormatVP8, Data: payload}, true
}

func (l *ivfLoop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.reader = nil, nil
	return err
}

// decodedMedia exposes the latest frame of a looping ffmpeg decode.
type decodedMedia struct {
	reader *ffmpeg.MediaReader
}

// NewDecodedMedia decodes any container ffmpeg reads into raw frames.
func NewDecodedMedia(ctx context.Context, cfg ffmpeg.MediaConfig) (Strategy, error) {
	r, err := ffmpeg.OpenMedia(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &decodedMedia{reader: r}, nil
}

func (d *decodedMedia) Kind() Kind { return KindFallbackMedia }

func (d *decodedMedia) TryFrame() (media.Frame, bool) { return d.reader.Latest() }

func (d *decodedMedia) Close() error { return d.reader.Close() }
