// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
)

const defaultBitrateKbps = 2000

// EncoderConfig configures a VP8 encoder process.
type EncoderConfig struct {
	Binary      string
	Width       int
	Height      int
	FPS         int
	BitrateKbps int
}

// Encoder feeds raw frames into ffmpeg and yields encoded VP8 frames.
// Submit never blocks: while the previous frame is still being written the new
// one is rejected and the caller counts it as dropped.
type Encoder struct {
	cfg     EncoderConfig
	proc    *Process
	frames  chan media.Frame
	samples chan []byte
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// StartEncoder launches the encoder process and its writer/reader goroutines.
func StartEncoder(ctx context.Context, cfg EncoderConfig) (*Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("ffmpeg encoder: invalid geometry %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = defaultBitrateKbps
	}

	proc, err := Start(ctx, Spec{
		Binary: cfg.Binary,
		Args:   EncoderArgs(cfg.Width, cfg.Height, cfg.FPS, cfg.BitrateKbps),
		Role:   "encoder",
		Stdin:  true,
	})
	if err != nil {
		return nil, err
	}

	e := &Encoder{
		cfg:     cfg,
		proc:    proc,
		frames:  make(chan media.Frame, 1),
		samples: make(chan []byte, cfg.FPS),
		stop:    make(chan struct{}),
	}
	e.wg.Add(2)
	go e.writeLoop()
	go e.readLoop()
	return e, nil
}

// Submit queues f for encoding. It returns false when the encoder is busy or gone.
func (e *Encoder) Submit(f media.Frame) bool {
	select {
	case <-e.stop:
		return false
	case <-e.proc.Done():
		return false
	default:
	}
	select {
	case e.frames <- f:
		return true
	default:
		return false
	}
}

// Samples yields encoded frames in order. Closed when the process output ends.
func (e *Encoder) Samples() <-chan []byte { return e.samples }

// Done is closed when the ffmpeg process has exited.
func (e *Encoder) Done() <-chan struct{} { return e.proc.Done() }

// Err reports why the process exited, with its last stderr lines.
func (e *Encoder) Err() error {
	err := e.proc.Err()
	if err == nil {
		return nil
	}
	return fmt.Errorf("ffmpeg encoder: %w (stderr: %v)", err, e.proc.Stderr(stderrSummary))
}

// Close stops the process and waits for the helper goroutines.
func (e *Encoder) Close() error {
	e.once.Do(func() {
		close(e.stop)
		_ = e.proc.Stop()
	})
	e.wg.Wait()
	return nil
}

func (e *Encoder) writeLoop() {
	defer e.wg.Done()
	w := e.proc.Stdin()
	for {
		select {
		case <-e.stop:
			return
		case <-e.proc.Done():
			return
		case f := <-e.frames:
			raw, err := media.Scale(f, e.cfg.Width, e.cfg.Height)
			if err != nil {
				log.L().Debug().Err(err).Str(log.FieldEvent, "ffmpeg.encoder_skip").Msg("frame not encodable")
				continue
			}
			if _, err := w.Write(raw.Data); err != nil {
				return
			}
		}
	}
}

func (e *Encoder) readLoop() {
	defer e.wg.Done()
	defer close(e.samples)

	reader, _, err := ivfreader.NewWith(e.proc.Stdout())
	if err != nil {
		return
	}
	for {
		payload, _, err := reader.ParseNextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.L().Debug().Err(err).Str(log.FieldEvent, "ffmpeg.encoder_output_end").Msg("encoder output ended")
			}
			return
		}
		select {
		case e.samples <- payload:
		case <-e.stop:
			return
		}
	}
}
