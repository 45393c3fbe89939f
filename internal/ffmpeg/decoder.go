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

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// DecoderConfig configures a VP8 decoder process.
type DecoderConfig struct {
	Binary string
	Width  int
	Height int
}

// Decoder turns inbound VP8 RTP into rgb24 frames. Packets are depacketized
// into IVF by pion's ivfwriter, which also holds output back until the first
// keyframe.
type Decoder struct {
	cfg  DecoderConfig
	proc *Process

	mu  sync.Mutex
	ivf *ivfwriter.IVFWriter

	wg sync.WaitGroup
}

// StartDecoder launches the decoder. onFrame runs on the decoder's reader goroutine.
func StartDecoder(ctx context.Context, cfg DecoderConfig, onFrame func(media.Frame)) (*Decoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg decoder: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	proc, err := Start(ctx, Spec{
		Binary: cfg.Binary,
		Args:   DecoderArgs(cfg.Width, cfg.Height),
		Role:   "decoder",
		Stdin:  true,
	})
	if err != nil {
		return nil, err
	}
	ivf, err := ivfwriter.NewWith(proc.Stdin(), ivfwriter.WithCodec(media.CodecVP8.MimeType()))
	if err != nil {
		_ = proc.Stop()
		return nil, fmt.Errorf("ffmpeg decoder: ivf header: %w", err)
	}

	d := &Decoder{cfg: cfg, proc: proc, ivf: ivf}
	d.wg.Add(1)
	go d.readLoop(onFrame)
	return d, nil
}

// WriteRTP forwards one VP8 RTP packet.
func (d *Decoder) WriteRTP(pkt *rtp.Packet) error {
	select {
	case <-d.proc.Done():
		return ErrNotRunning
	default:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ivf.WriteRTP(pkt)
}

// Done is closed when the process has exited.
func (d *Decoder) Done() <-chan struct{} { return d.proc.Done() }

// Close stops the process and waits for the reader.
func (d *Decoder) Close() error {
	err := d.proc.Stop()
	d.wg.Wait()
	return err
}

func (d *Decoder) readLoop(onFrame func(media.Frame)) {
	defer d.wg.Done()
	size := media.FormatRGB24.FrameSize(d.cfg.Width, d.cfg.Height)
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(d.proc.Stdout(), buf); err != nil {
			return
		}
		onFrame(media.Frame{
			Width:      d.cfg.Width,
			Height:     d.cfg.Height,
			Format:     media.FormatRGB24,
			Data:       buf,
			CapturedAt: time.Now(),
		})
	}
}
