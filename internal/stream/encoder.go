// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/ManuGH/rtcrelay/internal/ffmpeg"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// EncoderMode selects how frames become codec samples.
type EncoderMode string

const (
	// ModeFFmpeg encodes raw frames to VP8 in an ffmpeg child process.
	ModeFFmpeg EncoderMode = "ffmpeg"
	// ModePassthrough forwards frames that producers already encoded.
	ModePassthrough EncoderMode = "passthrough"
)

// Encoder turns frames into samples for the uplink. Submit never blocks; a
// rejected frame is counted as dropped and the RTP clock skips over it.
type Encoder interface {
	Codec() media.Codec
	// Passthrough reports whether Submit expects already-encoded frames.
	Passthrough() bool
	Submit(f media.Frame) bool
	// Samples is closed when the encoder stops producing.
	Samples() <-chan []byte
	Close() error
}

// EncoderFactory builds one encoder per session.
type EncoderFactory func(ctx context.Context, s Settings) (Encoder, error)

// EncoderOptions configures NewEncoderFactory.
type EncoderOptions struct {
	Mode        EncoderMode
	Codec       media.Codec
	Binary      string
	BitrateKbps int
}

// NewEncoderFactory validates opts. ffmpeg mode only produces VP8.
func NewEncoderFactory(opts EncoderOptions) (EncoderFactory, error) {
	mode := EncoderMode(strings.ToLower(strings.TrimSpace(string(opts.Mode))))
	codec := opts.Codec
	if codec == "" {
		codec = media.CodecVP8
	}

	switch mode {
	case ModePassthrough:
		return func(context.Context, Settings) (Encoder, error) {
			return newPassthrough(codec), nil
		}, nil
	case ModeFFmpeg, "":
		if codec != media.CodecVP8 {
			return nil, relayerr.Configf("ffmpeg encoder mode only supports vp8, got %s", codec)
		}
		return func(ctx context.Context, s Settings) (Encoder, error) {
			enc, err := ffmpeg.StartEncoder(ctx, ffmpeg.EncoderConfig{
				Binary:      opts.Binary,
				Width:       s.FrameWidth,
				Height:      s.FrameHeight,
				FPS:         s.FrameRate,
				BitrateKbps: opts.BitrateKbps,
			})
			if err != nil {
				return nil, relayerr.Runtime("start encoder", err)
			}
			return ffmpegEncoder{enc}, nil
		}, nil
	default:
		return nil, relayerr.Configf("unknown encoder mode %q", opts.Mode)
	}
}

type ffmpegEncoder struct {
	*ffmpeg.Encoder
}

func (ffmpegEncoder) Codec() media.Codec { return media.CodecVP8 }

func (ffmpegEncoder) Passthrough() bool { return false }

// passthrough hands encoded frames of its codec straight to the uplink.
type passthrough struct {
	codec media.Codec

	mu     sync.Mutex
	closed bool
	ch     chan []byte
}

func newPassthrough(codec media.Codec) *passthrough {
	return &passthrough{codec: codec, ch: make(chan []byte, 1)}
}

func (p *passthrough) Codec() media.Codec { return p.codec }

func (p *passthrough) Passthrough() bool { return true }

func (p *passthrough) Submit(f media.Frame) bool {
	if f.Format != p.codec.Format() || len(f.Data) == 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.ch <- f.Data:
		return true
	default:
		return false
	}
}

func (p *passthrough) Samples() <-chan []byte { return p.ch }

func (p *passthrough) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
