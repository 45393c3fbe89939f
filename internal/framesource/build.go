// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package framesource

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ManuGH/rtcrelay/internal/ffmpeg"
	"github.com/ManuGH/rtcrelay/internal/log"
)

// Config selects the tiers of a session's chain.
type Config struct {
	Width  int
	Height int
	FPS    int
	// Passthrough means frames reach the track pre-encoded as VP8. Fallback
	// media must then be an IVF file and still images are skipped.
	Passthrough       bool
	FallbackMedia     string
	FallbackImagesDir string
	FFmpegBinary      string
}

// Build assembles live → cached live → fallback media → fallback images → dummy.
// Tiers that cannot be opened are logged and left out.
func Build(ctx context.Context, bridge Dequeuer, cfg Config) *Source {
	logger := log.WithComponentFromContext(ctx, "framesource")
	cache := &LiveCache{}
	chain := []Strategy{NewLive(bridge, cache), NewCachedLive(cache)}

	if path := strings.TrimSpace(cfg.FallbackMedia); path != "" {
		var (
			st  Strategy
			err error
		)
		switch {
		case cfg.Passthrough && strings.EqualFold(filepath.Ext(path), ".ivf"):
			st, err = NewIVFLoop(path)
		case cfg.Passthrough:
			logger.Warn().
				Str(log.FieldEvent, "framesource.media_skipped").
				Str("path", path).
				Msg("passthrough mode needs a VP8 .ivf fallback file")
		default:
			st, err = NewDecodedMedia(ctx, ffmpeg.MediaConfig{
				Binary: cfg.FFmpegBinary,
				Path:   path,
				Width:  cfg.Width,
				Height: cfg.Height,
				FPS:    cfg.FPS,
			})
		}
		if err != nil {
			logger.Warn().
				Str(log.FieldEvent, "framesource.media_unavailable").
				Str("path", path).
				Err(err).
				Msg("fallback media disabled for this session")
		} else if st != nil {
			chain = append(chain, st)
		}
	}

	if dir := strings.TrimSpace(cfg.FallbackImagesDir); dir != "" && !cfg.Passthrough {
		chain = append(chain, NewImages(dir, cfg.Width, cfg.Height))
	}

	return New(ctx, cfg.Width, cfg.Height, chain...)
}
