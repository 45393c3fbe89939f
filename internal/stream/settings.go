// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"strings"
	"time"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

const (
	MinFrameRate = 1
	MaxFrameRate = 240
	MinFrameSize = 64
	MaxFrameSize = 4096
)

// Settings are the outbound stream parameters. Changes apply to the next session.
type Settings struct {
	FrameRate         int    `json:"frame_rate"`
	FrameWidth        int    `json:"frame_width"`
	FrameHeight       int    `json:"frame_height"`
	FallbackMedia     string `json:"fallback_media,omitempty"`
	FallbackImagesDir string `json:"fallback_images_dir,omitempty"`
}

// DefaultSettings is 1280x720 at 30 fps with no fallbacks.
func DefaultSettings() Settings {
	return Settings{FrameRate: 30, FrameWidth: 1280, FrameHeight: 720}
}

// SettingsPatch is a partial update; nil fields keep their value.
type SettingsPatch struct {
	FrameRate         *int    `json:"frame_rate,omitempty"`
	FrameWidth        *int    `json:"frame_width,omitempty"`
	FrameHeight       *int    `json:"frame_height,omitempty"`
	FallbackMedia     *string `json:"fallback_media,omitempty"`
	FallbackImagesDir *string `json:"fallback_images_dir,omitempty"`
}

// Normalize rejects non-positive values and clamps the rest into range.
// Sizes are rounded down to even numbers, as 4:2:0 encoders require.
func (s Settings) Normalize() (Settings, error) {
	if s.FrameRate <= 0 {
		return Settings{}, relayerr.Configf("frame_rate must be positive, got %d", s.FrameRate)
	}
	if s.FrameWidth <= 0 || s.FrameHeight <= 0 {
		return Settings{}, relayerr.Configf("frame size must be positive, got %dx%d", s.FrameWidth, s.FrameHeight)
	}
	s.FrameRate = clamp(s.FrameRate, MinFrameRate, MaxFrameRate)
	s.FrameWidth = clamp(s.FrameWidth, MinFrameSize, MaxFrameSize) &^ 1
	s.FrameHeight = clamp(s.FrameHeight, MinFrameSize, MaxFrameSize) &^ 1
	s.FallbackMedia = strings.TrimSpace(s.FallbackMedia)
	s.FallbackImagesDir = strings.TrimSpace(s.FallbackImagesDir)
	return s, nil
}

// Apply overlays p and normalizes the result.
func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	if p.FrameRate != nil {
		s.FrameRate = *p.FrameRate
	}
	if p.FrameWidth != nil {
		s.FrameWidth = *p.FrameWidth
	}
	if p.FrameHeight != nil {
		s.FrameHeight = *p.FrameHeight
	}
	if p.FallbackMedia != nil {
		s.FallbackMedia = *p.FallbackMedia
	}
	if p.FallbackImagesDir != nil {
		s.FallbackImagesDir = *p.FallbackImagesDir
	}
	return s.Normalize()
}

// FrameDuration is the tick interval of the publish loop.
func (s Settings) FrameDuration() time.Duration {
	if s.FrameRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(s.FrameRate)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
