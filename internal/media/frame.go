// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the frame model shared by producers, the outbound track and the
// inbound mailbox.
package media

import (
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// PixelFormat describes the layout of Frame.Data.
type PixelFormat string

const (
	FormatRGB24 PixelFormat = "rgb24"
	FormatRGBA  PixelFormat = "rgba"
	FormatI420  PixelFormat = "i420"
	FormatVP8   PixelFormat = "vp8"
	FormatH264  PixelFormat = "h264"
)

// Encoded reports whether the format is a compressed codec sample rather than raw pixels.
func (p PixelFormat) Encoded() bool {
	return p == FormatVP8 || p == FormatH264
}

// FrameSize returns the byte length of a raw frame, or -1 for encoded formats.
func (p PixelFormat) FrameSize(width, height int) int {
	switch p {
	case FormatRGB24:
		return width * height * 3
	case FormatRGBA:
		return width * height * 4
	case FormatI420:
		cw, ch := (width+1)/2, (height+1)/2
		return width*height + 2*cw*ch
	default:
		return -1
	}
}

// ParsePixelFormat accepts the lower-case format names used on the HTTP API.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch p := PixelFormat(strings.ToLower(strings.TrimSpace(s))); p {
	case FormatRGB24, FormatRGBA, FormatI420, FormatVP8, FormatH264:
		return p, nil
	case "rgb":
		return FormatRGB24, nil
	case "yuv420p":
		return FormatI420, nil
	default:
		return "", fmt.Errorf("unknown pixel format %q", s)
	}
}

// Codec names the outbound/inbound video codec.
type Codec string

const (
	CodecVP8  Codec = "vp8"
	CodecH264 Codec = "h264"
)

// MimeType returns the WebRTC mime type for the codec.
func (c Codec) MimeType() string {
	if c == CodecH264 {
		return webrtc.MimeTypeH264
	}
	return webrtc.MimeTypeVP8
}

// Format returns the encoded pixel format carried by samples of this codec.
func (c Codec) Format() PixelFormat {
	if c == CodecH264 {
		return FormatH264
	}
	return FormatVP8
}

// CodecFromMime maps a negotiated mime type back to a Codec.
func CodecFromMime(mime string) (Codec, bool) {
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeVP8):
		return CodecVP8, true
	case strings.EqualFold(mime, webrtc.MimeTypeH264):
		return CodecH264, true
	default:
		return "", false
	}
}

// Frame is an immutable picture plus its producer metadata.
// Data must not be modified once the frame has been handed to another stage.
type Frame struct {
	Width      int
	Height     int
	Format     PixelFormat
	Data       []byte
	Seq        uint64
	CapturedAt time.Time
}

// Validate checks that raw frames carry exactly the bytes their geometry requires.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("empty frame data")
	}
	if want := f.Format.FrameSize(f.Width, f.Height); want >= 0 && len(f.Data) != want {
		return fmt.Errorf("frame %s %dx%d: got %d bytes, want %d", f.Format, f.Width, f.Height, len(f.Data), want)
	}
	return nil
}

// Keyframe reports whether the frame can be decoded on its own. Raw frames
// always can; VP8 needs the key frame bit clear (RFC 6386 section 9.1) and
// H.264 needs an IDR slice in its Annex B payload.
func (f Frame) Keyframe() bool {
	switch f.Format {
	case FormatVP8:
		return len(f.Data) > 0 && f.Data[0]&0x01 == 0
	case FormatH264:
		return h264HasIDR(f.Data)
	default:
		return len(f.Data) > 0
	}
}

func h264HasIDR(b []byte) bool {
	for i := 0; i+3 < len(b); i++ {
		if b[i] != 0 || b[i+1] != 0 {
			continue
		}
		start := -1
		switch {
		case b[i+2] == 1:
			start = i + 3
		case b[i+2] == 0 && i+4 < len(b) && b[i+3] == 1:
			start = i + 4
		}
		if start >= 0 && start < len(b) && b[start]&0x1f == 5 {
			return true
		}
	}
	return false
}

// Resolution renders "WxH" for logs.
func (f Frame) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Blank returns a black rgb24 frame of the given size.
func Blank(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Format: FormatRGB24,
		Data:   make([]byte, FormatRGB24.FrameSize(width, height)),
	}
}
