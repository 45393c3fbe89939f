// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

// PushFrames implements ServerInterface. It accepts an image body, a JSON
// batch of base64 images, or one raw frame described by the width, height and
// format query parameters.
func (s *Server) PushFrames(w http.ResponseWriter, r *http.Request, params PushFramesParams) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		frames []media.Frame
		err    error
	)
	switch {
	case mediaType == "application/json":
		var req PushFramesJSONRequestBody
		if !decodeJSON(w, r, &req) {
			return
		}
		var encoded []string
		if req.Frames != nil {
			encoded = *req.Frames
		}
		frames, err = decodeBase64Frames(encoded)
	case mediaType == "application/octet-stream":
		frames, err = readRawFrame(r, params)
	case strings.HasPrefix(mediaType, "image/"):
		var f media.Frame
		f, err = media.DecodeImage(r.Body)
		if err != nil {
			err = relayerr.Configf("%v", err)
		}
		frames = []media.Frame{f}
	default:
		problem.Write(w, r, http.StatusUnsupportedMediaType, "relay/unsupported_media_type", "Unsupported Media Type",
			"UNSUPPORTED_MEDIA_TYPE", "send an image, application/json or application/octet-stream body", nil)
		return
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeTooLarge(w, r, maxErr.Limit)
			return
		}
		writeError(w, r, "push_frames", err)
		return
	}

	for _, f := range frames {
		if err := s.stream.EnqueueFrame(f); err != nil {
			writeError(w, r, "push_frames", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(frames)})
}

func decodeBase64Frames(encoded []string) ([]media.Frame, error) {
	if len(encoded) == 0 {
		return nil, relayerr.Configf("frames must contain at least one image")
	}
	frames := make([]media.Frame, 0, len(encoded))
	for i, item := range encoded {
		// data URLs are accepted as sent by browsers
		if idx := strings.Index(item, ";base64,"); idx >= 0 && strings.HasPrefix(item, "data:") {
			item = item[idx+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(item))
		if err != nil {
			return nil, relayerr.Configf("frame %d: invalid base64: %v", i, err)
		}
		f, err := media.DecodeImage(bytes.NewReader(data))
		if err != nil {
			return nil, relayerr.Configf("frame %d: %v", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func readRawFrame(r *http.Request, params PushFramesParams) ([]media.Frame, error) {
	if params.Width == nil {
		return nil, relayerr.Configf("width query parameter is required")
	}
	if params.Height == nil {
		return nil, relayerr.Configf("height query parameter is required")
	}
	format := media.FormatRGB24
	if params.Format != nil && *params.Format != "" {
		var err error
		if format, err = media.ParsePixelFormat(*params.Format); err != nil {
			return nil, relayerr.Configf("%v", err)
		}
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return []media.Frame{{
		Width:      *params.Width,
		Height:     *params.Height,
		Format:     format,
		Data:       data,
		CapturedAt: time.Now(),
	}}, nil
}
