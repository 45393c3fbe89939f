// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// WhepConnect implements ServerInterface. It subscribes to the given URL, or
// to the running publish session's playback URL when the body names none.
func (s *Server) WhepConnect(w http.ResponseWriter, r *http.Request) {
	var req WhepConnectJSONRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	var url string
	if req.WhepUrl != nil {
		url = strings.TrimSpace(*req.WhepUrl)
	}
	if url == "" {
		if st := s.stream.Status(r.Context(), false); st.Session != nil {
			url = st.Session.WhepURL
		}
	}
	if err := s.whep.Connect(r.Context(), url); err != nil {
		writeError(w, r, "whep_connect", err)
		return
	}
	writeJSON(w, http.StatusOK, s.whep.Status())
}

// WhepDisconnect implements ServerInterface.
func (s *Server) WhepDisconnect(w http.ResponseWriter, r *http.Request) {
	_ = s.whep.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, s.whep.Status())
}

// WhepStatus implements ServerInterface.
func (s *Server) WhepStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.whep.Status())
}

// WhepLatestFrame implements ServerInterface.
func (s *Server) WhepLatestFrame(w http.ResponseWriter, r *http.Request) {
	f, ok := s.whep.LatestFrame()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h := w.Header()
	h.Set("Cache-Control", "no-store")
	h.Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	h.Set("X-Frame-Width", strconv.Itoa(f.Width))
	h.Set("X-Frame-Height", strconv.Itoa(f.Height))
	h.Set("X-Frame-Format", string(f.Format))

	body := f.Data
	contentType := "application/octet-stream"
	if !f.Format.Encoded() {
		png, err := media.EncodePNG(f)
		if err != nil {
			writeError(w, r, "whep_frame", err)
			return
		}
		body, contentType = png, "image/png"
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

