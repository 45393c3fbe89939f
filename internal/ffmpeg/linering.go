// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"sync"
)

const maxPartialLine = 4096

// LineRing keeps the last N stderr lines of a helper process. Writes may split
// lines arbitrarily; an unterminated tail is held until its newline arrives.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial []byte
}

// NewLineRing creates a LineRing with the given capacity (default 50).
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			r.partial = append(r.partial, data...)
			if len(r.partial) > maxPartialLine {
				r.push(string(r.partial))
				r.partial = r.partial[:0]
			}
			break
		}
		line := data[:i]
		if len(r.partial) > 0 {
			line = append(r.partial, line...)
			r.partial = r.partial[:0]
		}
		r.push(string(bytes.TrimRight(line, "\r")))
		data = data[i+1:]
	}
	return len(p), nil
}

func (r *LineRing) push(line string) {
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns up to n of the newest complete lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	size := len(r.lines)
	for i := n; i > 0; i-- {
		out = append(out, r.lines[(r.head-i+size)%size])
	}
	return out
}
