// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package whep

import (
	"sync"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// Mailbox holds the most recent inbound frame. Put overwrites; Latest observes
// without consuming.
type Mailbox struct {
	mu    sync.RWMutex
	frame media.Frame
	full  bool
}

func (m *Mailbox) Put(f media.Frame) {
	m.mu.Lock()
	m.frame = f
	m.full = true
	m.mu.Unlock()
}

func (m *Mailbox) Latest() (media.Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame, m.full
}

func (m *Mailbox) Clear() {
	m.mu.Lock()
	m.frame = media.Frame{}
	m.full = false
	m.mu.Unlock()
}
