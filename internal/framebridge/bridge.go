// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package framebridge decouples synchronous frame producers from the single
// asynchronous consumer driving the outbound track.
package framebridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/metrics"
)

// DefaultCapacity is the number of pending frames kept when no capacity is given.
const DefaultCapacity = 90

// Stats is a point-in-time view of the bridge counters.
type Stats struct {
	Queued   uint64 `json:"queued"`
	Dequeued uint64 `json:"dequeued"`
	Dropped  uint64 `json:"dropped"`
	// DroppedBeforeAttach counts evictions that happened while no consumer was attached.
	DroppedBeforeAttach uint64 `json:"dropped_before_attach"`
	Depth               int    `json:"depth"`
	Capacity            int    `json:"capacity"`
	Attached            bool   `json:"attached"`
}

// Bridge is a bounded FIFO ring. Enqueue never blocks: when the ring is full the
// oldest pending frame is evicted. All operations are O(1).
type Bridge struct {
	mu    sync.Mutex
	ring  []media.Frame
	head  int
	count int

	attached string
	seq      atomic.Uint64

	queued              uint64
	dequeued            uint64
	dropped             uint64
	droppedBeforeAttach uint64
}

// New creates a bridge holding at most capacity frames.
func New(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bridge{ring: make([]media.Frame, capacity)}
}

// Enqueue appends f, evicting the oldest pending frame if the bridge is full.
// Frames without a sequence number or capture time are stamped here.
func (b *Bridge) Enqueue(f media.Frame) {
	if f.Seq == 0 {
		f.Seq = b.seq.Add(1)
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}

	b.mu.Lock()
	evicted := false
	if b.count == len(b.ring) {
		b.ring[b.head] = media.Frame{}
		b.head = (b.head + 1) % len(b.ring)
		b.count--
		b.dropped++
		if b.attached == "" {
			b.droppedBeforeAttach++
		}
		evicted = true
	}
	tail := (b.head + b.count) % len(b.ring)
	b.ring[tail] = f
	b.count++
	b.queued++
	depth := b.count
	b.mu.Unlock()

	metrics.IncFramesEnqueued()
	if evicted {
		metrics.IncFramesDropped("bridge_overflow")
	}
	metrics.SetBridgeDepth(depth)
}

// TryDequeue pops the oldest pending frame without blocking.
func (b *Bridge) TryDequeue() (media.Frame, bool) {
	b.mu.Lock()
	if b.count == 0 {
		b.mu.Unlock()
		return media.Frame{}, false
	}
	f := b.ring[b.head]
	b.ring[b.head] = media.Frame{}
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.dequeued++
	depth := b.count
	b.mu.Unlock()

	metrics.SetBridgeDepth(depth)
	return f, true
}

// Attach marks owner as the active consumer. It returns false if another consumer
// is already attached; the previous owner must Detach first.
func (b *Bridge) Attach(owner string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached != "" && b.attached != owner {
		return false
	}
	b.attached = owner
	return true
}

// Detach releases the consumer slot if owner holds it. Pending frames stay buffered.
func (b *Bridge) Detach(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached == owner {
		b.attached = ""
	}
}

// Len returns the number of pending frames.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the maximum number of pending frames.
func (b *Bridge) Capacity() int {
	return len(b.ring)
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Queued:              b.queued,
		Dequeued:            b.dequeued,
		Dropped:             b.dropped,
		DroppedBeforeAttach: b.droppedBeforeAttach,
		Depth:               b.count,
		Capacity:            len(b.ring),
		Attached:            b.attached != "",
	}
}
