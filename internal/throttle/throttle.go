// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package throttle wraps a remote fetch with a minimum-interval cache.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the minimum age before a cached value is refetched.
const DefaultInterval = 3 * time.Second

// DefaultFetchTimeout bounds a shared fetch.
const DefaultFetchTimeout = 10 * time.Second

// FetchFunc retrieves a fresh value.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Option configures a Throttle.
type Option func(*options)

type options struct {
	now     func() time.Time
	timeout time.Duration
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFetchTimeout bounds each fetch. Non-positive values keep DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Throttle serves Get from cache while the cached value is younger than the interval.
// Concurrent callers that need a fetch share one in-flight request.
// A failed fetch is timestamped like a successful one so a failing remote is not
// polled more often than the interval; the last good value is kept.
type Throttle[T any] struct {
	fetch    FetchFunc[T]
	interval time.Duration
	now      func() time.Time
	timeout  time.Duration
	group    singleflight.Group

	mu        sync.Mutex
	value     T
	hasValue  bool
	lastErr   error
	fetchedAt time.Time
	fetches   uint64
}

// New creates a throttle around fetch. A non-positive interval uses DefaultInterval.
func New[T any](interval time.Duration, fetch FetchFunc[T], opts ...Option) *Throttle[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	o := options{now: time.Now, timeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Throttle[T]{fetch: fetch, interval: interval, now: o.now, timeout: o.timeout}
}

// Get returns the cached value unless force is set or the cache has expired, in which
// case it fetches. The error of the most recent fetch is returned with the cached value.
// The shared fetch is detached from the caller's cancellation and bounded by the
// fetch timeout instead; a caller whose ctx ends stops waiting and gets ctx.Err().
func (t *Throttle[T]) Get(ctx context.Context, force bool) (T, error) {
	if !force && t.isFresh() {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, t.lastErr
	}

	ch := t.group.DoChan("fetch", func() (any, error) {
		if !force && t.isFresh() {
			return nil, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		v, err := t.fetch(fctx)
		t.mu.Lock()
		defer t.mu.Unlock()
		t.fetches++
		t.fetchedAt = t.now()
		t.lastErr = err
		if err == nil {
			t.value = v
			t.hasValue = true
		}
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.lastErr
}

func (t *Throttle[T]) isFresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fetchedAt.IsZero() && t.now().Sub(t.fetchedAt) < t.interval
}

// Peek returns the cached value and its fetch time without fetching.
func (t *Throttle[T]) Peek() (T, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.fetchedAt, t.hasValue
}

// Fetches returns the number of completed fetches.
func (t *Throttle[T]) Fetches() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches
}

// Reset drops the cached value so the next Get fetches.
func (t *Throttle[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	t.value = zero
	t.hasValue = false
	t.lastErr = nil
	t.fetchedAt = time.Time{}
}
