// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetWithinIntervalFetchesOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var calls atomic.Int32
	th := New(3*time.Second, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		v, err := th.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		clock.Advance(200 * time.Millisecond)
	}
	assert.EqualValues(t, 1, calls.Load())

	clock.Advance(time.Second)
	v, err := th.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestForceBypassesCache(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var calls atomic.Int32
	th := New(time.Minute, func(context.Context) (int32, error) {
		return calls.Add(1), nil
	}, WithClock(clock.Now))

	_, _ = th.Get(context.Background(), false)
	v, _ := th.Get(context.Background(), true)
	assert.EqualValues(t, 2, v)
	assert.EqualValues(t, 2, th.Fetches())
}

func TestFailedFetchKeepsValueAndIsThrottled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	fail := errors.New("remote down")
	var calls atomic.Int32
	th := New(3*time.Second, func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "ok", nil
		}
		return "", fail
	}, WithClock(clock.Now))

	v, err := th.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	clock.Advance(4 * time.Second)
	v, err = th.Get(context.Background(), false)
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, "ok", v)

	v, err = th.Get(context.Background(), false)
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, "ok", v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestConcurrentCallersShareFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	th := New(time.Minute, func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = th.Get(context.Background(), false)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestPeekAndReset(t *testing.T) {
	th := New(0, func(context.Context) (int, error) { return 7, nil })
	_, _, ok := th.Peek()
	assert.False(t, ok)

	_, _ = th.Get(context.Background(), false)
	v, at, ok := th.Peek()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.False(t, at.IsZero())

	th.Reset()
	_, _, ok = th.Peek()
	assert.False(t, ok)
	assert.Equal(t, DefaultInterval, th.interval)
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	th := New(time.Minute, func(ctx context.Context) (string, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return "ok", ctx.Err()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := th.Get(ctx, false)
		firstErr <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		v   string
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := th.Get(context.Background(), false)
		second <- result{v, err}
	}()
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "ok", got.v)
	assert.EqualValues(t, 1, th.Fetches())
}

func TestFetchTimeout(t *testing.T) {
	th := New(time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, WithFetchTimeout(20*time.Millisecond))

	_, err := th.Get(context.Background(), false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, th.Fetches())
}
