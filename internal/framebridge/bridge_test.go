// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package framebridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/media"
)

func frame(seq uint64) media.Frame {
	f := media.Blank(2, 2)
	f.Seq = seq
	return f
}

func drain(b *Bridge) []uint64 {
	var out []uint64
	for {
		f, ok := b.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, f.Seq)
	}
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, 5, New(5).Capacity())
}

func TestFIFOOrder(t *testing.T) {
	b := New(4)
	for i := uint64(1); i <= 3; i++ {
		b.Enqueue(frame(i))
	}
	assert.Equal(t, []uint64{1, 2, 3}, drain(b))

	_, ok := b.TryDequeue()
	assert.False(t, ok)
}

func TestOverflowKeepsNewestInOrder(t *testing.T) {
	b := New(90)
	for i := uint64(1); i <= 95; i++ {
		b.Enqueue(frame(i))
		require.LessOrEqual(t, b.Len(), 90)
	}

	got := drain(b)
	require.Len(t, got, 90)
	assert.Equal(t, uint64(6), got[0])
	assert.Equal(t, uint64(95), got[89])
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1]+1, got[i])
	}

	st := b.Stats()
	assert.EqualValues(t, 95, st.Queued)
	assert.EqualValues(t, 5, st.Dropped)
	assert.EqualValues(t, 5, st.DroppedBeforeAttach)
	assert.EqualValues(t, 90, st.Dequeued)
	assert.Zero(t, st.Depth)
}

func TestBufferedBeforeAttachIsDrained(t *testing.T) {
	b := New(10)
	b.Enqueue(frame(1))
	b.Enqueue(frame(2))

	require.True(t, b.Attach("session-a"))
	assert.False(t, b.Attach("session-b"))
	assert.True(t, b.Stats().Attached)

	assert.Equal(t, []uint64{1, 2}, drain(b))

	b.Detach("session-b")
	assert.True(t, b.Stats().Attached)
	b.Detach("session-a")
	assert.False(t, b.Stats().Attached)
	assert.True(t, b.Attach("session-b"))
}

func TestEnqueueStampsMissingMetadata(t *testing.T) {
	b := New(2)
	b.Enqueue(media.Blank(2, 2))
	f, ok := b.TryDequeue()
	require.True(t, ok)
	assert.NotZero(t, f.Seq)
	assert.False(t, f.CapturedAt.IsZero())
}

func TestConcurrentProducersNeverExceedCapacity(t *testing.T) {
	b := New(16)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b.Enqueue(media.Blank(2, 2))
				if i%7 == 0 {
					b.TryDequeue()
				}
			}
		}()
	}
	wg.Wait()

	st := b.Stats()
	assert.LessOrEqual(t, st.Depth, 16)
	assert.EqualValues(t, 8*500, st.Queued)
	assert.Equal(t, st.Queued, st.Dequeued+st.Dropped+uint64(st.Depth))
}
