// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controlplane

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/cache"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		RateLimit:  1000,
		HTTPClient: srv.Client(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAPIKeyAndValidURL(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, relayerr.ErrConfig)

	_, err = New(Options{APIKey: "k", BaseURL: "::not a url"})
	assert.ErrorIs(t, err, relayerr.ErrConfig)

	c, err := New(Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestNormalizeBaseURL(t *testing.T) {
	for in, want := range map[string]string{
		"https://api.example.com":                "https://api.example.com",
		"https://api.example.com/":               "https://api.example.com",
		"https://api.example.com/v1/streams":     "https://api.example.com",
		"https://api.example.com/v1/streams/":    "https://api.example.com",
		"http://localhost:9000/proxy/v1/streams": "http://localhost:9000/proxy",
	} {
		got, err := normalizeBaseURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCreateStream(t *testing.T) {
	var got streamRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/streams", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"str_1","whip_url":"https://whip/1","whep_url":"https://whep/1","output_playback_id":"pb1"}`)
	}))

	info, err := c.CreateStream(context.Background(), "demo", PipelineConfig{Params: map[string]any{"prompt": "x"}})
	require.NoError(t, err)
	assert.Equal(t, StreamInfo{ID: "str_1", Name: "demo", WhipURL: "https://whip/1", WhepURL: "https://whep/1", PlaybackID: "pb1"}, info)
	assert.Equal(t, DefaultPipeline, got.Pipeline)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "x", got.Params["prompt"])
}

func TestCreateStream_DefaultName(t *testing.T) {
	var name string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req streamRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		name = req.Name
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"s","whip_url":"https://whip"}`)
	}))
	info, err := c.CreateStream(context.Background(), "", PipelineConfig{})
	require.NoError(t, err)
	assert.Regexp(t, `^relay-stream-\d+$`, name)
	assert.Equal(t, name, info.Name)
}

func TestCreateStream_Non201IsRemoteAPIError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"id":"s","whip_url":"w"}`)
	}))
	_, err := c.CreateStream(context.Background(), "x", PipelineConfig{})
	require.Error(t, err)

	var apiErr *relayerr.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.ErrorIs(t, err, relayerr.ErrRemoteAPI)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCreateStream_NotRetriedOn5xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := c.CreateStream(context.Background(), "x", PipelineConfig{})
	assert.ErrorIs(t, err, relayerr.ErrRemoteAPI)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetStream(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/streams/str_7", r.URL.Path)
		_, _ = io.WriteString(w, `{"whip_url":"https://whip/7","name":"n"}`)
	}))
	info, err := c.GetStream(context.Background(), "str_7")
	require.NoError(t, err)
	assert.Equal(t, "str_7", info.ID)
	assert.Equal(t, "n", info.Name)

	_, err = c.GetStream(context.Background(), " ")
	assert.ErrorIs(t, err, relayerr.ErrConfig)
}

func TestStreamStatus_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/streams/s1/status", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"state":"ONLINE"}}`)
	}))

	st, err := c.StreamStatus(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, st.HTTPStatus)
	assert.Equal(t, "ONLINE", st.State())
	assert.True(t, st.Ready())
	assert.EqualValues(t, 2, calls.Load())
}

func TestStreamStatus_NotFoundCarriesSnapshot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "no such stream")
	}))

	st, err := c.StreamStatus(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrRemoteAPI)
	assert.Equal(t, http.StatusNotFound, st.HTTPStatus)
	assert.Equal(t, map[string]any{"error": "no such stream"}, st.Body)
}

func TestStreamStatus_UsesSharedCache(t *testing.T) {
	var calls atomic.Int32
	store := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = store.Close() })

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"status":"ready"}`)
	}), func(o *Options) {
		o.StatusCache = store
		o.StatusCacheTTL = time.Minute
	})

	for i := 0; i < 3; i++ {
		st, err := c.StreamStatus(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "ready", st.State())
	}
	assert.EqualValues(t, 1, calls.Load())

	_, ok := store.Get(context.Background(), "controlplane:status:s1")
	assert.True(t, ok)
}

func TestStreamStatus_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), func(o *Options) {
		o.StatusTimeout = 50 * time.Millisecond
	})
	defer close(release)

	_, err := c.StreamStatus(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrNetworkTimeout)
}

func TestUpdateStream(t *testing.T) {
	var got streamRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/streams/s1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"s1","ok":true}`)
	}))

	out, err := c.UpdateStream(context.Background(), "s1", PipelineConfig{Params: map[string]any{"prompt": "z"}})
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, DefaultPipeline, got.Pipeline)
	assert.Empty(t, got.Name)
}

func TestUpdateStream_405IsUnsupported(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	_, err := c.UpdateStream(context.Background(), "s1", PipelineConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrUnsupportedOperation)
	assert.NotErrorIs(t, err, relayerr.ErrRemoteAPI)
}

func TestRemoteStatus_Accessors(t *testing.T) {
	st := RemoteStatus{Body: map[string]any{"data": map[string]any{"state": "ONLINE", "whep_url": "https://play/whep"}}}
	assert.Equal(t, "ONLINE", st.State())
	assert.True(t, st.Ready())
	assert.Equal(t, "https://play/whep", st.WhepURL())

	st = RemoteStatus{Body: map[string]any{"status": "starting", "whep_url": "https://top"}}
	assert.False(t, st.Ready())
	assert.Equal(t, "https://top", st.WhepURL())

	assert.Empty(t, RemoteStatus{Body: "text"}.WhepURL())
}
