// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

func TestOffer_PostsSDPAndResolvesLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/sdp", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "v=0 offer", string(body))

		w.Header().Set("Location", "/sessions/42")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "v=0 answer")
	}))
	defer srv.Close()

	s := NewSignaler("whip", srv.Client(), "secret")
	answer, err := s.Offer(context.Background(), srv.URL+"/whip/endpoint", "v=0 offer")
	require.NoError(t, err)
	assert.Equal(t, "v=0 answer", answer.SDP)
	assert.Equal(t, srv.URL+"/sessions/42", answer.Resource)
}

func TestOffer_AcceptsOKWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "v=0 answer")
	}))
	defer srv.Close()

	answer, err := NewSignaler("whep", srv.Client(), "").Offer(context.Background(), srv.URL, "v=0")
	require.NoError(t, err)
	assert.Empty(t, answer.Resource)
}

func TestOffer_RemoteRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSignaler("whip", srv.Client(), "").Offer(context.Background(), srv.URL, "v=0")
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerr.ErrNegotiation)
	assert.ErrorIs(t, err, relayerr.ErrRemoteAPI)

	var apiErr *relayerr.RemoteAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, apiErr.Body, "no capacity")
}

func TestOffer_EmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := NewSignaler("whip", srv.Client(), "").Offer(context.Background(), srv.URL, "v=0")
	assert.ErrorIs(t, err, relayerr.ErrNegotiation)
}

func TestOffer_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewSignaler("whip", srv.Client(), "").Offer(ctx, srv.URL, "v=0")
	assert.ErrorIs(t, err, relayerr.ErrNetworkTimeout)
}

func TestOffer_InvalidEndpoint(t *testing.T) {
	_, err := NewSignaler("whip", http.DefaultClient, "").Offer(context.Background(), "://bad", "v=0")
	assert.ErrorIs(t, err, relayerr.ErrConfig)
}

func TestTeardown(t *testing.T) {
	var deletes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deletes.Add(1)
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	s := NewSignaler("whip", srv.Client(), "")
	ctx := context.Background()

	require.NoError(t, s.Teardown(ctx, ""))
	assert.EqualValues(t, 0, deletes.Load())

	require.NoError(t, s.Teardown(ctx, srv.URL+"/ok"))
	require.NoError(t, s.Teardown(ctx, srv.URL+"/gone"))
	err := s.Teardown(ctx, srv.URL+"/broken")
	assert.ErrorIs(t, err, relayerr.ErrRemoteAPI)
	assert.EqualValues(t, 3, deletes.Load())
}

func TestResolveLocation(t *testing.T) {
	assert.Equal(t, "", resolveLocation("http://a/whip", ""))
	assert.Equal(t, "http://a/res/1", resolveLocation("http://a/whip", "/res/1"))
	assert.Equal(t, "http://a/whip/res", resolveLocation("http://a/whip/", "res"))
	assert.Equal(t, "https://b/x", resolveLocation("http://a/whip", "https://b/x"))
}
