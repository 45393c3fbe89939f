// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestConfigureAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "relay-test", Version: "v9"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("stream")
	l.Info().Str(FieldEvent, "test.event").Msg("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "relay-test", lines[0]["service"])
	assert.Equal(t, "v9", lines[0]["version"])
	assert.Equal(t, "stream", lines[0][FieldComponent])
	assert.Equal(t, "test.event", lines[0][FieldEvent])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	L().Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	require.True(t, SetLevel("debug"))
	L().Debug().Msg("visible")
	assert.NotZero(t, buf.Len())

	assert.False(t, SetLevel("chatty"))
	assert.False(t, SetLevel(""))
}

func TestContextHelpers(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "nil context", ctx: nil, id: "req-1"},
		{name: "background", ctx: context.Background(), id: "req-2"},
		{name: "empty id", ctx: context.Background(), id: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.id) //nolint:staticcheck
			assert.Equal(t, tt.id, RequestIDFromContext(ctx))
		})
	}

	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck
	assert.Empty(t, SessionIDFromContext(context.Background()))
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "rid-7")
	ctx = ContextWithSessionID(ctx, "s1")
	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "rid-7", lines[0][FieldRequestID])
	assert.Equal(t, "s1", lines[0][FieldSessionID])
}

func TestMiddlewareLogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "/items/{id}", lines[0]["route"])
	assert.EqualValues(t, http.StatusTeapot, lines[0][FieldStatus])
	assert.Equal(t, "request.handled", lines[0][FieldEvent])
}
