// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controlplane talks to the remote streaming control plane: it creates
// streams, looks them up, polls their status and patches pipeline parameters.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/rtcrelay/internal/cache"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/metrics"
	"github.com/ManuGH/rtcrelay/internal/platform/httpx"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
)

// DefaultBaseURL is the public control-plane endpoint.
const DefaultBaseURL = "https://api.daydream.live"

const (
	streamsPath = "v1/streams"

	defaultTimeout        = 30 * time.Second
	defaultStatusTimeout  = 15 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
	defaultStatusCacheTTL = 3 * time.Second
	maxErrorBody          = 64 << 10
	userAgent             = "rtcrelay"
	tracerName            = "rtcrelay.controlplane"
)

// Options configures the control-plane client.
type Options struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration // create and update calls
	StatusTimeout  time.Duration // status and lookup calls
	MaxRetries     int           // GET requests only
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	HTTPClient     *http.Client

	// StatusCache, when set, shares status snapshots between relay replicas.
	StatusCache    cache.Cache
	StatusCacheTTL time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	root          string
	apiKey        string
	http          *http.Client
	limiter       *rate.Limiter
	timeout       time.Duration
	statusTimeout time.Duration
	maxRetries    int
	backoff       time.Duration
	maxBackoff    time.Duration
	statusCache   cache.Cache
	statusTTL     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a client. It fails with ErrConfig when no API key is set.
func New(opts Options) (*Client, error) {
	opts = normalizeOptions(opts)
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, relayerr.Configf("control plane API key is not configured")
	}
	root, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpx.Traced(httpx.NewRemoteClient(opts.Timeout))
	}

	return &Client{
		root:          root,
		apiKey:        strings.TrimSpace(opts.APIKey),
		http:          hc,
		limiter:       rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		timeout:       opts.Timeout,
		statusTimeout: opts.StatusTimeout,
		maxRetries:    opts.MaxRetries,
		backoff:       opts.Backoff,
		maxBackoff:    opts.MaxBackoff,
		statusCache:   opts.StatusCache,
		statusTTL:     opts.StatusCacheTTL,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}, nil
}

func normalizeOptions(opts Options) Options {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = defaultStatusTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.StatusCacheTTL <= 0 {
		opts.StatusCacheTTL = defaultStatusCacheTTL
	}
	return opts
}

// normalizeBaseURL strips a trailing "/v1/streams" so both the API root and the
// streams collection URL are accepted.
func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	trimmed = strings.TrimSuffix(trimmed, "/"+streamsPath)
	trimmed = strings.TrimRight(trimmed, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", relayerr.Configf("invalid control plane URL %q", raw)
	}
	return trimmed, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.root }

// CreateStream registers a new remote stream. The remote must answer 201.
func (c *Client) CreateStream(ctx context.Context, name string, cfg PipelineConfig) (StreamInfo, error) {
	name = NormalizeStreamName(name)
	if name == "" {
		name = DefaultStreamName(time.Now())
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = DefaultPipeline
	}
	payload := streamRequest{Pipeline: cfg.Pipeline, Params: cfg.Map()["params"].(map[string]any), Name: name}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out streamResponse
	status, body, err := c.do(ctx, "create_stream", "", http.MethodPost, c.root+"/"+streamsPath, payload, false)
	if err != nil {
		return StreamInfo{}, err
	}
	if status != http.StatusCreated {
		return StreamInfo{}, &relayerr.RemoteAPIError{Op: "create stream", Status: status, Body: string(body)}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("create stream: %w: decode response: %v", relayerr.ErrRemoteAPI, err)
	}
	info := out.info(name)
	if info.ID == "" || info.WhipURL == "" {
		return StreamInfo{}, fmt.Errorf("create stream: %w: response lacks id or whip_url", relayerr.ErrRemoteAPI)
	}

	logger := log.WithComponentFromContext(ctx, "controlplane")
	logger.Info().
		Str(log.FieldEvent, "controlplane.stream_created").
		Str(log.FieldSessionID, info.ID).
		Str(log.FieldStreamName, info.Name).
		Str(log.FieldPipeline, cfg.Pipeline).
		Msg("remote stream created")
	return info, nil
}

// GetStream looks up an existing stream.
func (c *Client) GetStream(ctx context.Context, id string) (StreamInfo, error) {
	if strings.TrimSpace(id) == "" {
		return StreamInfo{}, relayerr.Configf("stream id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	status, body, err := c.do(ctx, "get_stream", id, http.MethodGet, c.streamURL(id), nil, true)
	if err != nil {
		return StreamInfo{}, err
	}
	if status != http.StatusOK {
		return StreamInfo{}, &relayerr.RemoteAPIError{Op: "get stream", Status: status, Body: string(body)}
	}
	var out streamResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("get stream: %w: decode response: %v", relayerr.ErrRemoteAPI, err)
	}
	info := out.info("")
	if info.ID == "" {
		info.ID = id
	}
	return info, nil
}

// StreamStatus fetches the remote status document. A non-200 answer returns
// the snapshot together with a *relayerr.RemoteAPIError so callers can still
// surface the status code.
func (c *Client) StreamStatus(ctx context.Context, id string) (RemoteStatus, error) {
	if strings.TrimSpace(id) == "" {
		return RemoteStatus{}, relayerr.Configf("stream id is required")
	}
	key := statusCacheKey(id)
	if c.statusCache != nil {
		if raw, ok := c.statusCache.Get(ctx, key); ok {
			var cached RemoteStatus
			if err := json.Unmarshal(raw, &cached); err == nil {
				metrics.IncStatusFetch("shared_cache")
				return cached, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	status, body, err := c.do(ctx, "stream_status", id, http.MethodGet, c.streamURL(id)+"/status", nil, true)
	if err != nil {
		metrics.IncStatusFetch("error")
		return RemoteStatus{}, err
	}

	snap := RemoteStatus{HTTPStatus: status, Body: decodeBody(body), PolledAt: time.Now().UTC()}
	if status != http.StatusOK {
		metrics.IncStatusFetch("remote_error")
		return snap, &relayerr.RemoteAPIError{Op: "stream status", Status: status, Body: string(body)}
	}
	metrics.IncStatusFetch("fetched")

	if c.statusCache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			c.statusCache.Set(ctx, key, raw, c.statusTTL)
		}
	}
	return snap, nil
}

// UpdateStream patches the pipeline of a running stream. A 405 answer yields
// an error matching relayerr.ErrUnsupportedOperation.
func (c *Client) UpdateStream(ctx context.Context, id string, cfg PipelineConfig) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, relayerr.Configf("stream id is required")
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = DefaultPipeline
	}
	payload := streamRequest{Pipeline: cfg.Pipeline, Params: cfg.Map()["params"].(map[string]any)}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status, body, err := c.do(ctx, "update_stream", id, http.MethodPatch, c.streamURL(id), payload, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		if status == http.StatusMethodNotAllowed {
			logger := log.WithComponentFromContext(ctx, "controlplane")
			logger.Warn().
				Str(log.FieldEvent, "controlplane.update_unsupported").
				Str(log.FieldSessionID, id).
				Msg("remote does not support live pipeline updates; restart the stream to apply new params")
		}
		return nil, &relayerr.RemoteAPIError{Op: "update stream", Status: status, Body: string(body)}
	}
	if c.statusCache != nil {
		c.statusCache.Delete(ctx, statusCacheKey(id))
	}

	out, ok := decodeBody(body).(map[string]any)
	if !ok {
		out = map[string]any{}
	}
	return out, nil
}

func (c *Client) streamURL(id string) string {
	return c.root + "/" + streamsPath + "/" + url.PathEscape(id)
}

func statusCacheKey(id string) string {
	return "controlplane:status:" + id
}

// do performs one logical request. Idempotent requests are retried on
// transport errors and 5xx answers.
func (c *Client) do(ctx context.Context, op, streamID, method, target string, payload any, idempotent bool) (int, []byte, error) {
	tracer := telemetry.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "rtcrelay.controlplane."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ControlPlaneAttributes(op, streamID)...))
	defer span.End()

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, relayerr.Configf("%s: encode payload: %v", op, err)
		}
	}

	maxAttempts := 1
	if idempotent {
		maxAttempts = c.maxRetries + 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, nil, relayerr.Transport(op, err)
		}

		var bodyReader io.Reader
		if encoded != nil {
			bodyReader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, nil, relayerr.Configf("%s: build request: %v", op, err)
		}
		c.applyHeaders(req, encoded != nil)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := c.http.Do(req)
		duration := time.Since(start)

		if err != nil {
			metrics.ObserveControlPlaneRequest(op, 0, duration)
			lastErr = err
		} else {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			metrics.ObserveControlPlaneRequest(op, resp.StatusCode, duration)
			span.SetAttributes(telemetry.HTTPAttributes(method, op, target, resp.StatusCode)...)

			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode < http.StatusInternalServerError || attempt == maxAttempts {
				if resp.StatusCode >= http.StatusBadRequest {
					span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
				} else {
					span.SetStatus(codes.Ok, "")
				}
				return resp.StatusCode, body, nil
			} else {
				lastErr = fmt.Errorf("remote returned %d", resp.StatusCode)
			}
		}

		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		logger := log.WithComponentFromContext(ctx, "controlplane")
		logger.Debug().
			Str(log.FieldEvent, "controlplane.retry").
			Str("op", op).
			Int("attempt", attempt).
			Err(lastErr).
			Msg("retrying control plane request")
		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			lastErr = err
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	if relayerr.IsTimeout(lastErr) {
		return 0, nil, relayerr.Transport(op, lastErr)
	}
	return 0, nil, fmt.Errorf("%s: %w: %w", op, relayerr.ErrRemoteAPI, lastErr)
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (c *Client) backoffFor(retry int) time.Duration {
	d := c.backoff << retry
	if d > c.maxBackoff || d <= 0 {
		d = c.maxBackoff
	}
	c.mu.Lock()
	jitter := time.Duration(c.rnd.Int63n(int64(d)/2 + 1))
	c.mu.Unlock()
	return d/2 + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decodeBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return map[string]any{"error": string(body)}
	}
	return v
}
