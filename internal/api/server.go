// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the stream and WHEP controllers over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/routers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/control/middleware"
	"github.com/ManuGH/rtcrelay/internal/media"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/store"
	"github.com/ManuGH/rtcrelay/internal/stream"
	"github.com/ManuGH/rtcrelay/internal/whep"
)

// StreamController is the publish side driven by the API.
type StreamController interface {
	Phase() stream.Phase
	Start(ctx context.Context, name string, override map[string]any) (stream.SessionInfo, error)
	Restart(ctx context.Context, name string, override map[string]any) (stream.SessionInfo, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context, refresh bool) stream.Status
	EnqueueFrame(f media.Frame) error
	UpdatePipeline(ctx context.Context, partial map[string]any) (map[string]any, error)
	Settings() stream.Settings
	UpdateSettings(ctx context.Context, p stream.SettingsPatch) (stream.Settings, error)
	CachePipeline(cfg map[string]any) (map[string]any, error)
	CachedPipeline() (map[string]any, error)
}

// WhepController is the receive side driven by the API.
type WhepController interface {
	Connect(ctx context.Context, url string) error
	Disconnect(ctx context.Context) error
	Status() whep.Status
	LatestFrame() (media.Frame, bool)
}

// SessionHistory lists recorded publish sessions.
type SessionHistory interface {
	RecentSessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	Stack        middleware.StackConfig
	MaxBodyBytes int64
	Version      string
}

// Deps are the services behind the routes. Sessions and Metrics are optional.
type Deps struct {
	Stream   StreamController
	WHEP     WhepController
	Sessions SessionHistory
	Metrics  http.Handler
}

// Server owns the route table.
type Server struct {
	cfg      Config
	stream   StreamController
	whep     WhepController
	sessions SessionHistory
	metrics  http.Handler
	spec     routers.Router
	handler  http.Handler
}

// New validates deps, loads the embedded API description and builds the router.
func New(ctx context.Context, cfg Config, deps Deps) (*Server, error) {
	if deps.Stream == nil || deps.WHEP == nil {
		return nil, errors.New("api: stream and whep controllers are required")
	}
	spec, err := newSpecRouter(ctx)
	if err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	s := &Server{
		cfg:      cfg,
		stream:   deps.Stream,
		whep:     deps.WHEP,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		spec:     spec,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// PublicPaths never require the API token.
var PublicPaths = []string{"/healthz", "/metrics", "/openapi.yaml"}

var _ ServerInterface = (*Server)(nil)

// routes mounts the generated operation wrappers on the middleware stack.
// Schema validation runs before parameter binding.
func (s *Server) routes() http.Handler {
	stack := s.cfg.Stack
	stack.ExemptPaths = append(stack.ExemptPaths, PublicPaths...)
	r := middleware.NewRouter(stack)
	r.Use(s.limitBody, s.validateRequest)
	return HandlerWithOptions(s, ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: writeBindError,
	})
}

func writeBindError(w http.ResponseWriter, r *http.Request, err error) {
	problem.FromError(w, r, relayerr.Configf("%v", err))
}

// GetMetrics implements ServerInterface.
func (s *Server) GetMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	if s.cfg.MaxBodyBytes <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
