// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
)

// Tracing starts one server span per API request, continuing a W3C trace
// from the caller when present. The span is named after the surface and the
// request path since the route is only known once routing is done; it is
// renamed to the route pattern afterwards. Handlers add session attributes
// through trace.SpanFromContext.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+RouteSurface(r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			span.SetName(r.Method + " " + route)

			// Query values are never recorded.
			code := ww.Status()
			attrs := telemetry.HTTPAttributes(r.Method, route, r.URL.Path, code)
			attrs = append(attrs, attribute.String(telemetry.APISurfaceKey, RouteSurface(route)))
			if reqID := ww.Header().Get(problem.HeaderRequestID); reqID != "" {
				attrs = append(attrs, attribute.String(telemetry.RequestIDKey, reqID))
			}
			span.SetAttributes(attrs...)

			switch {
			case code >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(code))
			case code == http.StatusConflict || code == http.StatusMethodNotAllowed:
				// session state conflicts are expected client errors
				span.AddEvent("relay.rejected", trace.WithAttributes(attribute.Int(telemetry.HTTPStatusCodeKey, code)))
			}
		})
	}
}
