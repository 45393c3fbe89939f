// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/ManuGH/rtcrelay/internal/control/http/problem"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
)

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=oapi-codegen.yaml openapi.yaml

//go:embed openapi.yaml
var openAPIDoc []byte

// LoadSpec parses and validates the embedded API description.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(openAPIDoc)
	if err != nil {
		return nil, fmt.Errorf("load openapi: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	return doc, nil
}

func newSpecRouter(ctx context.Context) (routers.Router, error) {
	doc, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi router: %w", err)
	}
	return router, nil
}

// GetOpenAPI implements ServerInterface.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDoc)
}

// validateRequest checks query parameters and JSON bodies against the API
// description. Binary bodies are left to the handlers. Unknown routes fall
// through to the router's 404/405 handling.
func (s *Server) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := s.spec.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				ExcludeRequestBody: mediaType != "application/json",
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeTooLarge(w, r, maxErr.Limit)
				return
			}
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Debug().Err(err).Str(log.FieldEvent, "request.invalid").Msg("request rejected by schema")
			problem.FromError(w, r, relayerr.Configf("invalid request: %v", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
