// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relayerr defines the error taxonomy shared by the session engine.
// Callers classify errors with errors.Is against the sentinels below.
package relayerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrConfig marks invalid pipeline or runtime configuration. Never retried.
	ErrConfig = errors.New("invalid configuration")
	// ErrSessionConflict marks an operation that is invalid for the current session state.
	ErrSessionConflict = errors.New("session conflict")
	// ErrRemoteAPI marks a non-2xx response from the remote control plane.
	ErrRemoteAPI = errors.New("remote api error")
	// ErrNegotiation marks a failed WebRTC offer/answer exchange.
	ErrNegotiation = errors.New("negotiation failed")
	// ErrNetworkTimeout marks a remote call that exceeded its deadline.
	ErrNetworkTimeout = errors.New("network timeout")
	// ErrUnsupportedOperation marks a live update the remote endpoint does not support.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrRuntime marks a local helper (ffmpeg encoder or decoder) that failed to
	// start or crashed.
	ErrRuntime = errors.New("runtime failure")
)

// RemoteAPIError carries the status and body of a rejected control-plane call.
// A 405 response matches ErrUnsupportedOperation instead of ErrRemoteAPI.
type RemoteAPIError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteAPIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if e.Status == http.StatusMethodNotAllowed {
		return fmt.Sprintf("%s: %s: remote returned %d: %s", e.Op, ErrUnsupportedOperation, e.Status, body)
	}
	return fmt.Sprintf("%s: %s: remote returned %d: %s", e.Op, ErrRemoteAPI, e.Status, body)
}

// Is implements errors.Is matching against the package sentinels.
func (e *RemoteAPIError) Is(target error) bool {
	if e.Status == http.StatusMethodNotAllowed {
		return target == ErrUnsupportedOperation
	}
	return target == ErrRemoteAPI
}

// Configf returns an ErrConfig-wrapped error.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Conflictf returns an ErrSessionConflict-wrapped error.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSessionConflict, fmt.Sprintf(format, args...))
}

// Runtime wraps a local process failure as ErrRuntime.
func Runtime(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRuntime, err)
}

// Negotiation wraps a transport failure as ErrNegotiation unless it is a timeout.
func Negotiation(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrNetworkTimeout, err)
	}
	if errors.Is(err, ErrNegotiation) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrNegotiation, err)
}

// Transport wraps a failed remote call, classifying deadline errors as ErrNetworkTimeout.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrNetworkTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTimeout reports whether err stems from an exceeded deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetworkTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// HTTPStatus maps an engine error onto the status code exposed by the HTTP API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrNetworkTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRemoteAPI), errors.Is(err, ErrNegotiation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrConfig):
		return "CONFIG_ERROR"
	case errors.Is(err, ErrSessionConflict):
		return "SESSION_CONFLICT"
	case errors.Is(err, ErrUnsupportedOperation):
		return "UNSUPPORTED_OPERATION"
	case errors.Is(err, ErrNetworkTimeout):
		return "NETWORK_TIMEOUT"
	case errors.Is(err, ErrRemoteAPI):
		return "REMOTE_API_ERROR"
	case errors.Is(err, ErrNegotiation):
		return "NEGOTIATION_ERROR"
	case errors.Is(err, ErrRuntime):
		return "RUNTIME_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
