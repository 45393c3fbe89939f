// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relayerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteAPIErrorClassification(t *testing.T) {
	rejected := &RemoteAPIError{Op: "update", Status: http.StatusBadRequest, Body: "bad"}
	assert.ErrorIs(t, rejected, ErrRemoteAPI)
	assert.NotErrorIs(t, rejected, ErrUnsupportedOperation)

	unsupported := fmt.Errorf("wrapped: %w", &RemoteAPIError{Op: "update", Status: http.StatusMethodNotAllowed})
	assert.ErrorIs(t, unsupported, ErrUnsupportedOperation)
	assert.NotErrorIs(t, unsupported, ErrRemoteAPI)

	var rae *RemoteAPIError
	assert.True(t, errors.As(unsupported, &rae))
	assert.Equal(t, http.StatusMethodNotAllowed, rae.Status)
}

func TestNegotiationClassifiesTimeouts(t *testing.T) {
	err := Negotiation("whip", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrNetworkTimeout)
	assert.NotErrorIs(t, err, ErrNegotiation)

	err = Negotiation("whip", errors.New("ice failed"))
	assert.ErrorIs(t, err, ErrNegotiation)
	assert.Nil(t, Negotiation("whip", nil))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{Configf("width %d", -1), http.StatusBadRequest, "CONFIG_ERROR"},
		{Conflictf("no session"), http.StatusConflict, "SESSION_CONFLICT"},
		{&RemoteAPIError{Status: 405}, http.StatusMethodNotAllowed, "UNSUPPORTED_OPERATION"},
		{&RemoteAPIError{Status: 500}, http.StatusBadGateway, "REMOTE_API_ERROR"},
		{Transport("status", context.DeadlineExceeded), http.StatusGatewayTimeout, "NETWORK_TIMEOUT"},
		{Negotiation("whip", errors.New("boom")), http.StatusBadGateway, "NEGOTIATION_ERROR"},
		{Runtime("start decoder", errors.New("exec: ffmpeg not found")), http.StatusInternalServerError, "RUNTIME_ERROR"},
		{errors.New("other"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
		assert.Equal(t, tt.code, Code(tt.err), tt.err.Error())
	}
}
