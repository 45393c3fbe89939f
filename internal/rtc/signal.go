// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/platform/httpx"
	"github.com/ManuGH/rtcrelay/internal/relayerr"
	"github.com/ManuGH/rtcrelay/internal/telemetry"
)

const (
	tracerName = "github.com/ManuGH/rtcrelay/internal/rtc"

	// SignalTimeout bounds one offer POST, including the remote's own ICE work.
	SignalTimeout = 30 * time.Second

	sdpContentType = "application/sdp"
	maxAnswerBytes = 1 << 20
)

// Answer is the remote side of an offer/answer exchange.
type Answer struct {
	SDP string
	// Resource is the absolute session URL from the Location header, used
	// for teardown. Empty when the endpoint did not return one.
	Resource string
}

// Signaler exchanges SDP with a WHIP or WHEP endpoint over HTTP.
type Signaler struct {
	kind   string
	client *http.Client
	token  string
}

// NewSignaler returns a signaler for kind ("whip" or "whep"). A nil client
// gets a traced remote client with SignalTimeout. token, when set, is sent as
// a Bearer credential.
func NewSignaler(kind string, client *http.Client, token string) *Signaler {
	if client == nil {
		client = httpx.Traced(httpx.NewRemoteClient(SignalTimeout))
	}
	return &Signaler{kind: kind, client: client, token: token}
}

// Offer POSTs an SDP offer and returns the answer. Both 201 and 200 are
// accepted; anything else is a negotiation failure carrying the remote status.
func (s *Signaler) Offer(ctx context.Context, endpoint, sdp string) (Answer, error) {
	op := s.kind + " offer"
	ctx, span := telemetry.StartSpan(ctx, tracerName, "rtcrelay.signal.offer",
		attribute.String(telemetry.SignalingKindKey, s.kind))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, SignalTimeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(sdp))
	if reqErr != nil {
		err = relayerr.Configf("%s: invalid endpoint %q: %v", op, endpoint, reqErr)
		return Answer{}, err
	}
	req.Header.Set("Content-Type", sdpContentType)
	req.Header.Set("Accept", sdpContentType)
	s.authorize(req)

	logger := log.WithComponentFromContext(ctx, "rtc")
	logger.Info().
		Str(log.FieldEvent, s.kind+".offer").
		Str(log.FieldURL, endpoint).
		Msg("posting sdp offer")

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		err = relayerr.Negotiation(op, doErr)
		return Answer{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if readErr != nil {
		err = relayerr.Negotiation(op, readErr)
		return Answer{}, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		err = relayerr.Negotiation(op, &relayerr.RemoteAPIError{Op: op, Status: resp.StatusCode, Body: string(body)})
		return Answer{}, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		err = relayerr.Negotiation(op, fmt.Errorf("empty answer"))
		return Answer{}, err
	}

	return Answer{SDP: string(body), Resource: resolveLocation(endpoint, resp.Header.Get("Location"))}, nil
}

// Teardown DELETEs the session resource. An empty resource is a no-op and
// a 404 counts as already gone.
func (s *Signaler) Teardown(ctx context.Context, resource string) error {
	if resource == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, SignalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return relayerr.Configf("%s teardown: invalid resource %q: %v", s.kind, resource, err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return relayerr.Transport(s.kind+" teardown", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAnswerBytes))

	switch {
	case resp.StatusCode < http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return &relayerr.RemoteAPIError{Op: s.kind + " teardown", Status: resp.StatusCode}
	}
}

func (s *Signaler) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

func resolveLocation(endpoint, location string) string {
	if location == "" {
		return ""
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
