// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"github.com/ManuGH/rtcrelay/internal/fsm"
	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/metrics"
)

// Phase is the lifecycle state of the outbound session.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCreating    Phase = "creating"
	PhaseNegotiating Phase = "negotiating"
	PhaseStreaming   Phase = "streaming"
	PhaseStopping    Phase = "stopping"
)

type event string

const (
	evCreate     event = "create"
	evCreated    event = "created"
	evNegotiated event = "negotiated"
	evFail       event = "fail"
	evStop       event = "stop"
	evStopped    event = "stopped"
	evPeerClosed event = "peer_closed"
)

var transitions = []fsm.Transition[Phase, event]{
	{From: PhaseIdle, Event: evCreate, To: PhaseCreating},
	{From: PhaseCreating, Event: evCreated, To: PhaseNegotiating},
	{From: PhaseCreating, Event: evFail, To: PhaseIdle},
	{From: PhaseNegotiating, Event: evNegotiated, To: PhaseStreaming},
	{From: PhaseNegotiating, Event: evFail, To: PhaseIdle},
	{From: PhaseStreaming, Event: evStop, To: PhaseStopping},
	{From: PhaseStreaming, Event: evPeerClosed, To: PhaseIdle},
	{From: PhaseStopping, Event: evStopped, To: PhaseIdle},
}

func newMachine() *fsm.Machine[Phase, event] {
	m := fsm.MustNew(PhaseIdle, transitions)
	m.Observe(func(from, to Phase, ev event) {
		metrics.IncSessionTransition(string(from), string(to))
		log.L().Debug().
			Str(log.FieldEvent, "stream.transition").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str("trigger", string(ev)).
			Msg("session phase changed")
	})
	return m
}
