// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small, strict finite state machine used for session
// lifecycles. Unknown transitions are errors; MustFire turns them into panics
// for callers that treat an illegal transition as a programming error.
package fsm

import (
	"context"
	"fmt"
	"sync"
)

// Transition describes a single edge. Guard may reject the transition; Action
// runs side effects before the state changes.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from S, to S, event E) error
}

// Observer is notified after every applied transition.
type Observer[S ~string, E ~string] func(from S, to S, event E)

// Machine is safe for concurrent use.
type Machine[S ~string, E ~string] struct {
	mu        sync.Mutex
	state     S
	index     map[string]Transition[S, E]
	observers []Observer[S, E]
}

// New builds a machine in state initial. Duplicate (From, Event) pairs are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static transition tables.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

// Observe registers fn for all future transitions.
func (m *Machine[S, E]) Observe(fn Observer[S, E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is legal in the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[key(m.state, event)]
	return ok
}

// Fire applies event. Guard and Action run outside the lock; if another
// transition landed meanwhile the result is an error and the state is kept.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}
	to := t.To
	m.mu.Unlock()

	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, from, to, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("concurrent transition detected: from=%s cur=%s event=%s", from, cur, event)
	}
	m.state = to
	observers := m.observers
	m.mu.Unlock()

	for _, fn := range observers {
		fn(from, to, event)
	}
	return to, nil
}

// MustFire is Fire that panics on an illegal transition.
func (m *Machine[S, E]) MustFire(ctx context.Context, event E) S {
	to, err := m.Fire(ctx, event)
	if err != nil {
		panic(err)
	}
	return to
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
