// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func door() []Transition[state, event] {
	return []Transition[state, event]{
		{From: "closed", Event: "open", To: "open"},
		{From: "open", Event: "close", To: "closed"},
		{From: "closed", Event: "lock", To: "locked", Guard: func(context.Context, state, event) error {
			return errors.New("no key")
		}},
	}
}

func TestFire(t *testing.T) {
	m := MustNew("closed", door())
	var seen []string
	m.Observe(func(from, to state, ev event) {
		seen = append(seen, string(from)+">"+string(to))
	})

	to, err := m.Fire(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, state("open"), to)
	assert.True(t, m.Can("close"))
	assert.False(t, m.Can("open"))

	_, err = m.Fire(context.Background(), "open")
	assert.Error(t, err)
	assert.Equal(t, state("open"), m.State())

	m.MustFire(context.Background(), "close")
	assert.Equal(t, []string{"closed>open", "open>closed"}, seen)
}

func TestGuardRejects(t *testing.T) {
	m := MustNew("closed", door())
	_, err := m.Fire(context.Background(), "lock")
	assert.EqualError(t, err, "no key")
	assert.Equal(t, state("closed"), m.State())
}

func TestActionErrorKeepsState(t *testing.T) {
	m := MustNew[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b", Action: func(context.Context, state, state, event) error {
			return errors.New("boom")
		}},
	})
	_, err := m.Fire(context.Background(), "go")
	require.Error(t, err)
	assert.Equal(t, state("a"), m.State())
}

func TestMustFirePanicsOnIllegalTransition(t *testing.T) {
	m := MustNew("closed", door())
	assert.Panics(t, func() { m.MustFire(context.Background(), "close") })
}

func TestDuplicateTransition(t *testing.T) {
	_, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "x", To: "b"},
		{From: "a", Event: "x", To: "c"},
	})
	assert.Error(t, err)
	assert.Panics(t, func() {
		MustNew[state, event]("a", []Transition[state, event]{
			{From: "a", Event: "x", To: "b"},
			{From: "a", Event: "x", To: "c"},
		})
	})
}
