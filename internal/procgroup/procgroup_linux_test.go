// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalReachesWholeGroup(t *testing.T) {
	// sh forks a background sleep that stays in the helper's group.
	cmd := exec.Command("sh", "-c", "sleep 10 & sleep 10")
	Prepare(cmd)
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "helper should lead its own group")

	require.NoError(t, Signal(cmd, syscall.SIGKILL))
	err = cmd.Wait()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	require.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(-pgid, syscall.Signal(0)), syscall.ESRCH)
	}, 2*time.Second, 20*time.Millisecond, "background child survived the group kill")
}

func TestPrepareSetsParentDeathSignal(t *testing.T) {
	cmd := exec.Command("true")
	Prepare(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
	assert.Equal(t, syscall.SIGKILL, cmd.SysProcAttr.Pdeathsig)
	assert.True(t, Grouped(cmd))
}

func TestSignalWithoutPrepareTargetsProcessOnly(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	assert.False(t, Grouped(cmd))

	// Without its own group a negative target would hit the test binary's group.
	require.NoError(t, Signal(cmd, syscall.SIGKILL))
	require.Error(t, cmd.Wait())
}

func TestSignalAfterExitIsNoError(t *testing.T) {
	cmd := exec.Command("true")
	Prepare(cmd)
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())
	assert.NoError(t, Signal(cmd, syscall.SIGTERM))
}

func startWaited(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Prepare(cmd)
	require.NoError(t, cmd.Start())
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

func TestTerminate_GracefulExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	cmd, waitCh := startWaited(t, "sleep 10")
	start := time.Now()
	err := Terminate("encoder", cmd, waitCh, 5*time.Second)
	require.Error(t, err, "SIGTERM exit is reported as a non-zero wait result")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTerminate_EscalatesToSIGKILL(t *testing.T) {
	defer goleak.VerifyNone(t)

	cmd, waitCh := startWaited(t, "trap '' TERM; while true; do sleep 0.05; done")
	time.Sleep(100 * time.Millisecond)

	err := Terminate("decoder", cmd, waitCh, 200*time.Millisecond)
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, status.Signal())
}

func TestTerminate_NilCommand(t *testing.T) {
	assert.NoError(t, Terminate("media", nil, nil, time.Second))
	assert.NoError(t, Signal(nil, syscall.SIGTERM))
}
