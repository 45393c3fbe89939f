// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/metrics"
)

// Terminate stops the helper started by cmd: SIGTERM to its group, then
// SIGKILL once grace has passed. role names the helper (encoder, decoder or
// media) in logs and metrics. waitCh must deliver the result of cmd.Wait;
// Terminate always drains it and returns that result.
func Terminate(role string, cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.IncProcTerminate(role, "SIGTERM", signalResult(Signal(cmd, syscall.SIGTERM)))

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		metrics.IncProcWait(role, "graceful", exitLabel(err))
		return err
	case <-timer.C:
	}

	log.L().Warn().
		Str(log.FieldEvent, "procgroup.force_kill").
		Str("role", role).
		Int("pid", cmd.Process.Pid).
		Bool("grouped", Grouped(cmd)).
		Dur("grace", grace).
		Msg("helper ignored SIGTERM, killing it")
	metrics.IncProcTerminate(role, "SIGKILL", signalResult(Signal(cmd, syscall.SIGKILL)))

	err := <-waitCh
	metrics.IncProcWait(role, "forced", exitLabel(err))
	return err
}

func signalResult(err error) string {
	if err != nil {
		return "error"
	}
	return "sent"
}

func exitLabel(err error) string {
	if err == nil {
		return "clean"
	}
	return "nonzero"
}
