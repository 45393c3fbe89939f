// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

// Package procgroup runs ffmpeg helpers (encoder, decoder, fallback media
// reader) in their own process group so a session teardown also reaps the
// children ffmpeg forks for its filters and protocols.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Prepare makes cmd a process group leader. Call it before cmd.Start.
func Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	setParentDeathSignal(cmd.SysProcAttr)
}

// Grouped reports whether cmd was prepared as a group leader.
func Grouped(cmd *exec.Cmd) bool {
	return cmd != nil && cmd.SysProcAttr != nil && cmd.SysProcAttr.Setpgid
}

// Signal delivers sig to the whole group of a prepared command, or to the
// process alone otherwise. A process that already exited is not an error.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	target := cmd.Process.Pid
	if Grouped(cmd) {
		// Setpgid makes PGID == PID; a negative target addresses the group.
		target = -target
	}
	if err := syscall.Kill(target, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
