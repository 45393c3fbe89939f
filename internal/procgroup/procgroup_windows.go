// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Prepare starts cmd in a new console process group so console control
// events aimed at the relay do not reach its helpers.
func Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// Grouped reports whether cmd was prepared by Prepare.
func Grouped(cmd *exec.Cmd) bool {
	return cmd != nil && cmd.SysProcAttr != nil &&
		cmd.SysProcAttr.CreationFlags&syscall.CREATE_NEW_PROCESS_GROUP != 0
}

// Signal maps SIGKILL to Process.Kill. Windows has no graceful equivalent
// for other signals, so they are dropped and Terminate escalates after its
// grace period.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil || sig != syscall.SIGKILL {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
