// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg runs ffmpeg helper processes: a VP8 encoder for raw outbound
// frames, a decoder for inbound WHEP video and a looping fallback media reader.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/metrics"
	"github.com/ManuGH/rtcrelay/internal/procgroup"
)

const (
	// DefaultBinary is looked up in PATH.
	DefaultBinary = "ffmpeg"

	defaultGrace  = 2 * time.Second
	stderrLines   = 128
	stderrSummary = 8
)

// ErrNotRunning is returned when writing to a process that has exited.
var ErrNotRunning = errors.New("ffmpeg process is not running")

// Spec describes one helper process.
type Spec struct {
	Binary string
	Args   []string
	Role   string // encoder, decoder or media; used for logs and metrics
	Stdin  bool   // open a pipe to the process' stdin
	Grace  time.Duration
}

// Process is a running helper. Stdout is always piped.
type Process struct {
	role   string
	grace  time.Duration
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	ring   *LineRing
	logger zerolog.Logger

	done    chan struct{}
	exitErr error

	stopOnce sync.Once
	stopping chan struct{}
}

// Start launches the process in its own process group. Cancelling ctx stops it.
func Start(ctx context.Context, spec Spec) (*Process, error) {
	bin := spec.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	if spec.Grace <= 0 {
		spec.Grace = defaultGrace
	}

	p := &Process{
		role:     spec.Role,
		grace:    spec.Grace,
		ring:     NewLineRing(stderrLines),
		logger:   log.WithComponentFromContext(ctx, "ffmpeg").With().Str("role", spec.Role).Logger(),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}

	// #nosec G204 -- binary and arguments come from configuration and arg builders
	cmd := exec.Command(bin, spec.Args...)
	procgroup.Prepare(cmd)
	cmd.Stderr = p.ring

	// os.Pipe instead of StdoutPipe so Wait never closes the read end under a reader.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: stdout pipe: %w", spec.Role, err)
	}
	cmd.Stdout = outW

	var inR, inW *os.File
	if spec.Stdin {
		inR, inW, err = os.Pipe()
		if err != nil {
			_ = outR.Close()
			_ = outW.Close()
			return nil, fmt.Errorf("ffmpeg %s: stdin pipe: %w", spec.Role, err)
		}
		cmd.Stdin = inR
	}

	if err := cmd.Start(); err != nil {
		_ = outR.Close()
		_ = outW.Close()
		if inR != nil {
			_ = inR.Close()
			_ = inW.Close()
		}
		return nil, fmt.Errorf("ffmpeg %s: start %s: %w", spec.Role, bin, err)
	}
	_ = outW.Close()
	if inR != nil {
		_ = inR.Close()
	}

	p.cmd = cmd
	p.stdout = outR
	p.stdin = inW

	p.logger.Debug().
		Str(log.FieldEvent, "ffmpeg.started").
		Int("pid", cmd.Process.Pid).
		Str("args", strings.Join(spec.Args, " ")).
		Msg("ffmpeg helper started")

	go p.wait()
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Stop()
		case <-p.done:
		}
	}()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exitErr = err
	close(p.done)

	reason := "eof"
	select {
	case <-p.stopping:
		reason = "stopped"
	default:
		if err != nil {
			reason = "error"
		}
	}
	metrics.IncFFmpegExit(p.role, reason)
	if reason == "error" {
		p.logger.Warn().
			Str(log.FieldEvent, "ffmpeg.exited").
			Err(err).
			Strs("stderr", p.ring.LastN(stderrSummary)).
			Msg("ffmpeg helper exited unexpectedly")
	}
}

// Stdin returns the write end of the stdin pipe, or nil when not requested.
func (p *Process) Stdin() io.Writer {
	if p.stdin == nil {
		return nil
	}
	return p.stdin
}

// CloseStdin signals end of input.
func (p *Process) CloseStdin() error {
	if p.stdin == nil {
		return nil
	}
	return p.stdin.Close()
}

// Stdout returns the read end of the stdout pipe.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the wait result after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

// Stderr returns the last n captured stderr lines.
func (p *Process) Stderr(n int) []string { return p.ring.LastN(n) }

// Stop terminates the process group (SIGTERM, then SIGKILL after the grace
// period) and releases the pipes. Safe to call more than once.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopping)
		if p.stdin != nil {
			_ = p.stdin.Close()
		}

		select {
		case <-p.done:
		default:
			waitCh := make(chan error, 1)
			go func() {
				<-p.done
				waitCh <- p.exitErr
			}()
			_ = procgroup.Terminate(p.role, p.cmd, waitCh, p.grace)
		}
		_ = p.stdout.Close()
	})
	return nil
}
