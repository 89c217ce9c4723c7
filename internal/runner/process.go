package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/nao1215/perflens/internal/model"
)

// minWaitDelay bounds how long Wait keeps reading pipes held open by
// grandchildren after the child itself exited.
const minWaitDelay = time.Second

// process describes one child process execution.
type process struct {
	path   string
	args   []string
	dir    string
	env    []string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// timeout is the deadline; zero disables it.
	timeout time.Duration
	// grace is the delay between signal and SIGKILL.
	grace time.Duration
	// signal is sent to the group when the deadline or cancellation fires.
	signal syscall.Signal
	// window marks the deadline as the end of a sampling window rather
	// than a failure.
	window bool
}

// outcome is the classified result of a process execution.
type outcome struct {
	status    model.RunStatus
	exitCode  int
	truncated bool
	started   time.Time
	ended     time.Time
	err       error

	// deadline is set when the run's own timeout stopped it.
	deadline bool
}

type stopReason int

const (
	stopNone stopReason = iota
	stopDeadline
	stopCancel
)

// execute runs p to completion and classifies the result.
func execute(ctx context.Context, p process) outcome {
	out := outcome{exitCode: -1, started: time.Now()}

	if err := ctx.Err(); err != nil {
		out.status = model.StatusCancelled
		out.truncated = true
		out.ended = out.started
		out.err = err
		return out
	}

	cmd := exec.Command(p.path, p.args...) //nolint:gosec // tool path and arguments are built by perflens
	cmd.Dir = p.dir
	cmd.Env = p.env
	cmd.Stdin = p.stdin
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	cmd.WaitDelay = max(p.grace, minWaitDelay)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		out.ended = time.Now()
		out.err = err
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			out.status = model.StatusToolNotFound
		} else {
			out.status = model.StatusNonZeroExit
		}
		return out
	}
	pid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	reason := stopNone
	forced := false
	var waitErr error

	select {
	case waitErr = <-done:
	case <-deadline:
		reason = stopDeadline
	case <-ctx.Done():
		reason = stopCancel
	}

	if reason != stopNone {
		sig := p.signal
		if sig == 0 {
			sig = syscall.SIGTERM
		}
		_ = signalGroup(pid, sig) //nolint:errcheck // the group may already be gone

		grace := time.NewTimer(p.grace)
		select {
		case waitErr = <-done:
		case <-grace.C:
			forced = true
			_ = killGroup(pid) //nolint:errcheck // the group may already be gone
			waitErr = <-done
		}
		grace.Stop()
	}

	// Reap anything the child left behind in its group.
	_ = killGroup(pid) //nolint:errcheck // usually the group is already empty

	out.ended = time.Now()
	state := cmd.ProcessState
	if state != nil {
		out.exitCode = state.ExitCode()
	}

	switch reason {
	case stopDeadline:
		out.deadline = !p.window
		switch {
		case forced:
			out.status = model.StatusSignalKilled
			out.truncated = true
			out.err = fmt.Errorf("killed after %s grace period", p.grace)
		case p.window:
			out.status = model.StatusSuccess
		default:
			out.status = model.StatusTimedOut
			out.truncated = true
			out.err = fmt.Errorf("timed out after %s", p.timeout)
		}
	case stopCancel:
		out.status = model.StatusCancelled
		out.truncated = true
		out.err = context.Cause(ctx)
	default:
		out.status, out.err = classifyExit(state, waitErr)
	}
	return out
}

// classifyExit maps a process that ended on its own to a status.
func classifyExit(state *os.ProcessState, waitErr error) (model.RunStatus, error) {
	if state == nil {
		if waitErr == nil {
			waitErr = errors.New("process state unavailable")
		}
		return model.StatusNonZeroExit, waitErr
	}
	if state.Success() {
		return model.StatusSuccess, nil
	}
	if signaled(state) || state.ExitCode() == -1 {
		return model.StatusSignalKilled, fmt.Errorf("tool %s", state.String())
	}
	return model.StatusNonZeroExit, fmt.Errorf("tool %s", state.String())
}
