package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/perflens/internal/config"
	plog "github.com/nao1215/perflens/internal/log"
	"github.com/nao1215/perflens/internal/model"
)

// Runner executes analysis tools.
type Runner struct {
	logger   *slog.Logger
	lookPath func(string) (string, error)
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLookPath replaces exec.LookPath for executable resolution.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *Runner) {
		r.lookPath = fn
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		lookPath: exec.LookPath,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run executes tool against target and returns the run record and the
// captured output. It never returns an error; failures are expressed by
// AnalysisRun.Status and AnalysisRun.Err.
func (r *Runner) Run(ctx context.Context, target model.ProfilingTarget, tool Tool, rc config.RunConfig) (model.AnalysisRun, model.RawCapture) {
	target = target.Clone()
	run := model.AnalysisRun{
		ID:       r.newID(),
		Kind:     tool.Kind(),
		Timeout:  rc.Timeout,
		ExitCode: -1,
	}
	capture := model.RawCapture{ExitCode: -1}

	logger := r.logger.With("kind", run.Kind, "run_id", run.ID)

	exe, err := r.lookPath(rc.ToolPath(tool.Executable()))
	if err != nil {
		now := time.Now().UTC()
		run.StartedAt, run.EndedAt = now, now
		run.Status = model.StatusToolNotFound
		run.Err = fmt.Sprintf("%s not found: %v", tool.Executable(), err)
		logger.Warn("analysis tool not found", "tool", tool.Executable(), "error", err)
		return run, capture
	}

	scratch, err := makeScratch(rc.ScratchRoot, run.ID)
	if err != nil {
		now := time.Now().UTC()
		run.StartedAt, run.EndedAt = now, now
		run.Status = model.StatusNonZeroExit
		run.Err = fmt.Sprintf("create scratch directory: %v", err)
		return run, capture
	}
	run.ScratchDir = scratch

	inv, err := tool.Command(target, scratch, rc)
	if err != nil {
		now := time.Now().UTC()
		run.StartedAt, run.EndedAt = now, now
		run.Status = model.StatusNonZeroExit
		run.Err = err.Error()
		return run, capture
	}

	stdout := newTailBuffer(rc.MaxCaptureBytes)
	stderr := newTailBuffer(rc.MaxCaptureBytes)

	logger.Debug("spawning analysis tool",
		"tool", exe,
		"args", inv.Args,
		"timeout", rc.Timeout,
		plog.EnvAttr(target.Env),
	)

	out := execute(ctx, process{
		path:    exe,
		args:    inv.Args,
		dir:     target.WorkDir,
		env:     target.Environ(os.Environ()),
		stdout:  stdout,
		stderr:  stderr,
		timeout: rc.Timeout,
		grace:   rc.Grace,
		signal:  inv.Signal,
		window:  inv.Window,
	})

	run.StartedAt = out.started.UTC()
	run.EndedAt = out.ended.UTC()
	run.Status = out.status
	run.DeadlineExceeded = out.deadline
	run.ExitCode = out.exitCode
	if out.err != nil {
		run.Err = out.err.Error()
	}

	capture.Stdout = stdout.Bytes()
	capture.Stderr = stderr.Bytes()
	capture.ExitCode = out.exitCode
	capture.Truncated = out.truncated
	capture.Dropped = stdout.Dropped() + stderr.Dropped()

	logger.Debug("analysis tool finished",
		"status", run.Status,
		"exit_code", run.ExitCode,
		"elapsed", run.Elapsed(),
		"captured_bytes", len(capture.Stdout)+len(capture.Stderr),
	)

	if ctx.Err() == nil && run.Status != model.StatusToolNotFound {
		if err := tool.Collect(ctx, exe, scratch, rc, &capture); err != nil && !errors.Is(err, ErrNoArtifact) {
			logger.Warn("post-processing failed", "error", err)
			if run.Err == "" {
				run.Err = err.Error()
			}
		}
	}

	return run, capture
}

// makeScratch creates the per-run scratch directory.
func makeScratch(root, id string) (string, error) {
	if root == "" {
		return os.MkdirTemp("", "perflens-"+id+"-")
	}
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	return dir, nil
}

// RemoveScratch deletes a run's scratch directory.
func RemoveScratch(run model.AnalysisRun) error {
	if run.ScratchDir == "" {
		return nil
	}
	return os.RemoveAll(run.ScratchDir)
}
