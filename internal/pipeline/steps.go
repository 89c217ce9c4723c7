package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/normalize"
	"github.com/nao1215/perflens/internal/parser"
	"github.com/nao1215/perflens/internal/runner"
)

// RunFunc executes one tool run. (*runner.Runner).Run satisfies it.
type RunFunc func(ctx context.Context, target model.ProfilingTarget, tool runner.Tool, rc config.RunConfig) (model.AnalysisRun, model.RawCapture)

// StepOption configures a step.
type StepOption func(*stepBase)

type stepBase struct {
	logger *slog.Logger
}

// WithStepLogger sets the logger of a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(s *stepBase) {
		s.logger = logger
	}
}

func newStepBase(opts []StepOption) stepBase {
	s := stepBase{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ExecuteStep runs the analysis tool.
type ExecuteStep struct {
	stepBase
	run RunFunc
}

// NewExecuteStep creates an ExecuteStep backed by run.
func NewExecuteStep(run RunFunc, opts ...StepOption) *ExecuteStep {
	return &ExecuteStep{stepBase: newStepBase(opts), run: run}
}

// Name returns the step name.
func (s *ExecuteStep) Name() string {
	return "execute"
}

// Do executes the job's tool and stores the run and capture.
func (s *ExecuteStep) Do(ctx context.Context, job *Job) error {
	if job.Tool == nil {
		return fmt.Errorf("%w: no tool for %q", model.ErrUnknownKind, job.Kind)
	}
	job.Run, job.Capture = s.run(ctx, job.Target, job.Tool, job.Config)

	if job.Run.Status.Failed() {
		s.logger.Warn("analysis tool failed",
			"kind", job.Kind,
			"status", job.Run.Status,
			"exit_code", job.Run.ExitCode,
			"error", job.Run.Err,
		)
	}
	return nil
}

// ParseStep parses the capture and removes the scratch directory.
type ParseStep struct {
	stepBase
}

// NewParseStep creates a ParseStep.
func NewParseStep(opts ...StepOption) *ParseStep {
	return &ParseStep{stepBase: newStepBase(opts)}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return "parse"
}

// Do parses the job's capture. A tool that was never spawned has nothing
// to parse.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	if !job.executed() {
		return errors.New("parse before execute")
	}
	defer s.cleanup(job)

	if job.Run.Status == model.StatusToolNotFound {
		job.Result = parser.Result{}
		return nil
	}

	p, err := parser.For(job.Kind)
	if err != nil {
		return err
	}
	job.Result, job.ParseErr = p.Parse(job.Capture)
	if job.ParseErr != nil {
		s.logger.Warn("tool output could not be parsed",
			"kind", job.Kind,
			"error", job.ParseErr,
			"warnings", len(job.Result.Warnings),
		)
	}
	return nil
}

func (s *ParseStep) cleanup(job *Job) {
	if job.Config.KeepScratch {
		s.logger.Info("keeping scratch directory", "kind", job.Kind, "path", job.Run.ScratchDir)
		return
	}
	if err := runner.RemoveScratch(job.Run); err != nil {
		s.logger.Warn("failed to remove scratch directory", "path", job.Run.ScratchDir, "error", err)
	}
}

// NormalizeStep builds the canonical report.
type NormalizeStep struct{}

// NewNormalizeStep creates a NormalizeStep.
func NewNormalizeStep() *NormalizeStep {
	return &NormalizeStep{}
}

// Name returns the step name.
func (s *NormalizeStep) Name() string {
	return "normalize"
}

// Do stores the normalized report on the job.
func (s *NormalizeStep) Do(_ context.Context, job *Job) error {
	if !job.executed() {
		return errors.New("normalize before execute")
	}
	job.Report = normalize.Normalize(normalize.Input{
		Kind:      job.Kind,
		Run:       job.Run,
		Target:    job.Target,
		Truncated: job.Capture.Truncated,
		Dropped:   job.Capture.Dropped,
		Result:    job.Result,
		ParseErr:  job.ParseErr,
		TopK:      job.Config.TopK,
	})
	return nil
}
