package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/perflens/internal/model"
)

// Step is one stage of an analysis job.
//
// Design decision: Step is an interface rather than a function type because:
// 1. Steps carry their own configuration, such as the RunFunc or a logger
// 2. Name() gives every log line and failure message a stable step label
// 3. Tests can replace one stage without rebuilding the whole pipeline
type Step interface {
	// Do executes the step. Expected failures, such as a tool exiting
	// non-zero or unparsable output, are recorded on the job and Do
	// returns nil. An error means the job cannot continue.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep going after a step
// returns an error.
//
// Design decision: The default stops at the first error because a step only
// returns one when the job cannot continue (a nil job, a broken invariant).
// Expected failures are recorded on the job instead and never stop the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// NewAnalysis returns the standard execute, parse and normalize pipeline.
func NewAnalysis(r RunFunc, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewExecuteStep(r, WithStepLogger(p.logger)),
		NewParseStep(WithStepLogger(p.logger)),
		NewNormalizeStep(),
	)
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against job. When the job stops early it still
// receives a report carrying the failure.
//
// Cancellation is checked before each step until the tool has run. Once a
// run record exists the remaining steps always execute: parsing and
// normalization do no I/O beyond removing the scratch directory, and a
// cancelled run must still release its scratch space and keep whatever
// records its partial output holds. The run keeps its Cancelled status and
// the context error is returned.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if !job.executed() {
			select {
			case <-ctx.Done():
				p.logger.Warn("analysis cancelled",
					"kind", job.Kind,
					"step", step.Name(),
					"reason", ctx.Err(),
				)
				job.ensureReport(model.StatusCancelled, ctx.Err().Error())
				return ctx.Err()
			default:
			}
		}

		p.logger.Debug("executing step", "kind", job.Kind, "step", step.Name())

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"kind", job.Kind,
				"step", step.Name(),
				"error", err,
			)
			if !p.continueOnError {
				job.ensureReport(model.StatusNonZeroExit, err.Error())
				return err
			}
		}

		job.PerformedSteps = append(job.PerformedSteps, step.Name())
	}

	job.ensureReport(model.StatusNonZeroExit, "analysis did not produce a report")
	return ctx.Err()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
