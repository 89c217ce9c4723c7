package pipeline

import (
	"time"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/parser"
	"github.com/nao1215/perflens/internal/runner"
)

// Job is the working state of one analysis kind as it moves through the
// pipeline.
type Job struct {
	// Kind is the analysis family.
	Kind model.Kind

	// Target is the profiled binary. It is not modified.
	Target model.ProfilingTarget

	// Config is the explicit per-worker configuration.
	Config config.RunConfig

	// Tool is the capability variant for Kind.
	Tool runner.Tool

	// Run and Capture are set by ExecuteStep.
	Run     model.AnalysisRun
	Capture model.RawCapture

	// Result and ParseErr are set by ParseStep.
	Result   parser.Result
	ParseErr error

	// Report is set by NormalizeStep, or by the pipeline when the job
	// could not reach it.
	Report *model.AnalysisReport

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string
}

// NewJob prepares a job for kind.
func NewJob(kind model.Kind, target model.ProfilingTarget, rc config.RunConfig) (*Job, error) {
	tool, err := runner.ToolFor(kind)
	if err != nil {
		return nil, err
	}
	rc.Kind = kind
	return &Job{
		Kind:           kind,
		Target:         target.Clone(),
		Config:         rc,
		Tool:           tool,
		PerformedSteps: make([]string, 0, 3),
	}, nil
}

// executed reports whether ExecuteStep has produced a run record.
func (j *Job) executed() bool {
	return j.Run.Status != ""
}

// ensureReport builds a failure report when the job stopped before
// normalization.
func (j *Job) ensureReport(status model.RunStatus, reason string) {
	if j.Report != nil {
		return
	}
	run := j.Run
	if !j.executed() {
		now := time.Now().UTC()
		run = model.AnalysisRun{
			Kind:      j.Kind,
			Timeout:   j.Config.Timeout,
			StartedAt: now,
			EndedAt:   now,
			Status:    status,
			ExitCode:  -1,
			Err:       reason,
		}
	}
	j.Report = model.NewFailedReport(j.Kind, j.Target, run)
	j.Report.TopK = j.Config.TopK
	if j.Report.Error == "" {
		j.Report.Error = reason
	}
}
