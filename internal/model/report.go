package model

import "time"

// AnalysisReport is the canonical, ranked result of one analysis kind.
// It is built once by the normalizer and treated as immutable afterwards.
type AnalysisReport struct {
	// Kind is the analysis family.
	Kind Kind `json:"kind"`

	// RunID links the report to its AnalysisRun.
	RunID string `json:"run_id"`

	// Target is the analyzed binary.
	Target ProfilingTarget `json:"target"`

	// Status is the final status, including parse failure escalation.
	Status RunStatus `json:"status"`

	// ExitCode is the tool's exit code.
	ExitCode int `json:"exit_code"`

	// DeadlineExceeded is copied from the run.
	DeadlineExceeded bool `json:"deadline_exceeded,omitempty"`

	// Truncated is true when the capture was cut short.
	Truncated bool `json:"truncated"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// TopK is the configured ranking limit. Zero means unlimited.
	TopK int `json:"top_k"`

	// TotalFindings counts findings before Top-K truncation.
	TotalFindings int `json:"total_findings"`

	// Findings are sorted by the kind's ranking key, descending.
	Findings []Finding `json:"findings"`

	// Aggregates holds derived totals such as total_bytes_lost.
	Aggregates map[string]float64 `json:"aggregates"`

	Warnings  []ParseWarning `json:"warnings"`
	Anomalies []Anomaly      `json:"anomalies"`

	// Stacks holds collapsed stack samples for CPU analysis.
	Stacks []StackSample `json:"stacks"`

	// Error describes a tool or parse failure.
	Error string `json:"error"`
}

// NewFailedReport builds a report for a run that produced nothing usable.
func NewFailedReport(kind Kind, target ProfilingTarget, run AnalysisRun) *AnalysisReport {
	return &AnalysisReport{
		Kind:             kind,
		RunID:            run.ID,
		Target:           target.Clone(),
		Status:           run.Status,
		ExitCode:         run.ExitCode,
		DeadlineExceeded: run.DeadlineExceeded,
		StartedAt:        run.StartedAt.UTC(),
		FinishedAt:       run.EndedAt.UTC(),
		Findings:         []Finding{},
		Aggregates:       map[string]float64{},
		Warnings:         []ParseWarning{},
		Anomalies:        []Anomaly{},
		Stacks:           []StackSample{},
		Error:            run.Err,
	}
}

// Failed reports whether the analysis did not complete successfully.
func (r *AnalysisReport) Failed() bool {
	return r.Status.Failed()
}

// HasFindings reports whether the report carries at least one finding.
func (r *AnalysisReport) HasFindings() bool {
	return len(r.Findings) > 0
}

// Aggregate returns a named aggregate, or 0 when it is absent.
func (r *AnalysisReport) Aggregate(name string) float64 {
	if r.Aggregates == nil {
		return 0
	}
	return r.Aggregates[name]
}

// Duration returns the wall time of the underlying run.
func (r *AnalysisReport) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
