package model

import "time"

// AnalysisRun records one execution of an analysis tool.
type AnalysisRun struct {
	// ID is unique per invocation and names the scratch directory.
	ID string `json:"id"`

	// Kind is the analysis family.
	Kind Kind `json:"kind"`

	// Timeout is the configured deadline. For CPU sampling it is the
	// sampling duration.
	Timeout time.Duration `json:"timeout"`

	// StartedAt and EndedAt bound the child process lifetime.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Status is the terminal status.
	Status RunStatus `json:"status"`

	// DeadlineExceeded is set when the run was stopped by its own timeout,
	// whether the tool exited after the graceful signal (TimedOut) or had
	// to be killed (SignalKilled). It is never set when a sampling window
	// ends.
	DeadlineExceeded bool `json:"deadline_exceeded"`

	// ExitCode is the process exit code, or -1 when the process did not
	// exit normally or was never spawned.
	ExitCode int `json:"exit_code"`

	// ScratchDir holds tool artifacts such as perf.data.
	ScratchDir string `json:"scratch_dir"`

	// Err describes why the run failed, if it did.
	Err string `json:"error"`
}

// Elapsed returns the wall time of the run.
func (r AnalysisRun) Elapsed() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
