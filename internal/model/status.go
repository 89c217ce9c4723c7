package model

// RunStatus is the terminal status of an analysis run.
type RunStatus string

const (
	// StatusSuccess means the tool exited with code 0, or a sampling window
	// ended cleanly.
	StatusSuccess RunStatus = "success"
	// StatusNonZeroExit means the tool exited on its own with a non-zero code.
	StatusNonZeroExit RunStatus = "non_zero_exit"
	// StatusTimedOut means the deadline fired and the process group exited
	// after the graceful signal.
	StatusTimedOut RunStatus = "timed_out"
	// StatusToolNotFound means the tool executable could not be resolved.
	// No process is spawned in this case.
	StatusToolNotFound RunStatus = "tool_not_found"
	// StatusSignalKilled means the process was killed by a signal, either
	// externally or by the forced kill after the grace period.
	StatusSignalKilled RunStatus = "signal_killed"
	// StatusCancelled means the run was aborted by context cancellation.
	StatusCancelled RunStatus = "cancelled"
	// StatusParseFailed means the tool ran but no record could be extracted
	// from its non-empty output.
	StatusParseFailed RunStatus = "parse_failed"
)

// Failed reports whether the status represents a failed analysis.
func (s RunStatus) Failed() bool {
	return s != StatusSuccess
}

// Terminated reports whether the run was stopped by perflens rather than
// finishing on its own.
func (s RunStatus) Terminated() bool {
	switch s {
	case StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the status name.
func (s RunStatus) String() string {
	return string(s)
}
