package main

import (
	"errors"
	"fmt"

	"github.com/nao1215/perflens/internal/model"
)

// Process exit codes.
const (
	// ExitOK means every requested analysis succeeded.
	ExitOK = 0
	// ExitFailure means an analysis or tool execution error.
	ExitFailure = 1
	// ExitMissingDependency means a required tool is not installed.
	ExitMissingDependency = 2
	// ExitInvalidArgs means bad CLI input or configuration.
	ExitInvalidArgs = 3
	// ExitTimeout means an analysis exceeded its deadline.
	ExitTimeout = 124
)

// exitPriority orders exit codes for multi-kind runs. Higher wins.
var exitPriority = map[int]int{
	ExitOK:                0,
	ExitFailure:           1,
	ExitTimeout:           2,
	ExitMissingDependency: 3,
	ExitInvalidArgs:       4,
}

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// withExitCode attaches code to err. A nil err stays nil.
func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// invalidArgs marks err as a usage or configuration error.
func invalidArgs(err error) error {
	return withExitCode(ExitInvalidArgs, err)
}

// exitCodeOf returns the exit code for an error returned by a command.
func exitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}

// worseExit returns the higher-priority of two exit codes.
func worseExit(a, b int) int {
	if exitPriority[b] > exitPriority[a] {
		return b
	}
	return a
}

// statusExitCode maps the status of one report to an exit code.
func statusExitCode(s model.RunStatus) int {
	switch s {
	case model.StatusSuccess:
		return ExitOK
	case model.StatusToolNotFound:
		return ExitMissingDependency
	case model.StatusTimedOut:
		return ExitTimeout
	default:
		return ExitFailure
	}
}

// reportExitCode maps one report to an exit code. A run stopped by its
// own deadline exits 124 even when the tool ignored the graceful signal
// and had to be killed.
func reportExitCode(r *model.AnalysisReport) int {
	if r == nil {
		return ExitFailure
	}
	if r.DeadlineExceeded && r.Status != model.StatusToolNotFound {
		return ExitTimeout
	}
	return statusExitCode(r.Status)
}

// reportsExitCode folds every report into one exit code.
func reportsExitCode(reports []*model.AnalysisReport) int {
	code := ExitOK
	for _, r := range reports {
		code = worseExit(code, reportExitCode(r))
	}
	return code
}

// analysisError summarizes the reports that did not succeed.
func analysisError(reports []*model.AnalysisReport) error {
	var errs []error
	for _, r := range reports {
		if r == nil || r.Status == model.StatusSuccess {
			continue
		}
		msg := fmt.Sprintf("%s analysis: %s", r.Kind, r.Status)
		if r.Error != "" {
			msg += ": " + r.Error
		}
		errs = append(errs, errors.New(msg))
	}
	return errors.Join(errs...)
}
