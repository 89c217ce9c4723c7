package config

import (
	"time"

	"github.com/nao1215/perflens/internal/model"
)

// RunConfig is the explicit configuration handed to one analysis worker.
// Workers never read process-wide settings.
type RunConfig struct {
	// Kind is the analysis family of the worker.
	Kind model.Kind

	// Timeout is the run deadline; for CPU analysis it is the sampling
	// window.
	Timeout time.Duration

	// Grace is the delay between the graceful signal and SIGKILL.
	Grace time.Duration

	// Frequency is the CPU sampling frequency in Hz.
	Frequency int

	// TopK limits the findings kept in the report.
	TopK int

	// MaxCaptureBytes bounds each captured stream.
	MaxCaptureBytes int

	// ScratchRoot is the parent of the run's scratch directory.
	ScratchRoot string

	// KeepScratch preserves the scratch directory after parsing.
	KeepScratch bool

	// PostTimeout bounds the post-processing of one run. All commands of
	// the run share it.
	PostTimeout time.Duration

	// ToolPaths overrides executable lookup per tool name.
	ToolPaths map[string]string
}

// ToolPath returns the configured path for name, or name itself so that
// it is resolved through PATH.
func (rc RunConfig) ToolPath(name string) string {
	if p, ok := rc.ToolPaths[name]; ok && p != "" {
		return p
	}
	return name
}
