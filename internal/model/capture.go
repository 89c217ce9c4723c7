package model

import "bytes"

// Artifact names produced by post-processing commands.
const (
	// ArtifactPerfReport is the text of `perf report --stdio`.
	ArtifactPerfReport = "perf_report"
	// ArtifactPerfScript is the text of `perf script`.
	ArtifactPerfScript = "perf_script"
)

// RawCapture is the captured output of one tool run.
type RawCapture struct {
	Stdout []byte `json:"stdout"`
	Stderr []byte `json:"stderr"`

	// ExitCode mirrors AnalysisRun.ExitCode.
	ExitCode int `json:"exit_code"`

	// Truncated is true when capture stopped because the process was
	// terminated by a deadline or cancellation.
	Truncated bool `json:"truncated"`

	// Dropped counts bytes discarded by the bounded capture buffers.
	Dropped int64 `json:"dropped"`

	// Artifacts holds outputs of post-processing commands keyed by name.
	Artifacts map[string][]byte `json:"artifacts"`
}

// Combined returns stderr followed by stdout. Most analysis tools write
// their report to stderr.
func (c RawCapture) Combined() []byte {
	out := make([]byte, 0, len(c.Stderr)+len(c.Stdout)+1)
	out = append(out, c.Stderr...)
	if len(c.Stderr) > 0 && len(c.Stdout) > 0 && !bytes.HasSuffix(c.Stderr, []byte("\n")) {
		out = append(out, '\n')
	}
	return append(out, c.Stdout...)
}

// Empty reports whether the capture holds no output at all.
func (c RawCapture) Empty() bool {
	if len(bytes.TrimSpace(c.Stdout)) > 0 || len(bytes.TrimSpace(c.Stderr)) > 0 {
		return false
	}
	for _, a := range c.Artifacts {
		if len(bytes.TrimSpace(a)) > 0 {
			return false
		}
	}
	return true
}

// Artifact returns the named artifact, or nil.
func (c RawCapture) Artifact(name string) []byte {
	if c.Artifacts == nil {
		return nil
	}
	return c.Artifacts[name]
}

// SetArtifact stores a named artifact.
func (c *RawCapture) SetArtifact(name string, data []byte) {
	if c.Artifacts == nil {
		c.Artifacts = make(map[string][]byte)
	}
	c.Artifacts[name] = data
}
