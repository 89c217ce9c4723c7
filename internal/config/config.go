package config

import (
	"maps"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/perflens/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "perflens"

	// DefaultTimeout bounds memory, cache and syscall analysis.
	DefaultTimeout = 300 * time.Second

	// DefaultThreadTimeout is longer because helgrind slows the target
	// far more than memcheck does.
	DefaultThreadTimeout = 600 * time.Second

	// DefaultDuration is the CPU sampling window.
	DefaultDuration = 30 * time.Second

	// DefaultFrequency is the perf sampling frequency in Hz. 99 avoids
	// lockstep sampling with timer driven work.
	DefaultFrequency = 99

	// DefaultGrace is the time between the graceful signal and SIGKILL.
	DefaultGrace = 3 * time.Second

	// DefaultTopK is the number of findings kept per report.
	DefaultTopK = 10

	// DefaultMaxCaptureBytes bounds each captured stream.
	DefaultMaxCaptureBytes = 16 * 1024 * 1024

	// DefaultPostProcessTimeout bounds post-processing commands such as
	// perf report and the flame graph script.
	DefaultPostProcessTimeout = 120 * time.Second
)

// Tool names used as keys of Config.ToolPaths and the config file's tools
// section.
const (
	ToolValgrind   = "valgrind"
	ToolPerf       = "perf"
	ToolStrace     = "strace"
	ToolFlameGraph = "flamegraph"
	ToolPerl       = "perl"
)

// Config holds all options of one perflens invocation.
// It is populated from the config file and CLI flags, validated once, and
// then turned into one RunConfig per analysis worker.
type Config struct {
	// Binary is the target executable.
	Binary string

	// Args are passed to the target.
	Args []string

	// WorkDir is the target's working directory.
	WorkDir string

	// Env holds environment overrides for the target.
	Env map[string]string

	// Kinds are the analyses to run.
	Kinds []model.Kind

	// Timeouts holds the deadline of each non-CPU analysis kind.
	Timeouts map[model.Kind]time.Duration

	// Duration is the CPU sampling window.
	Duration time.Duration

	// Frequency is the CPU sampling frequency in Hz.
	Frequency int

	// Grace is the delay between the graceful signal and the forced kill.
	Grace time.Duration

	// TopK limits the findings per report. Zero keeps every finding.
	TopK int

	// Jobs bounds the number of analyses running concurrently.
	// Zero runs every requested kind at once.
	Jobs int

	// MaxCaptureBytes bounds each captured output stream.
	MaxCaptureBytes int

	// ToolPaths overrides executable lookup per tool name.
	ToolPaths map[string]string

	// ScratchRoot is the parent of the per-run scratch directories.
	ScratchRoot string

	// KeepScratch preserves scratch directories after parsing.
	KeepScratch bool

	// Raw prints raw tool output after the report.
	Raw bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// JSONPath, MarkdownPath, SVGPath and PprofPath are optional export
	// destinations. SVG and pprof exports apply to CPU analysis only.
	JSONPath     string
	MarkdownPath string
	SVGPath      string
	PprofPath    string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Args: []string{},
		Env:  map[string]string{},
		Timeouts: map[model.Kind]time.Duration{
			model.KindMemory:  DefaultTimeout,
			model.KindCache:   DefaultTimeout,
			model.KindSyscall: DefaultTimeout,
			model.KindThread:  DefaultThreadTimeout,
		},
		Duration:        DefaultDuration,
		Frequency:       DefaultFrequency,
		Grace:           DefaultGrace,
		TopK:            DefaultTopK,
		MaxCaptureBytes: DefaultMaxCaptureBytes,
		ToolPaths:       map[string]string{},
		ScratchRoot:     filepath.Join(XDGCacheDir(), "runs"),
	}
}

// XDGConfigDir returns the XDG config directory for perflens.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for perflens.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// SetTimeout applies d to every analysis kind that has a deadline.
func (c *Config) SetTimeout(d time.Duration) {
	if c.Timeouts == nil {
		c.Timeouts = map[model.Kind]time.Duration{}
	}
	for _, k := range model.AllKinds() {
		if k == model.KindCPU {
			continue
		}
		c.Timeouts[k] = d
	}
}

// Timeout returns the deadline for kind. For CPU it is the sampling window.
func (c *Config) Timeout(kind model.Kind) time.Duration {
	if kind == model.KindCPU {
		return c.Duration
	}
	if d, ok := c.Timeouts[kind]; ok {
		return d
	}
	if kind == model.KindThread {
		return DefaultThreadTimeout
	}
	return DefaultTimeout
}

// MaxTimeout returns the longest deadline among the requested kinds.
func (c *Config) MaxTimeout() time.Duration {
	var longest time.Duration
	for _, k := range c.Kinds {
		if d := c.Timeout(k); d > longest {
			longest = d
		}
	}
	return longest
}

// HasKind reports whether kind is among the requested analyses.
func (c *Config) HasKind(kind model.Kind) bool {
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Target builds the immutable profiling target described by the config.
func (c *Config) Target() (model.ProfilingTarget, error) {
	return model.NewProfilingTarget(c.Binary, c.Args, c.WorkDir, c.Env)
}

// ApplyFile merges values from a configuration file. Values already set by
// flags are applied afterwards by the caller and therefore win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	for _, k := range model.AllKinds() {
		kc := f.KindSettings(k)
		if k == model.KindCPU {
			if kc.Duration > 0 {
				c.Duration = kc.Duration
			}
			if kc.Frequency > 0 {
				c.Frequency = kc.Frequency
			}
			continue
		}
		if kc.Timeout > 0 {
			if c.Timeouts == nil {
				c.Timeouts = map[model.Kind]time.Duration{}
			}
			c.Timeouts[k] = kc.Timeout
		}
	}
	if f.Defaults.Grace > 0 {
		c.Grace = f.Defaults.Grace
	}
	if f.Defaults.Top > 0 {
		c.TopK = f.Defaults.Top
	}
	if c.ToolPaths == nil {
		c.ToolPaths = map[string]string{}
	}
	maps.Copy(c.ToolPaths, f.Tools)
	if c.Env == nil {
		c.Env = map[string]string{}
	}
	maps.Copy(c.Env, f.Env)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return ErrNoBinary
	}
	if len(c.Kinds) == 0 {
		return ErrNoKinds
	}
	seen := make(map[model.Kind]bool, len(c.Kinds))
	for _, k := range c.Kinds {
		if !k.Valid() {
			return ErrUnknownKind
		}
		if seen[k] {
			return ErrDuplicateKind
		}
		seen[k] = true
	}
	for _, k := range c.Kinds {
		if k != model.KindCPU && c.Timeout(k) <= 0 {
			return ErrInvalidTimeout
		}
	}
	if c.HasKind(model.KindCPU) {
		if c.Duration <= 0 {
			return ErrInvalidDuration
		}
		if c.Frequency <= 0 {
			return ErrInvalidFrequency
		}
	}
	if c.Grace < 0 {
		return ErrInvalidGrace
	}
	if c.TopK < 0 {
		return ErrInvalidTopK
	}
	if c.Jobs < 0 {
		return ErrInvalidJobs
	}
	if c.MaxCaptureBytes <= 0 {
		return ErrInvalidCaptureSize
	}
	if (c.SVGPath != "" || c.PprofPath != "") && !c.HasKind(model.KindCPU) {
		return ErrCPUOnlyOutput
	}
	return nil
}

// RunConfigFor returns the settings of a single analysis worker.
func (c *Config) RunConfigFor(kind model.Kind) RunConfig {
	rc := RunConfig{
		Kind:            kind,
		Timeout:         c.Timeout(kind),
		Grace:           c.Grace,
		Frequency:       c.Frequency,
		TopK:            c.TopK,
		MaxCaptureBytes: c.MaxCaptureBytes,
		ScratchRoot:     c.ScratchRoot,
		KeepScratch:     c.KeepScratch,
		PostTimeout:     DefaultPostProcessTimeout,
		ToolPaths:       maps.Clone(c.ToolPaths),
	}
	if rc.ToolPaths == nil {
		rc.ToolPaths = map[string]string{}
	}
	return rc
}
