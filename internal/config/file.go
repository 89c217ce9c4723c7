package config

import (
	"strings"
	"time"

	"github.com/nao1215/perflens/internal/model"
)

// KindConfig holds settings that can be given globally or per analysis kind.
type KindConfig struct {
	// Timeout overrides the deadline of the kind.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Duration overrides the CPU sampling window.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Frequency overrides the CPU sampling frequency.
	Frequency int `yaml:"frequency,omitempty"`

	// Grace overrides the kill grace period. Only read from defaults.
	Grace time.Duration `yaml:"grace,omitempty"`

	// Top overrides the Top-K limit. Only read from defaults.
	Top int `yaml:"top,omitempty"`
}

// File represents the structure of the .perflens configuration file.
type File struct {
	// Defaults apply to every analysis kind unless overridden in Kinds.
	Defaults KindConfig `yaml:"defaults,omitempty"`

	// Kinds maps an analysis kind name to its settings.
	Kinds map[string]KindConfig `yaml:"kinds,omitempty"`

	// Tools maps a tool name (valgrind, perf, strace, flamegraph, perl) to
	// an executable path.
	Tools map[string]string `yaml:"tools,omitempty"`

	// Env holds environment overrides for the target.
	Env map[string]string `yaml:"env,omitempty"`
}

// KindSettings returns the settings of kind merged over the defaults.
func (f *File) KindSettings(kind model.Kind) KindConfig {
	result := f.Defaults

	kc, ok := f.Kinds[strings.ToLower(kind.String())]
	if !ok {
		return result
	}
	if kc.Timeout != 0 {
		result.Timeout = kc.Timeout
	}
	if kc.Duration != 0 {
		result.Duration = kc.Duration
	}
	if kc.Frequency != 0 {
		result.Frequency = kc.Frequency
	}
	return result
}
