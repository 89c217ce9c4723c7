package model

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// ProfilingTarget describes the binary under analysis.
// A target is treated as read-only once a run starts; use NewProfilingTarget
// or Clone to obtain an independent copy.
type ProfilingTarget struct {
	// Binary is the path to the executable.
	Binary string `json:"binary"`

	// Args are passed to the binary after the tool's own arguments.
	Args []string `json:"args"`

	// WorkDir is the working directory of the child process.
	// Empty means the current directory of perflens.
	WorkDir string `json:"work_dir"`

	// Env holds environment overrides applied on top of the inherited
	// environment.
	Env map[string]string `json:"env"`
}

// NewProfilingTarget builds a target, copying args and env so later
// mutation by the caller is not observed.
func NewProfilingTarget(binary string, args []string, workDir string, env map[string]string) (ProfilingTarget, error) {
	if strings.TrimSpace(binary) == "" {
		return ProfilingTarget{}, ErrEmptyBinary
	}
	t := ProfilingTarget{
		Binary:  binary,
		Args:    slices.Clone(args),
		WorkDir: workDir,
		Env:     maps.Clone(env),
	}
	if t.Args == nil {
		t.Args = []string{}
	}
	if t.Env == nil {
		t.Env = map[string]string{}
	}
	return t, nil
}

// Clone returns a deep copy of the target.
func (t ProfilingTarget) Clone() ProfilingTarget {
	c := t
	c.Args = slices.Clone(t.Args)
	c.Env = maps.Clone(t.Env)
	return c
}

// Command returns the binary followed by its arguments.
func (t ProfilingTarget) Command() []string {
	return append([]string{t.Binary}, t.Args...)
}

// Environ merges the overrides into base, which has the os.Environ format.
// Overridden keys replace the inherited entry; new keys are appended sorted.
func (t ProfilingTarget) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(t.Env))
	seen := make(map[string]bool, len(t.Env))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := t.Env[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+t.Env[k])
	}
	return out
}

// ParseEnv converts KEY=VALUE pairs into a map.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEnv, p)
		}
		env[key] = value
	}
	return env, nil
}
