package runner

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/model"
)

// Dependency describes an external program perflens relies on.
type Dependency struct {
	// Name is the executable name and config.ToolPaths key.
	Name string
	// Purpose is a short description shown by the check command.
	Purpose string
	// Install is the remediation hint.
	Install string
	// Kinds lists the analyses that need the dependency.
	Kinds []model.Kind
	// Optional dependencies only enable extra outputs.
	Optional bool
}

// DependencyStatus is the result of probing one dependency.
type DependencyStatus struct {
	Dependency
	Path  string
	Found bool
}

// Dependencies returns every external program perflens can use.
func Dependencies() []Dependency {
	return []Dependency{
		{
			Name:    config.ToolValgrind,
			Purpose: "memory leak and thread analysis",
			Install: "sudo apt install valgrind",
			Kinds:   []model.Kind{model.KindMemory, model.KindThread},
		},
		{
			Name:    config.ToolPerf,
			Purpose: "CPU and cache analysis",
			Install: "sudo apt install linux-tools-common linux-tools-generic",
			Kinds:   []model.Kind{model.KindCPU, model.KindCache},
		},
		{
			Name:    config.ToolStrace,
			Purpose: "syscall analysis",
			Install: "sudo apt install strace",
			Kinds:   []model.Kind{model.KindSyscall},
		},
		{
			Name:     config.ToolFlameGraph,
			Purpose:  "flame graph SVG output",
			Install:  "git clone https://github.com/brendangregg/FlameGraph ~/FlameGraph",
			Kinds:    []model.Kind{model.KindCPU},
			Optional: true,
		},
	}
}

// DependencyFor returns the required dependency of kind.
func DependencyFor(kind model.Kind) (Dependency, bool) {
	for _, d := range Dependencies() {
		if d.Optional {
			continue
		}
		for _, k := range d.Kinds {
			if k == kind {
				return d, true
			}
		}
	}
	return Dependency{}, false
}

// CheckDependencies looks up every dependency. toolPaths overrides lookup
// like config.RunConfig.ToolPaths; lookPath defaults to exec.LookPath.
func CheckDependencies(toolPaths map[string]string, lookPath func(string) (string, error)) []DependencyStatus {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	deps := Dependencies()
	out := make([]DependencyStatus, 0, len(deps))
	for _, d := range deps {
		st := DependencyStatus{Dependency: d}
		if d.Name == config.ToolFlameGraph {
			if p, err := FindFlameGraph(toolPaths[config.ToolFlameGraph], lookPath); err == nil {
				st.Path, st.Found = p, true
			}
		} else {
			name := d.Name
			if p, ok := toolPaths[name]; ok && p != "" {
				name = p
			}
			if p, err := lookPath(name); err == nil {
				st.Path, st.Found = p, true
			}
		}
		out = append(out, st)
	}
	return out
}

// ErrFlameGraphNotFound is returned when flamegraph.pl can not be located.
var ErrFlameGraphNotFound = errors.New("flamegraph.pl not found (git clone https://github.com/brendangregg/FlameGraph ~/FlameGraph)")

// flameGraphScript is the script name in the FlameGraph repository.
const flameGraphScript = "flamegraph.pl"

// FindFlameGraph locates flamegraph.pl: the configured path first, then
// PATH, then the usual clone locations.
func FindFlameGraph(configured string, lookPath func(string) (string, error)) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if configured != "" {
		if fileExists(configured) {
			return configured, nil
		}
		return "", ErrFlameGraphNotFound
	}
	if p, err := lookPath(flameGraphScript); err == nil {
		return p, nil
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "FlameGraph", flameGraphScript))
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/bin", flameGraphScript),
		filepath.Join("/opt/FlameGraph", flameGraphScript),
	)
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", ErrFlameGraphNotFound
}

// ScriptCommand returns the executable and leading arguments to run a
// script: the script itself when executable, otherwise through perl.
func ScriptCommand(script, perl string) (string, []string) {
	if st, err := os.Stat(script); err == nil && st.Mode()&0o111 != 0 {
		return script, nil
	}
	if perl == "" {
		perl = config.ToolPerl
	}
	return perl, []string{script}
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
