package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/perflens/internal/runner"
)

func dependencyStatuses(found map[string]bool) []runner.DependencyStatus {
	deps := runner.Dependencies()
	out := make([]runner.DependencyStatus, len(deps))
	for i, d := range deps {
		out[i] = runner.DependencyStatus{Dependency: d, Found: found[d.Name]}
		if found[d.Name] {
			out[i].Path = "/usr/bin/" + d.Name
		}
	}
	return out
}

func TestNewCheckCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCheckCmd()
	if cmd.Use != "check" {
		t.Errorf("expected use 'check', got %q", cmd.Use)
	}
	if cmd.Flags().Lookup("config") == nil {
		t.Error("expected config flag")
	}
}

func TestWriteDependencyTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	statuses := dependencyStatuses(map[string]bool{"valgrind": true})
	if err := writeDependencyTable(&buf, statuses); err != nil {
		t.Fatalf("writeDependencyTable() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"valgrind", "/usr/bin/valgrind", "strace", "missing (optional)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected table to contain %q:\n%s", want, out)
		}
	}
}

func TestCheckResult(t *testing.T) {
	t.Parallel()

	t.Run("all found", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		statuses := dependencyStatuses(map[string]bool{
			"valgrind": true, "perf": true, "strace": true, "flamegraph": true,
		})
		if err := checkResult(&buf, statuses); err != nil {
			t.Fatalf("checkResult() error = %v", err)
		}
		if !strings.Contains(buf.String(), "All tools are installed") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("optional tool missing", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		statuses := dependencyStatuses(map[string]bool{"valgrind": true, "perf": true, "strace": true})
		if err := checkResult(&buf, statuses); err != nil {
			t.Fatalf("checkResult() error = %v", err)
		}
		if !strings.Contains(buf.String(), "FlameGraph") {
			t.Errorf("expected flamegraph install hint, got %q", buf.String())
		}
	})

	t.Run("required tool missing", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		statuses := dependencyStatuses(map[string]bool{"valgrind": true, "flamegraph": true})
		err := checkResult(&buf, statuses)
		if !errors.Is(err, errMissingDependency) {
			t.Fatalf("expected errMissingDependency, got %v", err)
		}
		if code := exitCodeOf(err); code != ExitMissingDependency {
			t.Errorf("exit code = %d, want %d", code, ExitMissingDependency)
		}
		if !strings.Contains(err.Error(), "perf, strace") {
			t.Errorf("expected missing tools in error, got %v", err)
		}
		if !strings.Contains(buf.String(), "sudo apt install strace") {
			t.Errorf("expected install command, got %q", buf.String())
		}
	})
}
