package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/report"
)

// exportSyscallReport runs a syscall analysis over capture and writes its
// JSON report into dir.
func exportSyscallReport(t *testing.T, dir, name, capture string) string {
	t.Helper()

	cfg := testConfig(t, model.KindSyscall)
	cfg.JSONPath = filepath.Join(dir, name)
	a, _, _ := newTestAnalysis(t, cfg, fakeRun(nil, model.RawCapture{Stderr: []byte(capture)}))
	if err := a.execute(context.Background()); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	return cfg.JSONPath
}

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()
	if cmd.Name() != "compare" {
		t.Errorf("expected name 'compare', got %q", cmd.Name())
	}
	for _, name := range []string{"json", "markdown", "output"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

func TestRunCompareCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	before := exportSyscallReport(t, dir, "before.json", syscallCapture)
	after := exportSyscallReport(t, dir, "after.json", "write 40 300.0 7.5\nopenat 10 50.0 5.0\n")

	t.Run("text comparison", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		if code := run([]string{"compare", before, after}, &stdout, &stderr); code != ExitOK {
			t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
		}
		out := stdout.String()
		for _, want := range []string{"Direction: improved", "1 new, 1 resolved, 1 in both", "openat"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("json comparison", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		if code := run([]string{"compare", "--json", before, after}, &stdout, &stderr); code != ExitOK {
			t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
		}
		var c report.Comparison
		if err := json.Unmarshal(stdout.Bytes(), &c); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(c.Kinds) != 1 {
			t.Fatalf("expected 1 kind, got %d", len(c.Kinds))
		}
		kc := c.Kinds[0]
		if kc.Kind != model.KindSyscall || kc.Direction != report.DirectionImproved {
			t.Errorf("unexpected comparison: kind=%s direction=%s", kc.Kind, kc.Direction)
		}
		if len(kc.NewFindings) != 1 || kc.NewFindings[0].Syscall.Name != "openat" {
			t.Errorf("unexpected new findings: %+v", kc.NewFindings)
		}
		if len(kc.ResolvedFindings) != 1 || kc.ResolvedFindings[0].Syscall.Name != "read" {
			t.Errorf("unexpected resolved findings: %+v", kc.ResolvedFindings)
		}
	})

	t.Run("markdown comparison to a file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "diff", "comparison.md")
		var stdout, stderr bytes.Buffer
		code := run([]string{"compare", "--markdown", "-o", outputPath, before, after}, &stdout, &stderr)
		if code != ExitOK {
			t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read comparison: %v", err)
		}
		if !strings.Contains(string(content), "# perflens Comparison") {
			t.Errorf("unexpected markdown:\n%s", content)
		}
		if !strings.Contains(stdout.String(), outputPath) {
			t.Errorf("expected output path to be printed, got %q", stdout.String())
		}
	})

	t.Run("json and markdown are exclusive", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"compare", "--json", "--markdown", before, after}, &stdout, &stderr)
		if code != ExitInvalidArgs {
			t.Errorf("exit code = %d, want %d", code, ExitInvalidArgs)
		}
	})

	t.Run("unreadable report", func(t *testing.T) {
		t.Parallel()

		notReport := filepath.Join(t.TempDir(), "other.json")
		if err := os.WriteFile(notReport, []byte(`{"name": "x"}`), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		var stdout, stderr bytes.Buffer
		code := run([]string{"compare", before, notReport}, &stdout, &stderr)
		if code != ExitInvalidArgs {
			t.Errorf("exit code = %d, want %d", code, ExitInvalidArgs)
		}
		if !strings.Contains(stderr.String(), "other.json") {
			t.Errorf("expected file name in error, got %q", stderr.String())
		}
	})
}
