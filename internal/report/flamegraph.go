package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/parser"
	"github.com/nao1215/perflens/internal/runner"
)

var (
	// ErrNoStacks is returned when a report carries no stack samples.
	ErrNoStacks = errors.New("report has no stack samples")

	// ErrEmptyOutput is returned when a renderer produced an empty file.
	ErrEmptyOutput = errors.New("output file is empty")
)

// FlameGraphOptions configures flame graph generation.
type FlameGraphOptions struct {
	// Script is the path of flamegraph.pl.
	Script string

	// Perl runs Script when it is not executable. Defaults to "perl".
	Perl string

	// Title is shown at the top of the SVG.
	Title string

	// Timeout bounds the script run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// WriteFlameGraph feeds the report's folded stacks to flamegraph.pl and
// writes the SVG to path. The file is replaced only when the script
// succeeded and produced output.
func WriteFlameGraph(ctx context.Context, r *model.AnalysisReport, path string, opts FlameGraphOptions) error {
	if len(r.Stacks) == 0 {
		return ErrNoStacks
	}
	if opts.Script == "" {
		return runner.ErrFlameGraphNotFound
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".perflens-*.svg")
	if err != nil {
		return fmt.Errorf("create flame graph: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	exe, args := runner.ScriptCommand(opts.Script, opts.Perl)
	if opts.Title != "" {
		args = append(args, "--title", opts.Title)
	}

	runErr := runner.Filter(ctx, runner.FilterSpec{
		Path:    exe,
		Args:    args,
		Stdin:   strings.NewReader(parser.FoldedLines(r.Stacks)),
		Stdout:  tmp,
		Timeout: opts.Timeout,
	})
	if err := tmp.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return fmt.Errorf("flamegraph.pl: %w", runErr)
	}

	if err := nonEmpty(tmpName); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write flame graph: %w", err)
	}
	return nonEmpty(path)
}

// nonEmpty verifies that path exists and has content.
func nonEmpty(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyOutput)
	}
	return nil
}
