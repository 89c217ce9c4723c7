package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/perflens/internal/config"
	plog "github.com/nao1215/perflens/internal/log"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/pipeline"
	"github.com/nao1215/perflens/internal/report"
	"github.com/nao1215/perflens/internal/runner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewAnalyzeCmd creates the analyze command and its per-kind subcommands.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a performance analysis on a binary",
		Long: `Analyze runs the target binary under an external analysis tool and reports
ranked findings.

Arguments after "--" are passed to the target, as are values of -a/--arg.

Examples:
  # Find memory leaks
  perflens analyze memory ./app -- --config app.yaml

  # Sample CPU usage for 10 seconds and write a flame graph
  perflens analyze cpu --duration 10s -o flame.svg ./app

  # Run syscall and thread analysis concurrently
  perflens analyze all -k syscall,thread ./app`,
	}

	cmd.AddCommand(newKindCmd(model.KindMemory,
		"Detect memory leaks with valgrind memcheck",
		"Reports leaked allocations ranked by bytes lost, with the allocation stack of each leak."))
	cmd.AddCommand(newCPUCmd())
	cmd.AddCommand(newKindCmd(model.KindCache,
		"Measure cache and branch miss rates with perf stat",
		"Reports hardware cache counters ranked by miss rate, plus IPC and branch-miss rate."))
	cmd.AddCommand(newKindCmd(model.KindSyscall,
		"Measure system call overhead with strace",
		"Reports system calls ranked by total time, with call and error counts."))
	cmd.AddCommand(newKindCmd(model.KindThread,
		"Detect lock contention, deadlocks and data races with valgrind helgrind",
		"Reports thread issues ranked by wait time. Lock order cycles are reported as deadlocks."))
	cmd.AddCommand(newAllCmd())

	return cmd
}

// newKindCmd creates the subcommand of a non-CPU analysis kind.
func newKindCmd(kind model.Kind, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.String() + " <binary> [-- args...]",
		Short: short,
		Long:  long,
		Args:  argsWithExitCode(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCmd(cmd, []model.Kind{kind}, args)
		},
	}

	addSharedFlags(cmd.Flags())
	addTimeoutFlag(cmd.Flags(), defaultTimeout(kind))

	return cmd
}

// newCPUCmd creates the cpu subcommand.
func newCPUCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cpu <binary> [-- args...]",
		Short: "Find CPU hotspots with perf record",
		Long: `Samples the target with perf record for the given duration, then reports
functions ranked by total CPU share.

The target is interrupted when the sampling window ends; a target that
exits earlier is analyzed as well. Stacks can be exported as an SVG flame
graph (requires flamegraph.pl) and as a pprof profile.`,
		Args: argsWithExitCode(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCmd(cmd, []model.Kind{model.KindCPU}, args)
		},
	}

	addSharedFlags(cmd.Flags())
	addCPUFlags(cmd.Flags())

	return cmd
}

// newAllCmd creates the all subcommand.
func newAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all <binary> [-- args...]",
		Short: "Run several analyses concurrently",
		Long: `Runs the selected analyses concurrently against the same binary. Each
analysis gets its own process and scratch directory; a failing analysis
does not stop the others.

The exit code is the most severe among the analyses:
invalid arguments (3) > missing dependency (2) > timeout (124) > failure (1).`,
		Args: argsWithExitCode(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := cmd.Flags().GetStringSlice("kinds")
			if err != nil {
				return err
			}
			kinds, err := parseKinds(names)
			if err != nil {
				return invalidArgs(err)
			}
			return runAnalyzeCmd(cmd, kinds, args)
		},
	}

	addSharedFlags(cmd.Flags())
	addTimeoutFlag(cmd.Flags(), config.DefaultTimeout)
	addCPUFlags(cmd.Flags())
	cmd.Flags().StringSliceP("kinds", "k", kindNames(model.AllKinds()),
		"Analyses to run (memory, cpu, cache, syscall, thread)")
	cmd.Flags().Int("jobs", 0,
		"Maximum number of analyses running at once (0 runs all at once)")

	return cmd
}

// addSharedFlags registers the flags common to every analysis subcommand.
func addSharedFlags(fs *pflag.FlagSet) {
	// Target flags
	fs.StringArrayP("arg", "a", nil,
		"Argument passed to the target (repeatable)")
	fs.StringArray("env", nil,
		"Environment override KEY=VALUE for the target (repeatable)")
	fs.StringP("workdir", "C", "",
		"Working directory of the target")

	// Configuration file
	fs.StringP("config", "c", "",
		"Configuration file path (default: .perflens in current or home directory)")

	// Analysis flags
	fs.IntP("top", "n", config.DefaultTopK,
		"Number of findings to report (0 reports all)")
	fs.Duration("grace", config.DefaultGrace,
		"Delay between the graceful stop signal and SIGKILL")
	fs.Bool("keep-scratch", false,
		"Keep the scratch directory of each run")

	// Report flags
	fs.StringP("json", "j", "",
		"Write the JSON report to the specified file")
	fs.StringP("markdown", "m", "",
		"Write the Markdown report to the specified file")
	fs.Bool("raw", false,
		"Print the raw tool output after the report")
}

// addTimeoutFlag registers --timeout.
func addTimeoutFlag(fs *pflag.FlagSet, def time.Duration) {
	fs.Duration("timeout", def,
		"Deadline of the analysis; the target is stopped when it expires")
}

// addCPUFlags registers the flags of CPU sampling.
func addCPUFlags(fs *pflag.FlagSet) {
	fs.Duration("duration", config.DefaultDuration,
		"CPU sampling window")
	fs.IntP("frequency", "F", config.DefaultFrequency,
		"CPU sampling frequency in Hz")
	fs.StringP("output", "o", "",
		"Write an SVG flame graph to the specified file")
	fs.String("pprof", "",
		"Write a gzipped pprof profile to the specified file")
}

func defaultTimeout(kind model.Kind) time.Duration {
	if kind == model.KindThread {
		return config.DefaultThreadTimeout
	}
	return config.DefaultTimeout
}

// parseKinds converts kind names, allowing comma separated values.
func parseKinds(names []string) ([]model.Kind, error) {
	kinds := make([]model.Kind, 0, len(names))
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := model.ParseKind(part)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

func kindNames(kinds []model.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// changed reports whether the flag exists and was set on the command line.
func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// buildConfig creates a Config from the configuration file and cobra
// command flags. Flags given on the command line win over the file.
func buildConfig(cmd *cobra.Command, kinds []model.Kind, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Kinds = kinds
	cfg.Verbose = getVerboseFlag(cmd)

	fs := cmd.Flags()
	var err error

	cfg.ConfigFilePath, err = fs.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit config path must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.Binary = args[0]
	}
	targetArgs, err := fs.GetStringArray("arg")
	if err != nil {
		return nil, err
	}
	cfg.Args = append(slices.Clone(targetArgs), args[min(1, len(args)):]...)

	cfg.WorkDir, err = fs.GetString("workdir")
	if err != nil {
		return nil, err
	}

	pairs, err := fs.GetStringArray("env")
	if err != nil {
		return nil, err
	}
	env, err := model.ParseEnv(pairs)
	if err != nil {
		return nil, err
	}
	maps.Copy(cfg.Env, env)

	if changed(fs, "top") {
		if cfg.TopK, err = fs.GetInt("top"); err != nil {
			return nil, err
		}
	}
	if changed(fs, "grace") {
		if cfg.Grace, err = fs.GetDuration("grace"); err != nil {
			return nil, err
		}
	}
	if changed(fs, "timeout") {
		d, err := fs.GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		cfg.SetTimeout(d)
	}
	if changed(fs, "duration") {
		if cfg.Duration, err = fs.GetDuration("duration"); err != nil {
			return nil, err
		}
	}
	if changed(fs, "frequency") {
		if cfg.Frequency, err = fs.GetInt("frequency"); err != nil {
			return nil, err
		}
	}
	if changed(fs, "jobs") {
		if cfg.Jobs, err = fs.GetInt("jobs"); err != nil {
			return nil, err
		}
	}
	if fs.Lookup("output") != nil {
		if cfg.SVGPath, err = fs.GetString("output"); err != nil {
			return nil, err
		}
	}
	if fs.Lookup("pprof") != nil {
		if cfg.PprofPath, err = fs.GetString("pprof"); err != nil {
			return nil, err
		}
	}

	if cfg.KeepScratch, err = fs.GetBool("keep-scratch"); err != nil {
		return nil, err
	}
	if cfg.Raw, err = fs.GetBool("raw"); err != nil {
		return nil, err
	}
	if cfg.JSONPath, err = fs.GetString("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownPath, err = fs.GetString("markdown"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runAnalyzeCmd executes an analysis subcommand.
func runAnalyzeCmd(cmd *cobra.Command, kinds []model.Kind, args []string) error {
	cfg, err := buildConfig(cmd, kinds, args)
	if err != nil {
		return invalidArgs(err)
	}

	if err := cfg.Validate(); err != nil {
		return invalidArgs(fmt.Errorf("configuration error: %w", err))
	}

	logger := plog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping analyses...")
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newAnalysis(cfg, logger, runner.New(runner.WithLogger(logger)).Run)
	if err != nil {
		return invalidArgs(err)
	}
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	return a.execute(ctx)
}

// analysis is one validated analyze invocation.
type analysis struct {
	cfg    *config.Config
	target model.ProfilingTarget
	logger *slog.Logger
	run    pipeline.RunFunc

	stdout io.Writer
	stderr io.Writer
}

// newAnalysis prepares an analysis of cfg using run to execute tools.
func newAnalysis(cfg *config.Config, logger *slog.Logger, run pipeline.RunFunc) (*analysis, error) {
	target, err := cfg.Target()
	if err != nil {
		return nil, err
	}
	return &analysis{
		cfg:    cfg,
		target: target,
		logger: logger,
		run:    run,
		stdout: io.Discard,
		stderr: io.Discard,
	}, nil
}

// execute runs every requested kind, renders the reports and returns an
// error carrying the exit code when any analysis or output failed.
func (a *analysis) execute(ctx context.Context) error {
	jobs := make([]*pipeline.Job, 0, len(a.cfg.Kinds))
	for _, kind := range a.cfg.Kinds {
		job, err := pipeline.NewJob(kind, a.target, a.cfg.RunConfigFor(kind))
		if err != nil {
			return invalidArgs(err)
		}
		jobs = append(jobs, job)
	}

	a.logger.Info("starting analysis",
		"binary", a.target.Binary,
		"args", a.target.Args,
		"kinds", kindNames(a.cfg.Kinds),
		plog.EnvAttr(a.target.Env),
	)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewAnalysis(a.run, pipeline.WithLogger(a.logger))
		},
		pipeline.WithBatchLogger(a.logger),
		pipeline.WithConcurrency(a.cfg.Jobs),
	)

	reports, err := bp.ProcessBatch(ctx, jobs)
	if err != nil {
		a.logger.Warn("analysis interrupted", "error", err)
	}

	// Outputs are still written after an interrupt so partial results survive.
	renderer := report.NewRenderer(
		report.WithRenderLogger(a.logger),
		report.WithRenderVerbose(a.cfg.Verbose),
	)
	res := renderer.RenderAll(context.WithoutCancel(ctx), reports, a.targets())

	if a.cfg.Raw {
		writeRaw(a.stdout, jobs)
	}
	a.printInstallHints(reports)

	code := reportsExitCode(reports)
	errs := []error{analysisError(reports)}
	if rerr := res.Err(); rerr != nil {
		code = worseExit(code, ExitFailure)
		errs = append(errs, fmt.Errorf("failed to write output: %w", rerr))
	}
	if code == ExitOK {
		return nil
	}
	return withExitCode(code, errors.Join(errs...))
}

// targets returns the render targets of the configured outputs.
func (a *analysis) targets() report.Targets {
	t := report.Targets{
		Terminal:     a.stdout,
		JSONPath:     a.cfg.JSONPath,
		MarkdownPath: a.cfg.MarkdownPath,
		SVGPath:      a.cfg.SVGPath,
		PprofPath:    a.cfg.PprofPath,
		Frequency:    a.cfg.Frequency,
	}
	if a.cfg.SVGPath != "" {
		script, err := runner.FindFlameGraph(a.cfg.ToolPaths[config.ToolFlameGraph], nil)
		if err != nil {
			a.logger.Warn("flame graph script not found", "error", err)
		}
		t.FlameGraph = report.FlameGraphOptions{
			Script:  script,
			Perl:    a.cfg.ToolPaths[config.ToolPerl],
			Timeout: config.DefaultPostProcessTimeout,
		}
	}
	return t
}

// printInstallHints tells the user how to install each missing tool once.
func (a *analysis) printInstallHints(reports []*model.AnalysisReport) {
	seen := make(map[string]bool)
	for _, r := range reports {
		if r == nil || r.Status != model.StatusToolNotFound {
			continue
		}
		dep, ok := runner.DependencyFor(r.Kind)
		if !ok || seen[dep.Name] {
			continue
		}
		seen[dep.Name] = true
		fmt.Fprintf(a.stderr, "%s is required for %s but was not found.\n", dep.Name, dep.Purpose)
		fmt.Fprintf(a.stderr, "  Install it with: %s\n", dep.Install)
	}
}

// writeRaw prints the captured tool output of every job.
func writeRaw(w io.Writer, jobs []*pipeline.Job) {
	for _, job := range jobs {
		fmt.Fprintf(w, "\n--- raw %s output ---\n", job.Kind)
		combined := job.Capture.Combined()
		if len(combined) == 0 {
			fmt.Fprintln(w, "(no output)")
		} else {
			_, _ = w.Write(combined) //nolint:errcheck // best effort terminal output
			if combined[len(combined)-1] != '\n' {
				fmt.Fprintln(w)
			}
		}
		for _, name := range slices.Sorted(maps.Keys(job.Capture.Artifacts)) {
			fmt.Fprintf(w, "--- %s ---\n", name)
			_, _ = w.Write(job.Capture.Artifacts[name]) //nolint:errcheck // best effort terminal output
		}
	}
}
