package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/runner"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// errMissingDependency is returned by check when a required tool is absent.
var errMissingDependency = errors.New("required tools are missing")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the external analysis tools are installed",
		Long: `Check looks for valgrind, perf, strace and flamegraph.pl and prints how to
install the missing ones.

Tool paths configured in the tools section of the configuration file are
honored. The command exits with code 2 when a required tool is missing;
flamegraph.pl is optional.`,
		Args: argsWithExitCode(cobra.NoArgs),
		RunE: runCheckCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .perflens in current or home directory)")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	toolPaths := map[string]string{}
	if path := config.FindConfigFile(configPath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return invalidArgs(fmt.Errorf("failed to load config file %s: %w", path, err))
		}
		toolPaths = file.Tools
	} else if configPath != "" {
		return invalidArgs(fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath))
	}

	statuses := runner.CheckDependencies(toolPaths, nil)
	if err := writeDependencyTable(cmd.OutOrStdout(), statuses); err != nil {
		return err
	}
	return checkResult(cmd.OutOrStdout(), statuses)
}

// writeDependencyTable prints one row per dependency.
func writeDependencyTable(w io.Writer, statuses []runner.DependencyStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Tool", "Status", "Path", "Used For")
	for _, st := range statuses {
		status := "found"
		switch {
		case !st.Found && st.Optional:
			status = "missing (optional)"
		case !st.Found:
			status = "missing"
		}
		path := st.Path
		if path == "" {
			path = "-"
		}
		if err := table.Append([]string{st.Name, status, path, st.Purpose}); err != nil {
			return err
		}
	}
	return table.Render()
}

// checkResult prints install commands for missing tools and returns an
// error with the missing-dependency exit code when a required tool is absent.
func checkResult(w io.Writer, statuses []runner.DependencyStatus) error {
	var missing []string
	hints := false
	for _, st := range statuses {
		if st.Found {
			continue
		}
		if !hints {
			fmt.Fprintln(w, "\nInstall the missing tools with:")
			hints = true
		}
		fmt.Fprintf(w, "  %-10s %s\n", st.Name, st.Install)
		if !st.Optional {
			missing = append(missing, st.Name)
		}
	}
	if len(missing) > 0 {
		return withExitCode(ExitMissingDependency,
			fmt.Errorf("%w: %s", errMissingDependency, strings.Join(missing, ", ")))
	}
	if !hints {
		fmt.Fprintln(w, "\nAll tools are installed.")
	}
	return nil
}
