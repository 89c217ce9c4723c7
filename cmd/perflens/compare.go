package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/perflens/internal/report"
	"github.com/spf13/cobra"
)

// errFormatConflict is returned when both --json and --markdown are set.
var errFormatConflict = errors.New("--json and --markdown are mutually exclusive")

// NewCompareCmd creates the compare command.
// This command compares two JSON reports written by analyze --json.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <old.json> <new.json>",
		Short: "Compare two exported analysis reports",
		Long: `Compare displays the differences between two JSON reports written by
'perflens analyze --json'.

Findings are matched by fingerprint within each analysis kind. For every
kind present in either report it shows:
- New findings that appeared in the newer report
- Resolved findings that are no longer present
- Findings whose ranking value changed
- Changes of the summary aggregates

Examples:
  # Compare two memory analyses
  perflens compare before.json after.json

  # Output the comparison as JSON
  perflens compare --json before.json after.json

  # Write a Markdown comparison to a file
  perflens compare --markdown -o diff.md before.json after.json`,
		Args: argsWithExitCode(cobra.ExactArgs(2)),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write the comparison to the specified file (creates directories if needed)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return invalidArgs(errFormatConflict)
	}

	previous, err := report.ReadJSONFile(args[0])
	if err != nil {
		return invalidArgs(fmt.Errorf("failed to read %s: %w", args[0], err))
	}
	current, err := report.ReadJSONFile(args[1])
	if err != nil {
		return invalidArgs(fmt.Errorf("failed to read %s: %w", args[1], err))
	}

	comparison := report.Compare(previous, current)

	write := report.WriteComparisonText
	switch {
	case jsonOut:
		write = report.WriteComparisonJSON
	case markdownOut:
		write = report.WriteComparisonMarkdown
	}

	if outputPath == "" {
		return write(cmd.OutOrStdout(), comparison)
	}
	if err := writeOutputFile(outputPath, func(w io.Writer) error {
		return write(w, comparison)
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Comparison written to: %s\n", outputPath)
	return nil
}

// writeOutputFile creates parent directories and writes path through fn.
func writeOutputFile(path string, fn func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is supplied by the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()
	return fn(f)
}
