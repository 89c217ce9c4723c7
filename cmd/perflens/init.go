package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/perflens/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/perflens.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new perflens configuration file",
		Long: `Initialize creates a new .perflens configuration file in the current directory.

The generated file includes:
- Default timeout, Top-K and grace period
- Per-kind overrides such as the CPU sampling window
- Commented tool paths and environment overrides

Examples:
  # Create .perflens in current directory
  perflens init

  # Create config file at a specific path
  perflens init -o ~/.config/perflens/config.yaml

  # Force overwrite existing file
  perflens init -f`,
		Args: argsWithExitCode(cobra.NoArgs),
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return invalidArgs(fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath))
		}
	}

	content, err := configTemplate.ReadFile("templates/perflens.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Timeouts per analysis kind")
	fmt.Fprintln(out, "  - CPU sampling duration and frequency")
	fmt.Fprintln(out, "  - Paths of valgrind, perf, strace and flamegraph.pl")

	return nil
}
