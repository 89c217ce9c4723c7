package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for perflens.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perflens",
		Short: "Performance analysis front end for native binaries",
		Long: `perflens runs a native binary under valgrind, perf or strace and turns
the tool output into ranked findings.

Supported analyses:
- memory:  leaked allocations (valgrind memcheck)
- cpu:     hotspots, flame graph and pprof export (perf record)
- cache:   cache and branch miss rates (perf stat)
- syscall: time spent per system call (strace -c)
- thread:  lock contention, deadlocks and data races (valgrind helgrind)

Exit codes: 0 success, 1 analysis error, 2 missing dependency,
3 invalid arguments, 124 timeout.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidArgs(err)
	})

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with its exit code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, "Error:", err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		return ExitInvalidArgs
	}
	return exitCodeOf(err)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// argsWithExitCode wraps a positional argument validator so that its
// failures exit with the invalid-arguments code.
func argsWithExitCode(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return invalidArgs(fn(cmd, args))
	}
}
