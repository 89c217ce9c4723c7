package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/model"
)

// Invocation is the command line of one tool run.
type Invocation struct {
	// Args follow the tool executable.
	Args []string

	// Signal is sent to the process group on deadline or cancellation.
	Signal syscall.Signal

	// Window marks the deadline as the end of a sampling window. A clean
	// exit after the signal is then a success.
	Window bool
}

// Tool is an analysis tool variant. Each analysis kind has exactly one.
type Tool interface {
	// Kind returns the analysis kind the tool serves.
	Kind() model.Kind

	// Executable returns the tool name, used as the config.ToolPaths key
	// and for PATH lookup.
	Executable() string

	// Command builds the invocation for target. scratch is the run's
	// private directory.
	Command(target model.ProfilingTarget, scratch string, rc config.RunConfig) (Invocation, error)

	// Collect runs post-processing after the main process ended and
	// stores the results as capture artifacts.
	Collect(ctx context.Context, exe, scratch string, rc config.RunConfig, capture *model.RawCapture) error
}

// ErrNoArtifact is returned by Collect when the main run left nothing to
// post-process.
var ErrNoArtifact = errors.New("no artifact to post-process")

// ToolFor returns the tool variant of kind.
func ToolFor(kind model.Kind) (Tool, error) {
	switch kind {
	case model.KindMemory:
		return MemoryTool{}, nil
	case model.KindCPU:
		return CPUTool{}, nil
	case model.KindCache:
		return CacheTool{}, nil
	case model.KindSyscall:
		return SyscallTool{}, nil
	case model.KindThread:
		return ThreadTool{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
}

// withTarget appends "--" and the target command line.
func withTarget(args []string, target model.ProfilingTarget) []string {
	return append(append(args, "--"), target.Command()...)
}

// MemoryTool runs valgrind memcheck with full leak reporting.
type MemoryTool struct{}

func (MemoryTool) Kind() model.Kind   { return model.KindMemory }
func (MemoryTool) Executable() string { return config.ToolValgrind }

func (MemoryTool) Command(target model.ProfilingTarget, _ string, _ config.RunConfig) (Invocation, error) {
	args := []string{
		"--leak-check=full",
		"--show-leak-kinds=all",
		"--track-origins=yes",
		"--verbose",
	}
	// valgrind has no "--" separator; the target follows the options.
	return Invocation{
		Args:   append(args, target.Command()...),
		Signal: syscall.SIGTERM,
	}, nil
}

func (MemoryTool) Collect(context.Context, string, string, config.RunConfig, *model.RawCapture) error {
	return nil
}

// ThreadTool runs valgrind helgrind.
type ThreadTool struct{}

func (ThreadTool) Kind() model.Kind   { return model.KindThread }
func (ThreadTool) Executable() string { return config.ToolValgrind }

func (ThreadTool) Command(target model.ProfilingTarget, _ string, _ config.RunConfig) (Invocation, error) {
	args := []string{
		"--tool=helgrind",
		"--history-level=full",
	}
	return Invocation{
		Args:   append(args, target.Command()...),
		Signal: syscall.SIGTERM,
	}, nil
}

func (ThreadTool) Collect(context.Context, string, string, config.RunConfig, *model.RawCapture) error {
	return nil
}

// CacheEvents are the hardware counters requested from perf stat.
var CacheEvents = []string{
	"cycles",
	"instructions",
	"cache-references",
	"cache-misses",
	"L1-dcache-loads",
	"L1-dcache-load-misses",
	"L1-dcache-stores",
	"L1-icache-loads",
	"L1-icache-load-misses",
	"LLC-loads",
	"LLC-load-misses",
	"LLC-stores",
	"LLC-store-misses",
	"dTLB-loads",
	"dTLB-load-misses",
	"branch-instructions",
	"branch-misses",
}

// CacheTool runs perf stat with cache counters.
type CacheTool struct{}

func (CacheTool) Kind() model.Kind   { return model.KindCache }
func (CacheTool) Executable() string { return config.ToolPerf }

// Command uses SIGINT so that perf stat still prints the counters gathered
// so far when the deadline fires.
func (CacheTool) Command(target model.ProfilingTarget, _ string, _ config.RunConfig) (Invocation, error) {
	args := []string{"stat", "-e", strings.Join(CacheEvents, ",")}
	return Invocation{
		Args:   withTarget(args, target),
		Signal: syscall.SIGINT,
	}, nil
}

func (CacheTool) Collect(context.Context, string, string, config.RunConfig, *model.RawCapture) error {
	return nil
}

// SyscallTool runs strace in summary mode.
type SyscallTool struct{}

func (SyscallTool) Kind() model.Kind   { return model.KindSyscall }
func (SyscallTool) Executable() string { return config.ToolStrace }

func (SyscallTool) Command(target model.ProfilingTarget, _ string, _ config.RunConfig) (Invocation, error) {
	args := []string{"-c", "-f", "-S", "time"}
	return Invocation{
		Args:   withTarget(args, target),
		Signal: syscall.SIGTERM,
	}, nil
}

func (SyscallTool) Collect(context.Context, string, string, config.RunConfig, *model.RawCapture) error {
	return nil
}

// perfDataFile is the perf record output inside the scratch directory.
const perfDataFile = "perf.data"

// CPUTool samples the target with perf record for a fixed window, then
// extracts the hotspot report and raw samples.
type CPUTool struct{}

func (CPUTool) Kind() model.Kind   { return model.KindCPU }
func (CPUTool) Executable() string { return config.ToolPerf }

func (CPUTool) Command(target model.ProfilingTarget, scratch string, rc config.RunConfig) (Invocation, error) {
	freq := rc.Frequency
	if freq <= 0 {
		freq = config.DefaultFrequency
	}
	args := []string{
		"record",
		"-F", strconv.Itoa(freq),
		"-g",
		"-o", filepath.Join(scratch, perfDataFile),
	}
	return Invocation{
		Args:   withTarget(args, target),
		Signal: syscall.SIGINT,
		Window: true,
	}, nil
}

// Collect runs perf report and perf script against the recorded data.
// Both commands share a single rc.PostTimeout budget, so a CPU run ends at
// most one post-processing timeout (plus grace) after its sampling window.
func (CPUTool) Collect(ctx context.Context, exe, scratch string, rc config.RunConfig, capture *model.RawCapture) error {
	data := filepath.Join(scratch, perfDataFile)
	if st, err := os.Stat(data); err != nil || st.Size() == 0 {
		return ErrNoArtifact
	}

	if rc.PostTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.PostTimeout)
		defer cancel()
	}

	limit := rc.MaxCaptureBytes
	reportOut := newTailBuffer(limit)
	err := Filter(ctx, FilterSpec{
		Path: exe,
		Args: []string{
			"report", "--stdio", "--no-children", "-n", "-g", "none",
			"--sort", "dso,sym", "-i", data,
		},
		Dir:    scratch,
		Stdout: reportOut,
		Grace:  rc.Grace,
	})
	if err != nil {
		return fmt.Errorf("perf report: %w", err)
	}
	capture.SetArtifact(model.ArtifactPerfReport, reportOut.Bytes())

	// Raw samples are larger than the report; allow more room.
	scriptOut := newTailBuffer(limit * 4)
	err = Filter(ctx, FilterSpec{
		Path:   exe,
		Args:   []string{"script", "-i", data},
		Dir:    scratch,
		Stdout: scriptOut,
		Grace:  rc.Grace,
	})
	if err != nil {
		return fmt.Errorf("perf script: %w", err)
	}
	capture.SetArtifact(model.ArtifactPerfScript, scriptOut.Bytes())
	capture.Dropped += reportOut.Dropped() + scriptOut.Dropped()
	return nil
}
