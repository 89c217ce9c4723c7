package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/perflens/internal/model"
)

// FilterSpec describes a post-processing command that reads Stdin and
// writes Stdout, such as perf report or flamegraph.pl.
type FilterSpec struct {
	Path    string
	Args    []string
	Dir     string
	Stdin   io.Reader
	Stdout  io.Writer
	Timeout time.Duration
	Grace   time.Duration
}

// stderrTail bounds the stderr kept for filter error messages.
const stderrTail = 4096

// Filter runs a post-processing command with the same process group and
// deadline handling as analysis runs. It fails unless the command exits
// with code 0.
func Filter(ctx context.Context, spec FilterSpec) error {
	stderr := newTailBuffer(stderrTail)
	stdout := spec.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	out := execute(ctx, process{
		path:    spec.Path,
		args:    spec.Args,
		dir:     spec.Dir,
		stdin:   spec.Stdin,
		stdout:  stdout,
		stderr:  stderr,
		timeout: spec.Timeout,
		grace:   spec.Grace,
		signal:  syscall.SIGTERM,
	})
	if out.status == model.StatusSuccess {
		return nil
	}

	msg := strings.TrimSpace(string(stderr.Bytes()))
	if msg == "" && out.err != nil {
		msg = out.err.Error()
	}
	return fmt.Errorf("%s %s: %s", spec.Path, out.status, msg)
}
