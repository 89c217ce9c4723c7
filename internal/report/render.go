package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/perflens/internal/model"
)

// Output names used in RenderResult.
const (
	OutputTerminal   = "terminal"
	OutputJSON       = "json"
	OutputMarkdown   = "markdown"
	OutputFlameGraph = "svg"
	OutputPprof      = "pprof"
)

// ErrNotCPU is returned for CPU-only outputs requested on other kinds.
var ErrNotCPU = errors.New("output is only available for cpu analysis")

// Targets lists the requested outputs of one run. Empty fields are skipped.
type Targets struct {
	// Terminal receives the human-readable tables.
	Terminal io.Writer

	// JSONPath and MarkdownPath receive exports of every report.
	JSONPath     string
	MarkdownPath string

	// SVGPath and PprofPath receive CPU stack exports.
	SVGPath   string
	PprofPath string

	// FlameGraph configures SVG generation.
	FlameGraph FlameGraphOptions

	// Frequency is the CPU sampling rate, used for the pprof period.
	Frequency int
}

// OutputResult is the outcome of one output.
type OutputResult struct {
	Name string
	Path string
	Err  error
}

// RenderResult holds the outcome of every requested output.
type RenderResult struct {
	Outputs []OutputResult
}

// Err joins the errors of all failed outputs.
func (r RenderResult) Err() error {
	var errs []error
	for _, o := range r.Outputs {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns the outputs that could not be written.
func (r RenderResult) Failed() []OutputResult {
	var out []OutputResult
	for _, o := range r.Outputs {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Renderer writes reports to every requested output.
type Renderer struct {
	logger  *slog.Logger
	verbose bool
	color   *bool
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRenderLogger sets the logger of the renderer.
func WithRenderLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithRenderVerbose adds run metadata to terminal output.
func WithRenderVerbose(verbose bool) RendererOption {
	return func(r *Renderer) {
		r.verbose = verbose
	}
}

// WithRenderColor forces terminal colors on or off.
func WithRenderColor(enabled bool) RendererOption {
	return func(r *Renderer) {
		r.color = &enabled
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render writes one report. See RenderAll.
func (rn *Renderer) Render(ctx context.Context, report *model.AnalysisReport, t Targets) RenderResult {
	return rn.RenderAll(ctx, []*model.AnalysisReport{report}, t)
}

// RenderAll writes reports to every target in t. A failing output never
// suppresses the others. Reports are only read.
func (rn *Renderer) RenderAll(ctx context.Context, reports []*model.AnalysisReport, t Targets) RenderResult {
	var res RenderResult
	record := func(name, path string, err error) {
		if err != nil {
			rn.logger.Warn("failed to write output", "output", name, "path", path, "error", err)
		} else if path != "" {
			rn.logger.Debug("output written", "output", name, "path", path)
		}
		res.Outputs = append(res.Outputs, OutputResult{Name: name, Path: path, Err: err})
	}

	if t.Terminal != nil {
		opts := []TerminalWriterOption{WithVerbose(rn.verbose)}
		if rn.color != nil {
			opts = append(opts, WithColor(*rn.color))
		}
		_, err := NewTerminalWriter(t.Terminal, opts...).WriteAll(reports)
		record(OutputTerminal, "", err)
	}

	if t.JSONPath != "" {
		record(OutputJSON, t.JSONPath, writeFile(t.JSONPath, func(w io.Writer) error {
			jw := NewJSONWriter(w, WithPrettyPrint())
			var err error
			if len(reports) == 1 {
				_, err = jw.Write(reports[0])
			} else {
				_, err = jw.WriteAll(reports)
			}
			return err
		}))
	}

	if t.MarkdownPath != "" {
		record(OutputMarkdown, t.MarkdownPath, writeFile(t.MarkdownPath, func(w io.Writer) error {
			_, err := NewMarkdownWriter(w).WriteAll(reports)
			return err
		}))
	}

	if t.SVGPath != "" || t.PprofPath != "" {
		cpu := findKind(reports, model.KindCPU)

		if t.SVGPath != "" {
			var err error
			if cpu == nil {
				err = ErrNotCPU
			} else {
				fg := t.FlameGraph
				if fg.Title == "" {
					fg.Title = "perflens: " + cpu.Target.Binary
				}
				err = WriteFlameGraph(ctx, cpu, t.SVGPath, fg)
			}
			record(OutputFlameGraph, t.SVGPath, err)
		}

		if t.PprofPath != "" {
			var err error
			if cpu == nil {
				err = ErrNotCPU
			} else {
				err = WritePprofFile(t.PprofPath, cpu, t.Frequency)
			}
			record(OutputPprof, t.PprofPath, err)
		}
	}

	return res
}

func findKind(reports []*model.AnalysisReport, kind model.Kind) *model.AnalysisReport {
	for _, r := range reports {
		if r != nil && r.Kind == kind {
			return r
		}
	}
	return nil
}

// writeFile writes through fn into path with mode 0600.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is supplied by the user
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
