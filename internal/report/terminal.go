package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/nao1215/perflens/internal/model"
	"github.com/olekukonko/tablewriter"
)

// TerminalWriter outputs ranked human-readable tables.
type TerminalWriter struct {
	baseWriter

	// verbose adds run metadata such as the run id and timestamps.
	verbose bool

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	title *color.Color
}

// TerminalWriterOption configures a TerminalWriter.
type TerminalWriterOption func(*TerminalWriter)

// WithVerbose enables run metadata in the output.
func WithVerbose(verbose bool) TerminalWriterOption {
	return func(w *TerminalWriter) {
		w.verbose = verbose
	}
}

// WithColor forces colored output on or off. By default color is used
// only when the output is a terminal.
func WithColor(enabled bool) TerminalWriterOption {
	return func(w *TerminalWriter) {
		w.setColor(enabled)
	}
}

// NewTerminalWriter creates a TerminalWriter that outputs to the given writer.
func NewTerminalWriter(output io.Writer, opts ...TerminalWriterOption) *TerminalWriter {
	w := &TerminalWriter{
		baseWriter: newBaseWriter(output),
		ok:         color.New(color.FgGreen, color.Bold),
		warn:       color.New(color.FgYellow, color.Bold),
		fail:       color.New(color.FgRed, color.Bold),
		title:      color.New(color.FgCyan, color.Bold),
	}
	w.setColor(IsTerminal(output))

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (w *TerminalWriter) setColor(enabled bool) {
	for _, c := range []*color.Color{w.ok, w.warn, w.fail, w.title} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Write outputs one report.
func (w *TerminalWriter) Write(report *model.AnalysisReport) (int, error) {
	cw := &countingWriter{w: w.output}
	err := w.writeReport(cw, report)
	return cw.n, err
}

// WriteAll outputs every report followed by an overview of the run.
func (w *TerminalWriter) WriteAll(reports []*model.AnalysisReport) (int, error) {
	cw := &countingWriter{w: w.output}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(cw)
		}
		if err := w.writeReport(cw, r); err != nil {
			return cw.n, err
		}
	}
	if len(reports) > 1 {
		fmt.Fprintln(cw)
		if err := w.writeOverview(cw, reports); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func (w *TerminalWriter) writeReport(out io.Writer, r *model.AnalysisReport) error {
	heading := Title(r.Kind) + ": " + strings.Join(r.Target.Command(), " ")
	w.title.Fprintln(out, heading)
	fmt.Fprintln(out, strings.Repeat("=", min(len(heading), 80)))

	fmt.Fprintf(out, "Status:   %s\n", w.status(r))
	fmt.Fprintf(out, "Duration: %s\n", r.Duration().Round(time.Millisecond))
	if w.verbose {
		fmt.Fprintf(out, "Run ID:   %s\n", r.RunID)
		fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Ranked by %s, top %d of %d\n", r.Kind.RankingKey(), len(r.Findings), r.TotalFindings)
	}
	if r.Error != "" {
		w.fail.Fprintf(out, "Error:    %s\n", r.Error)
	}
	fmt.Fprintln(out)

	if r.HasFindings() {
		if err := w.writeTable(out, r); err != nil {
			return err
		}
		if r.TotalFindings > len(r.Findings) {
			fmt.Fprintf(out, "(%d more not shown)\n", r.TotalFindings-len(r.Findings))
		}
	} else if !r.Failed() {
		w.ok.Fprintln(out, "No findings.")
	}

	if items := summaryItems(r); len(items) > 0 {
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it[0] + ": " + it[1]
		}
		fmt.Fprintf(out, "\nSummary: %s\n", strings.Join(parts, " | "))
	}

	if len(r.Warnings) > 0 {
		w.warn.Fprintf(out, "\nWarnings (%d):\n", len(r.Warnings))
		for _, pw := range r.Warnings {
			fmt.Fprintf(out, "  - %s\n", pw.String())
		}
	}
	if len(r.Anomalies) > 0 {
		w.warn.Fprintf(out, "\nAnomalies (%d):\n", len(r.Anomalies))
		for _, a := range r.Anomalies {
			fmt.Fprintf(out, "  - [%s] %s\n", a.Code, a.Message)
		}
	}
	return nil
}

func (w *TerminalWriter) writeTable(out io.Writer, r *model.AnalysisReport) error {
	table := tablewriter.NewWriter(out)
	table.Header(toAny(columns(r.Kind))...)
	for i, f := range r.Findings {
		if err := table.Append(row(i+1, f)); err != nil {
			return err
		}
	}
	return table.Render()
}

func (w *TerminalWriter) writeOverview(out io.Writer, reports []*model.AnalysisReport) error {
	w.title.Fprintln(out, "Overview")
	table := tablewriter.NewWriter(out)
	table.Header("Kind", "Status", "Findings", "Duration")
	for _, r := range reports {
		err := table.Append([]string{
			r.Kind.String(),
			string(r.Status),
			fmt.Sprintf("%d", r.TotalFindings),
			r.Duration().Round(time.Millisecond).String(),
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}

func (w *TerminalWriter) status(r *model.AnalysisReport) string {
	text := string(r.Status)
	if r.Truncated {
		text += " (partial output)"
	}
	switch {
	case !r.Failed() && !r.Truncated:
		return w.ok.Sprint(text)
	case r.Status == model.StatusTimedOut || r.Status == model.StatusCancelled:
		return w.warn.Sprint(text)
	case !r.Failed():
		return w.warn.Sprint(text)
	default:
		return w.fail.Sprint(text)
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
