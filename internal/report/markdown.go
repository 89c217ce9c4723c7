package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/normalize"
)

// maxChartSlices bounds the pie chart; the rest is folded into "other".
const maxChartSlices = 8

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one report.
func (w *MarkdownWriter) Write(report *model.AnalysisReport) (int, error) {
	return w.WriteAll([]*model.AnalysisReport{report})
}

// WriteAll outputs the reports of a run as one document.
func (w *MarkdownWriter) WriteAll(reports []*model.AnalysisReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("perflens Report")
	md.PlainText("")
	if len(reports) > 1 {
		w.writeOverview(md, reports)
	}
	for _, r := range reports {
		w.writeReport(md, r)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, reports []*model.AnalysisReport) {
	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			r.Kind.String(),
			statusText(r),
			strconv.Itoa(r.TotalFindings),
			r.Duration().Round(time.Millisecond).String(),
		}
	}
	md.H2("Overview")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Status", "Findings", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, r *model.AnalysisReport) {
	md.H2(Title(r.Kind))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + strings.Join(r.Target.Command(), " ") + "`"},
			{"Run ID", dash(r.RunID)},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", r.Duration().Round(time.Millisecond).String()},
			{"Status", statusText(r)},
			{"Ranked by", "`" + r.Kind.RankingKey() + "`"},
		},
	})
	md.PlainText("")

	w.writeAlert(md, r)

	md.H3("Findings")
	md.PlainText("")
	if !r.HasFindings() {
		md.PlainText("No findings.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(r.Findings))
		for i, f := range r.Findings {
			rows[i] = escapeCells(row(i+1, f))
		}
		md.Table(markdown.TableSet{Header: columns(r.Kind), Rows: rows})
		md.PlainText("")
		if r.TotalFindings > len(r.Findings) {
			md.PlainTextf("*Top %d of %d findings shown.*", len(r.Findings), r.TotalFindings)
			md.PlainText("")
		}
		w.writePieChart(md, r)
	}

	if items := summaryItems(r); len(items) > 0 {
		rows := make([][]string, len(items))
		for i, it := range items {
			rows[i] = []string{it[0], it[1]}
		}
		md.H3("Summary")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Metric", "Value"}, Rows: rows})
		md.PlainText("")
	}

	if len(r.Warnings) > 0 || len(r.Anomalies) > 0 {
		md.H3("Diagnostics")
		md.PlainText("")
		items := make([]string, 0, len(r.Warnings)+len(r.Anomalies))
		for _, pw := range r.Warnings {
			items = append(items, "warning: "+pw.String())
		}
		for _, a := range r.Anomalies {
			items = append(items, "anomaly `"+a.Code+"`: "+a.Message)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
}

// writeAlert writes a GitHub alert summarizing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.AnalysisReport) {
	switch {
	case r.Status == model.StatusToolNotFound:
		md.Cautionf("Analysis tool not found: %s", r.Error)
	case r.Failed() && r.HasFindings():
		md.Warningf("Analysis ended with status %s; results are partial.", r.Status)
	case r.Failed():
		md.Cautionf("Analysis failed with status %s: %s", r.Status, dash(r.Error))
	case r.Truncated:
		md.Warning("Tool output was truncated; results are partial.")
	case r.Kind == model.KindThread && r.Aggregate(normalize.AggDeadlockCount) > 0:
		md.Importantf("%d potential deadlock(s) detected.", int(r.Aggregate(normalize.AggDeadlockCount)))
	case r.HasFindings():
		md.Note("Findings are ranked by " + r.Kind.RankingKey() + ".")
	default:
		md.Tip("No findings.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the finding distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, r *model.AnalysisReport) {
	slices := distribution(r)
	if len(slices) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(Title(r.Kind)+" by "+r.Kind.RankingKey()),
		piechart.WithShowData(true),
	)

	var other uint64
	for i, s := range slices {
		if i >= maxChartSlices {
			other += s.value
			continue
		}
		chart.LabelAndIntValue(strings.ReplaceAll(s.label, `"`, "'"), s.value)
	}
	if other > 0 {
		chart.LabelAndIntValue("other", other)
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [perflens](https://github.com/nao1215/perflens)*")
}

func statusText(r *model.AnalysisReport) string {
	switch {
	case r.Status == model.StatusSuccess && !r.Truncated:
		return "✅ " + string(r.Status)
	case r.Status == model.StatusSuccess, r.Status == model.StatusTimedOut, r.Status == model.StatusCancelled:
		return "⚠️ " + string(r.Status)
	default:
		return "❌ " + string(r.Status)
	}
}

// escapeCells escapes table separators inside cell text.
func escapeCells(cells []string) []string {
	for i, c := range cells {
		cells[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return cells
}
