package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/normalize"
	"github.com/olekukonko/tablewriter"
)

// Comparison directions.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// Comparison is the difference between two exported runs.
type Comparison struct {
	Kinds []KindComparison `json:"kinds"`
}

// KindComparison compares the reports of one analysis kind.
type KindComparison struct {
	Kind model.Kind `json:"kind"`

	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// NewFindings appear only in the current run, in its rank order.
	NewFindings []model.Finding `json:"new_findings"`

	// ResolvedFindings appear only in the previous run, in its rank order.
	ResolvedFindings []model.Finding `json:"resolved_findings"`

	// Changed are findings present in both runs.
	Changed []FindingDelta `json:"changed"`

	// Aggregates holds every aggregate of either run, sorted by name.
	Aggregates []AggregateDelta `json:"aggregates"`

	// Headline is the aggregate Direction is judged by.
	Headline  string `json:"headline"`
	Direction string `json:"direction"`
}

// RunSummary identifies one side of a comparison.
type RunSummary struct {
	RunID         string          `json:"run_id"`
	Status        model.RunStatus `json:"status"`
	TotalFindings int             `json:"total_findings"`
	Present       bool            `json:"present"`
}

// FindingDelta is the change of a finding's ranking value.
type FindingDelta struct {
	Fingerprint string  `json:"fingerprint"`
	Label       string  `json:"label"`
	Previous    float64 `json:"previous"`
	Current     float64 `json:"current"`
	Delta       float64 `json:"delta"`
}

// AggregateDelta is the change of one aggregate.
type AggregateDelta struct {
	Name     string  `json:"name"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

// headline returns the aggregate that decides whether a kind improved.
// Lower is better for every headline.
func headline(kind model.Kind) string {
	switch kind {
	case model.KindMemory:
		return normalize.AggTotalBytesLost
	case model.KindCPU:
		return normalize.AggHotspotCount
	case model.KindCache:
		return normalize.AggOverallMissRate
	case model.KindSyscall:
		return normalize.AggTotalTimeUS
	case model.KindThread:
		return normalize.AggTotalWaitTimeUS
	default:
		return ""
	}
}

// Compare matches findings of previous and current by fingerprint, per
// analysis kind.
func Compare(previous, current []*model.AnalysisReport) *Comparison {
	c := &Comparison{Kinds: []KindComparison{}}
	for _, kind := range model.AllKinds() {
		prev := findKind(previous, kind)
		cur := findKind(current, kind)
		if prev == nil && cur == nil {
			continue
		}
		c.Kinds = append(c.Kinds, compareKind(kind, prev, cur))
	}
	return c
}

func compareKind(kind model.Kind, prev, cur *model.AnalysisReport) KindComparison {
	kc := KindComparison{
		Kind:             kind,
		Previous:         summarize(prev),
		Current:          summarize(cur),
		NewFindings:      []model.Finding{},
		ResolvedFindings: []model.Finding{},
		Changed:          []FindingDelta{},
		Aggregates:       []AggregateDelta{},
		Headline:         headline(kind),
	}

	prevFindings := findingsOf(prev)
	curFindings := findingsOf(cur)

	prevByKey := make(map[string]model.Finding, len(prevFindings))
	for _, f := range prevFindings {
		if _, dup := prevByKey[f.Fingerprint()]; !dup {
			prevByKey[f.Fingerprint()] = f
		}
	}
	seen := make(map[string]bool, len(curFindings))
	for _, f := range curFindings {
		key := f.Fingerprint()
		if seen[key] {
			continue
		}
		seen[key] = true
		p, ok := prevByKey[key]
		if !ok {
			kc.NewFindings = append(kc.NewFindings, f)
			continue
		}
		kc.Changed = append(kc.Changed, FindingDelta{
			Fingerprint: key,
			Label:       f.Label(),
			Previous:    p.RankKey(),
			Current:     f.RankKey(),
			Delta:       f.RankKey() - p.RankKey(),
		})
	}
	for _, f := range prevFindings {
		if !seen[f.Fingerprint()] {
			seen[f.Fingerprint()] = true
			kc.ResolvedFindings = append(kc.ResolvedFindings, f)
		}
	}

	names := make(map[string]struct{})
	for _, r := range []*model.AnalysisReport{prev, cur} {
		if r != nil {
			for name := range r.Aggregates {
				names[name] = struct{}{}
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		p, c := aggregateOf(prev, name), aggregateOf(cur, name)
		kc.Aggregates = append(kc.Aggregates, AggregateDelta{Name: name, Previous: p, Current: c, Delta: c - p})
	}

	h := aggregateOf(cur, kc.Headline) - aggregateOf(prev, kc.Headline)
	switch {
	case h < 0:
		kc.Direction = DirectionImproved
	case h > 0:
		kc.Direction = DirectionWorsened
	case len(kc.NewFindings) > len(kc.ResolvedFindings):
		kc.Direction = DirectionWorsened
	case len(kc.NewFindings) < len(kc.ResolvedFindings):
		kc.Direction = DirectionImproved
	default:
		kc.Direction = DirectionUnchanged
	}
	return kc
}

func summarize(r *model.AnalysisReport) RunSummary {
	if r == nil {
		return RunSummary{}
	}
	return RunSummary{RunID: r.RunID, Status: r.Status, TotalFindings: r.TotalFindings, Present: true}
}

func findingsOf(r *model.AnalysisReport) []model.Finding {
	if r == nil {
		return nil
	}
	return r.Findings
}

func aggregateOf(r *model.AnalysisReport, name string) float64 {
	if r == nil {
		return 0
	}
	return r.Aggregate(name)
}

// WriteComparisonJSON writes c as indented JSON.
func WriteComparisonJSON(w io.Writer, c *Comparison) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// WriteComparisonText writes c as terminal tables.
func WriteComparisonText(w io.Writer, c *Comparison) error {
	if len(c.Kinds) == 0 {
		_, err := fmt.Fprintln(w, "No reports to compare.")
		return err
	}
	for i, kc := range c.Kinds {
		if i > 0 {
			fmt.Fprintln(w)
		}
		heading := "Comparison: " + Title(kc.Kind)
		fmt.Fprintln(w, heading)
		fmt.Fprintln(w, strings.Repeat("=", len(heading)))
		fmt.Fprintf(w, "Direction: %s (by %s)\n", kc.Direction, kc.Headline)
		fmt.Fprintf(w, "Findings:  %d new, %d resolved, %d in both\n\n",
			len(kc.NewFindings), len(kc.ResolvedFindings), len(kc.Changed))

		if len(kc.Aggregates) > 0 {
			table := tablewriter.NewWriter(w)
			table.Header("Aggregate", "Previous", "Current", "Change")
			for _, a := range kc.Aggregates {
				if err := table.Append([]string{a.Name, formatNumber(a.Previous), formatNumber(a.Current), formatDelta(a.Delta)}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
		}

		for _, section := range []struct {
			title    string
			findings []model.Finding
		}{
			{"New", kc.NewFindings},
			{"Resolved", kc.ResolvedFindings},
		} {
			if len(section.findings) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s findings (%d):\n", section.title, len(section.findings))
			for _, f := range section.findings {
				fmt.Fprintf(w, "  - %s [%s=%s]\n", f.Label(), kc.Kind.RankingKey(), formatNumber(f.RankKey()))
			}
		}
	}
	return nil
}

// WriteComparisonMarkdown writes c as a Markdown document.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)
	md.H1("perflens Comparison")
	md.PlainText("")

	for _, kc := range c.Kinds {
		md.H2(Title(kc.Kind))
		md.PlainText("")
		switch kc.Direction {
		case DirectionWorsened:
			md.Warningf("Worsened: %s changed by %s.", kc.Headline, formatDelta(headlineDelta(kc)))
		case DirectionImproved:
			md.Tip(fmt.Sprintf("Improved: %s changed by %s.", kc.Headline, formatDelta(headlineDelta(kc))))
		default:
			md.Note("Unchanged.")
		}
		md.PlainText("")

		rows := make([][]string, len(kc.Aggregates))
		for i, a := range kc.Aggregates {
			rows[i] = []string{a.Name, formatNumber(a.Previous), formatNumber(a.Current), formatDelta(a.Delta)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Aggregate", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")

		if len(kc.NewFindings) > 0 {
			md.H3(fmt.Sprintf("New Findings (%d)", len(kc.NewFindings)))
			md.PlainText("")
			md.BulletList(labels(kc.NewFindings)...)
			md.PlainText("")
		}
		if len(kc.ResolvedFindings) > 0 {
			md.H3(fmt.Sprintf("Resolved Findings (%d)", len(kc.ResolvedFindings)))
			md.PlainText("")
			items := labels(kc.ResolvedFindings)
			for i := range items {
				items[i] = "~~" + items[i] + "~~"
			}
			md.BulletList(items...)
			md.PlainText("")
		}
	}
	return md.Build()
}

func headlineDelta(kc KindComparison) float64 {
	for _, a := range kc.Aggregates {
		if a.Name == kc.Headline {
			return a.Delta
		}
	}
	return 0
}

func labels(findings []model.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = "`" + f.Label() + "`"
	}
	return out
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

func formatDelta(v float64) string {
	switch {
	case v > 0:
		return "+" + formatNumber(v)
	case v < 0:
		return formatNumber(v)
	default:
		return "0"
	}
}
