package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/normalize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Title returns the display title of a report kind, e.g. "Memory Analysis".
func Title(kind model.Kind) string {
	if kind == model.KindCPU {
		return "CPU Analysis"
	}
	return titleCaser.String(kind.String() + " analysis")
}

// columns returns the table header of kind.
func columns(kind model.Kind) []string {
	switch kind {
	case model.KindMemory:
		return []string{"#", "Bytes Lost", "Blocks", "Kind", "Allocation Site"}
	case model.KindCPU:
		return []string{"#", "Total %", "Self %", "Samples", "Symbol", "Module"}
	case model.KindCache:
		return []string{"#", "Level", "Miss Rate", "Misses", "Accesses"}
	case model.KindSyscall:
		return []string{"#", "Syscall", "Calls", "Errors", "Total Time", "Avg Time"}
	case model.KindThread:
		return []string{"#", "Issue", "Lock", "Threads", "Wait Time", "Detail"}
	default:
		return []string{"#", "Finding"}
	}
}

// row returns the table cells of the rank-th finding.
func row(rank int, f model.Finding) []string {
	n := strconv.Itoa(rank)
	switch {
	case f.Leak != nil:
		return []string{
			n,
			humanize.IBytes(uint64(max(f.Leak.BytesLost, 0))),
			humanize.Comma(f.Leak.Blocks),
			string(f.Leak.LeakKind),
			f.Leak.AllocationSite,
		}
	case f.Hotspot != nil:
		return []string{
			n,
			formatPct(f.Hotspot.TotalPct),
			formatPct(f.Hotspot.SelfPct),
			humanize.Comma(f.Hotspot.Samples),
			f.Hotspot.Symbol,
			dash(f.Hotspot.Module),
		}
	case f.Cache != nil:
		return []string{
			n,
			f.Cache.Level,
			formatPct(f.Cache.MissRate * 100),
			humanize.Comma(f.Cache.Misses),
			humanize.Comma(f.Cache.Accesses),
		}
	case f.Syscall != nil:
		return []string{
			n,
			f.Syscall.Name,
			humanize.Comma(f.Syscall.Count),
			humanize.Comma(f.Syscall.Errors),
			FormatMicros(f.Syscall.TotalTimeUS),
			FormatMicros(f.Syscall.AvgTimeUS),
		}
	case f.Thread != nil:
		ids := make([]string, len(f.Thread.ThreadIDs))
		for i, id := range f.Thread.ThreadIDs {
			ids[i] = strconv.Itoa(id)
		}
		detail := f.Thread.Description
		if len(f.Thread.Cycle) > 0 {
			detail = "cycle " + strings.Join(f.Thread.Cycle, " -> ")
		}
		return []string{
			n,
			string(f.Thread.Kind),
			dash(f.Thread.LockID),
			strings.Join(ids, ","),
			FormatMicros(f.Thread.WaitTimeUS),
			dash(truncateString(detail, 60)),
		}
	default:
		return []string{n, f.Label()}
	}
}

// summaryItems returns the aggregate summary of a report as label/value
// pairs in display order.
func summaryItems(r *model.AnalysisReport) [][2]string {
	agg := r.Aggregate
	count := func(name string) string { return humanize.Comma(int64(agg(name))) }

	var items [][2]string
	switch r.Kind {
	case model.KindMemory:
		items = [][2]string{
			{"Leaks", count(normalize.AggLeakCount)},
			{"Total lost", humanize.IBytes(uint64(agg(normalize.AggTotalBytesLost)))},
			{"Definite", humanize.IBytes(uint64(agg(normalize.AggDefiniteBytes)))},
			{"Indirect", humanize.IBytes(uint64(agg(normalize.AggIndirectBytes)))},
			{"Possible", humanize.IBytes(uint64(agg(normalize.AggPossibleBytes)))},
		}
		if _, ok := r.Aggregates[normalize.AggStillReachable]; ok {
			items = append(items, [2]string{"Still reachable", humanize.IBytes(uint64(agg(normalize.AggStillReachable)))})
		}
	case model.KindCPU:
		items = [][2]string{
			{"Hotspots", count(normalize.AggHotspotCount)},
			{"Samples", count(normalize.AggSampleCount)},
			{"Total", formatPct(agg(normalize.AggTotalPct))},
		}
	case model.KindCache:
		items = [][2]string{
			{"Overall miss rate", formatPct(agg(normalize.AggOverallMissRate) * 100)},
			{"Accesses", count(normalize.AggTotalAccesses)},
			{"Misses", count(normalize.AggTotalMisses)},
		}
		if _, ok := r.Aggregates[normalize.AggIPC]; ok {
			items = append(items, [2]string{"IPC", humanize.FtoaWithDigits(agg(normalize.AggIPC), 2)})
		}
		if _, ok := r.Aggregates[normalize.AggBranchMissRate]; ok {
			items = append(items, [2]string{"Branch miss rate", formatPct(agg(normalize.AggBranchMissRate) * 100)})
		}
	case model.KindSyscall:
		items = [][2]string{
			{"Calls", count(normalize.AggTotalCalls)},
			{"Errors", count(normalize.AggTotalErrors)},
			{"Error rate", formatPct(agg(normalize.AggErrorRate) * 100)},
			{"Total time", FormatMicros(agg(normalize.AggTotalTimeUS))},
		}
	case model.KindThread:
		items = [][2]string{
			{"Deadlocks", count(normalize.AggDeadlockCount)},
			{"Contended locks", count(normalize.AggContentionCount)},
			{"Data races", count(normalize.AggDataRaceCount)},
			{"Total wait", FormatMicros(agg(normalize.AggTotalWaitTimeUS))},
		}
	}
	return items
}

// distribution returns the chart slices of a report: one per finding
// with its share in integral units (bytes, samples, misses, microseconds).
func distribution(r *model.AnalysisReport) []slice {
	out := make([]slice, 0, len(r.Findings))
	for _, f := range r.Findings {
		v := f.RankKey()
		switch {
		case f.Hotspot != nil && f.Hotspot.Samples > 0:
			v = float64(f.Hotspot.Samples)
		case f.Hotspot != nil:
			v = f.Hotspot.TotalPct * 100
		case f.Cache != nil:
			v = float64(f.Cache.Misses)
		}
		n := uint64(math.Round(max(v, 0)))
		if n == 0 {
			continue
		}
		out = append(out, slice{label: truncateString(f.Label(), 40), value: n})
	}
	return out
}

type slice struct {
	label string
	value uint64
}

// FormatMicros formats a duration given in microseconds.
func FormatMicros(us float64) string {
	switch {
	case us >= 1e6:
		return humanize.FtoaWithDigits(us/1e6, 3) + "s"
	case us >= 1e3:
		return humanize.FtoaWithDigits(us/1e3, 3) + "ms"
	default:
		return humanize.FtoaWithDigits(us, 3) + "µs"
	}
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
