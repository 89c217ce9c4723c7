package parser

import (
	"regexp"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	// reportRow matches a perf report --stdio row: overhead, optional
	// self overhead (children mode), optional sample count, shared object,
	// symbol type and symbol.
	reportRow = regexp.MustCompile(`^\s*(\d+\.\d+)%\s+(?:(\d+\.\d+)%\s+)?(?:(\d+)\s+)?(\S+)\s+\[([.kgu])\]\s+(.+?)\s*$`)

	// pctLead detects a row that starts like a report row.
	pctLead = regexp.MustCompile(`^\s*\d+(?:\.\d+)?%`)

	eventCount = regexp.MustCompile(`^# Event count \(approx\.\):\s*([\d,]+)`)
	sampleHdr  = regexp.MustCompile(`^# (?:Total )?Samples:`)
)

// CPUParser parses perf report output and perf script samples.
type CPUParser struct{}

// Kind returns model.KindCPU.
func (CPUParser) Kind() model.Kind { return model.KindCPU }

// Parse extracts one CPUHotspot per unique symbol and module. Repeated
// rows for the same symbol, as produced by recursion, are merged by
// summing their percentages. Collapsed stacks from the perf script
// artifact give each hotspot its heaviest call stack; without a report
// the hotspots are derived from the stacks alone.
func (CPUParser) Parse(capture model.RawCapture) (Result, error) {
	c := newCollector(capture)

	collapsed := CollapseStacks(capture.Artifact(model.ArtifactPerfScript))
	c.res.Stacks = collapsed.Stacks
	c.res.Warnings = append(c.res.Warnings, collapsed.Warnings...)
	if len(collapsed.Stacks) > 0 {
		c.found = true
	}

	report := capture.Artifact(model.ArtifactPerfReport)
	if report == nil {
		report = capture.Combined()
	}

	index := map[string]int{}
	var rowSamples int64
	for _, ln := range splitLines(report) {
		t := ln.text
		if strings.HasPrefix(t, "#") {
			if m := eventCount.FindStringSubmatch(t); m != nil {
				if n, err := model.ParseCount(m[1]); err == nil {
					c.res.Summary["event_count"] = float64(n)
				}
				c.found = true
			} else if sampleHdr.MatchString(t) {
				c.found = true
			}
			continue
		}
		if !pctLead.MatchString(t) {
			continue
		}
		m := reportRow.FindStringSubmatch(t)
		if m == nil {
			c.reject(ln.no, "unreadable report row %q", strings.TrimSpace(t))
			continue
		}
		first, err := model.ParseFloat(m[1])
		if err != nil {
			c.reject(ln.no, "unreadable overhead %q", m[1])
			continue
		}
		self, total := first, first
		if m[2] != "" {
			s, err := model.ParseFloat(m[2])
			if err != nil {
				c.reject(ln.no, "unreadable self overhead %q", m[2])
				continue
			}
			self = s
		}
		var samples int64
		if m[3] != "" {
			if samples, err = model.ParseCount(m[3]); err != nil {
				c.reject(ln.no, "unreadable sample count %q", m[3])
				continue
			}
		}
		rowSamples += samples

		module, symbol := m[4], strings.TrimSpace(m[6])
		key := symbol + "\x00" + module
		if i, ok := index[key]; ok {
			h := c.res.Findings[i].Hotspot
			h.SelfPct += self
			h.TotalPct += total
			h.Samples += samples
			continue
		}
		index[key] = c.add(model.Finding{Hotspot: &model.CPUHotspot{
			Symbol:    symbol,
			Module:    module,
			SelfPct:   self,
			TotalPct:  total,
			Samples:   samples,
			CallStack: []string{},
		}})
	}

	if len(c.res.Findings) == 0 && len(collapsed.Stacks) > 0 {
		hotspotsFromStacks(c, collapsed)
	}
	for i := range c.res.Findings {
		h := c.res.Findings[i].Hotspot
		h.CallStack = heaviestStack(collapsed.Stacks, h.Symbol)
	}

	switch {
	case collapsed.Samples > 0:
		c.res.Summary["samples"] = float64(collapsed.Samples)
	case rowSamples > 0:
		c.res.Summary["samples"] = float64(rowSamples)
	}

	return c.finish(capture)
}

// hotspotsFromStacks derives flat hotspots from the leaf frames of the
// collapsed stacks.
func hotspotsFromStacks(c *collector, collapsed Collapsed) {
	var total int64
	for _, s := range collapsed.Stacks {
		total += s.Count
	}
	if total == 0 {
		return
	}

	var order []string
	self := map[string]int64{}
	for _, s := range collapsed.Stacks {
		if len(s.Frames) < 2 {
			continue
		}
		leaf := s.Leaf()
		if _, ok := self[leaf]; !ok {
			order = append(order, leaf)
		}
		self[leaf] += s.Count
	}

	for _, sym := range order {
		pct := 100 * float64(self[sym]) / float64(total)
		c.add(model.Finding{Hotspot: &model.CPUHotspot{
			Symbol:    sym,
			Module:    collapsed.Modules[sym],
			SelfPct:   pct,
			TotalPct:  pct,
			Samples:   self[sym],
			CallStack: []string{},
		}})
	}
	c.warn(0, "perf report output missing; hotspots derived from %d samples", total)
}

// heaviestStack returns the frames below the command name of the most
// sampled stack whose leaf is symbol.
func heaviestStack(stacks []model.StackSample, symbol string) []string {
	var best *model.StackSample
	for i := range stacks {
		s := &stacks[i]
		if len(s.Frames) < 2 || s.Leaf() != symbol {
			continue
		}
		if best == nil || s.Count > best.Count {
			best = s
		}
	}
	if best == nil {
		return []string{}
	}
	return append([]string{}, best.Frames[1:]...)
}
