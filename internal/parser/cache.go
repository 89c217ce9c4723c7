package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	perfStatHeader = regexp.MustCompile(`^Performance counter stats for`)
	perfStatRow    = regexp.MustCompile(`^([\d][\d,.]*)\s+(?:(msec)\s+)?(\S+)`)
	perfStatNA     = regexp.MustCompile(`^<not (supported|counted)>\s+(?:(msec)\s+)?(\S+)`)
	perfElapsed    = regexp.MustCompile(`^([\d.,]+) seconds time elapsed`)
)

// cacheLevel pairs the access and miss counters of one cache.
type cacheLevel struct {
	name     string
	accesses string
	misses   string
}

// cacheLevels are reported in this order.
var cacheLevels = []cacheLevel{
	{name: "L1d", accesses: "L1-dcache-loads", misses: "L1-dcache-load-misses"},
	{name: "L1i", accesses: "L1-icache-loads", misses: "L1-icache-load-misses"},
	{name: "LLC", accesses: "LLC-loads", misses: "LLC-load-misses"},
	{name: "LLC-store", accesses: "LLC-stores", misses: "LLC-store-misses"},
	{name: "dTLB", accesses: "dTLB-loads", misses: "dTLB-load-misses"},
	{name: "overall", accesses: "cache-references", misses: "cache-misses"},
}

// eventAliases maps alternative perf event names to the requested ones.
var eventAliases = map[string]string{
	"branches":         "branch-instructions",
	"cpu-cycles":       "cycles",
	"LLC-load-miss":    "LLC-load-misses",
	"L1-dcache-misses": "L1-dcache-load-misses",
}

// CacheParser parses perf stat counter output.
type CacheParser struct{}

// Kind returns model.KindCache.
func (CacheParser) Kind() model.Kind { return model.KindCache }

// Parse derives one CacheMetric per cache level whose access and miss
// counters were both reported. Unsupported counters produce a warning.
func (CacheParser) Parse(capture model.RawCapture) (Result, error) {
	c := newCollector(capture)

	counts := map[string]int64{}
	firstLine := map[string]int{}

	for _, ln := range splitLines(capture.Stderr) {
		t := strings.TrimSpace(ln.text)
		if t == "" {
			continue
		}
		if perfStatHeader.MatchString(t) {
			c.found = true
			continue
		}
		if m := perfElapsed.FindStringSubmatch(t); m != nil {
			if sec, err := model.ParseFloat(m[1]); err == nil {
				c.res.Summary["elapsed_us"] = model.SecondsToMicros(sec)
			}
			continue
		}
		if m := perfStatNA.FindStringSubmatch(t); m != nil {
			c.reject(ln.no, "counter %s not %s", eventName(m[3]), m[1])
			continue
		}
		m := perfStatRow.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		name := eventName(m[3])
		if m[2] != "" || name == "seconds" {
			// Time based rows such as task-clock carry no cache data.
			continue
		}
		n, err := model.ParseCount(m[1])
		if err != nil {
			v, ferr := model.ParseFloat(m[1])
			if ferr != nil {
				c.reject(ln.no, "unreadable counter value %q", m[1])
				continue
			}
			n = int64(math.Round(v))
		}
		counts[name] += n
		if _, ok := firstLine[name]; !ok {
			firstLine[name] = ln.no
		}
	}

	for _, lvl := range cacheLevels {
		acc, okA := counts[lvl.accesses]
		miss, okM := counts[lvl.misses]
		if !okA || !okM {
			continue
		}
		metric := model.CacheMetric{
			Level:    lvl.name,
			Accesses: acc,
			Misses:   miss,
		}
		if acc > 0 {
			metric.MissRate = float64(miss) / float64(acc)
		} else if miss > 0 {
			c.warn(firstLine[lvl.misses], "%s reports %d misses without accesses", lvl.name, miss)
		}
		c.add(model.Finding{Cache: &metric})
	}

	if v, ok := counts["cycles"]; ok {
		c.res.Summary["cycles"] = float64(v)
	}
	if v, ok := counts["instructions"]; ok {
		c.res.Summary["instructions"] = float64(v)
		if cyc := counts["cycles"]; cyc > 0 {
			c.res.Summary["ipc"] = float64(v) / float64(cyc)
		}
	}
	if v, ok := counts["branch-instructions"]; ok {
		c.res.Summary["branch_instructions"] = float64(v)
		if bm, ok := counts["branch-misses"]; ok {
			c.res.Summary["branch_misses"] = float64(bm)
			if v > 0 {
				c.res.Summary["branch_miss_rate"] = float64(bm) / float64(v)
			}
		}
	}

	return c.finish(capture)
}

// eventName normalizes a perf event column: PMU prefixes such as
// "cpu_core/cycles/" and modifiers such as ":u" are removed.
func eventName(s string) string {
	if parts := strings.Split(s, "/"); len(parts) >= 2 {
		s = parts[1]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if alias, ok := eventAliases[s]; ok {
		return alias
	}
	return s
}
