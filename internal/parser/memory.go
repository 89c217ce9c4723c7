package parser

import (
	"regexp"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	// lossRecord matches a memcheck loss record header, including the
	// "N (D direct, I indirect) bytes" form.
	lossRecord = regexp.MustCompile(
		`^([\d,]+)(?: \(([\d,]+) direct, ([\d,]+) indirect\))? bytes in ([\d,]+) blocks? are ` +
			`(definitely lost|indirectly lost|possibly lost|still reachable)`)

	// leakSummaryRow matches one row of the LEAK SUMMARY block.
	leakSummaryRow = regexp.MustCompile(
		`^(definitely lost|indirectly lost|possibly lost|still reachable|suppressed): ([\d,]+) bytes in ([\d,]+) blocks`)

	// errorSummary matches the final error count.
	errorSummary = regexp.MustCompile(`^ERROR SUMMARY: ([\d,]+) errors? from ([\d,]+) contexts?`)
)

// allocatorFrames are skipped when choosing the allocation site.
var allocatorFrames = []string{
	"malloc", "calloc", "realloc", "free", "memalign", "posix_memalign",
	"aligned_alloc", "valloc", "strdup", "strndup",
	"operator new", "operator new[]", "__builtin_new", "__builtin_vec_new",
}

// MemoryParser parses valgrind memcheck output.
type MemoryParser struct{}

// Kind returns model.KindMemory.
func (MemoryParser) Kind() model.Kind { return model.KindMemory }

// lossBlock is a loss record being assembled.
type lossBlock struct {
	line   int
	leak   model.MemoryLeak
	ignore bool
}

// Parse extracts one MemoryLeak per definitely, indirectly or possibly lost
// loss record. Still reachable records are counted in the summary only.
func (MemoryParser) Parse(capture model.RawCapture) (Result, error) {
	c := newCollector(capture)

	var (
		cur         *lossBlock
		leakSummary bool
		allFreed    bool
	)

	closeBlock := func() {
		if cur == nil {
			return
		}
		b := cur
		cur = nil
		if b.ignore {
			return
		}
		if len(b.leak.Backtrace) == 0 {
			c.reject(b.line, "loss record has no backtrace; skipped")
			return
		}
		b.leak.AllocationSite = allocationSite(b.leak.Backtrace)
		leak := b.leak
		c.add(model.Finding{Leak: &leak})
	}

	for _, ln := range splitLines(capture.Combined()) {
		body, ok := stripValgrind(ln.text)
		if !ok {
			continue
		}
		t := strings.TrimSpace(body)

		if m := lossRecord.FindStringSubmatch(t); m != nil {
			closeBlock()
			cur = newLossBlock(c, ln.no, m)
			continue
		}

		if cur != nil {
			if frame, ok := parseFrame(t); ok {
				cur.leak.Backtrace = append(cur.leak.Backtrace, frame)
				continue
			}
			// A blank prefixed line is the record trailer; anything else
			// also ends the frame list.
			closeBlock()
			if t == "" {
				continue
			}
		}

		switch {
		case t == "HEAP SUMMARY:":
			c.found = true
		case strings.HasPrefix(t, "All heap blocks were freed"):
			c.found = true
			allFreed = true
		case t == "LEAK SUMMARY:":
			c.found = true
			leakSummary = true
		}

		if m := leakSummaryRow.FindStringSubmatch(t); m != nil {
			key := strings.ReplaceAll(m[1], " ", "_")
			bytesLost, err1 := model.ParseCount(m[2])
			blocks, err2 := model.ParseCount(m[3])
			if err1 != nil || err2 != nil {
				c.warn(ln.no, "unreadable leak summary row %q", t)
				continue
			}
			c.res.Summary[key+"_bytes"] = float64(bytesLost)
			c.res.Summary[key+"_blocks"] = float64(blocks)
			continue
		}
		if m := errorSummary.FindStringSubmatch(t); m != nil {
			if n, err := model.ParseCount(m[1]); err == nil {
				c.res.Summary["error_count"] = float64(n)
			}
			if n, err := model.ParseCount(m[2]); err == nil {
				c.res.Summary["error_contexts"] = float64(n)
			}
		}
	}

	if cur != nil {
		// The record never saw its trailer: the capture ended inside it.
		if !cur.ignore {
			c.reject(cur.line, "loss record is not terminated; skipped")
		}
		cur = nil
	}

	if !leakSummary && !allFreed && !capture.Empty() {
		c.warn(0, "expected leak-summary trailer not found")
	}

	return c.finish(capture)
}

// newLossBlock starts a loss record from a header match.
func newLossBlock(c *collector, lineNo int, m []string) *lossBlock {
	b := &lossBlock{line: lineNo}

	var kind model.LeakKind
	switch m[5] {
	case "definitely lost":
		kind = model.LeakDefinite
	case "indirectly lost":
		kind = model.LeakIndirect
	case "possibly lost":
		kind = model.LeakPossible
	default:
		b.ignore = true
		return b
	}

	bytesLost, err := model.ParseCount(m[1])
	if err != nil {
		c.reject(lineNo, "unreadable byte count %q", m[1])
		b.ignore = true
		return b
	}
	blocks, err := model.ParseCount(m[4])
	if err != nil {
		c.reject(lineNo, "unreadable block count %q", m[4])
		b.ignore = true
		return b
	}

	b.leak = model.MemoryLeak{
		BytesLost: bytesLost,
		Blocks:    blocks,
		LeakKind:  kind,
		Backtrace: []string{},
	}
	return b
}

// allocationSite returns the first frame that is not an allocator, or the
// last frame when every frame is one.
func allocationSite(frames []string) string {
	for _, f := range frames {
		if !isAllocator(f) {
			return f
		}
	}
	return frames[len(frames)-1]
}

func isAllocator(frame string) bool {
	fn := frame
	if i := strings.Index(fn, " ("); i >= 0 {
		fn = fn[:i]
	}
	if strings.Contains(frame, "vg_replace_malloc") {
		return true
	}
	for _, a := range allocatorFrames {
		if fn == a || strings.HasPrefix(fn, a+"(") {
			return true
		}
	}
	return false
}
