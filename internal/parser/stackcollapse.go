package parser

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	// scriptHeader matches the first line of a perf script sample:
	//
	//	app 12345 [001] 12345.678901:     250000 cpu-clock:
	scriptHeader = regexp.MustCompile(`^(\S.*?)\s+(\d+)(?:/(\d+))?\s+`)

	// scriptFrame matches one frame line of a perf script sample.
	scriptFrame = regexp.MustCompile(`^\s+[0-9a-fA-F]+\s+(.+?)(?:\s+\((.*)\))?\s*$`)

	symbolOffset = regexp.MustCompile(`\+0x[0-9a-fA-F]+$`)
)

// Collapsed is the result of collapsing perf script samples.
type Collapsed struct {
	// Stacks are sorted by their folded form. The first frame is the
	// command name.
	Stacks []model.StackSample

	// Modules maps a symbol to the shared object it was last seen in.
	Modules map[string]string

	// Samples counts every sample, including ones without frames.
	Samples int64

	Warnings []model.ParseWarning
}

// CollapseStacks converts perf script output into folded stacks, the
// "frame;frame;...;frame count" representation consumed by flame graph
// renderers.
func CollapseStacks(data []byte) Collapsed {
	out := Collapsed{
		Stacks:   []model.StackSample{},
		Modules:  map[string]string{},
		Warnings: []model.ParseWarning{},
	}
	counts := map[string]int64{}
	frames := map[string][]string{}

	var (
		comm   string
		stack  []string
		inside bool
	)
	flush := func() {
		if !inside {
			return
		}
		inside = false
		out.Samples++
		if len(stack) == 0 {
			return
		}
		path := make([]string, 0, len(stack)+1)
		path = append(path, comm)
		for i := len(stack) - 1; i >= 0; i-- {
			path = append(path, stack[i])
		}
		key := strings.Join(path, ";")
		if _, ok := frames[key]; !ok {
			frames[key] = path
		}
		counts[key]++
		stack = nil
	}

	for _, ln := range splitLines(data) {
		if strings.TrimSpace(ln.text) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(ln.text, "#") {
			continue
		}
		if ln.text[0] != ' ' && ln.text[0] != '\t' {
			flush()
			m := scriptHeader.FindStringSubmatch(ln.text)
			if m == nil {
				out.Warnings = append(out.Warnings, model.ParseWarning{
					Line:    ln.no,
					Message: "unrecognized perf script sample header",
				})
				continue
			}
			comm = strings.ReplaceAll(strings.TrimSpace(m[1]), ";", ":")
			inside = true
			continue
		}
		if !inside {
			continue
		}
		m := scriptFrame.FindStringSubmatch(ln.text)
		if m == nil {
			out.Warnings = append(out.Warnings, model.ParseWarning{
				Line:    ln.no,
				Message: "unrecognized perf script frame",
			})
			continue
		}
		sym := cleanSymbol(m[1])
		stack = append(stack, sym)
		if m[2] != "" {
			out.Modules[sym] = filepath.Base(m[2])
		}
	}
	flush()

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out.Stacks = append(out.Stacks, model.StackSample{Frames: frames[k], Count: counts[k]})
	}
	return out
}

// cleanSymbol strips the offset from a frame symbol and keeps it safe
// for the folded format.
func cleanSymbol(s string) string {
	s = symbolOffset.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, ";", ":")
	if s == "" {
		return "[unknown]"
	}
	return s
}

// FoldedLines renders stacks in the folded text format, one per line.
func FoldedLines(stacks []model.StackSample) string {
	var b strings.Builder
	for _, s := range stacks {
		b.WriteString(s.Folded())
		b.WriteByte('\n')
	}
	return b.String()
}
