package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

// ErrNoRecords is returned when a non-empty capture produced no findings.
var ErrNoRecords = errors.New("no records could be extracted from tool output")

// errRowShape is returned for a row with an unexpected number of columns.
var errRowShape = errors.New("unexpected number of columns")

// Result is the output of a parser.
type Result struct {
	// Findings are in capture order; Seq is already assigned.
	Findings []model.Finding

	// Warnings describe skipped or doubtful input.
	Warnings []model.ParseWarning

	// Stacks holds collapsed stack samples (CPU only).
	Stacks []model.StackSample

	// Summary holds totals reported by the tool itself, such as the
	// valgrind leak summary or perf stat's elapsed time.
	Summary map[string]float64
}

// Parser parses the capture of one analysis kind.
type Parser interface {
	Kind() model.Kind
	Parse(capture model.RawCapture) (Result, error)
}

// For returns the parser of kind.
func For(kind model.Kind) (Parser, error) {
	switch kind {
	case model.KindMemory:
		return MemoryParser{}, nil
	case model.KindCPU:
		return CPUParser{}, nil
	case model.KindCache:
		return CacheParser{}, nil
	case model.KindSyscall:
		return SyscallParser{}, nil
	case model.KindThread:
		return ThreadParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
}

// collector accumulates a Result.
type collector struct {
	res        Result
	provenance model.Provenance
	rejected   int
	// found is set once the section the kind requires has been seen.
	found bool
}

func newCollector(capture model.RawCapture) *collector {
	p := model.ProvenanceComplete
	if capture.Truncated {
		p = model.ProvenanceTruncated
	}
	return &collector{
		res: Result{
			Findings: []model.Finding{},
			Warnings: []model.ParseWarning{},
			Stacks:   []model.StackSample{},
			Summary:  map[string]float64{},
		},
		provenance: p,
	}
}

// add appends a finding, assigning its sequence number and provenance,
// and returns its index.
func (c *collector) add(f model.Finding) int {
	f.Seq = len(c.res.Findings)
	f.Provenance = c.provenance
	c.res.Findings = append(c.res.Findings, f)
	c.found = true
	return len(c.res.Findings) - 1
}

// warn records a non-fatal problem.
func (c *collector) warn(line int, format string, args ...any) {
	c.res.Warnings = append(c.res.Warnings, model.ParseWarning{
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// reject records a candidate record that could not be used.
func (c *collector) reject(line int, format string, args ...any) {
	c.rejected++
	c.warn(line, format, args...)
}

// finish applies the no-records rule.
func (c *collector) finish(capture model.RawCapture) (Result, error) {
	if len(c.res.Findings) > 0 || capture.Empty() {
		return c.res, nil
	}
	if c.rejected > 0 || !c.found {
		return c.res, ErrNoRecords
	}
	return c.res, nil
}

// line is one input line with its 1-based number.
type line struct {
	no   int
	text string
}

// splitLines splits data into lines, dropping carriage returns.
func splitLines(data []byte) []line {
	var out []line
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		out = append(out, line{no: n, text: strings.TrimRight(sc.Text(), "\r")})
	}
	return out
}
