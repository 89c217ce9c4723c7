package parser

import (
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	// straceHeader is the column header of strace -c.
	straceHeader = regexp.MustCompile(`^%\s*time\s+seconds\s+usecs/call\s+calls\s+(?:errors\s+)?syscall`)

	// compactRow starts a "name count total_us avg_us [errors]" row.
	compactRow = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s+[\d.,]`)

	// dashRule separates the strace table sections.
	dashRule = regexp.MustCompile(`^[-\s]+$`)
)

// SyscallParser parses strace -c summaries and compact
// "name count total_us avg_us" rows.
//
// strace shares its terminal with the target, so only stderr is read: the
// summary is always written there and stdout belongs to the target alone.
// When the strace table header is present, compact rows are not matched
// at all, since any other line on stderr is the target's own output.
type SyscallParser struct{}

// Kind returns model.KindSyscall.
func (SyscallParser) Kind() model.Kind { return model.KindSyscall }

// Parse extracts one SyscallStat per row. Times are converted to
// microseconds and the average is derived from total time and count.
func (SyscallParser) Parse(capture model.RawCapture) (Result, error) {
	c := newCollector(capture)

	lines := splitLines(capture.Stderr)
	table := slices.ContainsFunc(lines, func(ln line) bool {
		return straceHeader.MatchString(strings.TrimSpace(ln.text))
	})

	var (
		inTable    bool
		calls      int64
		errorCount int64
	)

	for _, ln := range lines {
		t := strings.TrimSpace(ln.text)
		if t == "" || dashRule.MatchString(t) {
			continue
		}
		if strings.HasPrefix(t, "strace:") || strings.HasPrefix(t, "+++") || strings.HasPrefix(t, "---") {
			continue
		}
		if straceHeader.MatchString(t) {
			inTable = true
			c.found = true
			continue
		}

		fields := strings.Fields(t)

		if table {
			if !inTable {
				continue
			}
			if _, err := model.ParseFloat(fields[0]); err != nil {
				continue
			}
			stat, total, err := parseStraceRow(fields)
			if err != nil {
				c.reject(ln.no, "unreadable strace row %q: %v", t, err)
				continue
			}
			if total {
				c.res.Summary["total_time_us"] = stat.TotalTimeUS
				// Anything after the total row is the target's output.
				inTable = false
				continue
			}
			calls += stat.Count
			errorCount += stat.Errors
			c.add(model.Finding{Syscall: &stat})
			continue
		}

		if compactRow.MatchString(t) {
			stat, err := parseCompactRow(fields)
			if err != nil {
				c.reject(ln.no, "unreadable syscall row %q: %v", t, err)
				continue
			}
			calls += stat.Count
			errorCount += stat.Errors
			c.add(model.Finding{Syscall: &stat})
		}
	}

	if len(c.res.Findings) > 0 {
		c.res.Summary["total_calls"] = float64(calls)
		c.res.Summary["total_errors"] = float64(errorCount)
	}
	return c.finish(capture)
}

// parseStraceRow parses "% time, seconds, usecs/call, calls, [errors,]
// syscall". total is true for the trailing total row, whose seconds
// column is returned as TotalTimeUS.
func parseStraceRow(fields []string) (model.SyscallStat, bool, error) {
	name := fields[len(fields)-1]
	if name == "total" {
		if len(fields) < 3 {
			return model.SyscallStat{}, true, errRowShape
		}
		sec, err := model.ParseFloat(fields[1])
		if err != nil {
			return model.SyscallStat{}, true, err
		}
		return model.SyscallStat{Name: name, TotalTimeUS: model.SecondsToMicros(sec)}, true, nil
	}
	if len(fields) != 5 && len(fields) != 6 {
		return model.SyscallStat{}, false, errRowShape
	}

	sec, err := model.ParseFloat(fields[1])
	if err != nil {
		return model.SyscallStat{}, false, err
	}
	count, err := model.ParseCount(fields[3])
	if err != nil {
		return model.SyscallStat{}, false, err
	}
	var errs int64
	if len(fields) == 6 {
		if errs, err = model.ParseCount(fields[4]); err != nil {
			return model.SyscallStat{}, false, err
		}
	}

	stat := model.SyscallStat{
		Name:        name,
		Count:       count,
		Errors:      errs,
		TotalTimeUS: model.SecondsToMicros(sec),
	}
	if count > 0 {
		stat.AvgTimeUS = stat.TotalTimeUS / float64(count)
	}
	return stat, false, nil
}

// parseCompactRow parses "name count total_us avg_us [errors]".
func parseCompactRow(fields []string) (model.SyscallStat, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return model.SyscallStat{}, errRowShape
	}
	count, err := model.ParseCount(fields[1])
	if err != nil {
		return model.SyscallStat{}, err
	}
	total, err := model.ParseMicros(fields[2])
	if err != nil {
		return model.SyscallStat{}, err
	}
	avg, err := model.ParseMicros(fields[3])
	if err != nil {
		return model.SyscallStat{}, err
	}
	var errs int64
	if len(fields) == 5 {
		if errs, err = model.ParseCount(fields[4]); err != nil {
			return model.SyscallStat{}, err
		}
	}
	return model.SyscallStat{
		Name:        fields[0],
		Count:       count,
		Errors:      errs,
		TotalTimeUS: total,
		AvgTimeUS:   avg,
	}, nil
}
