package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Provenance tells whether a finding came from a complete capture.
type Provenance string

const (
	// ProvenanceComplete marks findings from a capture that ran to completion.
	ProvenanceComplete Provenance = "complete"
	// ProvenanceTruncated marks findings from a capture cut short by a
	// deadline or cancellation.
	ProvenanceTruncated Provenance = "truncated"
)

// LeakKind classifies a memcheck loss record.
type LeakKind string

const (
	LeakDefinite LeakKind = "definite"
	LeakIndirect LeakKind = "indirect"
	LeakPossible LeakKind = "possible"
)

// ThreadIssueKind classifies a thread finding.
type ThreadIssueKind string

const (
	ThreadDeadlock   ThreadIssueKind = "deadlock"
	ThreadContention ThreadIssueKind = "contention"
	ThreadDataRace   ThreadIssueKind = "data_race"
)

// MemoryLeak is a leaked allocation reported by memcheck.
type MemoryLeak struct {
	AllocationSite string   `json:"allocation_site"`
	BytesLost      int64    `json:"bytes_lost"`
	Blocks         int64    `json:"blocks"`
	LeakKind       LeakKind `json:"leak_kind"`
	Backtrace      []string `json:"backtrace"`
}

// CPUHotspot is a symbol with significant sampled CPU time.
type CPUHotspot struct {
	Symbol    string   `json:"symbol"`
	Module    string   `json:"module"`
	SelfPct   float64  `json:"self_pct"`
	TotalPct  float64  `json:"total_pct"`
	Samples   int64    `json:"samples"`
	CallStack []string `json:"call_stack"`
}

// CacheMetric is the miss rate of one cache level.
type CacheMetric struct {
	Level    string  `json:"cache_level"`
	MissRate float64 `json:"miss_rate"`
	Accesses int64   `json:"accesses"`
	Misses   int64   `json:"misses"`
}

// SyscallStat is the cost of one system call.
type SyscallStat struct {
	Name        string  `json:"name"`
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeUS float64 `json:"total_time_us"`
	AvgTimeUS   float64 `json:"avg_time_us"`
}

// ThreadIssue is a deadlock, contended lock or data race.
type ThreadIssue struct {
	Kind        ThreadIssueKind `json:"kind"`
	ThreadIDs   []int           `json:"thread_ids"`
	LockID      string          `json:"lock_id"`
	Cycle       []string        `json:"cycle"`
	WaitTimeUS  float64         `json:"wait_time_us"`
	Description string          `json:"description"`
}

// Finding is one parsed finding. Exactly one variant pointer is set.
type Finding struct {
	// Seq is the position of the record in the original capture. It is
	// the ranking tie-breaker.
	Seq int `json:"seq"`

	Provenance Provenance `json:"provenance"`

	Leak    *MemoryLeak  `json:"leak"`
	Hotspot *CPUHotspot  `json:"hotspot"`
	Cache   *CacheMetric `json:"cache"`
	Syscall *SyscallStat `json:"syscall"`
	Thread  *ThreadIssue `json:"thread"`
}

// Kind returns the analysis kind of the populated variant.
func (f Finding) Kind() Kind {
	switch {
	case f.Leak != nil:
		return KindMemory
	case f.Hotspot != nil:
		return KindCPU
	case f.Cache != nil:
		return KindCache
	case f.Syscall != nil:
		return KindSyscall
	case f.Thread != nil:
		return KindThread
	default:
		return ""
	}
}

// RankKey returns the primary ranking value of the finding.
func (f Finding) RankKey() float64 {
	switch {
	case f.Leak != nil:
		return float64(f.Leak.BytesLost)
	case f.Hotspot != nil:
		return f.Hotspot.TotalPct
	case f.Cache != nil:
		return f.Cache.MissRate
	case f.Syscall != nil:
		return f.Syscall.TotalTimeUS
	case f.Thread != nil:
		return f.Thread.WaitTimeUS
	default:
		return 0
	}
}

// Label is a short human readable name for the finding.
func (f Finding) Label() string {
	switch {
	case f.Leak != nil:
		return f.Leak.AllocationSite
	case f.Hotspot != nil:
		if f.Hotspot.Module == "" {
			return f.Hotspot.Symbol
		}
		return f.Hotspot.Symbol + " (" + f.Hotspot.Module + ")"
	case f.Cache != nil:
		return f.Cache.Level
	case f.Syscall != nil:
		return f.Syscall.Name
	case f.Thread != nil:
		ids := make([]string, len(f.Thread.ThreadIDs))
		for i, id := range f.Thread.ThreadIDs {
			ids[i] = strconv.Itoa(id)
		}
		return fmt.Sprintf("%s lock=%s threads=[%s]",
			f.Thread.Kind, f.Thread.LockID, strings.Join(ids, ","))
	default:
		return ""
	}
}

// Clone returns a deep copy of the finding.
func (f Finding) Clone() Finding {
	c := f
	if f.Leak != nil {
		l := *f.Leak
		l.Backtrace = cloneStrings(f.Leak.Backtrace)
		c.Leak = &l
	}
	if f.Hotspot != nil {
		h := *f.Hotspot
		h.CallStack = cloneStrings(f.Hotspot.CallStack)
		c.Hotspot = &h
	}
	if f.Cache != nil {
		m := *f.Cache
		c.Cache = &m
	}
	if f.Syscall != nil {
		s := *f.Syscall
		c.Syscall = &s
	}
	if f.Thread != nil {
		t := *f.Thread
		if f.Thread.ThreadIDs != nil {
			t.ThreadIDs = append([]int{}, f.Thread.ThreadIDs...)
		}
		t.Cycle = cloneStrings(f.Thread.Cycle)
		c.Thread = &t
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// ParseWarning is a non-fatal problem met while parsing.
type ParseWarning struct {
	// Line is the 1-based line number in the capture, or 0 when unknown.
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// String formats the warning for display.
func (w ParseWarning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Anomaly codes emitted by the normalizer.
const (
	AnomalyPctSumExceeded   = "pct_sum_exceeded"
	AnomalyPctOutOfRange    = "pct_out_of_range"
	AnomalySelfExceedsTotal = "self_exceeds_total"
	AnomalyRateOutOfRange   = "rate_out_of_range"
	AnomalyNegativeValue    = "negative_value"
	AnomalyNonFiniteValue   = "non_finite_value"
	AnomalyInconsistentAvg  = "inconsistent_average"
	AnomalyKindMismatch     = "kind_mismatch"
)

// Anomaly records an invariant the normalizer had to enforce.
type Anomaly struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StackSample is a collapsed call stack, root frame first.
type StackSample struct {
	Frames []string `json:"frames"`
	Count  int64    `json:"count"`
}

// Folded returns the stack in the semicolon separated folded format.
func (s StackSample) Folded() string {
	return strings.Join(s.Frames, ";") + " " + strconv.FormatInt(s.Count, 10)
}

// Leaf returns the innermost frame.
func (s StackSample) Leaf() string {
	if len(s.Frames) == 0 {
		return ""
	}
	return s.Frames[len(s.Frames)-1]
}
