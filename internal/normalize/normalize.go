package normalize

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/parser"
)

// PctEpsilon is the tolerance above 100 for the sum of CPU percentages.
const PctEpsilon = 0.01

// Input is everything the normalizer needs for one analysis run.
type Input struct {
	// Kind is the analysis family. It must match the findings.
	Kind model.Kind

	Run    model.AnalysisRun
	Target model.ProfilingTarget

	// Truncated and Dropped come from the run's RawCapture.
	Truncated bool
	Dropped   int64

	// Result is the parser output.
	Result parser.Result

	// ParseErr is the error returned by the parser, if any.
	ParseErr error

	// TopK limits the number of findings kept. Zero keeps all.
	TopK int
}

// Normalize builds the canonical report. The input is not modified.
func Normalize(in Input) *model.AnalysisReport {
	r := model.NewFailedReport(in.Kind, in.Target, in.Run)
	r.Truncated = in.Truncated
	r.TopK = max(in.TopK, 0)
	r.Status = status(in.Run.Status, in.ParseErr)
	r.Error = errorText(in.Run.Err, in.ParseErr)

	r.Warnings = append(r.Warnings, in.Result.Warnings...)
	if in.Dropped > 0 {
		r.Warnings = append(r.Warnings, model.ParseWarning{
			Message: fmt.Sprintf("capture buffer full: %d bytes of early output discarded", in.Dropped),
		})
	}
	for _, s := range in.Result.Stacks {
		r.Stacks = append(r.Stacks, model.StackSample{
			Frames: slices.Clone(s.Frames),
			Count:  s.Count,
		})
	}

	v := &validator{}
	findings := make([]model.Finding, 0, len(in.Result.Findings))
	for _, f := range in.Result.Findings {
		if f.Kind() != in.Kind {
			v.flag(model.AnomalyKindMismatch, "finding %d of kind %q dropped from %s report", f.Seq, f.Kind(), in.Kind)
			continue
		}
		c := f.Clone()
		if in.Truncated {
			c.Provenance = model.ProvenanceTruncated
		} else if c.Provenance == "" {
			c.Provenance = model.ProvenanceComplete
		}
		v.sanitize(&c)
		findings = append(findings, c)
	}
	if in.Kind == model.KindCPU {
		v.limitPctSum(findings)
	}

	r.Aggregates = aggregates(in.Kind, findings, in.Result.Summary)

	rank(findings)
	r.TotalFindings = len(findings)
	if r.TopK > 0 && len(findings) > r.TopK {
		findings = findings[:r.TopK]
	}
	r.Findings = findings
	r.Anomalies = append(r.Anomalies, v.anomalies...)
	return r
}

// rank sorts findings by ranking key descending, then by capture order.
func rank(findings []model.Finding) {
	slices.SortStableFunc(findings, func(a, b model.Finding) int {
		if c := cmp.Compare(b.RankKey(), a.RankKey()); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

// status escalates a successful run whose output could not be parsed.
func status(run model.RunStatus, parseErr error) model.RunStatus {
	if run == model.StatusSuccess && errors.Is(parseErr, parser.ErrNoRecords) {
		return model.StatusParseFailed
	}
	return run
}

func errorText(runErr string, parseErr error) string {
	switch {
	case parseErr == nil:
		return runErr
	case runErr == "":
		return parseErr.Error()
	default:
		return runErr + "; " + parseErr.Error()
	}
}

// validator clamps invalid values and records what it changed.
type validator struct {
	anomalies []model.Anomaly
}

func (v *validator) flag(code, format string, args ...any) {
	v.anomalies = append(v.anomalies, model.Anomaly{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// float clamps a non-finite or negative value to zero.
func (v *validator) float(f *model.Finding, field string, x *float64) {
	switch {
	case math.IsNaN(*x) || math.IsInf(*x, 0):
		v.flag(model.AnomalyNonFiniteValue, "%s: %s was %v, set to 0", f.Label(), field, *x)
		*x = 0
	case *x < 0:
		v.flag(model.AnomalyNegativeValue, "%s: %s was %v, set to 0", f.Label(), field, *x)
		*x = 0
	}
}

// count clamps a negative counter to zero.
func (v *validator) count(f *model.Finding, field string, x *int64) {
	if *x < 0 {
		v.flag(model.AnomalyNegativeValue, "%s: %s was %d, set to 0", f.Label(), field, *x)
		*x = 0
	}
}

func (v *validator) sanitize(f *model.Finding) {
	switch {
	case f.Leak != nil:
		v.count(f, "bytes_lost", &f.Leak.BytesLost)
		v.count(f, "blocks", &f.Leak.Blocks)

	case f.Hotspot != nil:
		h := f.Hotspot
		v.float(f, "self_pct", &h.SelfPct)
		v.float(f, "total_pct", &h.TotalPct)
		v.count(f, "samples", &h.Samples)
		if h.TotalPct > 100 {
			v.flag(model.AnomalyPctOutOfRange, "%s: total_pct %.2f clamped to 100", f.Label(), h.TotalPct)
			h.TotalPct = 100
		}
		if h.SelfPct > h.TotalPct {
			v.flag(model.AnomalySelfExceedsTotal, "%s: self_pct %.2f exceeds total_pct %.2f", f.Label(), h.SelfPct, h.TotalPct)
			h.SelfPct = h.TotalPct
		}

	case f.Cache != nil:
		m := f.Cache
		v.count(f, "accesses", &m.Accesses)
		v.count(f, "misses", &m.Misses)
		if math.IsNaN(m.MissRate) {
			v.flag(model.AnomalyNonFiniteValue, "%s: miss_rate was NaN, set to 0", f.Label())
			m.MissRate = 0
		}
		if m.MissRate < 0 || m.MissRate > 1 {
			clamped := min(max(m.MissRate, 0), 1)
			v.flag(model.AnomalyRateOutOfRange, "%s: miss_rate %v clamped to %v", f.Label(), m.MissRate, clamped)
			m.MissRate = clamped
		}

	case f.Syscall != nil:
		s := f.Syscall
		v.count(f, "count", &s.Count)
		v.count(f, "errors", &s.Errors)
		v.float(f, "total_time_us", &s.TotalTimeUS)
		v.float(f, "avg_time_us", &s.AvgTimeUS)
		if s.Count > 0 {
			want := s.TotalTimeUS / float64(s.Count)
			if math.Abs(want-s.AvgTimeUS) > max(0.01, 0.05*want) {
				v.flag(model.AnomalyInconsistentAvg, "%s: avg_time_us %.3f recomputed as %.3f", f.Label(), s.AvgTimeUS, want)
				s.AvgTimeUS = want
			}
		}

	case f.Thread != nil:
		v.float(f, "wait_time_us", &f.Thread.WaitTimeUS)
	}
}

// limitPctSum scales CPU percentages down when their sum exceeds 100.
func (v *validator) limitPctSum(findings []model.Finding) {
	var sum float64
	for _, f := range findings {
		sum += f.Hotspot.TotalPct
	}
	if sum <= 100+PctEpsilon {
		return
	}
	scale := 100 / sum
	for i := range findings {
		h := findings[i].Hotspot
		h.TotalPct *= scale
		h.SelfPct *= scale
	}
	v.flag(model.AnomalyPctSumExceeded, "total_pct sums to %.2f; scaled to 100", sum)
}
