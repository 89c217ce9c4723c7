package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/pprof/profile"
	"github.com/nao1215/perflens/internal/model"
)

// BuildProfile converts the report's stack samples into a pprof CPU
// profile. frequency is the sampling rate in Hz; zero leaves the period
// unset.
func BuildProfile(r *model.AnalysisReport, frequency int) (*profile.Profile, error) {
	if len(r.Stacks) == 0 {
		return nil, ErrNoStacks
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		TimeNanos:     r.StartedAt.UnixNano(),
		DurationNanos: r.Duration().Nanoseconds(),
	}
	if frequency > 0 {
		p.Period = int64(time.Second) / int64(frequency)
	}

	functions := make(map[string]*profile.Function)
	locations := make(map[string]*profile.Location)
	location := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}
		fn := &profile.Function{
			ID:         uint64(len(functions) + 1),
			Name:       name,
			SystemName: name,
		}
		functions[name] = fn
		p.Function = append(p.Function, fn)

		loc := &profile.Location{
			ID:   uint64(len(locations) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		locations[name] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, s := range r.Stacks {
		if len(s.Frames) == 0 || s.Count <= 0 {
			continue
		}
		// pprof lists the leaf first.
		locs := make([]*profile.Location, 0, len(s.Frames))
		for i := len(s.Frames) - 1; i >= 0; i-- {
			locs = append(locs, location(s.Frames[i]))
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{s.Count, s.Count * p.Period},
		})
	}
	if len(p.Sample) == 0 {
		return nil, ErrNoStacks
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// WritePprof writes the report's stacks as a gzipped pprof profile.
func WritePprof(w io.Writer, r *model.AnalysisReport, frequency int) error {
	p, err := BuildProfile(r, frequency)
	if err != nil {
		return err
	}
	return p.Write(w)
}

// WritePprofFile writes the pprof profile to path.
func WritePprofFile(path string, r *model.AnalysisReport, frequency int) (err error) {
	p, err := BuildProfile(r, frequency)
	if err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := p.Write(f); err != nil {
		return err
	}
	return nil
}
