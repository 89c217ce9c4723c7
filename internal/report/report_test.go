package report

import (
	"time"

	"github.com/nao1215/perflens/internal/model"
	"github.com/nao1215/perflens/internal/normalize"
)

var testStart = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

// newTestReport creates a successful report of kind with sample findings.
func newTestReport(kind model.Kind) *model.AnalysisReport {
	target, err := model.NewProfilingTarget("/usr/local/bin/server", []string{"--port", "8080"}, "/srv", map[string]string{"MODE": "bench"})
	if err != nil {
		panic(err)
	}
	r := model.NewFailedReport(kind, target, model.AnalysisRun{
		ID:        "0b9c1f2e-run",
		Kind:      kind,
		StartedAt: testStart,
		EndedAt:   testStart.Add(1500 * time.Millisecond),
		Status:    model.StatusSuccess,
	})
	r.TopK = 10

	switch kind {
	case model.KindMemory:
		r.Findings = []model.Finding{
			{Seq: 0, Provenance: model.ProvenanceComplete, Leak: &model.MemoryLeak{AllocationSite: "make_buffer (buf.c:42)", BytesLost: 4096, Blocks: 4, LeakKind: model.LeakDefinite, Backtrace: []string{"malloc", "make_buffer (buf.c:42)", "main (main.c:10)"}}},
			{Seq: 1, Provenance: model.ProvenanceComplete, Leak: &model.MemoryLeak{AllocationSite: "parse_opts (opts.c:7)", BytesLost: 64, Blocks: 1, LeakKind: model.LeakIndirect, Backtrace: []string{"calloc", "parse_opts (opts.c:7)"}}},
		}
		r.Aggregates = map[string]float64{
			normalize.AggTotalBytesLost: 4160,
			normalize.AggDefiniteBytes:  4096,
			normalize.AggIndirectBytes:  64,
			normalize.AggLeakCount:      2,
		}
	case model.KindCPU:
		r.Findings = []model.Finding{
			{Seq: 0, Provenance: model.ProvenanceComplete, Hotspot: &model.CPUHotspot{Symbol: "hash_lookup", Module: "server", SelfPct: 41.5, TotalPct: 41.5, Samples: 830}},
			{Seq: 1, Provenance: model.ProvenanceComplete, Hotspot: &model.CPUHotspot{Symbol: "memcpy", Module: "libc.so.6", SelfPct: 12.25, TotalPct: 12.25, Samples: 245}},
		}
		r.Stacks = []model.StackSample{
			{Frames: []string{"server", "main", "serve", "hash_lookup"}, Count: 830},
			{Frames: []string{"server", "main", "serve", "memcpy"}, Count: 245},
		}
		r.Aggregates = map[string]float64{
			normalize.AggTotalPct:     53.75,
			normalize.AggHotspotCount: 2,
			normalize.AggSampleCount:  2000,
		}
	case model.KindSyscall:
		r.Findings = []model.Finding{
			{Seq: 1, Provenance: model.ProvenanceComplete, Syscall: &model.SyscallStat{Name: "write", Count: 40, TotalTimeUS: 900, AvgTimeUS: 22.5}},
			{Seq: 0, Provenance: model.ProvenanceComplete, Syscall: &model.SyscallStat{Name: "read", Count: 120, Errors: 3, TotalTimeUS: 450, AvgTimeUS: 3.75}},
		}
		r.Aggregates = map[string]float64{
			normalize.AggTotalCalls:  160,
			normalize.AggTotalErrors: 3,
			normalize.AggTotalTimeUS: 1350,
			normalize.AggErrorRate:   3.0 / 160,
		}
	case model.KindThread:
		r.Findings = []model.Finding{
			{Seq: 0, Provenance: model.ProvenanceComplete, Thread: &model.ThreadIssue{Kind: model.ThreadDeadlock, ThreadIDs: []int{1, 2}, LockID: "A", Cycle: []string{"A", "B"}, WaitTimeUS: 2e6}},
		}
		r.Aggregates = map[string]float64{
			normalize.AggDeadlockCount:   1,
			normalize.AggTotalWaitTimeUS: 2e6,
		}
	case model.KindCache:
		r.Findings = []model.Finding{
			{Seq: 0, Provenance: model.ProvenanceComplete, Cache: &model.CacheMetric{Level: "LLC", MissRate: 0.25, Accesses: 4000, Misses: 1000}},
			{Seq: 1, Provenance: model.ProvenanceComplete, Cache: &model.CacheMetric{Level: "L1d", MissRate: 0.05, Accesses: 100000, Misses: 5000}},
		}
		r.Aggregates = map[string]float64{
			normalize.AggOverallMissRate: 0.0577,
			normalize.AggTotalAccesses:   104000,
			normalize.AggTotalMisses:     6000,
			normalize.AggIPC:             1.42,
		}
	}
	r.TotalFindings = len(r.Findings)
	return r
}
