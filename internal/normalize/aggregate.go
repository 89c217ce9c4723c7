package normalize

import (
	"maps"
	"math"

	"github.com/nao1215/perflens/internal/model"
)

// Aggregate names shared with the renderers.
const (
	AggTotalBytesLost   = "total_bytes_lost"
	AggDefiniteBytes    = "definite_bytes"
	AggIndirectBytes    = "indirect_bytes"
	AggPossibleBytes    = "possible_bytes"
	AggLeakCount        = "leak_count"
	AggTotalBlocks      = "total_blocks"
	AggTotalPct         = "total_pct"
	AggTotalSelfPct     = "total_self_pct"
	AggHotspotCount     = "hotspot_count"
	AggSampleCount      = "sample_count"
	AggOverallMissRate  = "overall_miss_rate"
	AggTotalAccesses    = "total_accesses"
	AggTotalMisses      = "total_misses"
	AggTotalCalls       = "total_calls"
	AggTotalErrors      = "total_errors"
	AggTotalTimeUS      = "total_time_us"
	AggErrorRate        = "error_rate"
	AggDeadlockCount    = "deadlock_count"
	AggContentionCount  = "contention_count"
	AggDataRaceCount    = "data_race_count"
	AggTotalWaitTimeUS  = "total_wait_time_us"
	AggStillReachable   = "still_reachable_bytes"
	AggElapsedUS        = "elapsed_us"
	AggIPC              = "ipc"
	AggBranchMissRate   = "branch_miss_rate"
	AggToolErrorCount   = "error_count"
	AggToolErrorContext = "error_contexts"
)

// aggregates derives the per-kind totals over every finding, before Top-K
// truncation. Values reported by the tool itself are kept unless a derived
// value of the same name exists. Non-finite values are dropped.
func aggregates(kind model.Kind, findings []model.Finding, summary map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(summary)+8)
	maps.Copy(out, summary)

	switch kind {
	case model.KindMemory:
		var total, definite, indirect, possible, blocks float64
		for _, f := range findings {
			b := float64(f.Leak.BytesLost)
			total += b
			blocks += float64(f.Leak.Blocks)
			switch f.Leak.LeakKind {
			case model.LeakDefinite:
				definite += b
			case model.LeakIndirect:
				indirect += b
			case model.LeakPossible:
				possible += b
			}
		}
		out[AggTotalBytesLost] = total
		out[AggDefiniteBytes] = definite
		out[AggIndirectBytes] = indirect
		out[AggPossibleBytes] = possible
		out[AggTotalBlocks] = blocks
		out[AggLeakCount] = float64(len(findings))

	case model.KindCPU:
		var total, self, samples float64
		for _, f := range findings {
			total += f.Hotspot.TotalPct
			self += f.Hotspot.SelfPct
			samples += float64(f.Hotspot.Samples)
		}
		out[AggTotalPct] = total
		out[AggTotalSelfPct] = self
		out[AggHotspotCount] = float64(len(findings))
		if s, ok := summary["samples"]; ok {
			samples = s
		}
		out[AggSampleCount] = samples

	case model.KindCache:
		var accesses, misses float64
		overall := -1.0
		for _, f := range findings {
			accesses += float64(f.Cache.Accesses)
			misses += float64(f.Cache.Misses)
			if f.Cache.Level == "overall" {
				overall = f.Cache.MissRate
			}
		}
		out[AggTotalAccesses] = accesses
		out[AggTotalMisses] = misses
		switch {
		case overall >= 0:
			out[AggOverallMissRate] = overall
		case accesses > 0:
			out[AggOverallMissRate] = min(misses/accesses, 1)
		default:
			out[AggOverallMissRate] = 0
		}

	case model.KindSyscall:
		var calls, errs, total float64
		for _, f := range findings {
			calls += float64(f.Syscall.Count)
			errs += float64(f.Syscall.Errors)
			total += f.Syscall.TotalTimeUS
		}
		out[AggTotalCalls] = calls
		out[AggTotalErrors] = errs
		out[AggTotalTimeUS] = total
		out[AggErrorRate] = 0
		if calls > 0 {
			out[AggErrorRate] = errs / calls
		}

	case model.KindThread:
		var deadlocks, contention, races, wait float64
		for _, f := range findings {
			switch f.Thread.Kind {
			case model.ThreadDeadlock:
				deadlocks++
			case model.ThreadContention:
				contention++
			case model.ThreadDataRace:
				races++
			}
			wait += f.Thread.WaitTimeUS
		}
		out[AggDeadlockCount] = deadlocks
		out[AggContentionCount] = contention
		out[AggDataRaceCount] = races
		out[AggTotalWaitTimeUS] = wait
	}

	for k, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(out, k)
		}
	}
	return out
}
