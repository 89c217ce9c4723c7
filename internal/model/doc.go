// Package model defines the data structures shared by the perflens pipeline.
//
// The main types are:
//   - ProfilingTarget: the binary under analysis and how to launch it
//   - AnalysisRun: one execution of an analysis tool
//   - RawCapture: the bounded stdout/stderr of that execution
//   - Finding: a typed, tool-independent finding (leak, hotspot, cache
//     metric, syscall stat or thread issue)
//   - AnalysisReport: the canonical ranked report consumed by renderers
//
// All values are JSON serializable. Durations inside findings are expressed
// in microseconds and sizes in bytes.
package model
