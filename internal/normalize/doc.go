// Package normalize turns parser output into the canonical, ranked
// model.AnalysisReport.
//
// Normalization validates every measured value, enforces the report
// invariants (CPU percentages sum to at most 100, miss rates stay within
// [0, 1], no negative or non-finite numbers), derives per-kind aggregates,
// ranks findings by the kind's ranking key with capture order as the
// tie-breaker and keeps the Top-K. Every value it has to correct is
// recorded as a model.Anomaly; nothing is silently dropped.
//
// Normalize is a pure function: identical inputs always produce an identical
// report.
package normalize
