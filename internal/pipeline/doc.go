// Package pipeline runs analysis jobs through their execution steps.
//
// One Job covers one analysis kind. Its pipeline executes the tool
// (ExecuteStep), parses the capture (ParseStep) and builds the canonical
// report (NormalizeStep). Each step records failures on the job rather than
// aborting, so a job always ends with a report.
//
// BatchProcessor runs the jobs of a multi-kind analysis concurrently with
// errgroup. Jobs share nothing but the scratch root, which is partitioned by
// run id, and a single context whose cancellation reaches every worker.
package pipeline
