package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/perflens/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor runs several analysis jobs concurrently.
//
// Design decision: Batching lives outside Pipeline because:
// 1. A Pipeline stays focused on a single job and its three steps
// 2. Each job gets a fresh pipeline from the factory, so steps never share state
// 3. Concurrency limits and report ordering are handled in one place
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each job.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs. Zero runs
	// every job at once.
	concurrency int

	logger *slog.Logger

	results []*model.AnalysisReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Values below one leave the default of one worker per job.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		results:         make([]*model.AnalysisReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

func (bp *BatchProcessor) limit(n int) int {
	if bp.concurrency > 0 {
		return bp.concurrency
	}
	return max(n, 1)
}

// ProcessBatch runs jobs concurrently and returns their reports in job
// order. Every job receives a report, including jobs that never started
// because ctx was cancelled. The error is the context error, if any.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []*Job) ([]*model.AnalysisReport, error) {
	bp.logger.Info("starting analysis",
		"jobs", len(jobs),
		"concurrency", bp.limit(len(jobs)),
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.AnalysisReport, len(jobs))
	bp.mu.Unlock()

	err := bp.run(ctx, jobs, func(report *model.AnalysisReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("analysis complete",
		"jobs", len(jobs),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback runs jobs concurrently and calls callback as
// each finishes. callback is invoked from worker goroutines.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []*Job,
	callback func(report *model.AnalysisReport, index int),
) error {
	bp.logger.Info("starting analysis with callback",
		"jobs", len(jobs),
		"concurrency", bp.limit(len(jobs)),
	)
	return bp.run(ctx, jobs, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, jobs []*Job, done func(*model.AnalysisReport, int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.limit(len(jobs)))

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				job.ensureReport(model.StatusCancelled, gctx.Err().Error())
				done(job.Report, i)
				return nil
			default:
			}

			bp.logger.Info("running analysis",
				"kind", job.Kind,
				"index", i+1,
				"total", len(jobs),
			)

			pipeline := bp.pipelineFactory()
			if err := pipeline.Execute(gctx, job); err != nil {
				// The failure is carried by the job's report.
				bp.logger.Warn("analysis failed", "kind", job.Kind, "error", err)
			} else {
				bp.logger.Info("analysis finished",
					"kind", job.Kind,
					"status", job.Report.Status,
					"findings", len(job.Report.Findings),
				)
			}

			done(job.Report, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors
	return ctx.Err()
}
