package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/render"
)

// OutcomeHook is called once per file after its fragment was appended.
// Errors are logged and never change the file's outcome.
type OutcomeHook func(ctx context.Context, outcome model.Outcome) error

// BatchProcessor runs one pipeline per file, all files at once unless a
// concurrency limit is set. A failing file never affects the others.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	bucket          string
	sink            render.Sink
	concurrency     int
	timerInterval   time.Duration
	hooks           []OutcomeHook
	metrics         *Metrics
	logger          *slog.Logger

	// appendMu serializes sink appends so fragments are never interleaved.
	appendMu sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(bp *BatchProcessor) {
		bp.logger = logger
	}
}

// WithConcurrency caps the number of files in flight. Zero or less means
// no cap.
func WithConcurrency(n int) BatchOption {
	return func(bp *BatchProcessor) {
		bp.concurrency = n
	}
}

// WithSink sets where fragments, timer and state are shown.
func WithSink(sink render.Sink) BatchOption {
	return func(bp *BatchProcessor) {
		bp.sink = sink
	}
}

// WithTimerInterval sets the stopwatch refresh interval.
func WithTimerInterval(d time.Duration) BatchOption {
	return func(bp *BatchProcessor) {
		bp.timerInterval = d
	}
}

// WithOutcomeHook registers a hook run for every finished file.
func WithOutcomeHook(hook OutcomeHook) BatchOption {
	return func(bp *BatchProcessor) {
		bp.hooks = append(bp.hooks, hook)
	}
}

// WithBatchMetrics records per-file counters.
func WithBatchMetrics(m *Metrics) BatchOption {
	return func(bp *BatchProcessor) {
		bp.metrics = m
	}
}

// NewBatchProcessor returns a processor building a fresh pipeline per file
// with pipelineFactory.
func NewBatchProcessor(pipelineFactory func() *Pipeline, bucket string, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		bucket:          bucket,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.sink == nil {
		bp.sink = render.MultiSink{}
	}
	return bp
}

// Run processes files and returns the batch report. The sink moves to
// Running before the first file starts and to Done after the last one
// finished, whatever the individual results. Fragments are appended in
// completion order; report outcomes keep submission order.
//
// The returned error is non-nil only when ctx was cancelled; the report is
// complete in that case too, with cancelled files recorded as failures.
func (bp *BatchProcessor) Run(ctx context.Context, files []model.FileHandle) (*model.BatchReport, error) {
	report := &model.BatchReport{
		StartedAt: time.Now(),
		Bucket:    bp.bucket,
		Outcomes:  make([]model.Outcome, len(files)),
	}

	bp.logger.Info("starting batch", "files", len(files), "bucket", bp.bucket, "concurrency", bp.concurrency)

	bp.sink.SetState(model.StateRunning)
	sw := render.NewStopwatch(bp.sink, bp.timerInterval)
	sw.Start()

	// A plain group: one file's failure must not cancel its siblings.
	var g errgroup.Group
	if bp.concurrency > 0 {
		g.SetLimit(bp.concurrency)
	}

	for i, file := range files {
		g.Go(func() error {
			report.Outcomes[i] = bp.processFile(ctx, i, file)
			return nil
		})
	}
	_ = g.Wait()

	report.Elapsed = sw.Stop()
	bp.sink.SetState(model.StateDone)

	bp.logger.Info("batch completed",
		"files", len(files),
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"elapsed", report.Elapsed,
	)

	return report, ctx.Err()
}

func (bp *BatchProcessor) processFile(ctx context.Context, index int, file model.FileHandle) model.Outcome {
	job := NewJob(file, bp.bucket)

	bp.metrics.fileStarted()
	err := bp.pipelineFactory().Execute(ctx, job)
	bp.metrics.fileFinished(err)

	bp.appendMu.Lock()
	if aerr := bp.sink.Append(job.Fragment()); aerr != nil {
		bp.logger.Warn("failed to append fragment", "file", file.Name, "error", aerr)
	}
	bp.appendMu.Unlock()

	outcome := job.Outcome()
	outcome.Index = index
	if outcome.Succeeded() {
		bp.logger.Info("file processed", "file", file.Name, "key", outcome.ObjectKey, "objects", len(outcome.Result.Objects))
	} else {
		bp.logger.Info("file failed", "file", file.Name, "stage", job.FailedStage, "error", err)
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range bp.hooks {
		if herr := hook(hookCtx, outcome); herr != nil {
			bp.logger.Warn("outcome hook failed", "file", file.Name, "error", herr)
		}
	}
	return outcome
}
