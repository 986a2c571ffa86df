package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// tracerName identifies spans created by this package.
const tracerName = "github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/pipeline"

// Step is one stage of a file's journey. Steps run in order on the same
// Job; each one reads what earlier steps stored and adds its own result.
type Step interface {
	// Do runs the step. A returned error ends the file's pipeline.
	Do(ctx context.Context, job *Job) error

	// Name returns the step name, which doubles as the failure stage.
	Name() string
}

// Job carries one file through the pipeline.
type Job struct {
	File   model.FileHandle
	Bucket string

	// Credentials are fetched for this job alone and never shared.
	Credentials model.UploadCredentials
	ObjectKey   string
	Result      *model.DetectionResult

	Err         error
	FailedStage model.Stage

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewJob returns a job for file targeting bucket.
func NewJob(file model.FileHandle, bucket string) *Job {
	return &Job{File: file, Bucket: bucket}
}

// Outcome converts the finished job into its report record.
func (j *Job) Outcome() model.Outcome {
	o := model.Outcome{
		File:       j.File,
		ObjectKey:  j.ObjectKey,
		Result:     j.Result,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Duration:   j.FinishedAt.Sub(j.StartedAt),
	}
	if o.ObjectKey == "" {
		o.ObjectKey = j.Credentials.ObjectKey()
	}
	if j.Err != nil {
		o.Result = nil
		o.Error = j.Err.Error()
		o.FailedStage = j.FailedStage
	}
	return o
}

// Fragment renders the finished job for the result area.
func (j *Job) Fragment() model.Fragment {
	if j.Err != nil || j.Result == nil {
		err := j.Err
		if err == nil {
			err = &model.MalformedResponseError{Source: "detection", Reason: "no result"}
		}
		return model.ErrorFragment(j.File.Name, err)
	}
	return model.SuccessFragment(j.File.Name, j.Result)
}

// Pipeline runs steps in order for a single file and stops at the first
// failure.
type Pipeline struct {
	steps   []Step
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records per-step durations.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps on job. On failure the error is stored on the job
// together with the failing step's stage and also returned.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	job.StartedAt = time.Now()
	defer func() { job.FinishedAt = time.Now() }()

	ctx, span := p.tracer.Start(ctx, "upload_file", trace.WithAttributes(
		attribute.String("file.name", job.File.Name),
		attribute.Int64("file.size", job.File.Size),
		attribute.String("bucket", job.Bucket),
	))
	defer span.End()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "file", job.File.Name, "reason", err)
			p.fail(job, span, step, err)
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "file", job.File.Name)

		stepCtx, stepSpan := p.tracer.Start(ctx, step.Name())
		started := time.Now()
		err := step.Do(stepCtx, job)
		p.metrics.observeStage(step.Name(), err, time.Since(started))

		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()

			p.logger.Warn("step failed", "step", step.Name(), "file", job.File.Name, "error", err)
			p.fail(job, span, step, err)
			return err
		}
		stepSpan.End()
	}

	if job.ObjectKey != "" {
		span.SetAttributes(attribute.String("object.key", job.ObjectKey))
	}
	return nil
}

func (p *Pipeline) fail(job *Job, span trace.Span, step Step, err error) {
	job.Err = err
	job.FailedStage = model.Stage(step.Name())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
