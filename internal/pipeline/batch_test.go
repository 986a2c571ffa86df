package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

type recordingSink struct {
	mu        sync.Mutex
	fragments []model.Fragment
	states    []model.BatchState
	timers    []string
}

func (r *recordingSink) Append(f model.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments = append(r.fragments, f)
	return nil
}

func (r *recordingSink) SetState(s model.BatchState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingSink) SetTimer(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers = append(r.timers, text)
}

// keyedSource hands out a distinct key per call.
type keyedSource struct {
	n atomic.Int32
}

func (k *keyedSource) Fetch(context.Context) (model.UploadCredentials, error) {
	n := k.n.Add(1)
	return testCreds("images/" + string(rune('0'+n)) + ".jpg"), nil
}

// nameFailingUploader fails uploads of one file name.
type nameFailingUploader struct {
	failName string
}

func (u *nameFailingUploader) Upload(_ context.Context, file model.FileHandle, creds model.UploadCredentials) (string, error) {
	if file.Name == u.failName {
		return "", &model.UploadError{Status: 403, Body: "AccessDenied"}
	}
	return creds.ObjectKey(), nil
}

type echoDetector struct{}

func (echoDetector) Detect(_ context.Context, bucket, key, _ string) (*model.DetectionResult, error) {
	return &model.DetectionResult{
		S3URL:   "s3://" + bucket + "/" + key,
		Objects: []model.DetectedObject{{Label: "cat", Accuracy: 0.9}},
	}, nil
}

// stepFunc is a Step safe to share between pipelines.
type stepFunc struct {
	name string
	fn   func(ctx context.Context, job *Job) error
}

func (s stepFunc) Do(ctx context.Context, job *Job) error { return s.fn(ctx, job) }

func (s stepFunc) Name() string { return s.name }

func newTestProcessor(sink *recordingSink, failName string, opts ...BatchOption) *BatchProcessor {
	source := &keyedSource{}
	factory := func() *Pipeline {
		return NewUploadPipeline(source, &nameFailingUploader{failName: failName}, echoDetector{},
			WithLogger(discardLogger()))
	}
	opts = append([]BatchOption{
		WithSink(sink),
		WithBatchLogger(discardLogger()),
		WithTimerInterval(time.Millisecond),
	}, opts...)
	return NewBatchProcessor(factory, "tuw-dic-ex3", opts...)
}

func files(names ...string) []model.FileHandle {
	out := make([]model.FileHandle, len(names))
	for i, n := range names {
		out[i] = model.FileHandle{Name: n, Content: []byte("jpeg")}
	}
	return out
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, "b")

		if bp.concurrency != 0 {
			t.Errorf("expected unbounded concurrency, got %d", bp.concurrency)
		}
		if bp.logger == nil || bp.sink == nil {
			t.Error("expected default logger and sink")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		hook := func(context.Context, model.Outcome) error { return nil }
		bp := NewBatchProcessor(func() *Pipeline { return New() }, "b",
			WithConcurrency(5),
			WithOutcomeHook(hook),
			WithOutcomeHook(hook),
		)

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
		if len(bp.hooks) != 2 {
			t.Errorf("expected 2 hooks, got %d", len(bp.hooks))
		}
	})
}

func TestBatchProcessorRun(t *testing.T) {
	t.Parallel()

	t.Run("two files both succeed", func(t *testing.T) {
		t.Parallel()

		sink := &recordingSink{}
		report, err := newTestProcessor(sink, "").Run(context.Background(), files("A.jpg", "B.jpg"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(sink.fragments) != 2 {
			t.Fatalf("expected 2 fragments, got %d", len(sink.fragments))
		}
		for _, f := range sink.fragments {
			if f.Kind != model.FragmentSuccess {
				t.Errorf("expected success fragment, got %+v", f)
			}
		}
		if report.Succeeded() != 2 || report.Failed() != 0 {
			t.Errorf("expected 2 successes, got %d/%d", report.Succeeded(), report.Failed())
		}

		// Outcomes stay in submission order.
		if report.Outcomes[0].File.Name != "A.jpg" || report.Outcomes[1].File.Name != "B.jpg" {
			t.Errorf("unexpected outcome order")
		}
		// Every file got its own credentials.
		if report.Outcomes[0].ObjectKey == report.Outcomes[1].ObjectKey {
			t.Error("expected distinct object keys")
		}

		if len(sink.states) != 2 || sink.states[0] != model.StateRunning || sink.states[1] != model.StateDone {
			t.Errorf("expected running then done, got %v", sink.states)
		}
		last := sink.timers[len(sink.timers)-1]
		if !strings.HasPrefix(last, "Total Time: ") {
			t.Errorf("expected final total time, got %q", last)
		}
		if report.Elapsed <= 0 {
			t.Error("expected elapsed time")
		}
	})

	t.Run("one failure does not affect the others", func(t *testing.T) {
		t.Parallel()

		sink := &recordingSink{}
		report, err := newTestProcessor(sink, "B.jpg").Run(context.Background(), files("A.jpg", "B.jpg", "C.jpg"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var errs, oks int
		for _, f := range sink.fragments {
			switch f.Kind {
			case model.FragmentError:
				errs++
				if f.Text != "Error uploading B.jpg: HTTP error! status: 403 response: AccessDenied" {
					t.Errorf("unexpected error fragment %q", f.Text)
				}
			case model.FragmentSuccess:
				oks++
			}
		}
		if errs != 1 || oks != 2 {
			t.Errorf("expected 2 successes and 1 error, got %d/%d", oks, errs)
		}
		if got := report.FailuresByStage()[model.StageUpload]; got != 1 {
			t.Errorf("expected 1 upload failure, got %d", got)
		}
		if sink.states[len(sink.states)-1] != model.StateDone {
			t.Error("expected batch to reach done")
		}
	})

	t.Run("empty batch still completes", func(t *testing.T) {
		t.Parallel()

		sink := &recordingSink{}
		report, err := newTestProcessor(sink, "").Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(report.Outcomes) != 0 || len(sink.fragments) != 0 {
			t.Error("expected no outcomes")
		}
		if len(sink.states) != 2 || sink.states[1] != model.StateDone {
			t.Errorf("expected running then done, got %v", sink.states)
		}
	})

	t.Run("cancelled context marks files failed", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sink := &recordingSink{}
		report, err := newTestProcessor(sink, "").Run(ctx, files("A.jpg"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if report.Failed() != 1 {
			t.Errorf("expected 1 failure, got %d", report.Failed())
		}
		if sink.states[len(sink.states)-1] != model.StateDone {
			t.Error("expected batch to reach done")
		}
	})
}

// countingUploader records uploads per file name.
type countingUploader struct {
	mu    sync.Mutex
	calls map[string]int
}

func (u *countingUploader) Upload(_ context.Context, file model.FileHandle, creds model.UploadCredentials) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.calls == nil {
		u.calls = make(map[string]int)
	}
	u.calls[file.Name]++
	return creds.ObjectKey(), nil
}

type failingSource struct {
	err error
}

func (s failingSource) Fetch(context.Context) (model.UploadCredentials, error) {
	return model.UploadCredentials{}, s.err
}

type catDetector struct{}

func (catDetector) Detect(_ context.Context, bucket, key, _ string) (*model.DetectionResult, error) {
	return &model.DetectionResult{
		S3URL:   "s3://" + bucket + "/" + key,
		Objects: []model.DetectedObject{{Label: "cat", Accuracy: 0.912}},
	}, nil
}

func TestBatchProcessorCredentialFailure(t *testing.T) {
	t.Parallel()

	good := NewCredentialStep(&keyedSource{})
	bad := NewCredentialStep(failingSource{err: &model.FetchError{Status: 500}})
	uploader := &countingUploader{}

	// Credentials for B.jpg fail; every other file gets a fresh key.
	credentials := stepFunc{name: string(model.StageCredentials), fn: func(ctx context.Context, job *Job) error {
		if job.File.Name == "B.jpg" {
			return bad.Do(ctx, job)
		}
		return good.Do(ctx, job)
	}}

	sink := &recordingSink{}
	bp := NewBatchProcessor(func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddSteps(credentials, NewUploadStep(uploader), NewDetectStep(catDetector{}))
		return p
	}, "tuw-dic-ex3", WithSink(sink), WithBatchLogger(discardLogger()), WithTimerInterval(time.Millisecond))

	report, err := bp.Run(context.Background(), files("A.jpg", "B.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := uploader.calls["B.jpg"]; n != 0 {
		t.Errorf("expected no upload for B.jpg, got %d", n)
	}
	if n := uploader.calls["A.jpg"]; n != 1 {
		t.Errorf("expected one upload for A.jpg, got %d", n)
	}

	if len(sink.fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(sink.fragments))
	}
	var errs, oks int
	for _, f := range sink.fragments {
		switch f.Kind {
		case model.FragmentError:
			errs++
			if f.Text != "Error uploading B.jpg: HTTP error! status: 500" {
				t.Errorf("unexpected error fragment %q", f.Text)
			}
		case model.FragmentSuccess:
			oks++
			if !strings.HasPrefix(f.Text, "Detections for A.jpg: ") ||
				!strings.HasSuffix(f.Text, "Objects: [label: cat, accuracy: 0.912]") {
				t.Errorf("unexpected success fragment %q", f.Text)
			}
		}
	}
	if errs != 1 || oks != 1 {
		t.Errorf("expected 1 success and 1 error, got %d/%d", oks, errs)
	}

	if got := report.FailuresByStage()[model.StageCredentials]; got != 1 {
		t.Errorf("expected 1 credentials failure, got %d", got)
	}
	if sink.states[len(sink.states)-1] != model.StateDone {
		t.Error("expected batch to reach done")
	}
}

func TestBatchProcessorConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	step := stepFunc{name: "detect", fn: func(_ context.Context, job *Job) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		job.Result = &model.DetectionResult{}
		return nil
	}}

	bp := NewBatchProcessor(func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(step)
		return p
	}, "b", WithConcurrency(2), WithBatchLogger(discardLogger()))

	if _, err := bp.Run(context.Background(), files("1", "2", "3", "4", "5", "6")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent files, got %d", peak.Load())
	}
}

func TestBatchProcessorOutcomeHooks(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string
	hookErr := errors.New("store unavailable")

	sink := &recordingSink{}
	bp := newTestProcessor(sink, "",
		WithOutcomeHook(func(_ context.Context, o model.Outcome) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, o.File.Name)
			return hookErr
		}),
	)

	report, err := bp.Run(context.Background(), files("A.jpg", "B.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("expected hook per file, got %v", seen)
	}
	if report.Succeeded() != 2 {
		t.Error("expected hook errors not to change outcomes")
	}
}

func TestBatchProcessorMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	source := &keyedSource{}
	bp := NewBatchProcessor(func() *Pipeline {
		return NewUploadPipeline(source, &nameFailingUploader{failName: "B.jpg"}, echoDetector{},
			WithLogger(discardLogger()), WithMetrics(m))
	}, "b", WithBatchMetrics(m), WithBatchLogger(discardLogger()))

	if _, err := bp.Run(context.Background(), files("A.jpg", "B.jpg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(m.files.WithLabelValues(resultSuccess)); got != 1 {
		t.Errorf("expected 1 successful file, got %v", got)
	}
	if got := testutil.ToFloat64(m.files.WithLabelValues(resultFailure)); got != 1 {
		t.Errorf("expected 1 failed file, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("expected nothing in flight, got %v", got)
	}
	if got := testutil.CollectAndCount(m.stageDuration); got != 4 {
		t.Errorf("expected 4 stage/result series, got %d", got)
	}
}
