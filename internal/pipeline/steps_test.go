package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

type fakeSource struct {
	creds model.UploadCredentials
	err   error
}

func (f *fakeSource) Fetch(context.Context) (model.UploadCredentials, error) {
	return f.creds, f.err
}

type fakeUploader struct {
	err  error
	seen model.UploadCredentials
}

func (f *fakeUploader) Upload(_ context.Context, _ model.FileHandle, creds model.UploadCredentials) (string, error) {
	f.seen = creds
	if f.err != nil {
		return "", f.err
	}
	return creds.ObjectKey(), nil
}

type fakeDetector struct {
	result *model.DetectionResult
	err    error
	calls  []string
}

func (f *fakeDetector) Detect(_ context.Context, bucket, key, fileName string) (*model.DetectionResult, error) {
	f.calls = append(f.calls, bucket+"|"+key+"|"+fileName)
	return f.result, f.err
}

func testCreds(key string) model.UploadCredentials {
	return model.UploadCredentials{
		URL:    "https://bucket.s3.amazonaws.com/",
		Fields: map[string]string{"key": key, "policy": "p"},
	}
}

func TestCredentialStep(t *testing.T) {
	t.Parallel()

	t.Run("stores credentials", func(t *testing.T) {
		t.Parallel()

		step := NewCredentialStep(&fakeSource{creds: testCreds("images/1.jpg")})
		job := NewJob(model.FileHandle{Name: "A.jpg"}, "b")

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Credentials.ObjectKey() != "images/1.jpg" {
			t.Errorf("expected key images/1.jpg, got %q", job.Credentials.ObjectKey())
		}
		if step.Name() != "credentials" {
			t.Errorf("expected name credentials, got %q", step.Name())
		}
	})

	t.Run("returns fetch error", func(t *testing.T) {
		t.Parallel()

		step := NewCredentialStep(&fakeSource{err: &model.FetchError{Status: 500}})
		err := step.Do(context.Background(), NewJob(model.FileHandle{}, "b"))

		var fe *model.FetchError
		if !errors.As(err, &fe) || fe.Status != 500 {
			t.Errorf("expected FetchError 500, got %v", err)
		}
	})
}

func TestUploadStep(t *testing.T) {
	t.Parallel()

	t.Run("uploads with the job's credentials", func(t *testing.T) {
		t.Parallel()

		up := &fakeUploader{}
		job := NewJob(model.FileHandle{Name: "A.jpg"}, "b")
		job.Credentials = testCreds("images/2.jpg")

		if err := NewUploadStep(up).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.ObjectKey != "images/2.jpg" {
			t.Errorf("expected object key images/2.jpg, got %q", job.ObjectKey)
		}
		if up.seen.Fields["policy"] != "p" {
			t.Error("expected uploader to receive the job's fields")
		}
	})

	t.Run("fails without credentials", func(t *testing.T) {
		t.Parallel()

		err := NewUploadStep(&fakeUploader{}).Do(context.Background(), NewJob(model.FileHandle{}, "b"))
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})
}

func TestDetectStep(t *testing.T) {
	t.Parallel()

	det := &fakeDetector{result: &model.DetectionResult{S3URL: "s3://b/images/3.jpg"}}
	job := NewJob(model.FileHandle{Name: "C.jpg"}, "tuw-dic-ex3")
	job.ObjectKey = "images/3.jpg"

	if err := NewDetectStep(det).Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(det.calls) != 1 || det.calls[0] != "tuw-dic-ex3|images/3.jpg|C.jpg" {
		t.Errorf("unexpected detect calls %v", det.calls)
	}
	if job.Result == nil || job.Result.S3URL != "s3://b/images/3.jpg" {
		t.Errorf("unexpected result %+v", job.Result)
	}
}

func TestNewUploadPipeline(t *testing.T) {
	t.Parallel()

	p := NewUploadPipeline(&fakeSource{}, &fakeUploader{}, &fakeDetector{})
	names := p.StepNames()
	if len(names) != 3 || names[0] != "credentials" || names[1] != "upload" || names[2] != "detect" {
		t.Errorf("unexpected steps %v", names)
	}
}
