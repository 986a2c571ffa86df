package pipeline

import (
	"context"
	"errors"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// ErrNoCredentials is returned when the upload step runs without a
// preceding credential step.
var ErrNoCredentials = errors.New("no upload credentials on job")

// CredentialSource yields fresh presigned POST credentials.
type CredentialSource interface {
	Fetch(ctx context.Context) (model.UploadCredentials, error)
}

// ObjectUploader posts a file with credentials and returns the object key.
type ObjectUploader interface {
	Upload(ctx context.Context, file model.FileHandle, creds model.UploadCredentials) (string, error)
}

// ObjectDetector runs detection on an uploaded object.
type ObjectDetector interface {
	Detect(ctx context.Context, bucket, key, fileName string) (*model.DetectionResult, error)
}

// CredentialStep fetches credentials for the job.
type CredentialStep struct {
	source CredentialSource
}

// NewCredentialStep returns a CredentialStep.
func NewCredentialStep(source CredentialSource) *CredentialStep {
	return &CredentialStep{source: source}
}

// Name returns the step name.
func (s *CredentialStep) Name() string {
	return string(model.StageCredentials)
}

// Do stores fresh credentials on the job.
func (s *CredentialStep) Do(ctx context.Context, job *Job) error {
	creds, err := s.source.Fetch(ctx)
	if err != nil {
		return err
	}
	job.Credentials = creds
	return nil
}

// UploadStep sends the file to the store.
type UploadStep struct {
	uploader ObjectUploader
}

// NewUploadStep returns an UploadStep.
func NewUploadStep(uploader ObjectUploader) *UploadStep {
	return &UploadStep{uploader: uploader}
}

// Name returns the step name.
func (s *UploadStep) Name() string {
	return string(model.StageUpload)
}

// Do uploads the file and records the object key.
func (s *UploadStep) Do(ctx context.Context, job *Job) error {
	if job.Credentials.URL == "" {
		return &model.UploadError{Err: ErrNoCredentials}
	}
	key, err := s.uploader.Upload(ctx, job.File, job.Credentials)
	if err != nil {
		return err
	}
	job.ObjectKey = key
	return nil
}

// DetectStep requests detection for the uploaded object.
type DetectStep struct {
	detector ObjectDetector
}

// NewDetectStep returns a DetectStep.
func NewDetectStep(detector ObjectDetector) *DetectStep {
	return &DetectStep{detector: detector}
}

// Name returns the step name.
func (s *DetectStep) Name() string {
	return string(model.StageDetect)
}

// Do stores the detection result on the job.
func (s *DetectStep) Do(ctx context.Context, job *Job) error {
	res, err := s.detector.Detect(ctx, job.Bucket, job.ObjectKey, job.File.Name)
	if err != nil {
		return err
	}
	job.Result = res
	return nil
}

// NewUploadPipeline returns the standard credentials, upload, detect
// pipeline.
func NewUploadPipeline(source CredentialSource, uploader ObjectUploader, detector ObjectDetector, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewCredentialStep(source),
		NewUploadStep(uploader),
		NewDetectStep(detector),
	)
	return p
}
