package model

import (
	"encoding/json"
	"testing"
)

func TestBatchReport_Counts(t *testing.T) {
	t.Parallel()

	b := &BatchReport{Outcomes: []Outcome{
		{File: FileHandle{Name: "a.jpg"}, Result: &DetectionResult{Objects: []DetectedObject{
			{Label: "cat", Accuracy: 0.9},
			{Label: "dog", Accuracy: 0.6},
		}}},
		{File: FileHandle{Name: "b.jpg"}, Result: &DetectionResult{Objects: []DetectedObject{
			{Label: "cat", Accuracy: 0.95},
		}}},
		{File: FileHandle{Name: "c.jpg"}, FailedStage: StageCredentials, Error: "HTTP error! status: 500"},
		{File: FileHandle{Name: "d.jpg"}, FailedStage: StageUpload, Error: "HTTP error! status: 403 response: x"},
	}}

	if b.Succeeded() != 2 {
		t.Errorf("expected 2 succeeded, got %d", b.Succeeded())
	}
	if b.Failed() != 2 {
		t.Errorf("expected 2 failed, got %d", b.Failed())
	}

	stages := b.FailuresByStage()
	if stages[StageCredentials] != 1 || stages[StageUpload] != 1 {
		t.Errorf("unexpected failures by stage: %v", stages)
	}

	labels := b.LabelCounts()
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(labels))
	}
	if labels[0].Label != "cat" || labels[0].Count != 2 || labels[0].MaxAccuracy != 0.95 {
		t.Errorf("unexpected first label: %+v", labels[0])
	}
	if labels[1].Label != "dog" || labels[1].Count != 1 {
		t.Errorf("unexpected second label: %+v", labels[1])
	}
}

func TestBatchState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state     BatchState
		wantName  string
		wantColor string
	}{
		{StateIdle, "idle", ""},
		{StateRunning, "running", "orange"},
		{StateDone, "done", "green"},
		{BatchState(9), "unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			t.Parallel()
			if tt.state.String() != tt.wantName {
				t.Errorf("expected %q, got %q", tt.wantName, tt.state.String())
			}
			if tt.state.Color() != tt.wantColor {
				t.Errorf("expected color %q, got %q", tt.wantColor, tt.state.Color())
			}
		})
	}

	t.Run("marshals by name", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(map[string]BatchState{"state": StateDone})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"state":"done"}` {
			t.Errorf("unexpected JSON %s", data)
		}
	})
}

func TestImageMetadata(t *testing.T) {
	t.Parallel()

	if !(ImageMetadata{}).IsZero() {
		t.Error("expected empty metadata to be zero")
	}

	m := ImageMetadata{CameraMake: "Canon", CameraModel: "EOS 5D"}
	if m.IsZero() {
		t.Error("expected metadata with camera to be non-zero")
	}
	if m.Camera() != "Canon EOS 5D" {
		t.Errorf("expected 'Canon EOS 5D', got %q", m.Camera())
	}
	if (ImageMetadata{CameraModel: "X100"}).Camera() != "X100" {
		t.Error("expected model only")
	}
}

func TestUploadCredentials_ObjectKey(t *testing.T) {
	t.Parallel()

	c := UploadCredentials{Fields: map[string]string{"key": "images/x.jpg"}}
	if c.ObjectKey() != "images/x.jpg" {
		t.Errorf("expected images/x.jpg, got %q", c.ObjectKey())
	}
	if (UploadCredentials{}).ObjectKey() != "" {
		t.Error("expected empty key for empty fields")
	}
}
