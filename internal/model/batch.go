package model

import (
	"sort"
	"time"
)

// Outcome records what happened to one file of a batch.
type Outcome struct {
	// Index is the file's position in the submitted batch.
	Index int `json:"index"`

	File FileHandle `json:"file"`

	// ObjectKey is set once credentials were fetched.
	ObjectKey string `json:"object_key,omitempty"`

	// Result is set on success.
	Result *DetectionResult `json:"result,omitempty"`

	// FailedStage and Error are set on failure.
	FailedStage Stage  `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded reports whether the file got a detection result.
func (o Outcome) Succeeded() bool {
	return o.Error == "" && o.Result != nil
}

// BatchReport is the aggregate of one upload run. Outcomes are in the order
// the files were submitted, not the order they completed.
type BatchReport struct {
	ID        int64         `json:"id,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Bucket    string        `json:"bucket"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Succeeded counts files that got a result.
func (b *BatchReport) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts files that did not.
func (b *BatchReport) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}

// FailuresByStage counts failed files per stage.
func (b *BatchReport) FailuresByStage() map[Stage]int {
	counts := make(map[Stage]int)
	for _, o := range b.Outcomes {
		if !o.Succeeded() {
			counts[o.FailedStage]++
		}
	}
	return counts
}

// LabelCount is the number of detections of one label across a batch.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	// MaxAccuracy is the best confidence seen for the label.
	MaxAccuracy float64 `json:"max_accuracy"`
}

// LabelCounts aggregates detections by label, most frequent first, ties
// broken by label.
func (b *BatchReport) LabelCounts() []LabelCount {
	byLabel := make(map[string]*LabelCount)
	for _, o := range b.Outcomes {
		if o.Result == nil {
			continue
		}
		for _, obj := range o.Result.Objects {
			lc, ok := byLabel[obj.Label]
			if !ok {
				lc = &LabelCount{Label: obj.Label}
				byLabel[obj.Label] = lc
			}
			lc.Count++
			if obj.Accuracy > lc.MaxAccuracy {
				lc.MaxAccuracy = obj.Accuracy
			}
		}
	}

	counts := make([]LabelCount, 0, len(byLabel))
	for _, lc := range byLabel {
		counts = append(counts, *lc)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})
	return counts
}
