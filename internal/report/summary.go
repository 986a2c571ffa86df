package report

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// Summary condenses a BatchReport to counts.
type Summary struct {
	Files           int                 `json:"files"`
	Succeeded       int                 `json:"succeeded"`
	Failed          int                 `json:"failed"`
	FailuresByStage map[model.Stage]int `json:"failures_by_stage,omitempty"`
	Labels          []model.LabelCount  `json:"labels,omitempty"`
	Objects         int                 `json:"objects"`
	Elapsed         time.Duration       `json:"elapsed"`
}

// NewSummary computes the summary of report.
func NewSummary(report *model.BatchReport) *Summary {
	s := &Summary{
		Files:     len(report.Outcomes),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		Labels:    report.LabelCounts(),
		Elapsed:   report.Elapsed,
	}
	if s.Failed > 0 {
		s.FailuresByStage = report.FailuresByStage()
	}
	for _, lc := range s.Labels {
		s.Objects += lc.Count
	}
	return s
}

// stageOrder lists stages in pipeline order.
var stageOrder = []model.Stage{model.StageCredentials, model.StageUpload, model.StageDetect}

// sortedStages returns the stages present in counts in pipeline order,
// followed by unknown ones alphabetically.
func sortedStages(counts map[model.Stage]int) []model.Stage {
	out := make([]model.Stage, 0, len(counts))
	known := make(map[model.Stage]bool, len(stageOrder))
	for _, st := range stageOrder {
		known[st] = true
		if counts[st] > 0 {
			out = append(out, st)
		}
	}
	var rest []model.Stage
	for st := range counts {
		if !known[st] {
			rest = append(rest, st)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// titleLabel renders a detector label for display: "traffic light" becomes
// "Traffic Light".
func titleLabel(label string) string {
	if strings.TrimSpace(label) == "" {
		return "(unlabelled)"
	}
	return cases.Title(language.English).String(label)
}

// stageTitle names a failure stage for display.
func stageTitle(st model.Stage) string {
	if st == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(string(st))
}
