package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// SimpleWriter outputs a plain text batch summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every file, not only the failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists successful files as well.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *model.BatchReport) (int, error) {
	var sb strings.Builder
	summary := NewSummary(report)

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, summary)
	w.writeLabels(&sb, summary)
	w.writeFiles(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.BatchReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      OBJECT DETECTION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if report.ID != 0 {
		sb.WriteString(fmt.Sprintf("Batch:      #%d\n", report.ID))
	}
	sb.WriteString(fmt.Sprintf("Bucket:     %s\n", report.Bucket))
	sb.WriteString(fmt.Sprintf("Started:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Total Time: %.3fs\n", report.Elapsed.Seconds()))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s *Summary) {
	section(sb, "SUMMARY")

	sb.WriteString(fmt.Sprintf("  FILES:     %d\n", s.Files))
	sb.WriteString(fmt.Sprintf("  SUCCEEDED: %d\n", s.Succeeded))
	sb.WriteString(fmt.Sprintf("  FAILED:    %d\n", s.Failed))
	for _, st := range sortedStages(s.FailuresByStage) {
		sb.WriteString(fmt.Sprintf("    at %-12s %d\n", string(st)+":", s.FailuresByStage[st]))
	}
	sb.WriteString(fmt.Sprintf("  OBJECTS:   %d\n", s.Objects))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLabels(sb *strings.Builder, s *Summary) {
	if len(s.Labels) == 0 {
		return
	}

	section(sb, "LABELS")
	for _, lc := range s.Labels {
		sb.WriteString(fmt.Sprintf("  %-24s x%-4d best %s\n",
			titleLabel(lc.Label), lc.Count, model.FormatAccuracy(lc.MaxAccuracy)))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFiles(sb *strings.Builder, report *model.BatchReport) {
	if report.Failed() == 0 && !w.verbose {
		return
	}

	section(sb, "FILES")
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			if !w.verbose {
				continue
			}
			sb.WriteString(fmt.Sprintf("  [+] %s\n", o.File.Name))
			sb.WriteString(fmt.Sprintf("      S3 URL:  %s\n", o.Result.S3URL))
			sb.WriteString(fmt.Sprintf("      Objects: %s\n", o.Result.ObjectsString()))
			if cam := o.File.Metadata.Camera(); cam != "" {
				sb.WriteString(fmt.Sprintf("      Camera:  %s\n", cam))
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("  [x] %s\n", o.File.Name))
		sb.WriteString(fmt.Sprintf("      Stage: %s\n", stageTitle(o.FailedStage)))
		sb.WriteString(fmt.Sprintf("      Error: %s\n", o.Error))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
