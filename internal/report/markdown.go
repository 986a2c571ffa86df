package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// MarkdownWriter outputs reports in Markdown, built with nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *model.BatchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, report)
	w.writeSummary(md, summary)
	w.writeLabels(md, summary)
	w.writeFiles(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.BatchReport) {
	md.H1("Object Detection Report")
	md.PlainText("")

	rows := make([][]string, 0, 4)
	if report.ID != 0 {
		rows = append(rows, []string{"Batch", "#" + strconv.FormatInt(report.ID, 10)})
	}
	rows = append(rows,
		[]string{"Bucket", "`" + report.Bucket + "`"},
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Total Time", strconv.FormatFloat(report.Elapsed.Seconds(), 'f', 3, 64) + "s"},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{"✅ Succeeded", strconv.Itoa(s.Succeeded)},
		{"❌ Failed", strconv.Itoa(s.Failed)},
	}
	for _, st := range sortedStages(s.FailuresByStage) {
		rows = append(rows, []string{"&nbsp;&nbsp;at " + stageTitle(st), strconv.Itoa(s.FailuresByStage[st])})
	}
	rows = append(rows, []string{"**Files**", "**" + strconv.Itoa(s.Files) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Files == 0:
		md.Note("No files were uploaded.")
	case s.Succeeded == 0:
		md.Cautionf("All %d file(s) failed.", s.Failed)
	case s.Failed > 0:
		md.Warningf("%d of %d file(s) failed.", s.Failed, s.Files)
	default:
		md.Tip("All files were processed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeLabels(md *markdown.Markdown, s *Summary) {
	md.H2("Detected Objects")
	md.PlainText("")

	if len(s.Labels) == 0 {
		md.PlainText("No objects detected.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Detections by Label"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, len(s.Labels))
	for i, lc := range s.Labels {
		chart.LabelAndIntValue(titleLabel(lc.Label), uint64(lc.Count)) //nolint:gosec // counts are never negative
		rows[i] = []string{titleLabel(lc.Label), strconv.Itoa(lc.Count), model.FormatAccuracy(lc.MaxAccuracy)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Label", "Count", "Best Accuracy"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, report *model.BatchReport) {
	md.H2("Files")
	md.PlainText("")

	if len(report.Outcomes) == 0 {
		md.PlainText("No files.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		if o.Succeeded() {
			rows[i] = []string{
				o.File.Name,
				"✅",
				o.Result.S3URL,
				truncateString(o.Result.ObjectsString(), 80),
			}
			continue
		}
		rows[i] = []string{
			o.File.Name,
			"❌ " + stageTitle(o.FailedStage),
			"-",
			truncateString(o.Error, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"File", "Result", "S3 URL", "Details"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by objdetect*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
