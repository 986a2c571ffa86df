package report

import (
	"io"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// Writer writes a batch report in one format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.BatchReport) (int, error)
}

// MultiWriter writes to several Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a Writer writing to all writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer.
func (m *MultiWriter) Write(report *model.BatchReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
