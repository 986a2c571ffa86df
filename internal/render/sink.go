package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// Sink receives what the result area shows. Implementations must be safe
// for concurrent use: fragments arrive from many goroutines while the
// stopwatch updates the timer.
type Sink interface {
	// Append adds a fragment after all previous ones. Nothing is ever
	// removed or replaced.
	Append(f model.Fragment) error

	// SetState updates the border state.
	SetState(s model.BatchState)

	// SetTimer replaces the elapsed-time text.
	SetTimer(text string)
}

// MultiSink fans every call out to several sinks.
type MultiSink []Sink

// Append appends to every sink and returns the first error.
func (m MultiSink) Append(f model.Fragment) error {
	var first error
	for _, s := range m {
		if err := s.Append(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetState forwards to every sink.
func (m MultiSink) SetState(st model.BatchState) {
	for _, s := range m {
		s.SetState(st)
	}
}

// SetTimer forwards to every sink.
func (m MultiSink) SetTimer(text string) {
	for _, s := range m {
		s.SetTimer(text)
	}
}

// TextSink writes one line per fragment, suited to a terminal. Intermediate
// timer values are not printed; the final one is written when the batch
// reaches Done.
type TextSink struct {
	mu    sync.Mutex
	w     io.Writer
	timer string
	state model.BatchState
}

// NewTextSink returns a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Append writes the fragment's text line.
func (t *TextSink) Append(f model.Fragment) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintln(t.w, f.Text)
	return err
}

// SetState records the state and prints the final time on Done.
func (t *TextSink) SetState(s model.BatchState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s == model.StateDone && t.state != model.StateDone && t.timer != "" {
		_, _ = fmt.Fprintln(t.w, t.timer)
	}
	t.state = s
}

// SetTimer keeps the latest timer text.
func (t *TextSink) SetTimer(text string) {
	t.mu.Lock()
	t.timer = text
	t.mu.Unlock()
}

// State returns the last state set.
func (t *TextSink) State() model.BatchState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
