package render

import (
	"fmt"
	"sync"
	"time"
)

// TimerDisplay shows elapsed-time text. Every Sink is one.
type TimerDisplay interface {
	SetTimer(text string)
}

// FormatRunning renders an in-progress time, e.g. "Time: 1.234s".
func FormatRunning(d time.Duration) string {
	return fmt.Sprintf("Time: %.3fs", d.Seconds())
}

// FormatTotal renders the final time, e.g. "Total Time: 1.234s".
func FormatTotal(d time.Duration) string {
	return fmt.Sprintf("Total Time: %.3fs", d.Seconds())
}

// Stopwatch refreshes a TimerDisplay at a fixed interval while running.
type Stopwatch struct {
	display  TimerDisplay
	interval time.Duration

	mu      sync.Mutex
	start   time.Time
	stop    chan struct{}
	done    chan struct{}
	elapsed time.Duration
}

// NewStopwatch returns a stopped stopwatch. A non-positive interval
// defaults to 10ms.
func NewStopwatch(display TimerDisplay, interval time.Duration) *Stopwatch {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Stopwatch{display: display, interval: interval}
}

// Start begins ticking. Calling Start on a running stopwatch does nothing.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.start = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.start, s.stop, s.done)
}

func (s *Stopwatch) run(start time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.display.SetTimer(FormatRunning(now.Sub(start)))
		}
	}
}

// Stop halts ticking, shows the total time and returns it. No tick is
// delivered after Stop returns.
func (s *Stopwatch) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return s.elapsed
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	s.elapsed = time.Since(s.start)
	s.display.SetTimer(FormatTotal(s.elapsed))
	return s.elapsed
}
