package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "objdetect"

// Result label values.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics holds the batch counters. A nil *Metrics records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	files         *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage", "result"}),
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_total",
			Help:      "Files processed, by result.",
		}, []string{"result"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "files_in_flight",
			Help:      "Files currently between credentials and detection.",
		}),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

func (m *Metrics) observeStage(stage string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, resultLabel(err)).Observe(d.Seconds())
}

func (m *Metrics) fileStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) fileFinished(err error) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.files.WithLabelValues(resultLabel(err)).Inc()
}
