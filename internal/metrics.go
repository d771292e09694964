package internal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds per-run counters on a private registry so a run can be
// exported to a node_exporter textfile when it finishes.
type Metrics struct {
	registry     *prometheus.Registry
	files        *prometheus.CounterVec
	bytesCopied  prometheus.Counter
	fileDuration prometheus.Histogram
	lastRun      prometheus.Gauge
	runDuration  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediasort_files_total",
				Help: "Files handled, by result",
			},
			[]string{"result"},
		),
		bytesCopied: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mediasort_bytes_copied_total",
				Help: "Bytes written to the destination",
			},
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mediasort_file_duration_seconds",
				Help:    "Time spent ingesting one file",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediasort_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediasort_last_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),
	}
}

// Observe records one file result.
func (m *Metrics) Observe(r Result) {
	m.files.WithLabelValues(r.Status.String()).Inc()
	if r.Status == StatusCopied {
		m.bytesCopied.Add(float64(r.Bytes))
	}
	if r.Status != StatusSkippedUnsupported {
		m.fileDuration.Observe(r.Duration.Seconds())
	}
}

// RunFinished records the end of a batch.
func (m *Metrics) RunFinished(d time.Duration) {
	m.lastRun.SetToCurrentTime()
	m.runDuration.Set(d.Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

