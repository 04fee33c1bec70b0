// Package metrics exposes prometheus counters for module runs, detections,
// indicator loading and feed downloads. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/platform/errors"
)

const namespace = "droidsweep"

// Outcome labels of a module run or feed download.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics groups the collectors of one run. Each instance owns its registry so
// concurrent runs and tests never share counters.
type Metrics struct {
	registry *prometheus.Registry

	ModulesRun        *prometheus.CounterVec
	Records           *prometheus.CounterVec
	Detections        *prometheus.CounterVec
	ModuleDuration    *prometheus.HistogramVec
	IndicatorKeywords *prometheus.GaugeVec
	IndicatorSkipped  prometheus.Counter
	FeedDownloads     *prometheus.CounterVec
	RunDuration       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ModulesRun: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_run_total",
				Help:      "Artifact modules executed, by module and status",
			},
			[]string{"module", "status"},
		),
		Records: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records parsed, by module",
			},
			[]string{"module"},
		),
		Detections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Detections produced, by alert level",
			},
			[]string{"level"},
		),
		ModuleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_duration_seconds",
				Help:      "Time spent parsing and checking one module",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"module"},
		),
		IndicatorKeywords: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "indicator_keywords",
				Help:      "Distinct indicator keywords loaded, by type",
			},
			[]string{"type"},
		),
		IndicatorSkipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "indicator_files_skipped_total",
				Help:      "Indicator files skipped because they were malformed",
			},
		),
		FeedDownloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_downloads_total",
				Help:      "Indicator feed downloads, by status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of the last full module run",
			},
		),
	}
}

// Registry returns the registry backing m, for export or inspection.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveModule records one module execution.
func (m *Metrics) ObserveModule(module string, records int, detections []domain.Detection, err error, took time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.ModulesRun.WithLabelValues(module, status).Inc()
	m.Records.WithLabelValues(module).Add(float64(records))
	m.ModuleDuration.WithLabelValues(module).Observe(took.Seconds())
	for _, d := range detections {
		m.Detections.WithLabelValues(d.Level.String()).Inc()
	}
}

// ObserveRun records the wall time of a full run.
func (m *Metrics) ObserveRun(took time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Set(took.Seconds())
}

// SetIndicators publishes keyword counts per type and the number of skipped files.
func (m *Metrics) SetIndicators(counts map[domain.IndicatorType]int, skipped int) {
	if m == nil {
		return
	}
	for t, n := range counts {
		m.IndicatorKeywords.WithLabelValues(t.String()).Set(float64(n))
	}
	m.IndicatorSkipped.Add(float64(skipped))
}

// FeedDownload counts one feed download attempt with the given status.
func (m *Metrics) FeedDownload(status string) {
	if m == nil {
		return
	}
	m.FeedDownloads.WithLabelValues(status).Inc()
}

// WriteTextfile writes every collector in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
