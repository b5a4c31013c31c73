package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tankwatch"

// Metrics holds every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	PointFailures   *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
	ReadingsTrimmed prometheus.Counter
	Level           *prometheus.GaugeVec
	ReportsTotal    *prometheus.CounterVec
	TriggersDropped *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with Go runtime and
// process collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_cycles_total",
				Help:      "Capture cycles by outcome status",
			},
			[]string{"status"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_cycle_duration_seconds",
				Help:      "Wall time of a capture cycle",
				Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
			},
		),
		PointFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "point_extraction_failures_total",
				Help:      "Points stored with the failure marker",
			},
			[]string{"tag"},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "capture_last_success_timestamp_seconds",
				Help:      "Unix time of the last committed capture batch",
			},
		),
		ReadingsTrimmed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_trimmed_total",
				Help:      "Readings removed by retention",
			},
		),
		Level: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tank_level_meters",
				Help:      "Latest parsed level per monitored point",
			},
			[]string{"tag", "site"},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Digest reports by outcome",
			},
			[]string{"status"},
		),
		TriggersDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_triggers_dropped_total",
				Help:      "Triggers discarded because the job was still running",
			},
			[]string{"job"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job run time",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"job", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route pattern and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.PointFailures,
		m.LastSuccess,
		m.ReadingsTrimmed,
		m.Level,
		m.ReportsTotal,
		m.TriggersDropped,
		m.JobDuration,
		m.HTTPRequests,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleFinished records one capture cycle. committedAt is zero when the
// cycle did not commit.
func (m *Metrics) CycleFinished(status string, d time.Duration, failedTags []string, trimmed int64, committedAt time.Time) {
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(d.Seconds())
	for _, tag := range failedTags {
		m.PointFailures.WithLabelValues(tag).Inc()
	}
	if trimmed > 0 {
		m.ReadingsTrimmed.Add(float64(trimmed))
	}
	if !committedAt.IsZero() {
		m.LastSuccess.Set(float64(committedAt.Unix()))
	}
}

// SetLevel records the latest parsed level of a point.
func (m *Metrics) SetLevel(tag, site string, value float64) {
	m.Level.WithLabelValues(tag, site).Set(value)
}

// ReportFinished counts a digest attempt.
func (m *Metrics) ReportFinished(status string) {
	m.ReportsTotal.WithLabelValues(status).Inc()
}

// TriggerDropped counts a coalesced trigger.
func (m *Metrics) TriggerDropped(job string) {
	m.TriggersDropped.WithLabelValues(job).Inc()
}

// JobFinished records a scheduled job run.
func (m *Metrics) JobFinished(job string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobDuration.WithLabelValues(job, result).Observe(d.Seconds())
}

// HTTPRequest counts an API request.
func (m *Metrics) HTTPRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
