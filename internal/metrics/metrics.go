// Package metrics collects per-run download statistics with the Prometheus
// client library and can dump them in the node-exporter textfile format.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics were requested.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tanq16/ruget/internal/errcode"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	ResultSuccess   = "success"
	ResultRetryable = "retryable"
	ResultFatal     = "fatal"
)

// Collector owns a private registry so several collectors can coexist in
// one process (tests, embedded use).
type Collector struct {
	registry *prometheus.Registry

	// jobsTotal counts terminal job outcomes by status
	jobsTotal *prometheus.CounterVec
	// attemptsTotal counts individual request attempts by result
	attemptsTotal *prometheus.CounterVec
	// errorsTotal counts classified failures by code and class
	errorsTotal *prometheus.CounterVec
	// bytesTotal counts body bytes written to disk
	bytesTotal prometheus.Counter
	// jobDuration observes wall time from first attempt to terminal outcome
	jobDuration *prometheus.HistogramVec
	// inProgress is the number of jobs currently held by a worker
	inProgress prometheus.Gauge
}

// New builds a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Download jobs by terminal status.",
		},
		[]string{"status"},
	)
	c.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Request attempts by result.",
		},
		[]string{"result"},
	)
	c.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Classified failures by error code.",
		},
		[]string{"code", "class"},
	)
	c.bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Bytes written to destination files.",
	})
	c.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time per job including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		},
		[]string{"status"},
	)
	c.inProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_progress",
		Help:      "Jobs currently being processed by a worker.",
	})

	c.registry.MustRegister(
		c.jobsTotal,
		c.attemptsTotal,
		c.errorsTotal,
		c.bytesTotal,
		c.jobDuration,
		c.inProgress,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// JobStarted marks a job as picked up by a worker. The returned function
// must be called exactly once with the terminal status.
func (c *Collector) JobStarted() func(status string) {
	if c == nil {
		return func(string) {}
	}
	start := time.Now()
	c.inProgress.Inc()
	return func(status string) {
		c.inProgress.Dec()
		c.jobsTotal.WithLabelValues(status).Inc()
		c.jobDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) Attempt(result string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) Error(code errcode.Code) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(code.String(), code.Class().String()).Inc()
}

func (c *Collector) AddBytes(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesTotal.Add(float64(n))
}

// WriteFile atomically writes all metrics to path in the text exposition format.
func (c *Collector) WriteFile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
