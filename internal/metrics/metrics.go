// Package metrics exposes run counters for the batch runner. All methods are
// safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"koosseis/internal"
)

const namespace = "koosseis"

type Metrics struct {
	registry *prometheus.Registry

	recordsTotal          *prometheus.CounterVec
	outcomesTotal         *prometheus.CounterVec
	retriesTotal          prometheus.Counter
	checkpointErrorsTotal prometheus.Counter
	sinkErrorsTotal       prometheus.Counter
	normalizeDuration     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Source records seen by the runner, by stage.",
		},
		[]string{"stage"}, // stage: processed, skipped, attempted, dispatched
	)
	m.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Recorded outcomes by result and failure kind.",
		},
		[]string{"result", "kind"},
	)
	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "normalizer_retries_total",
		Help:      "Normalizer requests retried after a rate-limit rejection.",
	})
	m.checkpointErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoint_write_errors_total",
		Help:      "Checkpoint writes that failed.",
	})
	m.sinkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_errors_total",
		Help:      "Successes the persistence sink could not store.",
	})
	m.normalizeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "normalize_duration_seconds",
		Help:      "Wall time of one normalization including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	m.registry.MustRegister(
		m.recordsTotal,
		m.outcomesTotal,
		m.retriesTotal,
		m.checkpointErrorsTotal,
		m.sinkErrorsTotal,
		m.normalizeDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError})
}

func (m *Metrics) Record(stage string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) Outcome(o internal.Outcome) {
	if m == nil {
		return
	}
	switch {
	case o.Success != nil:
		m.outcomesTotal.WithLabelValues("success", "").Inc()
	case o.Failure != nil:
		m.outcomesTotal.WithLabelValues("failure", string(o.Failure.Kind)).Inc()
	}
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) CheckpointError() {
	if m == nil {
		return
	}
	m.checkpointErrorsTotal.Inc()
}

func (m *Metrics) SinkError() {
	if m == nil {
		return
	}
	m.sinkErrorsTotal.Inc()
}

func (m *Metrics) ObserveNormalize(d time.Duration) {
	if m == nil {
		return
	}
	m.normalizeDuration.Observe(d.Seconds())
}
