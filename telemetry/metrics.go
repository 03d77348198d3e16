// Package telemetry provides transfer metrics and tracing setup.
package telemetry

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/okx/soltransfer/engine"
)

const (
	statusConfirmed = "confirmed"
	statusFailed    = "failed"
	kindNone        = "none"
)

// Metrics records transfer outcomes in a private registry. It implements
// engine.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	TransfersTotal     *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	LamportsSent       prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soltransfer_transfers_total",
				Help: "Total number of transfers by terminal status",
			},
			[]string{"status", "kind"}, // kind: none, key_load, submission_rejected, ...
		),
		SubmissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soltransfer_submission_duration_seconds",
				Help:    "Time from submission to confirmation or failure",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"status"},
		),
		LamportsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "soltransfer_lamports_confirmed_total",
				Help: "Lamports moved by confirmed transfers",
			},
		),
	}
}

func (m *Metrics) Observe(o engine.Outcome) {
	status, kind := statusConfirmed, kindNone
	if !o.Confirmed() {
		status, kind = statusFailed, o.Kind()
	}

	m.TransfersTotal.WithLabelValues(status, kind).Inc()
	m.SubmissionDuration.WithLabelValues(status).Observe(o.Elapsed.Seconds())
	if o.Confirmed() {
		m.LamportsSent.Add(float64(o.Lamports))
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the collected metrics to a Prometheus Pushgateway, grouped by
// run id so concurrent runs do not overwrite each other.
func (m *Metrics) Push(url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		Push()
	if err != nil {
		return errors.Wrapf(err, "push metrics to %s", url)
	}
	return nil
}
