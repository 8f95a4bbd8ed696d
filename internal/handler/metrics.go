package handler

import (
	"errors"

	"github.com/m-lab/echoprobe/pkg/echo1"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo1_sessions_total",
			Help: "Number of echo1 sessions served, by result.",
		},
		[]string{"result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echo1_active_sessions",
			Help: "Number of echo1 sessions currently running.",
		},
	)
	sessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo1_sessions_expired_total",
			Help: "Number of echo1 sessions closed for exceeding their maximum lifetime.",
		},
	)
	probesEchoed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo1_probes_echoed_total",
			Help: "Number of probes echoed back to clients.",
		},
	)
	probeHoldTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echo1_probe_hold_seconds",
			Help:    "Time between receiving a probe and echoing it, including the requested delay.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
		},
	)
	acceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo1_accept_errors_total",
			Help: "Number of failed accept calls.",
		},
	)
	archiveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo1_archive_errors_total",
			Help: "Number of archival records that could not be written.",
		},
	)
)

// resultLabel returns the result label for a session that ended with err.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, echo1.ErrTimeout):
		return "timeout"
	case errors.Is(err, echo1.ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, echo1.ErrSequenceViolation):
		return "sequence-violation"
	case errors.Is(err, echo1.ErrConnection):
		return "connection-error"
	}
	return "error"
}
