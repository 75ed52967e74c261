// Package metrics provides Prometheus instrumentation for the moderation
// relay pipeline. It exposes counters for submissions, verdicts, and
// enforcement actions, a gauge for outstanding ledger entries, and a
// histogram for sweep duration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SubmissionsTotal counts moderation submissions, labeled by platform
	// and result ("ok" or "error").
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumio_moderation_submissions_total",
		Help: "Total number of messages submitted for moderation",
	}, []string{"platform", "result"})

	// VerdictsTotal counts parsed oracle verdicts, labeled by decision
	// ("allow" or "reject").
	VerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumio_moderation_verdicts_total",
		Help: "Total number of verdicts received from the oracle",
	}, []string{"decision"})

	// FetchErrorsTotal counts definite fetch failures that dropped a
	// ledger entry.
	FetchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumio_moderation_fetch_errors_total",
		Help: "Total number of verdict fetches that failed permanently",
	})

	// PendingRequests tracks the current number of ledger entries
	// awaiting a verdict.
	PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lumio_moderation_pending_requests",
		Help: "Current number of moderation requests awaiting a verdict",
	})

	// EnforcementsTotal counts enforcement sub-steps, labeled by action
	// ("delete", "ban", "notice") and outcome ("ok" or "error").
	EnforcementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumio_enforcement_actions_total",
		Help: "Total number of enforcement sub-steps attempted",
	}, []string{"action", "outcome"})

	// SweepDuration records verdict poller sweep duration in seconds.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lumio_poller_sweep_duration_seconds",
		Help:    "Verdict poller sweep duration in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		VerdictsTotal,
		FetchErrorsTotal,
		PendingRequests,
		EnforcementsTotal,
		SweepDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
