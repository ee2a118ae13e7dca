package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	digestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regwatch_digest_runs_total",
		Help: "Total digest runs by outcome",
	}, []string{"outcome"}) // outcome: "ok", "error"

	digestDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regwatch_digest_dispatches_total",
		Help: "Digest sends by backend and result",
	}, []string{"backend", "result"}) // result: "sent", "failed"

	digestSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regwatch_digest_subscribers_skipped_total",
		Help: "Subscribers skipped because they opted out of notifications",
	})

	digestMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regwatch_digest_matches",
		Help:    "Matching items per built digest, before the render cap",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
	})

	digestRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regwatch_digest_run_duration_seconds",
		Help:    "Duration of full digest runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// ObserveRun records a finished run
func ObserveRun(err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	digestRuns.WithLabelValues(outcome).Inc()
	digestRunDuration.Observe(d.Seconds())
}

// ObserveDispatch records one send attempt
func ObserveDispatch(backend string, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	digestDispatches.WithLabelValues(backend, result).Inc()
}

// ObserveSkipped records an opted-out subscriber
func ObserveSkipped() {
	digestSkipped.Inc()
}

// ObserveMatches records the true match count of a built digest
func ObserveMatches(n int) {
	digestMatches.Observe(float64(n))
}
