package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/attest-network/attestor/metrics"
)

// Metrics tracks lifecycle health. A nil *Metrics is a no-op, which
// keeps test wiring small.
type Metrics struct {
	outcomes       *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	replacements   prometheus.Histogram
	degradedRounds prometheus.Counter
}

func NewMetrics(reg *metrics.ComponentRegistry) *Metrics {
	return &Metrics{
		outcomes: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "outcomes_total",
			Help: "Completed lifecycles by claim kind and outcome.",
		}, []string{"kind", "outcome"}),
		stageDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Wall time spent per pipeline stage.",
			Buckets: metrics.DurationBuckets,
		}, []string{"stage"}),
		replacements: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "submission_replacements",
			Help:    "Replacement transactions issued per submission.",
			Buckets: metrics.CountBuckets,
		}),
		degradedRounds: reg.NewCounter(prometheus.CounterOpts{
			Name: "degraded_rounds_total",
			Help: "Rounds resolved from static fallback epoch constants.",
		}),
	}
}

func (m *Metrics) observeOutcome(kind ClaimKind, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.outcomes.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeReplacements(n int) {
	if m == nil {
		return
	}
	m.replacements.Observe(float64(n))
}

func (m *Metrics) observeDegradedRound() {
	if m == nil {
		return
	}
	m.degradedRounds.Inc()
}
