package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scoringDurationBuckets     = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}
	maintenanceDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}
)

// Metrics holds the Prometheus instruments for the engine.
//
// All Observe methods are safe to call on a nil *Metrics, so components
// constructed without metrics need no guards.
type Metrics struct {
	// Scoring
	ScoringRequestsTotal *prometheus.CounterVec
	ScoringDuration      prometheus.Histogram
	CandidateCacheTotal  *prometheus.CounterVec

	// Adjustment
	AdjustmentsTotal *prometheus.CounterVec
	AdjustStepsAdded prometheus.Counter

	// Outcomes
	OutcomesTotal *prometheus.CounterVec

	// Maintenance
	MaintenanceRunsTotal    *prometheus.CounterVec
	MaintenanceDuration     prometheus.Histogram
	MaintenanceChangesTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all instruments with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScoringRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_scoring_requests_total",
			Help: "Total relevance scoring requests by result.",
		}, []string{"result"}),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrolearn_scoring_duration_seconds",
			Help:    "Relevance scoring latency in seconds.",
			Buckets: scoringDurationBuckets,
		}),
		CandidateCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_candidate_cache_total",
			Help: "Candidate cache lookups by result (hit|miss).",
		}, []string{"result"}),

		AdjustmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_adjustments_total",
			Help: "Workflow adjustment requests by final state.",
		}, []string{"state"}),
		AdjustStepsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retrolearn_adjustment_steps_added_total",
			Help: "Steps added by committed adjustments.",
		}),

		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_outcomes_total",
			Help: "Recorded learning outcomes by outcome.",
		}, []string{"outcome"}),

		MaintenanceRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_maintenance_runs_total",
			Help: "Maintenance runs by result (ok|skipped|error).",
		}, []string{"result"}),
		MaintenanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrolearn_maintenance_duration_seconds",
			Help:    "Maintenance run duration in seconds.",
			Buckets: maintenanceDurationBuckets,
		}),
		MaintenanceChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrolearn_maintenance_changes_total",
			Help: "Learnings changed by maintenance, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.ScoringRequestsTotal,
		m.ScoringDuration,
		m.CandidateCacheTotal,
		m.AdjustmentsTotal,
		m.AdjustStepsAdded,
		m.OutcomesTotal,
		m.MaintenanceRunsTotal,
		m.MaintenanceDuration,
		m.MaintenanceChangesTotal,
	)
	return m
}

// ObserveScoring records one scoring request.
func (m *Metrics) ObserveScoring(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScoringRequestsTotal.WithLabelValues(result).Inc()
	m.ScoringDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCandidateCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CandidateCacheTotal.WithLabelValues(result).Inc()
}

// ObserveAdjustment records the terminal state of one adjustment request.
func (m *Metrics) ObserveAdjustment(state string, added int) {
	if m == nil {
		return
	}
	m.AdjustmentsTotal.WithLabelValues(state).Inc()
	if added > 0 {
		m.AdjustStepsAdded.Add(float64(added))
	}
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveMaintenance records a maintenance run and its per-kind change counts.
func (m *Metrics) ObserveMaintenance(result string, d time.Duration, changes map[string]int) {
	if m == nil {
		return
	}
	m.MaintenanceRunsTotal.WithLabelValues(result).Inc()
	m.MaintenanceDuration.Observe(d.Seconds())
	for kind, n := range changes {
		if n > 0 {
			m.MaintenanceChangesTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// Handler returns the HTTP handler exposing metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
