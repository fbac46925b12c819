// Package observability defines the Prometheus metrics for revisions.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sitecraft"

// Revision outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeRejected         = "rejected"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeError            = "error"
)

// Generation stages.
const (
	StageEnhance  = "enhance"
	StageGenerate = "generate"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	RevisionsTotal     *prometheus.CounterVec
	RollbacksTotal     prometheus.Counter
	RefundsTotal       *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
}

// NewMetrics registers the revision metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RevisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "revision",
			Name:      "attempts_total",
			Help:      "Revision attempts by outcome.",
		}, []string{"outcome"}),
		RollbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "revision",
			Name:      "rollbacks_total",
			Help:      "Successful rollbacks to a stored version.",
		}),
		RefundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "refunds_total",
			Help:      "Revision charges returned, by path (inline or deferred).",
		}, []string{"path"}),
		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Latency of generation calls by stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"stage"}),
	}
}

func (m *Metrics) ObserveRevision(outcome string) {
	if m == nil {
		return
	}
	m.RevisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.RollbacksTotal.Inc()
}

func (m *Metrics) ObserveRefund(path string) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveGeneration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationDuration.WithLabelValues(stage).Observe(d.Seconds())
}
