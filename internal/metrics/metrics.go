package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the domain counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registerOnce sync.Once

	votes            *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	evaluations      *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	confirmLatency   *prometheus.HistogramVec
	queueEnqueueErrs prometheus.Counter
}

// Register registers the collectors with registry. Subsequent calls are no-ops.
func (m *Metrics) Register(registry prometheus.Registerer) {
	if m == nil || registry == nil {
		return
	}

	m.registerOnce.Do(func() {
		factory := promauto.With(registry)

		m.votes = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_votes_total",
			Help: "Vote ledger mutations by action (cast, changed, removed)",
		}, []string{"action"})

		m.transitions = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_status_transitions_total",
			Help: "Project status transitions applied",
		}, []string{"from", "to"})

		m.evaluations = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_evaluations_total",
			Help: "Status evaluator runs by outcome",
		}, []string{"result"})

		m.settlements = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_settlements_total",
			Help: "Finalized settlement ledger entries by type and status",
		}, []string{"type", "status"})

		m.confirmLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fundgate_settlement_confirm_seconds",
			Help:    "Time from settlement submission to a final confirmation answer",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"type"})

		m.queueEnqueueErrs = factory.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_evaluation_enqueue_errors_total",
			Help: "Evaluation tasks that could not be handed to the queue",
		})
	})
}

func (m *Metrics) ready() bool {
	return m != nil && m.votes != nil
}

func (m *Metrics) IncVote(action string) {
	if m.ready() {
		m.votes.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m.ready() {
		m.transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncEvaluation(result string) {
	if m.ready() {
		m.evaluations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveSettlement(txType, status string, elapsed time.Duration) {
	if m.ready() {
		m.settlements.WithLabelValues(txType, status).Inc()
		m.confirmLatency.WithLabelValues(txType).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) IncEnqueueError() {
	if m.ready() {
		m.queueEnqueueErrs.Inc()
	}
}
