package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gostly"

// PipelineMetrics covers the inbound message handler. A zero value is a no-op.
type PipelineMetrics struct {
	outcomes        *prometheus.CounterVec
	completion      *prometheus.HistogramVec
	sideEffectFails *prometheus.CounterVec
	escalations     *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline collectors on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbound_messages_total",
		Help:      "Inbound guest messages by terminal outcome.",
	}, []string{"outcome"})
	completion := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion API calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 12, 20},
	}, []string{"result"})
	sideEffectFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "side_effect_failures_total",
		Help:      "Best-effort tasks that exhausted their retries.",
	}, []string{"task"})
	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_total",
		Help:      "Escalations by trigger.",
	}, []string{"trigger"})
	reg.MustRegister(outcomes, completion, sideEffectFails, escalations)
	return &PipelineMetrics{
		outcomes:        outcomes,
		completion:      completion,
		sideEffectFails: sideEffectFails,
		escalations:     escalations,
	}
}

func (m *PipelineMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PipelineMetrics) ObserveCompletion(result string, d time.Duration) {
	if m == nil || m.completion == nil {
		return
	}
	m.completion.WithLabelValues(normalizeLabel(result)).Observe(d.Seconds())
}

func (m *PipelineMetrics) IncSideEffectFailure(task string) {
	if m == nil || m.sideEffectFails == nil {
		return
	}
	m.sideEffectFails.WithLabelValues(normalizeLabel(task)).Inc()
}

func (m *PipelineMetrics) IncEscalation(trigger string) {
	if m == nil || m.escalations == nil {
		return
	}
	m.escalations.WithLabelValues(normalizeLabel(trigger)).Inc()
}
