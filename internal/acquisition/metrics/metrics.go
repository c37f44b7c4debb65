package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent prompt flows.
type Metrics struct {
	PromptOutcomes *prometheus.CounterVec
	PromptDuration *prometheus.HistogramVec
}

// New registers and returns acquisition metrics collectors.
func New() *Metrics {
	return &Metrics{
		PromptOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memebot_consent_prompts_total",
			Help: "Total number of consent prompts, labeled by surface and outcome",
		}, []string{"surface", "outcome"}),
		PromptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memebot_consent_prompt_duration_seconds",
			Help:    "Time from prompt presentation to resolution in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"surface"}),
	}
}

func (m *Metrics) IncrementOutcome(surface, outcome string) {
	m.PromptOutcomes.WithLabelValues(surface, outcome).Inc()
}

func (m *Metrics) ObserveDuration(surface string, seconds float64) {
	m.PromptDuration.WithLabelValues(surface).Observe(seconds)
}
