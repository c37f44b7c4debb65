package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ChecksPassed      prometheus.Counter
	ChecksFailed      *prometheus.CounterVec
	ConsentsGranted   prometheus.Counter
	ConsentsRevoked   prometheus.Counter
	ConsentsDeleted   prometheus.Counter
	StoreLoadRepaired *prometheus.CounterVec
	SaveFailures      prometheus.Counter
	StoreLatency      *prometheus.HistogramVec
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ChecksPassed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memebot_consent_checks_passed_total",
			Help: "Total number of consent checks that passed",
		}),
		ChecksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memebot_consent_checks_failed_total",
			Help: "Total number of consent checks that failed, labeled by reason",
		}, []string{"reason"}),
		ConsentsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memebot_consents_granted_total",
			Help: "Total number of consents granted",
		}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memebot_consents_revoked_total",
			Help: "Total number of consents revoked",
		}),
		ConsentsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memebot_consents_deleted_total",
			Help: "Total number of consent records deleted",
		}),
		StoreLoadRepaired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memebot_consent_store_loads_total",
			Help: "Total number of store loads, labeled by parse outcome",
		}, []string{"status"}),
		SaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memebot_consent_store_save_failures_total",
			Help: "Total number of failed store saves",
		}),
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memebot_consent_store_operation_latency_seconds",
			Help:    "Latency of lock-guarded store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCheckPassed() {
	m.ChecksPassed.Inc()
}

func (m *Metrics) IncrementCheckFailed(reason string) {
	m.ChecksFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementGranted() {
	m.ConsentsGranted.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.ConsentsRevoked.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.ConsentsDeleted.Inc()
}

func (m *Metrics) ObserveLoad(status string) {
	m.StoreLoadRepaired.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementSaveFailure() {
	m.SaveFailures.Inc()
}

// ObserveStoreLatency records the latency of a lock-guarded operation.
func (m *Metrics) ObserveStoreLatency(operation string, durationSeconds float64) {
	m.StoreLatency.WithLabelValues(operation).Observe(durationSeconds)
}
