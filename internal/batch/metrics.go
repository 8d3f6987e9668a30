package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for batch execution.
type Metrics struct {
	// State machine transitions by target state
	Transitions *prometheus.CounterVec

	// Final document outcomes by outcome and error kind
	Outcomes *prometheus.CounterVec

	// Attempts spent per finished document
	Attempts prometheus.Histogram

	// Document tasks currently running
	InFlight prometheus.Gauge

	// Finished batches by status
	Batches *prometheus.CounterVec

	// Wall time of whole batches
	BatchDuration prometheus.Histogram

	// Notification deliveries that failed
	NotifyFailures prometheus.Counter
}

// NewMetrics creates batch metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_batch_transitions_total",
			Help: "Document state machine transitions by target state",
		}, []string{"state"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_batch_document_outcomes_total",
			Help: "Final document outcomes by outcome and error kind",
		}, []string{"outcome", "error_kind"}),

		Attempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "einvoice_batch_document_attempts",
			Help:    "Attempts spent per finished document",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "einvoice_batch_documents_in_flight",
			Help: "Document tasks currently running",
		}),

		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_batches_total",
			Help: "Finished batches by status",
		}, []string{"status"}),

		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "einvoice_batch_duration_seconds",
			Help:    "Duration of whole batches from registration to result",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}),

		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "einvoice_batch_notify_failures_total",
			Help: "Batch notifications that could not be delivered",
		}),
	}
}

// ObserveTransition records a state machine transition.
func (m *Metrics) ObserveTransition(t Transition) {
	if m != nil {
		m.Transitions.WithLabelValues(string(t.To)).Inc()
	}
}

// ObserveItem records a finished document.
func (m *Metrics) ObserveItem(r ItemResult) {
	if m != nil {
		m.Outcomes.WithLabelValues(string(r.Outcome), string(r.ErrorKind)).Inc()
		m.Attempts.Observe(float64(r.Attempts))
	}
}

// TaskStarted increments the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

// TaskFinished decrements the in-flight gauge.
func (m *Metrics) TaskFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

// ObserveBatch records a finished batch.
func (m *Metrics) ObserveBatch(status ResultStatus, d time.Duration) {
	if m != nil {
		m.Batches.WithLabelValues(string(status)).Inc()
		m.BatchDuration.Observe(d.Seconds())
	}
}

// IncrementNotifyFailures records an undelivered notification.
func (m *Metrics) IncrementNotifyFailures() {
	if m != nil {
		m.NotifyFailures.Inc()
	}
}
