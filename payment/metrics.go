package payment

import (
	"github.com/prometheus/client_golang/prometheus"

	"perun.network/perun-hub-backend/channel/types"
)

const metricsNamespace = "hubctl"

// Metrics counts the orchestrator's signing and hub traffic. A nil *Metrics
// records nothing.
type Metrics struct {
	signed      *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	submissions *prometheus.CounterVec
	syncRetries prometheus.Counter
}

// NewMetrics creates the orchestrator metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signed_updates_total",
			Help:      "Channel and thread updates signed by the client.",
		}, []string{"reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_updates_total",
			Help:      "Updates refused by the validation engine.",
		}, []string{"reason", "rule"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hub_submissions_total",
			Help:      "Signed update batches submitted to the hub.",
		}, []string{"result"}),
		syncRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sync_retries_total",
			Help:      "Failed sync attempts that were retried.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.signed, m.rejected, m.submissions, m.syncRetries)
	}
	return m
}

func (m *Metrics) signedUpdate(r types.Reason) {
	if m != nil {
		m.signed.WithLabelValues(r.String()).Inc()
	}
}

// signedThread counts thread states, which carry no update reason.
func (m *Metrics) signedThread() {
	if m != nil {
		m.signed.WithLabelValues("Thread").Inc()
	}
}

func (m *Metrics) rejection(r types.Reason, rule string) {
	if m != nil {
		m.rejected.WithLabelValues(r.String(), rule).Inc()
	}
}

func (m *Metrics) submission(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) syncRetry() {
	if m != nil {
		m.syncRetries.Inc()
	}
}
