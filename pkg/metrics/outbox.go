package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts outbox deliveries by event type and outcome
// (published, retry, dead_lettered).
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(deliveries)
	return &OutboxMetrics{deliveries: deliveries}
}

func (o *OutboxMetrics) IncDelivery(eventType, outcome string) {
	if o == nil || o.deliveries == nil {
		return
	}
	o.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
