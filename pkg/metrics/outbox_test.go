package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsCountsByEventAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncDelivery("payout_created", "published")
	m.IncDelivery("payout_created", "published")
	m.IncDelivery("payout_vote_cast", "retry")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("payout_created", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("payout_vote_cast", "retry")))
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncDelivery("payout_created", "published")
	NewOutboxMetrics(nil).IncDelivery("payout_created", "published")
}
