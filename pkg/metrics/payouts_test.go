package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPayoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPayoutMetrics(reg)

	m.IncVoteCast("approve")
	m.IncVoteCast("approve")
	m.IncFinalized("rejected")
	m.AddSweepRows("finalized", 3)
	m.AddSweepRows("skipped", 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.votesCast.WithLabelValues("approve")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.finalized.WithLabelValues("rejected")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepRows.WithLabelValues("finalized")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.sweepRows.WithLabelValues("skipped")))
}

func TestPayoutMetricsNilSafe(t *testing.T) {
	var m *PayoutMetrics
	m.IncVoteCast("approve")
	m.IncFinalized("approved")
	m.AddSweepRows("failed", 1)

	unregistered := NewPayoutMetrics(nil)
	unregistered.IncVoteCast("reject")
}
