package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics counts voting engine outcomes.
type PayoutMetrics struct {
	votesCast *prometheus.CounterVec
	finalized *prometheus.CounterVec
	sweepRows *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	votesCast := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_votes_cast_total",
		Help: "Payout votes recorded, by vote type.",
	}, []string{"vote_type"})
	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_finalized_total",
		Help: "Payout voting rounds closed, by result.",
	}, []string{"result"})
	sweepRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_sweep_rows_total",
		Help: "Expired payouts visited by the sweep, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(votesCast, finalized, sweepRows)
	return &PayoutMetrics{
		votesCast: votesCast,
		finalized: finalized,
		sweepRows: sweepRows,
	}
}

func (p *PayoutMetrics) IncVoteCast(voteType string) {
	if p == nil || p.votesCast == nil {
		return
	}
	p.votesCast.WithLabelValues(normalizeLabel(voteType)).Inc()
}

func (p *PayoutMetrics) IncFinalized(result string) {
	if p == nil || p.finalized == nil {
		return
	}
	p.finalized.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddSweepRows adds n rows under outcome (finalized, skipped, failed).
func (p *PayoutMetrics) AddSweepRows(outcome string, n int) {
	if p == nil || p.sweepRows == nil || n <= 0 {
		return
	}
	p.sweepRows.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}
