package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LotteryMetrics struct {
	deposits      prometheus.Counter
	ticketsSold   prometheus.Counter
	cranks        prometheus.Counter
	epochAdvances prometheus.Counter
	finalizations prometheus.Counter
	claims        prometheus.Counter
	withdrawals   prometheus.Counter
	poolBalance   prometheus.Gauge
	unclaimed     prometheus.Gauge
}

var (
	lotteryOnce     sync.Once
	lotteryRegistry *LotteryMetrics
)

func Lottery() *LotteryMetrics {
	lotteryOnce.Do(func() {
		lotteryRegistry = &LotteryMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_deposits_total",
				Help: "Count of accepted ticket deposits.",
			}),
			ticketsSold: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_tickets_sold_total",
				Help: "Total tickets issued across all rounds.",
			}),
			cranks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_cranks_total",
				Help: "Count of permissionless crank invocations.",
			}),
			epochAdvances: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_epoch_advances_total",
				Help: "Count of time-driven epoch advances.",
			}),
			finalizations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_finalizations_total",
				Help: "Count of rounds finalized with a winner.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_prize_claims_total",
				Help: "Count of settled winner claims.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lottery_withdrawals_total",
				Help: "Count of settled non-winner withdrawals.",
			}),
			poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lottery_pool_balance",
				Help: "Current escrow pool balance in base units.",
			}),
			unclaimed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lottery_unclaimed_liability",
				Help: "Aggregate prize liability of issued, unclaimed claim tickets.",
			}),
		}
		prometheus.MustRegister(
			lotteryRegistry.deposits,
			lotteryRegistry.ticketsSold,
			lotteryRegistry.cranks,
			lotteryRegistry.epochAdvances,
			lotteryRegistry.finalizations,
			lotteryRegistry.claims,
			lotteryRegistry.withdrawals,
			lotteryRegistry.poolBalance,
			lotteryRegistry.unclaimed,
		)
	})
	return lotteryRegistry
}

func (m *LotteryMetrics) ObserveDeposit(tickets uint64) {
	if m == nil {
		return
	}
	m.deposits.Inc()
	m.ticketsSold.Add(float64(tickets))
}

func (m *LotteryMetrics) ObserveCrank() {
	if m == nil {
		return
	}
	m.cranks.Inc()
}

func (m *LotteryMetrics) ObserveEpochAdvance() {
	if m == nil {
		return
	}
	m.epochAdvances.Inc()
}

func (m *LotteryMetrics) ObserveFinalization() {
	if m == nil {
		return
	}
	m.finalizations.Inc()
}

func (m *LotteryMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

func (m *LotteryMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *LotteryMetrics) SetPoolBalance(amount uint64) {
	if m == nil {
		return
	}
	m.poolBalance.Set(float64(amount))
}

func (m *LotteryMetrics) SetUnclaimedLiability(amount uint64) {
	if m == nil {
		return
	}
	m.unclaimed.Set(float64(amount))
}
