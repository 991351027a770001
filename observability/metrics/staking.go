package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	deposits    *prometheus.CounterVec
	closures    *prometheus.CounterVec
	claims      prometheus.Counter
	rewardsPaid prometheus.Counter
	totalStaked prometheus.Gauge
	paused      prometheus.Gauge
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_deposits_total",
				Help: "Count of completed deposits by lock tier.",
			}, []string{"tier"}),
			closures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_closures_total",
				Help: "Count of closed positions by exit kind.",
			}, []string{"kind"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_claims_total",
				Help: "Count of successful reward claims.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_rewards_paid_total",
				Help: "Cumulative reward amount paid out, in base units.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_total_staked",
				Help: "Current principal held by the vault, in base units.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_paused",
				Help: "Whether the staking module is paused (1) or accepting deposits (0).",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.deposits,
			stakingRegistry.closures,
			stakingRegistry.claims,
			stakingRegistry.rewardsPaid,
			stakingRegistry.totalStaked,
			stakingRegistry.paused,
		)
	})
	return stakingRegistry
}

func (m *StakingMetrics) ObserveDeposit(tier uint8) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(fmt.Sprintf("%d", tier)).Inc()
}

// ObserveClosure records a finished position. Kind is "withdraw" or
// "emergency".
func (m *StakingMetrics) ObserveClosure(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.closures.WithLabelValues(kind).Inc()
}

func (m *StakingMetrics) ObserveClaim(amount float64) {
	if m == nil {
		return
	}
	m.claims.Inc()
	if amount > 0 {
		m.rewardsPaid.Add(amount)
	}
}

func (m *StakingMetrics) ObserveRewardPaid(amount float64) {
	if m == nil {
		return
	}
	if amount > 0 {
		m.rewardsPaid.Add(amount)
	}
}

func (m *StakingMetrics) SetTotalStaked(amount float64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(amount)
}

func (m *StakingMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

func (m *StakingMetrics) InitTier(tier uint8) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(fmt.Sprintf("%d", tier)).Add(0)
}
