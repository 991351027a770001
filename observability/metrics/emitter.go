package metrics

import (
	"math/big"

	"stakevault/core/events"
)

// Sink adapts the staking metrics registry into an event emitter so the
// engine's event stream can drive the collectors without the engine importing
// this package.
type Sink struct {
	metrics *StakingMetrics
}

// NewSink returns an emitter updating the shared staking registry.
func NewSink() *Sink {
	return &Sink{metrics: Staking()}
}

// Emit implements the events.Emitter interface.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	switch e := evt.(type) {
	case events.StakeCreated:
		s.metrics.ObserveDeposit(e.TierID)
	case events.RewardClaimed:
		s.metrics.ObserveClaim(bigFloat(e.Reward))
	case events.StakeClosed:
		s.metrics.ObserveClosure("withdraw")
		s.metrics.ObserveRewardPaid(bigFloat(e.Reward))
	case events.EmergencyExit:
		s.metrics.ObserveClosure("emergency")
	}
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
