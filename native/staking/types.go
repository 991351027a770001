package staking

import "math/big"

// Pool captures the global accounting state for the staking module. Amount
// values are expressed as big integers to preserve on-ledger precision.
type Pool struct {
	// AccRewardPerShare is the cumulative reward earned per staked unit
	// since inception, scaled by rewardScale. It never decreases.
	AccRewardPerShare *big.Int
	// TotalStaked is the sum of Amount over all active stakes.
	TotalStaked *big.Int
	// LastUpdateTime records the unix timestamp of the last accumulator
	// synchronization.
	LastUpdateTime uint64
}

// Stake records a single deposit for the life of the position. Entries are
// append-only per owner; a closed stake is retained for history and never
// reopened.
type Stake struct {
	// Owner is the participant that created the stake.
	Owner [20]byte
	// Amount is the staked quantity, fixed at creation.
	Amount *big.Int
	// RewardDebt is the scaled accumulator value already settled against
	// this stake; only accrual beyond it is payable.
	RewardDebt *big.Int
	// CreatedAt is the unix timestamp of the deposit.
	CreatedAt uint64
	// LockDuration is the number of seconds the stake must remain before a
	// normal withdrawal is permitted. Fixed at creation from the tier.
	LockDuration uint64
	// Multiplier scales the payable reward, expressed in percentage points
	// where 100 equals 1.0x. Fixed at creation from the tier.
	Multiplier uint64
	// Active flips to false permanently on withdrawal, normal or emergency.
	Active bool
}

// Participant aggregates the running position for an owner across stakes.
type Participant struct {
	Address [20]byte
	// ActiveStaked is the sum of Amount over the owner's active stakes.
	ActiveStaked *big.Int
	// LifetimeRewards accumulates every reward paid to the owner.
	LifetimeRewards *big.Int
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	return &Pool{
		AccRewardPerShare: cloneBigInt(p.AccRewardPerShare),
		TotalStaked:       cloneBigInt(p.TotalStaked),
		LastUpdateTime:    p.LastUpdateTime,
	}
}

// Clone returns a deep copy of the stake.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	return &Stake{
		Owner:        s.Owner,
		Amount:       cloneBigInt(s.Amount),
		RewardDebt:   cloneBigInt(s.RewardDebt),
		CreatedAt:    s.CreatedAt,
		LockDuration: s.LockDuration,
		Multiplier:   s.Multiplier,
		Active:       s.Active,
	}
}

// Clone returns a deep copy of the participant summary.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	return &Participant{
		Address:         p.Address,
		ActiveStaked:    cloneBigInt(p.ActiveStaked),
		LifetimeRewards: cloneBigInt(p.LifetimeRewards),
	}
}

// PoolInfo summarises pool state for read-only consumers.
type PoolInfo struct {
	TotalStaked       *big.Int `json:"totalStaked"`
	AccRewardPerShare *big.Int `json:"accRewardPerShare"`
	LastUpdateTime    uint64   `json:"lastUpdateTime"`
	RewardRatePerSec  *big.Int `json:"rewardRatePerSec"`
}

// StakeInfo exposes stake metadata for account queries.
type StakeInfo struct {
	Index      uint64   `json:"index"`
	Amount     *big.Int `json:"amount"`
	CreatedAt  uint64   `json:"createdAt"`
	UnlockAt   uint64   `json:"unlockAt"`
	Multiplier uint64   `json:"multiplier"`
	Active     bool     `json:"active"`
	Pending    *big.Int `json:"pending"`
}

// ParticipantInfo summarises the staking position for an owner.
type ParticipantInfo struct {
	Address         [20]byte    `json:"-"`
	ActiveStaked    *big.Int    `json:"activeStaked"`
	LifetimeRewards *big.Int    `json:"lifetimeRewards"`
	Stakes          []StakeInfo `json:"stakes"`
}
