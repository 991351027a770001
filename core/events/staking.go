package events

import "math/big"

const (
	// TypeStakeCreated captures a new stake entering the pool.
	TypeStakeCreated = "staking.stakeCreated"
	// TypeStakeClosed is emitted when a stake exits through the normal
	// withdrawal path, including its final reward settlement.
	TypeStakeClosed = "staking.stakeClosed"
	// TypeRewardClaimed is emitted when accrued rewards are paid out while
	// the stake remains active.
	TypeRewardClaimed = "staking.rewardClaimed"
	// TypeEmergencyExit captures a principal-only exit that forfeits all
	// pending rewards.
	TypeEmergencyExit = "staking.emergencyExit"
	// TypeRewardRateChanged records a prospective emission rate change.
	TypeRewardRateChanged = "staking.rewardRateChanged"
	// TypeTierUpdated records a lock duration change for future deposits.
	TypeTierUpdated = "staking.tierUpdated"
)

// StakeCreated captures the stake recorded by a deposit.
type StakeCreated struct {
	Owner        [20]byte
	StakeIndex   uint64
	Amount       *big.Int
	TierID       uint8
	LockDuration uint64
	Multiplier   uint64
	Timestamp    uint64
}

// EventType satisfies the Event interface.
func (StakeCreated) EventType() string { return TypeStakeCreated }

// StakeClosed captures the final settlement of a withdrawn stake.
type StakeClosed struct {
	Owner      [20]byte
	StakeIndex uint64
	Amount     *big.Int
	Reward     *big.Int
	Timestamp  uint64
}

// EventType satisfies the Event interface.
func (StakeClosed) EventType() string { return TypeStakeClosed }

// RewardClaimed captures a reward payout against an active stake.
type RewardClaimed struct {
	Owner      [20]byte
	StakeIndex uint64
	Reward     *big.Int
	Timestamp  uint64
}

// EventType satisfies the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// EmergencyExit captures a forfeiting principal-only withdrawal.
type EmergencyExit struct {
	Owner      [20]byte
	StakeIndex uint64
	Amount     *big.Int
	Timestamp  uint64
}

// EventType satisfies the Event interface.
func (EmergencyExit) EventType() string { return TypeEmergencyExit }

// RewardRateChanged records an emission rate transition after the pool has
// been settled at the previous rate.
type RewardRateChanged struct {
	OldRate   *big.Int
	NewRate   *big.Int
	Timestamp uint64
}

// EventType satisfies the Event interface.
func (RewardRateChanged) EventType() string { return TypeRewardRateChanged }

// TierUpdated records a lock duration change applying to future deposits.
type TierUpdated struct {
	TierID          uint8
	OldLockDuration uint64
	NewLockDuration uint64
}

// EventType satisfies the Event interface.
func (TierUpdated) EventType() string { return TypeTierUpdated }
