package staking

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/jonboulle/clockwork"

	"stakevault/core/events"
	nativecommon "stakevault/native/common"
)

const moduleName = "staking"

// engineState describes the persistence the engine needs from the
// surrounding state implementation.
type engineState interface {
	PoolGet() (*Pool, error)
	PoolPut(*Pool) error
	ParticipantGet(addr [20]byte) (*Participant, error)
	ParticipantPut(*Participant) error
	StakeGet(owner [20]byte, index uint64) (*Stake, bool, error)
	StakePut(owner [20]byte, index uint64, st *Stake) error
	StakeAppend(owner [20]byte, st *Stake) (uint64, error)
	StakeList(owner [20]byte) ([]*Stake, error)
}

// FungibleAsset abstracts the external token collaborators holding the staked
// principal and the reward funds. The two may be backed by the same asset.
type FungibleAsset interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}

// Engine orchestrates the state transitions for the staking module: deposits,
// reward settlement, withdrawals and the lazy per-share accumulator that
// backs them. External calls are serialized by a single mutex; within one
// call all bookkeeping is persisted before any outward asset transfer.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	stakeAsset  FungibleAsset
	rewardAsset FungibleAsset
	clock       clockwork.Clock
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	rewardRate  *big.Int
	tiers       map[uint8]Tier
}

// NewEngine constructs a staking engine with the default tier table, a zero
// emission rate, the system clock and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		clock:      clockwork.NewRealClock(),
		emitter:    events.NoopEmitter{},
		rewardRate: big.NewInt(0),
		tiers:      defaultTiers(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the stake and reward asset collaborators.
func (e *Engine) SetAssets(stake, reward FungibleAsset) {
	if e == nil {
		return
	}
	e.stakeAsset = stake
	e.rewardAsset = reward
}

// SetClock overrides the time source used by the engine. Passing nil resets
// it to the system clock. Primarily intended for tests.
func (e *Engine) SetClock(clock clockwork.Clock) {
	if e == nil {
		return
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	e.clock = clock
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause view consulted before accepting deposits.
// Withdrawal and claim paths deliberately stay open while paused.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	ts := e.clock.Now().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// RewardRate returns the current emission rate per second.
func (e *Engine) RewardRate() *big.Int {
	if e == nil {
		return big.NewInt(0)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneBigInt(e.rewardRate)
}

// SetRewardRate settles the pool at the previous rate, then switches the
// emission rate prospectively.
func (e *Engine) SetRewardRate(rate *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	accrue(pool, e.rewardRate, now)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	old := e.rewardRate
	e.rewardRate = cloneBigInt(rate)
	e.emit(events.RewardRateChanged{
		OldRate:   cloneBigInt(old),
		NewRate:   cloneBigInt(rate),
		Timestamp: now,
	})
	return nil
}

// UpdateTierLockDuration changes the lock applied to future deposits for the
// given tier. Existing stakes keep the duration fixed at their creation.
func (e *Engine) UpdateTierLockDuration(tierID uint8, lockDuration uint64) error {
	if e == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tier, ok := e.lookupTier(tierID)
	if !ok {
		return ErrInvalidTier
	}
	old := tier.LockDuration
	tier.LockDuration = lockDuration
	e.tiers[tierID] = tier
	e.emit(events.TierUpdated{
		TierID:          tierID,
		OldLockDuration: old,
		NewLockDuration: lockDuration,
	})
	return nil
}

// Deposit takes custody of amount from the participant and appends a new
// stake at the given tier. The new stake's index is returned.
func (e *Engine) Deposit(owner [20]byte, amount *big.Int, tierID uint8) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.stakeAsset == nil || e.rewardAsset == nil {
		return 0, errNilAssets
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tier, ok := e.lookupTier(tierID)
	if !ok {
		return 0, ErrInvalidTier
	}

	// Custody first: nothing is recorded yet, so a failed inbound transfer
	// leaves no state to unwind.
	if err := e.stakeAsset.TransferIn(owner, amount); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	now := e.now()
	pool, err := e.ensurePool()
	if err != nil {
		return 0, e.refundDeposit(owner, amount, err)
	}
	accrue(pool, e.rewardRate, now)

	participant, err := e.ensureParticipant(owner)
	if err != nil {
		return 0, e.refundDeposit(owner, amount, err)
	}

	stake := &Stake{
		Owner:        owner,
		Amount:       cloneBigInt(amount),
		RewardDebt:   rewardDebt(amount, pool.AccRewardPerShare),
		CreatedAt:    now,
		LockDuration: tier.LockDuration,
		Multiplier:   tier.Multiplier,
		Active:       true,
	}
	index, err := e.state.StakeAppend(owner, stake)
	if err != nil {
		return 0, e.refundDeposit(owner, amount, err)
	}

	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	participant.ActiveStaked = new(big.Int).Add(participant.ActiveStaked, amount)

	if err := e.state.PoolPut(pool); err != nil {
		return 0, e.refundDeposit(owner, amount, err)
	}
	if err := e.state.ParticipantPut(participant); err != nil {
		return 0, e.refundDeposit(owner, amount, err)
	}

	e.emit(events.StakeCreated{
		Owner:        owner,
		StakeIndex:   index,
		Amount:       cloneBigInt(amount),
		TierID:       tierID,
		LockDuration: tier.LockDuration,
		Multiplier:   tier.Multiplier,
		Timestamp:    now,
	})
	return index, nil
}

func (e *Engine) refundDeposit(owner [20]byte, amount *big.Int, cause error) error {
	if refundErr := e.stakeAsset.TransferOut(owner, amount); refundErr != nil {
		return fmt.Errorf("%w (refund failed: %v)", cause, refundErr)
	}
	return cause
}

// PendingReward reports the reward the stake would settle if claimed now. The
// call never mutates state and agrees exactly with a subsequent claim.
func (e *Engine) PendingReward(owner [20]byte, index uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stake, found, err := e.state.StakeGet(owner, index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrStakeNotFound
	}
	if !stake.Active {
		return big.NewInt(0), nil
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	acc := projectedAcc(pool, e.rewardRate, e.now())
	return pendingAmount(stake, acc), nil
}

// Claim settles and pays out the stake's accrued reward. The stake remains
// active and keeps accruing from the refreshed debt baseline.
func (e *Engine) Claim(owner [20]byte, index uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.rewardAsset == nil {
		return nil, errNilAssets
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	prevPool := pool.Clone()
	stake, found, err := e.state.StakeGet(owner, index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrStakeNotFound
	}
	if !stake.Active {
		return nil, ErrStakeNotActive
	}

	accrue(pool, e.rewardRate, now)
	reward := pendingAmount(stake, pool.AccRewardPerShare)
	if reward.Sign() == 0 {
		return nil, ErrNoRewardAvailable
	}

	participant, err := e.ensureParticipant(owner)
	if err != nil {
		return nil, err
	}
	prevStake := stake.Clone()
	prevParticipant := participant.Clone()

	stake.RewardDebt = rewardDebt(stake.Amount, pool.AccRewardPerShare)
	participant.LifetimeRewards = new(big.Int).Add(participant.LifetimeRewards, reward)

	if err := e.state.StakePut(owner, index, stake); err != nil {
		return nil, err
	}
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	// Bookkeeping is committed; the payout happens last so a reentrant
	// collaborator can only observe the already-settled debt baseline.
	if err := e.rewardAsset.TransferOut(owner, reward); err != nil {
		e.restore(owner, index, prevStake, prevParticipant, prevPool)
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emit(events.RewardClaimed{
		Owner:      owner,
		StakeIndex: index,
		Reward:     cloneBigInt(reward),
		Timestamp:  now,
	})
	return reward, nil
}

// Withdraw closes the stake after its lock has expired, paying the final
// reward (zero is allowed here) and returning the principal.
func (e *Engine) Withdraw(owner [20]byte, index uint64) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.stakeAsset == nil || e.rewardAsset == nil {
		return nil, nil, errNilAssets
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	pool, err := e.ensurePool()
	if err != nil {
		return nil, nil, err
	}
	prevPool := pool.Clone()
	stake, found, err := e.state.StakeGet(owner, index)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrStakeNotFound
	}
	if !stake.Active {
		return nil, nil, ErrStakeNotActive
	}
	if now < stake.CreatedAt+stake.LockDuration {
		return nil, nil, ErrStakeLocked
	}

	accrue(pool, e.rewardRate, now)
	reward := pendingAmount(stake, pool.AccRewardPerShare)

	participant, err := e.ensureParticipant(owner)
	if err != nil {
		return nil, nil, err
	}
	prevStake := stake.Clone()
	prevParticipant := participant.Clone()

	principal := cloneBigInt(stake.Amount)
	stake.Active = false
	stake.RewardDebt = rewardDebt(stake.Amount, pool.AccRewardPerShare)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, principal)
	participant.ActiveStaked = new(big.Int).Sub(participant.ActiveStaked, principal)
	if reward.Sign() > 0 {
		participant.LifetimeRewards = new(big.Int).Add(participant.LifetimeRewards, reward)
	}

	if err := e.state.StakePut(owner, index, stake); err != nil {
		return nil, nil, err
	}
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, nil, err
	}

	if reward.Sign() > 0 {
		if err := e.rewardAsset.TransferOut(owner, reward); err != nil {
			e.restore(owner, index, prevStake, prevParticipant, prevPool)
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if err := e.stakeAsset.TransferOut(owner, principal); err != nil {
		if reward.Sign() > 0 {
			// Pull the already-paid reward back before unwinding.
			_ = e.rewardAsset.TransferIn(owner, reward)
		}
		e.restore(owner, index, prevStake, prevParticipant, prevPool)
		return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emit(events.StakeClosed{
		Owner:      owner,
		StakeIndex: index,
		Amount:     principal,
		Reward:     cloneBigInt(reward),
		Timestamp:  now,
	})
	return principal, reward, nil
}

// EmergencyWithdraw closes the stake immediately, bypassing the lock and
// forfeiting every pending reward. Only the principal is returned. The pool
// accumulator is deliberately left untouched.
func (e *Engine) EmergencyWithdraw(owner [20]byte, index uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.stakeAsset == nil {
		return nil, errNilAssets
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stake, found, err := e.state.StakeGet(owner, index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrStakeNotFound
	}
	if !stake.Active {
		return nil, ErrStakeNotActive
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	participant, err := e.ensureParticipant(owner)
	if err != nil {
		return nil, err
	}
	prevStake := stake.Clone()
	prevParticipant := participant.Clone()
	prevPool := pool.Clone()

	principal := cloneBigInt(stake.Amount)
	stake.Active = false
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, principal)
	participant.ActiveStaked = new(big.Int).Sub(participant.ActiveStaked, principal)

	if err := e.state.StakePut(owner, index, stake); err != nil {
		return nil, err
	}
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}

	if err := e.stakeAsset.TransferOut(owner, principal); err != nil {
		e.restore(owner, index, prevStake, prevParticipant, prevPool)
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emit(events.EmergencyExit{
		Owner:      owner,
		StakeIndex: index,
		Amount:     principal,
		Timestamp:  e.now(),
	})
	return principal, nil
}

// PoolSnapshot returns the stored pool state plus the configured rate.
func (e *Engine) PoolSnapshot() (*PoolInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return &PoolInfo{
		TotalStaked:       cloneBigInt(pool.TotalStaked),
		AccRewardPerShare: cloneBigInt(pool.AccRewardPerShare),
		LastUpdateTime:    pool.LastUpdateTime,
		RewardRatePerSec:  cloneBigInt(e.rewardRate),
	}, nil
}

// ParticipantSnapshot aggregates the owner's position, including the pending
// reward projected for each active stake.
func (e *Engine) ParticipantSnapshot(owner [20]byte) (*ParticipantInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	acc := projectedAcc(pool, e.rewardRate, e.now())

	participant, err := e.ensureParticipant(owner)
	if err != nil {
		return nil, err
	}
	stakes, err := e.state.StakeList(owner)
	if err != nil {
		return nil, err
	}

	info := &ParticipantInfo{
		Address:         owner,
		ActiveStaked:    cloneBigInt(participant.ActiveStaked),
		LifetimeRewards: cloneBigInt(participant.LifetimeRewards),
		Stakes:          make([]StakeInfo, 0, len(stakes)),
	}
	for i, stake := range stakes {
		pending := big.NewInt(0)
		if stake.Active {
			pending = pendingAmount(stake, acc)
		}
		info.Stakes = append(info.Stakes, StakeInfo{
			Index:      uint64(i),
			Amount:     cloneBigInt(stake.Amount),
			CreatedAt:  stake.CreatedAt,
			UnlockAt:   stake.CreatedAt + stake.LockDuration,
			Multiplier: stake.Multiplier,
			Active:     stake.Active,
			Pending:    pending,
		})
	}
	return info, nil
}

func (e *Engine) ensurePool() (*Pool, error) {
	pool, err := e.state.PoolGet()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	// Work on a copy so stores returning shared pointers never observe a
	// half-applied mutation.
	pool = pool.Clone()
	if pool.AccRewardPerShare == nil {
		pool.AccRewardPerShare = big.NewInt(0)
	}
	if pool.TotalStaked == nil {
		pool.TotalStaked = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) ensureParticipant(owner [20]byte) (*Participant, error) {
	participant, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		participant = &Participant{Address: owner}
	}
	if participant.ActiveStaked == nil {
		participant.ActiveStaked = big.NewInt(0)
	}
	if participant.LifetimeRewards == nil {
		participant.LifetimeRewards = big.NewInt(0)
	}
	return participant, nil
}

// restore writes back the pre-transfer copies after a failed outward
// transfer, making the whole call observationally all-or-nothing.
func (e *Engine) restore(owner [20]byte, index uint64, stake *Stake, participant *Participant, pool *Pool) {
	if stake != nil {
		_ = e.state.StakePut(owner, index, stake)
	}
	if participant != nil {
		_ = e.state.ParticipantPut(participant)
	}
	if pool != nil {
		_ = e.state.PoolPut(pool)
	}
}
