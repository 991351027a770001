package staking

import "math/big"

var (
	// rewardScale is the fixed-point factor applied to the per-share
	// accumulator. Amount*Acc products stay well inside big.Int range.
	rewardScale = big.NewInt(1_000_000_000_000) // 1e12

	// multiplierDenom normalises tier multipliers; 100 equals 1.0x.
	multiplierDenom = big.NewInt(100)
)

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// accrue advances the accumulator in place to the supplied timestamp. Elapsed
// time with an empty pool advances the clock without emission.
func accrue(pool *Pool, rate *big.Int, now uint64) {
	if pool == nil || now <= pool.LastUpdateTime {
		return
	}
	if pool.TotalStaked == nil || pool.TotalStaked.Sign() == 0 {
		pool.LastUpdateTime = now
		return
	}
	pool.AccRewardPerShare = projectedAcc(pool, rate, now)
	pool.LastUpdateTime = now
}

// projectedAcc computes what the accumulator would be if synchronized at the
// supplied timestamp, without mutating the pool.
func projectedAcc(pool *Pool, rate *big.Int, now uint64) *big.Int {
	acc := cloneBigInt(pool.AccRewardPerShare)
	if now <= pool.LastUpdateTime {
		return acc
	}
	if pool.TotalStaked == nil || pool.TotalStaked.Sign() == 0 {
		return acc
	}
	if rate == nil || rate.Sign() == 0 {
		return acc
	}
	elapsed := new(big.Int).SetUint64(now - pool.LastUpdateTime)
	emitted := new(big.Int).Mul(elapsed, rate)
	emitted.Mul(emitted, rewardScale)
	emitted.Quo(emitted, pool.TotalStaked)
	return acc.Add(acc, emitted)
}

// rewardDebt computes the scaled accumulator baseline for a stake amount.
func rewardDebt(amount, acc *big.Int) *big.Int {
	if amount == nil || acc == nil {
		return big.NewInt(0)
	}
	debt := new(big.Int).Mul(amount, acc)
	return debt.Quo(debt, rewardScale)
}

// pendingAmount returns the payable reward for a stake against the supplied
// accumulator, with the tier multiplier applied. Never negative.
func pendingAmount(stake *Stake, acc *big.Int) *big.Int {
	if stake == nil || stake.Amount == nil {
		return big.NewInt(0)
	}
	accrued := new(big.Int).Mul(stake.Amount, acc)
	accrued.Quo(accrued, rewardScale)
	accrued.Sub(accrued, cloneBigInt(stake.RewardDebt))
	if accrued.Sign() <= 0 {
		return big.NewInt(0)
	}
	mult := stake.Multiplier
	if mult == 0 {
		mult = 100
	}
	accrued.Mul(accrued, new(big.Int).SetUint64(mult))
	return accrued.Quo(accrued, multiplierDenom)
}
