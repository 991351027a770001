package staking

import "errors"

var (
	// ErrInvalidAmount rejects zero or negative stake amounts.
	ErrInvalidAmount = errors.New("staking: amount must be positive")
	// ErrInvalidTier rejects tier identifiers outside the supported set.
	ErrInvalidTier = errors.New("staking: unknown lock tier")
	// ErrStakeNotFound signals an index outside the participant's stake log.
	ErrStakeNotFound = errors.New("staking: stake not found")
	// ErrStakeNotActive rejects mutations against an already-closed stake.
	ErrStakeNotActive = errors.New("staking: stake not active")
	// ErrStakeLocked rejects withdrawals before the lock expiry.
	ErrStakeLocked = errors.New("staking: stake still locked")
	// ErrNoRewardAvailable rejects claims with zero accrued reward.
	ErrNoRewardAvailable = errors.New("staking: no reward available")
	// ErrTransferFailed wraps failures reported by the asset collaborators.
	ErrTransferFailed = errors.New("staking: asset transfer failed")
	// ErrInvalidRate rejects negative emission rates.
	ErrInvalidRate = errors.New("staking: reward rate must not be negative")

	errNilState  = errors.New("staking engine: state not configured")
	errNilAssets = errors.New("staking engine: asset collaborators not configured")
)
