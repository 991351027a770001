package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/native/staking"
	"stakevault/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestPoolRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	pool, err := manager.PoolGet()
	require.NoError(t, err)
	require.Nil(t, pool, "missing pool should read as nil")

	stored := &staking.Pool{
		AccRewardPerShare: big.NewInt(123_456_789),
		TotalStaked:       big.NewInt(42_000),
		LastUpdateTime:    1_700_000_123,
	}
	require.NoError(t, manager.PoolPut(stored))

	loaded, err := manager.PoolGet()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.AccRewardPerShare.Cmp(stored.AccRewardPerShare))
	require.Zero(t, loaded.TotalStaked.Cmp(stored.TotalStaked))
	require.Equal(t, stored.LastUpdateTime, loaded.LastUpdateTime)
}

func TestParticipantRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x21)

	missing, err := manager.ParticipantGet(addr)
	require.NoError(t, err)
	require.Nil(t, missing)

	stored := &staking.Participant{
		Address:         addr,
		ActiveStaked:    big.NewInt(777),
		LifetimeRewards: big.NewInt(999),
	}
	require.NoError(t, manager.ParticipantPut(stored))

	loaded, err := manager.ParticipantGet(addr)
	require.NoError(t, err)
	require.Equal(t, addr, loaded.Address)
	require.Zero(t, loaded.ActiveStaked.Cmp(stored.ActiveStaked))
	require.Zero(t, loaded.LifetimeRewards.Cmp(stored.LifetimeRewards))
}

func TestStakeLogAppendOnly(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	owner := testAddr(0x31)

	_, found, err := manager.StakeGet(owner, 0)
	require.NoError(t, err)
	require.False(t, found)

	first := &staking.Stake{
		Owner:        owner,
		Amount:       big.NewInt(1000),
		RewardDebt:   big.NewInt(0),
		CreatedAt:    100,
		LockDuration: 604800,
		Multiplier:   100,
		Active:       true,
	}
	index, err := manager.StakeAppend(owner, first)
	require.NoError(t, err)
	require.Equal(t, uint64(0), index)

	second := &staking.Stake{
		Owner:        owner,
		Amount:       big.NewInt(2500),
		RewardDebt:   big.NewInt(17),
		CreatedAt:    200,
		LockDuration: 2592000,
		Multiplier:   125,
		Active:       true,
	}
	index, err = manager.StakeAppend(owner, second)
	require.NoError(t, err)
	require.Equal(t, uint64(1), index)

	// Closing one stake must not disturb indexes of the others.
	closed := first
	closed.Active = false
	require.NoError(t, manager.StakePut(owner, 0, closed))

	loaded, found, err := manager.StakeGet(owner, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Zero(t, loaded.Amount.Cmp(second.Amount))
	require.True(t, loaded.Active)

	log, err := manager.StakeList(owner)
	require.NoError(t, err)
	require.Len(t, log, 2)
	require.False(t, log[0].Active)
	require.True(t, log[1].Active)

	// Out-of-range writes are rejected; the log is dense and append-only.
	require.Error(t, manager.StakePut(owner, 5, second))
}

func TestBalancesByAssetNamespace(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x41)

	balance, err := manager.AccountBalance("STK", addr)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, manager.SetAccountBalance("STK", addr, big.NewInt(555)))
	require.NoError(t, manager.SetAccountBalance("RWD", addr, big.NewInt(7)))

	stk, err := manager.AccountBalance("STK", addr)
	require.NoError(t, err)
	require.Zero(t, stk.Cmp(big.NewInt(555)))

	rwd, err := manager.AccountBalance("RWD", addr)
	require.NoError(t, err)
	require.Zero(t, rwd.Cmp(big.NewInt(7)))

	require.Error(t, manager.SetAccountBalance("STK", addr, big.NewInt(-1)))
}
