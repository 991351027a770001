// Package state persists the staking module's pool, stake logs and asset
// balances in a key-value store using RLP-encoded records.
package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"stakevault/native/staking"
	"stakevault/storage"
)

const (
	poolKey              = "staking/pool"
	participantKeyFormat = "staking/participant/%s"
	stakeCountKeyFormat  = "staking/stakes/%s/count"
	stakeEntryKeyFormat  = "staking/stakes/%s/%020d"
	balanceKeyFormat     = "bank/%s/balance/%s"
)

var errNilRecord = errors.New("state: nil record")

// Manager exposes the staking engine's persistence contract and the bank
// ledger's balance store on top of a storage.Database.
type Manager struct {
	db storage.Database
	mu sync.RWMutex
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedPool struct {
	AccRewardPerShare []byte
	TotalStaked       []byte
	LastUpdateTime    uint64
}

type storedParticipant struct {
	Address         []byte
	ActiveStaked    []byte
	LifetimeRewards []byte
}

type storedStake struct {
	Owner        []byte
	Amount       []byte
	RewardDebt   []byte
	CreatedAt    uint64
	LockDuration uint64
	Multiplier   uint64
	Active       bool
}

func addrHex(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func bigFromBytes(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

// PoolGet loads the pool record; a missing record yields nil so the engine
// bootstraps a fresh pool.
func (m *Manager) PoolGet() (*staking.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := m.db.Get([]byte(poolKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPool
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("state: decode pool: %w", err)
	}
	return &staking.Pool{
		AccRewardPerShare: bigFromBytes(stored.AccRewardPerShare),
		TotalStaked:       bigFromBytes(stored.TotalStaked),
		LastUpdateTime:    stored.LastUpdateTime,
	}, nil
}

// PoolPut persists the pool record.
func (m *Manager) PoolPut(pool *staking.Pool) error {
	if pool == nil {
		return errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := rlp.EncodeToBytes(storedPool{
		AccRewardPerShare: bigBytes(pool.AccRewardPerShare),
		TotalStaked:       bigBytes(pool.TotalStaked),
		LastUpdateTime:    pool.LastUpdateTime,
	})
	if err != nil {
		return err
	}
	return m.db.Put([]byte(poolKey), encoded)
}

// ParticipantGet loads a participant summary; missing records yield nil.
func (m *Manager) ParticipantGet(addr [20]byte) (*staking.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := []byte(fmt.Sprintf(participantKeyFormat, addrHex(addr)))
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedParticipant
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("state: decode participant: %w", err)
	}
	participant := &staking.Participant{
		ActiveStaked:    bigFromBytes(stored.ActiveStaked),
		LifetimeRewards: bigFromBytes(stored.LifetimeRewards),
	}
	copy(participant.Address[:], stored.Address)
	return participant, nil
}

// ParticipantPut persists a participant summary.
func (m *Manager) ParticipantPut(p *staking.Participant) error {
	if p == nil {
		return errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := rlp.EncodeToBytes(storedParticipant{
		Address:         append([]byte(nil), p.Address[:]...),
		ActiveStaked:    bigBytes(p.ActiveStaked),
		LifetimeRewards: bigBytes(p.LifetimeRewards),
	})
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf(participantKeyFormat, addrHex(p.Address)))
	return m.db.Put(key, encoded)
}

func (m *Manager) stakeCount(owner [20]byte) (uint64, error) {
	key := []byte(fmt.Sprintf(stakeCountKeyFormat, addrHex(owner)))
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, fmt.Errorf("state: decode stake count: %w", err)
	}
	return count, nil
}

func (m *Manager) putStakeCount(owner [20]byte, count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf(stakeCountKeyFormat, addrHex(owner)))
	return m.db.Put(key, encoded)
}

func (m *Manager) loadStake(owner [20]byte, index uint64) (*staking.Stake, bool, error) {
	key := []byte(fmt.Sprintf(stakeEntryKeyFormat, addrHex(owner), index))
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedStake
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode stake: %w", err)
	}
	stake := &staking.Stake{
		Amount:       bigFromBytes(stored.Amount),
		RewardDebt:   bigFromBytes(stored.RewardDebt),
		CreatedAt:    stored.CreatedAt,
		LockDuration: stored.LockDuration,
		Multiplier:   stored.Multiplier,
		Active:       stored.Active,
	}
	copy(stake.Owner[:], stored.Owner)
	return stake, true, nil
}

func (m *Manager) storeStake(owner [20]byte, index uint64, st *staking.Stake) error {
	encoded, err := rlp.EncodeToBytes(storedStake{
		Owner:        append([]byte(nil), st.Owner[:]...),
		Amount:       bigBytes(st.Amount),
		RewardDebt:   bigBytes(st.RewardDebt),
		CreatedAt:    st.CreatedAt,
		LockDuration: st.LockDuration,
		Multiplier:   st.Multiplier,
		Active:       st.Active,
	})
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf(stakeEntryKeyFormat, addrHex(owner), index))
	return m.db.Put(key, encoded)
}

// StakeGet loads one stake from the owner's log.
func (m *Manager) StakeGet(owner [20]byte, index uint64) (*staking.Stake, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadStake(owner, index)
}

// StakePut overwrites an existing entry in the owner's stake log.
func (m *Manager) StakePut(owner [20]byte, index uint64, st *staking.Stake) error {
	if st == nil {
		return errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count, err := m.stakeCount(owner)
	if err != nil {
		return err
	}
	if index >= count {
		return fmt.Errorf("state: stake index %d out of range (have %d)", index, count)
	}
	return m.storeStake(owner, index, st)
}

// StakeAppend adds a stake to the end of the owner's log and returns its
// index. Entries are never removed, preserving index stability.
func (m *Manager) StakeAppend(owner [20]byte, st *staking.Stake) (uint64, error) {
	if st == nil {
		return 0, errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count, err := m.stakeCount(owner)
	if err != nil {
		return 0, err
	}
	if err := m.storeStake(owner, count, st); err != nil {
		return 0, err
	}
	if err := m.putStakeCount(owner, count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// StakeList returns the owner's full stake log in creation order.
func (m *Manager) StakeList(owner [20]byte) ([]*staking.Stake, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count, err := m.stakeCount(owner)
	if err != nil {
		return nil, err
	}
	out := make([]*staking.Stake, 0, count)
	for i := uint64(0); i < count; i++ {
		stake, found, err := m.loadStake(owner, i)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("state: stake log gap at index %d", i)
		}
		out = append(out, stake)
	}
	return out, nil
}

// AccountBalance returns the balance held for addr in the named asset
// namespace; missing entries read as zero.
func (m *Manager) AccountBalance(asset string, addr [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := []byte(fmt.Sprintf(balanceKeyFormat, asset, addrHex(addr)))
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(data), nil
}

// SetAccountBalance writes the balance for addr in the named asset namespace.
func (m *Manager) SetAccountBalance(asset string, addr [20]byte, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := []byte(fmt.Sprintf(balanceKeyFormat, asset, addrHex(addr)))
	return m.db.Put(key, balance.Bytes())
}
