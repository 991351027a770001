// Package bank provides the balance ledger backing the staking engine's
// asset collaborators. Each Ledger instance moves one asset between
// participant accounts and a designated vault address.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrInsufficientFunds rejects transfers exceeding the source balance.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrInvalidAmount rejects nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("bank: amount must be non-negative")

	errNilStore = errors.New("bank: store not configured")
)

// BalanceStore is the persistence contract for one asset namespace.
type BalanceStore interface {
	AccountBalance(asset string, addr [20]byte) (*big.Int, error)
	SetAccountBalance(asset string, addr [20]byte, balance *big.Int) error
}

// Ledger owns the balances of a single asset and implements the staking
// engine's FungibleAsset capability against a vault custody address.
type Ledger struct {
	mu    sync.Mutex
	store BalanceStore
	asset string
	vault [20]byte
}

// NewLedger builds a ledger for the named asset with the supplied custody
// address.
func NewLedger(store BalanceStore, asset string, vault [20]byte) *Ledger {
	return &Ledger{store: store, asset: asset, vault: vault}
}

// Asset returns the ledger's asset name.
func (l *Ledger) Asset() string {
	if l == nil {
		return ""
	}
	return l.asset
}

// Vault returns the custody address holding transferred-in funds.
func (l *Ledger) Vault() [20]byte {
	if l == nil {
		return [20]byte{}
	}
	return l.vault
}

// BalanceOf reports the current balance of addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.AccountBalance(l.asset, addr)
}

// Mint credits addr out of thin air. Used to seed reward vault funding and
// test fixtures; production issuance belongs to an upstream token authority.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.store.AccountBalance(l.asset, addr)
	if err != nil {
		return err
	}
	return l.store.SetAccountBalance(l.asset, addr, new(big.Int).Add(balance, amount))
}

// TransferIn moves amount from the participant into the vault.
func (l *Ledger) TransferIn(from [20]byte, amount *big.Int) error {
	return l.transfer(from, l.vault, amount)
}

// TransferOut moves amount from the vault to the participant.
func (l *Ledger) TransferOut(to [20]byte, amount *big.Int) error {
	return l.transfer(l.vault, to, amount)
}

func (l *Ledger) transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, err := l.store.AccountBalance(l.asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds, l.asset, fromBalance, amount)
	}
	toBalance, err := l.store.AccountBalance(l.asset, to)
	if err != nil {
		return err
	}

	if err := l.store.SetAccountBalance(l.asset, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.store.SetAccountBalance(l.asset, to, new(big.Int).Add(toBalance, amount))
}
