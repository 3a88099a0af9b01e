// Package ledger defines the external asset-transfer capability consumed by
// the escrow core, and an in-memory implementation used by the simulator and
// the test suites.
package ledger

import (
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Ledger is the fungible-asset transfer capability. A failure return must be
// treated by callers exactly like an error: the whole enclosing operation
// aborts with no partial state change.
type Ledger interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(asset types.Asset, from, to common.Address, amount math.Int) error

	// TransferFrom moves amount of asset out of the from account on the
	// authority of spender's allowance. A spender moving its own funds
	// needs no allowance.
	TransferFrom(asset types.Asset, spender, from, to common.Address, amount math.Int) error

	// BalanceOf reports the balance held by addr.
	BalanceOf(asset types.Asset, addr common.Address) math.Int
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// InMemory is a mutexed multi-asset ledger with per-asset balances and
// allowances.
type InMemory struct {
	mu         sync.Mutex
	balances   map[types.Asset]map[common.Address]math.Int
	allowances map[types.Asset]map[allowanceKey]math.Int
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		balances:   make(map[types.Asset]map[common.Address]math.Int),
		allowances: make(map[types.Asset]map[allowanceKey]math.Int),
	}
}

// Mint credits amount of asset to addr.
func (l *InMemory) Mint(asset types.Asset, addr common.Address, amount math.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, addr, amount)
}

// Approve grants spender an allowance over owner's balance.
func (l *InMemory) Approve(asset types.Asset, owner, spender common.Address, amount math.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.allowances[asset]
	if !ok {
		m = make(map[allowanceKey]math.Int)
		l.allowances[asset] = m
	}
	m[allowanceKey{owner: owner, spender: spender}] = amount
}

func (l *InMemory) Transfer(asset types.Asset, from, to common.Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, from, to, amount)
}

func (l *InMemory) TransferFrom(asset types.Asset, spender, from, to common.Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if spender != from {
		allowed := l.allowance(asset, from, spender)
		if allowed.LT(amount) {
			return errorsmod.Wrapf(types.ErrTransferFailed,
				"allowance %s < %s for spender %s over %s",
				allowed, amount, spender.Hex(), from.Hex())
		}
		l.allowances[asset][allowanceKey{owner: from, spender: spender}] = allowed.Sub(amount)
	}
	return l.move(asset, from, to, amount)
}

func (l *InMemory) BalanceOf(asset types.Asset, addr common.Address) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(asset, addr)
}

func (l *InMemory) move(asset types.Asset, from, to common.Address, amount math.Int) error {
	if amount.IsNegative() {
		return errorsmod.Wrap(types.ErrTransferFailed, "negative amount")
	}
	if amount.IsZero() {
		return nil
	}
	bal := l.balance(asset, from)
	if bal.LT(amount) {
		return errorsmod.Wrapf(types.ErrTransferFailed,
			"insufficient %s balance: %s < %s at %s", asset, bal, amount, from.Hex())
	}
	l.balances[asset][from] = bal.Sub(amount)
	l.credit(asset, to, amount)
	return nil
}

func (l *InMemory) balance(asset types.Asset, addr common.Address) math.Int {
	if m, ok := l.balances[asset]; ok {
		if b, ok := m[addr]; ok {
			return b
		}
	}
	return math.ZeroInt()
}

func (l *InMemory) credit(asset types.Asset, addr common.Address, amount math.Int) {
	m, ok := l.balances[asset]
	if !ok {
		m = make(map[common.Address]math.Int)
		l.balances[asset] = m
	}
	if b, ok := m[addr]; ok {
		m[addr] = b.Add(amount)
	} else {
		m[addr] = amount
	}
}

func (l *InMemory) allowance(asset types.Asset, owner, spender common.Address) math.Int {
	if m, ok := l.allowances[asset]; ok {
		if a, ok := m[allowanceKey{owner: owner, spender: spender}]; ok {
			return a
		}
	}
	return math.ZeroInt()
}
