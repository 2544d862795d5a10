/*

This file implements the external fungible-token ledger collaborator: per-asset
balance books with transfer and scoped allowance semantics. The vault core only
ever sees the TokenLedger interface; the in-memory Book is the deployment used
by the daemon and the tests.

*/

package ledger

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount         = errors.New("amount is invalid")
	ErrInvalidAddress        = errors.New("address is invalid")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

var ledgerLogger = logger.GetForComponent("token_ledger")

// TokenLedger is the external-ledger interface the vault core consumes.
// Amounts are integer base units; every mutation either fully applies or
// returns an error with zero effects.
type TokenLedger interface {
	// Asset returns the ledger's asset identity.
	Asset() types.Address

	// BalanceOf returns the holder's balance. Unknown holders have zero.
	BalanceOf(holder types.Address) sdkmath.Int

	// Transfer moves amount from one holder to another.
	Transfer(from, to types.Address, amount sdkmath.Int) error

	// Approve sets the spender's allowance over the owner's funds to exactly
	// amount, replacing any previous allowance.
	Approve(owner, spender types.Address, amount sdkmath.Int) error

	// Allowance returns the spender's remaining allowance over the owner's funds.
	Allowance(owner, spender types.Address) sdkmath.Int

	// TransferFrom moves amount from the owner to the recipient on the
	// spender's authority, consuming allowance.
	TransferFrom(spender, owner, to types.Address, amount sdkmath.Int) error
}

type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Book is an in-memory TokenLedger. A read-write mutex makes concurrent
// reads from the web API safe against the single mutating manager loop;
// state transitions themselves are serialized by that loop.
type Book struct {
	asset      types.Address
	mu         sync.RWMutex
	balances   map[types.Address]sdkmath.Int
	allowances map[allowanceKey]sdkmath.Int
}

// NewBook creates an empty balance book for the given asset identity.
func NewBook(asset types.Address) (*Book, error) {
	if asset.IsZero() {
		return nil, errors.Join(ErrInvalidAddress, errors.New("asset address cannot be zero"))
	}
	return &Book{
		asset:      asset,
		balances:   make(map[types.Address]sdkmath.Int),
		allowances: make(map[allowanceKey]sdkmath.Int),
	}, nil
}

// Asset returns the asset identity this book accounts for.
func (b *Book) Asset() types.Address {
	return b.asset
}

// Mint credits newly issued units to a holder. Used for genesis funding and
// test setup; the vault core never mints.
func (b *Book) Mint(to types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return errors.Join(ErrInvalidAddress, errors.New("mint recipient cannot be zero"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] = b.balanceLocked(to).Add(amount)

	ledgerLogger.Debug().
		Str("asset", string(b.asset)).
		Str("to", string(to)).
		Str("amount", amount.String()).
		Msg("Minted units")
	return nil
}

// BalanceOf returns the holder's balance, zero for unknown holders.
func (b *Book) BalanceOf(holder types.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceLocked(holder)
}

// Transfer moves amount between holders, rejecting overdrafts.
func (b *Book) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return errors.Join(ErrInvalidAddress, errors.New("transfer endpoints cannot be zero"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balanceLocked(from)
	if fromBal.LT(amount) {
		return errors.Join(ErrInsufficientBalance,
			fmt.Errorf("asset %s: holder %s has %s, needs %s", b.asset, from, fromBal, amount))
	}

	b.balances[from] = fromBal.Sub(amount)
	b.balances[to] = b.balanceLocked(to).Add(amount)
	return nil
}

// Approve sets the spender's allowance to exactly amount. Setting zero
// revokes the allowance entirely.
func (b *Book) Approve(owner, spender types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(ErrInvalidAmount, errors.New("allowance must be non-negative"))
	}
	if owner.IsZero() || spender.IsZero() {
		return errors.Join(ErrInvalidAddress, errors.New("approval endpoints cannot be zero"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := allowanceKey{owner: owner, spender: spender}
	if amount.IsZero() {
		delete(b.allowances, key)
	} else {
		b.allowances[key] = amount
	}

	ledgerLogger.Debug().
		Str("asset", string(b.asset)).
		Str("owner", string(owner)).
		Str("spender", string(spender)).
		Str("amount", amount.String()).
		Msg("Allowance set")
	return nil
}

// Allowance returns the spender's remaining allowance, zero when unset.
func (b *Book) Allowance(owner, spender types.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allowanceLocked(owner, spender)
}

// TransferFrom moves amount from owner to recipient on the spender's
// authority, decrementing the spender's allowance by the amount moved.
func (b *Book) TransferFrom(spender, owner, to types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if spender.IsZero() || owner.IsZero() || to.IsZero() {
		return errors.Join(ErrInvalidAddress, errors.New("transfer endpoints cannot be zero"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := b.allowanceLocked(owner, spender)
	if allowed.LT(amount) {
		return errors.Join(ErrInsufficientAllowance,
			fmt.Errorf("asset %s: spender %s allowed %s, needs %s", b.asset, spender, allowed, amount))
	}

	ownerBal := b.balanceLocked(owner)
	if ownerBal.LT(amount) {
		return errors.Join(ErrInsufficientBalance,
			fmt.Errorf("asset %s: owner %s has %s, needs %s", b.asset, owner, ownerBal, amount))
	}

	remaining := allowed.Sub(amount)
	key := allowanceKey{owner: owner, spender: spender}
	if remaining.IsZero() {
		delete(b.allowances, key)
	} else {
		b.allowances[key] = remaining
	}

	b.balances[owner] = ownerBal.Sub(amount)
	b.balances[to] = b.balanceLocked(to).Add(amount)
	return nil
}

func (b *Book) balanceLocked(holder types.Address) sdkmath.Int {
	if bal, ok := b.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (b *Book) allowanceLocked(owner, spender types.Address) sdkmath.Int {
	if allowed, ok := b.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return allowed
	}
	return sdkmath.ZeroInt()
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return errors.Join(ErrInvalidAmount, errors.New("amount is nil"))
	}
	if !amount.IsPositive() {
		return errors.Join(ErrInvalidAmount, errors.New("amount must be positive"))
	}
	return nil
}
