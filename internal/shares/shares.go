/*

This file implements the pooled-share accounting component consumed by the
vault's callers: deposits mint shares proportional to the value added,
withdrawals burn shares for a proportional payout. All conversions go
through the valuation engine so the AMM position is always reflected in
the share price. Rounding is floor in both directions, in the vault's
favor.

*/

package shares

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/types"
	"github.com/meridianlabs/pvm/internal/vault"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount      = errors.New("amount is invalid")
	ErrInsufficientShares = errors.New("insufficient share balance")
	ErrNothingMinted      = errors.New("deposit would mint zero shares")
	ErrNothingRedeemed    = errors.New("withdrawal would redeem zero assets")
)

var sharesLogger = logger.GetForComponent("share_book")

// Book tracks the fungible share supply and per-holder balances for one
// vault. The vault's valuation engine is the single source of truth for
// the assets backing the supply.
type Book struct {
	vault     *vault.Vault
	reference ledger.TokenLedger

	mu       sync.RWMutex
	supply   sdkmath.Int
	balances map[types.Address]sdkmath.Int
}

// NewBook creates an empty share book over the given vault.
func NewBook(v *vault.Vault, reference ledger.TokenLedger) (*Book, error) {
	if v == nil {
		return nil, errors.New("vault cannot be nil")
	}
	if reference == nil {
		return nil, errors.New("reference ledger cannot be nil")
	}
	return &Book{
		vault:     v,
		reference: reference,
		supply:    sdkmath.ZeroInt(),
		balances:  make(map[types.Address]sdkmath.Int),
	}, nil
}

// TotalSupply returns the outstanding share supply.
func (b *Book) TotalSupply() sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.supply
}

// BalanceOf returns the holder's share balance, zero for unknown holders.
func (b *Book) BalanceOf(holder types.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceLocked(holder)
}

// ConvertToShares returns the shares a deposit of the given asset amount
// would mint at current valuation, floor division.
func (b *Book) ConvertToShares(assets sdkmath.Int) (sdkmath.Int, error) {
	if assets.IsNil() || assets.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}

	total, err := b.vault.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return convertToShares(assets, total, b.supply), nil
}

// ConvertToAssets returns the payout a redemption of the given share amount
// would produce at current valuation, floor division.
func (b *Book) ConvertToAssets(shareAmount sdkmath.Int) (sdkmath.Int, error) {
	if shareAmount.IsNil() || shareAmount.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}

	total, err := b.vault.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return shareAmount.Mul(total).Quo(b.supply), nil
}

// Deposit pulls assets from the depositor into the vault and mints shares
// against the valuation read before the transfer. Either both the transfer
// and the mint happen, or neither does.
func (b *Book) Deposit(depositor types.Address, assets sdkmath.Int) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, errors.New("deposit must be positive"))
	}

	total, err := b.vault.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	minted := convertToShares(assets, total, b.supply)
	if !minted.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrNothingMinted,
			fmt.Errorf("deposit %s against total %s, supply %s", assets, total, b.supply))
	}

	if err := b.reference.Transfer(depositor, b.vault.Address(), assets); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("deposit transfer failed: %w", err)
	}

	b.supply = b.supply.Add(minted)
	b.balances[depositor] = b.balanceLocked(depositor).Add(minted)

	sharesLogger.Info().
		Str("depositor", string(depositor)).
		Str("assets", assets.String()).
		Str("shares", minted.String()).
		Msg("Shares minted")

	return minted, nil
}

// Withdraw burns shares for a proportional reference-asset payout from the
// vault's idle balance. A payout exceeding the idle balance fails on the
// ledger transfer before any share is burned.
func (b *Book) Withdraw(holder types.Address, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, errors.New("withdrawal must be positive"))
	}

	total, err := b.vault.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.balanceLocked(holder)
	if held.LT(shareAmount) {
		return sdkmath.ZeroInt(), errors.Join(ErrInsufficientShares,
			fmt.Errorf("holder %s has %s, needs %s", holder, held, shareAmount))
	}
	if b.supply.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(ErrInsufficientShares, errors.New("share supply is zero"))
	}

	payout := shareAmount.Mul(total).Quo(b.supply)
	if !payout.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrNothingRedeemed,
			fmt.Errorf("shares %s against total %s, supply %s", shareAmount, total, b.supply))
	}

	if err := b.reference.Transfer(b.vault.Address(), holder, payout); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("withdrawal transfer failed: %w", err)
	}

	b.supply = b.supply.Sub(shareAmount)
	b.balances[holder] = held.Sub(shareAmount)

	sharesLogger.Info().
		Str("holder", string(holder)).
		Str("shares", shareAmount.String()).
		Str("assets", payout.String()).
		Msg("Shares redeemed")

	return payout, nil
}

// Transfer moves shares between holders without touching the vault; the
// claim changes hands, the backing assets do not.
func (b *Book) Transfer(from, to types.Address, shareAmount sdkmath.Int) error {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return errors.Join(ErrInvalidAmount, errors.New("transfer must be positive"))
	}
	if from.IsZero() || to.IsZero() {
		return errors.Join(ErrInvalidAmount, errors.New("transfer endpoints cannot be zero"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.balanceLocked(from)
	if held.LT(shareAmount) {
		return errors.Join(ErrInsufficientShares,
			fmt.Errorf("holder %s has %s, needs %s", from, held, shareAmount))
	}

	b.balances[from] = held.Sub(shareAmount)
	b.balances[to] = b.balanceLocked(to).Add(shareAmount)
	return nil
}

func (b *Book) balanceLocked(holder types.Address) sdkmath.Int {
	if bal, ok := b.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// convertToShares applies the standard proportional rule: 1:1 on an empty
// book (or an empty vault), otherwise assets * supply / totalAssets.
func convertToShares(assets, totalAssets, supply sdkmath.Int) sdkmath.Int {
	if supply.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return assets.Mul(supply).Quo(totalAssets)
}
