/*

Valuation engine. TotalAssets folds the vault's pro-rata claim on the pinned
pool's reserves into its idle reference-asset balance. Reads are always live:
reserves, LP supply and balances come from the collaborators on every call,
never from a cached copy, because any third party's trade between two calls
changes the correct answer.

Known simplification, kept deliberately: the paired token's owned amount is
added to the reference amount through the injected price source, whose wired
default is the identity conversion. With that default, token0 and token1
units are treated as directly additive, which only holds when the paired
token is pegged 1:1 to the reference asset. Downstream share pricing depends
on these exact semantics; a real conversion belongs behind the PriceSource
extension point, not here.

*/

package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/types"
)

// TotalAssets returns the total managed value in reference-asset base
// units: idle balance plus the derived value of the liquidity position.
// Pure read; no side effects.
func (v *Vault) TotalAssets() (sdkmath.Int, error) {
	breakdown, err := v.Valuation()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return breakdown.Total, nil
}

// Valuation returns the full valuation breakdown behind TotalAssets.
// Arithmetic overflow fails closed: the call aborts with ErrArithmetic
// rather than returning a wrapped or corrupted figure.
func (v *Vault) Valuation() (breakdown types.ValuationBreakdown, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(ErrArithmetic, fmt.Errorf("valuation aborted: %v", r))
		}
	}()

	now := v.clock()
	zero := sdkmath.ZeroInt()

	idle := v.reference.BalanceOf(v.address)
	if idle.IsNil() || idle.IsNegative() {
		return types.ValuationBreakdown{}, errors.Join(ErrCorruptPoolState,
			errors.New("idle balance is nil or negative"))
	}

	claim := v.pool.BalanceOf(v.address)
	if claim.IsNil() || claim.IsNegative() {
		return types.ValuationBreakdown{}, errors.Join(ErrCorruptPoolState,
			errors.New("liquidity claim is nil or negative"))
	}

	// Zero liquidity claim is a valid state: the position is worth zero and
	// the supply division is skipped entirely.
	if claim.IsZero() {
		return types.ValuationBreakdown{
			Timestamp:      now,
			IdleBalance:    idle,
			LiquidityClaim: zero,
			LPTotalSupply:  v.pool.TotalSupply(),
			Reserve0:       zero,
			Reserve1:       zero,
			Owned0:         zero,
			Owned1:         zero,
			PositionValue:  zero,
			Total:          idle,
		}, nil
	}

	reserve0, reserve1, _ := v.pool.Reserves()
	supply := v.pool.TotalSupply()
	if supply.IsNil() || !supply.IsPositive() {
		return types.ValuationBreakdown{}, errors.Join(ErrCorruptPoolState,
			fmt.Errorf("liquidity claim %s with LP supply %s", claim, supply))
	}
	if reserve0.IsNil() || reserve1.IsNil() || reserve0.IsNegative() || reserve1.IsNegative() {
		return types.ValuationBreakdown{}, errors.Join(ErrCorruptPoolState,
			errors.New("pool reserves are nil or negative"))
	}

	// Pro-rata claims, floor division. The truncation biases the reported
	// value down, never up.
	owned0 := claim.Mul(reserve0).Quo(supply)
	owned1Raw := claim.Mul(reserve1).Quo(supply)

	owned1, err := v.prices.ToReference(v.token1, owned1Raw)
	if err != nil {
		return types.ValuationBreakdown{}, fmt.Errorf("paired-token conversion failed: %w", err)
	}
	if owned1.IsNegative() {
		return types.ValuationBreakdown{}, errors.Join(ErrCorruptPoolState,
			errors.New("price source returned negative value"))
	}

	position := owned0.Add(owned1)
	total := idle.Add(position)

	return types.ValuationBreakdown{
		Timestamp:      now,
		IdleBalance:    idle,
		LiquidityClaim: claim,
		LPTotalSupply:  supply,
		Reserve0:       reserve0,
		Reserve1:       reserve1,
		Owned0:         owned0,
		Owned1:         owned1,
		PositionValue:  position,
		Total:          total,
	}, nil
}
