/*

This file defines the price-source capability used by the valuation engine to
express a paired-token amount in reference-asset terms. The wired default is
the additive legacy mode: the paired token is treated as 1:1 with the
reference asset, which matches the historical valuation semantics downstream
share pricing depends on. A real conversion (pool-derived or external feed)
plugs in behind the same interface; no specific formula is chosen here.

*/

package oracle

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/types"
)

// ErrAmountInvalid is returned for nil or negative input amounts.
var ErrAmountInvalid = errors.New("amount is invalid")

// PriceSource converts an amount of the given asset into reference-asset
// base units. Implementations must floor, never round up; valuation stays
// conservative.
type PriceSource interface {
	ToReference(asset types.Address, amount sdkmath.Int) (sdkmath.Int, error)
}

// AdditivePriceSource is the legacy 1:1 conversion: amounts pass through
// unchanged regardless of the asset. Only correct when every valued asset
// is pegged to the reference asset; kept for drop-in compatibility.
type AdditivePriceSource struct{}

// NewAdditivePriceSource returns the legacy pass-through price source.
func NewAdditivePriceSource() AdditivePriceSource {
	return AdditivePriceSource{}
}

// ToReference returns the amount unchanged.
func (AdditivePriceSource) ToReference(_ types.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountInvalid
	}
	return amount, nil
}
