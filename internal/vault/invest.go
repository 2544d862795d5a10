/*

Investment executor. InvestV2 moves idle token0/token1 into the pinned pool
through the router, with caller-supplied slippage minimums and a deadline of
exactly the current execution time. Allowances to the router are scoped to
the requested amounts and cleared again on every exit path, so no residual
spending power outlives the call.

*/

package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/types"
)

// InvestV2 deploys up to (amount0, amount1) of idle funds into the pool.
// amount0Min/amount1Min bound the acceptable slippage; the router consumes
// the optimal pairing at current reserves and may use less than requested.
// Any router rejection aborts atomically with idle balances, allowances and
// the liquidity claim exactly as before the call. Retries are the caller's
// responsibility, with fresh parameters.
func (v *Vault) InvestV2(
	caller types.Address,
	amount0, amount1 sdkmath.Int,
	amount0Min, amount1Min sdkmath.Int,
) (*types.InvestmentReceipt, error) {
	if !v.authorizer.IsAllowed(caller, types.OpInvest) {
		return nil, errors.Join(ErrUnauthorized,
			fmt.Errorf("caller %s lacks %s role", caller, types.OpInvest))
	}

	if err := validateInvestAmounts(amount0, amount1, amount0Min, amount1Min); err != nil {
		return nil, err
	}

	// Scoped, single-use allowances: exactly the requested amounts, nothing
	// unlimited, bounding the blast radius of a compromised router.
	if err := v.reference.Approve(v.address, v.router.Address(), amount0); err != nil {
		return nil, fmt.Errorf("token0 approval failed: %w", err)
	}
	if err := v.paired.Approve(v.address, v.router.Address(), amount1); err != nil {
		// Undo the first approval before surfacing; no stale spending power.
		if revokeErr := v.reference.Approve(v.address, v.router.Address(), sdkmath.ZeroInt()); revokeErr != nil {
			return nil, errors.Join(revokeErr, fmt.Errorf("token1 approval failed: %w", err))
		}
		return nil, fmt.Errorf("token1 approval failed: %w", err)
	}

	// Deadline is the current execution time: the request is honored within
	// this state transition or not at all.
	now := v.clock()
	used0, used1, liquidity, routerErr := v.router.AddLiquidity(
		v.address,
		v.token0, v.token1,
		amount0, amount1,
		amount0Min, amount1Min,
		v.address,
		now,
	)

	// Clear residual allowances on both paths. On success the router has
	// consumed part of the grant via TransferFrom; whatever remains is
	// revoked here so no allowance above the consumed amounts persists.
	if err := v.clearRouterAllowances(); err != nil {
		return nil, err
	}

	if routerErr != nil {
		return nil, errors.Join(ErrInvestRejected, routerErr)
	}

	receipt := &types.InvestmentReceipt{
		Timestamp:       now,
		Desired0:        amount0,
		Desired1:        amount1,
		Min0:            amount0Min,
		Min1:            amount1Min,
		Used0:           used0,
		Used1:           used1,
		LiquidityMinted: liquidity,
	}

	v.logger.Info().
		Str("caller", string(caller)).
		Str("used0", used0.String()).
		Str("used1", used1.String()).
		Str("liquidityMinted", liquidity.String()).
		Msg("Investment executed")

	return receipt, nil
}

func validateInvestAmounts(amount0, amount1, amount0Min, amount1Min sdkmath.Int) error {
	if amount0.IsNil() || amount1.IsNil() || !amount0.IsPositive() || !amount1.IsPositive() {
		return errors.Join(ErrInvalidAmount, errors.New("desired amounts must be positive"))
	}
	if amount0Min.IsNil() || amount1Min.IsNil() || amount0Min.IsNegative() || amount1Min.IsNegative() {
		return errors.Join(ErrInvalidAmount, errors.New("minimum amounts must be non-negative"))
	}
	if amount0Min.GT(amount0) || amount1Min.GT(amount1) {
		return errors.Join(ErrInvalidAmount, errors.New("minimum amounts exceed desired amounts"))
	}
	return nil
}

func (v *Vault) clearRouterAllowances() error {
	zero := sdkmath.ZeroInt()
	if err := v.reference.Approve(v.address, v.router.Address(), zero); err != nil {
		return fmt.Errorf("failed to clear token0 allowance: %w", err)
	}
	if err := v.paired.Approve(v.address, v.router.Address(), zero); err != nil {
		return fmt.Errorf("failed to clear token1 allowance: %w", err)
	}
	return nil
}
