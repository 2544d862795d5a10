/*

This file implements the external AMM router collaborator. AddLiquidity is the
single entry point the investment executor submits to: it computes the optimal
pairing against current reserves, enforces the caller's minimum amounts and
deadline, and commits transfers plus LP mint as one all-or-nothing unit.
Every check runs before the first mutation, so a rejection has zero effects.

*/

package amm

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/types"
	"github.com/meridianlabs/pvm/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrPairNotFound          = errors.New("no pair exists for token pair")
	ErrDeadlineExpired       = errors.New("deadline has expired")
	ErrInvalidDesiredAmounts = errors.New("desired amounts are invalid")
	ErrInvalidMinimumAmounts = errors.New("minimum amounts are invalid")
	ErrInsufficientAmountA   = errors.New("resulting amountA below minimum")
	ErrInsufficientAmountB   = errors.New("resulting amountB below minimum")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity minted")
	ErrLedgerUnknown         = errors.New("no ledger registered for token")
	ErrAllowanceShort        = errors.New("router allowance below required amount")
	ErrBalanceShort          = errors.New("caller balance below required amount")
)

var routerLogger = logger.GetForComponent("amm_router")

// Clock supplies the router's notion of current time; injectable for tests.
type Clock func() time.Time

// Router pairs deposits into factory pools, pulling funds from the caller via
// previously granted allowances.
type Router struct {
	address types.Address
	factory *Factory
	books   map[types.Address]ledger.TokenLedger
	clock   Clock
}

// NewRouter creates a router over the given factory and asset ledgers.
func NewRouter(address types.Address, factory *Factory, books []ledger.TokenLedger, clock Clock) (*Router, error) {
	if address.IsZero() {
		return nil, errors.New("router address cannot be zero")
	}
	if factory == nil {
		return nil, errors.New("factory cannot be nil")
	}
	if clock == nil {
		clock = time.Now
	}

	byAsset := make(map[types.Address]ledger.TokenLedger, len(books))
	for _, book := range books {
		if book == nil {
			return nil, errors.New("ledger cannot be nil")
		}
		byAsset[book.Asset()] = book
	}

	return &Router{
		address: address,
		factory: factory,
		books:   byAsset,
		clock:   clock,
	}, nil
}

// Address returns the router's ledger identity, the spender of allowances.
func (r *Router) Address() types.Address {
	return r.address
}

// AddLiquidity deposits up to the desired amounts of (tokenA, tokenB) into
// their canonical pool, consuming the caller's allowances, and mints the
// pool's liquidity tokens to the recipient. The amounts actually consumed
// follow the pool ratio and may be below the desired amounts; they are
// never below the supplied minimums. Returns the consumed amounts and the
// liquidity minted.
func (r *Router) AddLiquidity(
	caller types.Address,
	tokenA, tokenB types.Address,
	amountADesired, amountBDesired sdkmath.Int,
	amountAMin, amountBMin sdkmath.Int,
	to types.Address,
	deadline time.Time,
) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()

	if r.clock().After(deadline) {
		return zero, zero, zero, ErrDeadlineExpired
	}

	if amountADesired.IsNil() || amountBDesired.IsNil() ||
		!amountADesired.IsPositive() || !amountBDesired.IsPositive() {
		return zero, zero, zero, ErrInvalidDesiredAmounts
	}
	if amountAMin.IsNil() || amountBMin.IsNil() ||
		amountAMin.IsNegative() || amountBMin.IsNegative() ||
		amountAMin.GT(amountADesired) || amountBMin.GT(amountBDesired) {
		return zero, zero, zero, ErrInvalidMinimumAmounts
	}

	pair := r.factory.PairFor(tokenA, tokenB)
	if pair == nil {
		return zero, zero, zero, errors.Join(ErrPairNotFound,
			fmt.Errorf("pair (%s, %s)", tokenA, tokenB))
	}

	// Orient the request to pool order.
	flipped := tokenA == pair.Token1()
	if flipped {
		amountADesired, amountBDesired = amountBDesired, amountADesired
		amountAMin, amountBMin = amountBMin, amountAMin
	}

	amount0, amount1, err := r.optimalAmounts(pair, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return zero, zero, zero, err
	}

	liquidity, err := mintableLiquidity(pair, amount0, amount1)
	if err != nil {
		return zero, zero, zero, err
	}

	book0, ok := r.books[pair.Token0()]
	if !ok {
		return zero, zero, zero, errors.Join(ErrLedgerUnknown, fmt.Errorf("token %s", pair.Token0()))
	}
	book1, ok := r.books[pair.Token1()]
	if !ok {
		return zero, zero, zero, errors.Join(ErrLedgerUnknown, fmt.Errorf("token %s", pair.Token1()))
	}

	// Stage: validate both pulls before mutating anything, so a rejection
	// on the second leg cannot strand a completed first leg.
	if err := r.validatePull(book0, caller, amount0); err != nil {
		return zero, zero, zero, err
	}
	if err := r.validatePull(book1, caller, amount1); err != nil {
		return zero, zero, zero, err
	}

	now := r.clock()
	if err := book0.TransferFrom(r.address, caller, pair.Address(), amount0); err != nil {
		return zero, zero, zero, fmt.Errorf("token0 pull failed after validation: %w", err)
	}
	if err := book1.TransferFrom(r.address, caller, pair.Address(), amount1); err != nil {
		return zero, zero, zero, fmt.Errorf("token1 pull failed after validation: %w", err)
	}
	pair.applyDeposit(amount0, amount1, liquidity, to, now)

	routerLogger.Info().
		Str("pair", string(pair.Address())).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Str("liquidity", liquidity.String()).
		Str("recipient", string(to)).
		Msg("Liquidity added")

	if flipped {
		return amount1, amount0, liquidity, nil
	}
	return amount0, amount1, liquidity, nil
}

// optimalAmounts applies the standard pairing rule: hold one desired amount,
// quote the other against current reserves, and reject when the quoted leg
// falls below its minimum.
func (r *Router) optimalAmounts(pair *Pair, desired0, desired1, min0, min1 sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	reserve0, reserve1, _ := pair.Reserves()

	if reserve0.IsZero() && reserve1.IsZero() {
		return desired0, desired1, nil
	}

	optimal1 := quote(desired0, reserve0, reserve1)
	if optimal1.LTE(desired1) {
		if optimal1.LT(min1) {
			return zero, zero, errors.Join(ErrInsufficientAmountB,
				fmt.Errorf("quoted %s, minimum %s", optimal1, min1))
		}
		return desired0, optimal1, nil
	}

	optimal0 := quote(desired1, reserve1, reserve0)
	if optimal0.GT(desired0) {
		// Cannot happen with positive reserves; quoting both ways is monotone.
		return zero, zero, errors.Join(ErrInvalidDesiredAmounts,
			fmt.Errorf("quote inversion for pair %s", pair.Address()))
	}
	if optimal0.LT(min0) {
		return zero, zero, errors.Join(ErrInsufficientAmountA,
			fmt.Errorf("quoted %s, minimum %s", optimal0, min0))
	}
	return optimal0, desired1, nil
}

// quote returns amountB = amountA * reserveB / reserveA, floor division.
func quote(amountA, reserveA, reserveB sdkmath.Int) sdkmath.Int {
	return amountA.Mul(reserveB).Quo(reserveA)
}

// mintableLiquidity derives the LP tokens for a deposit: sqrt(a*b) on an
// empty pool, otherwise the minimum of the two supply-scaled ratios.
func mintableLiquidity(pair *Pair, amount0, amount1 sdkmath.Int) (sdkmath.Int, error) {
	supply := pair.TotalSupply()

	if supply.IsZero() {
		root, err := utils.SqrtInt(amount0.Mul(amount1))
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if !root.IsPositive() {
			return sdkmath.ZeroInt(), ErrInsufficientLiquidity
		}
		return root, nil
	}

	reserve0, reserve1, _ := pair.Reserves()
	liquidity := utils.MinInt(
		amount0.Mul(supply).Quo(reserve0),
		amount1.Mul(supply).Quo(reserve1),
	)
	if !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), ErrInsufficientLiquidity
	}
	return liquidity, nil
}

// validatePull checks allowance and balance for one leg without mutating.
func (r *Router) validatePull(book ledger.TokenLedger, caller types.Address, amount sdkmath.Int) error {
	if allowed := book.Allowance(caller, r.address); allowed.LT(amount) {
		return errors.Join(ErrAllowanceShort,
			fmt.Errorf("asset %s: allowed %s, needs %s", book.Asset(), allowed, amount))
	}
	if bal := book.BalanceOf(caller); bal.LT(amount) {
		return errors.Join(ErrBalanceShort,
			fmt.Errorf("asset %s: balance %s, needs %s", book.Asset(), bal, amount))
	}
	return nil
}
