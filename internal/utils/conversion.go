/*
This file contains common utility functions for converting between different types,
particularly for SDK math operations and precision handling. Floats exist only at
the reporting boundary (web API, snapshot store); all accounting stays integer.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("decimals is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// IntToFloat64 converts an integer base-unit amount to a display float with
// the given number of decimals.
func IntToFloat64(amount sdkmath.Int, decimals int) (float64, error) {
	if decimals < 0 || decimals > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < decimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// RatioFloat64 returns numerator/denominator as a display float. A zero
// denominator yields 0 rather than an error; callers use this for
// share-price style reporting where an empty vault is a valid state.
func RatioFloat64(numerator, denominator sdkmath.Int) (float64, error) {
	if numerator.IsNil() || denominator.IsNil() {
		return 0, ErrAmountNil
	}
	if numerator.IsNegative() || denominator.IsNegative() {
		return 0, ErrAmountNegative
	}
	if denominator.IsZero() {
		return 0, nil
	}

	result := sdkmath.LegacyNewDecFromInt(numerator).Quo(sdkmath.LegacyNewDecFromInt(denominator))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}
	return resultFloat, nil
}

// SqrtInt returns the integer square root (floor) of a non-negative amount.
func SqrtInt(amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	root := new(big.Int).Sqrt(amount.BigInt())
	return sdkmath.NewIntFromBigInt(root), nil
}

// MinInt returns the smaller of two amounts.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// ApplyBps scales an amount down by (10000 - bps) / 10000, floor division.
// Used to derive slippage minimums from desired amounts.
func ApplyBps(amount sdkmath.Int, bps uint64) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if bps > 10000 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: bps %d exceeds 10000", ErrConversionFailed, bps)
	}
	keep := sdkmath.NewIntFromUint64(10000 - bps)
	return amount.Mul(keep).Quo(sdkmath.NewInt(10000)), nil
}
