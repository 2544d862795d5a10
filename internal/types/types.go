/*

Shared domain types for the PVM system: account/asset identities and the
records exchanged between the vault core, the manager loop, the snapshot
store, and the web API.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address identifies an account or an asset on the external ledger set.
// The empty address is the "does not exist" sentinel used by the pool
// factory lookup.
type Address string

// ZeroAddress is the null/sentinel address.
const ZeroAddress Address = ""

// IsZero reports whether the address is the null sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Operation names a privileged vault operation for authorization checks.
type Operation string

const (
	// OpInvest is the investment-executor operation (privileged).
	OpInvest Operation = "INVEST"
)

// Token describes a fungible asset handled by the vault.
type Token struct {
	Symbol   string  `json:"symbol"`   // e.g., "USDm"
	Address  Address `json:"address"`  // ledger identity of the asset
	Decimals int     `json:"decimals"` // e.g., 6 = 1_000_000 base units per token
}

// ValuationBreakdown is the full result of one valuation-engine read.
// All amounts are integer base units of the respective assets; Total is
// expressed in reference-asset terms.
type ValuationBreakdown struct {
	Timestamp      time.Time   `json:"timestamp"`
	IdleBalance    sdkmath.Int `json:"idle_balance"`     // reference asset held directly by the vault
	LiquidityClaim sdkmath.Int `json:"liquidity_claim"`  // vault's LP token balance at the pool
	LPTotalSupply  sdkmath.Int `json:"lp_total_supply"`  // pool's total LP token supply
	Reserve0       sdkmath.Int `json:"reserve0"`         // pool reserve of token0 at read time
	Reserve1       sdkmath.Int `json:"reserve1"`         // pool reserve of token1 at read time
	Owned0         sdkmath.Int `json:"owned0"`           // pro-rata claim on reserve0
	Owned1         sdkmath.Int `json:"owned1"`           // pro-rata claim on reserve1, in reference terms
	PositionValue  sdkmath.Int `json:"position_value"`   // Owned0 + Owned1
	Total          sdkmath.Int `json:"total"`            // IdleBalance + PositionValue
}

// InvestmentReceipt records the outcome of a successful investment call.
// The used amounts come from the router and may be below the desired
// amounts when the pool ratio differs.
type InvestmentReceipt struct {
	Timestamp       time.Time   `json:"timestamp"`
	Desired0        sdkmath.Int `json:"desired0"`
	Desired1        sdkmath.Int `json:"desired1"`
	Min0            sdkmath.Int `json:"min0"`
	Min1            sdkmath.Int `json:"min1"`
	Used0           sdkmath.Int `json:"used0"`
	Used1           sdkmath.Int `json:"used1"`
	LiquidityMinted sdkmath.Int `json:"liquidity_minted"`
}

// ValuationSnapshot is the persisted per-cycle record written by the
// manager loop and served by the web API. Amounts are stored as decimal
// strings so Postgres NUMERIC columns round-trip without precision loss.
type ValuationSnapshot struct {
	SnapshotID    int64     `json:"snapshot_id,omitempty"`
	CycleNumber   int       `json:"cycle_number"`
	CycleID       string    `json:"cycle_id"`
	Timestamp     time.Time `json:"timestamp"`
	IdleBalance   string    `json:"idle_balance"`
	PositionValue string    `json:"position_value"`
	TotalAssets   string    `json:"total_assets"`
	ShareSupply   string    `json:"share_supply"`
	SharePrice    float64   `json:"share_price"` // reporting-only float, never fed back into accounting
	Invested      bool      `json:"invested"`    // whether this cycle executed an investment
}
