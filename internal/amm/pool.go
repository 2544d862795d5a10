/*

This file implements the external AMM pool collaborator: a constant-product
pair holding two reserves and issuing its own liquidity-accounting token.
The vault core only reads pools (reserves, LP supply, LP balances); all
mutation goes through the router in this package.

*/

package amm

import (
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianlabs/pvm/internal/types"
)

// Error definitions for pool state handling
var (
	ErrPoolInvalid   = errors.New("pool state is invalid")
	ErrSeededAlready = errors.New("pool already has liquidity")
)

// PoolReader is the read-only pool interface the valuation engine consumes.
type PoolReader interface {
	// Address returns the pool's ledger identity.
	Address() types.Address

	// Token0 and Token1 return the pair's constituent assets, in pool order.
	Token0() types.Address
	Token1() types.Address

	// BalanceOf returns the holder's liquidity-token balance.
	BalanceOf(holder types.Address) sdkmath.Int

	// TotalSupply returns the total liquidity-token supply.
	TotalSupply() sdkmath.Int

	// Reserves returns a live snapshot of both reserves and the time of the
	// last reserve update.
	Reserves() (reserve0, reserve1 sdkmath.Int, lastUpdate time.Time)
}

// Pair is a constant-product pool. Reserves, LP supply and LP balances are
// guarded by one mutex so readers always observe a consistent snapshot.
type Pair struct {
	address types.Address
	token0  types.Address
	token1  types.Address

	mu          sync.RWMutex
	reserve0    sdkmath.Int
	reserve1    sdkmath.Int
	lastUpdate  time.Time
	totalSupply sdkmath.Int
	lpBalances  map[types.Address]sdkmath.Int
}

func newPair(address, token0, token1 types.Address) *Pair {
	return &Pair{
		address:     address,
		token0:      token0,
		token1:      token1,
		reserve0:    sdkmath.ZeroInt(),
		reserve1:    sdkmath.ZeroInt(),
		totalSupply: sdkmath.ZeroInt(),
		lpBalances:  make(map[types.Address]sdkmath.Int),
	}
}

// Address returns the pool's ledger identity.
func (p *Pair) Address() types.Address {
	return p.address
}

// Token0 returns the first asset of the pair, in pool order.
func (p *Pair) Token0() types.Address {
	return p.token0
}

// Token1 returns the second asset of the pair, in pool order.
func (p *Pair) Token1() types.Address {
	return p.token1
}

// BalanceOf returns the holder's liquidity-token balance, zero when unknown.
func (p *Pair) BalanceOf(holder types.Address) sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lpBalanceLocked(holder)
}

// TotalSupply returns the total liquidity-token supply.
func (p *Pair) TotalSupply() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSupply
}

// Reserves returns both reserves and the last update time.
func (p *Pair) Reserves() (sdkmath.Int, sdkmath.Int, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserve0, p.reserve1, p.lastUpdate
}

// Seed installs pre-existing third-party liquidity: reserves, LP supply and
// the provider's LP balance, as found at deployment time. Callers are
// responsible for crediting the matching token balances to the pool address
// on the asset ledgers. Fails if the pool already has liquidity.
func (p *Pair) Seed(provider types.Address, reserve0, reserve1, lpSupply sdkmath.Int, now time.Time) error {
	if reserve0.IsNil() || reserve1.IsNil() || lpSupply.IsNil() {
		return errors.Join(ErrPoolInvalid, errors.New("seed amounts cannot be nil"))
	}
	if !reserve0.IsPositive() || !reserve1.IsPositive() || !lpSupply.IsPositive() {
		return errors.Join(ErrPoolInvalid, errors.New("seed amounts must be positive"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.totalSupply.IsZero() {
		return ErrSeededAlready
	}

	p.reserve0 = reserve0
	p.reserve1 = reserve1
	p.totalSupply = lpSupply
	p.lpBalances[provider] = lpSupply
	p.lastUpdate = now
	return nil
}

// applyDeposit commits a validated liquidity provision: reserves grow by the
// consumed amounts and freshly minted LP tokens go to the recipient. The
// router performs all validation before calling; this only mutates.
func (p *Pair) applyDeposit(amount0, amount1, liquidity sdkmath.Int, to types.Address, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reserve0 = p.reserve0.Add(amount0)
	p.reserve1 = p.reserve1.Add(amount1)
	p.totalSupply = p.totalSupply.Add(liquidity)
	p.lpBalances[to] = p.lpBalanceLocked(to).Add(liquidity)
	p.lastUpdate = now
}

func (p *Pair) lpBalanceLocked(holder types.Address) sdkmath.Int {
	if bal, ok := p.lpBalances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}
