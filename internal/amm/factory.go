package amm

import (
	"errors"
	"sync"

	"github.com/meridianlabs/pvm/internal/types"
)

// Error definitions for factory operations
var (
	ErrPairExists       = errors.New("pair already exists")
	ErrIdenticalTokens  = errors.New("pair tokens are identical")
	ErrZeroTokenAddress = errors.New("pair token address is zero")
)

// Factory resolves the canonical pool for a token pair. Lookups for pairs
// that were never created return nil, the "no such pool" sentinel.
type Factory struct {
	mu    sync.RWMutex
	pairs map[pairKey]*Pair
}

type pairKey struct {
	tokenA types.Address
	tokenB types.Address
}

// canonical orders the key so (A,B) and (B,A) resolve to the same pair.
func canonical(tokenA, tokenB types.Address) pairKey {
	if tokenB < tokenA {
		tokenA, tokenB = tokenB, tokenA
	}
	return pairKey{tokenA: tokenA, tokenB: tokenB}
}

// NewFactory creates an empty pair registry.
func NewFactory() *Factory {
	return &Factory{pairs: make(map[pairKey]*Pair)}
}

// CreatePair registers a new constant-product pool for the token pair,
// with pool order (token0, token1) as given.
func (f *Factory) CreatePair(address, token0, token1 types.Address) (*Pair, error) {
	if token0.IsZero() || token1.IsZero() || address.IsZero() {
		return nil, ErrZeroTokenAddress
	}
	if token0 == token1 {
		return nil, ErrIdenticalTokens
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := canonical(token0, token1)
	if _, ok := f.pairs[key]; ok {
		return nil, ErrPairExists
	}

	pair := newPair(address, token0, token1)
	f.pairs[key] = pair
	return pair, nil
}

// PairFor returns the canonical pool for the token pair, or nil when no
// such pool exists.
func (f *Factory) PairFor(tokenA, tokenB types.Address) *Pair {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pairs[canonical(tokenA, tokenB)]
}
