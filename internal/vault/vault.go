/*

This package is the vault core: the valuation engine (TotalAssets) and the
investment executor (InvestV2). The vault owns no balances internally; its
idle funds and liquidity claim live on the external asset ledgers and the
external pool, and every read goes back to those live sources.

*/

package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianlabs/pvm/internal/amm"
	"github.com/meridianlabs/pvm/internal/auth"
	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/oracle"
	"github.com/meridianlabs/pvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoPoolForPair    = errors.New("no pool exists for the configured token pair")
	ErrInvalidConfig    = errors.New("vault configuration is invalid")
	ErrUnauthorized     = errors.New("caller is not authorized")
	ErrInvalidAmount    = errors.New("amount is invalid")
	ErrArithmetic       = errors.New("arithmetic boundary error")
	ErrCorruptPoolState = errors.New("pool state is corrupt")
	ErrInvestRejected   = errors.New("investment rejected by router")
)

// Vault pairs idle reference-asset deposits into one pinned AMM pool and
// values the resulting position. Singleton per deployment.
type Vault struct {
	address types.Address

	// token0 is the reference asset; token1 is the paired asset.
	token0 types.Address
	token1 types.Address

	reference ledger.TokenLedger
	paired    ledger.TokenLedger

	// pool is resolved once at construction and never re-queried.
	pool   amm.PoolReader
	router *amm.Router

	authorizer auth.Authorizer
	prices     oracle.PriceSource
	clock      amm.Clock

	logger zerolog.Logger
}

// Config holds the collaborators for constructing a Vault.
type Config struct {
	Address         types.Address
	ReferenceLedger ledger.TokenLedger // token0 book (the reference asset)
	PairedLedger    ledger.TokenLedger // token1 book
	Factory         *amm.Factory
	Router          *amm.Router
	Authorizer      auth.Authorizer
	Prices          oracle.PriceSource
	Clock           amm.Clock
}

// NewVault validates the configuration, resolves the canonical pool for
// (token0, token1) through the factory, and pins it for the vault's
// lifetime. Construction fails outright when no pool exists; no partial
// vault is ever returned.
func NewVault(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	token0 := cfg.ReferenceLedger.Asset()
	token1 := cfg.PairedLedger.Asset()

	pool := cfg.Factory.PairFor(token0, token1)
	if pool == nil {
		return nil, errors.Join(ErrNoPoolForPair,
			fmt.Errorf("pair (%s, %s)", token0, token1))
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	prices := cfg.Prices
	if prices == nil {
		prices = oracle.NewAdditivePriceSource()
	}

	v := &Vault{
		address:    cfg.Address,
		token0:     token0,
		token1:     token1,
		reference:  cfg.ReferenceLedger,
		paired:     cfg.PairedLedger,
		pool:       pool,
		router:     cfg.Router,
		authorizer: cfg.Authorizer,
		prices:     prices,
		clock:      clock,
		logger:     logger.GetForComponent("vault_core"),
	}

	v.logger.Info().
		Str("vault", string(v.address)).
		Str("token0", string(token0)).
		Str("token1", string(token1)).
		Str("pool", string(pool.Address())).
		Msg("Vault constructed with pinned pool handle")

	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Address.IsZero() {
		return errors.Join(ErrInvalidConfig, errors.New("vault address cannot be zero"))
	}
	if cfg.ReferenceLedger == nil {
		return errors.Join(ErrInvalidConfig, errors.New("reference ledger cannot be nil"))
	}
	if cfg.PairedLedger == nil {
		return errors.Join(ErrInvalidConfig, errors.New("paired ledger cannot be nil"))
	}
	if cfg.ReferenceLedger.Asset() == cfg.PairedLedger.Asset() {
		return errors.Join(ErrInvalidConfig, errors.New("token0 and token1 must differ"))
	}
	if cfg.Factory == nil {
		return errors.Join(ErrInvalidConfig, errors.New("factory cannot be nil"))
	}
	if cfg.Router == nil {
		return errors.Join(ErrInvalidConfig, errors.New("router cannot be nil"))
	}
	if cfg.Authorizer == nil {
		return errors.Join(ErrInvalidConfig, errors.New("authorizer cannot be nil"))
	}
	return nil
}

// Address returns the vault's ledger identity.
func (v *Vault) Address() types.Address {
	return v.address
}

// Token0 returns the reference asset identity.
func (v *Vault) Token0() types.Address {
	return v.token0
}

// Token1 returns the paired asset identity.
func (v *Vault) Token1() types.Address {
	return v.token1
}

// Pool returns the pinned pool handle.
func (v *Vault) Pool() amm.PoolReader {
	return v.pool
}
