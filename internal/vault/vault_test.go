package vault

import (
	"math/big"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/pvm/internal/amm"
	"github.com/meridianlabs/pvm/internal/auth"
	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/types"
)

const (
	token0Addr = types.Address("asset/usdm")
	token1Addr = types.Address("asset/wnat")

	vaultAddr    = types.Address("pvm/vault")
	routerAddr   = types.Address("amm/router")
	poolAddr     = types.Address("amm/pair/usdm-wnat")
	providerAddr = types.Address("amm/genesis-lp")
	managerAddr  = types.Address("acct/manager")
	strangerAddr = types.Address("acct/stranger")
)

var testTime = time.Unix(1_700_000_000, 0).UTC()

func fixedClock() time.Time { return testTime }

type vaultEnv struct {
	book0  *ledger.Book
	book1  *ledger.Book
	pair   *amm.Pair
	router *amm.Router
	roles  *auth.RoleTable
	vault  *Vault
}

// newVaultEnv wires the full collaborator set: pool seeded with third-party
// liquidity at reserves 10000/5000 and LP supply 1000, vault funded with
// 1000 of each token, manager holding the investment role.
func newVaultEnv(t *testing.T) *vaultEnv {
	t.Helper()

	book0, err := ledger.NewBook(token0Addr)
	require.NoError(t, err)
	book1, err := ledger.NewBook(token1Addr)
	require.NoError(t, err)

	factory := amm.NewFactory()
	pair, err := factory.CreatePair(poolAddr, token0Addr, token1Addr)
	require.NoError(t, err)

	reserve0, reserve1 := sdkmath.NewInt(10000), sdkmath.NewInt(5000)
	require.NoError(t, book0.Mint(poolAddr, reserve0))
	require.NoError(t, book1.Mint(poolAddr, reserve1))
	require.NoError(t, pair.Seed(providerAddr, reserve0, reserve1, sdkmath.NewInt(1000), testTime))

	require.NoError(t, book0.Mint(vaultAddr, sdkmath.NewInt(1000)))
	require.NoError(t, book1.Mint(vaultAddr, sdkmath.NewInt(1000)))

	router, err := amm.NewRouter(routerAddr, factory, []ledger.TokenLedger{book0, book1}, fixedClock)
	require.NoError(t, err)

	roles := auth.NewRoleTable()
	roles.Grant(managerAddr, types.OpInvest)

	v, err := NewVault(Config{
		Address:         vaultAddr,
		ReferenceLedger: book0,
		PairedLedger:    book1,
		Factory:         factory,
		Router:          router,
		Authorizer:      roles,
		Clock:           fixedClock,
	})
	require.NoError(t, err)

	return &vaultEnv{book0: book0, book1: book1, pair: pair, router: router, roles: roles, vault: v}
}

func TestNewVaultFailsWithoutPool(t *testing.T) {
	book0, err := ledger.NewBook(token0Addr)
	require.NoError(t, err)
	book1, err := ledger.NewBook(token1Addr)
	require.NoError(t, err)

	factory := amm.NewFactory() // no pair ever created
	router, err := amm.NewRouter(routerAddr, factory, []ledger.TokenLedger{book0, book1}, fixedClock)
	require.NoError(t, err)

	v, err := NewVault(Config{
		Address:         vaultAddr,
		ReferenceLedger: book0,
		PairedLedger:    book1,
		Factory:         factory,
		Router:          router,
		Authorizer:      auth.NewRoleTable(),
	})
	require.ErrorIs(t, err, ErrNoPoolForPair)
	require.Nil(t, v, "no partial vault on failed construction")
}

func TestNewVaultValidatesConfig(t *testing.T) {
	env := newVaultEnv(t)

	base := Config{
		Address:         vaultAddr,
		ReferenceLedger: env.book0,
		PairedLedger:    env.book1,
		Factory:         amm.NewFactory(),
		Router:          env.router,
		Authorizer:      env.roles,
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero address", func(c *Config) { c.Address = types.ZeroAddress }},
		{"nil reference ledger", func(c *Config) { c.ReferenceLedger = nil }},
		{"nil paired ledger", func(c *Config) { c.PairedLedger = nil }},
		{"identical tokens", func(c *Config) { c.PairedLedger = c.ReferenceLedger }},
		{"nil factory", func(c *Config) { c.Factory = nil }},
		{"nil router", func(c *Config) { c.Router = nil }},
		{"nil authorizer", func(c *Config) { c.Authorizer = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			_, err := NewVault(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTotalAssetsEqualsIdleWithZeroClaim(t *testing.T) {
	env := newVaultEnv(t)

	total, err := env.vault.TotalAssets()
	require.NoError(t, err)
	require.Equal(t, int64(1000), total.Int64(), "zero claim means total == idle exactly")

	breakdown, err := env.vault.Valuation()
	require.NoError(t, err)
	require.True(t, breakdown.LiquidityClaim.IsZero())
	require.True(t, breakdown.PositionValue.IsZero())
	require.Equal(t, breakdown.IdleBalance, breakdown.Total)
}

func TestTotalAssetsNeverBelowIdle(t *testing.T) {
	env := newVaultEnv(t)

	_, err := env.vault.InvestV2(managerAddr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.NewInt(495), sdkmath.NewInt(245))
	require.NoError(t, err)

	breakdown, err := env.vault.Valuation()
	require.NoError(t, err)
	require.True(t, breakdown.Total.GTE(breakdown.IdleBalance))
	require.False(t, breakdown.PositionValue.IsNegative())
}

func TestTotalAssetsIsPureRead(t *testing.T) {
	env := newVaultEnv(t)

	first, err := env.vault.TotalAssets()
	require.NoError(t, err)
	second, err := env.vault.TotalAssets()
	require.NoError(t, err)

	require.Equal(t, first, second, "valuation is a pure function of live state")
	require.Equal(t, int64(1000), env.book0.BalanceOf(vaultAddr).Int64())
	require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.pair.BalanceOf(vaultAddr).IsZero())
}

func TestInvestV2Unauthorized(t *testing.T) {
	env := newVaultEnv(t)

	receipt, err := env.vault.InvestV2(strangerAddr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.NewInt(495), sdkmath.NewInt(245))
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Nil(t, receipt)

	// Zero effects: balances, allowances and the claim are untouched.
	require.Equal(t, int64(1000), env.book0.BalanceOf(vaultAddr).Int64())
	require.Equal(t, int64(1000), env.book1.BalanceOf(vaultAddr).Int64())
	require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.book1.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.pair.BalanceOf(vaultAddr).IsZero())
}

func TestInvestV2Scenario(t *testing.T) {
	env := newVaultEnv(t)

	before, err := env.vault.TotalAssets()
	require.NoError(t, err)
	require.Equal(t, int64(1000), before.Int64(), "position contributes zero before investing")

	receipt, err := env.vault.InvestV2(managerAddr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.NewInt(495), sdkmath.NewInt(245))
	require.NoError(t, err)
	require.Equal(t, int64(500), receipt.Used0.Int64())
	require.Equal(t, int64(250), receipt.Used1.Int64())
	require.Equal(t, int64(50), receipt.LiquidityMinted.Int64())

	// Idle balances reduced by exactly the consumed amounts.
	require.Equal(t, int64(500), env.book0.BalanceOf(vaultAddr).Int64())
	require.Equal(t, int64(750), env.book1.BalanceOf(vaultAddr).Int64())
	require.Equal(t, int64(50), env.pair.BalanceOf(vaultAddr).Int64())

	// No residual allowance above what was consumed.
	require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.book1.Allowance(vaultAddr, routerAddr).IsZero())

	// Valuation against post-investment reserves 10500/5250 and LP supply
	// 1050: owned0 = 50*10500/1050 = 500, owned1 = 50*5250/1050 = 250.
	breakdown, err := env.vault.Valuation()
	require.NoError(t, err)
	require.Equal(t, int64(10_500), breakdown.Reserve0.Int64())
	require.Equal(t, int64(5_250), breakdown.Reserve1.Int64())
	require.Equal(t, int64(1_050), breakdown.LPTotalSupply.Int64())
	require.Equal(t, int64(500), breakdown.Owned0.Int64())
	require.Equal(t, int64(250), breakdown.Owned1.Int64())
	require.Equal(t, int64(750), breakdown.PositionValue.Int64())
	require.Equal(t, int64(1_250), breakdown.Total.Int64())
}

func TestInvestV2SlippageRejection(t *testing.T) {
	env := newVaultEnv(t)

	// The pool ratio caps the token0 leg at quote(240) = 480, below the
	// requested minimum of 490: the whole call must abort with zero effects.
	receipt, err := env.vault.InvestV2(managerAddr,
		sdkmath.NewInt(500), sdkmath.NewInt(240),
		sdkmath.NewInt(490), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInvestRejected)
	require.ErrorIs(t, err, amm.ErrInsufficientAmountA)
	require.Nil(t, receipt)

	require.Equal(t, int64(1000), env.book0.BalanceOf(vaultAddr).Int64())
	require.Equal(t, int64(1000), env.book1.BalanceOf(vaultAddr).Int64())
	require.True(t, env.pair.BalanceOf(vaultAddr).IsZero())

	// The scoped allowances granted before the router call are cleared on
	// the rejection path too.
	require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.book1.Allowance(vaultAddr, routerAddr).IsZero())

	total, err := env.vault.TotalAssets()
	require.NoError(t, err)
	require.Equal(t, int64(1000), total.Int64())
}

func TestInvestV2ValidatesAmounts(t *testing.T) {
	env := newVaultEnv(t)

	cases := []struct {
		name                   string
		amount0, amount1       int64
		amount0Min, amount1Min int64
	}{
		{"zero amount0", 0, 250, 0, 0},
		{"zero amount1", 500, 0, 0, 0},
		{"negative minimum", 500, 250, -1, 0},
		{"min above desired", 500, 250, 501, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.vault.InvestV2(managerAddr,
				sdkmath.NewInt(tc.amount0), sdkmath.NewInt(tc.amount1),
				sdkmath.NewInt(tc.amount0Min), sdkmath.NewInt(tc.amount1Min))
			require.ErrorIs(t, err, ErrInvalidAmount)
			require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
		})
	}
}

func TestInvestV2InsufficientIdleBalance(t *testing.T) {
	env := newVaultEnv(t)

	// Desired amounts above the vault's idle balances: the ledger rejects
	// the pull and the call aborts atomically.
	_, err := env.vault.InvestV2(managerAddr,
		sdkmath.NewInt(2000), sdkmath.NewInt(1000),
		sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInvestRejected)

	require.Equal(t, int64(1000), env.book0.BalanceOf(vaultAddr).Int64())
	require.Equal(t, int64(1000), env.book1.BalanceOf(vaultAddr).Int64())
	require.True(t, env.book0.Allowance(vaultAddr, routerAddr).IsZero())
	require.True(t, env.book1.Allowance(vaultAddr, routerAddr).IsZero())
}

func TestValuationOverflowFailsClosed(t *testing.T) {
	book0, err := ledger.NewBook(token0Addr)
	require.NoError(t, err)
	book1, err := ledger.NewBook(token1Addr)
	require.NoError(t, err)

	factory := amm.NewFactory()
	pair, err := factory.CreatePair(poolAddr, token0Addr, token1Addr)
	require.NoError(t, err)

	// Reserves near the 256-bit ceiling with the vault itself holding the
	// claim: the pro-rata multiplication cannot be represented and must
	// abort rather than wrap.
	huge := sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 250))
	claim := sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 20))
	require.NoError(t, pair.Seed(vaultAddr, huge, huge, claim, testTime))

	router, err := amm.NewRouter(routerAddr, factory, []ledger.TokenLedger{book0, book1}, fixedClock)
	require.NoError(t, err)

	v, err := NewVault(Config{
		Address:         vaultAddr,
		ReferenceLedger: book0,
		PairedLedger:    book1,
		Factory:         factory,
		Router:          router,
		Authorizer:      auth.NewRoleTable(),
		Clock:           fixedClock,
	})
	require.NoError(t, err)

	_, err = v.TotalAssets()
	require.ErrorIs(t, err, ErrArithmetic)
}
