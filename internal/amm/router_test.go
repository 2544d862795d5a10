package amm

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/types"
)

const (
	token0Addr = types.Address("asset/usdm")
	token1Addr = types.Address("asset/wnat")

	routerAddr   = types.Address("amm/router")
	poolAddr     = types.Address("amm/pair/usdm-wnat")
	providerAddr = types.Address("amm/genesis-lp")
	callerAddr   = types.Address("acct/caller")
)

var testTime = time.Unix(1_700_000_000, 0).UTC()

func fixedClock() time.Time { return testTime }

type routerEnv struct {
	book0  *ledger.Book
	book1  *ledger.Book
	pair   *Pair
	router *Router
}

// newRouterEnv builds a pair with the caller funded on both ledgers. Seeded
// pools get reserves 10000/5000 with LP supply 1000, matching balances
// credited to the pool address.
func newRouterEnv(t *testing.T, seeded bool) *routerEnv {
	t.Helper()

	book0, err := ledger.NewBook(token0Addr)
	require.NoError(t, err)
	book1, err := ledger.NewBook(token1Addr)
	require.NoError(t, err)

	factory := NewFactory()
	pair, err := factory.CreatePair(poolAddr, token0Addr, token1Addr)
	require.NoError(t, err)

	if seeded {
		reserve0, reserve1 := sdkmath.NewInt(10000), sdkmath.NewInt(5000)
		require.NoError(t, book0.Mint(poolAddr, reserve0))
		require.NoError(t, book1.Mint(poolAddr, reserve1))
		require.NoError(t, pair.Seed(providerAddr, reserve0, reserve1, sdkmath.NewInt(1000), testTime))
	}

	require.NoError(t, book0.Mint(callerAddr, sdkmath.NewInt(100_000)))
	require.NoError(t, book1.Mint(callerAddr, sdkmath.NewInt(100_000)))

	router, err := NewRouter(routerAddr, factory, []ledger.TokenLedger{book0, book1}, fixedClock)
	require.NoError(t, err)

	return &routerEnv{book0: book0, book1: book1, pair: pair, router: router}
}

func (env *routerEnv) approve(t *testing.T, amount0, amount1 int64) {
	t.Helper()
	if amount0 > 0 {
		require.NoError(t, env.book0.Approve(callerAddr, routerAddr, sdkmath.NewInt(amount0)))
	}
	if amount1 > 0 {
		require.NoError(t, env.book1.Approve(callerAddr, routerAddr, sdkmath.NewInt(amount1)))
	}
}

func TestAddLiquidityBootstrap(t *testing.T) {
	env := newRouterEnv(t, false)
	env.approve(t, 400, 100)

	used0, used1, liquidity, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(400), sdkmath.NewInt(100),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.NoError(t, err)
	require.Equal(t, int64(400), used0.Int64())
	require.Equal(t, int64(100), used1.Int64())
	require.Equal(t, int64(200), liquidity.Int64(), "bootstrap mints sqrt(400*100)")

	require.Equal(t, int64(200), env.pair.BalanceOf(callerAddr).Int64())
	require.Equal(t, int64(200), env.pair.TotalSupply().Int64())

	reserve0, reserve1, lastUpdate := env.pair.Reserves()
	require.Equal(t, int64(400), reserve0.Int64())
	require.Equal(t, int64(100), reserve1.Int64())
	require.Equal(t, testTime, lastUpdate)
}

func TestAddLiquidityQuotesOptimalPairing(t *testing.T) {
	env := newRouterEnv(t, true)
	env.approve(t, 500, 300)

	// Pool ratio is 2:1; the excess on the token1 leg must not be consumed.
	used0, used1, liquidity, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(300),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.NoError(t, err)
	require.Equal(t, int64(500), used0.Int64())
	require.Equal(t, int64(250), used1.Int64())
	require.Equal(t, int64(50), liquidity.Int64(), "min(500*1000/10000, 250*1000/5000)")

	// Only the consumed amounts leave the caller.
	require.Equal(t, int64(99_500), env.book0.BalanceOf(callerAddr).Int64())
	require.Equal(t, int64(99_750), env.book1.BalanceOf(callerAddr).Int64())

	reserve0, reserve1, _ := env.pair.Reserves()
	require.Equal(t, int64(10_500), reserve0.Int64())
	require.Equal(t, int64(5_250), reserve1.Int64())
	require.Equal(t, int64(1_050), env.pair.TotalSupply().Int64())
}

func TestAddLiquidityFlippedTokenOrder(t *testing.T) {
	env := newRouterEnv(t, true)
	env.approve(t, 500, 300)

	// Same request expressed in (token1, token0) order: results come back in
	// the caller's order, state lands identically.
	usedA, usedB, liquidity, err := env.router.AddLiquidity(
		callerAddr, token1Addr, token0Addr,
		sdkmath.NewInt(300), sdkmath.NewInt(500),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.NoError(t, err)
	require.Equal(t, int64(250), usedA.Int64())
	require.Equal(t, int64(500), usedB.Int64())
	require.Equal(t, int64(50), liquidity.Int64())
}

func TestAddLiquidityDeadlineExpired(t *testing.T) {
	env := newRouterEnv(t, true)
	env.approve(t, 500, 250)

	_, _, _, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime.Add(-time.Second),
	)
	require.ErrorIs(t, err, ErrDeadlineExpired)
	require.Equal(t, int64(100_000), env.book0.BalanceOf(callerAddr).Int64())
}

func TestAddLiquidityMinimumViolations(t *testing.T) {
	env := newRouterEnv(t, true)
	env.approve(t, 1000, 1000)

	// Quoted token1 leg (250) below its minimum.
	_, _, _, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(300),
		sdkmath.ZeroInt(), sdkmath.NewInt(260),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrInsufficientAmountB)

	// Quoted token0 leg (480) below its minimum.
	_, _, _, err = env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(240),
		sdkmath.NewInt(490), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrInsufficientAmountA)

	// Rejections leave pool and balances untouched.
	reserve0, reserve1, _ := env.pair.Reserves()
	require.Equal(t, int64(10_000), reserve0.Int64())
	require.Equal(t, int64(5_000), reserve1.Int64())
	require.Equal(t, int64(100_000), env.book0.BalanceOf(callerAddr).Int64())
	require.Equal(t, int64(100_000), env.book1.BalanceOf(callerAddr).Int64())
}

func TestAddLiquidityAllOrNothing(t *testing.T) {
	env := newRouterEnv(t, true)

	// Only the token0 leg is approved: the request must fail before pulling
	// anything, never stranding a completed first leg.
	env.approve(t, 500, 0)

	_, _, _, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrAllowanceShort)

	require.Equal(t, int64(100_000), env.book0.BalanceOf(callerAddr).Int64())
	require.Equal(t, int64(100_000), env.book1.BalanceOf(callerAddr).Int64())
	require.True(t, env.pair.BalanceOf(callerAddr).IsZero())
}

func TestAddLiquidityBalanceShort(t *testing.T) {
	env := newRouterEnv(t, true)

	poor := types.Address("acct/poor")
	require.NoError(t, env.book0.Mint(poor, sdkmath.NewInt(100)))
	require.NoError(t, env.book1.Mint(poor, sdkmath.NewInt(100)))
	require.NoError(t, env.book0.Approve(poor, routerAddr, sdkmath.NewInt(500)))
	require.NoError(t, env.book1.Approve(poor, routerAddr, sdkmath.NewInt(250)))

	_, _, _, err := env.router.AddLiquidity(
		poor, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		poor, testTime,
	)
	require.ErrorIs(t, err, ErrBalanceShort)
	require.Equal(t, int64(100), env.book0.BalanceOf(poor).Int64())
}

func TestAddLiquidityUnknownPair(t *testing.T) {
	env := newRouterEnv(t, true)
	env.approve(t, 500, 250)

	_, _, _, err := env.router.AddLiquidity(
		callerAddr, token0Addr, types.Address("asset/other"),
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrPairNotFound)
}

func TestAddLiquidityInvalidAmounts(t *testing.T) {
	env := newRouterEnv(t, true)

	_, _, _, err := env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.ZeroInt(), sdkmath.NewInt(250),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrInvalidDesiredAmounts)

	_, _, _, err = env.router.AddLiquidity(
		callerAddr, token0Addr, token1Addr,
		sdkmath.NewInt(500), sdkmath.NewInt(250),
		sdkmath.NewInt(501), sdkmath.ZeroInt(),
		callerAddr, testTime,
	)
	require.ErrorIs(t, err, ErrInvalidMinimumAmounts)
}
