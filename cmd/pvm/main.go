package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/meridianlabs/pvm/internal/amm"
	"github.com/meridianlabs/pvm/internal/auth"
	"github.com/meridianlabs/pvm/internal/config"
	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/manager"
	"github.com/meridianlabs/pvm/internal/shares"
	"github.com/meridianlabs/pvm/internal/state"
	"github.com/meridianlabs/pvm/internal/types"
	"github.com/meridianlabs/pvm/internal/vault"
	"github.com/meridianlabs/pvm/internal/web"
)

// Ledger identities for the in-process deployment. The reference asset is
// token0 of the pair; the paired asset provides the other pool leg.
const (
	vaultAddress  = types.Address("pvm/vault")
	routerAddress = types.Address("amm/router")
	poolAddress   = types.Address("amm/pair/usdm-wnat")
	seedProvider  = types.Address("amm/genesis-lp")

	token0Address = types.Address("asset/usdm")
	token1Address = types.Address("asset/wnat")
)

// main is the entry point for the PVM daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("PVM Core Logic Starting...")

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database connection (valuation snapshots + receipts)
	dbCfg := state.DBConfig{
		Host: envOr("DB_HOST", "localhost"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: envOr("DB_SSLMODE", "disable"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Collaborator Wiring (with Safety Switch) ---
	if os.Getenv("PVM_MODE") != "live" {
		log.Fatal().Msg("PVM_MODE is not set to 'live'. Halting to prevent accidental execution. Set PVM_MODE=live to run.")
	}

	book0, err := ledger.NewBook(token0Address)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token0 ledger")
	}
	book1, err := ledger.NewBook(token1Address)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token1 ledger")
	}

	factory := amm.NewFactory()
	pair, err := factory.CreatePair(poolAddress, token0Address, token1Address)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pair")
	}

	if err := seedGenesis(book0, book1, pair); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed genesis state")
	}

	router, err := amm.NewRouter(routerAddress, factory, []ledger.TokenLedger{book0, book1}, time.Now)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create router")
	}

	roles := auth.NewRoleTable()
	roles.Grant(types.Address(config.ManagerAddress), types.OpInvest)

	v, err := vault.NewVault(vault.Config{
		Address:         vaultAddress,
		ReferenceLedger: book0,
		PairedLedger:    book1,
		Factory:         factory,
		Router:          router,
		Authorizer:      roles,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct vault")
	}

	shareBook, err := shares.NewBook(v, book0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create share book")
	}

	// --- 3. Start Web Server ---
	webPort := envOr("WEB_PORT", "8080")
	webServer := web.NewWebServer(webPort, v, shareBook)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting PVM web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Create Manager Instance with Dependency Injection ---
	mgr, err := manager.NewManager(manager.Config{
		Vault:             v,
		Shares:            shareBook,
		ReferenceLedger:   book0,
		PairedLedger:      book1,
		ManagerAddress:    types.Address(config.ManagerAddress),
		AutoInvest:        config.AutoInvest,
		InvestThreshold:   config.InvestThreshold,
		InvestFractionBps: config.InvestFractionBps,
		SlippageBps:       config.SlippageBps,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create manager instance")
	}

	// --- 5. Start Manager Main Loop ---
	interval := time.Duration(config.CycleIntervalMinutes) * time.Minute
	log.Info().Str("interval", interval.String()).Msg("Starting manager main loop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.RunLoop(ctx, interval)
}

// seedGenesis installs the pre-existing third-party pool liquidity and the
// vault's opening balances, both configurable via environment variables.
func seedGenesis(book0, book1 *ledger.Book, pair *amm.Pair) error {
	reserve0 := mustInt(envOr("PVM_SEED_RESERVE0", "10000000000"))
	reserve1 := mustInt(envOr("PVM_SEED_RESERVE1", "5000000000"))
	lpSupply := mustInt(envOr("PVM_SEED_LP_SUPPLY", "1000000000"))

	// The pool's token balances live on the asset ledgers, at its address.
	if err := book0.Mint(pair.Address(), reserve0); err != nil {
		return err
	}
	if err := book1.Mint(pair.Address(), reserve1); err != nil {
		return err
	}
	if err := pair.Seed(seedProvider, reserve0, reserve1, lpSupply, time.Now()); err != nil {
		return err
	}

	// Opening paired-asset float so the investment executor has a second leg.
	if paired := mustInt(envOr("PVM_VAULT_PAIRED_FLOAT", "0")); paired.IsPositive() {
		if err := book1.Mint(vaultAddress, paired); err != nil {
			return err
		}
	}

	return nil
}

func mustInt(s string) sdkmath.Int {
	value, ok := sdkmath.NewIntFromString(s)
	if !ok || value.IsNegative() {
		log.Fatal().Str("value", s).Msg("Invalid integer amount in environment")
	}
	return value
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
