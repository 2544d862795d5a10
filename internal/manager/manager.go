/*

This file implements the manager loop: the privileged role holder that
periodically values the vault, persists a snapshot, and optionally deploys
idle funds into the pool. Investment retries are this layer's concern; a
rejected cycle simply recomputes fresh parameters on the next tick.

*/

package manager

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridianlabs/pvm/internal/ledger"
	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/shares"
	"github.com/meridianlabs/pvm/internal/state"
	"github.com/meridianlabs/pvm/internal/types"
	"github.com/meridianlabs/pvm/internal/utils"
	"github.com/meridianlabs/pvm/internal/vault"
)

// Manager drives the periodic valuation/investment cycle for one vault.
type Manager struct {
	logger zerolog.Logger

	vault     *vault.Vault
	shares    *shares.Book
	reference ledger.TokenLedger
	paired    ledger.TokenLedger

	managerAddress    types.Address
	autoInvest        bool
	investThreshold   sdkmath.Int
	investFractionBps uint64
	slippageBps       uint64

	cycleCount int
}

// Config holds the dependencies and policy for creating a Manager.
type Config struct {
	Vault             *vault.Vault
	Shares            *shares.Book
	ReferenceLedger   ledger.TokenLedger
	PairedLedger      ledger.TokenLedger
	ManagerAddress    types.Address
	AutoInvest        bool
	InvestThreshold   sdkmath.Int
	InvestFractionBps uint64
	SlippageBps       uint64
}

// NewManager creates a manager instance with dependency injection.
func NewManager(cfg Config) (*Manager, error) {
	if err := validateManagerConfig(cfg); err != nil {
		return nil, err
	}

	m := &Manager{
		logger:            logger.GetForComponent("manager_core"),
		vault:             cfg.Vault,
		shares:            cfg.Shares,
		reference:         cfg.ReferenceLedger,
		paired:            cfg.PairedLedger,
		managerAddress:    cfg.ManagerAddress,
		autoInvest:        cfg.AutoInvest,
		investThreshold:   cfg.InvestThreshold,
		investFractionBps: cfg.InvestFractionBps,
		slippageBps:       cfg.SlippageBps,
	}

	m.logger.Info().
		Str("manager", string(m.managerAddress)).
		Bool("autoInvest", m.autoInvest).
		Msg("Manager instance created successfully with dependency injection")

	return m, nil
}

func validateManagerConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault cannot be nil")
	}
	if cfg.Shares == nil {
		return errors.New("share book cannot be nil")
	}
	if cfg.ReferenceLedger == nil || cfg.PairedLedger == nil {
		return errors.New("asset ledgers cannot be nil")
	}
	if cfg.ManagerAddress.IsZero() {
		return errors.New("manager address cannot be zero")
	}
	if cfg.AutoInvest {
		if cfg.InvestThreshold.IsNil() || cfg.InvestThreshold.IsNegative() {
			return errors.New("invest threshold must be non-negative")
		}
		if cfg.InvestFractionBps == 0 || cfg.InvestFractionBps > 10000 {
			return errors.New("invest fraction must be in (0, 10000] bps")
		}
		if cfg.SlippageBps > 10000 {
			return errors.New("slippage must not exceed 10000 bps")
		}
	}
	return nil
}

// RunLoop starts the main manager loop with the specified interval.
func (m *Manager) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().
		Dur("interval", interval).
		Msg("Starting manager main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	m.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Manager loop stopped due to context cancellation")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes one valuation (and possibly investment) cycle.
func (m *Manager) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Logger()

	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		m.cycleCount++
		cycleNumber = m.cycleCount
		cycleLogger.Warn().Err(err).Int("fallback_cycle", cycleNumber).
			Msg("Persistent cycle counter unavailable, using in-memory count")
	} else {
		m.cycleCount = cycleNumber
	}

	cycleLogger.Info().Int("cycle", cycleNumber).Msg("--- Starting manager cycle ---")

	invested := false
	if m.autoInvest {
		invested = m.maybeInvest(cycleLogger, cycleID)
	}

	breakdown, err := m.vault.Valuation()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Valuation failed, skipping snapshot")
		return
	}

	supply := m.shares.TotalSupply()
	sharePrice, err := utils.RatioFloat64(breakdown.Total, supply)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Share price conversion failed, skipping snapshot")
		return
	}

	snapshot := types.ValuationSnapshot{
		CycleNumber:   cycleNumber,
		CycleID:       cycleID,
		Timestamp:     breakdown.Timestamp,
		IdleBalance:   breakdown.IdleBalance.String(),
		PositionValue: breakdown.PositionValue.String(),
		TotalAssets:   breakdown.Total.String(),
		ShareSupply:   supply.String(),
		SharePrice:    sharePrice,
		Invested:      invested,
	}

	if _, err := state.SaveValuationSnapshot(snapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist valuation snapshot")
	}

	cycleLogger.Info().
		Int("cycle", cycleNumber).
		Str("totalAssets", breakdown.Total.String()).
		Float64("sharePrice", sharePrice).
		Bool("invested", invested).
		Dur("duration", time.Since(cycleStartTime)).
		Msg("--- Manager cycle completed ---")
}

// maybeInvest deploys a configured fraction of idle funds when the idle
// balance exceeds the threshold. Returns whether an investment succeeded.
func (m *Manager) maybeInvest(cycleLogger zerolog.Logger, cycleID string) bool {
	idle0 := m.reference.BalanceOf(m.vault.Address())
	if idle0.LTE(m.investThreshold) {
		cycleLogger.Debug().
			Str("idle", idle0.String()).
			Str("threshold", m.investThreshold.String()).
			Msg("Idle balance below threshold, not investing")
		return false
	}

	desired0 := idle0.Mul(sdkmath.NewIntFromUint64(m.investFractionBps)).Quo(sdkmath.NewInt(10000))
	if !desired0.IsPositive() {
		return false
	}

	reserve0, reserve1, _ := m.vault.Pool().Reserves()
	if !reserve0.IsPositive() || !reserve1.IsPositive() {
		cycleLogger.Warn().Msg("Pool has no reserves, not investing")
		return false
	}

	// Match the pool's current ratio so the router consumes both legs fully.
	desired1 := desired0.Mul(reserve1).Quo(reserve0)
	if !desired1.IsPositive() {
		cycleLogger.Debug().Msg("Paired leg quotes to zero, not investing")
		return false
	}

	idle1 := m.paired.BalanceOf(m.vault.Address())
	if idle1.LT(desired1) {
		cycleLogger.Warn().
			Str("pairedIdle", idle1.String()).
			Str("pairedNeeded", desired1.String()).
			Msg("Insufficient paired-asset balance, not investing")
		return false
	}

	min0, err := utils.ApplyBps(desired0, m.slippageBps)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to derive token0 minimum")
		return false
	}
	min1, err := utils.ApplyBps(desired1, m.slippageBps)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to derive token1 minimum")
		return false
	}

	receipt, err := m.vault.InvestV2(m.managerAddress, desired0, desired1, min0, min1)
	if err != nil {
		// Next cycle recomputes against fresh reserves; no retry here.
		cycleLogger.Warn().Err(err).Msg("Investment rejected")
		return false
	}

	if _, err := state.SaveInvestmentReceipt(cycleID, *receipt); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist investment receipt")
	}

	cycleLogger.Info().
		Str("used0", receipt.Used0.String()).
		Str("used1", receipt.Used1.String()).
		Str("liquidityMinted", receipt.LiquidityMinted.String()).
		Msg("Idle funds deployed into pool")

	return true
}
