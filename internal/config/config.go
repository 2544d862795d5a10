package config

import (
	"errors"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ManagerAddress is the ledger address whose caller identity holds the
	// investment role. The manager loop invests on behalf of this address.
	ManagerAddress string

	// CycleIntervalMinutes is the period of the manager valuation loop.
	CycleIntervalMinutes uint64

	// AutoInvest enables the investment policy in the manager loop. When
	// false the loop only records valuation snapshots.
	AutoInvest bool

	// InvestThreshold is the idle reference-asset balance (base units) above
	// which the manager deploys funds into the pool.
	InvestThreshold sdkmath.Int

	// InvestFractionBps is the portion of idle balance deployed per cycle,
	// in basis points (e.g. 5000 = 50%).
	InvestFractionBps uint64

	// SlippageBps is the manager's slippage tolerance in basis points,
	// applied to both desired amounts when deriving the router minimums.
	SlippageBps uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ManagerAddress, err = getEnv("PVM_MANAGER_ADDRESS")
	if err != nil {
		return err
	}

	CycleIntervalMinutes, err = getEnvAsUint64("PVM_CYCLE_INTERVAL_MINUTES")
	if err != nil {
		return err
	}
	if CycleIntervalMinutes == 0 {
		return errors.New("PVM_CYCLE_INTERVAL_MINUTES must be greater than zero")
	}

	AutoInvest, err = getEnvAsBool("PVM_AUTO_INVEST")
	if err != nil {
		return err
	}

	InvestThreshold, err = getEnvAsInt("PVM_INVEST_THRESHOLD")
	if err != nil {
		return err
	}

	InvestFractionBps, err = getEnvAsUint64("PVM_INVEST_FRACTION_BPS")
	if err != nil {
		return err
	}
	if InvestFractionBps == 0 || InvestFractionBps > 10000 {
		return errors.New("PVM_INVEST_FRACTION_BPS must be in (0, 10000]")
	}

	SlippageBps, err = getEnvAsUint64("PVM_SLIPPAGE_BPS")
	if err != nil {
		return err
	}
	if SlippageBps > 10000 {
		return errors.New("PVM_SLIPPAGE_BPS must not exceed 10000")
	}

	log.Debug().
		Str("ManagerAddress", ManagerAddress).
		Uint64("CycleIntervalMinutes", CycleIntervalMinutes).
		Bool("AutoInvest", AutoInvest).
		Str("InvestThreshold", InvestThreshold.String()).
		Uint64("SlippageBps", SlippageBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as a non-negative sdkmath.Int
// in base units. Returns error if not set or invalid.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.ZeroInt(), errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	if value.IsNegative() {
		return sdkmath.ZeroInt(), errors.New("environment variable " + key + " must not be negative, got: " + valueStr)
	}
	return value, nil
}
