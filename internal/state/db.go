package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection verifies the pool is alive; used by the health endpoint.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return DB.PingContext(ctx)
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS valuation_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			cycle_id TEXT NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL,
			idle_balance NUMERIC(78, 0) NOT NULL,
			position_value NUMERIC(78, 0) NOT NULL,
			total_assets NUMERIC(78, 0) NOT NULL,
			share_supply NUMERIC(78, 0) NOT NULL,
			share_price DOUBLE PRECISION NOT NULL,
			invested BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS idx_valuation_snapshots_timestamp
			ON valuation_snapshots (snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS investment_receipts (
			receipt_id SERIAL PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL,
			desired0 NUMERIC(78, 0) NOT NULL,
			desired1 NUMERIC(78, 0) NOT NULL,
			min0 NUMERIC(78, 0) NOT NULL,
			min1 NUMERIC(78, 0) NOT NULL,
			used0 NUMERIC(78, 0) NOT NULL,
			used1 NUMERIC(78, 0) NOT NULL,
			liquidity_minted NUMERIC(78, 0) NOT NULL
		);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
