package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meridianlabs/pvm/internal/types"
)

// SaveValuationSnapshot persists one manager-cycle valuation record.
func SaveValuationSnapshot(snapshot types.ValuationSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO valuation_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			idle_balance, position_value, total_assets,
			share_supply, share_price, invested
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp,
		snapshot.IdleBalance, snapshot.PositionValue, snapshot.TotalAssets,
		snapshot.ShareSupply, snapshot.SharePrice, snapshot.Invested,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save valuation snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("total_assets", snapshot.TotalAssets).
		Msg("Valuation snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the newest snapshots, most recent first.
func GetRecentSnapshots(limit int) ([]types.ValuationSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
		       idle_balance, position_value, total_assets,
		       share_supply, share_price, invested
		FROM valuation_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]types.ValuationSnapshot, 0, limit)
	for rows.Next() {
		var s types.ValuationSnapshot
		if err := rows.Scan(
			&s.SnapshotID, &s.CycleNumber, &s.CycleID, &s.Timestamp,
			&s.IdleBalance, &s.PositionValue, &s.TotalAssets,
			&s.ShareSupply, &s.SharePrice, &s.Invested,
		); err != nil {
			return nil, fmt.Errorf("failed to scan valuation snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate valuation snapshots: %w", err)
	}

	return snapshots, nil
}

// SaveInvestmentReceipt persists the outcome of one successful investment.
func SaveInvestmentReceipt(cycleID string, receipt types.InvestmentReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO investment_receipts (
			cycle_id, executed_at,
			desired0, desired1, min0, min1,
			used0, used1, liquidity_minted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		cycleID, receipt.Timestamp,
		receipt.Desired0.String(), receipt.Desired1.String(),
		receipt.Min0.String(), receipt.Min1.String(),
		receipt.Used0.String(), receipt.Used1.String(),
		receipt.LiquidityMinted.String(),
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save investment receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("cycle_id", cycleID).
		Str("liquidity_minted", receipt.LiquidityMinted.String()).
		Msg("Investment receipt saved to database")

	return receiptID, nil
}
