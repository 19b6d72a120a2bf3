package state

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/types"
)

var snapshotLogger = logger.GetForComponent("state_snapshots")

// SaveVaultSnapshot persists one aggregate snapshot and returns its snapshot_id.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	allocationsJSON, err := json.Marshal(snapshot.Allocations)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal allocations: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots
			(snapshot_timestamp, total_balance, total_shares, share_price, current_pool, allocations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING snapshot_id
	`

	var snapshotID int64
	err = DB.QueryRow(query,
		snapshot.Timestamp,
		snapshot.TotalBalance.String(),
		snapshot.TotalShares.String(),
		snapshot.SharePrice,
		nullableString(snapshot.CurrentPool),
		allocationsJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault snapshot: %w", err)
	}

	snapshotLogger.Debug().Int64("snapshotId", snapshotID).Msg("Vault snapshot saved")
	return snapshotID, nil
}

// GetLatestSnapshot returns the most recent vault snapshot.
func GetLatestSnapshot() (*types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, total_balance, total_shares, share_price,
			COALESCE(current_pool, ''), allocations
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`

	var (
		snapshot        types.VaultSnapshot
		totalBalance    string
		totalShares     string
		allocationsJSON []byte
	)
	err := DB.QueryRow(query).Scan(
		&snapshot.SnapshotID, &snapshot.Timestamp, &totalBalance, &totalShares,
		&snapshot.SharePrice, &snapshot.CurrentPool, &allocationsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest vault snapshot: %w", err)
	}

	balance, ok := sdkmath.NewIntFromString(totalBalance)
	if !ok {
		return nil, fmt.Errorf("unparseable total_balance: %s", totalBalance)
	}
	shares, ok := sdkmath.NewIntFromString(totalShares)
	if !ok {
		return nil, fmt.Errorf("unparseable total_shares: %s", totalShares)
	}
	snapshot.TotalBalance = balance
	snapshot.TotalShares = shares

	if len(allocationsJSON) > 0 {
		if err := json.Unmarshal(allocationsJSON, &snapshot.Allocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
		}
	}

	return &snapshot, nil
}
