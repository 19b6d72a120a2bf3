package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/types"
)

var receiptLogger = logger.GetForComponent("state_receipts")

// DBRecorder persists operation receipts through the global DB pool. It
// satisfies the vault facade's Recorder interface.
type DBRecorder struct{}

func NewDBRecorder() *DBRecorder {
	return &DBRecorder{}
}

func (r *DBRecorder) RecordOperation(receipt types.OperationReceipt) error {
	_, err := SaveOperationReceipt(receipt)
	return err
}

// SaveOperationReceipt inserts one receipt and returns its receipt_id.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts
			(op_id, op_timestamp, op_type, user_id, amount, shares, pool, success, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id
	`

	var receiptID int64
	err := DB.QueryRow(query,
		receipt.OpID,
		receipt.Timestamp,
		string(receipt.Type),
		nullableString(receipt.User),
		nullableInt(receipt.Amount),
		nullableInt(receipt.Shares),
		nullableString(receipt.Pool),
		receipt.Success,
		nullableString(receipt.Message),
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert operation receipt: %w", err)
	}

	receiptLogger.Debug().
		Int64("receiptId", receiptID).
		Str("type", string(receipt.Type)).
		Msg("Operation receipt saved")
	return receiptID, nil
}

// GetRecentOperations returns the most recent receipts, newest first.
func GetRecentOperations(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT receipt_id, op_id, op_timestamp, op_type, user_id, amount, shares, pool, success, message
		FROM operation_receipts
		ORDER BY op_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var (
			receipt              types.OperationReceipt
			opType               string
			user, amount, shares sql.NullString
			pool, message        sql.NullString
		)
		if err := rows.Scan(
			&receipt.ReceiptID, &receipt.OpID, &receipt.Timestamp, &opType,
			&user, &amount, &shares, &pool, &receipt.Success, &message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}

		receipt.Type = types.OperationType(opType)
		receipt.User = user.String
		receipt.Pool = pool.String
		receipt.Message = message.String
		receipt.Amount = parseNumeric(amount)
		receipt.Shares = parseNumeric(shares)
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation receipts: %w", err)
	}

	return receipts, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(i sdkmath.Int) interface{} {
	if i.IsNil() {
		return nil
	}
	return i.String()
}

func parseNumeric(value sql.NullString) sdkmath.Int {
	if !value.Valid {
		return sdkmath.Int{}
	}
	parsed, ok := sdkmath.NewIntFromString(value.String)
	if !ok {
		receiptLogger.Error().Str("value", value.String).Msg("Unparseable numeric column")
		return sdkmath.Int{}
	}
	return parsed
}
