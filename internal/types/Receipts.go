/*

Audit records persisted by the state package: one OperationReceipt per vault
operation, plus periodic VaultSnapshot rows for the dashboard.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationType identifies which vault operation a receipt belongs to.
type OperationType string

const (
	OperationDeposit   OperationType = "DEPOSIT"
	OperationWithdraw  OperationType = "WITHDRAW"
	OperationRebalance OperationType = "REBALANCE"
)

type OperationReceipt struct {
	ReceiptID int64         `json:"receipt_id,omitempty"` // Auto-incremented by DB
	OpID      string        `json:"op_id"`                // UUID for tracing logs across the operation
	Type      OperationType `json:"type"`
	User      string        `json:"user,omitempty"`
	Amount    sdkmath.Int   `json:"amount,omitempty"` // Token amount moved (deposit/withdraw)
	Shares    sdkmath.Int   `json:"shares,omitempty"` // Shares minted or burned
	Pool      string        `json:"pool,omitempty"`   // Current pool at the time of the operation
	Success   bool          `json:"success"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type VaultSnapshot struct {
	SnapshotID   int64                  `json:"snapshot_id,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	TotalBalance sdkmath.Int            `json:"total_balance"`
	TotalShares  sdkmath.Int            `json:"total_shares"`
	SharePrice   float64                `json:"share_price"`
	CurrentPool  string                 `json:"current_pool,omitempty"`
	Allocations  map[string]sdkmath.Int `json:"allocations"`
}
