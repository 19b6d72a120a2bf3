/*

Response and query models returned by the vault facade. Amounts stay
arbitrary-precision integers at the boundary; derived ratios (share price,
APY, current value) are float64 for display only.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type DepositResponse struct {
	DepositAmount sdkmath.Int `json:"deposit_amount"`
	Shares        sdkmath.Int `json:"shares"`
}

type WithdrawResponse struct {
	WithdrawAmount sdkmath.Int `json:"withdraw_amount"`
}

type RebalanceResponse struct {
	Allocations map[string]sdkmath.Int `json:"allocations"` // Pool name -> liquidity placed there
}

type UserAccountInfo struct {
	InitialDeposit sdkmath.Int `json:"initial_deposit"`
	Shares         sdkmath.Int `json:"shares"`
	CurrentValue   float64     `json:"current_value"` // Shares valued at the current share price
}

type VaultInfo struct {
	TotalBalance sdkmath.Int            `json:"total_balance"`
	TotalShares  sdkmath.Int            `json:"total_shares"`
	SharePrice   float64                `json:"share_price"`
	Allocations  map[string]sdkmath.Int `json:"allocations"`
	APY          float64                `json:"apy"` // APY of the current pool, zero if none selected
}
