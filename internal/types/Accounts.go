/*

This file contains the per-user share accounting record. An account with zero
shares is never stored; full withdrawal prunes the record from the ledger.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type UserAccount struct {
	InitialDeposit sdkmath.Int `json:"initial_deposit"` // Cumulative principal contributed, token base units
	Shares         sdkmath.Int `json:"shares"`          // Vault-internal share units, distinct from token units
}
