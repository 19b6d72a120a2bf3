package provider

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var ErrUnknownProvider = errors.New("no adapter registered for provider")

// Operation names carried in provider errors for retry context.
const (
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpUserBalances    = "user_balances"
	OpQuoteSplit      = "quote_split"
)

// Error is a failure returned by an external liquidity provider. It carries
// the pool, operation and amount involved so the caller can retry the
// provider step in isolation; ledger-level failures never use this type.
type Error struct {
	Pool   string
	Op     string
	Amount sdkmath.Int
	Err    error
}

func (e *Error) Error() string {
	if !e.Amount.IsNil() {
		return fmt.Sprintf("provider %s failed for pool %s (amount %s): %v", e.Op, e.Pool, e.Amount, e.Err)
	}
	return fmt.Sprintf("provider %s failed for pool %s: %v", e.Op, e.Pool, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError annotates a provider failure with retry context.
func WrapError(pool, op string, amount sdkmath.Int, err error) *Error {
	return &Error{Pool: pool, Op: op, Amount: amount, Err: err}
}
