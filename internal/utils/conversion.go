/*
This file contains common utility functions for converting between SDK math
types and float64 display values, with strict finiteness checks.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// DecToFloat64 converts a LegacyDec to float64, rejecting NaN and infinities.
// Used only at the display boundary; ledger values never round-trip through
// float64.
func DecToFloat64(d sdkmath.LegacyDec) (float64, error) {
	if d.IsNil() {
		return 0, ErrAmountNil
	}
	if d.IsNegative() {
		return 0, ErrAmountNegative
	}

	result, err := d.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}

	return result, nil
}

// IntToFloat64 converts an SDK Int to float64 for display purposes.
func IntToFloat64(amount sdkmath.Int) (float64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}
	return DecToFloat64(sdkmath.LegacyNewDecFromInt(amount))
}

// ValidateFinite rejects NaN and infinite float values coming from external
// feeds before they reach any comparison logic.
func ValidateFinite(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %f", ErrNotFinite, value)
	}
	return nil
}
