/*

The share ledger owns the invariant mapping between total deposited value,
total shares outstanding, and each user's share balance and cost basis.

All monetary and share quantities are exact arbitrary-precision integers.
Division (share price, withdrawal fraction) happens only in LegacyDec
intermediates used for proportional scaling; the result is truncated back to
an integer and the totals are never persisted as decimals.

*/

package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/types"
)

var ledgerLogger = logger.GetForComponent("share_ledger")

var (
	ErrInvalidAmount      = errors.New("amount must be strictly positive")
	ErrUserNotFound       = errors.New("user has no active share balance")
	ErrInsufficientShares = errors.New("user holds fewer shares than requested")
)

// Ledger is the share-accounting core. It is not safe for concurrent use on
// its own; the vault facade serializes all access to it.
type Ledger struct {
	totalBalance sdkmath.Int
	totalShares  sdkmath.Int
	accounts     map[string]*types.UserAccount
}

func New() *Ledger {
	return &Ledger{
		totalBalance: sdkmath.ZeroInt(),
		totalShares:  sdkmath.ZeroInt(),
		accounts:     make(map[string]*types.UserAccount),
	}
}

// TotalBalance returns the sum of all principal represented by outstanding shares.
func (l *Ledger) TotalBalance() sdkmath.Int {
	return l.totalBalance
}

// TotalShares returns the total shares outstanding.
func (l *Ledger) TotalShares() sdkmath.Int {
	return l.totalShares
}

// Account returns a copy of the user's record, if one exists.
func (l *Ledger) Account(user string) (types.UserAccount, bool) {
	account, ok := l.accounts[user]
	if !ok {
		return types.UserAccount{}, false
	}
	return *account, true
}

// AccountCount returns the number of active accounts.
func (l *Ledger) AccountCount() int {
	return len(l.accounts)
}

// SharePriceDec returns total_balance / total_shares as an exact decimal,
// or 1.0 when no shares are outstanding (bootstrap price). Pure query.
func (l *Ledger) SharePriceDec() sdkmath.LegacyDec {
	if l.totalShares.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(l.totalBalance).Quo(sdkmath.LegacyNewDecFromInt(l.totalShares))
}

// SharePrice returns the share price as a float64 for display purposes only.
func (l *Ledger) SharePrice() float64 {
	price, err := l.SharePriceDec().Float64()
	if err != nil {
		ledgerLogger.Error().Err(err).Msg("Share price does not fit in float64")
		return 0
	}
	return price
}

// Deposit mints shares for the given amount at the price captured before the
// deposit is applied (no self-dilution) and upserts the user's account. The
// vault's first-ever deposit mints shares 1:1. Either every field is updated
// or none are.
func (l *Ledger) Deposit(user string, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}

	var minted sdkmath.Int
	if l.totalBalance.IsZero() || l.totalShares.IsZero() {
		minted = amount
	} else {
		minted = sdkmath.LegacyNewDecFromInt(amount).Quo(l.SharePriceDec()).TruncateInt()
	}

	l.totalBalance = l.totalBalance.Add(amount)
	l.totalShares = l.totalShares.Add(minted)

	account, ok := l.accounts[user]
	if ok {
		account.InitialDeposit = account.InitialDeposit.Add(amount)
		account.Shares = account.Shares.Add(minted)
	} else {
		l.accounts[user] = &types.UserAccount{
			InitialDeposit: amount,
			Shares:         minted,
		}
	}

	ledgerLogger.Debug().
		Str("user", user).
		Str("amount", amount.String()).
		Str("minted", minted.String()).
		Msg("Shares minted")

	return minted, nil
}

// Withdraw burns shares at the price captured before the mutation and returns
// the payout amount together with the fraction of the user's position being
// redeemed. The caller uses the fraction to pull the proportional LP amount
// from the provider. The cost basis is reduced proportionally, not FIFO.
// Validation happens before any mutation; an error leaves the ledger untouched.
func (l *Ledger) Withdraw(user string, shares sdkmath.Int) (sdkmath.Int, sdkmath.LegacyDec, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.LegacyZeroDec(), fmt.Errorf("%w: got %s", ErrInvalidAmount, shares)
	}
	account, ok := l.accounts[user]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	if shares.GT(account.Shares) {
		return sdkmath.ZeroInt(), sdkmath.LegacyZeroDec(),
			fmt.Errorf("%w: requested %s, holds %s", ErrInsufficientShares, shares, account.Shares)
	}

	var amountOut sdkmath.Int
	if shares.Equal(l.totalShares) {
		// Final burn drains the vault exactly so no dust balance survives
		// with zero shares outstanding.
		amountOut = l.totalBalance
	} else {
		amountOut = sdkmath.LegacyNewDecFromInt(shares).Mul(l.SharePriceDec()).TruncateInt()
	}

	fraction := sdkmath.LegacyNewDecFromInt(shares).Quo(sdkmath.LegacyNewDecFromInt(account.Shares))

	l.totalBalance = l.totalBalance.Sub(amountOut)
	l.totalShares = l.totalShares.Sub(shares)

	costReduction := sdkmath.LegacyNewDecFromInt(account.InitialDeposit).Mul(fraction).TruncateInt()
	account.InitialDeposit = account.InitialDeposit.Sub(costReduction)
	account.Shares = account.Shares.Sub(shares)

	if account.Shares.IsZero() {
		// Accounts are pruned on full withdrawal; zero-share records never
		// linger in the ledger.
		delete(l.accounts, user)
	}

	ledgerLogger.Debug().
		Str("user", user).
		Str("shares", shares.String()).
		Str("amount_out", amountOut.String()).
		Str("fraction", fraction.String()).
		Msg("Shares burned")

	return amountOut, fraction, nil
}

// AdjustBalance applies an externally observed correction to the total
// balance, e.g. yield reported by the provider. The delta may be negative but
// the resulting balance never is.
func (l *Ledger) AdjustBalance(delta sdkmath.Int) error {
	next := l.totalBalance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: correction %s would drive total balance negative", ErrInvalidAmount, delta)
	}
	l.totalBalance = next
	return nil
}
