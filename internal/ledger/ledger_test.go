package ledger

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
)

func i(v int64) sdkmath.Int {
	return sdkmath.NewInt(v)
}

func TestSharePrice_Bootstrap(t *testing.T) {
	l := New()
	if price := l.SharePrice(); price != 1.0 {
		t.Errorf("expected bootstrap share price 1.0, got %f", price)
	}
}

func TestDeposit_FirstMintsOneToOne(t *testing.T) {
	l := New()

	minted, err := l.Deposit("U1", i(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !minted.Equal(i(1000)) {
		t.Errorf("expected 1000 shares minted, got %s", minted)
	}
	if !l.TotalBalance().Equal(i(1000)) {
		t.Errorf("expected total balance 1000, got %s", l.TotalBalance())
	}
	if !l.TotalShares().Equal(i(1000)) {
		t.Errorf("expected total shares 1000, got %s", l.TotalShares())
	}
	if price := l.SharePrice(); price != 1.0 {
		t.Errorf("expected share price 1.0, got %f", price)
	}

	account, ok := l.Account("U1")
	if !ok {
		t.Fatal("expected account for U1")
	}
	if !account.InitialDeposit.Equal(i(1000)) || !account.Shares.Equal(i(1000)) {
		t.Errorf("unexpected account state: %+v", account)
	}
}

func TestDeposit_InvalidAmount(t *testing.T) {
	l := New()

	tests := []sdkmath.Int{i(0), i(-5), {}}
	for _, amount := range tests {
		_, err := l.Deposit("U1", amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("expected ErrInvalidAmount for %v, got %v", amount, err)
		}
	}

	if !l.TotalBalance().IsZero() || !l.TotalShares().IsZero() || l.AccountCount() != 0 {
		t.Error("rejected deposit must not mutate the ledger")
	}
}

func TestDeposit_ExactTotalsAcrossUsers(t *testing.T) {
	l := New()

	deposits := map[string]int64{"U1": 1000, "U2": 250, "U3": 4321}
	var total int64
	for user, amount := range deposits {
		if _, err := l.Deposit(user, i(amount)); err != nil {
			t.Fatalf("deposit for %s failed: %v", user, err)
		}
		total += amount
	}

	if !l.TotalBalance().Equal(i(total)) {
		t.Errorf("expected total balance %d, got %s", total, l.TotalBalance())
	}

	sumShares := sdkmath.ZeroInt()
	for user := range deposits {
		account, ok := l.Account(user)
		if !ok {
			t.Fatalf("missing account for %s", user)
		}
		sumShares = sumShares.Add(account.Shares)
	}
	if !sumShares.Equal(l.TotalShares()) {
		t.Errorf("sum of account shares %s != total shares %s", sumShares, l.TotalShares())
	}
}

func TestDeposit_PriceNonDecreasing(t *testing.T) {
	l := New()

	last := l.SharePrice()
	amounts := []int64{1000, 3, 999999, 1, 50000}
	for _, amount := range amounts {
		if _, err := l.Deposit("U1", i(amount)); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
		price := l.SharePrice()
		if price < last {
			t.Errorf("share price decreased from %f to %f after deposit of %d", last, price, amount)
		}
		last = price
	}
}

func TestDeposit_NoSelfDilutionAfterYield(t *testing.T) {
	l := New()

	if _, err := l.Deposit("U1", i(1000)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	// Provider-reported yield doubles the pool value: share price becomes 2.0.
	if err := l.AdjustBalance(i(1000)); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	minted, err := l.Deposit("U2", i(1000))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !minted.Equal(i(500)) {
		t.Errorf("expected 500 shares at price 2.0, got %s", minted)
	}

	// U1's position must still be worth 2000: the new deposit did not dilute it.
	u1, _ := l.Account("U1")
	value := sdkmath.LegacyNewDecFromInt(u1.Shares).Mul(l.SharePriceDec()).TruncateInt()
	if !value.Equal(i(2000)) {
		t.Errorf("expected U1 value 2000, got %s", value)
	}
}

func TestWithdraw_Partial(t *testing.T) {
	l := New()
	if _, err := l.Deposit("U1", i(1000)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	amountOut, fraction, err := l.Withdraw("U1", i(400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amountOut.Equal(i(400)) {
		t.Errorf("expected withdraw amount 400 at price 1.0, got %s", amountOut)
	}
	if !fraction.Equal(sdkmath.LegacyNewDecWithPrec(4, 1)) {
		t.Errorf("expected fraction 0.4, got %s", fraction)
	}

	account, ok := l.Account("U1")
	if !ok {
		t.Fatal("expected account to survive partial withdrawal")
	}
	if !account.Shares.Equal(i(600)) {
		t.Errorf("expected 600 shares remaining, got %s", account.Shares)
	}
	if !account.InitialDeposit.Equal(i(600)) {
		t.Errorf("expected cost basis 600 after proportional reduction, got %s", account.InitialDeposit)
	}
}

func TestWithdraw_FullPrunesAccount(t *testing.T) {
	l := New()
	if _, err := l.Deposit("U1", i(1000)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, _, err := l.Withdraw("U1", i(400)); err != nil {
		t.Fatalf("partial withdraw failed: %v", err)
	}

	amountOut, _, err := l.Withdraw("U1", i(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amountOut.Equal(i(600)) {
		t.Errorf("expected 600 out, got %s", amountOut)
	}
	if _, ok := l.Account("U1"); ok {
		t.Error("expected account to be pruned on full withdrawal")
	}
	if !l.TotalShares().IsZero() {
		t.Errorf("expected zero total shares, got %s", l.TotalShares())
	}
	if !l.TotalBalance().IsZero() {
		t.Errorf("expected zero total balance with zero shares, got %s", l.TotalBalance())
	}
}

func TestWithdraw_InsufficientShares(t *testing.T) {
	l := New()
	if _, err := l.Deposit("U1", i(600)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	before, _ := l.Account("U1")
	_, _, err := l.Withdraw("U1", i(700))
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	after, ok := l.Account("U1")
	if !ok {
		t.Fatal("account disappeared after rejected withdrawal")
	}
	if !after.Shares.Equal(before.Shares) || !after.InitialDeposit.Equal(before.InitialDeposit) {
		t.Error("rejected withdrawal must not mutate the account")
	}
	if !l.TotalBalance().Equal(i(600)) || !l.TotalShares().Equal(i(600)) {
		t.Error("rejected withdrawal must not mutate the totals")
	}
}

func TestWithdraw_UserNotFound(t *testing.T) {
	l := New()
	if _, _, err := l.Withdraw("ghost", i(10)); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestWithdraw_RoundTrip(t *testing.T) {
	amounts := []int64{1, 17, 1000, 123456789}
	for _, amount := range amounts {
		l := New()
		minted, err := l.Deposit("U1", i(amount))
		if err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
		amountOut, _, err := l.Withdraw("U1", minted)
		if err != nil {
			t.Fatalf("withdraw failed: %v", err)
		}
		if !amountOut.Equal(i(amount)) {
			t.Errorf("round trip of %d returned %s", amount, amountOut)
		}
	}
}

func TestWithdraw_ProportionalCostBasisWithYield(t *testing.T) {
	l := New()
	if _, err := l.Deposit("U1", i(1000)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := l.AdjustBalance(i(1000)); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	// Half the position at price 2.0 pays out 1000 and halves the cost basis.
	amountOut, fraction, err := l.Withdraw("U1", i(500))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !amountOut.Equal(i(1000)) {
		t.Errorf("expected 1000 out at price 2.0, got %s", amountOut)
	}
	if !fraction.Equal(sdkmath.LegacyNewDecWithPrec(5, 1)) {
		t.Errorf("expected fraction 0.5, got %s", fraction)
	}
	account, _ := l.Account("U1")
	if !account.InitialDeposit.Equal(i(500)) {
		t.Errorf("expected cost basis 500, got %s", account.InitialDeposit)
	}
}

func TestAdjustBalance_RejectsNegativeTotal(t *testing.T) {
	l := New()
	if _, err := l.Deposit("U1", i(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := l.AdjustBalance(i(-200)); err == nil {
		t.Error("expected error when correction drives total balance negative")
	}
	if !l.TotalBalance().Equal(i(100)) {
		t.Errorf("failed correction must not mutate the balance, got %s", l.TotalBalance())
	}
}
