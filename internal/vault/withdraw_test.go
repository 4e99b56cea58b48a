package vault

import (
	"context"
	"testing"
)

func TestWithdrawWithProfitFee(t *testing.T) {
	// 6-decimal asset, principal 1000, source redeems 1100 for the full
	// balance. Profit 100 clears the threshold of 10, so a 1% fee takes 1
	// and the owner receives 1099.
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.redeemOut[sourceA] = big0(1100)
	ctx := context.Background()

	res, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(0))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if res.Fee.Int64() != 1 {
		t.Errorf("expected fee 1, got %s", res.Fee)
	}
	if res.NetAmount.Int64() != 1099 {
		t.Errorf("expected net 1099, got %s", res.NetAmount)
	}
	if res.Remaining.Sign() != 0 {
		t.Errorf("expected principal closed, got %s", res.Remaining)
	}

	if got := f.tokens.balance(testAsset, revenueAddr).Int64(); got != 1 {
		t.Errorf("expected revenue balance 1, got %d", got)
	}
	if got := f.tokens.balance(testAsset, ownerAddr).Int64(); got != 1_000_099 {
		t.Errorf("expected owner balance 1000099, got %d", got)
	}
}

func TestWithdrawAtLossChargesNoFee(t *testing.T) {
	// Principal 1000, source only returns 900. No profit, no fee, and the
	// full withdrawal still closes the principal to zero.
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.redeemOut[sourceA] = big0(900)
	ctx := context.Background()

	res, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(0))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if res.Fee.Sign() != 0 {
		t.Errorf("expected no fee, got %s", res.Fee)
	}
	if res.NetAmount.Int64() != 900 {
		t.Errorf("expected net 900, got %s", res.NetAmount)
	}
	if res.Remaining.Sign() != 0 {
		t.Errorf("expected principal closed, got %s", res.Remaining)
	}
	if got := f.tokens.balance(testAsset, revenueAddr).Int64(); got != 0 {
		t.Errorf("expected no revenue, got %d", got)
	}
}

func TestWithdrawBelowThresholdChargesNoFee(t *testing.T) {
	// Profit of exactly the threshold does not trip the fee
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.redeemOut[sourceA] = big0(1010)
	ctx := context.Background()

	res, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(0))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if res.Fee.Sign() != 0 {
		t.Errorf("expected no fee at threshold, got %s", res.Fee)
	}
	if res.NetAmount.Int64() != 1010 {
		t.Errorf("expected net 1010, got %s", res.NetAmount)
	}
}

func TestPartialWithdrawProratesPrincipal(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	// 400 out of a balance of 1000 releases 40% of the principal
	res, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(400))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if res.PrincipalReleased.Int64() != 400 {
		t.Errorf("expected principal released 400, got %s", res.PrincipalReleased)
	}
	if res.Remaining.Int64() != 600 {
		t.Errorf("expected principal remaining 600, got %s", res.Remaining)
	}

	// Withdrawing the remainder closes the position regardless of the
	// earlier partial exit
	res, err = f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(0))
	if err != nil {
		t.Fatalf("Withdraw remainder: %v", err)
	}
	if res.Remaining.Sign() != 0 {
		t.Errorf("expected principal zero after full exit, got %s", res.Remaining)
	}
}

func TestWithdrawRequestBeyondBalanceIsCapped(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	res, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(5000))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if res.Redeemed.Int64() != 1000 {
		t.Errorf("expected redemption capped at 1000, got %s", res.Redeemed)
	}
	if res.Remaining.Sign() != 0 {
		t.Errorf("expected full exit, got remaining %s", res.Remaining)
	}
}

func TestWithdrawGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("no deposits", func(t *testing.T) {
		_, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(100))
		if got := code(t, err); got != "NO_DEPOSITS" {
			t.Errorf("expected NO_DEPOSITS, got %s", got)
		}
	})

	t.Run("no funds in source", func(t *testing.T) {
		f.deposit(t, 1000)
		f.yield.balance(sourceA).SetInt64(0)
		_, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(100))
		if got := code(t, err); got != "NO_FUNDS_IN_SOURCE" {
			t.Errorf("expected NO_FUNDS_IN_SOURCE, got %s", got)
		}
	})
}

func TestWithdrawRestoresLedgerOnRedeemFailure(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.failRedeem = context.DeadlineExceeded
	ctx := context.Background()

	_, err := f.acct.Withdraw(ctx, ownerAddr, testAsset, big0(400))
	if got := code(t, err); got != "ADAPTER_ERROR" {
		t.Fatalf("expected ADAPTER_ERROR, got %s", got)
	}

	principal, err := f.acct.Principal(testAsset)
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if principal.Int64() != 1000 {
		t.Errorf("expected principal restored to 1000, got %s", principal)
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.redeemOut[sourceA] = big0(1100)
	ctx := context.Background()

	if err := f.acct.Pause(adminAddr); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	res, err := f.acct.EmergencyWithdraw(ctx, ownerAddr, testAsset)
	if err != nil {
		t.Fatalf("EmergencyWithdraw: %v", err)
	}
	if res.Remaining.Sign() != 0 {
		t.Errorf("expected principal zeroed, got %s", res.Remaining)
	}
	// The fee path still applies on a profitable emergency exit
	if res.Fee.Int64() != 1 {
		t.Errorf("expected fee 1, got %s", res.Fee)
	}

	if _, err := f.acct.EmergencyWithdraw(ctx, ownerAddr, testAsset); code(t, err) != "NO_FUNDS_IN_SOURCE" {
		t.Errorf("expected NO_FUNDS_IN_SOURCE on empty repeat, got %v", err)
	}
}
