package vault

import (
	"context"
	"testing"
	"time"
)

func TestRebalanceWithProfit(t *testing.T) {
	// Base 1000, the source redeems 1200. The 10% fee takes 20 of the 200
	// profit, 1180 moves to the target and becomes the new base.
	f := newFixture(t)
	f.deposit(t, 1000)
	f.yield.redeemOut[sourceA] = big0(1200)
	ctx := context.Background()

	res, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceB)
	if err != nil {
		t.Fatalf("Rebalance: %v", err)
	}

	if res.Fee.Int64() != 20 {
		t.Errorf("expected fee 20, got %s", res.Fee)
	}
	if res.Redeployed.Int64() != 1180 {
		t.Errorf("expected redeploy 1180, got %s", res.Redeployed)
	}
	if res.NewBase.Int64() != 1180 {
		t.Errorf("expected new base 1180, got %s", res.NewBase)
	}

	if got := f.yield.balance(sourceB).Int64(); got != 1180 {
		t.Errorf("expected target balance 1180, got %d", got)
	}
	if got := f.tokens.balance(testAsset, revenueAddr).Int64(); got != 20 {
		t.Errorf("expected revenue 20, got %d", got)
	}

	// Principal is a separate ledger and must not move
	principal, _ := f.acct.Principal(testAsset)
	if principal.Int64() != 1000 {
		t.Errorf("expected principal untouched at 1000, got %s", principal)
	}

	info, err := f.acct.RebalanceInfoFor(ctx, testAsset)
	if err != nil {
		t.Fatalf("RebalanceInfoFor: %v", err)
	}
	if info.BaseAmount.Int64() != 1180 || info.ActiveSource != sourceB {
		t.Errorf("unexpected rebalance info %+v", info)
	}
}

func TestRebalanceFlatValueChargesNoFee(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	// Bounce between the two sources at flat value; no round may charge a
	// fee and the base must track the latest redemption every time.
	to := sourceB
	from := sourceA
	for round := 0; round < 3; round++ {
		res, err := f.acct.Rebalance(ctx, adminAddr, testAsset, to)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if res.Fee.Sign() != 0 {
			t.Errorf("round %d: expected no fee, got %s", round, res.Fee)
		}
		if res.NewBase.Cmp(res.Redeemed) != 0 {
			t.Errorf("round %d: base %s should equal redeemed %s", round, res.NewBase, res.Redeemed)
		}
		f.clock.Advance(12 * time.Hour)
		to, from = from, to
	}
}

func TestRebalanceCooldown(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	if _, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceB); err != nil {
		t.Fatalf("first rebalance: %v", err)
	}

	_, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceA)
	if got := code(t, err); got != "COOLDOWN_NOT_ELAPSED" {
		t.Fatalf("expected COOLDOWN_NOT_ELAPSED, got %s", got)
	}

	f.clock.Advance(12 * time.Hour)
	if _, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceA); err != nil {
		t.Errorf("rebalance after cooldown: %v", err)
	}
}

func TestRebalanceGuards(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	t.Run("owner cannot rebalance", func(t *testing.T) {
		_, err := f.acct.Rebalance(ctx, ownerAddr, testAsset, sourceB)
		if got := code(t, err); got != "NOT_ADMIN" {
			t.Errorf("expected NOT_ADMIN, got %s", got)
		}
	})

	t.Run("same source", func(t *testing.T) {
		_, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceA)
		if got := code(t, err); got != "SAME_SOURCE" {
			t.Errorf("expected SAME_SOURCE, got %s", got)
		}
	})

	t.Run("target not available", func(t *testing.T) {
		_, err := f.acct.Rebalance(ctx, adminAddr, testAsset, addr(0x999))
		if got := code(t, err); got != "VAULT_NOT_WHITELISTED" {
			t.Errorf("expected VAULT_NOT_WHITELISTED, got %s", got)
		}
	})

	t.Run("no funds", func(t *testing.T) {
		f.yield.balance(sourceA).SetInt64(0)
		_, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceB)
		if got := code(t, err); got != "NO_FUNDS_TO_REBALANCE" {
			t.Errorf("expected NO_FUNDS_TO_REBALANCE, got %s", got)
		}
	})
}

func TestRebalanceRestoresLedgerOnDepositFailure(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1000)
	ctx := context.Background()

	// Fail the redeploy leg; the rebalance ledger must roll back wholesale
	f.yield.failDeposit = context.DeadlineExceeded
	_, err := f.acct.Rebalance(ctx, adminAddr, testAsset, sourceB)
	if got := code(t, err); got != "ADAPTER_ERROR" {
		t.Fatalf("expected ADAPTER_ERROR, got %s", got)
	}

	info, err := f.acct.RebalanceInfoFor(ctx, testAsset)
	if err != nil {
		t.Fatalf("RebalanceInfoFor: %v", err)
	}
	if info.BaseAmount.Int64() != 1000 {
		t.Errorf("expected base restored to 1000, got %s", info.BaseAmount)
	}
	if info.ActiveSource != sourceA {
		t.Errorf("expected active source restored to %s, got %s", sourceA.Hex(), info.ActiveSource.Hex())
	}
	if !info.LastRebalanceTime.IsZero() {
		t.Errorf("expected rebalance timestamp untouched, got %v", info.LastRebalanceTime)
	}
}
