package adapter

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vault-router/internal/circuitbreaker"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/retry"
)

// flakyYield fails the first failures calls of every method
type flakyYield struct {
	failures int
	calls    int
}

func (f *flakyYield) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.NewAdapterError("rpc", ErrSourceUnavailable)
	}
	return nil
}

func (f *flakyYield) Deposit(ctx context.Context, account, source, asset common.Address, amount *big.Int) error {
	return f.attempt()
}

func (f *flakyYield) Redeem(ctx context.Context, account, source common.Address, shares *big.Int) (*big.Int, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(shares), nil
}

func (f *flakyYield) BalanceOf(ctx context.Context, source, account common.Address) (*big.Int, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return big.NewInt(1000), nil
}

func (f *flakyYield) UnderlyingAssetOf(ctx context.Context, source common.Address) (common.Address, error) {
	if err := f.attempt(); err != nil {
		return common.Address{}, err
	}
	return testToken, nil
}

func (f *flakyYield) ConvertToAssets(ctx context.Context, source common.Address, shares *big.Int) (*big.Int, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(shares), nil
}

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
}

func TestResilientReadRetries(t *testing.T) {
	inner := &flakyYield{failures: 2}
	r := NewResilientYieldAdapter(inner, circuitbreaker.New(circuitbreaker.DefaultConfig("test")), fastRetry())

	balance, err := r.BalanceOf(context.Background(), testSource, actingAccount)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Int64() != 1000 {
		t.Errorf("expected 1000, got %s", balance)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestResilientReadGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyYield{failures: 10}
	r := NewResilientYieldAdapter(inner, circuitbreaker.New(circuitbreaker.DefaultConfig("test")), fastRetry())

	if _, err := r.BalanceOf(context.Background(), testSource, actingAccount); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestResilientWritesNeverRetry(t *testing.T) {
	inner := &flakyYield{failures: 1}
	r := NewResilientYieldAdapter(inner, circuitbreaker.New(circuitbreaker.DefaultConfig("test")), fastRetry())

	if err := r.Deposit(context.Background(), actingAccount, testSource, testToken, big.NewInt(100)); err == nil {
		t.Fatal("expected deposit failure")
	}
	if inner.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", inner.calls)
	}

	inner = &flakyYield{failures: 1}
	r = NewResilientYieldAdapter(inner, circuitbreaker.New(circuitbreaker.DefaultConfig("test")), fastRetry())
	if _, err := r.Redeem(context.Background(), actingAccount, testSource, big.NewInt(100)); err == nil {
		t.Fatal("expected redeem failure")
	}
	if inner.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", inner.calls)
	}
}

func TestResilientOpenBreakerRejectsFast(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.MaxFailures = 2
	breaker := circuitbreaker.New(cfg)

	inner := &flakyYield{failures: 100}
	r := NewResilientYieldAdapter(inner, breaker, fastRetry())
	ctx := context.Background()

	// Trip the breaker with write failures
	for i := 0; i < cfg.MaxFailures; i++ {
		_ = r.Deposit(ctx, actingAccount, testSource, testToken, big.NewInt(1))
	}
	callsBefore := inner.calls

	err := r.Deposit(ctx, actingAccount, testSource, testToken, big.NewInt(1))
	if err == nil {
		t.Fatal("expected open-circuit rejection")
	}
	catErr := errors.Categorize(err)
	if catErr.Code != "ADAPTER_ERROR" {
		t.Errorf("expected ADAPTER_ERROR, got %s", catErr.Code)
	}
	if inner.calls != callsBefore {
		t.Error("open breaker must not reach the inner adapter")
	}
}
