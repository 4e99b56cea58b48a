package adapter

import (
	"context"
	stderrors "errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/circuitbreaker"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/retry"
)

// ResilientYieldAdapter wraps a YieldSourceAdapter with retry and a circuit
// breaker. Read calls retry on transient RPC failures; state-changing calls
// go through the breaker but are never retried, since a timed-out send may
// still have landed.
type ResilientYieldAdapter struct {
	inner   YieldSourceAdapter
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
}

// NewResilientYieldAdapter wraps inner with the given breaker and retry policy
func NewResilientYieldAdapter(inner YieldSourceAdapter, breaker *circuitbreaker.CircuitBreaker, retryConfig *retry.Config) *ResilientYieldAdapter {
	if retryConfig == nil {
		retryConfig = retry.DefaultConfig()
	}
	return &ResilientYieldAdapter{
		inner:   inner,
		breaker: breaker,
		retry:   retryConfig,
	}
}

func (r *ResilientYieldAdapter) guarded(ctx context.Context, fn func() error) error {
	err := r.breaker.Execute(ctx, fn)
	if err == nil {
		return nil
	}
	if err == circuitbreaker.ErrCircuitOpen || err == circuitbreaker.ErrTooManyRequests {
		return errors.NewAdapterError("rpc", err)
	}

	// Normalize raw adapter failures into the retryable taxonomy
	var adapterErr *AdapterError
	if stderrors.As(err, &adapterErr) {
		return errors.NewAdapterError(adapterErr.Op, err)
	}
	return err
}

// Deposit forwards through the breaker without retry
func (r *ResilientYieldAdapter) Deposit(ctx context.Context, account, source, asset common.Address, amount *big.Int) error {
	return r.guarded(ctx, func() error {
		return r.inner.Deposit(ctx, account, source, asset, amount)
	})
}

// Redeem forwards through the breaker without retry
func (r *ResilientYieldAdapter) Redeem(ctx context.Context, account, source common.Address, shares *big.Int) (*big.Int, error) {
	var assets *big.Int
	err := r.guarded(ctx, func() error {
		var innerErr error
		assets, innerErr = r.inner.Redeem(ctx, account, source, shares)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// BalanceOf retries transient read failures
func (r *ResilientYieldAdapter) BalanceOf(ctx context.Context, source, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
		return r.guarded(ctx, func() error {
			var innerErr error
			balance, innerErr = r.inner.BalanceOf(ctx, source, account)
			return innerErr
		})
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// UnderlyingAssetOf retries transient read failures
func (r *ResilientYieldAdapter) UnderlyingAssetOf(ctx context.Context, source common.Address) (common.Address, error) {
	var asset common.Address
	err := retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
		return r.guarded(ctx, func() error {
			var innerErr error
			asset, innerErr = r.inner.UnderlyingAssetOf(ctx, source)
			return innerErr
		})
	})
	if err != nil {
		return common.Address{}, err
	}
	return asset, nil
}

// ConvertToAssets retries transient read failures
func (r *ResilientYieldAdapter) ConvertToAssets(ctx context.Context, source common.Address, shares *big.Int) (*big.Int, error) {
	var assets *big.Int
	err := retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
		return r.guarded(ctx, func() error {
			var innerErr error
			assets, innerErr = r.inner.ConvertToAssets(ctx, source, shares)
			return innerErr
		})
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}
