package vault

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/fees"
)

// RebalanceResult reports a completed migration between yield sources
type RebalanceResult struct {
	Asset      common.Address
	FromSource common.Address
	ToSource   common.Address
	Redeemed   *big.Int
	Fee        *big.Int
	Redeployed *big.Int
	NewBase    *big.Int
}

// Rebalance migrates the asset's full position from its current yield source
// to toSource: redeem everything, take the fee on profit over the rebalance
// base, redeploy the remainder. The profit baseline resets to the redeployed
// amount whether or not a fee was charged, and the principal ledger is never
// touched.
func (a *Account) Rebalance(ctx context.Context, caller, asset, toSource common.Address) (*RebalanceResult, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := a.requireNotPaused(); err != nil {
		return nil, err
	}
	if !a.registry.IsAssetAllowed(asset) {
		return nil, errors.NewAssetNotAllowedError(asset)
	}

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}

	if !a.registry.IsVaultAllowed(toSource) {
		return nil, errors.NewVaultNotWhitelistedError(toSource)
	}
	if !a.registry.IsAvailable(asset, toSource) {
		return nil, errors.NewVaultNotAvailableError(asset, toSource)
	}
	if toSource == st.ActiveSource {
		return nil, errors.NewSameSourceError(toSource)
	}
	if underlying, ok := a.registry.VaultUnderlying(toSource); !ok || underlying != asset {
		return nil, errors.NewAssetMismatchError(asset, toSource, underlying)
	}

	now := a.clock.Now()
	if !st.LastRebalanceTime.IsZero() {
		if elapsed := now.Sub(st.LastRebalanceTime); elapsed < a.rebalanceCooldown {
			remaining := a.rebalanceCooldown - elapsed
			return nil, errors.NewCooldownNotElapsedError("rebalance", remaining.Round(time.Second).String())
		}
	}

	fromSource := st.ActiveSource
	shares, err := a.yield.BalanceOf(ctx, fromSource, a.address)
	if err != nil {
		return nil, errors.NewAdapterError("BalanceOf", err)
	}
	if shares.Sign() == 0 {
		return nil, errors.NewNoFundsToRebalanceError(asset)
	}

	snapshot := st.Clone()
	restore := func() { a.assets[asset] = snapshot }

	redeemed, err := a.yield.Redeem(ctx, a.address, fromSource, shares)
	if err != nil {
		restore()
		return nil, errors.NewAdapterError("Redeem", err)
	}

	fee, redeploy, newBase := fees.ForRebalance(st.RebalanceBase, redeemed, a.feeCfg.RebalanceFeeBps)

	// The ledger moves to its post-rebalance shape before the outbound
	// collaborator calls; any failure restores the snapshot wholesale.
	st.RecordRebalance(newBase, fee, toSource, now)
	if err := a.registry.SetActiveSource(asset, toSource); err != nil {
		restore()
		return nil, err
	}

	if fee.Sign() > 0 {
		if err := a.tokens.Transfer(ctx, asset, a.address, a.revenue, fee); err != nil {
			restore()
			_ = a.registry.SetActiveSource(asset, fromSource)
			return nil, errors.NewAdapterError("Transfer", err)
		}
	}
	if err := a.yield.Deposit(ctx, a.address, toSource, asset, redeploy); err != nil {
		restore()
		_ = a.registry.SetActiveSource(asset, fromSource)
		return nil, errors.NewAdapterError("Deposit", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"asset":      asset.Hex(),
		"fromSource": fromSource.Hex(),
		"toSource":   toSource.Hex(),
		"redeemed":   redeemed.String(),
		"fee":        fee.String(),
		"redeployed": redeploy.String(),
	}).Info("Rebalance completed")

	return &RebalanceResult{
		Asset:      asset,
		FromSource: fromSource,
		ToSource:   toSource,
		Redeemed:   redeemed,
		Fee:        fee,
		Redeployed: redeploy,
		NewBase:    newBase,
	}, nil
}
