package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/types"
)

// Read-only views. They serialize through the same guard as the mutating
// operations, so a view never observes a half-applied operation.

// FeeSettings is the snapshot view of the account's fee configuration
type FeeSettings struct {
	WithdrawalFeeBps   uint32   `json:"withdrawalFeeBps"`
	RebalanceFeeBps    uint32   `json:"rebalanceFeeBps"`
	ClaimFeeBps        uint32   `json:"claimFeeBps"`
	MinProfitThreshold *big.Int `json:"minProfitThreshold"`
}

// profitScale gives profit percentages 6 implied decimal places
var profitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(types.ThresholdDecimals), nil)

// FeeSettingsView returns the current fee configuration
func (a *Account) FeeSettingsView() (*FeeSettings, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	return &FeeSettings{
		WithdrawalFeeBps:   a.feeCfg.WithdrawalFeeBps,
		RebalanceFeeBps:    a.feeCfg.RebalanceFeeBps,
		ClaimFeeBps:        a.feeCfg.ClaimFeeBps,
		MinProfitThreshold: new(big.Int).Set(a.feeCfg.MinProfitThreshold),
	}, nil
}

// Principal returns the asset's principal on deposit record
func (a *Account) Principal(asset common.Address) (*big.Int, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(st.TotalPrincipal), nil
}

// currentValue values the asset's full position in underlying units.
// Callers hold the guard.
func (a *Account) currentValue(ctx context.Context, asset common.Address) (*big.Int, common.Address, error) {
	st, err := a.assetState(asset)
	if err != nil {
		return nil, common.Address{}, err
	}

	shares, err := a.yield.BalanceOf(ctx, st.ActiveSource, a.address)
	if err != nil {
		return nil, common.Address{}, errors.NewAdapterError("BalanceOf", err)
	}
	if shares.Sign() == 0 {
		return new(big.Int), st.ActiveSource, nil
	}

	value, err := a.yield.ConvertToAssets(ctx, st.ActiveSource, shares)
	if err != nil {
		return nil, common.Address{}, errors.NewAdapterError("ConvertToAssets", err)
	}
	return value, st.ActiveSource, nil
}

// CurrentValue returns the position's present value in underlying units
func (a *Account) CurrentValue(ctx context.Context, asset common.Address) (*big.Int, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	value, _, err := a.currentValue(ctx, asset)
	return value, err
}

// UnrealizedProfit returns current value minus principal. The result is
// signed; a position under water reports a negative profit.
func (a *Account) UnrealizedProfit(ctx context.Context, asset common.Address) (*big.Int, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	value, _, err := a.currentValue(ctx, asset)
	if err != nil {
		return nil, err
	}
	return value.Sub(value, a.assets[asset].TotalPrincipal), nil
}

// ProfitPercentage returns the unrealized profit as a percentage of
// principal with 6 implied decimal places (1000000 = 1%). Zero principal
// reports zero.
func (a *Account) ProfitPercentage(ctx context.Context, asset common.Address) (*big.Int, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	value, _, err := a.currentValue(ctx, asset)
	if err != nil {
		return nil, err
	}

	principal := a.assets[asset].TotalPrincipal
	if principal.Sign() == 0 {
		return new(big.Int), nil
	}

	profit := new(big.Int).Sub(value, principal)
	pct := profit.Mul(profit, big.NewInt(100))
	pct.Mul(pct, profitScale)
	return pct.Quo(pct, principal), nil
}

// PortfolioSummary reports every asset position with an initial deposit.
// Iteration order follows the registry's allowed-asset list.
func (a *Account) PortfolioSummary(ctx context.Context) ([]types.AssetPosition, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	positions := make([]types.AssetPosition, 0, len(a.assets))
	for _, asset := range a.registry.Assets() {
		st, ok := a.assets[asset]
		if !ok || !st.HasInitialDeposit {
			continue
		}

		value, source, err := a.currentValue(ctx, asset)
		if err != nil {
			return nil, err
		}

		positions = append(positions, types.AssetPosition{
			Asset:        asset,
			ActiveSource: source,
			Principal:    new(big.Int).Set(st.TotalPrincipal),
			CurrentValue: value,
			Profit:       new(big.Int).Sub(value, st.TotalPrincipal),
		})
	}
	return positions, nil
}

// RebalanceInfoFor reports the rebalance-specific ledger for an asset: the
// profit baseline, the position's current value, the unrealized profit over
// the baseline and the cumulative rebalance fees.
func (a *Account) RebalanceInfoFor(ctx context.Context, asset common.Address) (*types.RebalanceInfo, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}

	value, source, err := a.currentValue(ctx, asset)
	if err != nil {
		return nil, err
	}

	return &types.RebalanceInfo{
		Asset:              asset,
		ActiveSource:       source,
		BaseAmount:         new(big.Int).Set(st.RebalanceBase),
		CurrentValue:       value,
		UnrealizedProfit:   new(big.Int).Sub(value, st.RebalanceBase),
		TotalRebalanceFees: new(big.Int).Set(st.TotalRebalanceFees),
		LastRebalanceTime:  st.LastRebalanceTime,
	}, nil
}
