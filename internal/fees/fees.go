// Package fees implements the profit-contingent fee computations shared by
// withdrawals, rebalances and reward claims. All functions are pure: they
// never mutate their big.Int arguments and always return fresh values.
//
// Fees are charged on profit only. Withdrawal fees additionally require the
// profit to clear a minimum threshold denominated in 6-decimal USD-like
// units, normalized into the asset's native precision by the caller.
package fees

import (
	"math/big"

	"github.com/vault-router/internal/types"
)

var (
	bpsDenominator = big.NewInt(types.BpsDenominator)
	ten            = big.NewInt(10)
)

// FromProfit computes the fee taken from a withdrawal redemption.
//
// If redeemed does not exceed principal (no profit, or a loss), or the profit
// does not exceed minProfitThreshold, the fee is zero and the caller keeps
// the full redeemed amount. Otherwise fee = profit * feeBps / 10000 with
// integer division truncating toward zero.
func FromProfit(principal, redeemed *big.Int, feeBps uint32, minProfitThreshold *big.Int) (fee, userAmount *big.Int) {
	if redeemed.Cmp(principal) <= 0 {
		return new(big.Int), new(big.Int).Set(redeemed)
	}

	profit := new(big.Int).Sub(redeemed, principal)
	if profit.Cmp(minProfitThreshold) <= 0 {
		return new(big.Int), new(big.Int).Set(redeemed)
	}

	fee = new(big.Int).Mul(profit, big.NewInt(int64(feeBps)))
	fee.Quo(fee, bpsDenominator)
	userAmount = new(big.Int).Sub(redeemed, fee)
	return fee, userAmount
}

// ForRebalance computes the fee taken when migrating funds between yield
// sources and the new profit baseline.
//
// A fee is charged only when redeemed exceeds a non-zero base. The baseline
// is reset to the redeployed amount on every call, charged or not, so profit
// is never taxed twice across successive rebalances.
func ForRebalance(base, redeemed *big.Int, feeBps uint32) (fee, redeploy, newBase *big.Int) {
	if base.Sign() > 0 && redeemed.Cmp(base) > 0 {
		profit := new(big.Int).Sub(redeemed, base)
		fee = new(big.Int).Mul(profit, big.NewInt(int64(feeBps)))
		fee.Quo(fee, bpsDenominator)
		redeploy = new(big.Int).Sub(redeemed, fee)
		return fee, redeploy, new(big.Int).Set(redeploy)
	}

	return new(big.Int), new(big.Int).Set(redeemed), new(big.Int).Set(redeemed)
}

// FromDelta computes the fee split for a claimed reward balance delta.
// Claims have no profit baseline: the whole delta is profit, so the fee is a
// straight basis-point cut of it.
func FromDelta(delta *big.Int, feeBps uint32) (fee, userAmount *big.Int) {
	if delta.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}

	fee = new(big.Int).Mul(delta, big.NewInt(int64(feeBps)))
	fee.Quo(fee, bpsDenominator)
	userAmount = new(big.Int).Sub(delta, fee)
	return fee, userAmount
}

// NormalizeThreshold converts a 6-decimal USD-denominated threshold into an
// asset's native decimal precision. Division truncates, so assets with fewer
// than 6 decimals round the threshold down.
func NormalizeThreshold(usdThreshold *big.Int, assetDecimals uint8) *big.Int {
	switch {
	case assetDecimals > types.ThresholdDecimals:
		scale := new(big.Int).Exp(ten, big.NewInt(int64(assetDecimals-types.ThresholdDecimals)), nil)
		return new(big.Int).Mul(usdThreshold, scale)
	case assetDecimals < types.ThresholdDecimals:
		scale := new(big.Int).Exp(ten, big.NewInt(int64(types.ThresholdDecimals-assetDecimals)), nil)
		return new(big.Int).Quo(usdThreshold, scale)
	default:
		return new(big.Int).Set(usdThreshold)
	}
}

// ProratePrincipal computes the principal portion released by a partial
// withdrawal of withdrawAmount out of sourceBalance, using the pre-redemption
// proportion. Withdrawing the full balance closes out the entire principal.
func ProratePrincipal(principal, withdrawAmount, sourceBalance *big.Int) *big.Int {
	if sourceBalance.Sign() == 0 || withdrawAmount.Cmp(sourceBalance) >= 0 {
		return new(big.Int).Set(principal)
	}

	portion := new(big.Int).Mul(principal, withdrawAmount)
	return portion.Quo(portion, sourceBalance)
}
