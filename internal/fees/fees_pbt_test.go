package fees

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFeeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("no fee without profit", prop.ForAll(
		func(principal, redeemed int64, feeBps uint16) bool {
			if redeemed > principal {
				return true // only the no-profit half of the domain
			}
			fee, userAmount := FromProfit(big.NewInt(principal), big.NewInt(redeemed), uint32(feeBps%10_001), big.NewInt(0))
			return fee.Sign() == 0 && userAmount.Cmp(big.NewInt(redeemed)) == 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 1<<50),
		gen.UInt16(),
	))

	properties.Property("profit at or below threshold is never charged", prop.ForAll(
		func(principal, profit, threshold int64) bool {
			if profit > threshold {
				return true
			}
			redeemed := new(big.Int).Add(big.NewInt(principal), big.NewInt(profit))
			fee, userAmount := FromProfit(big.NewInt(principal), redeemed, 1000, big.NewInt(threshold))
			return fee.Sign() == 0 && userAmount.Cmp(redeemed) == 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 1<<30),
		gen.Int64Range(0, 1<<30),
	))

	properties.Property("fee never exceeds profit and split conserves value", prop.ForAll(
		func(principal, profit int64, feeBps uint16) bool {
			redeemed := new(big.Int).Add(big.NewInt(principal), big.NewInt(profit))
			fee, userAmount := FromProfit(big.NewInt(principal), redeemed, uint32(feeBps%10_001), big.NewInt(0))
			total := new(big.Int).Add(fee, userAmount)
			return fee.Cmp(big.NewInt(profit)) <= 0 && total.Cmp(redeemed) == 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(1, 1<<50),
		gen.UInt16(),
	))

	properties.Property("rebalance baseline always resets to the redeployed amount", prop.ForAll(
		func(base, redeemed int64, feeBps uint16) bool {
			fee, redeploy, newBase := ForRebalance(big.NewInt(base), big.NewInt(redeemed), uint32(feeBps%10_001))
			if newBase.Cmp(redeploy) != 0 {
				return false
			}
			total := new(big.Int).Add(fee, redeploy)
			return total.Cmp(big.NewInt(redeemed)) == 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 1<<50),
		gen.UInt16(),
	))

	properties.Property("rebalance with flat or declining value never charges", prop.ForAll(
		func(base int64, drop int64) bool {
			redeemed := base - drop
			if redeemed < 0 {
				redeemed = 0
			}
			fee, _, newBase := ForRebalance(big.NewInt(base), big.NewInt(redeemed), 1000)
			return fee.Sign() == 0 && newBase.Cmp(big.NewInt(redeemed)) == 0
		},
		gen.Int64Range(0, 1<<50),
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("prorated principal never exceeds prior principal", prop.ForAll(
		func(principal, withdraw, balance int64) bool {
			if balance <= 0 {
				return true
			}
			w := withdraw % (balance + 1)
			portion := ProratePrincipal(big.NewInt(principal), big.NewInt(w), big.NewInt(balance))
			return portion.Sign() >= 0 && portion.Cmp(big.NewInt(principal)) <= 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(1, 1<<40),
	))

	properties.Property("prorated principal matches floor(p*w/b)", prop.ForAll(
		func(principal, withdraw, balance int64) bool {
			if balance <= 0 {
				return true
			}
			w := withdraw % balance // strictly partial
			portion := ProratePrincipal(big.NewInt(principal), big.NewInt(w), big.NewInt(balance))
			expected := new(big.Int).Mul(big.NewInt(principal), big.NewInt(w))
			expected.Quo(expected, big.NewInt(balance))
			return portion.Cmp(expected) == 0
		},
		gen.Int64Range(0, 1<<30),
		gen.Int64Range(0, 1<<30),
		gen.Int64Range(1, 1<<30),
	))

	properties.TestingRun(t)
}
