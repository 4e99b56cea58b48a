package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/fees"
)

// WithdrawResult reports a completed withdrawal
type WithdrawResult struct {
	Asset             common.Address
	Source            common.Address
	Recipient         common.Address
	Redeemed          *big.Int
	Fee               *big.Int
	NetAmount         *big.Int
	PrincipalReleased *big.Int
	Remaining         *big.Int // principal left after the withdrawal
}

// nativeThreshold converts the configured 6-decimal profit threshold into
// the asset's native precision. A failed decimals query falls back to 18.
func (a *Account) nativeThreshold(ctx context.Context, asset common.Address) *big.Int {
	decimals, err := a.tokens.Decimals(ctx, asset)
	if err != nil {
		decimals = 18
	}
	return fees.NormalizeThreshold(a.feeCfg.MinProfitThreshold, decimals)
}

// Withdraw redeems shares from the asset's active yield source and pays the
// owner, taking the profit-contingent fee. An amount of zero withdraws the
// entire balance. Partial withdrawals release a proportional slice of the
// principal, computed against the pre-redemption balance.
func (a *Account) Withdraw(ctx context.Context, caller, asset common.Address, amount *big.Int) (*WithdrawResult, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := a.requireNotPaused(); err != nil {
		return nil, err
	}

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}

	return a.redeemAndPay(ctx, asset, st.ActiveSource, amount, false)
}

// EmergencyWithdraw performs a full exit of the asset while the account is
// paused. The entire source balance is redeemed and the principal is zeroed
// unconditionally; there is no partial emergency withdrawal.
func (a *Account) EmergencyWithdraw(ctx context.Context, caller, asset common.Address) (*WithdrawResult, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireOwner(caller); err != nil {
		return nil, err
	}
	if !a.paused {
		return nil, errors.NewNotPausedError()
	}

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}

	return a.redeemAndPay(ctx, asset, st.ActiveSource, new(big.Int), true)
}

// redeemAndPay is the shared redeem, fee and payout path. amount of zero
// means the entire source balance; emergency forces a full exit.
func (a *Account) redeemAndPay(ctx context.Context, asset, source common.Address, amount *big.Int, emergency bool) (*WithdrawResult, error) {
	st := a.assets[asset]

	sourceBalance, err := a.yield.BalanceOf(ctx, source, a.address)
	if err != nil {
		return nil, errors.NewAdapterError("BalanceOf", err)
	}
	if sourceBalance.Sign() == 0 {
		return nil, errors.NewNoFundsInSourceError(asset, source)
	}

	withdrawAmount := new(big.Int).Set(sourceBalance)
	if !emergency && amount != nil && amount.Sign() > 0 && amount.Cmp(sourceBalance) < 0 {
		withdrawAmount.Set(amount)
	}
	fullExit := emergency || withdrawAmount.Cmp(sourceBalance) == 0

	// The released principal slice uses the pre-redemption proportion
	principalPortion := fees.ProratePrincipal(st.TotalPrincipal, withdrawAmount, sourceBalance)

	snapshot := st.Clone()
	if fullExit {
		st.ClosePrincipal()
	} else {
		st.ReducePrincipal(principalPortion)
	}
	restore := func() { a.assets[asset] = snapshot }

	redeemed, err := a.yield.Redeem(ctx, a.address, source, withdrawAmount)
	if err != nil {
		restore()
		return nil, errors.NewAdapterError("Redeem", err)
	}

	threshold := a.nativeThreshold(ctx, asset)
	fee, userAmount := fees.FromProfit(principalPortion, redeemed, a.feeCfg.WithdrawalFeeBps, threshold)

	if fee.Sign() > 0 {
		if err := a.tokens.Transfer(ctx, asset, a.address, a.revenue, fee); err != nil {
			restore()
			return nil, errors.NewAdapterError("Transfer", err)
		}
		st.RecordWithdrawalFee(fee)
	}
	if userAmount.Sign() > 0 {
		if err := a.tokens.Transfer(ctx, asset, a.address, a.roles.Owner, userAmount); err != nil {
			restore()
			return nil, errors.NewAdapterError("Transfer", err)
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"asset":     asset.Hex(),
		"source":    source.Hex(),
		"redeemed":  redeemed.String(),
		"fee":       fee.String(),
		"net":       userAmount.String(),
		"emergency": emergency,
	}).Info("Withdrawal completed")

	return &WithdrawResult{
		Asset:             asset,
		Source:            source,
		Recipient:         a.roles.Owner,
		Redeemed:          redeemed,
		Fee:               fee,
		NetAmount:         userAmount,
		PrincipalReleased: principalPortion,
		Remaining:         new(big.Int).Set(st.TotalPrincipal),
	}, nil
}
