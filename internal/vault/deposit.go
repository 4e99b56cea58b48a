package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/ledger"
)

// DepositResult reports a completed deposit
type DepositResult struct {
	Asset     common.Address
	Source    common.Address
	Amount    *big.Int
	Principal *big.Int // total principal after the deposit
}

// InitialDeposit opens an asset position: pulls amount of asset from the
// owner and deposits it into the chosen yield source. The asset's ledger
// entry is created with principal and rebalance base both set to amount.
func (a *Account) InitialDeposit(ctx context.Context, caller, asset, source common.Address, amount *big.Int) (*DepositResult, error) {
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
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.NewZeroAmountError()
	}
	if !a.registry.IsAssetAllowed(asset) {
		return nil, errors.NewAssetNotAllowedError(asset)
	}
	if st, ok := a.assets[asset]; ok && st.HasInitialDeposit {
		return nil, errors.NewAlreadyInitializedError(asset)
	}
	if !a.registry.IsAvailable(asset, source) {
		return nil, errors.NewVaultNotAvailableError(asset, source)
	}

	now := a.clock.Now()

	// Effects before interactions: the ledger entry and the active source
	// binding are in place before any collaborator call, and rolled back
	// wholesale if one fails.
	prevActive, _ := a.registry.ActiveSource(asset)
	if prevActive != source {
		if err := a.registry.SetActiveSource(asset, source); err != nil {
			return nil, err
		}
	}
	a.assets[asset] = ledger.NewAssetState(source, amount, now)

	restore := func() {
		delete(a.assets, asset)
		if prevActive != source {
			// the previous source is still available; the swap back cannot fail
			_ = a.registry.SetActiveSource(asset, prevActive)
		}
	}

	if err := a.tokens.TransferFrom(ctx, asset, caller, a.address, amount); err != nil {
		restore()
		return nil, errors.NewAdapterError("TransferFrom", err)
	}
	if err := a.yield.Deposit(ctx, a.address, source, asset, amount); err != nil {
		restore()
		return nil, errors.NewAdapterError("Deposit", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"asset":  asset.Hex(),
		"source": source.Hex(),
		"amount": amount.String(),
	}).Info("Initial deposit completed")

	return &DepositResult{
		Asset:     asset,
		Source:    source,
		Amount:    new(big.Int).Set(amount),
		Principal: new(big.Int).Set(amount),
	}, nil
}

// TopUpDeposit adds funds to an initialized asset position from the owner's
// balance
func (a *Account) TopUpDeposit(ctx context.Context, caller, asset common.Address, amount *big.Int) (*DepositResult, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireOwner(caller); err != nil {
		return nil, err
	}
	return a.topUp(ctx, caller, asset, amount)
}

// AdminTopUpDeposit adds funds to an initialized asset position from the
// admin's balance. Effects are identical to the owner variant.
func (a *Account) AdminTopUpDeposit(ctx context.Context, caller, asset common.Address, amount *big.Int) (*DepositResult, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return nil, err
	}
	return a.topUp(ctx, caller, asset, amount)
}

// topUp implements the shared top-up path. The funder is the caller of the
// public variant that authorized it.
func (a *Account) topUp(ctx context.Context, funder, asset common.Address, amount *big.Int) (*DepositResult, error) {
	if err := a.requireNotPaused(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.NewZeroAmountError()
	}

	st, err := a.assetState(asset)
	if err != nil {
		return nil, err
	}

	snapshot := st.Clone()
	st.RecordDeposit(amount, a.clock.Now())

	restore := func() { a.assets[asset] = snapshot }

	if err := a.tokens.TransferFrom(ctx, asset, funder, a.address, amount); err != nil {
		restore()
		return nil, errors.NewAdapterError("TransferFrom", err)
	}
	if err := a.yield.Deposit(ctx, a.address, st.ActiveSource, asset, amount); err != nil {
		restore()
		return nil, errors.NewAdapterError("Deposit", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"asset":  asset.Hex(),
		"source": st.ActiveSource.Hex(),
		"amount": amount.String(),
		"funder": funder.Hex(),
	}).Info("Top-up deposit completed")

	return &DepositResult{
		Asset:     asset,
		Source:    st.ActiveSource,
		Amount:    new(big.Int).Set(amount),
		Principal: new(big.Int).Set(st.TotalPrincipal),
	}, nil
}
