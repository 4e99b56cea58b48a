package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
)

// Asset and vault whitelist management. All operations are admin-only and
// delegate the bookkeeping to the registry; the account contributes the
// deposit-aware guards the registry cannot decide on its own.

// AddVault whitelists a yield source. Its declared underlying asset is
// captured at whitelist time so later asset bindings can be checked without
// another collaborator round trip.
func (a *Account) AddVault(ctx context.Context, caller, source common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	if source == (common.Address{}) {
		return errors.NewZeroAddressError("source")
	}

	underlying, err := a.yield.UnderlyingAssetOf(ctx, source)
	if err != nil {
		return errors.NewAdapterError("UnderlyingAssetOf", err)
	}

	if err := a.registry.AddVault(source, underlying); err != nil {
		return err
	}

	a.logger.WithFields(map[string]interface{}{
		"source":     source.Hex(),
		"underlying": underlying.Hex(),
	}).Info("Yield source whitelisted")
	return nil
}

// RemoveVault removes a yield source from the whitelist. Fails while any
// asset still has the source as its active destination.
func (a *Account) RemoveVault(caller, source common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.registry.RemoveVault(source)
}

// AddAsset allows an asset and binds it to its initial yield source
func (a *Account) AddAsset(caller, asset, initialSource common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return errors.NewZeroAddressError("asset")
	}

	if err := a.registry.AddAsset(asset, initialSource); err != nil {
		return err
	}

	a.logger.WithFields(map[string]interface{}{
		"asset":  asset.Hex(),
		"source": initialSource.Hex(),
	}).Info("Asset allowed")
	return nil
}

// RemoveAsset disallows an asset. Fails while the asset still carries
// deposits; the ledger entry, if any, is dropped with the registration.
func (a *Account) RemoveAsset(caller, asset common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	if st, ok := a.assets[asset]; ok && st.HasInitialDeposit {
		return errors.NewHasDepositsError(asset)
	}

	if err := a.registry.RemoveAsset(asset); err != nil {
		return err
	}

	delete(a.assets, asset)
	return nil
}

// AddVaultToAsset makes a whitelisted yield source available to an asset
func (a *Account) AddVaultToAsset(caller, asset, source common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.registry.AddVaultToAsset(asset, source)
}

// RemoveVaultFromAsset withdraws a yield source from an asset's available
// set. The asset's current active source cannot be removed.
func (a *Account) RemoveVaultFromAsset(caller, asset, source common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.registry.RemoveVaultFromAsset(asset, source)
}

// AllowedAssets lists the currently allowed assets. Order is not stable
// across removals.
func (a *Account) AllowedAssets() ([]common.Address, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()
	return a.registry.Assets(), nil
}

// AllowedVaults lists the currently whitelisted yield sources
func (a *Account) AllowedVaults() ([]common.Address, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()
	return a.registry.Vaults(), nil
}

// AvailableSources lists the yield sources available to an asset
func (a *Account) AvailableSources(asset common.Address) ([]common.Address, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()
	return a.registry.AvailableSources(asset), nil
}
