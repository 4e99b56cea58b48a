// Package registry maintains the per-account whitelist of assets and yield
// sources and the many-to-many relation between them.
//
// Membership tests, adds and removals are all O(1): every ordered list
// carries a parallel element-to-index map, and removal swaps the last element
// into the vacated slot. List order is therefore not stable across removals;
// no caller depends on iteration order.
package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
)

// AssetRegistry tracks allowed assets, whitelisted yield sources and which
// sources each asset may route into. The active source per asset is recorded
// here so that removing a still-active source can be rejected in O(1).
type AssetRegistry struct {
	allowedAssets map[common.Address]bool
	assetList     []common.Address
	assetIndex    map[common.Address]int

	allowedVaults   map[common.Address]bool
	vaultList       []common.Address
	vaultIndex      map[common.Address]int
	vaultUnderlying map[common.Address]common.Address

	available      map[common.Address]map[common.Address]bool
	availableList  map[common.Address][]common.Address
	availableIndex map[common.Address]map[common.Address]int

	activeSource map[common.Address]common.Address
	// activeRefs counts how many assets currently use a source as their
	// active source, so RemoveVault needs no scan
	activeRefs map[common.Address]int
}

// NewAssetRegistry creates an empty registry
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{
		allowedAssets:   make(map[common.Address]bool),
		assetIndex:      make(map[common.Address]int),
		allowedVaults:   make(map[common.Address]bool),
		vaultIndex:      make(map[common.Address]int),
		vaultUnderlying: make(map[common.Address]common.Address),
		available:       make(map[common.Address]map[common.Address]bool),
		availableList:   make(map[common.Address][]common.Address),
		availableIndex:  make(map[common.Address]map[common.Address]int),
		activeSource:    make(map[common.Address]common.Address),
		activeRefs:      make(map[common.Address]int),
	}
}

// AddVault whitelists a yield source globally, recording its declared
// underlying asset for later mismatch checks.
func (r *AssetRegistry) AddVault(source, underlying common.Address) error {
	if source == (common.Address{}) {
		return errors.NewZeroAddressError("source")
	}
	if r.allowedVaults[source] {
		return errors.NewVaultAlreadyExistsError(source)
	}

	r.allowedVaults[source] = true
	r.vaultIndex[source] = len(r.vaultList)
	r.vaultList = append(r.vaultList, source)
	r.vaultUnderlying[source] = underlying
	return nil
}

// RemoveVault removes a yield source from the global whitelist. Fails while
// any asset still has it as the active source.
func (r *AssetRegistry) RemoveVault(source common.Address) error {
	if !r.allowedVaults[source] {
		return errors.NewVaultNotWhitelistedError(source)
	}
	if r.activeRefs[source] > 0 {
		return errors.NewVaultInUseError(source)
	}

	idx := r.vaultIndex[source]
	last := len(r.vaultList) - 1
	moved := r.vaultList[last]
	r.vaultList[idx] = moved
	r.vaultIndex[moved] = idx
	r.vaultList = r.vaultList[:last]

	delete(r.allowedVaults, source)
	delete(r.vaultIndex, source)
	delete(r.vaultUnderlying, source)
	return nil
}

// AddAsset allows an asset and binds its initial active yield source. The
// initial source must already be whitelisted and must hold this asset as its
// underlying.
func (r *AssetRegistry) AddAsset(asset, initialSource common.Address) error {
	if asset == (common.Address{}) {
		return errors.NewZeroAddressError("asset")
	}
	if r.allowedAssets[asset] {
		return errors.NewAssetAlreadyExistsError(asset)
	}
	if !r.allowedVaults[initialSource] {
		return errors.NewVaultNotWhitelistedError(initialSource)
	}
	if underlying := r.vaultUnderlying[initialSource]; underlying != asset {
		return errors.NewAssetMismatchError(asset, initialSource, underlying)
	}

	r.allowedAssets[asset] = true
	r.assetIndex[asset] = len(r.assetList)
	r.assetList = append(r.assetList, asset)

	r.available[asset] = map[common.Address]bool{initialSource: true}
	r.availableList[asset] = []common.Address{initialSource}
	r.availableIndex[asset] = map[common.Address]int{initialSource: 0}

	r.activeSource[asset] = initialSource
	r.activeRefs[initialSource]++
	return nil
}

// RemoveAsset disallows an asset and clears its relation bookkeeping. The
// caller is responsible for rejecting removal while deposits exist; this
// method only knows whitelist state.
func (r *AssetRegistry) RemoveAsset(asset common.Address) error {
	if !r.allowedAssets[asset] {
		return errors.NewAssetNotAllowedError(asset)
	}

	idx := r.assetIndex[asset]
	last := len(r.assetList) - 1
	moved := r.assetList[last]
	r.assetList[idx] = moved
	r.assetIndex[moved] = idx
	r.assetList = r.assetList[:last]

	delete(r.allowedAssets, asset)
	delete(r.assetIndex, asset)
	delete(r.available, asset)
	delete(r.availableList, asset)
	delete(r.availableIndex, asset)

	if active, ok := r.activeSource[asset]; ok {
		r.activeRefs[active]--
		delete(r.activeSource, asset)
	}
	return nil
}

// AddVaultToAsset makes a whitelisted yield source available for an asset
func (r *AssetRegistry) AddVaultToAsset(asset, source common.Address) error {
	if !r.allowedAssets[asset] {
		return errors.NewAssetNotAllowedError(asset)
	}
	if !r.allowedVaults[source] {
		return errors.NewVaultNotWhitelistedError(source)
	}
	if underlying := r.vaultUnderlying[source]; underlying != asset {
		return errors.NewAssetMismatchError(asset, source, underlying)
	}
	if r.available[asset][source] {
		return errors.NewVaultAlreadyExistsError(source)
	}

	r.available[asset][source] = true
	r.availableIndex[asset][source] = len(r.availableList[asset])
	r.availableList[asset] = append(r.availableList[asset], source)
	return nil
}

// RemoveVaultFromAsset removes a yield source from an asset's available set.
// The active source cannot be removed; switch first.
func (r *AssetRegistry) RemoveVaultFromAsset(asset, source common.Address) error {
	if !r.allowedAssets[asset] {
		return errors.NewAssetNotAllowedError(asset)
	}
	if !r.available[asset][source] {
		return errors.NewVaultNotAvailableError(asset, source)
	}
	if r.activeSource[asset] == source {
		return errors.NewCannotRemoveActiveError(asset, source)
	}

	idx := r.availableIndex[asset][source]
	list := r.availableList[asset]
	last := len(list) - 1
	moved := list[last]
	list[idx] = moved
	r.availableIndex[asset][moved] = idx
	r.availableList[asset] = list[:last]

	delete(r.available[asset], source)
	delete(r.availableIndex[asset], source)
	return nil
}

// SetActiveSource switches an asset's active yield source. The new source
// must be in the asset's available set and differ from the current one.
func (r *AssetRegistry) SetActiveSource(asset, source common.Address) error {
	if !r.allowedAssets[asset] {
		return errors.NewAssetNotAllowedError(asset)
	}
	if !r.available[asset][source] {
		return errors.NewVaultNotAvailableError(asset, source)
	}
	current := r.activeSource[asset]
	if current == source {
		return errors.NewSameSourceError(source)
	}

	r.activeRefs[current]--
	r.activeSource[asset] = source
	r.activeRefs[source]++
	return nil
}

// IsAssetAllowed reports whether an asset is on the whitelist
func (r *AssetRegistry) IsAssetAllowed(asset common.Address) bool {
	return r.allowedAssets[asset]
}

// IsVaultAllowed reports whether a yield source is on the global whitelist
func (r *AssetRegistry) IsVaultAllowed(source common.Address) bool {
	return r.allowedVaults[source]
}

// IsAvailable reports whether a yield source is available for an asset
func (r *AssetRegistry) IsAvailable(asset, source common.Address) bool {
	return r.available[asset][source]
}

// ActiveSource returns the asset's current active yield source
func (r *AssetRegistry) ActiveSource(asset common.Address) (common.Address, bool) {
	source, ok := r.activeSource[asset]
	return source, ok
}

// VaultUnderlying returns the declared underlying asset of a whitelisted source
func (r *AssetRegistry) VaultUnderlying(source common.Address) (common.Address, bool) {
	underlying, ok := r.vaultUnderlying[source]
	return underlying, ok
}

// Assets returns a copy of the allowed-asset list. Order is unstable across
// removals.
func (r *AssetRegistry) Assets() []common.Address {
	out := make([]common.Address, len(r.assetList))
	copy(out, r.assetList)
	return out
}

// Vaults returns a copy of the whitelisted yield source list
func (r *AssetRegistry) Vaults() []common.Address {
	out := make([]common.Address, len(r.vaultList))
	copy(out, r.vaultList)
	return out
}

// AvailableSources returns a copy of the asset's available yield source list
func (r *AssetRegistry) AvailableSources(asset common.Address) []common.Address {
	list := r.availableList[asset]
	out := make([]common.Address, len(list))
	copy(out, list)
	return out
}
