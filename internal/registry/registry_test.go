package registry

import (
	stderrors "errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vault-router/internal/errors"
)

func addr(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

func code(t *testing.T, err error) string {
	t.Helper()
	var catErr *errors.CategorizedError
	if !stderrors.As(err, &catErr) {
		t.Fatalf("expected CategorizedError, got %v", err)
	}
	return catErr.Code
}

func newPopulated(t *testing.T) (*AssetRegistry, common.Address, common.Address, common.Address) {
	t.Helper()
	r := NewAssetRegistry()
	asset := addr(0x100)
	sourceA := addr(0x200)
	sourceB := addr(0x201)

	if err := r.AddVault(sourceA, asset); err != nil {
		t.Fatalf("AddVault A: %v", err)
	}
	if err := r.AddVault(sourceB, asset); err != nil {
		t.Fatalf("AddVault B: %v", err)
	}
	if err := r.AddAsset(asset, sourceA); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if err := r.AddVaultToAsset(asset, sourceB); err != nil {
		t.Fatalf("AddVaultToAsset: %v", err)
	}
	return r, asset, sourceA, sourceB
}

func TestAddAssetGuards(t *testing.T) {
	r := NewAssetRegistry()
	asset := addr(1)
	other := addr(2)
	source := addr(3)

	// Source not whitelisted yet
	if got := code(t, r.AddAsset(asset, source)); got != "VAULT_NOT_WHITELISTED" {
		t.Errorf("expected VAULT_NOT_WHITELISTED, got %s", got)
	}

	if err := r.AddVault(source, other); err != nil {
		t.Fatalf("AddVault: %v", err)
	}

	// Source declares a different underlying
	if got := code(t, r.AddAsset(asset, source)); got != "ASSET_MISMATCH" {
		t.Errorf("expected ASSET_MISMATCH, got %s", got)
	}

	if err := r.AddAsset(other, source); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}

	// Duplicate add
	if got := code(t, r.AddAsset(other, source)); got != "ASSET_ALREADY_EXISTS" {
		t.Errorf("expected ASSET_ALREADY_EXISTS, got %s", got)
	}

	active, ok := r.ActiveSource(other)
	if !ok || active != source {
		t.Errorf("expected active source %s, got %s", source.Hex(), active.Hex())
	}
}

func TestRemoveAsset(t *testing.T) {
	r, asset, sourceA, _ := newPopulated(t)

	if err := r.RemoveAsset(asset); err != nil {
		t.Fatalf("RemoveAsset: %v", err)
	}
	if r.IsAssetAllowed(asset) {
		t.Error("asset still allowed after removal")
	}
	if _, ok := r.ActiveSource(asset); ok {
		t.Error("active source survived removal")
	}

	// Double removal
	if got := code(t, r.RemoveAsset(asset)); got != "ASSET_NOT_ALLOWED" {
		t.Errorf("expected ASSET_NOT_ALLOWED, got %s", got)
	}

	// With no active reference left the source can be delisted
	if err := r.RemoveVault(sourceA); err != nil {
		t.Errorf("RemoveVault after asset removal: %v", err)
	}
}

func TestRemoveVaultInUse(t *testing.T) {
	r, _, sourceA, sourceB := newPopulated(t)

	if got := code(t, r.RemoveVault(sourceA)); got != "VAULT_IN_USE" {
		t.Errorf("expected VAULT_IN_USE, got %s", got)
	}

	// sourceB is available but not active, so it can be delisted... except it
	// is still in the asset's available set; global delisting is independent
	if err := r.RemoveVault(sourceB); err != nil {
		t.Errorf("RemoveVault of non-active source: %v", err)
	}
}

func TestRemoveVaultFromAsset(t *testing.T) {
	r, asset, sourceA, sourceB := newPopulated(t)

	// Cannot remove the active source
	if got := code(t, r.RemoveVaultFromAsset(asset, sourceA)); got != "CANNOT_REMOVE_ACTIVE" {
		t.Errorf("expected CANNOT_REMOVE_ACTIVE, got %s", got)
	}

	if err := r.RemoveVaultFromAsset(asset, sourceB); err != nil {
		t.Fatalf("RemoveVaultFromAsset: %v", err)
	}
	if r.IsAvailable(asset, sourceB) {
		t.Error("source still available after removal")
	}

	// Second removal reports not-available
	if got := code(t, r.RemoveVaultFromAsset(asset, sourceB)); got != "VAULT_NOT_AVAILABLE" {
		t.Errorf("expected VAULT_NOT_AVAILABLE, got %s", got)
	}
}

func TestSetActiveSource(t *testing.T) {
	r, asset, sourceA, sourceB := newPopulated(t)

	// Same value rejected
	if got := code(t, r.SetActiveSource(asset, sourceA)); got != "SAME_SOURCE" {
		t.Errorf("expected SAME_SOURCE, got %s", got)
	}

	if err := r.SetActiveSource(asset, sourceB); err != nil {
		t.Fatalf("SetActiveSource: %v", err)
	}
	active, _ := r.ActiveSource(asset)
	if active != sourceB {
		t.Errorf("expected active %s, got %s", sourceB.Hex(), active.Hex())
	}

	// The old source no longer holds an active reference
	if err := r.RemoveVaultFromAsset(asset, sourceA); err != nil {
		t.Errorf("RemoveVaultFromAsset of former active: %v", err)
	}
}

func TestSetActiveSourceNotAvailable(t *testing.T) {
	r, asset, _, _ := newPopulated(t)
	outsider := addr(0x999)

	if got := code(t, r.SetActiveSource(asset, outsider)); got != "VAULT_NOT_AVAILABLE" {
		t.Errorf("expected VAULT_NOT_AVAILABLE, got %s", got)
	}
}

// TestSwapRemoveConsistency removes from the middle of a large fixture and
// verifies the back-index stays consistent: every surviving element is still
// found at the index the map claims, which is what keeps removal O(1).
func TestSwapRemoveConsistency(t *testing.T) {
	r := NewAssetRegistry()

	const n = 1500
	assets := make([]common.Address, n)
	for i := 0; i < n; i++ {
		asset := addr(uint64(0x10000 + i))
		source := addr(uint64(0x90000 + i))
		assets[i] = asset
		if err := r.AddVault(source, asset); err != nil {
			t.Fatalf("AddVault %d: %v", i, err)
		}
		if err := r.AddAsset(asset, source); err != nil {
			t.Fatalf("AddAsset %d: %v", i, err)
		}
	}

	// Remove every third asset, front to back, forcing repeated swap-moves
	removed := make(map[common.Address]bool)
	for i := 0; i < n; i += 3 {
		if err := r.RemoveAsset(assets[i]); err != nil {
			t.Fatalf("RemoveAsset %d: %v", i, err)
		}
		removed[assets[i]] = true
	}

	list := r.Assets()
	if len(list) != n-len(removed) {
		t.Fatalf("expected %d assets, got %d", n-len(removed), len(list))
	}
	for _, asset := range list {
		if removed[asset] {
			t.Fatalf("removed asset %s still listed", asset.Hex())
		}
		if !r.IsAssetAllowed(asset) {
			t.Fatalf("listed asset %s not allowed", asset.Hex())
		}
	}
	for i, asset := range list {
		if r.assetIndex[asset] != i {
			t.Fatalf("back-index for %s is %d, list position is %d", asset.Hex(), r.assetIndex[asset], i)
		}
	}
}

// TestMutationIsConstantTime measures map/list accesses indirectly: removal
// touches only the removed element and the swapped-in tail element, so the
// index map must stay exactly as large as the list.
func TestMutationIsConstantTime(t *testing.T) {
	r := NewAssetRegistry()
	for i := 0; i < 1000; i++ {
		asset := addr(uint64(0x20000 + i))
		source := addr(uint64(0xA0000 + i))
		if err := r.AddVault(source, asset); err != nil {
			t.Fatalf("AddVault: %v", err)
		}
		if err := r.AddAsset(asset, source); err != nil {
			t.Fatalf("AddAsset: %v", err)
		}
	}

	for i := 999; i >= 0; i-- {
		asset := addr(uint64(0x20000 + i))
		if err := r.RemoveAsset(asset); err != nil {
			t.Fatalf("RemoveAsset: %v", err)
		}
		if len(r.assetIndex) != len(r.assetList) {
			t.Fatalf("index size %d diverged from list size %d", len(r.assetIndex), len(r.assetList))
		}
	}
	if len(r.Assets()) != 0 {
		t.Error("expected empty registry")
	}
}

func TestAvailableSourcesSwapRemove(t *testing.T) {
	r := NewAssetRegistry()
	asset := addr(0x500)

	sources := make([]common.Address, 10)
	for i := range sources {
		sources[i] = addr(uint64(0x600 + i))
		if err := r.AddVault(sources[i], asset); err != nil {
			t.Fatalf("AddVault: %v", err)
		}
	}
	if err := r.AddAsset(asset, sources[0]); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	for _, s := range sources[1:] {
		if err := r.AddVaultToAsset(asset, s); err != nil {
			t.Fatalf("AddVaultToAsset: %v", err)
		}
	}

	// Remove a middle element; the set must shrink by exactly one and the
	// membership map must agree with the list
	if err := r.RemoveVaultFromAsset(asset, sources[4]); err != nil {
		t.Fatalf("RemoveVaultFromAsset: %v", err)
	}
	list := r.AvailableSources(asset)
	if len(list) != 9 {
		t.Fatalf("expected 9 sources, got %d", len(list))
	}
	seen := make(map[common.Address]bool)
	for _, s := range list {
		if s == sources[4] {
			t.Error("removed source still listed")
		}
		if seen[s] {
			t.Errorf("source %s listed twice", s.Hex())
		}
		seen[s] = true
		if !r.IsAvailable(asset, s) {
			t.Errorf("listed source %s not available", s.Hex())
		}
	}
}

func TestDuplicateVaultToAsset(t *testing.T) {
	r, asset, _, sourceB := newPopulated(t)

	err := r.AddVaultToAsset(asset, sourceB)
	if err == nil {
		t.Fatal("expected error on duplicate relation")
	}
	if got := code(t, err); got != "VAULT_ALREADY_EXISTS" {
		t.Errorf("expected VAULT_ALREADY_EXISTS, got %s", got)
	}
}

func BenchmarkRemoveAsset(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		r := NewAssetRegistry()
		for j := 0; j < 1000; j++ {
			asset := addr(uint64(0x30000 + j))
			source := addr(uint64(0xB0000 + j))
			_ = r.AddVault(source, asset)
			_ = r.AddAsset(asset, source)
		}
		b.StartTimer()
		_ = r.RemoveAsset(addr(uint64(0x30000 + i%1000)))
	}
}

func ExampleAssetRegistry_Assets() {
	r := NewAssetRegistry()
	asset := common.HexToAddress("0x01")
	source := common.HexToAddress("0x02")
	_ = r.AddVault(source, asset)
	_ = r.AddAsset(asset, source)
	fmt.Println(len(r.Assets()))
	// Output: 1
}
