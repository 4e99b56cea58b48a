package config

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadConfigDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Vault.MaxFeeBps != 1000 {
		t.Errorf("expected default max fee 1000 bps, got %d", cfg.Vault.MaxFeeBps)
	}
	if cfg.Vault.RebalanceCooldown != 12*time.Hour {
		t.Errorf("expected default rebalance cooldown 12h, got %v", cfg.Vault.RebalanceCooldown)
	}
	if cfg.Vault.FeeChangeCooldown != 24*time.Hour {
		t.Errorf("expected default fee change cooldown 24h, got %v", cfg.Vault.FeeChangeCooldown)
	}
	if cfg.Vault.MinProfitThreshold.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("expected default min profit threshold 10000000, got %s", cfg.Vault.MinProfitThreshold)
	}
	if cfg.Vault.MaxClaimBatch != 20 {
		t.Errorf("expected default claim batch cap 20, got %d", cfg.Vault.MaxClaimBatch)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	os.Clearenv()
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("VAULT_REBALANCE_COOLDOWN", "6h")
	os.Setenv("VAULT_MIN_PROFIT_THRESHOLD", "2500000")
	os.Setenv("CHAIN_ID", "8453")
	defer os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Vault.RebalanceCooldown != 6*time.Hour {
		t.Errorf("expected rebalance cooldown 6h, got %v", cfg.Vault.RebalanceCooldown)
	}
	if cfg.Vault.MinProfitThreshold.Cmp(big.NewInt(2_500_000)) != 0 {
		t.Errorf("expected min profit threshold 2500000, got %s", cfg.Vault.MinProfitThreshold)
	}
	if cfg.Chain.ChainID != 8453 {
		t.Errorf("expected chain id 8453, got %d", cfg.Chain.ChainID)
	}
}

func TestValidate(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Revenue address unset: invalid
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unset revenue address")
	}

	os.Setenv("VAULT_REVENUE_ADDRESS", "0x00000000000000000000000000000000000000fe")
	defer os.Clearenv()

	// Distributor still unset: invalid
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unset Merkl distributor")
	}

	os.Setenv("VAULT_MERKL_DISTRIBUTOR", "0x00000000000000000000000000000000000000d1")

	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	if cfg.Vault.MerklDistributor != common.HexToAddress("0x00000000000000000000000000000000000000d1") {
		t.Errorf("unexpected distributor address %s", cfg.Vault.MerklDistributor.Hex())
	}
}

func TestValidateFeeBounds(t *testing.T) {
	os.Clearenv()
	os.Setenv("VAULT_REVENUE_ADDRESS", "0x00000000000000000000000000000000000000fe")
	os.Setenv("VAULT_MERKL_DISTRIBUTOR", "0x00000000000000000000000000000000000000d1")
	os.Setenv("VAULT_WITHDRAWAL_FEE_BPS", "5000")
	defer os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for withdrawal fee above maximum")
	}
}
