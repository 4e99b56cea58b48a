// Package config provides configuration management for the vault router
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Vault     VaultConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds RPC configuration for the deployment target chain
type ChainConfig struct {
	ChainID      uint64
	RPCPrimary   string
	RPCSecondary string
	CallTimeout  time.Duration
}

// VaultConfig holds account-level operating parameters
type VaultConfig struct {
	RevenueAddress       common.Address
	DeployerAddress      common.Address
	MerklDistributor     common.Address
	MaxFeeBps            uint32
	DefaultWithdrawalBps uint32
	DefaultRebalanceBps  uint32
	DefaultClaimBps      uint32
	// MinProfitThreshold is denominated in 6-decimal USD-like units
	MinProfitThreshold *big.Int
	RebalanceCooldown  time.Duration
	FeeChangeCooldown  time.Duration
	MaxClaimBatch      int
	SummaryCacheTTL    time.Duration
}

// RateLimitConfig holds per-caller rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "vault_router"),
				User:           getEnv("POSTGRES_USER", "vault"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "vault_router"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Chain: ChainConfig{
			ChainID:      uint64(getEnvAsInt("CHAIN_ID", 1)),
			RPCPrimary:   getEnv("CHAIN_RPC_PRIMARY", ""),
			RPCSecondary: getEnv("CHAIN_RPC_SECONDARY", ""),
			CallTimeout:  getEnvAsDuration("CHAIN_CALL_TIMEOUT", 15*time.Second),
		},
		Vault: VaultConfig{
			RevenueAddress:       common.HexToAddress(getEnv("VAULT_REVENUE_ADDRESS", "")),
			DeployerAddress:      common.HexToAddress(getEnv("VAULT_DEPLOYER_ADDRESS", "")),
			MerklDistributor:     common.HexToAddress(getEnv("VAULT_MERKL_DISTRIBUTOR", "")),
			MaxFeeBps:            uint32(getEnvAsInt("VAULT_MAX_FEE_BPS", 1000)),
			DefaultWithdrawalBps: uint32(getEnvAsInt("VAULT_WITHDRAWAL_FEE_BPS", 100)),
			DefaultRebalanceBps:  uint32(getEnvAsInt("VAULT_REBALANCE_FEE_BPS", 100)),
			DefaultClaimBps:      uint32(getEnvAsInt("VAULT_CLAIM_FEE_BPS", 100)),
			MinProfitThreshold:   getEnvAsBigInt("VAULT_MIN_PROFIT_THRESHOLD", big.NewInt(10_000_000)),
			RebalanceCooldown:    getEnvAsDuration("VAULT_REBALANCE_COOLDOWN", 12*time.Hour),
			FeeChangeCooldown:    getEnvAsDuration("VAULT_FEE_CHANGE_COOLDOWN", 24*time.Hour),
			MaxClaimBatch:        getEnvAsInt("VAULT_MAX_CLAIM_BATCH", 20),
			SummaryCacheTTL:      getEnvAsDuration("VAULT_SUMMARY_CACHE_TTL", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks settings that have no safe fallback
func (c *Config) Validate() error {
	if c.Vault.RevenueAddress == (common.Address{}) {
		return fmt.Errorf("VAULT_REVENUE_ADDRESS must be set")
	}
	if c.Vault.MerklDistributor == (common.Address{}) {
		return fmt.Errorf("VAULT_MERKL_DISTRIBUTOR must be set")
	}
	if c.Vault.MaxFeeBps > 10_000 {
		return fmt.Errorf("VAULT_MAX_FEE_BPS must not exceed 10000")
	}
	if c.Vault.DefaultWithdrawalBps > c.Vault.MaxFeeBps ||
		c.Vault.DefaultRebalanceBps > c.Vault.MaxFeeBps ||
		c.Vault.DefaultClaimBps > c.Vault.MaxFeeBps {
		return fmt.Errorf("default fee settings must not exceed VAULT_MAX_FEE_BPS")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBigInt gets an environment variable as a base-10 big integer with a
// default value
func getEnvAsBigInt(key string, defaultValue *big.Int) *big.Int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return new(big.Int).Set(defaultValue)
	}

	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return new(big.Int).Set(defaultValue)
	}
	return value
}
