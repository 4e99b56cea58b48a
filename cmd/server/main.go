// Package main provides the API server entry point for the vault router
// service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vault-router/internal/adapter"
	"github.com/vault-router/internal/api"
	"github.com/vault-router/internal/circuitbreaker"
	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/factory"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/retry"
	"github.com/vault-router/internal/service"
	"github.com/vault-router/internal/storage"
	"github.com/vault-router/internal/types"
	"github.com/vault-router/internal/vault"
)

// instanceTemplate is the creation code hashed into deterministic instance
// addresses. Deployments across environments must agree on it byte for byte.
var instanceTemplate = []byte{
	0x60, 0x80, 0x60, 0x40, 0x52, 0x34, 0x80, 0x15,
	0x61, 0x00, 0x10, 0x57, 0x60, 0x00, 0x80, 0xfd,
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize chain access
	logger.Info("Connecting to chain RPC...")

	rpc, err := adapter.NewRPCCaller(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to chain RPC")
	}
	defer rpc.Close()

	sender := adapter.NewSimulatingSender(rpc)

	yieldAdapter := adapter.NewResilientYieldAdapter(
		adapter.NewERC4626Adapter(rpc, sender),
		circuitbreaker.New(circuitbreaker.DefaultConfig("yield_rpc")),
		retry.DefaultConfig(),
	)

	tokenAdapter, err := adapter.NewERC20Adapter(rpc, sender)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token adapter")
	}

	claimer := adapter.NewMerklClaimer(sender, cfg.Vault.MerklDistributor)

	logger.WithFields(map[string]interface{}{
		"chain_id": cfg.Chain.ChainID,
		"rpc":      cfg.Chain.RPCPrimary,
	}).Info("Chain adapters initialized")

	// Initialize repositories and caches
	recordRepo := storage.NewVaultRecordRepository(postgres)
	feeAuditRepo := storage.NewFeeAuditRepository(postgres)
	eventRepo := storage.NewOperationEventRepository(clickhouse)
	summaryCache := storage.NewSummaryCache(redis, cfg.Vault.SummaryCacheTTL)

	// Initialize services
	logger.Info("Initializing services...")

	vaultService := service.NewVaultService(&cfg.Vault, vault.Deps{
		Yield:   yieldAdapter,
		Tokens:  tokenAdapter,
		Claimer: claimer,
	}, eventRepo, summaryCache)

	registry := factory.NewRegistry(
		cfg.Vault.DeployerAddress,
		instanceTemplate,
		types.ChainID(cfg.Chain.ChainID),
		logger,
	)
	factoryService := service.NewFactoryService(registry, recordRepo, vaultService, types.ChainID(cfg.Chain.ChainID))

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, vaultService, factoryService, eventRepo, feeAuditRepo)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
