// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/vault-router/internal/factory"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/storage"
	"github.com/vault-router/internal/types"
	"github.com/vault-router/internal/vault"
)

// Service interfaces for dependency injection and testing

// VaultServiceInterface defines the interface for vault account operations
type VaultServiceInterface interface {
	Account(address common.Address) (*vault.Account, error)
	InitialDeposit(ctx context.Context, account, caller, asset, source common.Address, amount *big.Int) (*vault.DepositResult, error)
	TopUpDeposit(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.DepositResult, error)
	AdminTopUpDeposit(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.DepositResult, error)
	Withdraw(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.WithdrawResult, error)
	EmergencyWithdraw(ctx context.Context, account, caller, asset common.Address) (*vault.WithdrawResult, error)
	Rebalance(ctx context.Context, account, caller, asset, toSource common.Address) (*vault.RebalanceResult, error)
	ClaimRewards(ctx context.Context, account, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) ([]vault.ClaimedReward, error)
	Portfolio(ctx context.Context, account common.Address) ([]types.AssetPosition, error)
	RebalanceInfo(ctx context.Context, account, asset common.Address) (*types.RebalanceInfo, error)
}

// FactoryServiceInterface defines the interface for deterministic deployment
type FactoryServiceInterface interface {
	Predict(cfg *factory.InstanceConfig, salt common.Hash) (common.Address, error)
	Deploy(ctx context.Context, cfg *factory.InstanceConfig, salt common.Hash) (*types.DeploymentEvent, error)
	Instances(ctx context.Context, owner common.Address) ([]*storage.VaultRecord, error)
}

// OperationHistoryInterface defines the interface for operation history queries
type OperationHistoryInterface interface {
	ListByAccount(ctx context.Context, account common.Address, filters *storage.OperationFilters) ([]*types.OperationEvent, error)
	CountByAccount(ctx context.Context, account common.Address) (uint64, error)
}

// FeeAuditInterface defines the interface for the fee change audit trail
type FeeAuditInterface interface {
	Record(ctx context.Context, change *storage.FeeChange) error
	ListByAccount(ctx context.Context, account common.Address) ([]*storage.FeeChange, error)
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	vaultService   VaultServiceInterface
	factoryService FactoryServiceInterface
	history        OperationHistoryInterface
	feeAudit       FeeAuditInterface
	config         *ServerConfig
	logger         *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance. history and feeAudit may be
// nil when the backing stores are not configured; the corresponding endpoints
// then return 503.
func NewServer(
	config *ServerConfig,
	vaultService VaultServiceInterface,
	factoryService FactoryServiceInterface,
	history OperationHistoryInterface,
	feeAudit FeeAuditInterface,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		vaultService:   vaultService,
		factoryService: factoryService,
		history:        history,
		feeAudit:       feeAudit,
		config:         config,
		logger:         logging.GetGlobalLogger().WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Deposit and withdrawal endpoints
	api.HandleFunc("/accounts/{address}/deposits", s.handleInitialDeposit).Methods("POST")
	api.HandleFunc("/accounts/{address}/deposits/top-up", s.handleTopUpDeposit).Methods("POST")
	api.HandleFunc("/accounts/{address}/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/accounts/{address}/withdrawals/emergency", s.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/accounts/{address}/rebalances", s.handleRebalance).Methods("POST")
	api.HandleFunc("/accounts/{address}/claims", s.handleClaimRewards).Methods("POST")

	// Administrative endpoints
	api.HandleFunc("/accounts/{address}/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/accounts/{address}/unpause", s.handleUnpause).Methods("POST")
	api.HandleFunc("/accounts/{address}/fees", s.handleGetFees).Methods("GET")
	api.HandleFunc("/accounts/{address}/fees", s.handleSetFee).Methods("PUT")
	api.HandleFunc("/accounts/{address}/fees/history", s.handleGetFeeHistory).Methods("GET")
	api.HandleFunc("/accounts/{address}/roles/{role}/{action}", s.handleRoleTransfer).Methods("POST")
	api.HandleFunc("/accounts/{address}/sources", s.handleAddSource).Methods("POST")
	api.HandleFunc("/accounts/{address}/sources/{source}", s.handleRemoveSource).Methods("DELETE")
	api.HandleFunc("/accounts/{address}/assets", s.handleAddAsset).Methods("POST")
	api.HandleFunc("/accounts/{address}/assets/{asset}", s.handleRemoveAsset).Methods("DELETE")
	api.HandleFunc("/accounts/{address}/assets/{asset}/sources", s.handleAddSourceToAsset).Methods("POST")
	api.HandleFunc("/accounts/{address}/assets/{asset}/sources/{source}", s.handleRemoveSourceFromAsset).Methods("DELETE")

	// View endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/accounts/{address}/assets/{asset}/rebalance-info", s.handleGetRebalanceInfo).Methods("GET")
	api.HandleFunc("/accounts/{address}/assets/{asset}/profit", s.handleGetProfit).Methods("GET")
	api.HandleFunc("/accounts/{address}/history", s.handleGetHistory).Methods("GET")

	// Factory endpoints
	api.HandleFunc("/factory/predict", s.handlePredict).Methods("POST")
	api.HandleFunc("/factory/deploy", s.handleDeploy).Methods("POST")
	api.HandleFunc("/factory/instances/{owner}", s.handleListInstances).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vault-router",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
