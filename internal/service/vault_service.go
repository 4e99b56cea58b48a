// Package service orchestrates the vault core against the persistence and
// cache backends: it owns the live account set, records every completed
// operation into the history store and keeps the portfolio summary cache
// coherent.
package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/types"
	"github.com/vault-router/internal/vault"
)

// Repository interfaces for dependency injection

// OperationRecorder appends operation events to the history store
type OperationRecorder interface {
	Insert(ctx context.Context, event *types.OperationEvent) error
}

// SummaryCache caches portfolio summaries per account
type SummaryCache interface {
	Get(ctx context.Context, account common.Address) ([]types.AssetPosition, bool, error)
	Set(ctx context.Context, account common.Address, positions []types.AssetPosition) error
	Invalidate(ctx context.Context, account common.Address) error
}

// VaultService manages the live account set and orchestrates operations
type VaultService struct {
	mu       sync.RWMutex
	accounts map[common.Address]*vault.Account

	cfg      *config.VaultConfig
	deps     vault.Deps
	recorder OperationRecorder
	cache    SummaryCache
	logger   *logging.Logger
}

// NewVaultService creates a new vault service. recorder and cache may be nil
// in test wiring; recording then degrades to log-only.
func NewVaultService(cfg *config.VaultConfig, deps vault.Deps, recorder OperationRecorder, cache SummaryCache) *VaultService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &VaultService{
		accounts: make(map[common.Address]*vault.Account),
		cfg:      cfg,
		deps:     deps,
		recorder: recorder,
		cache:    cache,
		logger:   logger.WithField("component", "vault_service"),
	}
}

// CreateAccount instantiates and registers a live account
func (s *VaultService) CreateAccount(address, owner, admin common.Address) (*vault.Account, error) {
	acct, err := vault.NewAccount(address, owner, admin, s.cfg, s.deps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[address]; exists {
		return nil, errors.NewAlreadyInitializedError(address)
	}
	s.accounts[address] = acct
	return acct, nil
}

// Account looks up a live account by address
func (s *VaultService) Account(address common.Address) (*vault.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[address]
	if !ok {
		return nil, errors.NewNotFoundError("account", address.Hex())
	}
	return acct, nil
}

// record persists an operation event; recording failures are logged, never
// surfaced, since the operation itself already completed.
func (s *VaultService) record(ctx context.Context, event *types.OperationEvent) {
	if s.recorder != nil {
		if err := s.recorder.Insert(ctx, event); err != nil {
			s.logger.WithError(err).WithField("kind", string(event.Kind)).Error("Failed to record operation event")
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, event.Account); err != nil {
			s.logger.WithError(err).Error("Failed to invalidate summary cache")
		}
	}
}

func (s *VaultService) now() types.Clock {
	if s.deps.Clock != nil {
		return s.deps.Clock
	}
	return types.SystemClock{}
}

// InitialDeposit opens an asset position on an account
func (s *VaultService) InitialDeposit(ctx context.Context, account, caller, asset, source common.Address, amount *big.Int) (*vault.DepositResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.InitialDeposit(ctx, caller, asset, source, amount)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpInitialDeposit,
		Asset:     res.Asset,
		Source:    res.Source,
		Amount:    res.Amount,
		Fee:       new(big.Int),
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// TopUpDeposit adds owner funds to an initialized position
func (s *VaultService) TopUpDeposit(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.DepositResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.TopUpDeposit(ctx, caller, asset, amount)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpTopUpDeposit,
		Asset:     res.Asset,
		Source:    res.Source,
		Amount:    res.Amount,
		Fee:       new(big.Int),
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// AdminTopUpDeposit adds admin funds to an initialized position
func (s *VaultService) AdminTopUpDeposit(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.DepositResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.AdminTopUpDeposit(ctx, caller, asset, amount)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpTopUpDeposit,
		Asset:     res.Asset,
		Source:    res.Source,
		Amount:    res.Amount,
		Fee:       new(big.Int),
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// Withdraw redeems from a position and pays the owner
func (s *VaultService) Withdraw(ctx context.Context, account, caller, asset common.Address, amount *big.Int) (*vault.WithdrawResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.Withdraw(ctx, caller, asset, amount)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpWithdraw,
		Asset:     res.Asset,
		Source:    res.Source,
		Amount:    res.NetAmount,
		Fee:       res.Fee,
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// EmergencyWithdraw performs the paused-only full exit
func (s *VaultService) EmergencyWithdraw(ctx context.Context, account, caller, asset common.Address) (*vault.WithdrawResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.EmergencyWithdraw(ctx, caller, asset)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpEmergencyWithdraw,
		Asset:     res.Asset,
		Source:    res.Source,
		Amount:    res.NetAmount,
		Fee:       res.Fee,
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// Rebalance migrates a position between yield sources
func (s *VaultService) Rebalance(ctx context.Context, account, caller, asset, toSource common.Address) (*vault.RebalanceResult, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	res, err := acct.Rebalance(ctx, caller, asset, toSource)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &types.OperationEvent{
		Account:   account,
		Kind:      types.OpRebalance,
		Asset:     res.Asset,
		Source:    res.ToSource,
		Amount:    res.Redeployed,
		Fee:       res.Fee,
		Caller:    caller,
		Timestamp: s.now().Now(),
	})
	return res, nil
}

// ClaimRewards passes a reward claim batch through an account. One event is
// recorded per claimed token.
func (s *VaultService) ClaimRewards(ctx context.Context, account, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) ([]vault.ClaimedReward, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	results, err := acct.ClaimRewards(ctx, caller, accounts, tokens, amounts, proofs)
	if err != nil {
		return nil, err
	}

	for _, claimed := range results {
		s.record(ctx, &types.OperationEvent{
			Account:   account,
			Kind:      types.OpClaim,
			Asset:     claimed.Token,
			Amount:    claimed.Net,
			Fee:       claimed.Fee,
			Caller:    caller,
			Timestamp: s.now().Now(),
		})
	}
	return results, nil
}

// Portfolio returns the account's portfolio summary, served from the cache
// when fresh
func (s *VaultService) Portfolio(ctx context.Context, account common.Address) ([]types.AssetPosition, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if positions, hit, err := s.cache.Get(ctx, account); err == nil && hit {
			return positions, nil
		}
	}

	positions, err := acct.PortfolioSummary(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, account, positions); err != nil {
			s.logger.WithError(err).Warn("Failed to cache portfolio summary")
		}
	}
	return positions, nil
}

// RebalanceInfo returns the rebalance ledger view for one asset
func (s *VaultService) RebalanceInfo(ctx context.Context, account, asset common.Address) (*types.RebalanceInfo, error) {
	acct, err := s.Account(account)
	if err != nil {
		return nil, err
	}
	return acct.RebalanceInfoFor(ctx, asset)
}
