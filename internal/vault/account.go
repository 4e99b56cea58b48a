// Package vault implements the per-owner account aggregate: the deposit,
// withdrawal, rebalance and reward-claim state machines over the registry,
// the per-asset ledger and the fee configuration.
//
// Every state-mutating entry point runs under a busy-flag guard: a nested or
// concurrent call against the same account is rejected outright rather than
// queued. External collaborator calls never observe half-applied state; when
// a collaborator fails mid-operation the pre-call ledger snapshot is
// restored, so each operation either fully applies or applies nothing.
package vault

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/adapter"
	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/ledger"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/registry"
	"github.com/vault-router/internal/types"
)

// Account is one owner's vault instance. All public methods are safe for
// concurrent use; overlapping state-mutating calls fail with a reentrancy
// error instead of blocking.
type Account struct {
	address common.Address
	revenue common.Address

	mu     sync.Mutex
	busy   bool
	paused bool

	roles    *ledger.Roles
	registry *registry.AssetRegistry
	assets   map[common.Address]*ledger.AssetState
	feeCfg   *ledger.FeeConfig

	yield   adapter.YieldSourceAdapter
	tokens  adapter.TokenTransfer
	claimer adapter.RewardClaimer
	clock   types.Clock

	rebalanceCooldown time.Duration
	maxClaimBatch     int

	logger *logging.Logger
}

// Deps bundles the external collaborators an account operates against
type Deps struct {
	Yield   adapter.YieldSourceAdapter
	Tokens  adapter.TokenTransfer
	Claimer adapter.RewardClaimer
	Clock   types.Clock
	Logger  *logging.Logger
}

// NewAccount creates a vault account for the given owner and admin.
// The fee configuration starts from the configured defaults; initial values
// are not subject to the change cooldown.
func NewAccount(address, owner, admin common.Address, cfg *config.VaultConfig, deps Deps) (*Account, error) {
	if address == (common.Address{}) {
		return nil, errors.NewZeroAddressError("account")
	}
	if owner == (common.Address{}) {
		return nil, errors.NewZeroAddressError("owner")
	}
	if admin == (common.Address{}) {
		return nil, errors.NewZeroAddressError("admin")
	}
	if cfg.RevenueAddress == (common.Address{}) {
		return nil, errors.NewZeroAddressError("revenue")
	}

	clock := deps.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Account{
		address:  address,
		revenue:  cfg.RevenueAddress,
		roles:    ledger.NewRoles(owner, admin),
		registry: registry.NewAssetRegistry(),
		assets:   make(map[common.Address]*ledger.AssetState),
		feeCfg: ledger.NewFeeConfig(
			cfg.DefaultWithdrawalBps,
			cfg.DefaultRebalanceBps,
			cfg.DefaultClaimBps,
			cfg.MaxFeeBps,
			cfg.MinProfitThreshold,
			cfg.FeeChangeCooldown,
		),
		yield:             deps.Yield,
		tokens:            deps.Tokens,
		claimer:           deps.Claimer,
		clock:             clock,
		rebalanceCooldown: cfg.RebalanceCooldown,
		maxClaimBatch:     cfg.MaxClaimBatch,
		logger:            logger.WithField("account", address.Hex()),
	}, nil
}

// Address returns the account's own address
func (a *Account) Address() common.Address { return a.address }

// Owner returns the current owner
func (a *Account) Owner() common.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.Owner
}

// Admin returns the current admin
func (a *Account) Admin() common.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.Admin
}

// Paused reports whether value-moving operations are halted
func (a *Account) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// enter acquires the reentrancy guard. Every mutating entry point must pair
// it with a deferred exit on all paths.
func (a *Account) enter() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy {
		return errors.NewReentrancyError()
	}
	a.busy = true
	return nil
}

func (a *Account) exit() {
	a.mu.Lock()
	a.busy = false
	a.mu.Unlock()
}

func (a *Account) requireOwner(caller common.Address) error {
	if !a.roles.IsOwner(caller) {
		return errors.NewNotOwnerError(caller)
	}
	return nil
}

func (a *Account) requireAdmin(caller common.Address) error {
	if !a.roles.IsAdmin(caller) {
		return errors.NewNotAdminError(caller)
	}
	return nil
}

func (a *Account) requireNotPaused() error {
	if a.paused {
		return errors.NewPausedError()
	}
	return nil
}

// assetState returns the ledger entry for an initialized asset
func (a *Account) assetState(asset common.Address) (*ledger.AssetState, error) {
	st, ok := a.assets[asset]
	if !ok || !st.HasInitialDeposit {
		return nil, errors.NewNoDepositsError(asset)
	}
	return st, nil
}

// Pause halts all value-moving operations except EmergencyWithdraw
func (a *Account) Pause(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	if a.paused {
		return errors.NewSameValueError("pause state")
	}

	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
	a.logger.WithField("caller", caller.Hex()).Warn("Account paused")
	return nil
}

// Unpause resumes normal operation
func (a *Account) Unpause(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	if !a.paused {
		return errors.NewSameValueError("pause state")
	}

	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
	a.logger.WithField("caller", caller.Hex()).Info("Account unpaused")
	return nil
}

// ProposeOwnerTransfer opens a two-step owner handover
func (a *Account) ProposeOwnerTransfer(caller, to common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.ProposeTransfer(types.RoleOwner, caller, to, a.clock.Now())
}

// AcceptOwnerTransfer completes a pending owner handover
func (a *Account) AcceptOwnerTransfer(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	err := a.roles.AcceptTransfer(types.RoleOwner, caller)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.logger.WithField("owner", caller.Hex()).Info("Owner transfer completed")
	return nil
}

// CancelOwnerTransfer clears a pending owner handover
func (a *Account) CancelOwnerTransfer(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.CancelTransfer(types.RoleOwner, caller)
}

// ProposeAdminTransfer opens a two-step admin handover
func (a *Account) ProposeAdminTransfer(caller, to common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.ProposeTransfer(types.RoleAdmin, caller, to, a.clock.Now())
}

// AcceptAdminTransfer completes a pending admin handover
func (a *Account) AcceptAdminTransfer(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	err := a.roles.AcceptTransfer(types.RoleAdmin, caller)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.logger.WithField("admin", caller.Hex()).Info("Admin transfer completed")
	return nil
}

// CancelAdminTransfer clears a pending admin handover
func (a *Account) CancelAdminTransfer(caller common.Address) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.CancelTransfer(types.RoleAdmin, caller)
}

// SetWithdrawalFeeBps updates the withdrawal fee rate
func (a *Account) SetWithdrawalFeeBps(caller common.Address, bps uint32) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.feeCfg.SetWithdrawalFeeBps(bps, a.clock.Now())
}

// SetRebalanceFeeBps updates the rebalance fee rate
func (a *Account) SetRebalanceFeeBps(caller common.Address, bps uint32) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.feeCfg.SetRebalanceFeeBps(bps, a.clock.Now())
}

// SetClaimFeeBps updates the reward claim fee rate
func (a *Account) SetClaimFeeBps(caller common.Address, bps uint32) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.feeCfg.SetClaimFeeBps(bps, a.clock.Now())
}

// SetMinProfitThreshold updates the profit threshold below which no
// withdrawal fee is taken, in 6-decimal USD-like units
func (a *Account) SetMinProfitThreshold(caller common.Address, threshold *big.Int) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	return a.feeCfg.SetMinProfitThreshold(threshold, a.clock.Now())
}
