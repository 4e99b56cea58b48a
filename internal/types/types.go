// Package types provides common type definitions for the vault router system.
package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies the privilege level of a caller against an account.
type Role string

const (
	// RoleOwner represents the end user; may deposit, withdraw and claim
	RoleOwner Role = "owner"
	// RoleAdmin represents operations; may reconfigure, rebalance and pause
	RoleAdmin Role = "admin"
)

// ChainID represents supported deployment targets
type ChainID uint64

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainArbitrum represents the Arbitrum One network
	ChainArbitrum ChainID = 42161
	// ChainBase represents the Base network
	ChainBase ChainID = 8453
)

// OperationKind classifies a value-moving operation for the history store
type OperationKind string

const (
	// OpInitialDeposit is the first deposit for an asset on an account
	OpInitialDeposit OperationKind = "initial_deposit"
	// OpTopUpDeposit is a follow-up deposit into an already initialized asset
	OpTopUpDeposit OperationKind = "top_up_deposit"
	// OpWithdraw is a full or partial withdrawal
	OpWithdraw OperationKind = "withdraw"
	// OpEmergencyWithdraw is the paused-only full exit
	OpEmergencyWithdraw OperationKind = "emergency_withdraw"
	// OpRebalance is an admin-driven migration between yield sources
	OpRebalance OperationKind = "rebalance"
	// OpClaim is a reward claim pass-through
	OpClaim OperationKind = "claim"
)

// BpsDenominator is the basis point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

// ThresholdDecimals is the implied decimal precision of the USD-denominated
// minimum profit threshold.
const ThresholdDecimals = 6

// Clock abstracts time for cooldown comparisons so tests can advance it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock used in production wiring.
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// AssetPosition is one row of a portfolio summary: the parallel-array view
// over every asset that has an initial deposit.
type AssetPosition struct {
	Asset        common.Address `json:"asset"`
	ActiveSource common.Address `json:"activeSource"`
	Principal    *big.Int       `json:"principal"`
	CurrentValue *big.Int       `json:"currentValue"`
	Profit       *big.Int       `json:"profit"` // signed; negative on loss
}

// RebalanceInfo reports the rebalance-specific ledger for one asset.
type RebalanceInfo struct {
	Asset              common.Address `json:"asset"`
	ActiveSource       common.Address `json:"activeSource"`
	BaseAmount         *big.Int       `json:"baseAmount"`
	CurrentValue       *big.Int       `json:"currentValue"`
	UnrealizedProfit   *big.Int       `json:"unrealizedProfit"` // signed
	TotalRebalanceFees *big.Int       `json:"totalRebalanceFees"`
	LastRebalanceTime  time.Time      `json:"lastRebalanceTime"`
}

// OperationEvent is the append-only history record written after every
// successful value-moving operation.
type OperationEvent struct {
	ID        string         `json:"id"`
	Account   common.Address `json:"account"`
	Kind      OperationKind  `json:"kind"`
	Asset     common.Address `json:"asset"`
	Source    common.Address `json:"source"`
	Amount    *big.Int       `json:"amount"`
	Fee       *big.Int       `json:"fee"`
	Caller    common.Address `json:"caller"`
	Timestamp time.Time      `json:"timestamp"`
}

// DeploymentEvent is emitted by the factory when a vault instance is created.
type DeploymentEvent struct {
	Instance common.Address `json:"instance"`
	Owner    common.Address `json:"owner"`
	Salt     common.Hash    `json:"salt"`
	ChainID  ChainID        `json:"chainId"`
}
