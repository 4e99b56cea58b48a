// Package ledger holds the pure per-account bookkeeping state: one AssetState
// per deposited asset, the fee configuration with its per-field cooldowns,
// and the two-step role transfer slots. Mutators preserve invariants but do
// no orchestration; that belongs to the vault package.
package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetState is the per-asset account ledger. It is created on the first
// deposit for an asset and lives for as long as principal remains.
//
// TotalPrincipal and RebalanceBase are deliberately independent baselines:
// withdrawal fees are computed against principal, rebalance fees against the
// base, and neither operation may touch the other's ledger.
type AssetState struct {
	ActiveSource       common.Address
	TotalPrincipal     *big.Int
	HasInitialDeposit  bool
	LastDepositTime    time.Time
	TotalFeesCollected *big.Int
	RebalanceBase      *big.Int
	TotalRebalanceFees *big.Int
	LastRebalanceTime  time.Time
}

// NewAssetState initializes the ledger for an asset's first deposit. The
// rebalance base starts at the deposited amount.
func NewAssetState(source common.Address, amount *big.Int, now time.Time) *AssetState {
	return &AssetState{
		ActiveSource:       source,
		TotalPrincipal:     new(big.Int).Set(amount),
		HasInitialDeposit:  true,
		LastDepositTime:    now,
		TotalFeesCollected: new(big.Int),
		RebalanceBase:      new(big.Int).Set(amount),
		TotalRebalanceFees: new(big.Int),
	}
}

// Clone returns a deep copy, used to restore state when an external
// collaborator fails mid-operation.
func (s *AssetState) Clone() *AssetState {
	if s == nil {
		return nil
	}
	return &AssetState{
		ActiveSource:       s.ActiveSource,
		TotalPrincipal:     new(big.Int).Set(s.TotalPrincipal),
		HasInitialDeposit:  s.HasInitialDeposit,
		LastDepositTime:    s.LastDepositTime,
		TotalFeesCollected: new(big.Int).Set(s.TotalFeesCollected),
		RebalanceBase:      new(big.Int).Set(s.RebalanceBase),
		TotalRebalanceFees: new(big.Int).Set(s.TotalRebalanceFees),
	}
}

// RecordDeposit adds a top-up to both the principal and the rebalance base
func (s *AssetState) RecordDeposit(amount *big.Int, now time.Time) {
	s.TotalPrincipal.Add(s.TotalPrincipal, amount)
	s.RebalanceBase.Add(s.RebalanceBase, amount)
	s.LastDepositTime = now
}

// ReducePrincipal subtracts a released principal portion, clamped at zero
func (s *AssetState) ReducePrincipal(portion *big.Int) {
	s.TotalPrincipal.Sub(s.TotalPrincipal, portion)
	if s.TotalPrincipal.Sign() < 0 {
		s.TotalPrincipal.SetInt64(0)
	}
}

// ClosePrincipal zeroes the principal on a full exit
func (s *AssetState) ClosePrincipal() {
	s.TotalPrincipal.SetInt64(0)
}

// RecordWithdrawalFee accumulates a charged withdrawal fee
func (s *AssetState) RecordWithdrawalFee(fee *big.Int) {
	s.TotalFeesCollected.Add(s.TotalFeesCollected, fee)
}

// RecordRebalance applies the outcome of a completed rebalance: new baseline,
// new active source, accumulated fee and timestamp. Principal is untouched.
func (s *AssetState) RecordRebalance(newBase *big.Int, fee *big.Int, toSource common.Address, now time.Time) {
	s.RebalanceBase.Set(newBase)
	if fee.Sign() > 0 {
		s.TotalRebalanceFees.Add(s.TotalRebalanceFees, fee)
	}
	s.ActiveSource = toSource
	s.LastRebalanceTime = now
}
