// Package adapter defines the capability interfaces the vault core depends
// on: yield source access, fungible token transfers, reward claiming and the
// clock. Implementations against live chain RPC live alongside; tests use
// hand-rolled fakes in the consuming packages.
package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// YieldSourceAdapter moves funds into and out of pluggable yield sources.
// How many sub-calls an implementation batches per logical operation is its
// own business; the core sees one synchronous call that either completes or
// fails loudly with no partial fill.
type YieldSourceAdapter interface {
	// Deposit moves amount of asset from the account into the yield source.
	// The account is both the on-chain sender and the share receiver, so
	// one adapter serves every vault instance.
	Deposit(ctx context.Context, account, source, asset common.Address, amount *big.Int) error

	// Redeem converts the account's shares back into assets and returns
	// the assets received
	Redeem(ctx context.Context, account, source common.Address, shares *big.Int) (*big.Int, error)

	// BalanceOf returns the account's share balance in the yield source
	BalanceOf(ctx context.Context, source, account common.Address) (*big.Int, error)

	// UnderlyingAssetOf returns the asset the yield source is denominated in
	UnderlyingAssetOf(ctx context.Context, source common.Address) (common.Address, error)

	// ConvertToAssets values a share balance in underlying asset units
	ConvertToAssets(ctx context.Context, source common.Address, shares *big.Int) (*big.Int, error)
}

// TokenTransfer moves fungible tokens between parties
type TokenTransfer interface {
	// TransferFrom pulls amount of token from the from address into to.
	// The destination account acts as the spender of the allowance.
	TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error

	// Transfer pushes amount of the from account's tokens to the recipient
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error

	// BalanceOf returns the account's token balance
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)

	// Decimals returns the token's decimal precision, falling back to 18
	// when the token does not expose it
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// RewardClaimer performs a batched claim against external proofs. The core
// never inspects the proofs; it only post-processes the resulting balance
// deltas.
type RewardClaimer interface {
	// Claim submits one batched claim with the caller as the on-chain sender
	Claim(ctx context.Context, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) error
}

// CallSender submits a state-changing contract call as the from account. It
// abstracts the signing and multi-call batching machinery away from the
// adapters.
type CallSender interface {
	SendCall(ctx context.Context, from, to common.Address, data []byte) error
}

// Common sentinel errors for adapters

var (
	// ErrSourceUnavailable indicates the yield source cannot be reached
	ErrSourceUnavailable = fmt.Errorf("yield source unavailable")

	// ErrTransferFailed indicates a token transfer reverted
	ErrTransferFailed = fmt.Errorf("token transfer failed")

	// ErrRedeemFailed indicates a redemption reverted or partially filled
	ErrRedeemFailed = fmt.Errorf("redeem failed")

	// ErrDecimalsUnsupported indicates the token does not expose decimals
	ErrDecimalsUnsupported = fmt.Errorf("decimals query unsupported")

	// ErrClaimFailed indicates the reward distributor rejected the batch
	ErrClaimFailed = fmt.Errorf("reward claim failed")
)

// AdapterError wraps collaborator failures with call context
type AdapterError struct {
	Op      string // operation that failed (e.g. "Deposit", "Redeem")
	Target  common.Address
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("adapter error [%s:%s]: %v (details: %+v)", e.Op, e.Target.Hex(), e.Err, e.Details)
	}
	return fmt.Sprintf("adapter error [%s:%s]: %v", e.Op, e.Target.Hex(), e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(op string, target common.Address, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Op:      op,
		Target:  target,
		Err:     err,
		Details: details,
	}
}
