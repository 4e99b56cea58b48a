package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/fees"
)

// ClaimedReward reports the outcome for one token of a claim batch
type ClaimedReward struct {
	Token common.Address
	Delta *big.Int // balance increase observed after the claim
	Fee   *big.Int
	Net   *big.Int
}

// ClaimRewards passes a batched reward claim through to the external
// distributor and post-processes the per-token balance deltas: the claim fee
// share goes to the revenue address, the remainder to the owner. The proofs
// are opaque to the account. Batch size is capped and duplicate token
// entries are rejected, since the delta bookkeeping is per token.
func (a *Account) ClaimRewards(ctx context.Context, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) ([]ClaimedReward, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	if err := a.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := a.requireNotPaused(); err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, errors.NewArrayMismatchError("empty claim batch")
	}
	if len(accounts) != len(tokens) || len(amounts) != len(tokens) || len(proofs) != len(tokens) {
		return nil, errors.NewArrayMismatchError("accounts, tokens, amounts and proofs must have equal length")
	}
	if len(tokens) > a.maxClaimBatch {
		return nil, errors.NewBatchTooLargeError(len(tokens), a.maxClaimBatch)
	}

	seen := make(map[common.Address]struct{}, len(tokens))
	for i, token := range tokens {
		if token == (common.Address{}) {
			return nil, errors.NewZeroAddressError("token")
		}
		if accounts[i] == (common.Address{}) {
			return nil, errors.NewZeroAddressError("account")
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return nil, errors.NewZeroAmountError()
		}
		if _, dup := seen[token]; dup {
			return nil, errors.NewDuplicateTokenError(token)
		}
		seen[token] = struct{}{}
	}

	before := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		balance, err := a.tokens.BalanceOf(ctx, token, a.address)
		if err != nil {
			return nil, errors.NewAdapterError("BalanceOf", err)
		}
		before[i] = balance
	}

	if err := a.claimer.Claim(ctx, a.address, accounts, tokens, amounts, proofs); err != nil {
		return nil, errors.NewAdapterError("Claim", err)
	}

	results := make([]ClaimedReward, 0, len(tokens))
	for i, token := range tokens {
		after, err := a.tokens.BalanceOf(ctx, token, a.address)
		if err != nil {
			return nil, errors.NewAdapterError("BalanceOf", err)
		}

		delta := new(big.Int).Sub(after, before[i])
		fee, net := fees.FromDelta(delta, a.feeCfg.ClaimFeeBps)

		if fee.Sign() > 0 {
			if err := a.tokens.Transfer(ctx, token, a.address, a.revenue, fee); err != nil {
				return nil, errors.NewAdapterError("Transfer", err)
			}
		}
		if net.Sign() > 0 {
			if err := a.tokens.Transfer(ctx, token, a.address, a.roles.Owner, net); err != nil {
				return nil, errors.NewAdapterError("Transfer", err)
			}
		}

		results = append(results, ClaimedReward{Token: token, Delta: delta, Fee: fee, Net: net})
	}

	a.logger.WithFields(map[string]interface{}{
		"tokens": len(tokens),
	}).Info("Reward claim completed")

	return results, nil
}
