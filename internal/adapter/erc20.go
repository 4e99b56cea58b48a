package adapter

import (
	"context"
	"math/big"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 selectors
var (
	selTransfer     = selector("transfer(address,uint256)")
	selTransferFrom = selector("transferFrom(address,address,uint256)")
	selDecimals     = selector("decimals()")
)

// ERC20Adapter implements TokenTransfer against live tokens. Decimals are
// immutable per token, so lookups are cached in-process. The acting account
// arrives per call; one adapter serves every vault instance.
type ERC20Adapter struct {
	caller        ContractCaller
	sender        CallSender
	decimalsCache *ristretto.Cache
}

// NewERC20Adapter creates a token adapter over the given caller and sender
func NewERC20Adapter(caller ContractCaller, sender CallSender) (*ERC20Adapter, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &ERC20Adapter{
		caller:        caller,
		sender:        sender,
		decimalsCache: cache,
	}, nil
}

// TransferFrom pulls amount of token from the from address into to. The
// destination account signs the call, spending the allowance granted to it.
func (a *ERC20Adapter) TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	data := append(append([]byte{}, selTransferFrom...), packAddress(from)...)
	data = append(data, packAddress(to)...)
	data = append(data, packUint(amount)...)

	if err := a.sender.SendCall(ctx, to, token, data); err != nil {
		return NewAdapterError("TransferFrom", token, ErrTransferFailed, map[string]interface{}{
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
			"cause":  err.Error(),
		})
	}
	return nil
}

// Transfer pushes amount of the from account's tokens to the recipient
func (a *ERC20Adapter) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	data := append(append([]byte{}, selTransfer...), packAddress(to)...)
	data = append(data, packUint(amount)...)

	if err := a.sender.SendCall(ctx, from, token, data); err != nil {
		return NewAdapterError("Transfer", token, ErrTransferFailed, map[string]interface{}{
			"to":     to.Hex(),
			"amount": amount.String(),
			"cause":  err.Error(),
		})
	}
	return nil
}

// BalanceOf returns the account's token balance
func (a *ERC20Adapter) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data := append(append([]byte{}, selBalanceOf...), packAddress(account)...)
	result, err := a.caller.CallContract(ctx, callMsg(common.Address{}, token, data), nil)
	if err != nil {
		return nil, NewAdapterError("BalanceOf", token, err, nil)
	}
	if len(result) < 32 {
		return nil, NewAdapterError("BalanceOf", token, ErrTransferFailed, nil)
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// Decimals returns the token's decimal precision, falling back to 18 when
// the token does not expose the query.
func (a *ERC20Adapter) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if cached, ok := a.decimalsCache.Get(token.Hex()); ok {
		return cached.(uint8), nil
	}

	result, err := a.caller.CallContract(ctx, callMsg(common.Address{}, token, append([]byte{}, selDecimals...)), nil)
	if err != nil || len(result) < 32 {
		// Non-standard token; assume the ERC-20 default
		return 18, nil
	}

	decimals := uint8(new(big.Int).SetBytes(result[:32]).Uint64())
	a.decimalsCache.Set(token.Hex(), decimals, 1)
	return decimals, nil
}
