package adapter

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractCaller performs read-only contract calls. Satisfied by
// *ethclient.Client and by test fakes.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC-4626 / ERC-20 selectors, first four bytes of keccak256(signature)
var (
	selBalanceOf       = selector("balanceOf(address)")
	selAsset           = selector("asset()")
	selConvertToAssets = selector("convertToAssets(uint256)")
	selPreviewRedeem   = selector("previewRedeem(uint256)")
	selDeposit         = selector("deposit(uint256,address)")
	selRedeem          = selector("redeem(uint256,address,address)")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func packAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func packUint(value *big.Int) []byte {
	return common.LeftPadBytes(value.Bytes(), 32)
}

func callMsg(from, to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: &to, Data: data}
}

// ERC4626Adapter talks to ERC-4626 tokenized vaults over chain RPC. View
// calls go straight to the node; state-changing calls are packed here and
// routed through the injected CallSender, which owns signing and batching.
// The acting account arrives per call, so one adapter serves every vault
// instance the factory deploys.
type ERC4626Adapter struct {
	caller ContractCaller
	sender CallSender
}

// NewERC4626Adapter creates an adapter over the given caller and sender
func NewERC4626Adapter(caller ContractCaller, sender CallSender) *ERC4626Adapter {
	return &ERC4626Adapter{
		caller: caller,
		sender: sender,
	}
}

func (a *ERC4626Adapter) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	result, err := a.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("short return data: %d bytes", len(result))
	}
	return result, nil
}

// Deposit moves amount of asset from the account into the yield source.
// The account is packed as the share receiver and signs the call.
func (a *ERC4626Adapter) Deposit(ctx context.Context, account, source, asset common.Address, amount *big.Int) error {
	data := append(append([]byte{}, selDeposit...), packUint(amount)...)
	data = append(data, packAddress(account)...)

	if err := a.sender.SendCall(ctx, account, source, data); err != nil {
		return NewAdapterError("Deposit", source, err, map[string]interface{}{
			"asset":  asset.Hex(),
			"amount": amount.String(),
		})
	}
	return nil
}

// Redeem converts the account's shares back into assets. The redemption
// proceeds are previewed first so the caller learns the assets received; a
// reverting send surfaces as an error with no partial fill.
func (a *ERC4626Adapter) Redeem(ctx context.Context, account, source common.Address, shares *big.Int) (*big.Int, error) {
	previewData := append(append([]byte{}, selPreviewRedeem...), packUint(shares)...)
	result, err := a.call(ctx, source, previewData)
	if err != nil {
		return nil, NewAdapterError("Redeem", source, fmt.Errorf("%w: %v", ErrRedeemFailed, err), nil)
	}
	assets := new(big.Int).SetBytes(result[:32])

	data := append(append([]byte{}, selRedeem...), packUint(shares)...)
	data = append(data, packAddress(account)...)
	data = append(data, packAddress(account)...)

	if err := a.sender.SendCall(ctx, account, source, data); err != nil {
		return nil, NewAdapterError("Redeem", source, fmt.Errorf("%w: %v", ErrRedeemFailed, err), map[string]interface{}{
			"shares": shares.String(),
		})
	}
	return assets, nil
}

// BalanceOf returns the account's share balance in the yield source
func (a *ERC4626Adapter) BalanceOf(ctx context.Context, source, account common.Address) (*big.Int, error) {
	data := append(append([]byte{}, selBalanceOf...), packAddress(account)...)
	result, err := a.call(ctx, source, data)
	if err != nil {
		return nil, NewAdapterError("BalanceOf", source, err, nil)
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// UnderlyingAssetOf returns the vault's declared underlying asset
func (a *ERC4626Adapter) UnderlyingAssetOf(ctx context.Context, source common.Address) (common.Address, error) {
	result, err := a.call(ctx, source, append([]byte{}, selAsset...))
	if err != nil {
		return common.Address{}, NewAdapterError("UnderlyingAssetOf", source, err, nil)
	}
	return common.BytesToAddress(result[12:32]), nil
}

// ConvertToAssets values a share balance in underlying asset units
func (a *ERC4626Adapter) ConvertToAssets(ctx context.Context, source common.Address, shares *big.Int) (*big.Int, error) {
	data := append(append([]byte{}, selConvertToAssets...), packUint(shares)...)
	result, err := a.call(ctx, source, data)
	if err != nil {
		return nil, NewAdapterError("ConvertToAssets", source, err, nil)
	}
	return new(big.Int).SetBytes(result[:32]), nil
}
