package adapter

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	actingAccount = common.HexToAddress("0x00000000000000000000000000000000000000aC")
	testSource    = common.HexToAddress("0x0000000000000000000000000000000000000200")
	testToken     = common.HexToAddress("0x0000000000000000000000000000000000000100")
)

// fakeCaller returns canned data keyed by the call's 4-byte selector
type fakeCaller struct {
	responses map[string][]byte
	err       error
	calls     []ethereum.CallMsg
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) respond(sel []byte, data []byte) {
	f.responses[hex.EncodeToString(sel)] = data
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	if len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed calldata")
	}
	data, ok := f.responses[hex.EncodeToString(call.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("unexpected selector %x", call.Data[:4])
	}
	return data, nil
}

// fakeSender records outbound calls
type fakeSender struct {
	err   error
	calls []struct {
		from common.Address
		to   common.Address
		data []byte
	}
}

func (f *fakeSender) SendCall(ctx context.Context, from, to common.Address, data []byte) error {
	f.calls = append(f.calls, struct {
		from common.Address
		to   common.Address
		data []byte
	}{from, to, append([]byte{}, data...)})
	return f.err
}

func uintWord(v int64) []byte {
	return packUint(big.NewInt(v))
}

func TestSelectorValues(t *testing.T) {
	cases := []struct {
		sel  []byte
		want string
	}{
		{selBalanceOf, "70a08231"},
		{selAsset, "38d52e0f"},
		{selConvertToAssets, "07a2d13a"},
		{selPreviewRedeem, "4cdad506"},
		{selDeposit, "6e553f65"},
		{selRedeem, "ba087652"},
		{selTransfer, "a9059cbb"},
		{selTransferFrom, "23b872dd"},
		{selDecimals, "313ce567"},
	}
	for _, tc := range cases {
		if got := hex.EncodeToString(tc.sel); got != tc.want {
			t.Errorf("selector mismatch: got %s, want %s", got, tc.want)
		}
	}
}

func TestERC4626DepositCalldata(t *testing.T) {
	sender := &fakeSender{}
	a := NewERC4626Adapter(newFakeCaller(), sender)

	if err := a.Deposit(context.Background(), actingAccount, testSource, testToken, big.NewInt(1000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(sender.calls))
	}
	call := sender.calls[0]
	if call.to != testSource {
		t.Errorf("expected call to %s, got %s", testSource.Hex(), call.to.Hex())
	}
	if call.from != actingAccount {
		t.Errorf("expected call from %s, got %s", actingAccount.Hex(), call.from.Hex())
	}

	want := append(append([]byte{}, selDeposit...), uintWord(1000)...)
	want = append(want, packAddress(actingAccount)...)
	if !bytes.Equal(call.data, want) {
		t.Errorf("calldata mismatch:\n got %x\nwant %x", call.data, want)
	}
}

func TestERC4626DepositReceiverFollowsAccount(t *testing.T) {
	sender := &fakeSender{}
	a := NewERC4626Adapter(newFakeCaller(), sender)

	first := common.HexToAddress("0x0000000000000000000000000000000000000A01")
	second := common.HexToAddress("0x0000000000000000000000000000000000000A02")
	for _, account := range []common.Address{first, second} {
		if err := a.Deposit(context.Background(), account, testSource, testToken, big.NewInt(1)); err != nil {
			t.Fatalf("Deposit for %s: %v", account.Hex(), err)
		}
	}

	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(sender.calls))
	}
	for i, account := range []common.Address{first, second} {
		call := sender.calls[i]
		if call.from != account {
			t.Errorf("call %d: expected from %s, got %s", i, account.Hex(), call.from.Hex())
		}
		if !bytes.Equal(call.data[36:68], packAddress(account)) {
			t.Errorf("call %d: receiver word does not match the acting account", i)
		}
	}
}

func TestERC4626RedeemPreviewsProceeds(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(selPreviewRedeem, uintWord(1180))
	sender := &fakeSender{}
	a := NewERC4626Adapter(caller, sender)

	assets, err := a.Redeem(context.Background(), actingAccount, testSource, big.NewInt(1000))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if assets.Int64() != 1180 {
		t.Errorf("expected 1180 assets, got %s", assets)
	}
	if len(sender.calls) != 1 || !bytes.HasPrefix(sender.calls[0].data, selRedeem) {
		t.Error("expected one redeem send")
	}
	if sender.calls[0].from != actingAccount {
		t.Errorf("expected redeem from %s, got %s", actingAccount.Hex(), sender.calls[0].from.Hex())
	}
}

func TestERC4626RedeemFailsWithoutPartialFill(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(selPreviewRedeem, uintWord(1180))
	sender := &fakeSender{err: fmt.Errorf("execution reverted")}
	a := NewERC4626Adapter(caller, sender)

	if _, err := a.Redeem(context.Background(), actingAccount, testSource, big.NewInt(1000)); err == nil {
		t.Fatal("expected redeem error")
	}
}

func TestERC4626UnderlyingAssetOf(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(selAsset, packAddress(testToken))
	a := NewERC4626Adapter(caller, &fakeSender{})

	asset, err := a.UnderlyingAssetOf(context.Background(), testSource)
	if err != nil {
		t.Fatalf("UnderlyingAssetOf: %v", err)
	}
	if asset != testToken {
		t.Errorf("expected %s, got %s", testToken.Hex(), asset.Hex())
	}
}

func TestERC20TransferFromCalldata(t *testing.T) {
	sender := &fakeSender{}
	a, err := NewERC20Adapter(newFakeCaller(), sender)
	if err != nil {
		t.Fatalf("NewERC20Adapter: %v", err)
	}

	from := common.HexToAddress("0x000000000000000000000000000000000000000A")
	if err := a.TransferFrom(context.Background(), testToken, from, actingAccount, big.NewInt(500)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}

	// The recipient spends the allowance, so it signs the call
	if sender.calls[0].from != actingAccount {
		t.Errorf("expected transferFrom signed by %s, got %s", actingAccount.Hex(), sender.calls[0].from.Hex())
	}

	want := append(append([]byte{}, selTransferFrom...), packAddress(from)...)
	want = append(want, packAddress(actingAccount)...)
	want = append(want, uintWord(500)...)
	if !bytes.Equal(sender.calls[0].data, want) {
		t.Errorf("calldata mismatch:\n got %x\nwant %x", sender.calls[0].data, want)
	}
}

func TestERC20DecimalsFallsBackTo18(t *testing.T) {
	caller := newFakeCaller()
	caller.err = fmt.Errorf("execution reverted")
	a, err := NewERC20Adapter(caller, &fakeSender{})
	if err != nil {
		t.Fatalf("NewERC20Adapter: %v", err)
	}

	decimals, err := a.Decimals(context.Background(), testToken)
	if err != nil {
		t.Fatalf("Decimals: %v", err)
	}
	if decimals != 18 {
		t.Errorf("expected fallback 18, got %d", decimals)
	}
}

func TestERC20DecimalsReadsToken(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(selDecimals, uintWord(6))
	a, err := NewERC20Adapter(caller, &fakeSender{})
	if err != nil {
		t.Fatalf("NewERC20Adapter: %v", err)
	}

	decimals, err := a.Decimals(context.Background(), testToken)
	if err != nil {
		t.Fatalf("Decimals: %v", err)
	}
	if decimals != 6 {
		t.Errorf("expected 6, got %d", decimals)
	}
}

func TestPackClaimLayout(t *testing.T) {
	account := common.HexToAddress("0x000000000000000000000000000000000000000A")
	token := testToken
	amount := big.NewInt(1000)
	proof := []common.Hash{
		common.HexToHash("0x01"),
		common.HexToHash("0x02"),
	}

	data, err := packClaim(
		[]common.Address{account},
		[]common.Address{token},
		[]*big.Int{amount},
		[][]common.Hash{proof},
	)
	if err != nil {
		t.Fatalf("packClaim: %v", err)
	}

	if !bytes.HasPrefix(data, selClaim) {
		t.Fatal("missing claim selector")
	}
	body := data[4:]

	// Head: four offsets to the dynamic arguments
	wantOffsets := []int64{128, 192, 256, 320}
	for i, want := range wantOffsets {
		got := new(big.Int).SetBytes(body[i*32 : (i+1)*32]).Int64()
		if got != want {
			t.Errorf("offset %d: got %d, want %d", i, got, want)
		}
	}

	// accounts: length 1 then the padded address
	if got := new(big.Int).SetBytes(body[128:160]).Int64(); got != 1 {
		t.Errorf("accounts length: got %d", got)
	}
	if !bytes.Equal(body[160:192], packAddress(account)) {
		t.Error("accounts element mismatch")
	}

	// amounts payload
	if !bytes.Equal(body[288:320], uintWord(1000)) {
		t.Error("amounts element mismatch")
	}

	// proofs: outer length, one inner offset, inner length, two hashes
	if got := new(big.Int).SetBytes(body[320:352]).Int64(); got != 1 {
		t.Errorf("proofs outer length: got %d", got)
	}
	if got := new(big.Int).SetBytes(body[352:384]).Int64(); got != 32 {
		t.Errorf("proofs inner offset: got %d", got)
	}
	if got := new(big.Int).SetBytes(body[384:416]).Int64(); got != 2 {
		t.Errorf("proof length: got %d", got)
	}
	if !bytes.Equal(body[416:448], proof[0].Bytes()) || !bytes.Equal(body[448:480], proof[1].Bytes()) {
		t.Error("proof hashes mismatch")
	}
	if len(body) != 480 {
		t.Errorf("unexpected body length %d", len(body))
	}
}

func TestPackClaimRejectsMismatchedArrays(t *testing.T) {
	_, err := packClaim(
		[]common.Address{actingAccount},
		[]common.Address{testToken, testToken},
		[]*big.Int{big.NewInt(1)},
		[][]common.Hash{nil},
	)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}
