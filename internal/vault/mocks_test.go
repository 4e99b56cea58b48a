package vault

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/errors"
)

func addr(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

func code(t *testing.T, err error) string {
	t.Helper()
	var catErr *errors.CategorizedError
	if !stderrors.As(err, &catErr) {
		t.Fatalf("expected CategorizedError, got %v", err)
	}
	return catErr.Code
}

func big0(n int64) *big.Int { return big.NewInt(n) }

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// mockYield is an in-memory yield source collaborator. Shares are held per
// (account, source) exactly as an on-chain vault tracks them, and convert to
// assets one to one unless a per-source redeem override is installed.
type mockYield struct {
	underlying map[common.Address]common.Address
	balances   map[common.Address]map[common.Address]*big.Int // account -> source -> shares
	redeemOut  map[common.Address]*big.Int

	failDeposit error
	failRedeem  error
	onDeposit   func(ctx context.Context) error

	depositCalls int
	redeemCalls  int
}

func newMockYield() *mockYield {
	return &mockYield{
		underlying: make(map[common.Address]common.Address),
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		redeemOut:  make(map[common.Address]*big.Int),
	}
}

func (m *mockYield) balanceFor(account, source common.Address) *big.Int {
	sources, ok := m.balances[account]
	if !ok {
		sources = make(map[common.Address]*big.Int)
		m.balances[account] = sources
	}
	b, ok := sources[source]
	if !ok {
		b = new(big.Int)
		sources[source] = b
	}
	return b
}

// balance reads the fixture account's shares in a source
func (m *mockYield) balance(source common.Address) *big.Int {
	return m.balanceFor(accountAddr, source)
}

func (m *mockYield) Deposit(ctx context.Context, account, source, asset common.Address, amount *big.Int) error {
	m.depositCalls++
	if m.onDeposit != nil {
		if err := m.onDeposit(ctx); err != nil {
			return err
		}
	}
	if m.failDeposit != nil {
		return m.failDeposit
	}
	bal := m.balanceFor(account, source)
	bal.Add(bal, amount)
	return nil
}

func (m *mockYield) Redeem(ctx context.Context, account, source common.Address, shares *big.Int) (*big.Int, error) {
	m.redeemCalls++
	if m.failRedeem != nil {
		return nil, m.failRedeem
	}
	bal := m.balanceFor(account, source)
	bal.Sub(bal, shares)
	if bal.Sign() < 0 {
		bal.SetInt64(0)
	}
	if out, ok := m.redeemOut[source]; ok {
		return new(big.Int).Set(out), nil
	}
	return new(big.Int).Set(shares), nil
}

func (m *mockYield) BalanceOf(ctx context.Context, source, account common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.balanceFor(account, source)), nil
}

func (m *mockYield) UnderlyingAssetOf(ctx context.Context, source common.Address) (common.Address, error) {
	asset, ok := m.underlying[source]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown source %s", source.Hex())
	}
	return asset, nil
}

func (m *mockYield) ConvertToAssets(ctx context.Context, source common.Address, shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

// mockTokens is an in-memory fungible token collaborator
type mockTokens struct {
	balances map[common.Address]map[common.Address]*big.Int
	decimals map[common.Address]uint8

	failTransfer       error
	lastTransferSender common.Address
}

func newMockTokens() *mockTokens {
	return &mockTokens{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		decimals: make(map[common.Address]uint8),
	}
}

func (m *mockTokens) balance(token, holder common.Address) *big.Int {
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		m.balances[token] = holders
	}
	b, ok := holders[holder]
	if !ok {
		b = new(big.Int)
		holders[holder] = b
	}
	return b
}

func (m *mockTokens) credit(token, holder common.Address, amount *big.Int) {
	b := m.balance(token, holder)
	b.Add(b, amount)
}

func (m *mockTokens) TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if m.failTransfer != nil {
		return m.failTransfer
	}
	fromBal := m.balance(token, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance of %s", token.Hex())
	}
	fromBal.Sub(fromBal, amount)
	m.credit(token, to, amount)
	return nil
}

// Transfer credits the recipient without debiting the sender; redemption
// proceeds exist only inside the yield mock, so the sending account's token
// balance does not track them.
func (m *mockTokens) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if m.failTransfer != nil {
		return m.failTransfer
	}
	m.lastTransferSender = from
	m.credit(token, to, amount)
	return nil
}

func (m *mockTokens) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.balance(token, account)), nil
}

func (m *mockTokens) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	d, ok := m.decimals[token]
	if !ok {
		return 0, fmt.Errorf("decimals unsupported for %s", token.Hex())
	}
	return d, nil
}

// mockClaimer credits the claimed amounts into the token collaborator
type mockClaimer struct {
	tokens     *mockTokens
	payout     map[common.Address]*big.Int // override: token -> actual payout
	failWith   error
	calls      int
	lastCaller common.Address
}

func (m *mockClaimer) Claim(ctx context.Context, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) error {
	m.calls++
	m.lastCaller = caller
	if m.failWith != nil {
		return m.failWith
	}
	for i, token := range tokens {
		amount := amounts[i]
		if m.payout != nil {
			if override, ok := m.payout[token]; ok {
				amount = override
			}
		}
		m.tokens.credit(token, accounts[i], amount)
	}
	return nil
}

var (
	accountAddr = addr(0xACC)
	ownerAddr   = addr(0xA)
	adminAddr   = addr(0xB)
	revenueAddr = addr(0xFEE)

	testAsset = addr(0x100)
	sourceA   = addr(0x200)
	sourceB   = addr(0x201)
)

func testConfig() *config.VaultConfig {
	return &config.VaultConfig{
		RevenueAddress:       revenueAddr,
		MaxFeeBps:            1000,
		DefaultWithdrawalBps: 100,
		DefaultRebalanceBps:  1000,
		DefaultClaimBps:      100,
		MinProfitThreshold:   big.NewInt(10),
		RebalanceCooldown:    12 * time.Hour,
		FeeChangeCooldown:    24 * time.Hour,
		MaxClaimBatch:        20,
	}
}

type fixture struct {
	acct    *Account
	yield   *mockYield
	tokens  *mockTokens
	claimer *mockClaimer
	clock   *fakeClock
}

// newFixture builds an account with one 6-decimal asset bound to sourceA,
// sourceB also available, and the owner funded with 1_000_000 units.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	yield := newMockYield()
	yield.underlying[sourceA] = testAsset
	yield.underlying[sourceB] = testAsset

	tokens := newMockTokens()
	tokens.decimals[testAsset] = 6
	tokens.credit(testAsset, ownerAddr, big0(1_000_000))
	tokens.credit(testAsset, adminAddr, big0(1_000_000))

	claimer := &mockClaimer{tokens: tokens}
	clock := newFakeClock()

	acct, err := NewAccount(accountAddr, ownerAddr, adminAddr, testConfig(), Deps{
		Yield:   yield,
		Tokens:  tokens,
		Claimer: claimer,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	ctx := context.Background()
	if err := acct.AddVault(ctx, adminAddr, sourceA); err != nil {
		t.Fatalf("AddVault A: %v", err)
	}
	if err := acct.AddVault(ctx, adminAddr, sourceB); err != nil {
		t.Fatalf("AddVault B: %v", err)
	}
	if err := acct.AddAsset(adminAddr, testAsset, sourceA); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if err := acct.AddVaultToAsset(adminAddr, testAsset, sourceB); err != nil {
		t.Fatalf("AddVaultToAsset: %v", err)
	}

	return &fixture{acct: acct, yield: yield, tokens: tokens, claimer: claimer, clock: clock}
}

// deposit seeds an initialized position of the given size
func (f *fixture) deposit(t *testing.T, amount int64) {
	t.Helper()
	if _, err := f.acct.InitialDeposit(context.Background(), ownerAddr, testAsset, sourceA, big0(amount)); err != nil {
		t.Fatalf("InitialDeposit: %v", err)
	}
}
