package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var selClaim = selector("claim(address[],address[],uint256[],bytes32[][])")

// MerklClaimer implements RewardClaimer against a Merkl-style distributor
// contract. The proofs are opaque here; verification happens on chain.
type MerklClaimer struct {
	sender      CallSender
	distributor common.Address
}

// NewMerklClaimer creates a claimer against the given distributor contract
func NewMerklClaimer(sender CallSender, distributor common.Address) *MerklClaimer {
	return &MerklClaimer{
		sender:      sender,
		distributor: distributor,
	}
}

// Claim submits one batched claim call as the caller. The four arrays are
// parallel; the vault core validates lengths and duplicate tokens before
// reaching this point.
func (c *MerklClaimer) Claim(ctx context.Context, caller common.Address, accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) error {
	data, err := packClaim(accounts, tokens, amounts, proofs)
	if err != nil {
		return NewAdapterError("Claim", c.distributor, err, nil)
	}

	if err := c.sender.SendCall(ctx, caller, c.distributor, data); err != nil {
		return NewAdapterError("Claim", c.distributor, fmt.Errorf("%w: %v", ErrClaimFailed, err), map[string]interface{}{
			"entries": len(tokens),
		})
	}
	return nil
}

// packClaim ABI-encodes claim(address[],address[],uint256[],bytes32[][]).
// Four dynamic arguments: a 4*32 byte offset header, then each array in
// order. The proofs array nests one more level of offsets.
func packClaim(accounts, tokens []common.Address, amounts []*big.Int, proofs [][]common.Hash) ([]byte, error) {
	n := len(accounts)
	if len(tokens) != n || len(amounts) != n || len(proofs) != n {
		return nil, fmt.Errorf("claim arrays must have equal length")
	}

	word := func(v uint64) []byte {
		return packUint(new(big.Int).SetUint64(v))
	}

	accountsEnc := word(uint64(n))
	for _, a := range accounts {
		accountsEnc = append(accountsEnc, packAddress(a)...)
	}

	tokensEnc := word(uint64(n))
	for _, t := range tokens {
		tokensEnc = append(tokensEnc, packAddress(t)...)
	}

	amountsEnc := word(uint64(n))
	for _, a := range amounts {
		amountsEnc = append(amountsEnc, packUint(a)...)
	}

	// bytes32[][]: outer length, per-element offsets, then each inner array
	proofsEnc := word(uint64(n))
	inner := make([][]byte, n)
	for i, proof := range proofs {
		enc := word(uint64(len(proof)))
		for _, h := range proof {
			enc = append(enc, h.Bytes()...)
		}
		inner[i] = enc
	}
	offset := uint64(n * 32)
	for i := 0; i < n; i++ {
		proofsEnc = append(proofsEnc, word(offset)...)
		offset += uint64(len(inner[i]))
	}
	for i := 0; i < n; i++ {
		proofsEnc = append(proofsEnc, inner[i]...)
	}

	head := uint64(4 * 32)
	data := append([]byte{}, selClaim...)
	data = append(data, word(head)...)
	head += uint64(len(accountsEnc))
	data = append(data, word(head)...)
	head += uint64(len(tokensEnc))
	data = append(data, word(head)...)
	head += uint64(len(amountsEnc))
	data = append(data, word(head)...)

	data = append(data, accountsEnc...)
	data = append(data, tokensEnc...)
	data = append(data, amountsEnc...)
	data = append(data, proofsEnc...)
	return data, nil
}
