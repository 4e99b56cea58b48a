// Package factory implements deterministic vault instance derivation and the
// registry of instances created per owner. The address scheme mirrors
// CREATE2: an instance address is a pure function of the deployer identity,
// a salt and the hash of the template plus its encoded configuration, so the
// same inputs yield the same address on every deployment target.
package factory

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/logging"
	"github.com/vault-router/internal/types"
)

// InstanceConfig is the fixed parameter set an instance is derived from.
// Assets and Sources are parallel arrays binding each initial asset to its
// initial yield source.
type InstanceConfig struct {
	Owner   common.Address
	Admin   common.Address
	Revenue common.Address
	Assets  []common.Address
	Sources []common.Address
}

// Validate checks the configuration the way deployment does: every address
// set, arrays non-empty, equal length and free of zero entries.
func (c *InstanceConfig) Validate() error {
	if c.Owner == (common.Address{}) {
		return errors.NewZeroAddressError("owner")
	}
	if c.Admin == (common.Address{}) {
		return errors.NewZeroAddressError("admin")
	}
	if c.Revenue == (common.Address{}) {
		return errors.NewZeroAddressError("revenue")
	}
	if len(c.Assets) == 0 {
		return errors.NewArrayMismatchError("config arrays must not be empty")
	}
	if len(c.Assets) != len(c.Sources) {
		return errors.NewArrayMismatchError("assets and sources must have equal length")
	}
	for _, asset := range c.Assets {
		if asset == (common.Address{}) {
			return errors.NewZeroAddressError("asset")
		}
	}
	for _, source := range c.Sources {
		if source == (common.Address{}) {
			return errors.NewZeroAddressError("source")
		}
	}
	return nil
}

// encode packs the configuration into 32-byte words, address fields first,
// then each array prefixed with its length. The encoding only needs to be
// deterministic and injective; it feeds the address hash.
func (c *InstanceConfig) encode() []byte {
	words := 3 + 2 + len(c.Assets) + len(c.Sources)
	out := make([]byte, 0, words*32)

	appendAddress := func(a common.Address) {
		out = append(out, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	appendLen := func(n int) {
		var word [32]byte
		binary.BigEndian.PutUint64(word[24:], uint64(n))
		out = append(out, word[:]...)
	}

	appendAddress(c.Owner)
	appendAddress(c.Admin)
	appendAddress(c.Revenue)
	appendLen(len(c.Assets))
	for _, asset := range c.Assets {
		appendAddress(asset)
	}
	appendLen(len(c.Sources))
	for _, source := range c.Sources {
		appendAddress(source)
	}
	return out
}

// GenerateSalt derives a salt from an owner and a nonce. Distinct
// (owner, nonce) pairs yield distinct salts under keccak256.
func GenerateSalt(owner common.Address, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return common.BytesToHash(crypto.Keccak256(owner.Bytes(), n[:]))
}

// ComputeAddress derives the instance address for a configuration and salt:
// keccak256(0xff ++ deployer ++ salt ++ keccak256(template ++ config))[12:].
// It is reproducible off-chain given identical inputs.
func ComputeAddress(deployer common.Address, template []byte, cfg *InstanceConfig, salt common.Hash) common.Address {
	initHash := crypto.Keccak256(template, cfg.encode())

	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, deployer.Bytes()...)
	data = append(data, salt.Bytes()...)
	data = append(data, initHash...)

	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}

// Registry records every instance created through the factory: the
// (owner, salt) pair that produced it, the per-owner instance list and the
// known-instance set. A pair deploys exactly once.
type Registry struct {
	mu sync.RWMutex

	deployer common.Address
	template []byte
	chainID  types.ChainID

	bySalt    map[common.Address]map[common.Hash]common.Address
	byOwner   map[common.Address][]common.Address
	instances map[common.Address]bool

	logger *logging.Logger
}

// NewRegistry creates a factory registry for the given deployer identity and
// instance template.
func NewRegistry(deployer common.Address, template []byte, chainID types.ChainID, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Registry{
		deployer:  deployer,
		template:  template,
		chainID:   chainID,
		bySalt:    make(map[common.Address]map[common.Hash]common.Address),
		byOwner:   make(map[common.Address][]common.Address),
		instances: make(map[common.Address]bool),
		logger:    logger.WithField("deployer", deployer.Hex()),
	}
}

// Predict returns the address Deploy would produce for the configuration and
// salt, without recording anything.
func (r *Registry) Predict(cfg *InstanceConfig, salt common.Hash) (common.Address, error) {
	if err := cfg.Validate(); err != nil {
		return common.Address{}, err
	}
	return ComputeAddress(r.deployer, r.template, cfg, salt), nil
}

// Deploy derives and records an instance for (cfg.Owner, salt). A second
// call with the same pair fails and leaves the registry untouched.
func (r *Registry) Deploy(cfg *InstanceConfig, salt common.Hash) (*types.DeploymentEvent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySalt[cfg.Owner][salt]; exists {
		return nil, errors.NewDeploymentExistsError(cfg.Owner, salt)
	}

	instance := ComputeAddress(r.deployer, r.template, cfg, salt)

	salts, ok := r.bySalt[cfg.Owner]
	if !ok {
		salts = make(map[common.Hash]common.Address)
		r.bySalt[cfg.Owner] = salts
	}
	salts[salt] = instance
	r.byOwner[cfg.Owner] = append(r.byOwner[cfg.Owner], instance)
	r.instances[instance] = true

	r.logger.WithFields(map[string]interface{}{
		"owner":    cfg.Owner.Hex(),
		"instance": instance.Hex(),
		"salt":     salt.Hex(),
	}).Info("Vault instance deployed")

	return &types.DeploymentEvent{
		Instance: instance,
		Owner:    cfg.Owner,
		Salt:     salt,
		ChainID:  r.chainID,
	}, nil
}

// InstancesOf lists the instances deployed for an owner, in creation order
func (r *Registry) InstancesOf(owner common.Address) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.byOwner[owner]))
	copy(out, r.byOwner[owner])
	return out
}

// IsInstance reports whether an address was created by this factory
func (r *Registry) IsInstance(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[addr]
}

// Deployment looks up the instance recorded for an (owner, salt) pair
func (r *Registry) Deployment(owner common.Address, salt common.Hash) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.bySalt[owner][salt]
	return instance, ok
}
