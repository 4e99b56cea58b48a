package adapter

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vault-router/internal/logging"
)

// RPCCaller is a ContractCaller over live chain RPC with a primary and an
// optional secondary endpoint. A failed call retries once on the secondary;
// after maxConsecutiveFails on the primary, the secondary becomes the
// preferred endpoint until the primary recovers.
type RPCCaller struct {
	mu sync.RWMutex

	primary   *ethclient.Client
	secondary *ethclient.Client

	consecutiveFails    int
	maxConsecutiveFails int
	preferSecondary     bool
	lastFailure         time.Time

	logger *logging.Logger
}

// NewRPCCaller dials the configured endpoints. secondaryURL may be empty.
func NewRPCCaller(primaryURL, secondaryURL string) (*RPCCaller, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary RPC URL cannot be empty")
	}

	primary, err := ethclient.Dial(primaryURL)
	if err != nil {
		return nil, fmt.Errorf("dial primary RPC: %w", err)
	}

	var secondary *ethclient.Client
	if secondaryURL != "" {
		secondary, err = ethclient.Dial(secondaryURL)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("dial secondary RPC: %w", err)
		}
	}

	return &RPCCaller{
		primary:             primary,
		secondary:           secondary,
		maxConsecutiveFails: 5,
		logger:              logging.GetGlobalLogger().WithField("component", "rpc_caller"),
	}, nil
}

// CallContract performs a read-only contract call with endpoint failover
func (c *RPCCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	first, second := c.order()

	result, err := first.CallContract(ctx, call, blockNumber)
	if err == nil {
		c.recordSuccess()
		return result, nil
	}
	c.recordFailure(err)

	if second == nil {
		return nil, err
	}

	result, retryErr := second.CallContract(ctx, call, blockNumber)
	if retryErr != nil {
		return nil, fmt.Errorf("both endpoints failed: %v; %w", err, retryErr)
	}
	return result, nil
}

// ChainID reports the chain the caller is connected to
func (c *RPCCaller) ChainID(ctx context.Context) (*big.Int, error) {
	first, second := c.order()
	id, err := first.ChainID(ctx)
	if err != nil && second != nil {
		return second.ChainID(ctx)
	}
	return id, err
}

// Close releases both client connections
func (c *RPCCaller) Close() {
	c.primary.Close()
	if c.secondary != nil {
		c.secondary.Close()
	}
}

func (c *RPCCaller) order() (*ethclient.Client, *ethclient.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.preferSecondary && c.secondary != nil {
		return c.secondary, c.primary
	}
	return c.primary, c.secondary
}

func (c *RPCCaller) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFails = 0
	if c.preferSecondary {
		c.preferSecondary = false
		c.logger.Info("primary RPC endpoint recovered")
	}
}

func (c *RPCCaller) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFails++
	c.lastFailure = time.Now()

	if !c.preferSecondary && c.secondary != nil && c.consecutiveFails >= c.maxConsecutiveFails {
		c.preferSecondary = true
		c.logger.WithError(err).WithField("consecutive_fails", c.consecutiveFails).
			Warn("failing over to secondary RPC endpoint")
	}
}

// SimulatingSender implements CallSender by dry-running state-changing
// calls through eth_call as the per-call from account. It validates that
// the call would succeed without submitting a transaction; production
// deployments swap in a signing sender behind the same interface.
type SimulatingSender struct {
	caller ContractCaller
	logger *logging.Logger
}

// NewSimulatingSender creates a dry-run sender
func NewSimulatingSender(caller ContractCaller) *SimulatingSender {
	return &SimulatingSender{
		caller: caller,
		logger: logging.GetGlobalLogger().WithField("component", "sim_sender"),
	}
}

// SendCall simulates the call and fails if the node reports a revert
func (s *SimulatingSender) SendCall(ctx context.Context, from, to common.Address, data []byte) error {
	if _, err := s.caller.CallContract(ctx, callMsg(from, to, data), nil); err != nil {
		return fmt.Errorf("call simulation reverted: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"from": from.Hex(),
		"to":   to.Hex(),
		"size": len(data),
	}).Debug("call simulated")
	return nil
}
