package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vault-router/internal/errors"
)

// FeeConfig holds the account's fee settings. Every field carries its own
// last-change timestamp; the cooldown gates each field independently.
type FeeConfig struct {
	WithdrawalFeeBps   uint32
	RebalanceFeeBps    uint32
	ClaimFeeBps        uint32
	MinProfitThreshold *big.Int // 6-decimal USD-like units

	MaxFeeBps uint32
	Cooldown  time.Duration

	lastWithdrawalChange time.Time
	lastRebalanceChange  time.Time
	lastClaimChange      time.Time
	lastThresholdChange  time.Time
}

// NewFeeConfig creates a fee configuration with the given initial settings.
// Initial values are not subject to the cooldown.
func NewFeeConfig(withdrawalBps, rebalanceBps, claimBps, maxBps uint32, minProfitThreshold *big.Int, cooldown time.Duration) *FeeConfig {
	return &FeeConfig{
		WithdrawalFeeBps:   withdrawalBps,
		RebalanceFeeBps:    rebalanceBps,
		ClaimFeeBps:        claimBps,
		MinProfitThreshold: new(big.Int).Set(minProfitThreshold),
		MaxFeeBps:          maxBps,
		Cooldown:           cooldown,
	}
}

func (c *FeeConfig) checkCooldown(field string, lastChange time.Time, now time.Time) error {
	if lastChange.IsZero() {
		return nil
	}
	elapsed := now.Sub(lastChange)
	if elapsed < c.Cooldown {
		remaining := c.Cooldown - elapsed
		return errors.NewCooldownNotElapsedError(fmt.Sprintf("%s change", field), remaining.String())
	}
	return nil
}

func (c *FeeConfig) checkBps(field string, bps uint32) error {
	if bps > c.MaxFeeBps {
		return errors.NewFeeTooHighError(field, bps, c.MaxFeeBps)
	}
	return nil
}

// SetWithdrawalFeeBps updates the withdrawal fee, enforcing the maximum, the
// per-field cooldown and the same-value no-op rule.
func (c *FeeConfig) SetWithdrawalFeeBps(bps uint32, now time.Time) error {
	if err := c.checkBps("withdrawal fee", bps); err != nil {
		return err
	}
	if bps == c.WithdrawalFeeBps {
		return errors.NewSameValueError("withdrawal fee")
	}
	if err := c.checkCooldown("withdrawal fee", c.lastWithdrawalChange, now); err != nil {
		return err
	}

	c.WithdrawalFeeBps = bps
	c.lastWithdrawalChange = now
	return nil
}

// SetRebalanceFeeBps updates the rebalance fee under the same rules
func (c *FeeConfig) SetRebalanceFeeBps(bps uint32, now time.Time) error {
	if err := c.checkBps("rebalance fee", bps); err != nil {
		return err
	}
	if bps == c.RebalanceFeeBps {
		return errors.NewSameValueError("rebalance fee")
	}
	if err := c.checkCooldown("rebalance fee", c.lastRebalanceChange, now); err != nil {
		return err
	}

	c.RebalanceFeeBps = bps
	c.lastRebalanceChange = now
	return nil
}

// SetClaimFeeBps updates the reward claim fee under the same rules
func (c *FeeConfig) SetClaimFeeBps(bps uint32, now time.Time) error {
	if err := c.checkBps("claim fee", bps); err != nil {
		return err
	}
	if bps == c.ClaimFeeBps {
		return errors.NewSameValueError("claim fee")
	}
	if err := c.checkCooldown("claim fee", c.lastClaimChange, now); err != nil {
		return err
	}

	c.ClaimFeeBps = bps
	c.lastClaimChange = now
	return nil
}

// SetMinProfitThreshold updates the USD-denominated profit threshold
func (c *FeeConfig) SetMinProfitThreshold(threshold *big.Int, now time.Time) error {
	if threshold == nil || threshold.Sign() < 0 {
		return errors.NewInvalidParameterError("minProfitThreshold", "must be non-negative")
	}
	if threshold.Cmp(c.MinProfitThreshold) == 0 {
		return errors.NewSameValueError("min profit threshold")
	}
	if err := c.checkCooldown("min profit threshold", c.lastThresholdChange, now); err != nil {
		return err
	}

	c.MinProfitThreshold.Set(threshold)
	c.lastThresholdChange = now
	return nil
}
