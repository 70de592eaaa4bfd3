package config

import (
	"fmt"
	"net/url"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// MaxOracleDeviationBps bounds the oracle deviation guard.
const MaxOracleDeviationBps = 10_000

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		return fmt.Errorf("RPC.Address must be set")
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("RPC: rate limit must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("RPC: RateLimitBurst must be positive when RateLimitPerSecond is set")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("RPC: MaxBodyBytes must not be negative")
	}
	accounts := map[string]string{
		"Accounts.Market":       c.Accounts.Market,
		"Accounts.FeeRecipient": c.Accounts.FeeRecipient,
		"Accounts.RewardsPool":  c.Accounts.RewardsPool,
	}
	for field, value := range accounts {
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if c.Oracle.MaxDeviationBps > MaxOracleDeviationBps {
		return fmt.Errorf("Oracle.MaxDeviationBps must be <= %d", MaxOracleDeviationBps)
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("Kafka.Topic must be set when brokers are configured")
	}
	if endpoint := strings.TrimSpace(c.Webhooks.Endpoint); endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("Webhooks.Endpoint must be an http(s) URL")
		}
		if c.Webhooks.MaxAttempts < 0 {
			return fmt.Errorf("Webhooks.MaxAttempts must not be negative")
		}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("Log: rotation limits must not be negative")
	}
	return nil
}

// ParseAddress parses a non-zero 0x-prefixed hex address.
func ParseAddress(value string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("invalid address %q", value)
	}
	addr := ethcommon.HexToAddress(trimmed)
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}
