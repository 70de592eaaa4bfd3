package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration loaded from TOML.
type Config struct {
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`

	RPC       RPCConfig       `toml:"RPC"`
	Log       LogConfig       `toml:"Log"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Accounts  AccountsConfig  `toml:"Accounts"`
	Oracle    OracleConfig    `toml:"Oracle"`
	Kafka     KafkaConfig     `toml:"Kafka"`
	Archive   ArchiveConfig   `toml:"Archive"`
	Webhooks  WebhookConfig   `toml:"Webhooks"`
}

type RPCConfig struct {
	Address string `toml:"Address"`
	// JWTSecretEnv names the environment variable holding the HMAC secret
	// used to verify bearer tokens. JWTSecret is read only when it is unset.
	JWTSecretEnv       string  `toml:"JWTSecretEnv"`
	JWTSecret          string  `toml:"JWTSecret"`
	JWTIssuer          string  `toml:"JWTIssuer"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	ReadHeaderTimeout  int     `toml:"ReadHeaderTimeout"`
	ReadTimeout        int     `toml:"ReadTimeout"`
	WriteTimeout       int     `toml:"WriteTimeout"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`
}

type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers"`
}

// AccountsConfig names the module accounts of the marketplace. Addresses are
// 0x-prefixed hex.
type AccountsConfig struct {
	Market       string `toml:"Market"`
	FeeRecipient string `toml:"FeeRecipient"`
	RewardsPool  string `toml:"RewardsPool"`
}

type OracleConfig struct {
	MaxAgeSeconds   uint64 `toml:"MaxAgeSeconds"`
	MaxDeviationBps uint32 `toml:"MaxDeviationBps"`
	HistoryLimit    uint64 `toml:"HistoryLimit"`
}

type KafkaConfig struct {
	Brokers  []string `toml:"Brokers"`
	Topic    string   `toml:"Topic"`
	ClientID string   `toml:"ClientID"`
	Buffer   int      `toml:"Buffer"`
}

type ArchiveConfig struct {
	// DSN is a SQLite path or a postgres:// URL. The archive is disabled
	// when empty.
	DSN string `toml:"DSN"`
}

// WebhookConfig posts committed events whose type starts with one of
// Prefixes to Endpoint. Webhooks are disabled when Endpoint is empty.
type WebhookConfig struct {
	Endpoint    string   `toml:"Endpoint"`
	SecretEnv   string   `toml:"SecretEnv"`
	Secret      string   `toml:"Secret"`
	Prefixes    []string `toml:"Prefixes"`
	MaxAttempts int      `toml:"MaxAttempts"`
}

// Load loads the configuration from the given path. A default file is
// written when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Kafka.Brokers == nil {
		cfg.Kafka.Brokers = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for new nodes.
func Default() *Config {
	return &Config{
		DataDir:     "./shop-data",
		Environment: "local",
		RPC: RPCConfig{
			Address:            ":8080",
			JWTSecretEnv:       "SHOP_RPC_JWT_SECRET",
			JWTIssuer:          "shopchain",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			ReadHeaderTimeout:  5,
			ReadTimeout:        15,
			WriteTimeout:       15,
			MaxBodyBytes:       1 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4318", Insecure: true},
		Accounts: AccountsConfig{
			Market:       "0x00000000000000000000000000000000000000a1",
			FeeRecipient: "0x00000000000000000000000000000000000000a2",
			RewardsPool:  "0x00000000000000000000000000000000000000a3",
		},
		Oracle: OracleConfig{
			MaxAgeSeconds:   3600,
			MaxDeviationBps: 2_000,
			HistoryLimit:    256,
		},
		Kafka: KafkaConfig{
			Brokers:  []string{},
			Topic:    "shopchain.events",
			ClientID: "shopd",
			Buffer:   1024,
		},
		Webhooks: WebhookConfig{
			SecretEnv:   "SHOP_WEBHOOK_SECRET",
			Prefixes:    []string{"market.order."},
			MaxAttempts: 5,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolveJWTSecret returns the RPC bearer secret, preferring the environment.
func (c *Config) ResolveJWTSecret() string {
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.RPC.JWTSecret)
}

// ResolveWebhookSecret returns the webhook signing secret, preferring the
// environment.
func (c *Config) ResolveWebhookSecret() string {
	if env := strings.TrimSpace(c.Webhooks.SecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.Webhooks.Secret)
}
