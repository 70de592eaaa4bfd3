package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shopchain/config"
	"shopchain/core"
	"shopchain/core/events"
	"shopchain/core/genesis"
	"shopchain/core/pricing"
	"shopchain/integrations/archive"
	"shopchain/integrations/eventstream"
	"shopchain/integrations/webhooks"
	"shopchain/native/market"
	"shopchain/observability"
	"shopchain/observability/logging"
	telemetry "shopchain/observability/otel"
	"shopchain/rpc"
	"shopchain/storage"
)

const genesisPathEnv = "SHOP_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis file (overrides SHOP_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithFile("shopd", cfg.Environment, cfg.Log.Level, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile), logger); err != nil {
		logger.Error("shopd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "shopd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
	}

	accounts, err := marketAccounts(cfg.Accounts)
	if err != nil {
		return err
	}

	emitters := events.Fanout{observability.Events()}
	var eventArchive *archive.Archive
	if dsn := strings.TrimSpace(cfg.Archive.DSN); dsn != "" {
		db, err := archive.Open(dsn)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		if eventArchive, err = archive.New(db, logger); err != nil {
			return err
		}
		emitters = append(emitters, eventArchive)
		logger.Info("event archive enabled", slog.String("dsn", logging.DSN(dsn)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := eventstream.New(eventstream.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			Buffer:   cfg.Kafka.Buffer,
		}, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close event publisher", slog.Any("error", err))
			}
		}()
		emitters = append(emitters, publisher)
		logger.Info("kafka event stream enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	if endpoint := strings.TrimSpace(cfg.Webhooks.Endpoint); endpoint != "" {
		secret := cfg.ResolveWebhookSecret()
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(secret),
			webhooks.WithPrefixes(cfg.Webhooks.Prefixes...),
			webhooks.WithRetryPolicy(cfg.Webhooks.MaxAttempts, 0, 0),
			webhooks.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("webhooks: %w", err)
		}
		defer dispatcher.Close()
		emitters = append(emitters, dispatcher)
		logger.Info("webhooks enabled", slog.String("endpoint", endpoint), logging.Attr("webhookSecret", secret))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	node := core.NewNode(db, core.NodeConfig{
		Accounts: accounts,
		Oracle: pricing.Guard{
			MaxAgeSeconds:   cfg.Oracle.MaxAgeSeconds,
			MaxDeviationBps: cfg.Oracle.MaxDeviationBps,
			HistoryLimit:    cfg.Oracle.HistoryLimit,
		},
	}, emitters, logger)
	defer node.Close()

	if err := applyGenesis(ctx, node, genesisPath, logger); err != nil {
		return err
	}

	rpcCfg := rpc.Config{
		JWTSecret:          cfg.ResolveJWTSecret(),
		JWTIssuer:          cfg.RPC.JWTIssuer,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		ReadHeaderTimeout:  seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:        seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:       seconds(cfg.RPC.WriteTimeout),
	}
	if eventArchive != nil {
		rpcCfg.Archive = eventArchive
	}
	if rpcCfg.JWTSecret == "" {
		logger.Warn("RPC JWT secret not configured; authenticated methods are disabled")
	}
	return rpc.NewServer(node, rpcCfg, logger).Serve(ctx, cfg.RPC.Address)
}

// applyGenesis seeds an empty ledger. A node with stored state ignores the
// genesis file.
func applyGenesis(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	if node.Ready() == nil {
		logger.Info("ledger already initialised")
		return nil
	}
	if path == "" {
		logger.Warn("no genesis file configured; serving reads only until one is applied")
		return nil
	}
	spec, err := genesis.Load(path)
	if err != nil {
		return err
	}
	if err := node.ApplyGenesis(ctx, spec); err != nil && !errors.Is(err, genesis.ErrAlreadyApplied) {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", slog.String("path", path))
	return nil
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(genesisPathEnv)); v != "" {
		return v
	}
	return strings.TrimSpace(configValue)
}

func marketAccounts(cfg config.AccountsConfig) (market.Accounts, error) {
	var (
		out market.Accounts
		err error
	)
	if out.Self, err = config.ParseAddress(cfg.Market); err != nil {
		return out, fmt.Errorf("accounts.Market: %w", err)
	}
	if out.FeeRecipient, err = config.ParseAddress(cfg.FeeRecipient); err != nil {
		return out, fmt.Errorf("accounts.FeeRecipient: %w", err)
	}
	if out.RewardsPool, err = config.ParseAddress(cfg.RewardsPool); err != nil {
		return out, fmt.Errorf("accounts.RewardsPool: %w", err)
	}
	return out, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
