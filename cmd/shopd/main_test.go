package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"shopchain/config"
	"shopchain/core"
	"shopchain/storage"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	t.Setenv(genesisPathEnv, "env.yaml")
	if got := resolveGenesisPath("flag.yaml", "config.yaml"); got != "flag.yaml" {
		t.Fatalf("flag must win, got %q", got)
	}
	if got := resolveGenesisPath(" ", "config.yaml"); got != "env.yaml" {
		t.Fatalf("env must beat config, got %q", got)
	}
	t.Setenv(genesisPathEnv, "")
	if got := resolveGenesisPath("", "config.yaml"); got != "config.yaml" {
		t.Fatalf("expected config path, got %q", got)
	}
}

func TestMarketAccountsFromDefaults(t *testing.T) {
	accounts, err := marketAccounts(config.Default().Accounts)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if accounts.Self == accounts.FeeRecipient || accounts.FeeRecipient == accounts.RewardsPool {
		t.Fatalf("module accounts must be distinct: %+v", accounts)
	}
	bad := config.Default().Accounts
	bad.RewardsPool = "nope"
	if _, err := marketAccounts(bad); err == nil {
		t.Fatalf("expected error for malformed rewards pool")
	}
}

const minimalGenesis = `
token:
  name: Shop Token
  symbol: SHOP
  maxSupply: "1000000000000000000000000"
  recipients:
    treasury: "0x00000000000000000000000000000000000000f1"
    liquidity: "0x00000000000000000000000000000000000000f2"
    marketing: "0x00000000000000000000000000000000000000f3"
`

func TestApplyGenesisOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts, err := marketAccounts(config.Default().Accounts)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	node := core.NewNode(storage.NewMemDB(), core.NodeConfig{Accounts: accounts}, nil, logger)
	defer node.Close()

	if err := applyGenesis(context.Background(), node, "", logger); err != nil {
		t.Fatalf("empty path must be tolerated: %v", err)
	}
	if node.Ready() == nil {
		t.Fatalf("node must not be ready without genesis")
	}

	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(minimalGenesis), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	if err := applyGenesis(context.Background(), node, path, logger); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := node.Ready(); err != nil {
		t.Fatalf("not ready after genesis: %v", err)
	}
	if err := applyGenesis(context.Background(), node, path, logger); err != nil {
		t.Fatalf("second apply must be a no-op: %v", err)
	}
}
