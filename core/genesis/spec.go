package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"shopchain/native/common"
	"shopchain/native/fees"
	"shopchain/native/loyalty"
	"shopchain/native/market"
	"shopchain/native/referral"
)

// Spec is the seed state applied once to an empty ledger.
type Spec struct {
	Token     TokenSpec           `yaml:"token"`
	Roles     map[string][]string `yaml:"roles"`
	Excluded  []string            `yaml:"excluded"`
	AMMPairs  []string            `yaml:"ammPairs"`
	Alloc     map[string]string   `yaml:"alloc"`
	Tiers     []loyalty.Tier      `yaml:"tiers"`
	Referral  []uint32            `yaml:"referralLevels"`
	Price     string              `yaml:"price"`
	Products  []ProductSpec       `yaml:"products"`
	Discounts []DiscountSpec      `yaml:"discounts"`
}

type TokenSpec struct {
	Name              string         `yaml:"name"`
	Symbol            string         `yaml:"symbol"`
	MaxSupply         string         `yaml:"maxSupply"`
	MaxTransferAmount string         `yaml:"maxTransferAmount"`
	TradingEnabled    bool           `yaml:"tradingEnabled"`
	Recipients        RecipientsSpec `yaml:"recipients"`
	Fees              *FeesSpec      `yaml:"fees"`
}

type RecipientsSpec struct {
	Treasury  string `yaml:"treasury"`
	Liquidity string `yaml:"liquidity"`
	Marketing string `yaml:"marketing"`
}

type FeesSpec struct {
	BuyBps      uint32 `yaml:"buyBps"`
	SellBps     uint32 `yaml:"sellBps"`
	TransferBps uint32 `yaml:"transferBps"`
}

type ProductSpec struct {
	Name       string `yaml:"name"`
	PriceCents uint64 `yaml:"priceCents"`
	Stock      uint64 `yaml:"stock"`
}

type DiscountSpec struct {
	Code             string `yaml:"code"`
	PercentBps       uint32 `yaml:"percentBps"`
	MaxAmountCents   uint64 `yaml:"maxAmountCents"`
	MinPurchaseCents uint64 `yaml:"minPurchaseCents"`
	UsageLimit       uint64 `yaml:"usageLimit"`
	StartsAt         uint64 `yaml:"startsAt"`
	EndsAt           uint64 `yaml:"endsAt"`
}

// Load reads and validates a YAML genesis file.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %q: %w", path, err)
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis %q: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a YAML genesis document. Unknown fields are
// rejected.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks addresses, amounts and bounds without touching state.
func (s *Spec) Validate() error {
	if _, err := parsePositive(s.Token.MaxSupply); err != nil {
		return fmt.Errorf("token.maxSupply: %w", err)
	}
	if strings.TrimSpace(s.Token.MaxTransferAmount) != "" {
		if _, err := parsePositive(s.Token.MaxTransferAmount); err != nil {
			return fmt.Errorf("token.maxTransferAmount: %w", err)
		}
	}
	for field, addr := range map[string]string{
		"treasury":  s.Token.Recipients.Treasury,
		"liquidity": s.Token.Recipients.Liquidity,
		"marketing": s.Token.Recipients.Marketing,
	} {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("token.recipients.%s: %w", field, err)
		}
	}
	if s.Token.Fees != nil {
		if err := s.Token.Fees.policy().Validate(); err != nil {
			return fmt.Errorf("token.fees: %w", err)
		}
	}
	for _, role := range sortedKeys(s.Roles) {
		if !common.IsRole(role) {
			return fmt.Errorf("roles: unknown role %q", role)
		}
		for i, addr := range s.Roles[role] {
			if _, err := ParseAccount(addr); err != nil {
				return fmt.Errorf("roles[%q][%d]: %w", role, i, err)
			}
		}
	}
	for i, addr := range s.Excluded {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("excluded[%d]: %w", i, err)
		}
	}
	for i, addr := range s.AMMPairs {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("ammPairs[%d]: %w", i, err)
		}
	}
	total := new(big.Int)
	for _, addr := range sortedKeys(s.Alloc) {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("alloc[%q]: %w", addr, err)
		}
		amount, err := parsePositive(s.Alloc[addr])
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", addr, err)
		}
		total.Add(total, amount)
	}
	if maxSupply, _ := parsePositive(s.Token.MaxSupply); total.Cmp(maxSupply) > 0 {
		return fmt.Errorf("alloc: total %s exceeds max supply %s", total, maxSupply)
	}
	if len(s.Referral) > 0 {
		if err := referral.ValidateLevels(s.Referral); err != nil {
			return fmt.Errorf("referralLevels: %w", err)
		}
	}
	if strings.TrimSpace(s.Price) != "" {
		if _, err := parsePositive(s.Price); err != nil {
			return fmt.Errorf("price: %w", err)
		}
	}
	for i, p := range s.Products {
		if strings.TrimSpace(p.Name) == "" || p.PriceCents == 0 {
			return fmt.Errorf("products[%d]: name and priceCents are required", i)
		}
	}
	seen := make(map[string]struct{}, len(s.Discounts))
	for i, d := range s.Discounts {
		code := market.NormalizeCode(d.Code)
		if code == "" || d.PercentBps == 0 || d.PercentBps > 10_000 {
			return fmt.Errorf("discounts[%d]: code and percentBps in (0, 10000] are required", i)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("discounts[%d]: duplicate code %q", i, code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

func (f *FeesSpec) policy() fees.Policy {
	return fees.Policy{BuyBps: f.BuyBps, SellBps: f.SellBps, TransferBps: f.TransferBps}
}

func parsePositive(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
