package genesis

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"shopchain/core/pricing"
	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/native/fees"
	"shopchain/native/loyalty"
	"shopchain/native/market"
	"shopchain/native/referral"
	"shopchain/native/token"
)

// ErrAlreadyApplied is returned when the ledger already holds a genesis.
var ErrAlreadyApplied = errors.New("genesis: already applied")

// Authority is the caller used for seeding. It holds every role while the
// genesis is applied and none afterwards.
var Authority = ethcommon.BytesToAddress(ethcrypto.Keccak256([]byte("shopchain/genesis"))[12:])

var appliedKey = []byte("genesis/applied")

// Modules are the ledgers a genesis seeds.
type Modules struct {
	State    *state.Manager
	Token    *token.Ledger
	Oracle   *pricing.Oracle
	Loyalty  *loyalty.Ledger
	Referral *referral.Graph
	Market   *market.Market
}

// Applied reports whether a genesis was already written.
func Applied(st *state.Manager) (bool, error) {
	return st.KVGet(appliedKey, nil)
}

// Apply seeds the ledgers from spec. The market's own account receives the
// market role and its fee recipient and rewards pool are excluded from fees.
// Apply only stages writes; the caller commits or discards them.
func Apply(spec *Spec, m Modules) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	applied, err := Applied(m.State)
	if err != nil {
		return err
	}
	if applied {
		return ErrAlreadyApplied
	}

	for _, role := range common.Roles {
		if err := m.State.SetRole(role, Authority.Bytes()); err != nil {
			return err
		}
	}

	if err := m.Token.Initialize(tokenConfig(spec.Token), tokenPolicy(spec.Token)); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	for _, role := range sortedKeys(spec.Roles) {
		for _, raw := range spec.Roles[role] {
			addr, _ := ParseAccount(raw)
			if err := m.State.SetRole(role, addr.Bytes()); err != nil {
				return fmt.Errorf("roles[%q]: %w", role, err)
			}
		}
	}

	accounts := m.Market.Accounts()
	if err := m.State.SetRole(common.RoleMarket, accounts.Self.Bytes()); err != nil {
		return err
	}
	excluded := []ethcommon.Address{accounts.FeeRecipient, accounts.RewardsPool}
	for _, raw := range spec.Excluded {
		addr, _ := ParseAccount(raw)
		excluded = append(excluded, addr)
	}
	for _, addr := range excluded {
		if err := m.Token.SetExcluded(Authority, addr, true); err != nil {
			return fmt.Errorf("exclude %s: %w", addr.Hex(), err)
		}
	}
	for _, raw := range spec.AMMPairs {
		addr, _ := ParseAccount(raw)
		if err := m.Token.SetAMMPair(Authority, addr, true); err != nil {
			return fmt.Errorf("amm pair %s: %w", addr.Hex(), err)
		}
	}
	for _, raw := range sortedKeys(spec.Alloc) {
		addr, _ := ParseAccount(raw)
		amount, _ := parsePositive(spec.Alloc[raw])
		if err := m.Token.Mint(Authority, addr, amount); err != nil {
			return fmt.Errorf("alloc[%q]: %w", raw, err)
		}
	}
	if spec.Token.TradingEnabled {
		if err := m.Token.EnableTrading(Authority); err != nil {
			return err
		}
	}

	if err := m.Loyalty.Initialize(spec.Tiers); err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	if len(spec.Referral) > 0 {
		if err := m.Referral.SetLevelCommissions(Authority, spec.Referral); err != nil {
			return fmt.Errorf("referral levels: %w", err)
		}
	}
	if strings.TrimSpace(spec.Price) != "" {
		price, _ := parsePositive(spec.Price)
		if _, err := m.Oracle.SetPrice(Authority, price, 0); err != nil {
			return fmt.Errorf("price: %w", err)
		}
	}
	for i, p := range spec.Products {
		if _, err := m.Market.AddProduct(Authority, p.Name, p.PriceCents, p.Stock); err != nil {
			return fmt.Errorf("products[%d]: %w", i, err)
		}
	}
	for i, d := range spec.Discounts {
		_, err := m.Market.CreateDiscount(Authority, market.DiscountCode{
			Code:             d.Code,
			PercentBps:       d.PercentBps,
			MaxAmountCents:   d.MaxAmountCents,
			MinPurchaseCents: d.MinPurchaseCents,
			UsageLimit:       d.UsageLimit,
			StartsAt:         d.StartsAt,
			EndsAt:           d.EndsAt,
		})
		if err != nil {
			return fmt.Errorf("discounts[%d]: %w", i, err)
		}
	}

	for _, role := range common.Roles {
		if err := m.State.RemoveRole(role, Authority.Bytes()); err != nil {
			return err
		}
	}
	return m.State.KVPut(appliedKey, true)
}

func tokenConfig(t TokenSpec) token.Config {
	maxSupply, _ := parsePositive(t.MaxSupply)
	cfg := token.Config{
		Name:      strings.TrimSpace(t.Name),
		Symbol:    strings.TrimSpace(t.Symbol),
		MaxSupply: maxSupply,
	}
	if strings.TrimSpace(t.MaxTransferAmount) != "" {
		cfg.MaxTransferAmount, _ = parsePositive(t.MaxTransferAmount)
	} else {
		cfg.MaxTransferAmount = big.NewInt(0)
	}
	cfg.Recipients.Treasury, _ = ParseAccount(t.Recipients.Treasury)
	cfg.Recipients.Liquidity, _ = ParseAccount(t.Recipients.Liquidity)
	cfg.Recipients.Marketing, _ = ParseAccount(t.Recipients.Marketing)
	return cfg
}

func tokenPolicy(t TokenSpec) fees.Policy {
	if t.Fees == nil {
		return fees.DefaultPolicy()
	}
	return t.Fees.policy()
}
