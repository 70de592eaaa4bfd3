package genesis

import (
	"os"
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shopchain/core/pricing"
	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/native/loyalty"
	"shopchain/native/market"
	"shopchain/native/referral"
	"shopchain/native/token"
	"shopchain/storage"
)

const sampleGenesis = `
token:
  name: Shop Token
  symbol: SHOP
  maxSupply: "1000000000000000000000000"
  tradingEnabled: true
  recipients:
    treasury: "0x00000000000000000000000000000000000000f1"
    liquidity: "0x00000000000000000000000000000000000000f2"
    marketing: "0x00000000000000000000000000000000000000f3"
  fees:
    buyBps: 300
    sellBps: 300
    transferBps: 100
roles:
  ROLE_ADMIN: ["0x00000000000000000000000000000000000000a0"]
  ROLE_MARKET_ADMIN: ["0x00000000000000000000000000000000000000a0"]
alloc:
  "0x00000000000000000000000000000000000000b1": "5000000000000000000000"
referralLevels: [500, 200]
price: "100000000"
products:
  - name: Mug
    priceCents: 1500
    stock: 10
discounts:
  - code: welcome10
    percentBps: 1000
`

var (
	adminAddr  = ethcommon.HexToAddress("0xa0")
	holderAddr = ethcommon.HexToAddress("0xb1")
	accounts   = market.Accounts{
		Self:         ethcommon.HexToAddress("0xc1"),
		FeeRecipient: ethcommon.HexToAddress("0xc2"),
		RewardsPool:  ethcommon.HexToAddress("0xc3"),
	}
)

func newModules(t *testing.T) Modules {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(mgr)
	oracle := pricing.NewOracle(mgr, pricing.Guard{})
	graph := referral.NewGraph(mgr, ledger, accounts.RewardsPool)
	loyal := loyalty.NewLedger(mgr, graph)
	return Modules{
		State:    mgr,
		Token:    ledger,
		Oracle:   oracle,
		Loyalty:  loyal,
		Referral: graph,
		Market:   market.New(mgr, ledger, oracle, loyal, graph, accounts),
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(sampleGenesis + "surprise: true\n"))
	require.Error(t, err)
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]func(*Spec){
		"unknown role":      func(s *Spec) { s.Roles["ROLE_GOD"] = []string{"0x00000000000000000000000000000000000000a0"} },
		"bad alloc account": func(s *Spec) { s.Alloc["nope"] = "1" },
		"zero alloc":        func(s *Spec) { s.Alloc["0x00000000000000000000000000000000000000b2"] = "0" },
		"over supply":       func(s *Spec) { s.Alloc["0x00000000000000000000000000000000000000b2"] = "1000000000000000000000001" },
		"too many levels":   func(s *Spec) { s.Referral = make([]uint32, referral.MaxLevels+1) },
		"dup discount":      func(s *Spec) { s.Discounts = append(s.Discounts, DiscountSpec{Code: "WELCOME10", PercentBps: 10}) },
		"free product":      func(s *Spec) { s.Products[0].PriceCents = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec, err := Parse([]byte(sampleGenesis))
			require.NoError(t, err)
			mutate(spec)
			require.Error(t, spec.Validate())
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis), 0o600))
	spec, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "SHOP", spec.Token.Symbol)
	require.Len(t, spec.Products, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAccountRoundTripsThroughBech32(t *testing.T) {
	encoded, err := FormatAccount(holderAddr)
	require.NoError(t, err)
	require.Contains(t, encoded, AccountHRP+"1")
	decoded, err := ParseAccount(encoded)
	require.NoError(t, err)
	require.Equal(t, holderAddr, decoded)

	_, err = ParseAccount("0x1234")
	require.Error(t, err)
}

func TestApplySeedsEveryModule(t *testing.T) {
	m := newModules(t)
	spec, err := Parse([]byte(sampleGenesis))
	require.NoError(t, err)
	require.NoError(t, Apply(spec, m))
	_, err = m.State.Commit()
	require.NoError(t, err)

	bal, err := m.Token.BalanceOf(holderAddr)
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000000", bal.String())
	cfg, err := m.Token.Config()
	require.NoError(t, err)
	require.True(t, cfg.TradingEnabled)

	for _, addr := range []ethcommon.Address{accounts.FeeRecipient, accounts.RewardsPool} {
		excluded, err := m.Token.IsExcluded(addr)
		require.NoError(t, err)
		require.True(t, excluded)
	}
	require.True(t, m.State.HasRole(common.RoleMarket, accounts.Self.Bytes()))
	require.True(t, m.State.HasRole(common.RoleMarketAdmin, adminAddr.Bytes()))
	for _, role := range common.Roles {
		require.Falsef(t, m.State.HasRole(role, Authority.Bytes()), "authority kept %s", role)
	}

	levels, _, err := m.Referral.Levels()
	require.NoError(t, err)
	require.Equal(t, []uint32{500, 200}, levels)
	tiers, err := m.Loyalty.Tiers()
	require.NoError(t, err)
	require.Equal(t, loyalty.DefaultTiers(), tiers)
	price, err := m.Oracle.GetPrice()
	require.NoError(t, err)
	require.Equal(t, "100000000", price.String())

	product, err := m.Market.Product(1)
	require.NoError(t, err)
	require.Equal(t, "Mug", product.Name)
	discount, err := m.Market.Discount("WELCOME10")
	require.NoError(t, err)
	require.Equal(t, uint32(1000), discount.PercentBps)

	applied, err := Applied(m.State)
	require.NoError(t, err)
	require.True(t, applied)
	require.ErrorIs(t, Apply(spec, m), ErrAlreadyApplied)
}

func TestApplyFailureLeavesNothingCommitted(t *testing.T) {
	m := newModules(t)
	spec, err := Parse([]byte(sampleGenesis))
	require.NoError(t, err)
	spec.Products = append(spec.Products, ProductSpec{Name: "Broken", PriceCents: 1, Stock: 1})
	spec.Discounts = append(spec.Discounts, DiscountSpec{Code: "late", PercentBps: 100, StartsAt: 10, EndsAt: 5})
	require.Error(t, Apply(spec, m))
	m.State.Discard()

	applied, err := Applied(m.State)
	require.NoError(t, err)
	require.False(t, applied)
	bal, err := m.Token.BalanceOf(holderAddr)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}
