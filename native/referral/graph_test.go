package referral

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shopchain/core/pricing"
	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/native/fees"
	"shopchain/native/token"
	"shopchain/storage"
)

var (
	admin = ethcommon.HexToAddress("0xa0")
	pool  = ethcommon.HexToAddress("0xb0")
	root  = ethcommon.HexToAddress("0x01")
	a     = ethcommon.HexToAddress("0x02")
	b     = ethcommon.HexToAddress("0x03")
	c     = ethcommon.HexToAddress("0x04")
)

func newTestGraph(t *testing.T) (*Graph, *token.Ledger) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	for _, role := range []string{common.RoleAdmin, common.RoleMinter, common.RoleReferralAdmin} {
		require.NoError(t, mgr.SetRole(role, admin.Bytes()))
	}
	ledger := token.NewLedger(mgr)
	require.NoError(t, ledger.Initialize(token.Config{
		MaxSupply: token.WholeTokens(1_000_000),
		Recipients: token.Recipients{
			Treasury:  ethcommon.HexToAddress("0xf1"),
			Liquidity: ethcommon.HexToAddress("0xf2"),
			Marketing: ethcommon.HexToAddress("0xf3"),
		},
	}, fees.DefaultPolicy()))
	require.NoError(t, ledger.SetExcluded(admin, pool, true))
	require.NoError(t, ledger.Mint(admin, pool, token.WholeTokens(1_000)))

	g := NewGraph(mgr, ledger, pool)
	g.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return g, ledger
}

func dollarQuote() pricing.Quote {
	return pricing.Quote{Price: big.NewInt(100_000_000), Decimals: token.Decimals}
}

func TestRegisterEdgeValidation(t *testing.T) {
	g, _ := newTestGraph(t)

	require.ErrorIs(t, g.RegisterEdge(a, ethcommon.Address{}), ErrInvalidReferrer)
	require.ErrorIs(t, g.RegisterEdge(a, a), ErrSelfReferral)
	require.NoError(t, g.RegisterEdge(a, root))
	err := g.RegisterEdge(a, b)
	require.ErrorIs(t, err, ErrAlreadyReferred)
	require.Equal(t, root.Hex(), common.Params(err)["referrer"])

	ref, ok, err := g.ReferrerOf(a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root, ref)

	count, err := g.ReferralCount(root)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestRegisterEdgeRejectsCycles(t *testing.T) {
	g, _ := newTestGraph(t)
	require.NoError(t, g.RegisterEdge(a, b))
	require.NoError(t, g.RegisterEdge(b, c))
	require.ErrorIs(t, g.RegisterEdge(c, a), ErrReferralCycle)

	chain, err := g.Chain(a, MaxLevels)
	require.NoError(t, err)
	require.Equal(t, []ethcommon.Address{b, c}, chain)
}

func TestEdgesAlwaysFormForest(t *testing.T) {
	g, _ := newTestGraph(t)
	addrs := make([]ethcommon.Address, 30)
	for i := range addrs {
		addrs[i] = ethcommon.BigToAddress(big.NewInt(int64(0x100 + i)))
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		from := addrs[rng.Intn(len(addrs))]
		to := addrs[rng.Intn(len(addrs))]
		err := g.RegisterEdge(from, to)
		if err != nil && !errors.Is(err, ErrAlreadyReferred) && !errors.Is(err, ErrSelfReferral) && !errors.Is(err, ErrReferralCycle) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, start := range addrs {
		seen := map[ethcommon.Address]bool{start: true}
		chain, err := g.Chain(start, len(addrs)+1)
		require.NoError(t, err)
		for _, ancestor := range chain {
			require.Falsef(t, seen[ancestor], "cycle through %s", ancestor.Hex())
			seen[ancestor] = true
		}
	}
}

func TestDistributeRewardsPaysEachLevel(t *testing.T) {
	g, ledger := newTestGraph(t)
	buyer := ethcommon.HexToAddress("0x05")
	require.NoError(t, g.RegisterEdge(buyer, c))
	require.NoError(t, g.RegisterEdge(c, b))
	require.NoError(t, g.RegisterEdge(b, a))
	require.NoError(t, g.RegisterEdge(a, root))

	payout, err := g.DistributeRewards(buyer, 10_000, dollarQuote())
	require.NoError(t, err)
	require.Len(t, payout.Rewards, 3)
	require.Equal(t, uint64(900), payout.TotalCents)

	expect := map[ethcommon.Address]int64{c: 5, b: 3, a: 1, root: 0}
	for addr, whole := range expect {
		bal, err := ledger.BalanceOf(addr)
		require.NoError(t, err)
		require.Equalf(t, 0, bal.Cmp(token.WholeTokens(whole)), "balance of %s: %s", addr.Hex(), bal)
	}

	node, err := g.Node(c)
	require.NoError(t, err)
	require.Equal(t, uint64(500), node.EarnedCents)
	require.Equal(t, 0, node.EarnedTokens.Cmp(token.WholeTokens(5)))
}

func TestDistributeRewardsWithoutReferrerPaysNothing(t *testing.T) {
	g, _ := newTestGraph(t)
	payout, err := g.DistributeRewards(a, 10_000, dollarQuote())
	require.NoError(t, err)
	require.Empty(t, payout.Rewards)
	require.Equal(t, 0, payout.TotalTokens.Sign())
}

func TestDistributeRewardsFailsWhenPoolIsShort(t *testing.T) {
	g, _ := newTestGraph(t)
	require.NoError(t, g.RegisterEdge(b, a))
	_, err := g.DistributeRewards(b, 1_000_000_000, dollarQuote())
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
}

func TestSetLevelCommissions(t *testing.T) {
	g, _ := newTestGraph(t)
	require.ErrorIs(t, g.SetLevelCommissions(a, []uint32{100}), common.ErrUnauthorized)
	require.ErrorIs(t, g.SetLevelCommissions(admin, []uint32{1, 1, 1, 1, 1, 1}), ErrInvalidLevels)
	require.ErrorIs(t, g.SetLevelCommissions(admin, []uint32{1_001}), ErrInvalidLevels)

	require.NoError(t, g.SetLevelCommissions(admin, []uint32{1_000, 1_000, 1_000, 1_000, 1_000}))
	levels, version, err := g.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 5)
	require.Equal(t, uint64(1), version)

	buyer := ethcommon.HexToAddress("0x05")
	require.NoError(t, g.RegisterEdge(buyer, a))
	payout, err := g.DistributeRewards(buyer, 100, dollarQuote())
	require.NoError(t, err)
	require.Equal(t, uint64(10), payout.TotalCents)
}
