package token

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shopchain/core/events"
	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/native/fees"
	"shopchain/storage"
)

var (
	admin     = ethcommon.HexToAddress("0xa0")
	treasury  = ethcommon.HexToAddress("0xf1")
	liquidity = ethcommon.HexToAddress("0xf2")
	marketing = ethcommon.HexToAddress("0xf3")
	alice     = ethcommon.HexToAddress("0x0a")
	bob       = ethcommon.HexToAddress("0x0b")
	carol     = ethcommon.HexToAddress("0x0c")
	pair      = ethcommon.HexToAddress("0x0d")
)

func newTestLedger(t *testing.T) (*Ledger, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	for _, role := range []string{common.RoleAdmin, common.RoleMinter, common.RolePauser} {
		require.NoError(t, mgr.SetRole(role, admin.Bytes()))
	}
	ledger := NewLedger(mgr)
	ledger.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	cfg := Config{
		Name:       "Shop Token",
		Symbol:     "SHOP",
		MaxSupply:  big.NewInt(10_000_000),
		Recipients: Recipients{Treasury: treasury, Liquidity: liquidity, Marketing: marketing},
	}
	require.NoError(t, ledger.Initialize(cfg, fees.DefaultPolicy()))
	return ledger, mgr
}

func requireBalance(t *testing.T, l *Ledger, addr ethcommon.Address, want int64) {
	t.Helper()
	got, err := l.BalanceOf(addr)
	require.NoError(t, err)
	require.Equalf(t, 0, got.Cmp(big.NewInt(want)), "balance of %s: want %d got %s", addr.Hex(), want, got)
}

func TestTransferFromExcludedAccountSkipsFee(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Mint(admin, alice, big.NewInt(1000)))
	require.NoError(t, l.SetExcluded(admin, alice, true))

	res, err := l.Transfer(alice, bob, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, fees.KindNone, res.Kind)
	requireBalance(t, l, bob, 1000)
	requireBalance(t, l, alice, 0)

	supply, err := l.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, 0, supply.Cmp(big.NewInt(1000)))
}

func TestSellIntoPairSplitsFee(t *testing.T) {
	l, mgr := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.SetAMMPair(admin, pair, true))
	require.NoError(t, l.Mint(admin, carol, big.NewInt(1_000_000)))
	_, err := mgr.Commit()
	require.NoError(t, err)

	res, err := l.Transfer(carol, pair, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, fees.KindSell, res.Kind)
	require.Equal(t, 0, res.Fee.Cmp(big.NewInt(30_000)))
	requireBalance(t, l, pair, 970_000)
	requireBalance(t, l, treasury, 12_000)
	requireBalance(t, l, liquidity, 12_000)
	requireBalance(t, l, marketing, 6_000)
	requireBalance(t, l, carol, 0)

	types := make([]string, 0)
	for _, evt := range mgr.Events() {
		types = append(types, evt.Type)
	}
	require.Equal(t, []string{events.TypeTokenTransfer, events.TypeTokenFeesDistributed}, types)
}

func TestBuyFromPairUsesBuyRate(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.SetAMMPair(admin, pair, true))
	_, err := l.SetFeePolicy(admin, fees.Policy{BuyBps: 500, SellBps: 100, TransferBps: 0})
	require.NoError(t, err)
	require.NoError(t, l.Mint(admin, pair, big.NewInt(10_000)))

	res, err := l.Transfer(pair, alice, big.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, fees.KindBuy, res.Kind)
	requireBalance(t, l, alice, 9_500)

	res, err = l.Transfer(alice, bob, big.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, 0, res.Fee.Sign())
	requireBalance(t, l, bob, 1_000)
}

func TestTransferInsufficientBalanceReportsAmounts(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.Mint(admin, alice, big.NewInt(50)))

	_, err := l.Transfer(alice, bob, big.NewInt(80))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	params := common.Params(err)
	require.Equal(t, "80", params["required"])
	require.Equal(t, "50", params["available"])
	requireBalance(t, l, alice, 50)
	requireBalance(t, l, bob, 0)
}

func TestTradingGate(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Mint(admin, alice, big.NewInt(100)))

	_, err := l.Transfer(alice, bob, big.NewInt(10))
	require.ErrorIs(t, err, ErrTradingNotEnabled)

	require.NoError(t, l.SetExcluded(admin, bob, true))
	_, err = l.Transfer(alice, bob, big.NewInt(10))
	require.NoError(t, err)

	require.ErrorIs(t, l.EnableTrading(alice), common.ErrUnauthorized)
	require.NoError(t, l.EnableTrading(admin))
	require.ErrorIs(t, l.EnableTrading(admin), ErrAlreadyEnabled)

	cfg, err := l.Config()
	require.NoError(t, err)
	require.True(t, cfg.TradingEnabled)
	require.Equal(t, uint64(1_700_000_000), cfg.TradingEnabledAt)
}

func TestTransferCap(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.Mint(admin, alice, big.NewInt(10_000)))
	require.NoError(t, l.SetMaxTransferAmount(admin, big.NewInt(500)))

	_, err := l.Transfer(alice, bob, big.NewInt(501))
	require.ErrorIs(t, err, ErrTransferCapExceeded)
	_, err = l.Transfer(alice, bob, big.NewInt(500))
	require.NoError(t, err)

	require.NoError(t, l.SetExcluded(admin, alice, true))
	_, err = l.Transfer(alice, bob, big.NewInt(5_000))
	require.NoError(t, err)
}

func TestPauseBlocksBalanceMovements(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.Mint(admin, alice, big.NewInt(100)))

	require.ErrorIs(t, l.Pause(alice), common.ErrUnauthorized)
	require.NoError(t, l.Pause(admin))
	require.ErrorIs(t, l.Pause(admin), ErrAlreadyPaused)

	_, err := l.Transfer(alice, bob, big.NewInt(1))
	require.ErrorIs(t, err, ErrPaused)
	require.ErrorIs(t, l.Mint(admin, alice, big.NewInt(1)), ErrPaused)
	require.ErrorIs(t, l.Burn(alice, big.NewInt(1)), ErrPaused)

	require.NoError(t, l.Unpause(admin))
	require.ErrorIs(t, l.Unpause(admin), ErrNotPaused)
	_, err = l.Transfer(alice, bob, big.NewInt(1))
	require.NoError(t, err)
}

func TestMintRespectsRoleAndCap(t *testing.T) {
	l, _ := newTestLedger(t)
	require.ErrorIs(t, l.Mint(alice, alice, big.NewInt(1)), common.ErrUnauthorized)

	require.NoError(t, l.Mint(admin, alice, big.NewInt(9_999_999)))
	err := l.Mint(admin, bob, big.NewInt(2))
	require.ErrorIs(t, err, ErrSupplyCapExceeded)
	require.Equal(t, "10000000", common.Params(err)["max"])
	require.NoError(t, l.Mint(admin, bob, big.NewInt(1)))

	require.NoError(t, l.Burn(alice, big.NewInt(9_999_999)))
	supply, err := l.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, 0, supply.Cmp(big.NewInt(1)))
}

func TestSnapshotHistory(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.SetExcluded(admin, alice, true))
	require.NoError(t, l.Mint(admin, alice, big.NewInt(100)))

	id1, err := l.Snapshot(admin)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id1)

	_, err = l.Transfer(alice, bob, big.NewInt(30))
	require.NoError(t, err)
	_, err = l.Transfer(alice, bob, big.NewInt(5))
	require.NoError(t, err)

	id2, err := l.Snapshot(admin)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id2)
	id3, err := l.Snapshot(admin)
	require.NoError(t, err)

	require.NoError(t, l.Mint(admin, alice, big.NewInt(900)))
	_, err = l.Transfer(alice, bob, big.NewInt(65))
	require.NoError(t, err)

	cases := []struct {
		addr ethcommon.Address
		id   uint64
		want int64
	}{
		{alice, id1, 100},
		{bob, id1, 0},
		{alice, id2, 65},
		{bob, id2, 35},
		{alice, id3, 65},
		{bob, id3, 35},
	}
	for _, tc := range cases {
		got, err := l.BalanceAt(tc.addr, tc.id)
		require.NoError(t, err)
		require.Equalf(t, 0, got.Cmp(big.NewInt(tc.want)), "balance of %s at %d: want %d got %s", tc.addr.Hex(), tc.id, tc.want, got)
	}
	requireBalance(t, l, alice, 900)

	supply1, err := l.TotalSupplyAt(id1)
	require.NoError(t, err)
	require.Equal(t, 0, supply1.Cmp(big.NewInt(100)))
	supply3, err := l.TotalSupplyAt(id3)
	require.NoError(t, err)
	require.Equal(t, 0, supply3.Cmp(big.NewInt(100)))

	_, err = l.BalanceAt(alice, 0)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	_, err = l.BalanceAt(alice, id3+1)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
	_, err = l.Snapshot(bob)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSetFeePolicyEnforcesCeilings(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.SetFeePolicy(admin, fees.Policy{BuyBps: 1001})
	require.True(t, errors.Is(err, fees.ErrFeeTooHigh))

	updated, err := l.SetFeePolicy(admin, fees.Policy{BuyBps: 1000, SellBps: 1000, TransferBps: 500, Version: 99})
	require.NoError(t, err)
	require.Equal(t, fees.DefaultPolicy().Version+1, updated.Version)

	_, err = l.SetFeePolicy(alice, fees.DefaultPolicy())
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSupplyConservedAcrossRandomTransfers(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.EnableTrading(admin))
	require.NoError(t, l.SetAMMPair(admin, pair, true))
	accounts := []ethcommon.Address{alice, bob, carol, pair}
	for _, acct := range accounts {
		require.NoError(t, l.Mint(admin, acct, big.NewInt(1_000_000)))
	}
	everyone := append([]ethcommon.Address{treasury, liquidity, marketing}, accounts...)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		from := accounts[rng.Intn(len(accounts))]
		to := accounts[rng.Intn(len(accounts))]
		amount := big.NewInt(rng.Int63n(400_000))
		_, err := l.Transfer(from, to, amount)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientBalance)
		}

		sum := new(big.Int)
		for _, acct := range everyone {
			bal, err := l.BalanceOf(acct)
			require.NoError(t, err)
			require.True(t, bal.Sign() >= 0)
			sum.Add(sum, bal)
		}
		supply, err := l.TotalSupply()
		require.NoError(t, err)
		require.Equalf(t, 0, sum.Cmp(supply), "iteration %d: balances %s != supply %s", i, sum, supply)
	}
}
