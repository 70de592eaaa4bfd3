package pricing

import (
	"errors"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/storage"
)

func TestUSDCentsToTokens(t *testing.T) {
	cases := []struct {
		name  string
		cents uint64
		price int64
		want  string
	}{
		{"one dollar at one dollar", 100, 100_000_000, "1000000000000000000"},
		{"ten dollars at fifty cents", 1_000, 50_000_000, "20000000000000000000"},
		{"one cent at three dollars", 1, 300_000_000, "3333333333333333"},
		{"zero cents", 0, 100_000_000, "0"},
	}
	for _, tc := range cases {
		got, err := USDCentsToTokens(tc.cents, big.NewInt(tc.price), 18)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got.String() != tc.want {
			t.Fatalf("%s: want %s got %s", tc.name, tc.want, got)
		}
	}
}

func TestUSDCentsToTokensRejectsZeroPrice(t *testing.T) {
	if _, err := USDCentsToTokens(100, big.NewInt(0), 18); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := USDCentsToTokens(100, nil, 18); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil price, got %v", err)
	}
}

func TestTokensToUSDCentsRoundTrip(t *testing.T) {
	price := big.NewInt(125_000_000)
	tokens, err := USDCentsToTokens(12_000, price, 18)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	cents, err := TokensToUSDCents(tokens, price, 18)
	if err != nil {
		t.Fatalf("convert back: %v", err)
	}
	if cents != 12_000 {
		t.Fatalf("expected 12000 cents, got %d", cents)
	}
}

func newTestOracle(t *testing.T, guard Guard) (*Oracle, ethcommon.Address, *time.Time) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	updater := ethcommon.HexToAddress("0x0e")
	if err := mgr.SetRole(common.RoleOracle, updater.Bytes()); err != nil {
		t.Fatalf("set role: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	o := NewOracle(mgr, guard)
	o.SetNowFunc(func() time.Time { return now })
	return o, updater, &now
}

func TestOracleLatestAndHistory(t *testing.T) {
	o, updater, _ := newTestOracle(t, Guard{HistoryLimit: 3})

	if _, err := o.GetPrice(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice before any update, got %v", err)
	}
	if _, err := o.SetPrice(ethcommon.HexToAddress("0x99"), big.NewInt(1), 0); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := o.SetPrice(updater, big.NewInt(0), 0); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero price, got %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		if _, err := o.SetPrice(updater, big.NewInt(i*100_000_000), 1_700_000_000-100+i); err != nil {
			t.Fatalf("set price %d: %v", i, err)
		}
	}
	price, err := o.GetPrice()
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("unexpected latest price %s", price)
	}

	history, err := o.History(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history must be bounded to 3 entries, got %d", len(history))
	}
	if history[0].Price.Cmp(big.NewInt(500_000_000)) != 0 || history[2].Price.Cmp(big.NewInt(300_000_000)) != 0 {
		t.Fatalf("history must be newest first: %s..%s", history[0].Price, history[2].Price)
	}
	if history[0].ObservedAt != 1_700_000_000-95 {
		t.Fatalf("unexpected observation timestamp %d", history[0].ObservedAt)
	}
}

func TestOracleStalenessGuard(t *testing.T) {
	o, updater, now := newTestOracle(t, Guard{MaxAgeSeconds: 60})
	if _, err := o.SetPrice(updater, big.NewInt(100_000_000), 0); err != nil {
		t.Fatalf("set price: %v", err)
	}
	quote, err := o.Quote(18)
	if err != nil {
		t.Fatalf("fresh quote: %v", err)
	}
	if quote.Status != PriceStatusOK {
		t.Fatalf("unexpected status %s", quote.Status)
	}

	*now = now.Add(2 * time.Minute)
	if _, err := o.Quote(18); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
}

func TestOracleFlagsDeviation(t *testing.T) {
	o, updater, _ := newTestOracle(t, Guard{MaxDeviationBps: 1_000})
	if _, err := o.SetPrice(updater, big.NewInt(100_000_000), 0); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := o.SetPrice(updater, big.NewInt(120_000_000), 0); err != nil {
		t.Fatalf("set price: %v", err)
	}
	status, err := o.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != PriceStatusDeviant {
		t.Fatalf("expected deviant status, got %s", status)
	}
}
