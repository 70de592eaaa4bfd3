package fees

import (
	"errors"
	"math/big"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name                               string
		fromExcl, toExcl, fromPair, toPair bool
		want                               string
	}{
		{"excluded sender", true, false, false, true, KindNone},
		{"excluded recipient", false, true, true, false, KindNone},
		{"buy from pair", false, false, true, false, KindBuy},
		{"sell into pair", false, false, false, true, KindSell},
		{"wallet transfer", false, false, false, false, KindTransfer},
	}
	for _, tc := range cases {
		if got := Classify(tc.fromExcl, tc.toExcl, tc.fromPair, tc.toPair); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestApplySellFee(t *testing.T) {
	policy := Policy{BuyBps: 300, SellBps: 300, TransferBps: 100, Version: 4}
	res := Apply(ApplyInput{Kind: KindSell, Gross: big.NewInt(1_000_000), Policy: policy})
	if res.Fee.Cmp(big.NewInt(30_000)) != 0 {
		t.Fatalf("unexpected fee %s", res.Fee)
	}
	if res.Net.Cmp(big.NewInt(970_000)) != 0 {
		t.Fatalf("unexpected net %s", res.Net)
	}
	if res.PolicyVersion != 4 || res.Bps != 300 {
		t.Fatalf("unexpected policy metadata %+v", res)
	}

	dist := Split(res.Fee)
	if dist.Treasury.Cmp(big.NewInt(12_000)) != 0 || dist.Liquidity.Cmp(big.NewInt(12_000)) != 0 || dist.Marketing.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("unexpected split %s/%s/%s", dist.Treasury, dist.Liquidity, dist.Marketing)
	}
}

func TestApplyNoFeeKind(t *testing.T) {
	res := Apply(ApplyInput{Kind: KindNone, Gross: big.NewInt(500), Policy: DefaultPolicy()})
	if res.Fee.Sign() != 0 || res.Net.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("excluded transfers must not pay fees: %+v", res)
	}
}

func TestApplyTruncatesDust(t *testing.T) {
	res := Apply(ApplyInput{Kind: KindTransfer, Gross: big.NewInt(99), Policy: DefaultPolicy()})
	if res.Fee.Sign() != 0 || res.Net.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("fee below one base unit must truncate to zero: %+v", res)
	}
}

func TestSplitAlwaysSumsToFee(t *testing.T) {
	for _, v := range []int64{0, 1, 2, 3, 7, 11, 99, 1001, 123457} {
		fee := big.NewInt(v)
		if got := Split(fee).Total(); got.Cmp(fee) != 0 {
			t.Fatalf("split of %d sums to %s", v, got)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := []Policy{
		{BuyBps: MaxBuyBps + 1},
		{SellBps: MaxSellBps + 1},
		{TransferBps: MaxTransferBps + 1},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrFeeTooHigh) {
			t.Fatalf("expected ErrFeeTooHigh for %+v, got %v", p, err)
		}
	}
	edge := Policy{BuyBps: MaxBuyBps, SellBps: MaxSellBps, TransferBps: MaxTransferBps}
	if err := edge.Validate(); err != nil {
		t.Fatalf("ceilings are inclusive: %v", err)
	}
}
