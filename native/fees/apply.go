package fees

import (
	"errors"
	"fmt"
	"math/big"
)

// Fee kinds select which rate of the policy applies to a transfer.
const (
	KindNone     = "none"
	KindBuy      = "buy"
	KindSell     = "sell"
	KindTransfer = "transfer"
)

const (
	// BpsDenominator is the basis point scale used by every rate.
	BpsDenominator = 10_000
	MaxBuyBps      = 1_000
	MaxSellBps     = 1_000
	MaxTransferBps = 500

	// Split of a collected fee between the recipients, in percent. The
	// marketing share absorbs integer division remainders.
	TreasurySharePct  = 40
	LiquiditySharePct = 40
	MarketingSharePct = 20
)

var ErrFeeTooHigh = errors.New("fees: rate exceeds ceiling")

// Policy holds the transfer fee rates. Version increases with every update so
// consumers can tell which policy priced a transfer.
type Policy struct {
	BuyBps      uint32
	SellBps     uint32
	TransferBps uint32
	Version     uint64
}

// DefaultPolicy returns the launch rates: 3% on AMM buys and sells, 1% on
// wallet to wallet transfers.
func DefaultPolicy() Policy {
	return Policy{BuyBps: 300, SellBps: 300, TransferBps: 100, Version: 1}
}

// Validate checks every rate against its ceiling.
func (p Policy) Validate() error {
	if p.BuyBps > MaxBuyBps {
		return fmt.Errorf("%w: buy %d > %d", ErrFeeTooHigh, p.BuyBps, MaxBuyBps)
	}
	if p.SellBps > MaxSellBps {
		return fmt.Errorf("%w: sell %d > %d", ErrFeeTooHigh, p.SellBps, MaxSellBps)
	}
	if p.TransferBps > MaxTransferBps {
		return fmt.Errorf("%w: transfer %d > %d", ErrFeeTooHigh, p.TransferBps, MaxTransferBps)
	}
	return nil
}

// Rate returns the basis points charged for the supplied kind.
func (p Policy) Rate(kind string) uint32 {
	switch kind {
	case KindBuy:
		return p.BuyBps
	case KindSell:
		return p.SellBps
	case KindTransfer:
		return p.TransferBps
	default:
		return 0
	}
}

// Classify picks the fee kind for a transfer. Excluded parties never pay;
// otherwise a transfer out of an AMM pair is a buy and a transfer into one is
// a sell.
func Classify(fromExcluded, toExcluded, fromPair, toPair bool) string {
	switch {
	case fromExcluded || toExcluded:
		return KindNone
	case fromPair:
		return KindBuy
	case toPair:
		return KindSell
	default:
		return KindTransfer
	}
}

// ApplyInput captures the context required to evaluate the fee obligation for
// a transfer.
type ApplyInput struct {
	Kind   string
	Gross  *big.Int
	Policy Policy
}

// ApplyResult summarises the computed fee and the amount left for the
// recipient.
type ApplyResult struct {
	Kind          string
	Bps           uint32
	Fee           *big.Int
	Net           *big.Int
	PolicyVersion uint64
}

// Apply evaluates the policy for the supplied transfer. The fee is truncated
// towards zero and never exceeds the gross amount.
func Apply(input ApplyInput) ApplyResult {
	bps := input.Policy.Rate(input.Kind)
	result := ApplyResult{Kind: input.Kind, Bps: bps, PolicyVersion: input.Policy.Version}
	result.Fee = big.NewInt(0)
	if input.Gross != nil {
		result.Net = new(big.Int).Set(input.Gross)
	} else {
		result.Net = big.NewInt(0)
	}
	if result.Net.Sign() <= 0 || bps == 0 {
		return result
	}
	fee := new(big.Int).Mul(result.Net, big.NewInt(int64(bps)))
	fee = fee.Div(fee, big.NewInt(BpsDenominator))
	if fee.Sign() <= 0 {
		return result
	}
	if fee.Cmp(result.Net) >= 0 {
		result.Fee = new(big.Int).Set(result.Net)
		result.Net = big.NewInt(0)
		return result
	}
	result.Fee = fee
	result.Net = new(big.Int).Sub(result.Net, fee)
	return result
}

// Distribution is the split of one collected fee.
type Distribution struct {
	Treasury  *big.Int
	Liquidity *big.Int
	Marketing *big.Int
}

// Split divides fee 40/40/20. The three shares always sum to fee.
func Split(fee *big.Int) Distribution {
	if fee == nil || fee.Sign() <= 0 {
		return Distribution{Treasury: big.NewInt(0), Liquidity: big.NewInt(0), Marketing: big.NewInt(0)}
	}
	hundred := big.NewInt(100)
	treasury := new(big.Int).Mul(fee, big.NewInt(TreasurySharePct))
	treasury.Quo(treasury, hundred)
	liquidity := new(big.Int).Mul(fee, big.NewInt(LiquiditySharePct))
	liquidity.Quo(liquidity, hundred)
	marketing := new(big.Int).Sub(fee, treasury)
	marketing.Sub(marketing, liquidity)
	return Distribution{Treasury: treasury, Liquidity: liquidity, Marketing: marketing}
}

// Total returns the sum of all shares.
func (d Distribution) Total() *big.Int {
	total := new(big.Int)
	for _, part := range []*big.Int{d.Treasury, d.Liquidity, d.Marketing} {
		if part != nil {
			total.Add(total, part)
		}
	}
	return total
}
