package pricing

import (
	"errors"
	"math/big"

	"shopchain/native/common"
)

// PriceDecimals is the fixed-point precision of oracle prices: a price of
// 150000000 means 1.5 USD per whole token.
const PriceDecimals = 8

// ErrInvalidPrice is returned when no usable (non-zero) price is available.
var ErrInvalidPrice = errors.New("pricing: invalid price")

// USDCentsToTokens converts a USD amount in cents to token base units at the
// given 8-decimal price:
//
//	tokens = cents * 10^(decimals+6) / price
//
// The division truncates. Only integer arithmetic is used.
func USDCentsToTokens(cents uint64, price *big.Int, decimals uint8) (*big.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, common.WithParams(ErrInvalidPrice, "price", priceString(price))
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)+PriceDecimals-2), nil)
	out := new(big.Int).SetUint64(cents)
	out.Mul(out, scale)
	return out.Quo(out, price), nil
}

// TokensToUSDCents is the inverse conversion, truncating to whole cents.
func TokensToUSDCents(tokens *big.Int, price *big.Int, decimals uint8) (uint64, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, common.WithParams(ErrInvalidPrice, "price", priceString(price))
	}
	if tokens == nil || tokens.Sign() <= 0 {
		return 0, nil
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)+PriceDecimals-2), nil)
	out := new(big.Int).Mul(tokens, price)
	out.Quo(out, scale)
	if !out.IsUint64() {
		return 0, errors.New("pricing: amount exceeds uint64 cents")
	}
	return out.Uint64(), nil
}

// Quote pins one price for the duration of a settlement so every conversion
// in it uses the same rate.
type Quote struct {
	Price      *big.Int
	Decimals   uint8
	ObservedAt int64
	Status     PriceStatus
}

// USDCentsToTokens converts cents at the quoted price.
func (q Quote) USDCentsToTokens(cents uint64) (*big.Int, error) {
	return USDCentsToTokens(cents, q.Price, q.Decimals)
}

func priceString(p *big.Int) string {
	if p == nil {
		return "0"
	}
	return p.String()
}
