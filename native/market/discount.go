package market

import (
	"math/bits"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
)

const bpsDenominator = 10_000

func discountKey(code string) []byte {
	return []byte("market/discount/" + code)
}

// CreateDiscount registers a new discount code. Codes are case-insensitive
// and cannot be redefined.
func (m *Market) CreateDiscount(caller ethcommon.Address, d DiscountCode) (DiscountCode, error) {
	if err := m.authorizeAdmin(caller); err != nil {
		return DiscountCode{}, err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return DiscountCode{}, err
	}
	d.Code = NormalizeCode(d.Code)
	if d.Code == "" || d.PercentBps == 0 || d.PercentBps > bpsDenominator {
		return DiscountCode{}, common.WithParams(ErrInvalidDiscountCode,
			"code", d.Code, "percentBps", strconv.FormatUint(uint64(d.PercentBps), 10))
	}
	if d.EndsAt != 0 && d.EndsAt < d.StartsAt {
		return DiscountCode{}, common.WithParams(ErrInvalidDiscountCode,
			"code", d.Code, "startsAt", u64(d.StartsAt), "endsAt", u64(d.EndsAt))
	}
	ok, err := m.st.KVGet(discountKey(d.Code), nil)
	if err != nil {
		return DiscountCode{}, err
	}
	if ok {
		return DiscountCode{}, common.WithParams(ErrDiscountExists, "code", d.Code)
	}
	d.UsageCount = 0
	d.Active = true
	if err := m.st.KVPut(discountKey(d.Code), d); err != nil {
		return DiscountCode{}, err
	}
	m.emit(events.MarketDiscountCreated{Code: d.Code, Bps: d.PercentBps})
	return d, nil
}

// Discount returns the stored discount code.
func (m *Market) Discount(code string) (DiscountCode, error) {
	code = NormalizeCode(code)
	var d DiscountCode
	ok, err := m.st.KVGet(discountKey(code), &d)
	if err != nil {
		return DiscountCode{}, err
	}
	if !ok {
		return DiscountCode{}, common.WithParams(ErrInvalidDiscountCode, "code", code, "reason", "unknown")
	}
	return d, nil
}

// evaluateDiscount resolves code against a subtotal and returns the clamped
// discount in cents. It does not consume a use.
func (m *Market) evaluateDiscount(code string, subtotalCents uint64) (DiscountCode, uint64, error) {
	d, err := m.Discount(code)
	if err != nil {
		return DiscountCode{}, 0, err
	}
	reject := func(reason string) error {
		return common.WithParams(ErrInvalidDiscountCode, "code", d.Code, "reason", reason)
	}
	now := m.now()
	switch {
	case !d.Active:
		return DiscountCode{}, 0, reject("inactive")
	case d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit:
		return DiscountCode{}, 0, reject("exhausted")
	case d.StartsAt != 0 && now < d.StartsAt:
		return DiscountCode{}, 0, reject("not started")
	case d.EndsAt != 0 && now > d.EndsAt:
		return DiscountCode{}, 0, reject("expired")
	case subtotalCents < d.MinPurchaseCents:
		return DiscountCode{}, 0, common.WithParams(ErrInvalidDiscountCode,
			"code", d.Code, "reason", "below minimum",
			"required", u64(d.MinPurchaseCents), "available", u64(subtotalCents))
	}
	amount := mulDivBps(subtotalCents, d.PercentBps)
	if d.MaxAmountCents > 0 && amount > d.MaxAmountCents {
		amount = d.MaxAmountCents
	}
	return d, amount, nil
}

// incrementUsage records one successful application of the code.
func (m *Market) incrementUsage(d DiscountCode) (DiscountCode, error) {
	d.UsageCount++
	if err := m.st.KVPut(discountKey(d.Code), d); err != nil {
		return DiscountCode{}, err
	}
	return d, nil
}

func mulDivBps(amount uint64, bps uint32) uint64 {
	hi, lo := bits.Mul64(amount, uint64(bps))
	quo, _ := bits.Div64(hi, lo, bpsDenominator)
	return quo
}

func addUint64(a, b uint64, field string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, common.WithParams(ErrInvalidQuantity, "field", field, "value", u64(a))
	}
	return sum, nil
}
