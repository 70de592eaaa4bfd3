package market

import (
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// OrderStatus enumerates the order lifecycle. A customer's cart is the state
// before PLACED; CreateOrderFromCart turns it into a placed order.
type OrderStatus uint8

const (
	OrderPlaced OrderStatus = iota + 1
	OrderPaid
	OrderFulfilled
	OrderCancelled
	OrderRefunded
)

// Valid reports whether the status is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	return s >= OrderPlaced && s <= OrderRefunded
}

func (s OrderStatus) String() string {
	switch s {
	case OrderPlaced:
		return "placed"
	case OrderPaid:
		return "paid"
	case OrderFulfilled:
		return "fulfilled"
	case OrderCancelled:
		return "cancelled"
	case OrderRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Product is a catalog entry. Prices are USD cents.
type Product struct {
	ID         uint64
	Name       string
	PriceCents uint64
	Stock      uint64
	Active     bool
}

// CartItem is one product line in a cart with the unit price captured when
// it was added.
type CartItem struct {
	ProductID      uint64
	Quantity       uint64
	UnitPriceCents uint64
}

// Cart is the pending selection of a customer.
type Cart struct {
	Items []CartItem
}

// DiscountCode is a promotional code. A zero MaxAmountCents means the
// discount is uncapped; a zero UsageLimit means unlimited uses.
type DiscountCode struct {
	Code             string
	PercentBps       uint32
	MaxAmountCents   uint64
	MinPurchaseCents uint64
	UsageLimit       uint64
	UsageCount       uint64
	StartsAt         uint64
	EndsAt           uint64
	Active           bool
}

// NormalizeCode canonicalises discount codes for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LineItem is one product line of an order.
type LineItem struct {
	ProductID      uint64
	Quantity       uint64
	UnitPriceCents uint64
}

// Order is a placed order and its settlement record.
type Order struct {
	ID              uint64
	Customer        ethcommon.Address
	Referrer        ethcommon.Address
	Items           []LineItem
	ShippingAddress string
	Notes           string
	DiscountCode    string
	SubtotalCents   uint64
	DiscountCents   uint64
	TotalCents      uint64
	Status          OrderStatus
	CreatedAt       uint64
	PaidAt          uint64
	UpdatedAt       uint64
	PaidTokens      *big.Int
	Price           *big.Int
	CashbackCents   uint64
	ReferralCents   uint64
}

// CheckoutRequest carries the customer supplied details of a checkout.
type CheckoutRequest struct {
	ShippingAddress string
	Notes           string
	DiscountCode    string
	Referrer        ethcommon.Address
}

// Settlement reports what PayOrder moved.
type Settlement struct {
	Order          Order
	Tokens         *big.Int
	Fee            *big.Int
	CashbackTokens *big.Int
	ReferralTokens *big.Int
	TierUpgraded   bool
}
