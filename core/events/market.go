package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	TypeMarketProductUpdated  = "market.product.updated"
	TypeMarketDiscountCreated = "market.discount.created"
	// TypeMarketDiscountApplied is emitted when a discount code reduces an
	// order total.
	TypeMarketDiscountApplied = "market.discount.applied"
	TypeMarketOrderCreated    = "market.order.created"
	// TypeMarketOrderPaid is emitted once the whole settlement of an order
	// has succeeded.
	TypeMarketOrderPaid = "market.order.paid"
	// TypeMarketCashbackIssued is emitted when cashback tokens reach the
	// buyer.
	TypeMarketCashbackIssued = "market.cashback.issued"

	typeMarketOrderPrefix = "market.order."
)

type MarketProductUpdated struct {
	ID         uint64
	Name       string
	PriceCents uint64
	Stock      uint64
	Active     bool
}

func (MarketProductUpdated) EventType() string { return TypeMarketProductUpdated }

func (e MarketProductUpdated) Event() *types.Event {
	return &types.Event{Type: TypeMarketProductUpdated, Attributes: map[string]string{
		"id":         formatUint(e.ID),
		"name":       e.Name,
		"priceCents": formatUint(e.PriceCents),
		"stock":      formatUint(e.Stock),
		"active":     strconv.FormatBool(e.Active),
	}}
}

type MarketDiscountCreated struct {
	Code string
	Bps  uint32
}

func (MarketDiscountCreated) EventType() string { return TypeMarketDiscountCreated }

func (e MarketDiscountCreated) Event() *types.Event {
	return &types.Event{Type: TypeMarketDiscountCreated, Attributes: map[string]string{
		"code": e.Code,
		"bps":  strconv.FormatUint(uint64(e.Bps), 10),
	}}
}

type MarketDiscountApplied struct {
	OrderID     uint64
	Code        string
	Customer    common.Address
	AmountCents uint64
	UsageCount  uint64
}

func (MarketDiscountApplied) EventType() string { return TypeMarketDiscountApplied }

func (e MarketDiscountApplied) Event() *types.Event {
	return &types.Event{Type: TypeMarketDiscountApplied, Attributes: map[string]string{
		"orderId":     formatUint(e.OrderID),
		"code":        e.Code,
		"customer":    formatAddress(e.Customer),
		"amountCents": formatUint(e.AmountCents),
		"usageCount":  formatUint(e.UsageCount),
	}}
}

type MarketOrderCreated struct {
	ID            uint64
	Customer      common.Address
	Items         int
	SubtotalCents uint64
	DiscountCents uint64
	TotalCents    uint64
}

func (MarketOrderCreated) EventType() string { return TypeMarketOrderCreated }

func (e MarketOrderCreated) Event() *types.Event {
	return &types.Event{Type: TypeMarketOrderCreated, Attributes: map[string]string{
		"id":            formatUint(e.ID),
		"customer":      formatAddress(e.Customer),
		"items":         strconv.Itoa(e.Items),
		"subtotalCents": formatUint(e.SubtotalCents),
		"discountCents": formatUint(e.DiscountCents),
		"totalCents":    formatUint(e.TotalCents),
	}}
}

type MarketOrderPaid struct {
	ID            uint64
	Customer      common.Address
	TotalCents    uint64
	Tokens        *big.Int
	Price         *big.Int
	CashbackCents uint64
	ReferralCents uint64
}

func (MarketOrderPaid) EventType() string { return TypeMarketOrderPaid }

func (e MarketOrderPaid) Event() *types.Event {
	return &types.Event{Type: TypeMarketOrderPaid, Attributes: map[string]string{
		"id":            formatUint(e.ID),
		"customer":      formatAddress(e.Customer),
		"totalCents":    formatUint(e.TotalCents),
		"tokens":        formatAmount(e.Tokens),
		"price":         formatAmount(e.Price),
		"cashbackCents": formatUint(e.CashbackCents),
		"referralCents": formatUint(e.ReferralCents),
	}}
}

// MarketOrderTransition covers the terminal order transitions. The event type
// is derived from the new status, e.g. market.order.refunded.
type MarketOrderTransition struct {
	ID       uint64
	Customer common.Address
	Status   string
	By       common.Address
}

func (e MarketOrderTransition) EventType() string { return typeMarketOrderPrefix + e.Status }

func (e MarketOrderTransition) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"id":       formatUint(e.ID),
		"customer": formatAddress(e.Customer),
		"status":   e.Status,
		"by":       formatAddress(e.By),
	}}
}

type MarketCashbackIssued struct {
	OrderID  uint64
	Customer common.Address
	Cents    uint64
	Tokens   *big.Int
}

func (MarketCashbackIssued) EventType() string { return TypeMarketCashbackIssued }

func (e MarketCashbackIssued) Event() *types.Event {
	return &types.Event{Type: TypeMarketCashbackIssued, Attributes: map[string]string{
		"orderId":  formatUint(e.OrderID),
		"customer": formatAddress(e.Customer),
		"cents":    formatUint(e.Cents),
		"tokens":   formatAmount(e.Tokens),
	}}
}
