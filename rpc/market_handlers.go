package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/integrations/archive"
	"shopchain/native/market"
)

type addProductParams struct {
	Name       string `json:"name"`
	PriceCents uint64 `json:"priceCents"`
	Stock      uint64 `json:"stock"`
}

type updateProductParams struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	PriceCents uint64 `json:"priceCents"`
	Active     bool   `json:"active"`
}

type setStockParams struct {
	ID    uint64 `json:"id"`
	Stock uint64 `json:"stock"`
}

type cartItemParams struct {
	ProductID uint64 `json:"productId"`
	Quantity  uint64 `json:"quantity,omitempty"`
}

type checkoutParams struct {
	ShippingAddress string `json:"shippingAddress"`
	Notes           string `json:"notes,omitempty"`
	DiscountCode    string `json:"discountCode,omitempty"`
	Referrer        string `json:"referrer,omitempty"`
}

type discountParams struct {
	Code             string `json:"code"`
	PercentBps       uint32 `json:"percentBps"`
	MaxAmountCents   uint64 `json:"maxAmountCents,omitempty"`
	MinPurchaseCents uint64 `json:"minPurchaseCents,omitempty"`
	UsageLimit       uint64 `json:"usageLimit,omitempty"`
	StartsAt         uint64 `json:"startsAt,omitempty"`
	EndsAt           uint64 `json:"endsAt,omitempty"`
}

type codeParams struct {
	Code string `json:"code"`
}

type listEventsParams struct {
	Type     string `json:"type,omitempty"`
	AfterSeq uint64 `json:"afterSeq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type productResult struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	PriceCents uint64 `json:"priceCents"`
	Stock      uint64 `json:"stock"`
	Active     bool   `json:"active"`
}

type lineItemResult struct {
	ProductID      uint64 `json:"productId"`
	Quantity       uint64 `json:"quantity"`
	UnitPriceCents uint64 `json:"unitPriceCents"`
}

type cartResult struct {
	Items []lineItemResult `json:"items"`
}

type discountResult struct {
	Code             string `json:"code"`
	PercentBps       uint32 `json:"percentBps"`
	MaxAmountCents   uint64 `json:"maxAmountCents"`
	MinPurchaseCents uint64 `json:"minPurchaseCents"`
	UsageLimit       uint64 `json:"usageLimit"`
	UsageCount       uint64 `json:"usageCount"`
	StartsAt         uint64 `json:"startsAt"`
	EndsAt           uint64 `json:"endsAt"`
	Active           bool   `json:"active"`
}

type orderResult struct {
	ID              uint64           `json:"id"`
	Customer        string           `json:"customer"`
	Referrer        string           `json:"referrer,omitempty"`
	Items           []lineItemResult `json:"items"`
	ShippingAddress string           `json:"shippingAddress"`
	Notes           string           `json:"notes,omitempty"`
	DiscountCode    string           `json:"discountCode,omitempty"`
	SubtotalCents   uint64           `json:"subtotalCents"`
	DiscountCents   uint64           `json:"discountCents"`
	TotalCents      uint64           `json:"totalCents"`
	Status          string           `json:"status"`
	CreatedAt       uint64           `json:"createdAt"`
	PaidAt          uint64           `json:"paidAt,omitempty"`
	UpdatedAt       uint64           `json:"updatedAt"`
	PaidTokens      string           `json:"paidTokens,omitempty"`
	Price           string           `json:"price,omitempty"`
	CashbackCents   uint64           `json:"cashbackCents"`
	ReferralCents   uint64           `json:"referralCents"`
}

type settlementResult struct {
	Order          orderResult `json:"order"`
	Tokens         string      `json:"tokens"`
	Fee            string      `json:"fee"`
	CashbackTokens string      `json:"cashbackTokens"`
	ReferralTokens string      `json:"referralTokens"`
	TierUpgraded   bool        `json:"tierUpgraded"`
}

type eventResult struct {
	Seq        uint64            `json:"seq"`
	Operation  string            `json:"operation"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	At         int64             `json:"at"`
}

func newProductResult(p market.Product) productResult {
	return productResult{ID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Stock: p.Stock, Active: p.Active}
}

func newCartResult(c market.Cart) cartResult {
	items := make([]lineItemResult, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, lineItemResult{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return cartResult{Items: items}
}

func newDiscountResult(d market.DiscountCode) discountResult {
	return discountResult{
		Code:             d.Code,
		PercentBps:       d.PercentBps,
		MaxAmountCents:   d.MaxAmountCents,
		MinPurchaseCents: d.MinPurchaseCents,
		UsageLimit:       d.UsageLimit,
		UsageCount:       d.UsageCount,
		StartsAt:         d.StartsAt,
		EndsAt:           d.EndsAt,
		Active:           d.Active,
	}
}

func newOrderResult(o market.Order) orderResult {
	items := make([]lineItemResult, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, lineItemResult{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	out := orderResult{
		ID:              o.ID,
		Customer:        formatAddress(o.Customer),
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		DiscountCode:    o.DiscountCode,
		SubtotalCents:   o.SubtotalCents,
		DiscountCents:   o.DiscountCents,
		TotalCents:      o.TotalCents,
		Status:          o.Status.String(),
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		UpdatedAt:       o.UpdatedAt,
		CashbackCents:   o.CashbackCents,
		ReferralCents:   o.ReferralCents,
	}
	if o.Referrer != (ethcommon.Address{}) {
		out.Referrer = formatAddress(o.Referrer)
	}
	if o.PaidTokens != nil {
		out.PaidTokens = o.PaidTokens.String()
	}
	if o.Price != nil {
		out.Price = o.Price.String()
	}
	return out
}

func (s *Server) marketMethods() map[string]method {
	return map[string]method{
		"market_product":        {fn: s.handleMarketProduct},
		"market_products":       {fn: s.handleMarketProducts},
		"market_cart":           {fn: s.handleMarketCart},
		"market_discount":       {fn: s.handleMarketDiscount},
		"market_order":          {fn: s.handleMarketOrder},
		"market_orders":         {fn: s.handleMarketOrders},
		"market_listEvents":     {fn: s.handleMarketListEvents},
		"market_addProduct":     {auth: true, fn: s.handleMarketAddProduct},
		"market_updateProduct":  {auth: true, fn: s.handleMarketUpdateProduct},
		"market_setStock":       {auth: true, fn: s.handleMarketSetStock},
		"market_createDiscount": {auth: true, fn: s.handleMarketCreateDiscount},
		"market_addToCart":      {auth: true, fn: s.handleMarketAddToCart},
		"market_removeFromCart": {auth: true, fn: s.handleMarketRemoveFromCart},
		"market_checkout":       {auth: true, fn: s.handleMarketCheckout},
		"market_payOrder":       {auth: true, fn: s.handleMarketPayOrder},
		"market_cancelOrder":    {auth: true, fn: s.orderTransition("market_cancelOrder", s.marketCancel)},
		"market_fulfillOrder":   {auth: true, fn: s.orderTransition("market_fulfillOrder", s.marketFulfill)},
		"market_refundOrder":    {auth: true, fn: s.orderTransition("market_refundOrder", s.marketRefund)},
	}
}

func (s *Server) handleMarketProduct(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params idParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	product, err := core.Query(s.node.Executor(), func() (market.Product, error) {
		return s.node.Market().Product(params.ID)
	})
	if err != nil {
		return nil, err
	}
	return newProductResult(product), nil
}

func (s *Server) handleMarketProducts(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	products, err := core.Query(s.node.Executor(), s.node.Market().Products)
	if err != nil {
		return nil, err
	}
	out := make([]productResult, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResult(p))
	}
	return out, nil
}

func (s *Server) handleMarketCart(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	customer, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	cart, err := core.Query(s.node.Executor(), func() (market.Cart, error) {
		return s.node.Market().Cart(customer)
	})
	if err != nil {
		return nil, err
	}
	return newCartResult(cart), nil
}

func (s *Server) handleMarketDiscount(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params codeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	d, err := core.Query(s.node.Executor(), func() (market.DiscountCode, error) {
		return s.node.Market().Discount(params.Code)
	})
	if err != nil {
		return nil, err
	}
	return newDiscountResult(d), nil
}

func (s *Server) handleMarketOrder(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params idParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	order, err := core.Query(s.node.Executor(), func() (market.Order, error) {
		return s.node.Market().Order(params.ID)
	})
	if err != nil {
		return nil, err
	}
	return newOrderResult(order), nil
}

func (s *Server) handleMarketOrders(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	customer, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	orders, err := core.Query(s.node.Executor(), func() ([]market.Order, error) {
		return s.node.Market().OrdersOf(customer)
	})
	if err != nil {
		return nil, err
	}
	out := make([]orderResult, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResult(o))
	}
	return out, nil
}

// handleMarketListEvents pages through the committed event archive. It is
// only available when the node runs with an archive.
func (s *Server) handleMarketListEvents(ctx context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	if s.cfg.Archive == nil {
		return nil, invalidParams("event archive is not enabled")
	}
	var params listEventsParams
	if len(raw) > 0 {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	records, err := s.cfg.Archive.List(ctx, archive.Filter{Type: params.Type, AfterSeq: params.AfterSeq, Limit: params.Limit})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]eventResult, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Attrs()
		if err != nil {
			return nil, err
		}
		out = append(out, eventResult{Seq: rec.Seq, Operation: rec.Operation, Type: rec.Type, Attributes: attrs, At: rec.At.Unix()})
	}
	return out, nil
}

func (s *Server) handleMarketAddProduct(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addProductParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	id, err := core.Do(ctx, s.node.Executor(), "market_addProduct", func() (uint64, error) {
		return s.node.Market().AddProduct(caller, params.Name, params.PriceCents, params.Stock)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"id": id}, nil
}

func (s *Server) handleMarketUpdateProduct(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params updateProductParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "market_updateProduct", func() error {
		return s.node.Market().UpdateProduct(caller, params.ID, params.Name, params.PriceCents, params.Active)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleMarketSetStock(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params setStockParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "market_setStock", func() error {
		return s.node.Market().SetStock(caller, params.ID, params.Stock)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleMarketCreateDiscount(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params discountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	d, err := core.Do(ctx, s.node.Executor(), "market_createDiscount", func() (market.DiscountCode, error) {
		return s.node.Market().CreateDiscount(caller, market.DiscountCode{
			Code:             params.Code,
			PercentBps:       params.PercentBps,
			MaxAmountCents:   params.MaxAmountCents,
			MinPurchaseCents: params.MinPurchaseCents,
			UsageLimit:       params.UsageLimit,
			StartsAt:         params.StartsAt,
			EndsAt:           params.EndsAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return newDiscountResult(d), nil
}

func (s *Server) handleMarketAddToCart(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params cartItemParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	cart, err := core.Do(ctx, s.node.Executor(), "market_addToCart", func() (market.Cart, error) {
		return s.node.Market().AddToCart(caller, params.ProductID, params.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return newCartResult(cart), nil
}

func (s *Server) handleMarketRemoveFromCart(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params cartItemParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	cart, err := core.Do(ctx, s.node.Executor(), "market_removeFromCart", func() (market.Cart, error) {
		return s.node.Market().RemoveFromCart(caller, params.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return newCartResult(cart), nil
}

func (s *Server) handleMarketCheckout(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params checkoutParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	referrer, err := parseOptionalAddress("referrer", params.Referrer)
	if err != nil {
		return nil, err
	}
	order, err := core.Do(ctx, s.node.Executor(), "market_checkout", func() (market.Order, error) {
		return s.node.Market().CreateOrderFromCart(caller, market.CheckoutRequest{
			ShippingAddress: params.ShippingAddress,
			Notes:           params.Notes,
			DiscountCode:    params.DiscountCode,
			Referrer:        referrer,
		})
	})
	if err != nil {
		return nil, err
	}
	return newOrderResult(order), nil
}

func (s *Server) handleMarketPayOrder(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params idParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	settlement, err := core.Do(ctx, s.node.Executor(), "market_payOrder", func() (market.Settlement, error) {
		return s.node.Market().PayOrder(caller, params.ID)
	})
	if err != nil {
		return nil, err
	}
	return settlementResult{
		Order:          newOrderResult(settlement.Order),
		Tokens:         formatAmount(settlement.Tokens),
		Fee:            formatAmount(settlement.Fee),
		CashbackTokens: formatAmount(settlement.CashbackTokens),
		ReferralTokens: formatAmount(settlement.ReferralTokens),
		TierUpgraded:   settlement.TierUpgraded,
	}, nil
}

func (s *Server) marketCancel(caller ethcommon.Address, id uint64) (market.Order, error) {
	return s.node.Market().CancelOrder(caller, id)
}

func (s *Server) marketFulfill(caller ethcommon.Address, id uint64) (market.Order, error) {
	return s.node.Market().FulfillOrder(caller, id)
}

func (s *Server) marketRefund(caller ethcommon.Address, id uint64) (market.Order, error) {
	return s.node.Market().RefundOrder(caller, id)
}

// orderTransition adapts a single order status change to a handler.
func (s *Server) orderTransition(op string, apply func(caller ethcommon.Address, id uint64) (market.Order, error)) handlerFunc {
	return func(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
		var params idParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		order, err := core.Do(ctx, s.node.Executor(), op, func() (market.Order, error) {
			return apply(caller, params.ID)
		})
		if err != nil {
			return nil, err
		}
		return newOrderResult(order), nil
	}
}
