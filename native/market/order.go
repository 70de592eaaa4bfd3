package market

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
)

var orderSeqKey = []byte("market/order/seq")

func orderKey(id uint64) []byte {
	return []byte("market/order/" + u64(id))
}

func customerOrdersKey(customer ethcommon.Address) []byte {
	return append([]byte("market/orders/"), customer.Bytes()...)
}

// CreateOrderFromCart turns the customer's cart into a placed order. Line
// items keep the prices captured in the cart; stock is validated but only
// taken when the order is paid.
func (m *Market) CreateOrderFromCart(customer ethcommon.Address, req CheckoutRequest) (order Order, err error) {
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Order{}, err
	}
	if customer == (ethcommon.Address{}) {
		return Order{}, ErrInvalidCustomer
	}
	cart, err := m.Cart(customer)
	if err != nil {
		return Order{}, err
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	cp := m.st.Checkpoint()
	defer func() {
		if err != nil {
			m.st.RevertTo(cp)
		}
	}()

	items := make([]LineItem, 0, len(cart.Items))
	var subtotal uint64
	for _, item := range cart.Items {
		p, err := m.Product(item.ProductID)
		if err != nil {
			return Order{}, err
		}
		if !p.Active {
			return Order{}, common.WithParams(ErrProductInactive, "productId", u64(p.ID))
		}
		if p.Stock < item.Quantity {
			return Order{}, common.WithParams(ErrInsufficientStock,
				"productId", u64(p.ID), "required", u64(item.Quantity), "available", u64(p.Stock))
		}
		line, err := mulUint64(item.UnitPriceCents, item.Quantity)
		if err != nil {
			return Order{}, err
		}
		if subtotal, err = addUint64(subtotal, line, "subtotal"); err != nil {
			return Order{}, err
		}
		items = append(items, LineItem(item))
	}

	id, err := m.nextID(orderSeqKey)
	if err != nil {
		return Order{}, err
	}
	now := m.now()
	order = Order{
		ID:              id,
		Customer:        customer,
		Referrer:        req.Referrer,
		Items:           items,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Notes:           strings.TrimSpace(req.Notes),
		SubtotalCents:   subtotal,
		TotalCents:      subtotal,
		Status:          OrderPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if code := NormalizeCode(req.DiscountCode); code != "" {
		d, amount, err := m.evaluateDiscount(code, subtotal)
		if err != nil {
			return Order{}, err
		}
		if d, err = m.incrementUsage(d); err != nil {
			return Order{}, err
		}
		order.DiscountCode = d.Code
		order.DiscountCents = amount
		order.TotalCents = subtotal - amount
		m.emit(events.MarketDiscountApplied{
			OrderID:     id,
			Code:        d.Code,
			Customer:    customer,
			AmountCents: amount,
			UsageCount:  d.UsageCount,
		})
	}

	if err := m.putOrder(order); err != nil {
		return Order{}, err
	}
	if err := m.st.KVAppend(customerOrdersKey(customer), []byte(u64(id))); err != nil {
		return Order{}, err
	}
	if err := m.st.KVDelete(cartKey(customer)); err != nil {
		return Order{}, err
	}
	m.emit(events.MarketOrderCreated{
		ID:            id,
		Customer:      customer,
		Items:         len(items),
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
	})
	return order, nil
}

// Order returns the order with the given id.
func (m *Market) Order(id uint64) (Order, error) {
	var order Order
	ok, err := m.st.KVGet(orderKey(id), &order)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, common.WithParams(ErrOrderNotFound, "orderId", u64(id))
	}
	return order, nil
}

// OrdersOf lists the orders placed by customer, oldest first.
func (m *Market) OrdersOf(customer ethcommon.Address) ([]Order, error) {
	var ids [][]byte
	if err := m.st.KVGetList(customerOrdersKey(customer), &ids); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(ids))
	for _, raw := range ids {
		id, err := parseUint(string(raw))
		if err != nil {
			return nil, err
		}
		order, err := m.Order(id)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

// CancelOrder cancels a placed order. The owner or a market admin may cancel;
// the discount use is not returned.
func (m *Market) CancelOrder(caller ethcommon.Address, id uint64) (Order, error) {
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Order{}, err
	}
	order, err := m.Order(id)
	if err != nil {
		return Order{}, err
	}
	if caller != order.Customer {
		if err := m.authorizeAdmin(caller); err != nil {
			return Order{}, common.WithParams(ErrNotOrderOwner, "orderId", u64(id), "caller", caller.Hex())
		}
	}
	if order.Status != OrderPlaced {
		return Order{}, transitionError(order, OrderCancelled)
	}
	return m.transition(order, OrderCancelled, caller)
}

// FulfillOrder marks a paid order as shipped.
func (m *Market) FulfillOrder(caller ethcommon.Address, id uint64) (Order, error) {
	if err := m.authorizeAdmin(caller); err != nil {
		return Order{}, err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Order{}, err
	}
	order, err := m.Order(id)
	if err != nil {
		return Order{}, err
	}
	if order.Status != OrderPaid {
		return Order{}, transitionError(order, OrderFulfilled)
	}
	return m.transition(order, OrderFulfilled, caller)
}

func (m *Market) transition(order Order, to OrderStatus, by ethcommon.Address) (Order, error) {
	order.Status = to
	order.UpdatedAt = m.now()
	if err := m.putOrder(order); err != nil {
		return Order{}, err
	}
	m.emit(events.MarketOrderTransition{ID: order.ID, Customer: order.Customer, Status: to.String(), By: by})
	return order, nil
}

func (m *Market) putOrder(order Order) error {
	return m.st.KVPut(orderKey(order.ID), order)
}

func transitionError(order Order, to OrderStatus) error {
	return common.WithParams(ErrInvalidTransition,
		"orderId", u64(order.ID), "from", order.Status.String(), "to", to.String())
}
