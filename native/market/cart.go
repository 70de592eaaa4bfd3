package market

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/native/common"
)

func cartKey(customer ethcommon.Address) []byte {
	return append([]byte("market/cart/"), customer.Bytes()...)
}

// AddToCart adds qty units of a product to the customer's cart at the
// product's current price. Adding a product already in the cart raises its
// quantity and refreshes the captured price.
func (m *Market) AddToCart(customer ethcommon.Address, productID, qty uint64) (Cart, error) {
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Cart{}, err
	}
	if customer == (ethcommon.Address{}) {
		return Cart{}, ErrInvalidCustomer
	}
	if qty == 0 {
		return Cart{}, ErrInvalidQuantity
	}
	p, err := m.Product(productID)
	if err != nil {
		return Cart{}, err
	}
	if !p.Active {
		return Cart{}, common.WithParams(ErrProductInactive, "productId", u64(productID))
	}
	cart, err := m.Cart(customer)
	if err != nil {
		return Cart{}, err
	}
	idx := -1
	for i, item := range cart.Items {
		if item.ProductID == productID {
			idx = i
			break
		}
	}
	want := qty
	if idx >= 0 {
		if want, err = addUint64(cart.Items[idx].Quantity, qty, "quantity"); err != nil {
			return Cart{}, err
		}
	}
	if p.Stock < want {
		return Cart{}, common.WithParams(ErrInsufficientStock,
			"productId", u64(productID), "required", u64(want), "available", u64(p.Stock))
	}
	if idx >= 0 {
		cart.Items[idx].Quantity = want
		cart.Items[idx].UnitPriceCents = p.PriceCents
	} else {
		cart.Items = append(cart.Items, CartItem{ProductID: productID, Quantity: qty, UnitPriceCents: p.PriceCents})
	}
	if err := m.st.KVPut(cartKey(customer), cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// RemoveFromCart drops a product line from the cart. Removing a product that
// is not in the cart is a no-op.
func (m *Market) RemoveFromCart(customer ethcommon.Address, productID uint64) (Cart, error) {
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Cart{}, err
	}
	cart, err := m.Cart(customer)
	if err != nil {
		return Cart{}, err
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	if len(cart.Items) == 0 {
		return Cart{}, m.st.KVDelete(cartKey(customer))
	}
	if err := m.st.KVPut(cartKey(customer), cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// Cart returns the customer's cart. A missing cart is empty.
func (m *Market) Cart(customer ethcommon.Address) (Cart, error) {
	var cart Cart
	if _, err := m.st.KVGet(cartKey(customer), &cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}
