package market

import "errors"

var (
	ErrOrderNotFound       = errors.New("market: order not found")
	ErrNotOrderOwner       = errors.New("market: not order owner")
	ErrAlreadyPaid         = errors.New("market: order already paid")
	ErrOrderCancelled      = errors.New("market: order cancelled")
	ErrInvalidTransition   = errors.New("market: invalid order transition")
	ErrInsufficientStock   = errors.New("market: insufficient stock")
	ErrInvalidDiscountCode = errors.New("market: invalid discount code")
	ErrDiscountExists      = errors.New("market: discount code exists")
	ErrProductNotFound     = errors.New("market: product not found")
	ErrProductInactive     = errors.New("market: product inactive")
	ErrInvalidProduct      = errors.New("market: invalid product")
	ErrInvalidQuantity     = errors.New("market: invalid quantity")
	ErrEmptyCart           = errors.New("market: cart is empty")
	ErrInvalidCustomer     = errors.New("market: invalid customer")
)
