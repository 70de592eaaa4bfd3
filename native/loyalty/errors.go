package loyalty

import "errors"

var (
	ErrInsufficientPoints  = errors.New("loyalty: insufficient points")
	ErrDiscountCapExceeded = errors.New("loyalty: discount cap exceeded")
	ErrInvalidCustomer     = errors.New("loyalty: invalid customer")
	ErrInvalidAmount       = errors.New("loyalty: invalid amount")
	ErrInvalidTier         = errors.New("loyalty: invalid tier")
	ErrCustomerNotFound    = errors.New("loyalty: customer not found")
	ErrOverflow            = errors.New("loyalty: counter overflow")
)
