package orders

import (
	"errors"
	"github.com/ariefcatur/stars-storefront/internal/cryptopay"
)

var (
	ErrValidation            = errors.New("invalid order request")
	ErrInsufficientStock     = errors.New("not enough stars in stock")
	ErrBelowMinimumAmount    = cryptopay.ErrBelowMinimum
	ErrOrderNotFound         = errors.New("order not found")
	ErrAlreadyProcessed      = errors.New("order already processed")
	ErrInvalidTransition     = errors.New("illegal order status transition")
	ErrCriticalStockShortage = errors.New("payment captured but stock is exhausted")
)
