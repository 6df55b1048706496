package cryptopay

import "errors"

var (
	ErrBelowMinimum  = errors.New("amount is below the minimum for this currency")
	ErrGateway       = errors.New("payment gateway rejected the request")
	ErrTransient     = errors.New("payment gateway temporarily unavailable")
	ErrNotConfigured = errors.New("payment gateway token is not configured")
)
