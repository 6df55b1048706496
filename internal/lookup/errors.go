package lookup

import "errors"

var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrLookup        = errors.New("identity lookup failed")
	ErrTransient     = errors.New("identity lookup temporarily unavailable")
)
