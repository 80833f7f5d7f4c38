package casino

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotResolvable     = errors.New("transaction does not require manual resolution")
)
