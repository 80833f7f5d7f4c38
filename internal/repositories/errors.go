package repositories

import "errors"

// Repository errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrCasinoTxNotFound    = errors.New("casino transaction not found")
	ErrEscrowNotConfigured = errors.New("escrow account not configured")
)
