package escrow

import "errors"

// Protocol errors
var (
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrInvoiceNotPaid        = errors.New("invoice has not been paid")
	ErrInvoiceAlreadyClaimed = errors.New("invoice has already been claimed")
	ErrNotInvoiceOwner       = errors.New("invoice belongs to another account")
	ErrInvoiceNotPending     = errors.New("invoice is no longer pending")
	ErrNotTopupInvoice       = errors.New("invoice was not issued for a top-up")

	// ErrPendingReconciliation is returned when a value-moving call ended
	// ambiguously. No further mutation happens until a follow-up
	// authoritative status check resolves the outcome.
	ErrPendingReconciliation = errors.New("operation outcome pending reconciliation")
)
