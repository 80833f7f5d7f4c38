package models

import (
	"time"
)

// Invoice statuses
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCredited  = "credited"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice purposes
const (
	InvoicePurposeTopup   = "topup"
	InvoicePurposeCashout = "cashout"
)

// Invoice is a provider-side payment request. InvoiceCode is the
// provider-issued machine code; VoucherCode is the human-displayable form.
// TransactionID points at the audit record the invoice eventually produced
// and stays nil until then.
type Invoice struct {
	ID            uint    `gorm:"primarykey"`
	UserID        uint    `gorm:"index;not null"`
	InvoiceCode   string  `gorm:"uniqueIndex;not null"`
	VoucherCode   string  `gorm:"index"`
	Amount        float64 `gorm:"type:decimal(14,2);not null"`
	Purpose       string  // topup or cashout
	Status        string  `gorm:"not null;default:'pending'"`
	TransactionID *uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusCredited || i.Status == InvoiceStatusCancelled
}
