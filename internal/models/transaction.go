package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypeTransfer      = "transfer"
	TransactionTypeTopup         = "topup"
	TransactionTypeCashout       = "cashout"
	TransactionTypeManualDeposit = "manual_deposit"
	TransactionTypeSyncCredit    = "sync_credit"
	TransactionTypeSyncDebit     = "sync_debit"
	TransactionTypeCasinoBuy     = "casino_buy"
	TransactionTypeCasinoSell    = "casino_sell"
	TransactionTypeRefund        = "refund"
	TransactionTypeAdjustment    = "adjustment"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
	TransactionStatusRefunded  = "refunded"
)

// Transaction is the append-only audit record behind every balance mutation.
// Rows are never edited after insert except for status transitions driven by
// the protocol that owns them. A nil SenderID or ReceiverID marks the escrow
// or external side of the movement.
type Transaction struct {
	ID         uint    `gorm:"primarykey"`
	SenderID   *uint   `gorm:"index"`
	ReceiverID *uint   `gorm:"index"`
	Amount     float64 `gorm:"type:decimal(14,2);not null"`
	Type       string  `gorm:"not null;index"`
	Status     string  `gorm:"not null;default:'pending'"`
	Note       string
	ExternalID string `gorm:"index"` // provider invoice / transaction correlation id
	Metadata   JSON   `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
