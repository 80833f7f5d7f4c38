package models

import (
	"time"
)

// Casino transaction types
const (
	CasinoTxBuy  = "buy"  // PHPT -> chips
	CasinoTxSell = "sell" // chips -> PHPT
)

// Casino transaction states. Transitions between them are enforced by the
// casino service's state machine; the column is never written outside it.
const (
	CasinoStateInitiated        = "initiated"
	CasinoStateEscrowDebited    = "escrow_debited"
	CasinoStateCasinoDebited    = "casino_debited"
	CasinoStatePayoutPending    = "payout_pending"
	CasinoStateRefundPending    = "refund_pending"
	CasinoStateRedepositPending = "redeposit_pending"
	CasinoStateCompleted        = "completed"
	CasinoStateFailed           = "failed"
	CasinoStateManualRequired   = "manual_required"
)

// CasinoTransaction tracks one two-sided buy/sell operation. RefID is the
// internally generated idempotency key carried on every external call so a
// retried step cannot double-debit either side.
type CasinoTransaction struct {
	ID               uint    `gorm:"primarykey"`
	UserID           uint    `gorm:"index;not null"`
	Type             string  `gorm:"not null"`
	Amount           float64 `gorm:"type:decimal(14,2);not null"`
	Status           string  `gorm:"not null;default:'initiated';index"`
	RefID            string  `gorm:"uniqueIndex;not null"`
	ExternalTxID     string  // wallet provider transaction id
	CasinoNonce      string  // chip ledger idempotency nonce
	RetryCount       int     `gorm:"default:0"`
	NextRetryAt      *time.Time
	RollbackAttempts int `gorm:"default:0"`
	FailureStep      string
	FailureReason    string
	ResolvedBy       *uint
	ResolutionNote   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
