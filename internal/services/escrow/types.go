package escrow

import (
	"context"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"
)

// Service orchestrates the multi-step flows that move value between a user's
// external wallet and the platform's escrow wallet identity.
type Service interface {
	// DirectSend performs a single external transfer between two platform
	// accounts and mirrors both local balances from the provider afterwards.
	DirectSend(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*SendResult, error)

	// InitiateTopUp issues an invoice on the platform escrow identity. The
	// user pays its voucher from their own external wallet.
	InitiateTopUp(ctx context.Context, userID uint, amount float64) (*models.Invoice, error)

	// CompleteTopUp pays the invoice voucher with the user's external wallet
	// credential and then confirms and credits via ConfirmTopUp.
	CompleteTopUp(ctx context.Context, userID uint, invoiceCode string) (*TopUpResult, error)

	// ConfirmTopUp runs the authoritative invoice status check and, only on a
	// confirmed payment, redeems into escrow and credits the local balance.
	// Idempotent: an already-credited invoice returns without a second credit.
	// Rejects invoices that were not issued for a top-up.
	ConfirmTopUp(ctx context.Context, invoiceCode string) (*TopUpResult, error)

	// ConfirmInvoice routes a provider payment notification to the flow that
	// matches the invoice's purpose: top-up invoices are confirmed and
	// credited, pending cash-out invoices are settled. A cash-out payment
	// must never be treated as a top-up; the user was already debited for it.
	ConfirmInvoice(ctx context.Context, invoiceCode string) error

	// InitiateCashOut debits the local balance and pays an invoice issued on
	// the user's external identity from the escrow identity.
	InitiateCashOut(ctx context.Context, userID uint, amount float64) (*CashOutResult, error)

	// CancelCashOut cancels a still-unclaimed cash-out invoice and issues the
	// compensating credit for the already-recorded local debit.
	CancelCashOut(ctx context.Context, userID uint, invoiceCode string) error

	// EscrowTransfer moves tokens between two platform accounts on the local
	// ledger. Admin-mediated transfers and the casino token legs route
	// through here; the escrow account gets no special treatment beyond
	// being one of the two sides.
	EscrowTransfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*balance.TransferResult, error)
}

// SendResult reports a completed direct send.
type SendResult struct {
	Receipt         *paygram.TransferReceipt
	SenderBalance   float64
	ReceiverBalance float64
}

// TopUpResult reports a confirmed top-up credit.
type TopUpResult struct {
	Invoice     *models.Invoice
	Credited    float64
	NewBalance  float64
	Transaction *models.Transaction
}

// CashOutResult reports an initiated cash-out.
type CashOutResult struct {
	Invoice     *models.Invoice
	Debited     float64
	NewBalance  float64
	Transaction *models.Transaction
	// Settled is false while the payment leg is pending reconciliation.
	Settled bool
}

// Ledger is the slice of the balance service the protocol drives.
type Ledger interface {
	Credit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*balance.MutationResult, error)
	Debit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*balance.MutationResult, error)
	Transfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*balance.TransferResult, error)
	SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*balance.MutationResult, error)
	HasSufficientBalance(ctx context.Context, accountID uint, amount float64) (bool, error)
}

// AccountStore resolves platform accounts and the escrow identity.
type AccountStore interface {
	GetByID(id uint) (*models.User, error)
	GetEscrowAccount() (*models.User, error)
}

// InvoiceStore persists invoice lifecycle state.
type InvoiceStore interface {
	Create(invoice *models.Invoice) error
	GetByCode(invoiceCode string) (*models.Invoice, error)
	Update(invoice *models.Invoice) error
	// ClaimForCredit flips a paid invoice to credited with a conditional
	// update. Returns false when the row was no longer paid, meaning a
	// concurrent confirmation already claimed the credit.
	ClaimForCredit(invoice *models.Invoice) (bool, error)
}

// TransactionStore applies the status transitions the protocol owns.
type TransactionStore interface {
	UpdateStatus(id uint, status string) error
}
