package paygram

import "context"

// CurrencyPHPT is the provider's numeric currency code for the platform token.
const CurrencyPHPT = 1003

// Gateway is the client surface to the external wallet provider. Value-moving
// calls (TransferCredit, PayVoucher, RedeemInvoice) carry a caller-generated
// unique transaction id for idempotency; UserInfo and InvoiceInfo are
// read-only and safe to repeat.
type Gateway interface {
	UserInfo(ctx context.Context, clientID string) (*UserInfo, error)
	TransferCredit(ctx context.Context, req TransferRequest) (*TransferReceipt, error)
	IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (*InvoiceReceipt, error)
	PayVoucher(ctx context.Context, req PayVoucherRequest) (*PaymentReceipt, error)
	RedeemInvoice(ctx context.Context, invoiceCode, clientID string) (*RedeemReceipt, error)
	InvoiceInfo(ctx context.Context, invoiceCode string) (*InvoiceStatus, error)
}

// UserInfo is the provider's authoritative view of a wallet.
type UserInfo struct {
	ClientID string  `json:"clientId"`
	Balance  float64 `json:"balance"`
}

// TransferRequest moves tokens directly between two wallet identities.
type TransferRequest struct {
	FromClientID string  `json:"fromClientId"`
	ToClientID   string  `json:"toClientId"`
	Amount       float64 `json:"amount"`
	UniqueTxID   string  `json:"uniqueTxId"`
}

// TransferReceipt acknowledges a direct transfer. RequestID is the
// server-generated numeric id paired with the caller's UniqueTxID.
type TransferReceipt struct {
	RequestID  int64  `json:"requestId"`
	UniqueTxID string `json:"uniqueTxId"`
}

// IssueInvoiceRequest creates a payment request on the given identity.
type IssueInvoiceRequest struct {
	ClientID string  `json:"clientId"`
	Amount   float64 `json:"amount"`
	Currency int     `json:"currency"`
	Payload  string  `json:"payload,omitempty"` // callback correlation data
}

// InvoiceReceipt carries the provider invoice code and its display voucher.
type InvoiceReceipt struct {
	InvoiceCode string `json:"invoiceCode"`
	VoucherCode string `json:"voucherCode"`
}

// PayVoucherRequest pays an invoice's voucher with a specific wallet identity.
type PayVoucherRequest struct {
	VoucherCode string `json:"voucherCode"`
	ClientID    string `json:"clientId"`
	UniqueTxID  string `json:"uniqueTxId"`
}

// PaymentReceipt acknowledges a voucher payment. It is NOT authoritative
// confirmation that the invoice is paid; use InvoiceInfo for that.
type PaymentReceipt struct {
	RequestID int64 `json:"requestId"`
}

// RedeemReceipt acknowledges crediting the invoice-issuing identity.
type RedeemReceipt struct {
	Amount float64 `json:"amount"`
}

// InvoiceStatus is the authoritative invoice state read.
type InvoiceStatus struct {
	InvoiceCode string  `json:"invoiceCode"`
	Amount      float64 `json:"amount"`
	IsPaid      bool    `json:"isPaid"`
	IsRedeemed  bool    `json:"isRedeemed"`
	PaidBy      string  `json:"paidBy,omitempty"`
}
