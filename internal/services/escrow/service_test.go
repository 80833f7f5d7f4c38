package escrow

import (
	"context"
	"errors"
	"testing"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Credit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*balance.MutationResult, error) {
	args := m.Called(ctx, accountID, amount, txType, note, counterpartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.MutationResult), args.Error(1)
}

func (m *MockLedger) Debit(ctx context.Context, accountID uint, amount float64, txType, note string, counterpartyID *uint) (*balance.MutationResult, error) {
	args := m.Called(ctx, accountID, amount, txType, note, counterpartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.MutationResult), args.Error(1)
}

func (m *MockLedger) Transfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*balance.TransferResult, error) {
	args := m.Called(ctx, senderID, receiverID, amount, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.TransferResult), args.Error(1)
}

func (m *MockLedger) SyncFromExternal(ctx context.Context, accountID uint, observed float64, reason string) (*balance.MutationResult, error) {
	args := m.Called(ctx, accountID, observed, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.MutationResult), args.Error(1)
}

func (m *MockLedger) HasSufficientBalance(ctx context.Context, accountID uint, amount float64) (bool, error) {
	args := m.Called(ctx, accountID, amount)
	return args.Bool(0), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) UserInfo(ctx context.Context, clientID string) (*paygram.UserInfo, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.UserInfo), args.Error(1)
}

func (m *MockGateway) TransferCredit(ctx context.Context, req paygram.TransferRequest) (*paygram.TransferReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.TransferReceipt), args.Error(1)
}

func (m *MockGateway) IssueInvoice(ctx context.Context, req paygram.IssueInvoiceRequest) (*paygram.InvoiceReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.InvoiceReceipt), args.Error(1)
}

func (m *MockGateway) PayVoucher(ctx context.Context, req paygram.PayVoucherRequest) (*paygram.PaymentReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.PaymentReceipt), args.Error(1)
}

func (m *MockGateway) RedeemInvoice(ctx context.Context, invoiceCode, clientID string) (*paygram.RedeemReceipt, error) {
	args := m.Called(ctx, invoiceCode, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.RedeemReceipt), args.Error(1)
}

func (m *MockGateway) InvoiceInfo(ctx context.Context, invoiceCode string) (*paygram.InvoiceStatus, error) {
	args := m.Called(ctx, invoiceCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paygram.InvoiceStatus), args.Error(1)
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(id uint) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccounts) GetEscrowAccount() (*models.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockInvoices struct {
	mock.Mock
}

func (m *MockInvoices) Create(invoice *models.Invoice) error {
	args := m.Called(invoice)
	return args.Error(0)
}

func (m *MockInvoices) GetByCode(invoiceCode string) (*models.Invoice, error) {
	args := m.Called(invoiceCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoices) Update(invoice *models.Invoice) error {
	args := m.Called(invoice)
	return args.Error(0)
}

func (m *MockInvoices) ClaimForCredit(invoice *models.Invoice) (bool, error) {
	args := m.Called(invoice)
	claimed := args.Bool(0)
	if claimed && args.Error(1) == nil {
		invoice.Status = models.InvoiceStatusCredited
	}
	return claimed, args.Error(1)
}

type MockTxs struct {
	mock.Mock
}

func (m *MockTxs) UpdateStatus(id uint, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

type fixture struct {
	ledger   *MockLedger
	gateway  *MockGateway
	accounts *MockAccounts
	invoices *MockInvoices
	txs      *MockTxs
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		ledger:   new(MockLedger),
		gateway:  new(MockGateway),
		accounts: new(MockAccounts),
		invoices: new(MockInvoices),
		txs:      new(MockTxs),
	}
	f.svc = NewService(f.ledger, f.gateway, f.accounts, f.invoices, f.txs)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.ledger.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.invoices.AssertExpectations(t)
	f.txs.AssertExpectations(t)
}

var (
	alice  = &models.User{Model: gorm.Model{ID: 1}, Username: "alice", PaygramID: "alice", Balance: 0, IsActive: true}
	escrow = &models.User{Model: gorm.Model{ID: 99}, Username: "platform", Role: models.RoleSuperAdmin, PaygramID: "platform", IsActive: true}
)

func TestTopUpHappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.accounts.On("GetEscrowAccount").Return(escrow, nil)
	f.gateway.On("IssueInvoice", ctx, mock.MatchedBy(func(req paygram.IssueInvoiceRequest) bool {
		return req.ClientID == "platform" && req.Amount == 100.0
	})).Return(&paygram.InvoiceReceipt{InvoiceCode: "inv-1", VoucherCode: "PV-INV1"}, nil)
	f.invoices.On("Create", mock.AnythingOfType("*models.Invoice")).Return(nil)

	invoice, err := f.svc.InitiateTopUp(ctx, 1, 100.0)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", invoice.InvoiceCode)
	assert.Equal(t, models.InvoiceStatusPending, invoice.Status)

	f.invoices.On("GetByCode", "inv-1").Return(invoice, nil)
	f.gateway.On("PayVoucher", ctx, mock.MatchedBy(func(req paygram.PayVoucherRequest) bool {
		return req.VoucherCode == "PV-INV1" && req.ClientID == "alice"
	})).Return(&paygram.PaymentReceipt{RequestID: 42}, nil)
	f.gateway.On("InvoiceInfo", ctx, "inv-1").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-1", Amount: 100.0, IsPaid: true,
	}, nil)
	f.gateway.On("RedeemInvoice", ctx, "inv-1", "platform").Return(&paygram.RedeemReceipt{Amount: 100.0}, nil)
	f.ledger.On("Credit", ctx, uint(1), 100.0, models.TransactionTypeTopup, mock.Anything, (*uint)(nil)).
		Return(&balance.MutationResult{
			PreviousBalance: 0,
			NewBalance:      100.0,
			Transaction:     &models.Transaction{ID: 7, Type: models.TransactionTypeTopup, Amount: 100.0, Status: models.TransactionStatusCompleted},
		}, nil)
	f.invoices.On("ClaimForCredit", mock.AnythingOfType("*models.Invoice")).Return(true, nil)
	f.invoices.On("Update", mock.AnythingOfType("*models.Invoice")).Return(nil)

	res, err := f.svc.CompleteTopUp(ctx, 1, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Credited)
	assert.Equal(t, 100.0, res.NewBalance)
	assert.Equal(t, models.InvoiceStatusCredited, res.Invoice.Status)
	require.NotNil(t, res.Invoice.TransactionID)
	assert.Equal(t, uint(7), *res.Invoice.TransactionID)

	f.assertExpectations(t)
}

func TestConfirmTopUp_IdempotentReplay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	credited := &models.Invoice{UserID: 1, InvoiceCode: "inv-1", Purpose: models.InvoicePurposeTopup, Status: models.InvoiceStatusCredited}
	f.invoices.On("GetByCode", "inv-1").Return(credited, nil)

	res, err := f.svc.ConfirmTopUp(ctx, "inv-1")
	require.NoError(t, err)
	assert.Zero(t, res.Credited)

	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "RedeemInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestTopUp_AmbiguousPaymentNotPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pending := &models.Invoice{UserID: 1, InvoiceCode: "inv-1", VoucherCode: "PV-INV1", Amount: 100.0, Status: models.InvoiceStatusPending, Purpose: models.InvoicePurposeTopup}
	f.invoices.On("GetByCode", "inv-1").Return(pending, nil)
	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.gateway.On("PayVoucher", ctx, mock.Anything).
		Return(nil, paygram.ErrAmbiguous)
	f.gateway.On("InvoiceInfo", ctx, "inv-1").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-1", IsPaid: false,
	}, nil)

	res, err := f.svc.CompleteTopUp(ctx, 1, "inv-1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvoiceNotPaid)
	assert.Equal(t, models.InvoiceStatusPending, pending.Status)

	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmTopUp_RejectsCashOutInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cashout := &models.Invoice{ID: 3, UserID: 1, InvoiceCode: "inv-co", Amount: 100.0,
		Purpose: models.InvoicePurposeCashout, Status: models.InvoiceStatusPending}
	f.invoices.On("GetByCode", "inv-co").Return(cashout, nil)

	res, err := f.svc.ConfirmTopUp(ctx, "inv-co")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNotTopupInvoice)

	// A paid cash-out invoice means the escrow identity paid out an amount
	// the user was already debited for; confirming it as a top-up would
	// hand that amount back.
	f.gateway.AssertNotCalled(t, "InvoiceInfo", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmInvoice_CashOutNotificationSettles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cashout := &models.Invoice{ID: 3, UserID: 1, InvoiceCode: "inv-co", Amount: 100.0,
		Purpose: models.InvoicePurposeCashout, Status: models.InvoiceStatusPending}
	f.invoices.On("GetByCode", "inv-co").Return(cashout, nil)
	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.gateway.On("InvoiceInfo", ctx, "inv-co").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-co", Amount: 100.0, IsPaid: true,
	}, nil)
	f.gateway.On("RedeemInvoice", ctx, "inv-co", "alice").Return(&paygram.RedeemReceipt{Amount: 100.0}, nil)
	f.invoices.On("Update", mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.Status == models.InvoiceStatusCredited
	})).Return(nil)

	err := f.svc.ConfirmInvoice(ctx, "inv-co")
	require.NoError(t, err)

	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestConfirmTopUp_LostClaimDoesNotCredit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	paid := &models.Invoice{ID: 3, UserID: 1, InvoiceCode: "inv-1", Amount: 100.0,
		Purpose: models.InvoicePurposeTopup, Status: models.InvoiceStatusPaid}
	f.invoices.On("GetByCode", "inv-1").Return(paid, nil)
	f.gateway.On("InvoiceInfo", ctx, "inv-1").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-1", Amount: 100.0, IsPaid: true, IsRedeemed: true,
	}, nil)
	f.invoices.On("ClaimForCredit", paid).Return(false, nil)

	res, err := f.svc.ConfirmTopUp(ctx, "inv-1")
	require.NoError(t, err)
	assert.Zero(t, res.Credited)
	assert.Equal(t, models.InvoiceStatusCredited, res.Invoice.Status)

	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmTopUp_CreditFailureReleasesClaim(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	paid := &models.Invoice{ID: 3, UserID: 1, InvoiceCode: "inv-1", Amount: 100.0,
		Purpose: models.InvoicePurposeTopup, Status: models.InvoiceStatusPaid}
	f.invoices.On("GetByCode", "inv-1").Return(paid, nil)
	f.gateway.On("InvoiceInfo", ctx, "inv-1").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-1", Amount: 100.0, IsPaid: true, IsRedeemed: true,
	}, nil)
	f.invoices.On("ClaimForCredit", paid).Return(true, nil)
	f.ledger.On("Credit", ctx, uint(1), 100.0, models.TransactionTypeTopup, mock.Anything, (*uint)(nil)).
		Return(nil, errors.New("database unavailable"))
	f.invoices.On("Update", mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.Status == models.InvoiceStatusPaid
	})).Return(nil)

	res, err := f.svc.ConfirmTopUp(ctx, "inv-1")
	assert.Nil(t, res)
	assert.Error(t, err)

	f.assertExpectations(t)
}

func TestConfirmTopUp_ReplayAfterRecordFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	paid := &models.Invoice{ID: 3, UserID: 1, InvoiceCode: "inv-1", Amount: 100.0,
		Purpose: models.InvoicePurposeTopup, Status: models.InvoiceStatusPaid}
	f.invoices.On("GetByCode", "inv-1").Return(paid, nil)
	f.gateway.On("InvoiceInfo", ctx, "inv-1").Return(&paygram.InvoiceStatus{
		InvoiceCode: "inv-1", Amount: 100.0, IsPaid: true, IsRedeemed: true,
	}, nil).Once()
	f.invoices.On("ClaimForCredit", paid).Return(true, nil).Once()
	f.ledger.On("Credit", ctx, uint(1), 100.0, models.TransactionTypeTopup, mock.Anything, (*uint)(nil)).
		Return(&balance.MutationResult{NewBalance: 100.0, Transaction: &models.Transaction{ID: 7}}, nil).Once()
	f.invoices.On("Update", paid).Return(errors.New("connection reset")).Once()

	// The credit landed and the claim stuck; only the audit pointer write
	// failed. The confirmation still reports success.
	res, err := f.svc.ConfirmTopUp(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Credited)

	// A redelivered notification sees the credited row and must not credit
	// a second time.
	replay, err := f.svc.ConfirmTopUp(ctx, "inv-1")
	require.NoError(t, err)
	assert.Zero(t, replay.Credited)
	f.ledger.AssertNumberOfCalls(t, "Credit", 1)
}

func TestInitiateCashOut_InsufficientBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.accounts.On("GetEscrowAccount").Return(escrow, nil)
	f.ledger.On("HasSufficientBalance", ctx, uint(1), 100.0).Return(false, nil)

	res, err := f.svc.InitiateCashOut(ctx, 1, 100.0)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, balance.ErrInsufficientBalance)

	// No external call, no ledger record.
	f.gateway.AssertNotCalled(t, "IssueInvoice", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.invoices.AssertNotCalled(t, "Create", mock.Anything)
}

func TestInitiateCashOut_PaymentRejectedCompensates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.accounts.On("GetEscrowAccount").Return(escrow, nil)
	f.ledger.On("HasSufficientBalance", ctx, uint(1), 50.0).Return(true, nil)
	f.gateway.On("IssueInvoice", ctx, mock.Anything).
		Return(&paygram.InvoiceReceipt{InvoiceCode: "inv-co", VoucherCode: "PV-INVCO"}, nil)
	f.ledger.On("Debit", ctx, uint(1), 50.0, models.TransactionTypeCashout, mock.Anything, (*uint)(nil)).
		Return(&balance.MutationResult{
			PreviousBalance: 120.0,
			NewBalance:      70.0,
			Transaction:     &models.Transaction{ID: 11, Status: models.TransactionStatusCompleted},
		}, nil)
	f.invoices.On("Create", mock.AnythingOfType("*models.Invoice")).Return(nil)
	f.gateway.On("PayVoucher", ctx, mock.Anything).
		Return(nil, &paygram.RejectedError{Message: "escrow wallet frozen"})
	f.ledger.On("Credit", ctx, uint(1), 50.0, models.TransactionTypeRefund, mock.Anything, (*uint)(nil)).
		Return(&balance.MutationResult{NewBalance: 120.0, Transaction: &models.Transaction{ID: 12}}, nil)
	f.txs.On("UpdateStatus", uint(11), models.TransactionStatusRefunded).Return(nil)
	f.invoices.On("Update", mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.Status == models.InvoiceStatusCancelled
	})).Return(nil)

	res, err := f.svc.InitiateCashOut(ctx, 1, 50.0)
	assert.Nil(t, res)
	assert.True(t, paygram.IsRejected(err))

	f.assertExpectations(t)
}

func TestInitiateCashOut_AmbiguousPaymentLeavesDebit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.accounts.On("GetByID", uint(1)).Return(alice, nil)
	f.accounts.On("GetEscrowAccount").Return(escrow, nil)
	f.ledger.On("HasSufficientBalance", ctx, uint(1), 50.0).Return(true, nil)
	f.gateway.On("IssueInvoice", ctx, mock.Anything).
		Return(&paygram.InvoiceReceipt{InvoiceCode: "inv-co", VoucherCode: "PV-INVCO"}, nil)
	f.ledger.On("Debit", ctx, uint(1), 50.0, models.TransactionTypeCashout, mock.Anything, (*uint)(nil)).
		Return(&balance.MutationResult{NewBalance: 70.0, Transaction: &models.Transaction{ID: 11}}, nil)
	f.invoices.On("Create", mock.AnythingOfType("*models.Invoice")).Return(nil)
	f.gateway.On("PayVoucher", ctx, mock.Anything).Return(nil, paygram.ErrAmbiguous)

	res, err := f.svc.InitiateCashOut(ctx, 1, 50.0)
	assert.ErrorIs(t, err, ErrPendingReconciliation)
	require.NotNil(t, res)
	assert.False(t, res.Settled)
	assert.Equal(t, models.InvoiceStatusPending, res.Invoice.Status)

	// No compensation while the outcome is unknown.
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelCashOut(t *testing.T) {
	ctx := context.Background()
	txID := uint(11)

	t.Run("unclaimed invoice refunds the debit", func(t *testing.T) {
		f := newFixture()
		pending := &models.Invoice{
			UserID: 1, InvoiceCode: "inv-co", Amount: 50.0,
			Purpose: models.InvoicePurposeCashout, Status: models.InvoiceStatusPending,
			TransactionID: &txID,
		}
		f.invoices.On("GetByCode", "inv-co").Return(pending, nil)
		f.gateway.On("InvoiceInfo", ctx, "inv-co").Return(&paygram.InvoiceStatus{IsPaid: false}, nil)
		f.ledger.On("Credit", ctx, uint(1), 50.0, models.TransactionTypeRefund, mock.Anything, (*uint)(nil)).
			Return(&balance.MutationResult{NewBalance: 120.0, Transaction: &models.Transaction{ID: 12}}, nil)
		f.txs.On("UpdateStatus", txID, models.TransactionStatusRefunded).Return(nil)
		f.invoices.On("Update", mock.Anything).Return(nil)

		err := f.svc.CancelCashOut(ctx, 1, "inv-co")
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceStatusCancelled, pending.Status)
		f.assertExpectations(t)
	})

	t.Run("claimed invoice cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		pending := &models.Invoice{
			UserID: 1, InvoiceCode: "inv-co", Amount: 50.0,
			Purpose: models.InvoicePurposeCashout, Status: models.InvoiceStatusPending,
			TransactionID: &txID,
		}
		f.invoices.On("GetByCode", "inv-co").Return(pending, nil)
		f.gateway.On("InvoiceInfo", ctx, "inv-co").Return(&paygram.InvoiceStatus{IsPaid: true}, nil)

		err := f.svc.CancelCashOut(ctx, 1, "inv-co")
		assert.ErrorIs(t, err, ErrInvoiceAlreadyClaimed)
		f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wrong owner", func(t *testing.T) {
		f := newFixture()
		pending := &models.Invoice{UserID: 2, InvoiceCode: "inv-co", Purpose: models.InvoicePurposeCashout, Status: models.InvoiceStatusPending}
		f.invoices.On("GetByCode", "inv-co").Return(pending, nil)

		err := f.svc.CancelCashOut(ctx, 1, "inv-co")
		assert.ErrorIs(t, err, ErrNotInvoiceOwner)
	})
}

func TestDirectSend(t *testing.T) {
	ctx := context.Background()
	bob := &models.User{Model: gorm.Model{ID: 2}, Username: "bob", PaygramID: "bob", IsActive: true}

	t.Run("happy path mirrors both sides", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetByID", uint(1)).Return(alice, nil)
		f.accounts.On("GetByID", uint(2)).Return(bob, nil)
		f.ledger.On("HasSufficientBalance", ctx, uint(1), 30.0).Return(true, nil)
		f.gateway.On("TransferCredit", ctx, mock.MatchedBy(func(req paygram.TransferRequest) bool {
			return req.FromClientID == "alice" && req.ToClientID == "bob" && req.Amount == 30.0 && req.UniqueTxID != ""
		})).Return(&paygram.TransferReceipt{RequestID: 5, UniqueTxID: "u-1"}, nil)
		f.gateway.On("UserInfo", ctx, "alice").Return(&paygram.UserInfo{ClientID: "alice", Balance: 70.0}, nil)
		f.gateway.On("UserInfo", ctx, "bob").Return(&paygram.UserInfo{ClientID: "bob", Balance: 30.0}, nil)
		f.ledger.On("SyncFromExternal", ctx, uint(1), 70.0, mock.Anything).
			Return(&balance.MutationResult{NewBalance: 70.0}, nil)
		f.ledger.On("SyncFromExternal", ctx, uint(2), 30.0, mock.Anything).
			Return(&balance.MutationResult{NewBalance: 30.0}, nil)

		res, err := f.svc.DirectSend(ctx, 1, 2, 30.0, "lunch")
		require.NoError(t, err)
		assert.Equal(t, 70.0, res.SenderBalance)
		assert.Equal(t, 30.0, res.ReceiverBalance)
		f.assertExpectations(t)
	})

	t.Run("self transfer", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.DirectSend(ctx, 1, 1, 30.0, "")
		assert.ErrorIs(t, err, balance.ErrSelfTransfer)
	})

	t.Run("insufficient balance makes no external call", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetByID", uint(1)).Return(alice, nil)
		f.accounts.On("GetByID", uint(2)).Return(bob, nil)
		f.ledger.On("HasSufficientBalance", ctx, uint(1), 30.0).Return(false, nil)

		_, err := f.svc.DirectSend(ctx, 1, 2, 30.0, "")
		assert.ErrorIs(t, err, balance.ErrInsufficientBalance)
		f.gateway.AssertNotCalled(t, "TransferCredit", mock.Anything, mock.Anything)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetByID", uint(1)).Return(alice, nil)
		f.accounts.On("GetByID", uint(3)).Return(nil, errors.New("user not found"))

		_, err := f.svc.DirectSend(ctx, 1, 3, 30.0, "")
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("ambiguous transfer reports pending reconciliation", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetByID", uint(1)).Return(alice, nil)
		f.accounts.On("GetByID", uint(2)).Return(bob, nil)
		f.ledger.On("HasSufficientBalance", ctx, uint(1), 30.0).Return(true, nil)
		f.gateway.On("TransferCredit", ctx, mock.Anything).Return(nil, paygram.ErrAmbiguous)

		_, err := f.svc.DirectSend(ctx, 1, 2, 30.0, "")
		assert.ErrorIs(t, err, ErrPendingReconciliation)
		f.ledger.AssertNotCalled(t, "SyncFromExternal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
