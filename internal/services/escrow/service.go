package escrow

import (
	"context"
	"fmt"
	"log"

	"payverse/internal/models"
	"payverse/internal/services/balance"
	"payverse/internal/services/paygram"

	"github.com/google/uuid"
)

type service struct {
	ledger   Ledger
	gateway  paygram.Gateway
	accounts AccountStore
	invoices InvoiceStore
	txs      TransactionStore
}

// NewService creates a new escrow transfer protocol service.
func NewService(ledger Ledger, gateway paygram.Gateway, accounts AccountStore, invoices InvoiceStore, txs TransactionStore) Service {
	if ledger == nil {
		panic("ledger is required")
	}
	if gateway == nil {
		panic("gateway is required")
	}
	if accounts == nil {
		panic("account store is required")
	}
	if invoices == nil {
		panic("invoice store is required")
	}
	if txs == nil {
		panic("transaction store is required")
	}
	return &service{
		ledger:   ledger,
		gateway:  gateway,
		accounts: accounts,
		invoices: invoices,
		txs:      txs,
	}
}

func (s *service) DirectSend(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*SendResult, error) {
	if amount <= 0 {
		return nil, balance.ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, balance.ErrSelfTransfer
	}

	sender, err := s.accounts.GetByID(senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.accounts.GetByID(receiverID)
	if err != nil {
		return nil, ErrInvalidRecipient
	}

	// Fail fast before the remote call.
	ok, err := s.ledger.HasSufficientBalance(ctx, senderID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, balance.ErrInsufficientBalance
	}

	receipt, err := s.gateway.TransferCredit(ctx, paygram.TransferRequest{
		FromClientID: sender.PaygramID,
		ToClientID:   receiver.PaygramID,
		Amount:       amount,
		UniqueTxID:   uuid.NewString(),
	})
	if err != nil {
		if paygram.IsAmbiguous(err) {
			return nil, fmt.Errorf("%w: %v", ErrPendingReconciliation, err)
		}
		return nil, err
	}

	res := &SendResult{Receipt: receipt}
	reason := fmt.Sprintf("direct send %s", receipt.UniqueTxID)
	res.SenderBalance = s.mirror(ctx, sender, reason)
	res.ReceiverBalance = s.mirror(ctx, receiver, reason)
	return res, nil
}

// mirror re-reads one side's authoritative balance and syncs the local row.
// A failed mirror is recoverable drift; the reconciliation sweep will catch
// it, so it only logs.
func (s *service) mirror(ctx context.Context, account *models.User, reason string) float64 {
	info, err := s.gateway.UserInfo(ctx, account.PaygramID)
	if err != nil {
		log.Printf("failed to read external balance for %s: %v", account.PaygramID, err)
		return account.Balance
	}
	res, err := s.ledger.SyncFromExternal(ctx, account.ID, info.Balance, reason)
	if err != nil {
		log.Printf("failed to mirror balance for account %d: %v", account.ID, err)
		return account.Balance
	}
	return res.NewBalance
}

func (s *service) InitiateTopUp(ctx context.Context, userID uint, amount float64) (*models.Invoice, error) {
	if amount <= 0 {
		return nil, balance.ErrInvalidAmount
	}
	if _, err := s.accounts.GetByID(userID); err != nil {
		return nil, err
	}
	escrowAccount, err := s.accounts.GetEscrowAccount()
	if err != nil {
		return nil, err
	}

	receipt, err := s.gateway.IssueInvoice(ctx, paygram.IssueInvoiceRequest{
		ClientID: escrowAccount.PaygramID,
		Amount:   amount,
		Currency: paygram.CurrencyPHPT,
		Payload:  fmt.Sprintf("topup:%d", userID),
	})
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		UserID:      userID,
		InvoiceCode: receipt.InvoiceCode,
		VoucherCode: receipt.VoucherCode,
		Amount:      amount,
		Purpose:     models.InvoicePurposeTopup,
		Status:      models.InvoiceStatusPending,
	}
	if err := s.invoices.Create(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) CompleteTopUp(ctx context.Context, userID uint, invoiceCode string) (*TopUpResult, error) {
	invoice, err := s.invoices.GetByCode(invoiceCode)
	if err != nil {
		return nil, err
	}
	if invoice.UserID != userID {
		return nil, ErrNotInvoiceOwner
	}
	if invoice.Purpose != models.InvoicePurposeTopup {
		return nil, ErrInvoiceNotPending
	}
	if invoice.Status == models.InvoiceStatusCredited {
		return s.creditedResult(invoice)
	}

	user, err := s.accounts.GetByID(userID)
	if err != nil {
		return nil, err
	}

	_, err = s.gateway.PayVoucher(ctx, paygram.PayVoucherRequest{
		VoucherCode: invoice.VoucherCode,
		ClientID:    user.PaygramID,
		UniqueTxID:  uuid.NewString(),
	})
	if err != nil && !paygram.IsAmbiguous(err) {
		// A payment rejection means nothing moved; the invoice stays
		// pending and the user may retry.
		return nil, err
	}

	// A payment acknowledgement, even a clean one, is not authoritative.
	// Only the status check (or a successful redeem) may produce a credit.
	return s.ConfirmTopUp(ctx, invoiceCode)
}

func (s *service) ConfirmTopUp(ctx context.Context, invoiceCode string) (*TopUpResult, error) {
	invoice, err := s.invoices.GetByCode(invoiceCode)
	if err != nil {
		return nil, err
	}
	// A cash-out invoice is paid by the escrow identity against an already
	// debited balance. Crediting it here would hand the payout back.
	if invoice.Purpose != models.InvoicePurposeTopup {
		return nil, ErrNotTopupInvoice
	}
	if invoice.Status == models.InvoiceStatusCredited {
		return s.creditedResult(invoice)
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, ErrInvoiceNotPending
	}

	status, err := s.gateway.InvoiceInfo(ctx, invoice.InvoiceCode)
	if err != nil {
		return nil, err
	}
	if !status.IsPaid {
		return nil, ErrInvoiceNotPaid
	}

	if invoice.Status != models.InvoiceStatusPaid {
		invoice.Status = models.InvoiceStatusPaid
		if err := s.invoices.Update(invoice); err != nil {
			return nil, err
		}
	}

	if !status.IsRedeemed {
		escrowAccount, err := s.accounts.GetEscrowAccount()
		if err != nil {
			return nil, err
		}
		if _, err := s.gateway.RedeemInvoice(ctx, invoice.InvoiceCode, escrowAccount.PaygramID); err != nil {
			if paygram.IsAmbiguous(err) {
				return nil, fmt.Errorf("%w: %v", ErrPendingReconciliation, err)
			}
			return nil, err
		}
	}

	// Claim the credit with a conditional flip before mutating the ledger.
	// Two confirmations can race on the same invoice (provider callback vs.
	// the user's own complete call); only the claim winner credits, the
	// loser returns the idempotent replay result.
	claimed, err := s.invoices.ClaimForCredit(invoice)
	if err != nil {
		return nil, err
	}
	if !claimed {
		invoice.Status = models.InvoiceStatusCredited
		return s.creditedResult(invoice)
	}

	amount := status.Amount
	if amount <= 0 {
		amount = invoice.Amount
	}
	mutation, err := s.ledger.Credit(ctx, invoice.UserID, amount, models.TransactionTypeTopup,
		fmt.Sprintf("topup via invoice %s", invoice.InvoiceCode), nil)
	if err != nil {
		// Release the claim so a later confirmation can retry the credit.
		invoice.Status = models.InvoiceStatusPaid
		if relErr := s.invoices.Update(invoice); relErr != nil {
			log.Printf("invoice %s: credit failed and claim release failed: %v", invoice.InvoiceCode, relErr)
		}
		return nil, err
	}

	invoice.TransactionID = &mutation.Transaction.ID
	if err := s.invoices.Update(invoice); err != nil {
		// The claim already guards against a second credit; only the audit
		// pointer is lost, which a replay cannot make worse.
		log.Printf("invoice %s: failed to record transaction id: %v", invoice.InvoiceCode, err)
	}

	return &TopUpResult{
		Invoice:     invoice,
		Credited:    amount,
		NewBalance:  mutation.NewBalance,
		Transaction: mutation.Transaction,
	}, nil
}

func (s *service) ConfirmInvoice(ctx context.Context, invoiceCode string) error {
	invoice, err := s.invoices.GetByCode(invoiceCode)
	if err != nil {
		return err
	}
	switch invoice.Purpose {
	case models.InvoicePurposeTopup:
		_, err := s.ConfirmTopUp(ctx, invoiceCode)
		return err
	case models.InvoicePurposeCashout:
		if invoice.Status != models.InvoiceStatusPending {
			return nil
		}
		user, err := s.accounts.GetByID(invoice.UserID)
		if err != nil {
			return err
		}
		return s.settleCashOut(ctx, invoice, user)
	default:
		return fmt.Errorf("invoice %s has unknown purpose %q", invoiceCode, invoice.Purpose)
	}
}

func (s *service) InitiateCashOut(ctx context.Context, userID uint, amount float64) (*CashOutResult, error) {
	if amount <= 0 {
		return nil, balance.ErrInvalidAmount
	}
	user, err := s.accounts.GetByID(userID)
	if err != nil {
		return nil, err
	}
	escrowAccount, err := s.accounts.GetEscrowAccount()
	if err != nil {
		return nil, err
	}

	// Reject before any external call or record is made.
	ok, err := s.ledger.HasSufficientBalance(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, balance.ErrInsufficientBalance
	}

	receipt, err := s.gateway.IssueInvoice(ctx, paygram.IssueInvoiceRequest{
		ClientID: user.PaygramID,
		Amount:   amount,
		Currency: paygram.CurrencyPHPT,
		Payload:  fmt.Sprintf("cashout:%d", userID),
	})
	if err != nil {
		return nil, err
	}

	// The local debit is recorded before the irreversible payment leg; the
	// cancel path issues the compensating credit if the payment never lands.
	mutation, err := s.ledger.Debit(ctx, userID, amount, models.TransactionTypeCashout,
		fmt.Sprintf("cashout via invoice %s", receipt.InvoiceCode), nil)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		UserID:        userID,
		InvoiceCode:   receipt.InvoiceCode,
		VoucherCode:   receipt.VoucherCode,
		Amount:        amount,
		Purpose:       models.InvoicePurposeCashout,
		Status:        models.InvoiceStatusPending,
		TransactionID: &mutation.Transaction.ID,
	}
	if err := s.invoices.Create(invoice); err != nil {
		return nil, err
	}

	res := &CashOutResult{
		Invoice:     invoice,
		Debited:     amount,
		NewBalance:  mutation.NewBalance,
		Transaction: mutation.Transaction,
	}

	_, err = s.gateway.PayVoucher(ctx, paygram.PayVoucherRequest{
		VoucherCode: receipt.VoucherCode,
		ClientID:    escrowAccount.PaygramID,
		UniqueTxID:  uuid.NewString(),
	})
	if err != nil {
		if paygram.IsAmbiguous(err) {
			// Debited locally, payment unresolved. Keep the invoice
			// pending for the status check; never assume either way.
			return res, fmt.Errorf("%w: %v", ErrPendingReconciliation, err)
		}
		// Clean failure: compensate the debit and fail the cash-out.
		if compErr := s.compensateCashOut(ctx, invoice, "cashout payment failed"); compErr != nil {
			return nil, fmt.Errorf("cashout failed and compensation failed: %v (original: %w)", compErr, err)
		}
		return nil, err
	}

	if err := s.settleCashOut(ctx, invoice, user); err != nil {
		return res, err
	}
	res.Settled = true
	return res, nil
}

// settleCashOut verifies the payment leg authoritatively and redeems the
// invoice into the user's external identity.
func (s *service) settleCashOut(ctx context.Context, invoice *models.Invoice, user *models.User) error {
	status, err := s.gateway.InvoiceInfo(ctx, invoice.InvoiceCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPendingReconciliation, err)
	}
	if !status.IsPaid {
		return fmt.Errorf("%w: payment not yet visible", ErrPendingReconciliation)
	}

	if !status.IsRedeemed {
		if _, err := s.gateway.RedeemInvoice(ctx, invoice.InvoiceCode, user.PaygramID); err != nil {
			return fmt.Errorf("%w: %v", ErrPendingReconciliation, err)
		}
	}

	invoice.Status = models.InvoiceStatusCredited
	if err := s.invoices.Update(invoice); err != nil {
		return err
	}
	return nil
}

func (s *service) CancelCashOut(ctx context.Context, userID uint, invoiceCode string) error {
	invoice, err := s.invoices.GetByCode(invoiceCode)
	if err != nil {
		return err
	}
	if invoice.UserID != userID {
		return ErrNotInvoiceOwner
	}
	if invoice.Purpose != models.InvoicePurposeCashout || invoice.Status != models.InvoiceStatusPending {
		return ErrInvoiceNotPending
	}

	// The counterpart may have claimed it already; check before reversing.
	status, err := s.gateway.InvoiceInfo(ctx, invoice.InvoiceCode)
	if err != nil {
		return err
	}
	if status.IsPaid {
		return ErrInvoiceAlreadyClaimed
	}

	return s.compensateCashOut(ctx, invoice, "cashout cancelled by user")
}

// compensateCashOut reverses the local debit of an unclaimed cash-out and
// retires the invoice.
func (s *service) compensateCashOut(ctx context.Context, invoice *models.Invoice, reason string) error {
	if invoice.TransactionID != nil {
		if _, err := s.ledger.Credit(ctx, invoice.UserID, invoice.Amount, models.TransactionTypeRefund,
			fmt.Sprintf("%s (invoice %s)", reason, invoice.InvoiceCode), nil); err != nil {
			return err
		}
		if err := s.txs.UpdateStatus(*invoice.TransactionID, models.TransactionStatusRefunded); err != nil {
			return err
		}
	}
	invoice.Status = models.InvoiceStatusCancelled
	return s.invoices.Update(invoice)
}

func (s *service) EscrowTransfer(ctx context.Context, senderID, receiverID uint, amount float64, note string) (*balance.TransferResult, error) {
	return s.ledger.Transfer(ctx, senderID, receiverID, amount, note)
}

func (s *service) creditedResult(invoice *models.Invoice) (*TopUpResult, error) {
	return &TopUpResult{
		Invoice:  invoice,
		Credited: 0, // no new credit on idempotent replay
	}, nil
}
